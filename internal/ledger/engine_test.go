package ledger_test

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/expenseshare/server/internal/apperr"
	"github.com/expenseshare/server/internal/calculator"
	"github.com/expenseshare/server/internal/ledger"
	"github.com/expenseshare/server/internal/models"
	"github.com/expenseshare/server/internal/storage"
	"github.com/expenseshare/server/internal/storage/sqlite"
)

func setupEngine(t *testing.T) (*ledger.Engine, storage.Store) {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	users := []struct{ id, email, name string }{
		{"alice", "alice@example.com", "Alice"},
		{"bob", "bob@example.com", "Bob"},
		{"carol", "carol@example.com", "Carol"},
	}
	for _, u := range users {
		user := &models.User{ID: u.id, Email: u.email, DisplayName: u.name, PasswordHash: "x", CreatedAt: 1, UpdatedAt: 1}
		if err := store.CreateUser(ctx, user); err != nil {
			t.Fatalf("failed to create user %s: %v", u.id, err)
		}
	}
	group := &models.Group{ID: "trip", Name: "Trip", CreatedBy: "alice", Members: []string{"alice", "bob", "carol"}}
	if err := store.CreateGroup(ctx, group); err != nil {
		t.Fatalf("failed to create group: %v", err)
	}
	return ledger.New(store), store
}

func addEqualExpense(t *testing.T, engine *ledger.Engine, payer string, amount float64) *models.Expense {
	t.Helper()
	expense, err := engine.AddExpense(context.Background(), payer, ledger.ExpenseInput{
		GroupID:     "trip",
		Description: "dinner",
		Amount:      amount,
		PaidBy:      payer,
		SplitType:   models.SplitEqual,
	})
	if err != nil {
		t.Fatalf("AddExpense failed: %v", err)
	}
	return expense
}

func findEdge(t *testing.T, edges []ledger.DebtEdge, from, to string) float64 {
	t.Helper()
	for _, e := range edges {
		if e.FromUserID == from && e.ToUserID == to {
			return e.Amount
		}
	}
	t.Fatalf("no edge %s -> %s in %+v", from, to, edges)
	return 0
}

// balanceSum adds up every entry in the group's balance records. A consistent
// ledger always sums to zero.
func balanceSum(t *testing.T, store storage.Store, groupID string) float64 {
	t.Helper()
	balances, err := store.ListBalancesByGroup(context.Background(), groupID)
	if err != nil {
		t.Fatalf("ListBalancesByGroup failed: %v", err)
	}
	var sum float64
	for _, bal := range balances {
		for _, entry := range bal.Entries {
			sum += entry.Amount
		}
	}
	return sum
}

func assertKind(t *testing.T, err error, want apperr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", want)
	}
	kind, ok := apperr.KindOf(err)
	if !ok || kind != want {
		t.Fatalf("expected %v error, got %v (%v)", want, kind, err)
	}
}

func TestAddExpenseEqualSplit(t *testing.T) {
	engine, store := setupEngine(t)
	ctx := context.Background()

	addEqualExpense(t, engine, "alice", 90)

	edges, err := engine.GroupBalances(ctx, "trip")
	if err != nil {
		t.Fatalf("GroupBalances failed: %v", err)
	}
	if len(edges) != 2 {
		t.Fatalf("expected 2 debts, got %d: %+v", len(edges), edges)
	}
	if got := findEdge(t, edges, "bob", "alice"); got != 30 {
		t.Errorf("bob owes alice %.2f, want 30", got)
	}
	if got := findEdge(t, edges, "carol", "alice"); got != 30 {
		t.Errorf("carol owes alice %.2f, want 30", got)
	}
	if sum := balanceSum(t, store, "trip"); math.Abs(sum) > 1e-9 {
		t.Errorf("balances do not conserve: sum = %v", sum)
	}
}

func TestAddExpenseValidation(t *testing.T) {
	engine, store := setupEngine(t)
	ctx := context.Background()
	if err := store.CreateUser(ctx, &models.User{ID: "dave", Email: "dave@example.com", DisplayName: "Dave", PasswordHash: "x", CreatedAt: 1, UpdatedAt: 1}); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	tests := []struct {
		name  string
		actor string
		input ledger.ExpenseInput
		kind  apperr.Kind
	}{
		{
			name:  "empty description",
			actor: "alice",
			input: ledger.ExpenseInput{GroupID: "trip", Description: "  ", Amount: 10, PaidBy: "alice", SplitType: models.SplitEqual},
			kind:  apperr.Validation,
		},
		{
			name:  "unknown group",
			actor: "alice",
			input: ledger.ExpenseInput{GroupID: "nope", Description: "x", Amount: 10, PaidBy: "alice", SplitType: models.SplitEqual},
			kind:  apperr.NotFound,
		},
		{
			name:  "actor not a member",
			actor: "dave",
			input: ledger.ExpenseInput{GroupID: "trip", Description: "x", Amount: 10, PaidBy: "alice", SplitType: models.SplitEqual},
			kind:  apperr.Authorization,
		},
		{
			name:  "payer not a member",
			actor: "alice",
			input: ledger.ExpenseInput{GroupID: "trip", Description: "x", Amount: 10, PaidBy: "dave", SplitType: models.SplitEqual},
			kind:  apperr.Validation,
		},
		{
			name:  "negative amount",
			actor: "alice",
			input: ledger.ExpenseInput{GroupID: "trip", Description: "x", Amount: -5, PaidBy: "alice", SplitType: models.SplitEqual},
			kind:  apperr.Validation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.AddExpense(ctx, tt.actor, tt.input)
			assertKind(t, err, tt.kind)
		})
	}
}

func TestRecomputeIdempotent(t *testing.T) {
	engine, store := setupEngine(t)
	ctx := context.Background()

	addEqualExpense(t, engine, "alice", 100)
	addEqualExpense(t, engine, "bob", 40)
	if _, err := engine.Settle(ctx, "carol", ledger.SettlementInput{
		GroupID: "trip", FromUserID: "carol", ToUserID: "alice", Amount: 10,
	}); err != nil {
		t.Fatalf("Settle failed: %v", err)
	}

	before, err := store.ListBalancesByGroup(ctx, "trip")
	if err != nil {
		t.Fatalf("ListBalancesByGroup failed: %v", err)
	}
	if err := engine.Recompute(ctx, "trip", "alice"); err != nil {
		t.Fatalf("Recompute failed: %v", err)
	}
	after, err := store.ListBalancesByGroup(ctx, "trip")
	if err != nil {
		t.Fatalf("ListBalancesByGroup failed: %v", err)
	}

	if len(before) != len(after) {
		t.Fatalf("record count changed: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if before[i].UserID != after[i].UserID {
			t.Errorf("record %d user changed: %s -> %s", i, before[i].UserID, after[i].UserID)
		}
		if len(before[i].Entries) != len(after[i].Entries) {
			t.Fatalf("record %d entry count changed: %d -> %d", i, len(before[i].Entries), len(after[i].Entries))
		}
		for j := range before[i].Entries {
			if before[i].Entries[j] != after[i].Entries[j] {
				t.Errorf("record %d entry %d changed: %+v -> %+v", i, j, before[i].Entries[j], after[i].Entries[j])
			}
		}
	}
}

func TestSettleReducesDebt(t *testing.T) {
	engine, _ := setupEngine(t)
	ctx := context.Background()

	addEqualExpense(t, engine, "alice", 90)
	if _, err := engine.Settle(ctx, "bob", ledger.SettlementInput{
		GroupID: "trip", FromUserID: "bob", ToUserID: "alice", Amount: 30,
	}); err != nil {
		t.Fatalf("Settle failed: %v", err)
	}

	edges, err := engine.GroupBalances(ctx, "trip")
	if err != nil {
		t.Fatalf("GroupBalances failed: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("expected 1 remaining debt, got %+v", edges)
	}
	if got := findEdge(t, edges, "carol", "alice"); got != 30 {
		t.Errorf("carol owes alice %.2f, want 30", got)
	}
}

func TestOverpaymentFlipsDirection(t *testing.T) {
	engine, _ := setupEngine(t)
	ctx := context.Background()

	addEqualExpense(t, engine, "alice", 90)
	if _, err := engine.Settle(ctx, "bob", ledger.SettlementInput{
		GroupID: "trip", FromUserID: "bob", ToUserID: "alice", Amount: 50,
	}); err != nil {
		t.Fatalf("Settle failed: %v", err)
	}

	edges, err := engine.GroupBalances(ctx, "trip")
	if err != nil {
		t.Fatalf("GroupBalances failed: %v", err)
	}
	if got := findEdge(t, edges, "alice", "bob"); got != 20 {
		t.Errorf("alice owes bob %.2f, want 20 after overpayment", got)
	}
}

func TestSubEpsilonBalancesPruned(t *testing.T) {
	engine, store := setupEngine(t)
	ctx := context.Background()

	_, err := engine.AddExpense(ctx, "alice", ledger.ExpenseInput{
		GroupID:     "trip",
		Description: "groceries",
		Amount:      100,
		PaidBy:      "alice",
		SplitType:   models.SplitExact,
		Splits: []calculator.SplitInput{
			{UserID: "bob", Amount: 99.995},
			{UserID: "carol", Amount: 0.005},
		},
	})
	if err != nil {
		t.Fatalf("AddExpense failed: %v", err)
	}

	balances, err := store.ListBalancesByGroup(ctx, "trip")
	if err != nil {
		t.Fatalf("ListBalancesByGroup failed: %v", err)
	}
	for _, bal := range balances {
		if bal.UserID == "carol" {
			t.Errorf("carol's sub-epsilon debt was not pruned: %+v", bal.Entries)
		}
		for _, entry := range bal.Entries {
			if entry.OtherUserID == "carol" {
				t.Errorf("entry against carol was not pruned: %+v", entry)
			}
			if math.Abs(entry.Amount) < 0.01 {
				t.Errorf("stored entry below epsilon: %+v", entry)
			}
		}
	}
}

func TestArchiveOnFullSettlement(t *testing.T) {
	engine, store := setupEngine(t)
	ctx := context.Background()

	addEqualExpense(t, engine, "alice", 90)
	if _, err := engine.Settle(ctx, "bob", ledger.SettlementInput{
		GroupID: "trip", FromUserID: "bob", ToUserID: "alice", Amount: 30,
	}); err != nil {
		t.Fatalf("Settle failed: %v", err)
	}

	// The group still has an open debt, so nothing is archived yet.
	expenses, err := store.ListExpensesByGroup(ctx, "trip")
	if err != nil {
		t.Fatalf("ListExpensesByGroup failed: %v", err)
	}
	if len(expenses) != 1 {
		t.Fatalf("expenses archived too early: %d left", len(expenses))
	}

	if _, err := engine.Settle(ctx, "carol", ledger.SettlementInput{
		GroupID: "trip", FromUserID: "carol", ToUserID: "alice", Amount: 30,
	}); err != nil {
		t.Fatalf("Settle failed: %v", err)
	}

	expenses, err = store.ListExpensesByGroup(ctx, "trip")
	if err != nil {
		t.Fatalf("ListExpensesByGroup failed: %v", err)
	}
	if len(expenses) != 0 {
		t.Errorf("expected archived expenses to be deleted, %d left", len(expenses))
	}
	settlements, err := store.ListSettlementsByGroup(ctx, "trip")
	if err != nil {
		t.Fatalf("ListSettlementsByGroup failed: %v", err)
	}
	if len(settlements) != 0 {
		t.Errorf("expected settlements to be cleared, %d left", len(settlements))
	}
	balances, err := store.ListBalancesByGroup(ctx, "trip")
	if err != nil {
		t.Fatalf("ListBalancesByGroup failed: %v", err)
	}
	if len(balances) != 0 {
		t.Errorf("expected balances to be cleared, %d left", len(balances))
	}

	settled, err := store.ListSettledExpensesByUser(ctx, "carol", 0)
	if err != nil {
		t.Fatalf("ListSettledExpensesByUser failed: %v", err)
	}
	if len(settled) != 1 {
		t.Fatalf("expected 1 settled expense snapshot, got %d", len(settled))
	}
	if settled[0].Description != "dinner" || settled[0].Amount != 90 {
		t.Errorf("snapshot mismatch: %+v", settled[0])
	}
	if settled[0].SettledBy != "carol" {
		t.Errorf("snapshot settled_by = %s, want carol", settled[0].SettledBy)
	}
}

func TestSettlementRequestLifecycle(t *testing.T) {
	engine, store := setupEngine(t)
	ctx := context.Background()

	addEqualExpense(t, engine, "alice", 90)

	input := ledger.SettlementInput{GroupID: "trip", FromUserID: "bob", ToUserID: "alice", Amount: 30}

	t.Run("only the debtor may create", func(t *testing.T) {
		_, err := engine.CreateSettlementRequest(ctx, "carol", input)
		assertKind(t, err, apperr.Authorization)
	})

	request, err := engine.CreateSettlementRequest(ctx, "bob", input)
	if err != nil {
		t.Fatalf("CreateSettlementRequest failed: %v", err)
	}
	if request.Status != models.RequestPending {
		t.Fatalf("new request status = %s, want pending", request.Status)
	}

	t.Run("duplicate pending request is rejected", func(t *testing.T) {
		_, err := engine.CreateSettlementRequest(ctx, "bob", input)
		assertKind(t, err, apperr.Conflict)
	})

	t.Run("opposite direction is not a duplicate", func(t *testing.T) {
		addEqualExpense(t, engine, "bob", 300)
		reverse, err := engine.CreateSettlementRequest(ctx, "alice", ledger.SettlementInput{
			GroupID: "trip", FromUserID: "alice", ToUserID: "bob", Amount: 70,
		})
		if err != nil {
			t.Fatalf("reverse request failed: %v", err)
		}
		if _, err := engine.RejectSettlementRequest(ctx, "bob", reverse.ID); err != nil {
			t.Fatalf("RejectSettlementRequest failed: %v", err)
		}
		if err := store.DeleteExpense(ctx, expenseIDByAmount(t, store, "trip", 300)); err != nil {
			t.Fatalf("cleanup delete failed: %v", err)
		}
		if err := engine.Recompute(ctx, "trip", "alice"); err != nil {
			t.Fatalf("Recompute failed: %v", err)
		}
	})

	t.Run("only the recipient may approve", func(t *testing.T) {
		_, err := engine.ApproveSettlementRequest(ctx, "bob", request.ID)
		assertKind(t, err, apperr.Authorization)
	})

	approved, err := engine.ApproveSettlementRequest(ctx, "alice", request.ID)
	if err != nil {
		t.Fatalf("ApproveSettlementRequest failed: %v", err)
	}
	if approved.Status != models.RequestApproved {
		t.Errorf("status = %s, want approved", approved.Status)
	}
	if approved.ResolvedBy != "alice" || approved.ResolvedAt == 0 {
		t.Errorf("resolution fields not set: %+v", approved)
	}

	t.Run("approval settles the debt", func(t *testing.T) {
		edges, err := engine.GroupBalances(ctx, "trip")
		if err != nil {
			t.Fatalf("GroupBalances failed: %v", err)
		}
		for _, e := range edges {
			if e.FromUserID == "bob" && e.ToUserID == "alice" {
				t.Errorf("bob still owes alice %.2f after approval", e.Amount)
			}
		}
	})

	t.Run("resolved requests are immutable", func(t *testing.T) {
		_, err := engine.ApproveSettlementRequest(ctx, "alice", request.ID)
		assertKind(t, err, apperr.Conflict)
		_, err = engine.RejectSettlementRequest(ctx, "alice", request.ID)
		assertKind(t, err, apperr.Conflict)
	})
}

func expenseIDByAmount(t *testing.T, store storage.Store, groupID string, amount float64) string {
	t.Helper()
	expenses, err := store.ListExpensesByGroup(context.Background(), groupID)
	if err != nil {
		t.Fatalf("ListExpensesByGroup failed: %v", err)
	}
	for _, exp := range expenses {
		if exp.Amount == amount {
			return exp.ID
		}
	}
	t.Fatalf("no expense with amount %.2f in group", amount)
	return ""
}

func TestRejectLeavesLedgerUntouched(t *testing.T) {
	engine, store := setupEngine(t)
	ctx := context.Background()

	addEqualExpense(t, engine, "alice", 90)
	before, err := store.ListBalancesByGroup(ctx, "trip")
	if err != nil {
		t.Fatalf("ListBalancesByGroup failed: %v", err)
	}

	request, err := engine.CreateSettlementRequest(ctx, "bob", ledger.SettlementInput{
		GroupID: "trip", FromUserID: "bob", ToUserID: "alice", Amount: 30,
	})
	if err != nil {
		t.Fatalf("CreateSettlementRequest failed: %v", err)
	}
	rejected, err := engine.RejectSettlementRequest(ctx, "alice", request.ID)
	if err != nil {
		t.Fatalf("RejectSettlementRequest failed: %v", err)
	}
	if rejected.Status != models.RequestRejected {
		t.Errorf("status = %s, want rejected", rejected.Status)
	}

	after, err := store.ListBalancesByGroup(ctx, "trip")
	if err != nil {
		t.Fatalf("ListBalancesByGroup failed: %v", err)
	}
	if len(before) != len(after) {
		t.Fatalf("balances changed on rejection: %d -> %d records", len(before), len(after))
	}
	settlements, err := store.ListSettlementsByGroup(ctx, "trip")
	if err != nil {
		t.Fatalf("ListSettlementsByGroup failed: %v", err)
	}
	if len(settlements) != 0 {
		t.Errorf("rejection created a settlement: %+v", settlements)
	}
}

func TestDeleteExpenseRecomputes(t *testing.T) {
	engine, store := setupEngine(t)
	ctx := context.Background()

	expense := addEqualExpense(t, engine, "alice", 90)
	addEqualExpense(t, engine, "alice", 30)

	if err := engine.DeleteExpense(ctx, "bob", expense.ID); err != nil {
		t.Fatalf("DeleteExpense failed: %v", err)
	}

	edges, err := engine.GroupBalances(ctx, "trip")
	if err != nil {
		t.Fatalf("GroupBalances failed: %v", err)
	}
	if got := findEdge(t, edges, "bob", "alice"); got != 10 {
		t.Errorf("bob owes alice %.2f, want 10 after delete", got)
	}
	if sum := balanceSum(t, store, "trip"); math.Abs(sum) > 1e-9 {
		t.Errorf("balances do not conserve: sum = %v", sum)
	}

	t.Run("deleting the last expense archives nothing and clears balances", func(t *testing.T) {
		expenses, err := store.ListExpensesByGroup(ctx, "trip")
		if err != nil {
			t.Fatalf("ListExpensesByGroup failed: %v", err)
		}
		if err := engine.DeleteExpense(ctx, "alice", expenses[0].ID); err != nil {
			t.Fatalf("DeleteExpense failed: %v", err)
		}
		balances, err := store.ListBalancesByGroup(ctx, "trip")
		if err != nil {
			t.Fatalf("ListBalancesByGroup failed: %v", err)
		}
		if len(balances) != 0 {
			t.Errorf("expected no balances, got %+v", balances)
		}
	})
}

func TestUserBalancesView(t *testing.T) {
	engine, _ := setupEngine(t)
	ctx := context.Background()

	addEqualExpense(t, engine, "alice", 90)
	addEqualExpense(t, engine, "bob", 30)

	views, err := engine.UserBalances(ctx, "bob")
	if err != nil {
		t.Fatalf("UserBalances failed: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 group view, got %d", len(views))
	}
	view := views[0]
	if view.GroupID != "trip" {
		t.Errorf("group = %s, want trip", view.GroupID)
	}
	// bob owes alice 30 - 10 = 20, carol owes bob 10.
	if view.TotalOwes != 20 {
		t.Errorf("TotalOwes = %.2f, want 20", view.TotalOwes)
	}
	if view.TotalOwedBy != 10 {
		t.Errorf("TotalOwedBy = %.2f, want 10", view.TotalOwedBy)
	}
}
