package ledger

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/expenseshare/server/internal/apperr"
	"github.com/expenseshare/server/internal/calculator"
	"github.com/expenseshare/server/internal/models"
	"github.com/expenseshare/server/internal/storage"
)

// ExpenseInput is a request to record a new shared expense.
type ExpenseInput struct {
	GroupID     string
	Description string
	Amount      float64
	PaidBy      string
	SplitType   models.SplitType
	Splits      []calculator.SplitInput
}

// AddExpense validates and records an expense on behalf of actorID, then
// recomputes the group's balances.
func (e *Engine) AddExpense(ctx context.Context, actorID string, in ExpenseInput) (*models.Expense, error) {
	if strings.TrimSpace(in.Description) == "" {
		return nil, apperr.New(apperr.Validation, "Description cannot be empty")
	}

	group, err := e.store.GetGroup(ctx, in.GroupID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, "Group not found")
		}
		return nil, apperr.Wrap(apperr.Integrity, err, "failed to load group")
	}
	if !group.HasMember(actorID) {
		return nil, apperr.New(apperr.Authorization, "Not authorized for this group")
	}
	if !group.HasMember(in.PaidBy) {
		return nil, apperr.New(apperr.Validation, "Payer must be a group member")
	}

	splits, err := calculator.Compute(in.Amount, in.SplitType, group.Members, in.Splits)
	if err != nil {
		return nil, err
	}

	lock := e.groupLock(in.GroupID)
	lock.Lock()
	defer lock.Unlock()

	expense := &models.Expense{
		GroupID:     in.GroupID,
		Description: strings.TrimSpace(in.Description),
		Amount:      in.Amount,
		PaidBy:      in.PaidBy,
		SplitType:   in.SplitType,
		Splits:      splits,
	}
	if err := e.store.CreateExpense(ctx, expense); err != nil {
		return nil, apperr.Wrap(apperr.Integrity, err, "failed to create expense")
	}

	if err := e.recompute(ctx, in.GroupID); err != nil {
		return nil, err
	}
	if err := e.checkAndArchive(ctx, in.GroupID, actorID); err != nil {
		return nil, err
	}

	slog.Info("Expense added",
		"expense_id", expense.ID,
		"group_id", in.GroupID,
		"amount", in.Amount,
		"split_type", in.SplitType)
	return expense, nil
}

// DeleteExpense removes an expense and recomputes the group's balances.
func (e *Engine) DeleteExpense(ctx context.Context, actorID, expenseID string) error {
	expense, err := e.store.GetExpense(ctx, expenseID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.New(apperr.NotFound, "Expense not found")
		}
		return apperr.Wrap(apperr.Integrity, err, "failed to load expense")
	}

	group, err := e.store.GetGroup(ctx, expense.GroupID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.New(apperr.NotFound, "Group not found")
		}
		return apperr.Wrap(apperr.Integrity, err, "failed to load group")
	}
	if !group.HasMember(actorID) {
		return apperr.New(apperr.Authorization, "Not authorized for this group")
	}

	lock := e.groupLock(expense.GroupID)
	lock.Lock()
	defer lock.Unlock()

	if err := e.store.DeleteExpense(ctx, expenseID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.New(apperr.NotFound, "Expense not found")
		}
		return apperr.Wrap(apperr.Integrity, err, "failed to delete expense")
	}

	if err := e.recompute(ctx, expense.GroupID); err != nil {
		return err
	}
	if err := e.checkAndArchive(ctx, expense.GroupID, actorID); err != nil {
		return err
	}

	slog.Info("Expense deleted", "expense_id", expenseID, "group_id", expense.GroupID)
	return nil
}
