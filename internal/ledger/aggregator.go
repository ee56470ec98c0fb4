package ledger

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/expenseshare/server/internal/apperr"
	"github.com/expenseshare/server/internal/models"
	"github.com/expenseshare/server/internal/money"
)

// Recompute rebuilds a group's balances from its full expense and settlement
// history and archives the group if everything nets to zero. It is the entry
// point for callers that changed source records outside the engine, such as
// member removal.
func (e *Engine) Recompute(ctx context.Context, groupID, actorID string) error {
	lock := e.groupLock(groupID)
	lock.Lock()
	defer lock.Unlock()

	if err := e.recompute(ctx, groupID); err != nil {
		return err
	}
	return e.checkAndArchive(ctx, groupID, actorID)
}

// recompute derives net pairwise balances from scratch and atomically
// replaces the group's stored balance rows. Caller must hold the group lock.
func (e *Engine) recompute(ctx context.Context, groupID string) error {
	recomputesTotal.Inc()

	expenses, err := e.store.ListExpensesByGroup(ctx, groupID)
	if err != nil {
		recomputeFailures.Inc()
		return apperr.Wrap(apperr.Integrity, err, "failed to load expenses for recompute")
	}
	settlements, err := e.store.ListSettlementsByGroup(ctx, groupID)
	if err != nil {
		recomputeFailures.Inc()
		return apperr.Wrap(apperr.Integrity, err, "failed to load settlements for recompute")
	}

	// net[a][b] > 0 means a owes b. Every contribution is mirrored with the
	// opposite sign so the whole map always sums to zero.
	net := make(map[string]map[string]float64)
	add := func(owner, other string, amount float64) {
		if net[owner] == nil {
			net[owner] = make(map[string]float64)
		}
		net[owner][other] += amount
	}

	for _, exp := range expenses {
		for _, split := range exp.Splits {
			if split.Amount <= 0 || split.UserID == exp.PaidBy {
				continue
			}
			add(split.UserID, exp.PaidBy, split.Amount)
			add(exp.PaidBy, split.UserID, -split.Amount)
		}
	}
	for _, st := range settlements {
		add(st.FromUserID, st.ToUserID, -st.Amount)
		add(st.ToUserID, st.FromUserID, st.Amount)
	}

	// Deterministic output: users and counterparties in sorted order, so two
	// recomputes over the same history produce identical rows.
	userIDs := make([]string, 0, len(net))
	for uid := range net {
		userIDs = append(userIDs, uid)
	}
	sort.Strings(userIDs)

	now := time.Now().Unix()
	balances := make([]*models.Balance, 0, len(userIDs))
	for _, uid := range userIDs {
		otherIDs := make([]string, 0, len(net[uid]))
		for other := range net[uid] {
			otherIDs = append(otherIDs, other)
		}
		sort.Strings(otherIDs)

		entries := make([]models.BalanceEntry, 0, len(otherIDs))
		for _, other := range otherIDs {
			amount := net[uid][other]
			if money.IsZero(amount) {
				continue
			}
			entries = append(entries, models.BalanceEntry{OtherUserID: other, Amount: amount})
		}
		if len(entries) == 0 {
			continue
		}
		balances = append(balances, &models.Balance{
			UserID:    uid,
			GroupID:   groupID,
			Entries:   entries,
			UpdatedAt: now,
		})
	}

	if err := e.store.ReplaceGroupBalances(ctx, groupID, balances); err != nil {
		recomputeFailures.Inc()
		return apperr.Wrap(apperr.Integrity, err, "failed to persist recomputed balances")
	}

	slog.Debug("Recomputed group balances",
		"group_id", groupID,
		"expenses", len(expenses),
		"settlements", len(settlements),
		"balances", len(balances))
	return nil
}
