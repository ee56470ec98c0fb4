package ledger

import (
	"context"
	"errors"

	"github.com/expenseshare/server/internal/apperr"
	"github.com/expenseshare/server/internal/money"
	"github.com/expenseshare/server/internal/storage"
)

// CounterpartyAmount is one leg of a user's balance, always positive.
type CounterpartyAmount struct {
	UserID string  `json:"userId"`
	Amount float64 `json:"amount"`
}

// UserGroupBalance is a user's position in one group, partitioned into the
// debts they owe and the debts owed to them.
type UserGroupBalance struct {
	GroupID     string               `json:"groupId"`
	Owes        []CounterpartyAmount `json:"owes"`
	OwedBy      []CounterpartyAmount `json:"owedBy"`
	TotalOwes   float64              `json:"totalOwes"`
	TotalOwedBy float64              `json:"totalOwedBy"`
}

// DebtEdge is one outstanding debt inside a group.
type DebtEdge struct {
	FromUserID string  `json:"fromUserId"`
	ToUserID   string  `json:"toUserId"`
	Amount     float64 `json:"amount"`
}

// UserBalances returns the user's position across all groups where they have
// outstanding balances.
func (e *Engine) UserBalances(ctx context.Context, userID string) ([]UserGroupBalance, error) {
	balances, err := e.store.ListBalancesByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Integrity, err, "failed to load user balances")
	}

	result := make([]UserGroupBalance, 0, len(balances))
	for _, bal := range balances {
		view := UserGroupBalance{
			GroupID: bal.GroupID,
			Owes:    []CounterpartyAmount{},
			OwedBy:  []CounterpartyAmount{},
		}
		for _, entry := range bal.Entries {
			if money.IsZero(entry.Amount) {
				continue
			}
			if entry.Amount > 0 {
				view.Owes = append(view.Owes, CounterpartyAmount{UserID: entry.OtherUserID, Amount: entry.Amount})
				view.TotalOwes += entry.Amount
			} else {
				view.OwedBy = append(view.OwedBy, CounterpartyAmount{UserID: entry.OtherUserID, Amount: -entry.Amount})
				view.TotalOwedBy += -entry.Amount
			}
		}
		result = append(result, view)
	}
	return result, nil
}

// GroupBalances returns every outstanding debt in the group as a directed
// edge from debtor to creditor.
func (e *Engine) GroupBalances(ctx context.Context, groupID string) ([]DebtEdge, error) {
	if _, err := e.store.GetGroup(ctx, groupID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, "Group not found")
		}
		return nil, apperr.Wrap(apperr.Integrity, err, "failed to load group")
	}

	balances, err := e.store.ListBalancesByGroup(ctx, groupID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Integrity, err, "failed to load group balances")
	}

	// Each debt appears on both sides with opposite signs; keep only the
	// debtor's positive side so every edge is reported once.
	edges := make([]DebtEdge, 0)
	for _, bal := range balances {
		for _, entry := range bal.Entries {
			if entry.Amount < money.Epsilon {
				continue
			}
			edges = append(edges, DebtEdge{
				FromUserID: bal.UserID,
				ToUserID:   entry.OtherUserID,
				Amount:     entry.Amount,
			})
		}
	}
	return edges, nil
}
