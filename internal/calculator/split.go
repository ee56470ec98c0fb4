// Package calculator computes expense splits. It is pure: validation and
// arithmetic only, no storage access. Splits are always computed server-side
// so the ledger aggregator can trust that every persisted expense balances.
package calculator

import (
	"math"

	"github.com/expenseshare/server/internal/apperr"
	"github.com/expenseshare/server/internal/models"
	"github.com/expenseshare/server/internal/money"
)

// SplitInput is one caller-provided line for exact or percentage splits.
// Amount is used for exact splits, Percentage for percentage splits.
type SplitInput struct {
	UserID     string  `json:"userId"`
	Amount     float64 `json:"amount,omitempty"`
	Percentage float64 `json:"percentage,omitempty"`
}

// Compute validates the expense amount and split rule against the group's
// member set and returns the per-member owed amounts.
//
// Guarantees on success: the returned splits are non-empty, reference only
// group members, carry positive amounts, and sum to amount within the
// currency epsilon. On failure no splits are returned and the error explains
// the violated rule; totals are never silently clamped.
func Compute(amount float64, splitType models.SplitType, memberIDs []string, inputs []SplitInput) ([]models.Split, error) {
	if amount <= 0 {
		return nil, apperr.New(apperr.Validation, "Amount must be a positive number")
	}
	if !money.ValidAmount(amount) {
		return nil, apperr.New(apperr.Validation, "Amount is too large")
	}

	members := make(map[string]bool, len(memberIDs))
	for _, id := range memberIDs {
		members[id] = true
	}

	var splits []models.Split
	switch splitType {
	case models.SplitEqual:
		if len(memberIDs) == 0 {
			return nil, apperr.New(apperr.Validation, "Group must have at least one member")
		}
		share := amount / float64(len(memberIDs))
		splits = make([]models.Split, 0, len(memberIDs))
		for _, id := range memberIDs {
			splits = append(splits, models.Split{UserID: id, Amount: share})
		}

	case models.SplitPercentage:
		var err error
		splits, err = percentageSplits(amount, members, inputs)
		if err != nil {
			return nil, err
		}

	case models.SplitExact:
		var err error
		splits, err = exactSplits(amount, members, inputs)
		if err != nil {
			return nil, err
		}

	default:
		return nil, apperr.New(apperr.Validation, "Invalid split type. Must be 'equal', 'exact', or 'percentage'")
	}

	if len(splits) == 0 {
		return nil, apperr.New(apperr.Validation, "Expense must have at least one split")
	}
	return splits, nil
}

func percentageSplits(amount float64, members map[string]bool, inputs []SplitInput) ([]models.Split, error) {
	if len(inputs) == 0 {
		return nil, apperr.New(apperr.Validation, "Splits array is required for percentage split")
	}

	var totalPerc float64
	for _, in := range inputs {
		if !members[in.UserID] {
			return nil, apperr.New(apperr.Validation, "All split users must be group members")
		}
		// NaN compares false against every threshold, so non-finite values
		// must be rejected explicitly before the range checks.
		if math.IsNaN(in.Percentage) || math.IsInf(in.Percentage, 0) || in.Percentage < 0 {
			return nil, apperr.New(apperr.Validation, "Percentages must be non-negative numbers")
		}
		if in.Percentage > 100 {
			return nil, apperr.New(apperr.Validation, "Individual percentage cannot exceed 100%%")
		}
		totalPerc += in.Percentage
	}

	if totalPerc > 100+money.Epsilon {
		return nil, apperr.New(apperr.Validation, "Total percentage (%.1f%%) exceeds 100%%", totalPerc)
	}
	if totalPerc < 100-money.Epsilon {
		return nil, apperr.New(apperr.Validation, "Total percentage (%.1f%%) is less than 100%%. Total must equal 100%%", totalPerc)
	}

	splits := make([]models.Split, 0, len(inputs))
	for _, in := range inputs {
		share := amount * in.Percentage / 100
		if share > 0 {
			splits = append(splits, models.Split{UserID: in.UserID, Amount: share})
		}
	}
	return splits, nil
}

func exactSplits(amount float64, members map[string]bool, inputs []SplitInput) ([]models.Split, error) {
	if len(inputs) == 0 {
		return nil, apperr.New(apperr.Validation, "Splits array is required for exact split")
	}

	var total float64
	splits := make([]models.Split, 0, len(inputs))
	for _, in := range inputs {
		if !members[in.UserID] {
			return nil, apperr.New(apperr.Validation, "All split users must be group members")
		}
		if math.IsNaN(in.Amount) || math.IsInf(in.Amount, 0) || in.Amount < 0 {
			return nil, apperr.New(apperr.Validation, "Split amounts must be non-negative numbers")
		}
		if in.Amount > 0 {
			splits = append(splits, models.Split{UserID: in.UserID, Amount: in.Amount})
			total += in.Amount
		}
	}

	if total > amount+money.Epsilon {
		return nil, apperr.New(apperr.Validation, "Total split (%.2f) exceeds amount (%.2f)", total, amount)
	}
	if total < amount-money.Epsilon {
		return nil, apperr.New(apperr.Validation, "Total split (%.2f) is less than amount (%.2f). Total must equal the expense amount", total, amount)
	}
	return splits, nil
}
