package models

// SplitType selects how an expense amount is divided among members.
type SplitType string

const (
	// SplitEqual divides the amount evenly across all group members.
	SplitEqual SplitType = "equal"
	// SplitExact uses caller-provided per-member amounts.
	SplitExact SplitType = "exact"
	// SplitPercentage uses caller-provided per-member percentages.
	SplitPercentage SplitType = "percentage"
)

// Valid reports whether t is one of the supported split types.
func (t SplitType) Valid() bool {
	switch t {
	case SplitEqual, SplitExact, SplitPercentage:
		return true
	}
	return false
}

// Split is the portion of an expense owed by one member.
type Split struct {
	UserID string  `json:"userId"`
	Amount float64 `json:"amount"`
}

// Expense represents a shared cost paid by one member and split across the
// group. Splits are computed server-side and always sum to Amount within the
// currency epsilon.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string `json:"id"`

	// GroupID is the owning group.
	GroupID string `json:"groupId"`

	// Description is the human-readable label (e.g., "Dinner", "Taxi").
	Description string `json:"description"`

	// Amount is the full expense amount paid by PaidBy.
	Amount float64 `json:"amount"`

	// PaidBy is the user ID of the payer. Must be a group member.
	PaidBy string `json:"paidBy"`

	// SplitType records the rule used to produce Splits.
	SplitType SplitType `json:"splitType"`

	// Splits is the per-member share breakdown. Only members appear, every
	// amount is positive, and the payer's own share carries no debt.
	Splits []Split `json:"splits"`

	// CreatedAt is the Unix timestamp when the expense was logged.
	CreatedAt int64 `json:"createdAt"`
}
