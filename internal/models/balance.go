package models

// BalanceEntry is one counterparty line in a user's balance record.
// Positive means the record owner owes the counterparty; negative means the
// counterparty owes the owner.
type BalanceEntry struct {
	OtherUserID string  `json:"otherUserId"`
	Amount      float64 `json:"amount"`
}

// Balance is one user's net ledger view within one group. It is a derived
// record: the aggregator fully recomputes it from expenses and settlements,
// and no other code path writes it. Entries never hold amounts below the
// currency epsilon, and a record with no entries is deleted, not persisted.
type Balance struct {
	UserID    string         `json:"userId"`
	GroupID   string         `json:"groupId"`
	Entries   []BalanceEntry `json:"entries"`
	UpdatedAt int64          `json:"updatedAt"`
}

// SettledExpense is a frozen snapshot of an expense, written when a group's
// ledger reaches all-zero and its live records are purged. Append-only.
type SettledExpense struct {
	ID          string  `json:"id"`
	ExpenseID   string  `json:"expenseId"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	GroupID     string  `json:"groupId"`
	SettledBy   string  `json:"settledBy"`
	SettledAt   int64   `json:"settledAt"`
}
