package models

// Settlement represents a completed payment between group members to clear
// debt. Settlements are append-only: they are never edited, and deleted only
// when their group is deleted or archived.
type Settlement struct {
	// ID is the unique identifier for the settlement (UUID format).
	ID string `json:"id"`

	// GroupID is the group this settlement belongs to.
	GroupID string `json:"groupId"`

	// FromUserID is the user who paid (debtor settling up).
	FromUserID string `json:"fromUserId"`

	// ToUserID is the user who received payment (creditor being paid).
	ToUserID string `json:"toUserId"`

	// Amount is the payment amount.
	Amount float64 `json:"amount"`

	// CreatedAt is the Unix timestamp when the settlement was recorded.
	CreatedAt int64 `json:"createdAt"`

	// CreatedBy is the user ID who triggered this settlement (the payer
	// for direct settlements, the approving recipient for requests).
	CreatedBy string `json:"createdBy"`

	// Note is an optional description for the settlement.
	Note string `json:"note,omitempty"`
}

// RequestStatus is the lifecycle state of a SettlementRequest.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// SettlementRequest is a proposed settlement awaiting the recipient's
// decision. It transitions exactly once from pending to approved or
// rejected; approval creates a Settlement, rejection has no ledger effect.
type SettlementRequest struct {
	ID         string        `json:"id"`
	GroupID    string        `json:"groupId"`
	FromUserID string        `json:"fromUserId"`
	ToUserID   string        `json:"toUserId"`
	Amount     float64       `json:"amount"`
	Status     RequestStatus `json:"status"`
	CreatedAt  int64         `json:"createdAt"`

	// ResolvedBy and ResolvedAt are set when the request leaves pending.
	ResolvedBy string `json:"resolvedBy,omitempty"`
	ResolvedAt int64  `json:"resolvedAt,omitempty"`
}
