// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/expenseshare/server/internal/models"
)

// ErrNotFound is returned by lookups for rows that do not exist.
var ErrNotFound = errors.New("storage: not found")

// ErrDuplicate is returned when an insert loses a race against a uniqueness
// constraint, such as the pending settlement-request index.
var ErrDuplicate = errors.New("storage: duplicate")

// RequestRole filters settlement-request listings by the user's side.
type RequestRole string

const (
	RoleIncoming RequestRole = "incoming"
	RoleOutgoing RequestRole = "outgoing"
	RoleAll      RequestRole = "all"
)

// Store defines the interface for ledger storage operations. This
// abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service or ledger layer.
//
// Single-row operations are transactional on their own. Multi-row
// operations that the ledger depends on for consistency
// (ReplaceGroupBalances, ArchiveGroup, DeleteGroupCascade) must be atomic:
// they either apply fully or leave prior state untouched.
type Store interface {
	// Users.
	CreateUser(ctx context.Context, user *models.User) error
	// GetUserByEmail returns (nil, nil) when no user has the email.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// GetUserByID returns (nil, nil) when the user does not exist.
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)

	// Groups.
	CreateGroup(ctx context.Context, group *models.Group) error
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)
	ListGroupsByMember(ctx context.Context, userID string) ([]*models.Group, error)
	AddGroupMember(ctx context.Context, groupID, userID string) error
	RemoveGroupMember(ctx context.Context, groupID, userID string) error
	// DeleteGroupCascade removes the group and every expense, balance,
	// settlement, settlement request and settled-expense snapshot that
	// references it, atomically.
	DeleteGroupCascade(ctx context.Context, groupID string) error

	// Expenses.
	CreateExpense(ctx context.Context, expense *models.Expense) error
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)
	ListExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error)
	ListExpensesByGroups(ctx context.Context, groupIDs []string) ([]*models.Expense, error)
	DeleteExpense(ctx context.Context, expenseID string) error

	// Settlements (append-only).
	CreateSettlement(ctx context.Context, settlement *models.Settlement) error
	ListSettlementsByGroup(ctx context.Context, groupID string) ([]*models.Settlement, error)

	// Settlement requests.
	CreateSettlementRequest(ctx context.Context, req *models.SettlementRequest) error
	GetSettlementRequest(ctx context.Context, requestID string) (*models.SettlementRequest, error)
	// FindPendingSettlementRequest returns (nil, nil) when no pending
	// request exists for the exact (from, to, group) triple.
	FindPendingSettlementRequest(ctx context.Context, fromUserID, toUserID, groupID string) (*models.SettlementRequest, error)
	ListSettlementRequests(ctx context.Context, userID string, role RequestRole, limit int) ([]*models.SettlementRequest, error)
	UpdateSettlementRequest(ctx context.Context, req *models.SettlementRequest) error

	// Balances (derived records, written only via ReplaceGroupBalances).
	ListBalancesByGroup(ctx context.Context, groupID string) ([]*models.Balance, error)
	ListBalancesByUser(ctx context.Context, userID string) ([]*models.Balance, error)
	// ReplaceGroupBalances atomically swaps the group's entire balance
	// record set for the given one. Records absent from the new set are
	// deleted; an empty set clears the group's ledger.
	ReplaceGroupBalances(ctx context.Context, groupID string, balances []*models.Balance) error

	// Archival.
	// ArchiveGroup snapshots every expense of the group into settled
	// expenses, then deletes the group's expenses, balances and
	// settlements, all in one transaction. Settlement requests are kept.
	ArchiveGroup(ctx context.Context, groupID, settledBy string, settledAt int64) error
	ListSettledExpensesByUser(ctx context.Context, userID string, limit int) ([]*models.SettledExpense, error)

	// Close releases any resources held by the store.
	Close() error
}
