package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/expenseshare/server/internal/models"
)

// ArchiveGroup snapshots every expense of the group into settled_expenses,
// then deletes the group's expenses, balance records and settlements.
// Runs as one transaction so a partial failure never leaves expenses deleted
// without their snapshots; inserts are issued before any delete.
// Settlement requests are deliberately left in place.
func (s *SQLiteStore) ArchiveGroup(ctx context.Context, groupID, settledBy string, settledAt int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		"SELECT id, description, amount FROM expenses WHERE group_id = ?", groupID,
	)
	if err != nil {
		return fmt.Errorf("failed to read expenses for archive: %w", err)
	}

	type snapshot struct {
		expenseID   string
		description string
		amount      float64
	}
	var snapshots []snapshot
	for rows.Next() {
		var snap snapshot
		if err := rows.Scan(&snap.expenseID, &snap.description, &snap.amount); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan expense for archive: %w", err)
		}
		snapshots = append(snapshots, snap)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate expenses for archive: %w", err)
	}

	for _, snap := range snapshots {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO settled_expenses (id, expense_id, description, amount, group_id, settled_by, settled_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), snap.expenseID, snap.description, snap.amount,
			groupID, settledBy, settledAt,
		); err != nil {
			return fmt.Errorf("failed to insert settled expense: %w", err)
		}
	}

	deletes := []string{
		"DELETE FROM expense_splits WHERE expense_id IN (SELECT id FROM expenses WHERE group_id = ?)",
		"DELETE FROM expenses WHERE group_id = ?",
		"DELETE FROM balance_entries WHERE group_id = ?",
		"DELETE FROM balances WHERE group_id = ?",
		"DELETE FROM settlements WHERE group_id = ?",
	}
	for _, stmt := range deletes {
		if _, err := tx.ExecContext(ctx, stmt, groupID); err != nil {
			return fmt.Errorf("failed to clear archived group data: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListSettledExpensesByUser retrieves the most recent archive snapshots
// created by the given user.
func (s *SQLiteStore) ListSettledExpensesByUser(ctx context.Context, userID string, limit int) ([]*models.SettledExpense, error) {
	if limit <= 0 {
		limit = -1 // no limit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, expense_id, description, amount, group_id, settled_by, settled_at
		 FROM settled_expenses WHERE settled_by = ?
		 ORDER BY settled_at DESC, id LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list settled expenses: %w", err)
	}
	defer rows.Close()

	var settled []*models.SettledExpense
	for rows.Next() {
		se := &models.SettledExpense{}
		if err := rows.Scan(&se.ID, &se.ExpenseID, &se.Description, &se.Amount,
			&se.GroupID, &se.SettledBy, &se.SettledAt); err != nil {
			return nil, fmt.Errorf("failed to scan settled expense: %w", err)
		}
		settled = append(settled, se)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settled expenses: %w", err)
	}
	return settled, nil
}
