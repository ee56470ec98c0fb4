package sqlite

import (
	"context"
	"fmt"

	"github.com/expenseshare/server/internal/models"
)

// ListBalancesByGroup retrieves every balance record for a group, with
// entries ordered by counterparty for deterministic output.
func (s *SQLiteStore) ListBalancesByGroup(ctx context.Context, groupID string) ([]*models.Balance, error) {
	return s.listBalances(ctx,
		"SELECT user_id, group_id, updated_at FROM balances WHERE group_id = ? ORDER BY user_id",
		groupID,
	)
}

// ListBalancesByUser retrieves a user's balance records across all groups.
func (s *SQLiteStore) ListBalancesByUser(ctx context.Context, userID string) ([]*models.Balance, error) {
	return s.listBalances(ctx,
		"SELECT user_id, group_id, updated_at FROM balances WHERE user_id = ? ORDER BY group_id",
		userID,
	)
}

func (s *SQLiteStore) listBalances(ctx context.Context, query string, arg string) ([]*models.Balance, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	defer rows.Close()

	var balances []*models.Balance
	for rows.Next() {
		balance := &models.Balance{}
		if err := rows.Scan(&balance.UserID, &balance.GroupID, &balance.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		balances = append(balances, balance)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate balances: %w", err)
	}

	for _, balance := range balances {
		entryRows, err := s.db.QueryContext(ctx,
			`SELECT other_user_id, amount FROM balance_entries
			 WHERE user_id = ? AND group_id = ? ORDER BY other_user_id`,
			balance.UserID, balance.GroupID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to get balance entries: %w", err)
		}
		for entryRows.Next() {
			var entry models.BalanceEntry
			if err := entryRows.Scan(&entry.OtherUserID, &entry.Amount); err != nil {
				entryRows.Close()
				return nil, fmt.Errorf("failed to scan balance entry: %w", err)
			}
			balance.Entries = append(balance.Entries, entry)
		}
		entryRows.Close()
		if err := entryRows.Err(); err != nil {
			return nil, fmt.Errorf("failed to iterate balance entries: %w", err)
		}
	}

	return balances, nil
}

// ReplaceGroupBalances swaps the group's entire balance record set in one
// transaction. The aggregator is the only caller; the delete-then-insert
// inside a single transaction is what makes recompute failures leave the
// prior ledger intact.
func (s *SQLiteStore) ReplaceGroupBalances(ctx context.Context, groupID string, balances []*models.Balance) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM balance_entries WHERE group_id = ?", groupID); err != nil {
		return fmt.Errorf("failed to clear balance entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM balances WHERE group_id = ?", groupID); err != nil {
		return fmt.Errorf("failed to clear balances: %w", err)
	}

	for _, balance := range balances {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO balances (user_id, group_id, updated_at) VALUES (?, ?, ?)",
			balance.UserID, groupID, balance.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert balance: %w", err)
		}
		for _, entry := range balance.Entries {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO balance_entries (user_id, group_id, other_user_id, amount) VALUES (?, ?, ?, ?)",
				balance.UserID, groupID, entry.OtherUserID, entry.Amount,
			); err != nil {
				return fmt.Errorf("failed to insert balance entry: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
