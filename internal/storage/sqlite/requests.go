package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/expenseshare/server/internal/models"
	"github.com/expenseshare/server/internal/storage"
)

const requestColumns = "id, group_id, from_user_id, to_user_id, amount, status, created_at, resolved_by, resolved_at"

func scanRequest(scan func(dest ...interface{}) error) (*models.SettlementRequest, error) {
	req := &models.SettlementRequest{}
	var status string
	var resolvedBy sql.NullString
	var resolvedAt sql.NullInt64

	if err := scan(&req.ID, &req.GroupID, &req.FromUserID, &req.ToUserID,
		&req.Amount, &status, &req.CreatedAt, &resolvedBy, &resolvedAt); err != nil {
		return nil, err
	}

	req.Status = models.RequestStatus(status)
	if resolvedBy.Valid {
		req.ResolvedBy = resolvedBy.String
	}
	if resolvedAt.Valid {
		req.ResolvedAt = resolvedAt.Int64
	}
	return req, nil
}

// CreateSettlementRequest persists a new pending settlement request.
func (s *SQLiteStore) CreateSettlementRequest(ctx context.Context, req *models.SettlementRequest) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.CreatedAt == 0 {
		req.CreatedAt = time.Now().Unix()
	}
	if req.Status == "" {
		req.Status = models.RequestPending
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settlement_requests (id, group_id, from_user_id, to_user_id, amount, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.GroupID, req.FromUserID, req.ToUserID, req.Amount, string(req.Status), req.CreatedAt,
	)
	if err != nil {
		// The partial unique index on pending (from, to, group) is the
		// backstop for concurrent creations racing past the engine's check.
		if isConstraintErr(err) {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("failed to insert settlement request: %w", err)
	}
	return nil
}

// GetSettlementRequest retrieves a settlement request by ID.
func (s *SQLiteStore) GetSettlementRequest(ctx context.Context, requestID string) (*models.SettlementRequest, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+requestColumns+" FROM settlement_requests WHERE id = ?", requestID,
	)
	req, err := scanRequest(row.Scan)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement request: %w", err)
	}
	return req, nil
}

// FindPendingSettlementRequest looks for a pending request for the exact
// (from, to, group) triple. Returns (nil, nil) when none exists.
func (s *SQLiteStore) FindPendingSettlementRequest(ctx context.Context, fromUserID, toUserID, groupID string) (*models.SettlementRequest, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+requestColumns+` FROM settlement_requests
		 WHERE from_user_id = ? AND to_user_id = ? AND group_id = ? AND status = 'pending'`,
		fromUserID, toUserID, groupID,
	)
	req, err := scanRequest(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find pending settlement request: %w", err)
	}
	return req, nil
}

// ListSettlementRequests retrieves requests where the user is the recipient
// (incoming), the sender (outgoing), or either, newest first.
func (s *SQLiteStore) ListSettlementRequests(ctx context.Context, userID string, role storage.RequestRole, limit int) ([]*models.SettlementRequest, error) {
	if limit <= 0 {
		limit = -1 // no limit
	}
	var where string
	args := []interface{}{userID}
	switch role {
	case storage.RoleIncoming:
		where = "to_user_id = ?"
	case storage.RoleOutgoing:
		where = "from_user_id = ?"
	default:
		where = "(to_user_id = ? OR from_user_id = ?)"
		args = append(args, userID)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+requestColumns+" FROM settlement_requests WHERE "+where+
			" ORDER BY created_at DESC, id LIMIT ?",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlement requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.SettlementRequest
	for rows.Next() {
		req, err := scanRequest(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settlement request: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlement requests: %w", err)
	}
	return requests, nil
}

// UpdateSettlementRequest writes the request's status and resolution fields.
func (s *SQLiteStore) UpdateSettlementRequest(ctx context.Context, req *models.SettlementRequest) error {
	var resolvedBy interface{} = nil
	if req.ResolvedBy != "" {
		resolvedBy = req.ResolvedBy
	}
	var resolvedAt interface{} = nil
	if req.ResolvedAt != 0 {
		resolvedAt = req.ResolvedAt
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE settlement_requests SET status = ?, resolved_by = ?, resolved_at = ? WHERE id = ?",
		string(req.Status), resolvedBy, resolvedAt, req.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update settlement request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
