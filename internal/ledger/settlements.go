package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/expenseshare/server/internal/apperr"
	"github.com/expenseshare/server/internal/models"
	"github.com/expenseshare/server/internal/money"
	"github.com/expenseshare/server/internal/storage"
)

// SettlementInput is a request to record a payment between two members.
type SettlementInput struct {
	GroupID    string
	FromUserID string
	ToUserID   string
	Amount     float64
	Note       string
}

func validateSettlementInput(in SettlementInput) error {
	if in.GroupID == "" || in.FromUserID == "" || in.ToUserID == "" {
		return apperr.New(apperr.Validation, "groupId, fromUserId and toUserId are required")
	}
	if !money.ValidAmount(in.Amount) {
		return apperr.New(apperr.Validation, "Amount must be a positive number")
	}
	if in.FromUserID == in.ToUserID {
		return apperr.New(apperr.Validation, "Cannot settle a balance with yourself")
	}
	return nil
}

// Settle records a direct payment from FromUserID to ToUserID and recomputes
// the group's balances. Partial settlements are allowed; the amount is not
// capped at the outstanding debt.
func (e *Engine) Settle(ctx context.Context, actorID string, in SettlementInput) (*models.Settlement, error) {
	if err := validateSettlementInput(in); err != nil {
		return nil, err
	}

	group, err := e.store.GetGroup(ctx, in.GroupID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, "Group not found")
		}
		return nil, apperr.Wrap(apperr.Integrity, err, "failed to load group")
	}
	if !group.HasMember(actorID) {
		return nil, apperr.New(apperr.Authorization, "Not authorized for this group")
	}
	if !group.HasMember(in.FromUserID) || !group.HasMember(in.ToUserID) {
		return nil, apperr.New(apperr.Validation, "Both users must be group members")
	}

	lock := e.groupLock(in.GroupID)
	lock.Lock()
	defer lock.Unlock()

	settlement := &models.Settlement{
		GroupID:    in.GroupID,
		FromUserID: in.FromUserID,
		ToUserID:   in.ToUserID,
		Amount:     in.Amount,
		CreatedBy:  actorID,
		Note:       in.Note,
	}
	if err := e.store.CreateSettlement(ctx, settlement); err != nil {
		return nil, apperr.Wrap(apperr.Integrity, err, "failed to create settlement")
	}

	if err := e.recompute(ctx, in.GroupID); err != nil {
		return nil, err
	}
	if err := e.checkAndArchive(ctx, in.GroupID, actorID); err != nil {
		return nil, err
	}

	slog.Info("Balance settled",
		"settlement_id", settlement.ID,
		"group_id", in.GroupID,
		"from", in.FromUserID,
		"to", in.ToUserID,
		"amount", in.Amount)
	return settlement, nil
}

// CreateSettlementRequest records a pending request by the debtor to mark a
// debt as paid. The request has no ledger effect until the recipient approves
// it.
func (e *Engine) CreateSettlementRequest(ctx context.Context, actorID string, in SettlementInput) (*models.SettlementRequest, error) {
	if err := validateSettlementInput(in); err != nil {
		return nil, err
	}
	if actorID != in.FromUserID {
		return nil, apperr.New(apperr.Authorization, "You can only create settlement requests for your own balances")
	}

	group, err := e.store.GetGroup(ctx, in.GroupID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, "Group not found")
		}
		return nil, apperr.Wrap(apperr.Integrity, err, "failed to load group")
	}
	if !group.HasMember(in.FromUserID) || !group.HasMember(in.ToUserID) {
		return nil, apperr.New(apperr.Validation, "Both users must be group members")
	}

	existing, err := e.store.FindPendingSettlementRequest(ctx, in.FromUserID, in.ToUserID, in.GroupID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Integrity, err, "failed to check for pending requests")
	}
	if existing != nil {
		return nil, apperr.New(apperr.Conflict, "A pending settlement request already exists for this balance")
	}

	request := &models.SettlementRequest{
		GroupID:    in.GroupID,
		FromUserID: in.FromUserID,
		ToUserID:   in.ToUserID,
		Amount:     in.Amount,
		Status:     models.RequestPending,
	}
	if err := e.store.CreateSettlementRequest(ctx, request); err != nil {
		// A concurrent creation can slip past the pending check above and
		// trip the store's uniqueness constraint instead.
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, apperr.New(apperr.Conflict, "A pending settlement request already exists for this balance")
		}
		return nil, apperr.Wrap(apperr.Integrity, err, "failed to create settlement request")
	}

	slog.Info("Settlement request created",
		"request_id", request.ID,
		"group_id", in.GroupID,
		"from", in.FromUserID,
		"to", in.ToUserID,
		"amount", in.Amount)
	return request, nil
}

// ApproveSettlementRequest lets the recipient accept a pending request. On
// approval a settlement is recorded and the group's balances are recomputed;
// the request then becomes approved. A request that is already resolved
// cannot change state again.
func (e *Engine) ApproveSettlementRequest(ctx context.Context, actorID, requestID string) (*models.SettlementRequest, error) {
	request, err := e.loadPendingRequest(ctx, actorID, requestID, "approve")
	if err != nil {
		return nil, err
	}

	lock := e.groupLock(request.GroupID)
	lock.Lock()
	defer lock.Unlock()

	settlement := &models.Settlement{
		GroupID:    request.GroupID,
		FromUserID: request.FromUserID,
		ToUserID:   request.ToUserID,
		Amount:     request.Amount,
		CreatedBy:  actorID,
	}
	if err := e.store.CreateSettlement(ctx, settlement); err != nil {
		return nil, apperr.Wrap(apperr.Integrity, err, "failed to create settlement")
	}

	if err := e.recompute(ctx, request.GroupID); err != nil {
		return nil, err
	}
	if err := e.checkAndArchive(ctx, request.GroupID, actorID); err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	request.Status = models.RequestApproved
	request.ResolvedBy = actorID
	request.ResolvedAt = now
	if err := e.store.UpdateSettlementRequest(ctx, request); err != nil {
		return nil, apperr.Wrap(apperr.Integrity, err, "failed to update settlement request")
	}

	slog.Info("Settlement request approved",
		"request_id", request.ID,
		"group_id", request.GroupID,
		"amount", request.Amount)
	return request, nil
}

// RejectSettlementRequest lets the recipient decline a pending request. The
// ledger is untouched.
func (e *Engine) RejectSettlementRequest(ctx context.Context, actorID, requestID string) (*models.SettlementRequest, error) {
	request, err := e.loadPendingRequest(ctx, actorID, requestID, "reject")
	if err != nil {
		return nil, err
	}

	request.Status = models.RequestRejected
	request.ResolvedBy = actorID
	request.ResolvedAt = time.Now().Unix()
	if err := e.store.UpdateSettlementRequest(ctx, request); err != nil {
		return nil, apperr.Wrap(apperr.Integrity, err, "failed to update settlement request")
	}

	slog.Info("Settlement request rejected", "request_id", request.ID, "group_id", request.GroupID)
	return request, nil
}

func (e *Engine) loadPendingRequest(ctx context.Context, actorID, requestID, action string) (*models.SettlementRequest, error) {
	request, err := e.store.GetSettlementRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, "Settlement request not found")
		}
		return nil, apperr.Wrap(apperr.Integrity, err, "failed to load settlement request")
	}
	if request.Status != models.RequestPending {
		return nil, apperr.New(apperr.Conflict, "Request is already resolved")
	}
	if request.ToUserID != actorID {
		return nil, apperr.New(apperr.Authorization, "Only the recipient can %s a settlement request", action)
	}
	return request, nil
}
