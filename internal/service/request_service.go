package service

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/expenseshare/server/internal/ledger"
	"github.com/expenseshare/server/internal/middleware"
	"github.com/expenseshare/server/internal/storage"
)

type createRequestRequest struct {
	GroupID    string  `json:"groupId" validate:"required"`
	FromUserID string  `json:"fromUserId" validate:"required"`
	ToUserID   string  `json:"toUserId" validate:"required"`
	Amount     float64 `json:"amount" validate:"required"`
}

func (s *Service) handleListRequests(w http.ResponseWriter, r *http.Request) {
	role := storage.RequestRole(r.URL.Query().Get("role"))
	switch role {
	case storage.RoleIncoming, storage.RoleOutgoing:
	default:
		role = storage.RoleAll
	}

	requests, err := s.store.ListSettlementRequests(r.Context(), middleware.GetUserID(r.Context()), role, parseLimit(r, 50))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, requests)
}

func (s *Service) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetUserID(r.Context())

	var req createRequestRequest
	if err := s.decode(r, &req); err != nil {
		respondError(w, err)
		return
	}

	request, err := s.engine.CreateSettlementRequest(r.Context(), actorID, ledger.SettlementInput{
		GroupID:    req.GroupID,
		FromUserID: req.FromUserID,
		ToUserID:   req.ToUserID,
		Amount:     req.Amount,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, request)
}

func (s *Service) handleApproveRequest(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetUserID(r.Context())
	request, err := s.engine.ApproveSettlementRequest(r.Context(), actorID, chi.URLParam(r, "requestID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, request)
}

func (s *Service) handleRejectRequest(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetUserID(r.Context())
	request, err := s.engine.RejectSettlementRequest(r.Context(), actorID, chi.URLParam(r, "requestID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, request)
}
