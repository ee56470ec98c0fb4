package service

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/expenseshare/server/internal/apperr"
	"github.com/expenseshare/server/internal/ledger"
	"github.com/expenseshare/server/internal/middleware"
)

type settleRequest struct {
	GroupID    string  `json:"groupId" validate:"required"`
	FromUserID string  `json:"fromUserId" validate:"required"`
	ToUserID   string  `json:"toUserId" validate:"required"`
	Amount     float64 `json:"amount" validate:"required"`
	Note       string  `json:"note" validate:"omitempty,max=200"`
}

// handleUserBalances serves both /balances/user and /balances/user/{userID}.
// Balances are only visible to their owner.
func (s *Service) handleUserBalances(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetUserID(r.Context())
	if userID := chi.URLParam(r, "userID"); userID != "" && userID != actorID {
		respondError(w, apperr.New(apperr.Authorization, "You can only view your own balances"))
		return
	}

	views, err := s.engine.UserBalances(r.Context(), actorID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, views)
}

func (s *Service) handleGroupBalances(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	if _, err := s.loadGroupForMember(r, groupID); err != nil {
		respondError(w, err)
		return
	}

	edges, err := s.engine.GroupBalances(r.Context(), groupID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, edges)
}

func (s *Service) handleSettle(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetUserID(r.Context())

	var req settleRequest
	if err := s.decode(r, &req); err != nil {
		respondError(w, err)
		return
	}

	settlement, err := s.engine.Settle(r.Context(), actorID, ledger.SettlementInput{
		GroupID:    req.GroupID,
		FromUserID: req.FromUserID,
		ToUserID:   req.ToUserID,
		Amount:     req.Amount,
		Note:       req.Note,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, settlement)
}

func (s *Service) handleSettledExpenses(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50)
	settled, err := s.store.ListSettledExpensesByUser(r.Context(), middleware.GetUserID(r.Context()), limit)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, settled)
}

// parseLimit reads the limit query param, falling back to def for missing or
// unusable values.
func parseLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return def
	}
	return limit
}
