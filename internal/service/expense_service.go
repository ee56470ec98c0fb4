package service

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/expenseshare/server/internal/apperr"
	"github.com/expenseshare/server/internal/calculator"
	"github.com/expenseshare/server/internal/ledger"
	"github.com/expenseshare/server/internal/middleware"
	"github.com/expenseshare/server/internal/models"
	"github.com/expenseshare/server/internal/storage"
)

type splitInput struct {
	UserID     string  `json:"userId" validate:"required"`
	Amount     float64 `json:"amount"`
	Percentage float64 `json:"percentage"`
}

type createExpenseRequest struct {
	GroupID     string       `json:"groupId" validate:"required"`
	Description string       `json:"description" validate:"required,max=200"`
	Amount      float64      `json:"amount" validate:"required"`
	PaidBy      string       `json:"paidBy" validate:"required"`
	SplitType   string       `json:"splitType" validate:"required,oneof=equal exact percentage"`
	Splits      []splitInput `json:"splits" validate:"omitempty,dive"`
}

func (s *Service) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetUserID(r.Context())

	var req createExpenseRequest
	if err := s.decode(r, &req); err != nil {
		respondError(w, err)
		return
	}

	inputs := make([]calculator.SplitInput, 0, len(req.Splits))
	for _, sp := range req.Splits {
		inputs = append(inputs, calculator.SplitInput{
			UserID:     sp.UserID,
			Amount:     sp.Amount,
			Percentage: sp.Percentage,
		})
	}

	expense, err := s.engine.AddExpense(r.Context(), actorID, ledger.ExpenseInput{
		GroupID:     req.GroupID,
		Description: req.Description,
		Amount:      req.Amount,
		PaidBy:      req.PaidBy,
		SplitType:   models.SplitType(req.SplitType),
		Splits:      inputs,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, expense)
}

// handleListExpenses returns every expense across the caller's groups,
// newest first.
func (s *Service) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	groups, err := s.store.ListGroupsByMember(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}

	groupIDs := make([]string, 0, len(groups))
	for _, g := range groups {
		groupIDs = append(groupIDs, g.ID)
	}

	expenses, err := s.store.ListExpensesByGroups(r.Context(), groupIDs)
	if err != nil {
		respondError(w, err)
		return
	}
	if expenses == nil {
		expenses = []*models.Expense{}
	}
	respondJSON(w, http.StatusOK, expenses)
}

func (s *Service) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	expense, err := s.store.GetExpense(r.Context(), chi.URLParam(r, "expenseID"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, apperr.New(apperr.NotFound, "Expense not found"))
			return
		}
		respondError(w, err)
		return
	}

	if _, err := s.loadGroupForMember(r, expense.GroupID); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, expense)
}

func (s *Service) handleListGroupExpenses(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	if _, err := s.loadGroupForMember(r, groupID); err != nil {
		respondError(w, err)
		return
	}

	expenses, err := s.store.ListExpensesByGroup(r.Context(), groupID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, expenses)
}

func (s *Service) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetUserID(r.Context())
	if err := s.engine.DeleteExpense(r.Context(), actorID, chi.URLParam(r, "expenseID")); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
