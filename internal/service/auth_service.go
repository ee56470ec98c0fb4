package service

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/expenseshare/server/internal/auth"
	"github.com/expenseshare/server/internal/middleware"
	"github.com/expenseshare/server/internal/models"
)

type registerRequest struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"displayName" validate:"required,min=1,max=64"`
	Password    string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (s *Service) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := s.decode(r, &req); err != nil {
		respondError(w, err)
		return
	}

	user, err := s.auth.Register(r.Context(), req.Email, req.DisplayName, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailExists):
			respondMessage(w, http.StatusConflict, err.Error())
		case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrInvalidEmail):
			respondMessage(w, http.StatusBadRequest, err.Error())
		default:
			respondError(w, err)
		}
		return
	}

	token, err := s.jwt.Generate(user)
	if err != nil {
		respondError(w, err)
		return
	}

	slog.Info("User registered", "user_id", user.ID)
	respondJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decode(r, &req); err != nil {
		respondError(w, err)
		return
	}

	user, err := s.auth.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		respondMessage(w, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
		return
	}

	token, err := s.jwt.Generate(user)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (s *Service) handleMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	user, err := s.store.GetUserByID(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	if user == nil {
		respondMessage(w, http.StatusNotFound, "User not found")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// Tokens are stateless; logout exists so clients have a uniform endpoint to
// call when discarding a session.
func (s *Service) handleLogout(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
