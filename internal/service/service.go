// Package service exposes the ledger over HTTP. Handlers decode and validate
// requests, resolve the acting user from the auth middleware, call into the
// ledger engine or store, and map the error taxonomy to status codes.
package service

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/expenseshare/server/internal/apperr"
	"github.com/expenseshare/server/internal/auth"
	"github.com/expenseshare/server/internal/ledger"
	"github.com/expenseshare/server/internal/middleware"
	"github.com/expenseshare/server/internal/storage"
)

// Service wires the HTTP API to the ledger engine and storage.
type Service struct {
	store      storage.Store
	engine     *ledger.Engine
	auth       auth.Authenticator
	jwt        *auth.JWTManager
	validate   *validator.Validate
	translator ut.Translator
}

// New creates the HTTP service.
func New(store storage.Store, engine *ledger.Engine, authenticator auth.Authenticator, jwtManager *auth.JWTManager) (*Service, error) {
	validate := validator.New()
	eng := en.New()
	uni := ut.New(eng, eng)
	translator, found := uni.GetTranslator("en")
	if !found {
		return nil, fmt.Errorf("en translator not found")
	}
	if err := en_translations.RegisterDefaultTranslations(validate, translator); err != nil {
		return nil, fmt.Errorf("failed to register validator translations: %w", err)
	}

	return &Service{
		store:      store,
		engine:     engine,
		auth:       authenticator,
		jwt:        jwtManager,
		validate:   validate,
		translator: translator,
	}, nil
}

// Routes returns the API router. Everything under /api except the auth
// endpoints requires a valid token.
func (s *Service) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(s.jwt))

			r.Get("/auth/me", s.handleMe)
			r.Post("/auth/logout", s.handleLogout)

			r.Get("/users", s.handleListUsers)
			r.Get("/users/{userID}", s.handleGetUser)

			r.Route("/groups", func(r chi.Router) {
				r.Post("/", s.handleCreateGroup)
				r.Get("/", s.handleListGroups)
				r.Get("/{groupID}", s.handleGetGroup)
				r.Delete("/{groupID}", s.handleDeleteGroup)
				r.Post("/{groupID}/members", s.handleAddMember)
				r.Delete("/{groupID}/members/{userID}", s.handleRemoveMember)
			})

			r.Route("/expenses", func(r chi.Router) {
				r.Post("/", s.handleCreateExpense)
				r.Get("/", s.handleListExpenses)
				r.Get("/{expenseID}", s.handleGetExpense)
				r.Delete("/{expenseID}", s.handleDeleteExpense)
				r.Get("/group/{groupID}", s.handleListGroupExpenses)
			})

			r.Route("/balances", func(r chi.Router) {
				r.Get("/user", s.handleUserBalances)
				r.Get("/user/{userID}", s.handleUserBalances)
				r.Get("/group/{groupID}", s.handleGroupBalances)
				r.Post("/settle", s.handleSettle)
				r.Get("/settled", s.handleSettledExpenses)
			})

			r.Route("/settlement-requests", func(r chi.Router) {
				r.Get("/", s.handleListRequests)
				r.Post("/", s.handleCreateRequest)
				r.Post("/{requestID}/approve", s.handleApproveRequest)
				r.Post("/{requestID}/reject", s.handleRejectRequest)
			})
		})
	})

	return r
}

// decode parses the JSON body into dst and runs struct validation. The first
// failed validation rule becomes the Validation error message.
func (s *Service) decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.New(apperr.Validation, "Invalid request payload")
	}
	if err := s.validate.Struct(dst); err != nil {
		errs, ok := err.(validator.ValidationErrors)
		if !ok || len(errs) == 0 {
			return apperr.New(apperr.Validation, "Invalid request payload")
		}
		return apperr.New(apperr.Validation, "%s", errs[0].Translate(s.translator))
	}
	return nil
}
