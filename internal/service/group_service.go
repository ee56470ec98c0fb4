package service

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/expenseshare/server/internal/apperr"
	"github.com/expenseshare/server/internal/middleware"
	"github.com/expenseshare/server/internal/models"
	"github.com/expenseshare/server/internal/storage"
)

type createGroupRequest struct {
	Name    string   `json:"name" validate:"required,min=1,max=100"`
	Members []string `json:"members" validate:"omitempty,dive,required"`
}

type addMemberRequest struct {
	UserID string `json:"userId" validate:"required"`
}

func (s *Service) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetUserID(r.Context())

	var req createGroupRequest
	if err := s.decode(r, &req); err != nil {
		respondError(w, err)
		return
	}

	// The creator is always a member, whether listed or not.
	members := []string{actorID}
	seen := map[string]bool{actorID: true}
	for _, id := range req.Members {
		if seen[id] {
			continue
		}
		user, err := s.store.GetUserByID(r.Context(), id)
		if err != nil {
			respondError(w, err)
			return
		}
		if user == nil {
			respondError(w, apperr.New(apperr.Validation, "Member %s does not exist", id))
			return
		}
		seen[id] = true
		members = append(members, id)
	}

	group := &models.Group{
		Name:      req.Name,
		CreatedBy: actorID,
		Members:   members,
	}
	if err := s.store.CreateGroup(r.Context(), group); err != nil {
		respondError(w, err)
		return
	}

	slog.Info("Group created", "group_id", group.ID, "created_by", actorID)
	respondJSON(w, http.StatusCreated, group)
}

func (s *Service) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.store.ListGroupsByMember(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, groups)
}

func (s *Service) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	group, err := s.loadGroupForMember(r, chi.URLParam(r, "groupID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, group)
}

func (s *Service) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetUserID(r.Context())
	groupID := chi.URLParam(r, "groupID")

	group, err := s.loadGroup(r, groupID)
	if err != nil {
		respondError(w, err)
		return
	}
	if group.CreatedBy != actorID {
		respondError(w, apperr.New(apperr.Authorization, "Only the group creator can delete the group"))
		return
	}

	if err := s.store.DeleteGroupCascade(r.Context(), groupID); err != nil {
		respondError(w, apperr.Wrap(apperr.Integrity, err, "failed to delete group"))
		return
	}

	slog.Info("Group deleted", "group_id", groupID, "deleted_by", actorID)
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Service) handleAddMember(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetUserID(r.Context())
	groupID := chi.URLParam(r, "groupID")

	var req addMemberRequest
	if err := s.decode(r, &req); err != nil {
		respondError(w, err)
		return
	}

	group, err := s.loadGroup(r, groupID)
	if err != nil {
		respondError(w, err)
		return
	}
	if group.CreatedBy != actorID {
		respondError(w, apperr.New(apperr.Authorization, "Only the group creator can manage members"))
		return
	}

	user, err := s.store.GetUserByID(r.Context(), req.UserID)
	if err != nil {
		respondError(w, err)
		return
	}
	if user == nil {
		respondError(w, apperr.New(apperr.Validation, "User does not exist"))
		return
	}

	if err := s.store.AddGroupMember(r.Context(), groupID, req.UserID); err != nil {
		respondError(w, apperr.Wrap(apperr.Integrity, err, "failed to add member"))
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Service) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetUserID(r.Context())
	groupID := chi.URLParam(r, "groupID")
	userID := chi.URLParam(r, "userID")

	group, err := s.loadGroup(r, groupID)
	if err != nil {
		respondError(w, err)
		return
	}
	if group.CreatedBy != actorID {
		respondError(w, apperr.New(apperr.Authorization, "Only the group creator can manage members"))
		return
	}
	if userID == group.CreatedBy {
		respondError(w, apperr.New(apperr.Validation, "Cannot remove the group creator"))
		return
	}
	if !group.HasMember(userID) {
		respondError(w, apperr.New(apperr.NotFound, "User is not a group member"))
		return
	}

	if err := s.store.RemoveGroupMember(r.Context(), groupID, userID); err != nil {
		respondError(w, apperr.Wrap(apperr.Integrity, err, "failed to remove member"))
		return
	}

	// The member's expense history stays in the ledger; recompute so the
	// balances reflect the roster change and archive if everything nets out.
	if err := s.engine.Recompute(r.Context(), groupID, actorID); err != nil {
		respondError(w, err)
		return
	}

	slog.Info("Member removed", "group_id", groupID, "user_id", userID)
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Service) loadGroup(r *http.Request, groupID string) (*models.Group, error) {
	group, err := s.store.GetGroup(r.Context(), groupID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, "Group not found")
		}
		return nil, err
	}
	return group, nil
}

// loadGroupForMember loads the group and checks the acting user belongs to it.
func (s *Service) loadGroupForMember(r *http.Request, groupID string) (*models.Group, error) {
	group, err := s.loadGroup(r, groupID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(middleware.GetUserID(r.Context())) {
		return nil, apperr.New(apperr.Authorization, "Not authorized for this group")
	}
	return group, nil
}
