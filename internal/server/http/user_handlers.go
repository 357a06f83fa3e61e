package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pathwayfr/pathway/internal/server/models"
	"github.com/pathwayfr/pathway/internal/server/policy"
	"github.com/pathwayfr/pathway/internal/server/services"
)

type profileResponse struct {
	Message string       `json:"message"`
	User    *models.User `json:"user"`
}

func pathID(r *http.Request) (int64, error) {
	return policy.ParseID(chi.URLParam(r, "id"))
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.Users.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if users == nil {
		users = []*models.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.svc.Users.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req services.UserUpdate
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.svc.Users.UpdateUser(r.Context(), id, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{Message: "user updated", User: u})
}

func (s *Server) handleProfileStatus(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	st, err := s.svc.Users.ProfileStatus(r.Context(), p.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleProfileSetup(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req services.ProfileInput
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.svc.Users.SetupProfile(r.Context(), p.UserID, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{Message: "profile updated", User: u})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.svc.Users.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "user deleted")
}

func (s *Server) handleSetBanned(banned bool) http.HandlerFunc {
	msg := "user unbanned"
	if banned {
		msg = "user banned"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if err := s.svc.Users.SetBanned(r.Context(), id, banned); err != nil {
			s.fail(w, r, err)
			return
		}
		writeMessage(w, http.StatusOK, msg)
	}
}

func (s *Server) handleSetPremium(premium bool) http.HandlerFunc {
	msg := "user moved to the free plan"
	if premium {
		msg = "user upgraded to premium"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if err := s.svc.Users.SetPremium(r.Context(), id, premium); err != nil {
			s.fail(w, r, err)
			return
		}
		writeMessage(w, http.StatusOK, msg)
	}
}

func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Stats.Users(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleExperienceStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Stats.Experiences(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
