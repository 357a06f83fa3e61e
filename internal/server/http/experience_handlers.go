package http

import (
	"net/http"

	"github.com/pathwayfr/pathway/internal/server/models"
	"github.com/pathwayfr/pathway/internal/server/services"
)

type gradesRequest struct {
	Grades []services.GradeInput `json:"grades"`
}

func (s *Server) handleShareExperience(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req services.ExperienceInput
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	e, err := s.svc.Experiences.Share(r.Context(), p.UserID, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleDeleteExperience(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.svc.Experiences.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "experience deleted")
}

func (s *Server) handlePendingExperiences(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Experiences.Pending(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []*models.Experience{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleModerate(status string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if err := s.svc.Experiences.Moderate(r.Context(), id, status); err != nil {
			s.fail(w, r, err)
			return
		}
		writeMessage(w, http.StatusOK, "experience "+status)
	}
}

func (s *Server) handleSaveGrades(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req gradesRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.svc.Grades.Save(r.Context(), p.UserID, req.Grades); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusCreated, "grades saved")
}

func (s *Server) handleListGrades(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	list, err := s.svc.Grades.List(r.Context(), p.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
