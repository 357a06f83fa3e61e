package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pathwayfr/pathway/internal/server/models"
	"github.com/pathwayfr/pathway/internal/server/services"
)

type createdResponse[T any] struct {
	Message string `json:"message"`
	Items   []T    `json:"items"`
}

func (s *Server) handleListUniversities(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Catalog.Universities(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []*models.University{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleSearchUniversities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := s.svc.Catalog.SearchUniversities(r.Context(), q.Get("name"), q.Get("city"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleUniversitiesInCity(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Catalog.UniversitiesInCity(r.Context(), chi.URLParam(r, "city"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleGetUniversity looks the university up by id, or by exact name when
// the path segment is not a number.
func (s *Server) handleGetUniversity(w http.ResponseWriter, r *http.Request) {
	var (
		u   *models.University
		err error
	)
	if id, perr := pathID(r); perr == nil {
		u, err = s.svc.Catalog.University(r.Context(), id)
	} else {
		u, err = s.svc.Catalog.UniversityByName(r.Context(), chi.URLParam(r, "id"))
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleUniversitiesByIDs(w http.ResponseWriter, r *http.Request) {
	var ids []int64
	if err := decodeJSON(r, &ids); err != nil {
		s.fail(w, r, err)
		return
	}
	list, err := s.svc.Catalog.UniversitiesByIDs(r.Context(), ids)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// lookupMode is what a /universities/ids/* route honours on top of paging.
// Each mode includes the ones before it.
type lookupMode int

const (
	lookupPaginate lookupMode = iota
	lookupSort
	lookupFilter
	lookupSearch
)

func (s *Server) handleUniversityPage(mode lookupMode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var q services.UniversityQuery
		if err := decodeJSON(r, &q); err != nil {
			s.fail(w, r, err)
			return
		}
		if mode < lookupSort {
			q.SortBy, q.SortOrder = "", ""
		}
		if mode < lookupFilter {
			q.Filters = nil
		}
		if mode < lookupSearch {
			q.Search = ""
		}
		page, err := s.svc.Catalog.QueryUniversities(r.Context(), q)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func (s *Server) handleUpdateUniversity(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req services.UniversityUpdate
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.svc.Catalog.UpdateUniversity(r.Context(), id, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleDeleteUniversity(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.svc.Catalog.DeleteUniversity(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "university deleted")
}

func (s *Server) handleCreateUniversities(w http.ResponseWriter, r *http.Request) {
	in, err := decodeOneOrMany[services.UniversityInput](r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	created, err := s.svc.Catalog.CreateUniversities(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse[*models.University]{Message: "universities created", Items: created})
}

func (s *Server) handleListSpecialities(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Catalog.Specialities(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []*models.Speciality{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetSpeciality(w http.ResponseWriter, r *http.Request) {
	sp, err := s.svc.Catalog.SpecialityByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

func (s *Server) handleCreateSpecialities(w http.ResponseWriter, r *http.Request) {
	in, err := decodeOneOrMany[services.SpecialityInput](r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	created, err := s.svc.Catalog.CreateSpecialities(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse[*models.Speciality]{Message: "specialities created", Items: created})
}
