package internal

import (
	"net/http"

	"project-tracker-api/internal/models"
)

func (s *Server) listManagers(w http.ResponseWriter, r *http.Request) {
	out, err := s.Managers.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) searchManagers(w http.ResponseWriter, r *http.Request) {
	out, err := s.Managers.Search(r.Context(), optionalString(r, "name"), optionalString(r, "department"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getManager(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "pmID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.Managers.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createManager(w http.ResponseWriter, r *http.Request) {
	var in models.CreateManagerRequest
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.Managers.Create(r.Context(), &in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}
