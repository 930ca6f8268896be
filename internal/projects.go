package internal

import (
	"context"
	"net/http"

	"project-tracker-api/internal/models"
	"project-tracker-api/internal/service"

	"github.com/go-chi/chi/v5"
)

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	out, err := s.Projects.GetAllActive(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) searchProjects(w http.ResponseWriter, r *http.Request) {
	pmID, err := optionalID(r, "pm_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	params := service.SearchParams{
		ManagerID:  pmID,
		ClientName: optionalString(r, "client_name"),
	}
	if st := optionalString(r, "status"); st != nil {
		status := models.ProjectStatus(*st)
		params.Status = &status
	}

	out, err := s.Projects.Search(r.Context(), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "projectID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.Projects.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getProjectByCode(w http.ResponseWriter, r *http.Request) {
	out, err := s.Projects.GetByCode(r.Context(), chi.URLParam(r, "projectCode"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listManagerProjects(w http.ResponseWriter, r *http.Request) {
	pmID, err := idParam(r, "pmID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.Projects.GetByManagerID(r.Context(), pmID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) pageManagerProjects(w http.ResponseWriter, r *http.Request) {
	pmID, err := idParam(r, "pmID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := parsePageParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.Projects.GetByManagerIDPage(r.Context(), pmID, p.page, p.size, p.sortBy, p.sortDir)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listProjectsByManagerEmail(w http.ResponseWriter, r *http.Request) {
	out, err := s.Projects.GetByManagerEmail(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listProjectsByManagerEmployeeID(w http.ResponseWriter, r *http.Request) {
	out, err := s.Projects.GetByManagerEmployeeID(r.Context(), chi.URLParam(r, "employeeID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listManagerProjectsByStatus(w http.ResponseWriter, r *http.Request) {
	pmID, err := idParam(r, "pmID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := models.ProjectStatus(chi.URLParam(r, "status"))
	out, err := s.Projects.GetByManagerIDAndStatus(r.Context(), pmID, status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listManagerProjectsByDateRange(w http.ResponseWriter, r *http.Request) {
	pmID, err := idParam(r, "pmID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	start, err := dateParam(r, "start_date")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	end, err := dateParam(r, "end_date")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.Projects.GetByManagerIDAndDateRange(r.Context(), pmID, start, end)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) countManagerProjects(w http.ResponseWriter, r *http.Request) {
	pmID, err := idParam(r, "pmID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := s.Projects.CountByManagerID(r.Context(), pmID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.CountResponse{Count: n})
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var in models.ProjectDTO
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.Projects.Create(r.Context(), &in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "projectID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var in models.ProjectDTO
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.Projects.Update(r.Context(), id, &in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "projectID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Projects.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) assignManager(w http.ResponseWriter, r *http.Request) {
	s.changeAssignment(w, r, s.Projects.AssignManager)
}

func (s *Server) removeManager(w http.ResponseWriter, r *http.Request) {
	s.changeAssignment(w, r, s.Projects.RemoveManager)
}

func (s *Server) changeAssignment(w http.ResponseWriter, r *http.Request,
	change func(ctx context.Context, projectID, pmID int64) (*models.ProjectDTO, error)) {
	projectID, err := idParam(r, "projectID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	pmID, err := idParam(r, "pmID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := change(r.Context(), projectID, pmID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
