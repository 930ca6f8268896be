// Package mapper converts between persisted records and their transfer shapes.
// All functions are pure: nil in, nil out, inputs are never modified.
package mapper

import (
	"time"

	"project-tracker-api/internal/models"
)

// ToProjectDTO maps a project and its assigned managers to the response shape
func ToProjectDTO(p *models.Project) *models.ProjectDTO {
	if p == nil {
		return nil
	}

	dto := &models.ProjectDTO{
		ID:                   p.ID,
		Name:                 p.Name,
		Description:          cloneString(p.Description),
		ProjectCode:          p.ProjectCode,
		Status:               p.Status,
		Priority:             p.Priority,
		StartDate:            datePtr(p.StartDate),
		EndDate:              CloneDate(p.EndDate),
		EstimatedEndDate:     CloneDate(p.EstimatedEndDate),
		Budget:               p.Budget,
		ActualCost:           p.ActualCost,
		ClientName:           cloneString(p.ClientName),
		TechnologyStack:      cloneString(p.TechnologyStack),
		TeamSize:             cloneInt(p.TeamSize),
		CompletionPercentage: intPtr(p.CompletionPercentage),
		IsActive:             p.IsActive,
		CreatedAt:            timePtr(p.CreatedAt),
		UpdatedAt:            timePtr(p.UpdatedAt),
		ProjectManagers:      make([]models.ProjectManagerDTO, 0, len(p.Managers)),
	}
	for i := range p.Managers {
		dto.ProjectManagers = append(dto.ProjectManagers, *ToProjectManagerDTO(&p.Managers[i]))
	}
	return dto
}

// ToProject maps a request body to a project record.
// Manager assignments are not carried over; they change only through assign/remove.
func ToProject(dto *models.ProjectDTO) *models.Project {
	if dto == nil {
		return nil
	}

	p := &models.Project{
		ID:               dto.ID,
		Name:             dto.Name,
		Description:      cloneString(dto.Description),
		ProjectCode:      dto.ProjectCode,
		Status:           dto.Status,
		Priority:         dto.Priority,
		EndDate:          CloneDate(dto.EndDate),
		EstimatedEndDate: CloneDate(dto.EstimatedEndDate),
		Budget:           dto.Budget,
		ActualCost:       dto.ActualCost,
		ClientName:       cloneString(dto.ClientName),
		TechnologyStack:  cloneString(dto.TechnologyStack),
		TeamSize:         cloneInt(dto.TeamSize),
		IsActive:         dto.IsActive,
	}
	if dto.StartDate != nil {
		p.StartDate = *dto.StartDate
	}
	if dto.CompletionPercentage != nil {
		p.CompletionPercentage = *dto.CompletionPercentage
	}
	return p
}

// ToProjectDTOList maps a slice of projects, never returning nil
func ToProjectDTOList(projects []models.Project) []models.ProjectDTO {
	out := make([]models.ProjectDTO, 0, len(projects))
	for i := range projects {
		out = append(out, *ToProjectDTO(&projects[i]))
	}
	return out
}

// ToProjectManagerDTO maps a manager to its response shape
func ToProjectManagerDTO(pm *models.ProjectManager) *models.ProjectManagerDTO {
	if pm == nil {
		return nil
	}
	return &models.ProjectManagerDTO{
		ID:         pm.ID,
		Name:       pm.Name,
		Email:      pm.Email,
		Phone:      cloneString(pm.Phone),
		Department: cloneString(pm.Department),
		EmployeeID: cloneString(pm.EmployeeID),
		IsActive:   pm.IsActive,
		CreatedAt:  timePtr(pm.CreatedAt),
		UpdatedAt:  timePtr(pm.UpdatedAt),
	}
}

// ToProjectManagerDTOList maps a slice of managers, never returning nil
func ToProjectManagerDTOList(pms []models.ProjectManager) []models.ProjectManagerDTO {
	out := make([]models.ProjectManagerDTO, 0, len(pms))
	for i := range pms {
		out = append(out, *ToProjectManagerDTO(&pms[i]))
	}
	return out
}

// ToProjectManager maps a create request to a manager record
func ToProjectManager(req *models.CreateManagerRequest) *models.ProjectManager {
	if req == nil {
		return nil
	}
	return &models.ProjectManager{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      cloneString(req.Phone),
		Department: cloneString(req.Department),
		EmployeeID: cloneString(req.EmployeeID),
	}
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}

func intPtr(i int) *int { return &i }

// CloneDate copies an optional date; a zero date means absent and maps to nil
func CloneDate(d *models.Date) *models.Date {
	if d == nil || d.IsZero() {
		return nil
	}
	v := *d
	return &v
}

func datePtr(d models.Date) *models.Date {
	if d.IsZero() {
		return nil
	}
	return &d
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
