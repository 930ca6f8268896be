package repository

import (
	"strings"

	"project-tracker-api/internal/models"
)

// ProjectFilter is a conjunction of optional constraints on projects.
// A nil field places no constraint on its dimension.
type ProjectFilter struct {
	ManagerID         *int64
	ManagerEmail      *string
	ManagerEmployeeID *string
	Status            *models.ProjectStatus
	// ClientName matches as a case-insensitive substring.
	ClientName *string
	Code       *string
	// StartFrom and StartTo bound start_date inclusively.
	StartFrom *models.Date
	StartTo   *models.Date
	// IncludeInactive lifts the default is_active = true constraint.
	IncludeInactive bool
	Sort            []SortField
}

// Matches evaluates the filter against p, whose Managers must be populated.
func (f ProjectFilter) Matches(p *models.Project) bool {
	if !f.IncludeInactive && !p.IsActive {
		return false
	}
	if f.ManagerID != nil && !p.HasManager(*f.ManagerID) {
		return false
	}
	if f.ManagerEmail != nil && !anyManager(p, func(m models.ProjectManager) bool {
		return m.Email == *f.ManagerEmail
	}) {
		return false
	}
	if f.ManagerEmployeeID != nil && !anyManager(p, func(m models.ProjectManager) bool {
		return m.EmployeeID != nil && *m.EmployeeID == *f.ManagerEmployeeID
	}) {
		return false
	}
	if f.Status != nil && p.Status != *f.Status {
		return false
	}
	if f.ClientName != nil {
		if p.ClientName == nil || !containsFold(*p.ClientName, *f.ClientName) {
			return false
		}
	}
	if f.Code != nil && p.ProjectCode != *f.Code {
		return false
	}
	if f.StartFrom != nil && p.StartDate.Before(*f.StartFrom) {
		return false
	}
	if f.StartTo != nil && p.StartDate.After(*f.StartTo) {
		return false
	}
	return true
}

// ManagerFilter is a conjunction of optional constraints on project managers.
type ManagerFilter struct {
	// Name matches as a case-insensitive substring.
	Name       *string
	Department *string
	Email      *string
	EmployeeID *string
	// IncludeInactive lifts the default is_active = true constraint.
	IncludeInactive bool
}

// Matches evaluates the filter against pm
func (f ManagerFilter) Matches(pm *models.ProjectManager) bool {
	if !f.IncludeInactive && !pm.IsActive {
		return false
	}
	if f.Name != nil && !containsFold(pm.Name, *f.Name) {
		return false
	}
	if f.Department != nil && (pm.Department == nil || *pm.Department != *f.Department) {
		return false
	}
	if f.Email != nil && pm.Email != *f.Email {
		return false
	}
	if f.EmployeeID != nil && (pm.EmployeeID == nil || *pm.EmployeeID != *f.EmployeeID) {
		return false
	}
	return true
}

func anyManager(p *models.Project, pred func(models.ProjectManager) bool) bool {
	for _, m := range p.Managers {
		if pred(m) {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
