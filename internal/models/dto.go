package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProjectDTO is the request and response body for projects.
// Output-only fields (id, is_active, timestamps, project_managers) are ignored on input.
type ProjectDTO struct {
	ID                   int64               `json:"id"`
	Name                 string              `json:"name" validate:"required,min=3,max=200"`
	Description          *string             `json:"description,omitempty"`
	ProjectCode          string              `json:"project_code" validate:"required,max=20"`
	Status               ProjectStatus       `json:"status,omitempty" validate:"omitempty,project_status"`
	Priority             ProjectPriority     `json:"priority,omitempty" validate:"omitempty,project_priority"`
	StartDate            *Date               `json:"start_date"`
	EndDate              *Date               `json:"end_date,omitempty"`
	EstimatedEndDate     *Date               `json:"estimated_end_date,omitempty"`
	Budget               decimal.NullDecimal `json:"budget"`
	ActualCost           decimal.NullDecimal `json:"actual_cost"`
	ClientName           *string             `json:"client_name,omitempty" validate:"omitempty,max=255"`
	TechnologyStack      *string             `json:"technology_stack,omitempty" validate:"omitempty,max=255"`
	TeamSize             *int                `json:"team_size,omitempty" validate:"omitempty,min=0"`
	CompletionPercentage *int                `json:"completion_percentage,omitempty" validate:"omitempty,min=0,max=100"`
	IsActive             bool                `json:"is_active"`
	CreatedAt            *time.Time          `json:"created_at,omitempty"`
	UpdatedAt            *time.Time          `json:"updated_at,omitempty"`
	ProjectManagers      []ProjectManagerDTO `json:"project_managers"`
}

// ProjectManagerDTO is the response body for project managers
type ProjectManagerDTO struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Phone      *string    `json:"phone,omitempty"`
	Department *string    `json:"department,omitempty"`
	EmployeeID *string    `json:"employee_id,omitempty"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// CreateManagerRequest represents the request body for creating a project manager
type CreateManagerRequest struct {
	Name       string  `json:"name" validate:"required,min=2,max=100"`
	Email      string  `json:"email" validate:"required,email,max=255"`
	Phone      *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	Department *string `json:"department,omitempty" validate:"omitempty,max=100"`
	EmployeeID *string `json:"employee_id,omitempty" validate:"omitempty,min=1,max=50"`
}

// ProjectPage is one page of a paginated project listing
type ProjectPage struct {
	Items      []ProjectDTO `json:"items"`
	Total      int64        `json:"total"`
	Page       int          `json:"page"`
	Size       int          `json:"size"`
	TotalPages int          `json:"total_pages"`
}

// CountResponse wraps a bare count
type CountResponse struct {
	Count int64 `json:"count"`
}
