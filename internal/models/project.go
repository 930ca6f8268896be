package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProjectStatus is the lifecycle state of a project
type ProjectStatus string

const (
	StatusPlanning   ProjectStatus = "PLANNING"
	StatusInProgress ProjectStatus = "IN_PROGRESS"
	StatusOnHold     ProjectStatus = "ON_HOLD"
	StatusCompleted  ProjectStatus = "COMPLETED"
	StatusCancelled  ProjectStatus = "CANCELLED"
)

// ValidStatuses lists every accepted project status
var ValidStatuses = []ProjectStatus{
	StatusPlanning,
	StatusInProgress,
	StatusOnHold,
	StatusCompleted,
	StatusCancelled,
}

// Valid reports whether s is one of ValidStatuses
func (s ProjectStatus) Valid() bool {
	for _, v := range ValidStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// ProjectPriority ranks projects against each other
type ProjectPriority string

const (
	PriorityLow      ProjectPriority = "LOW"
	PriorityMedium   ProjectPriority = "MEDIUM"
	PriorityHigh     ProjectPriority = "HIGH"
	PriorityCritical ProjectPriority = "CRITICAL"
)

// ValidPriorities lists every accepted project priority
var ValidPriorities = []ProjectPriority{
	PriorityLow,
	PriorityMedium,
	PriorityHigh,
	PriorityCritical,
}

// Valid reports whether p is one of ValidPriorities
func (p ProjectPriority) Valid() bool {
	for _, v := range ValidPriorities {
		if p == v {
			return true
		}
	}
	return false
}

// Project is the persisted project record
type Project struct {
	ID                   int64
	Name                 string
	Description          *string
	ProjectCode          string
	Status               ProjectStatus
	Priority             ProjectPriority
	StartDate            Date
	EndDate              *Date
	EstimatedEndDate     *Date
	Budget               decimal.NullDecimal
	ActualCost           decimal.NullDecimal
	ClientName           *string
	TechnologyStack      *string
	TeamSize             *int
	CompletionPercentage int
	CreatedAt            time.Time
	UpdatedAt            time.Time
	IsActive             bool

	// Managers is the project's side of the assignment table, ordered by manager ID.
	Managers []ProjectManager
}

// HasManager checks if the manager with the given ID is assigned to the project
func (p *Project) HasManager(pmID int64) bool {
	for _, m := range p.Managers {
		if m.ID == pmID {
			return true
		}
	}
	return false
}
