package models

import "time"

// ProjectManager is a person who can be assigned to any number of projects
type ProjectManager struct {
	ID         int64
	Name       string
	Email      string
	Phone      *string
	Department *string
	EmployeeID *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	IsActive   bool
}
