// Package repository defines the storage contract used by the service layer:
// predicate-based project and manager queries, mutations and transaction scoping.
// Implementations live in the postgres and memory subpackages.
package repository

import (
	"context"
	"errors"

	"project-tracker-api/internal/models"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write violates a uniqueness constraint
	ErrConflict = errors.New("duplicate key")
)

// TxMode selects the isolation guarantees of a transaction
type TxMode int

const (
	// TxReadOnly runs at read committed without write access
	TxReadOnly TxMode = iota
	// TxReadWrite runs at read committed with write access. Row locks come
	// from GetProject/GetManager called with lock set, not from the mode.
	TxReadWrite
)

func (m TxMode) String() string {
	if m == TxReadWrite {
		return "read-write"
	}
	return "read-only"
}

// Queries is the set of operations available inside and outside a transaction.
type Queries interface {
	// FindProjects returns projects matching f, ordered by f.Sort, managers attached.
	FindProjects(ctx context.Context, f ProjectFilter) ([]models.Project, error)
	// FindProjectsPage returns one page of projects matching f plus the total match count.
	FindProjectsPage(ctx context.Context, f ProjectFilter, page PageRequest) ([]models.Project, int64, error)
	CountProjects(ctx context.Context, f ProjectFilter) (int64, error)
	// GetProject looks a project up by ID regardless of is_active.
	GetProject(ctx context.Context, id int64, lock bool) (*models.Project, error)
	// CreateProject inserts p and sets its ID.
	CreateProject(ctx context.Context, p *models.Project) error
	// UpdateProject persists every column of p except id, project_code and created_at.
	UpdateProject(ctx context.Context, p *models.Project) error
	// AddAssignment links a manager to a project; linking twice is a no-op.
	AddAssignment(ctx context.Context, projectID, pmID int64) error
	// RemoveAssignment unlinks a manager from a project; a missing link is a no-op.
	RemoveAssignment(ctx context.Context, projectID, pmID int64) error

	GetManager(ctx context.Context, id int64, lock bool) (*models.ProjectManager, error)
	ManagerExists(ctx context.Context, id int64) (bool, error)
	// FindManagers returns managers matching f ordered by name, then ID.
	FindManagers(ctx context.Context, f ManagerFilter) ([]models.ProjectManager, error)
	// CreateManager inserts pm and sets its ID.
	CreateManager(ctx context.Context, pm *models.ProjectManager) error
}

// Store is the storage collaborator of the service layer.
type Store interface {
	Queries
	// WithTx runs fn inside one transaction, committing if fn returns nil.
	WithTx(ctx context.Context, mode TxMode, fn func(q Queries) error) error
	Ping(ctx context.Context) error
	Close()
}
