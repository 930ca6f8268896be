// Package memory implements repository.Store in process memory. It backs the
// STORE_DRIVER=memory mode and the unit tests of the service and HTTP layers.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"project-tracker-api/internal/models"
	"project-tracker-api/internal/repository"
)

var _ repository.Store = (*Store)(nil)

type assignment struct {
	projectID int64
	pmID      int64
}

type state struct {
	projects    map[int64]models.Project
	managers    map[int64]models.ProjectManager
	assignments map[assignment]struct{}
	nextProject int64
	nextManager int64
}

func (s *state) clone() *state {
	c := &state{
		projects:    make(map[int64]models.Project, len(s.projects)),
		managers:    make(map[int64]models.ProjectManager, len(s.managers)),
		assignments: make(map[assignment]struct{}, len(s.assignments)),
		nextProject: s.nextProject,
		nextManager: s.nextManager,
	}
	for k, v := range s.projects {
		c.projects[k] = v
	}
	for k, v := range s.managers {
		c.managers[k] = v
	}
	for k := range s.assignments {
		c.assignments[k] = struct{}{}
	}
	return c
}

// Store keeps every table in maps guarded by one lock. Transactions are
// serialized; a failed transaction restores the snapshot taken at its start.
type Store struct {
	mu sync.RWMutex
	st *state
}

// New returns an empty store
func New() *Store {
	return &Store{st: &state{
		projects:    map[int64]models.Project{},
		managers:    map[int64]models.ProjectManager{},
		assignments: map[assignment]struct{}{},
	}}
}

func (s *Store) WithTx(ctx context.Context, mode repository.TxMode, fn func(q repository.Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if mode == repository.TxReadOnly {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return fn(&txQueries{st: s.st, readOnly: true})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.st.clone()
	if err := fn(&txQueries{st: s.st}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() {}

func (s *Store) read(fn func(q *txQueries) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&txQueries{st: s.st, readOnly: true})
}

func (s *Store) write(fn func(q *txQueries) error) error {
	return s.WithTx(context.Background(), repository.TxReadWrite, func(q repository.Queries) error {
		return fn(q.(*txQueries))
	})
}

func (s *Store) FindProjects(ctx context.Context, f repository.ProjectFilter) (out []models.Project, err error) {
	err = s.read(func(q *txQueries) error {
		out, err = q.FindProjects(ctx, f)
		return err
	})
	return out, err
}

func (s *Store) FindProjectsPage(ctx context.Context, f repository.ProjectFilter, page repository.PageRequest) (out []models.Project, total int64, err error) {
	err = s.read(func(q *txQueries) error {
		out, total, err = q.FindProjectsPage(ctx, f, page)
		return err
	})
	return out, total, err
}

func (s *Store) CountProjects(ctx context.Context, f repository.ProjectFilter) (n int64, err error) {
	err = s.read(func(q *txQueries) error {
		n, err = q.CountProjects(ctx, f)
		return err
	})
	return n, err
}

func (s *Store) GetProject(ctx context.Context, id int64, lock bool) (p *models.Project, err error) {
	err = s.read(func(q *txQueries) error {
		p, err = q.GetProject(ctx, id, lock)
		return err
	})
	return p, err
}

func (s *Store) CreateProject(ctx context.Context, p *models.Project) error {
	return s.write(func(q *txQueries) error { return q.CreateProject(ctx, p) })
}

func (s *Store) UpdateProject(ctx context.Context, p *models.Project) error {
	return s.write(func(q *txQueries) error { return q.UpdateProject(ctx, p) })
}

func (s *Store) AddAssignment(ctx context.Context, projectID, pmID int64) error {
	return s.write(func(q *txQueries) error { return q.AddAssignment(ctx, projectID, pmID) })
}

func (s *Store) RemoveAssignment(ctx context.Context, projectID, pmID int64) error {
	return s.write(func(q *txQueries) error { return q.RemoveAssignment(ctx, projectID, pmID) })
}

func (s *Store) GetManager(ctx context.Context, id int64, lock bool) (pm *models.ProjectManager, err error) {
	err = s.read(func(q *txQueries) error {
		pm, err = q.GetManager(ctx, id, lock)
		return err
	})
	return pm, err
}

func (s *Store) ManagerExists(ctx context.Context, id int64) (ok bool, err error) {
	err = s.read(func(q *txQueries) error {
		ok, err = q.ManagerExists(ctx, id)
		return err
	})
	return ok, err
}

func (s *Store) FindManagers(ctx context.Context, f repository.ManagerFilter) (out []models.ProjectManager, err error) {
	err = s.read(func(q *txQueries) error {
		out, err = q.FindManagers(ctx, f)
		return err
	})
	return out, err
}

func (s *Store) CreateManager(ctx context.Context, pm *models.ProjectManager) error {
	return s.write(func(q *txQueries) error { return q.CreateManager(ctx, pm) })
}

// txQueries operates on the state while the store lock is held
type txQueries struct {
	st       *state
	readOnly bool
}

var errReadOnly = errors.New("cannot write in a read-only transaction")

// withManagers returns a copy of p with its assigned managers attached
func (q *txQueries) withManagers(p models.Project) models.Project {
	p.Managers = []models.ProjectManager{}
	for a := range q.st.assignments {
		if a.projectID == p.ID {
			if pm, ok := q.st.managers[a.pmID]; ok {
				p.Managers = append(p.Managers, pm)
			}
		}
	}
	sort.Slice(p.Managers, func(i, j int) bool { return p.Managers[i].ID < p.Managers[j].ID })
	return p
}

func (q *txQueries) matching(f repository.ProjectFilter, order []repository.SortField) []models.Project {
	out := []models.Project{}
	for _, p := range q.st.projects {
		p = q.withManagers(p)
		if f.Matches(&p) {
			out = append(out, p)
		}
	}
	order = repository.WithTieBreaker(order)
	sort.SliceStable(out, func(i, j int) bool {
		return repository.CompareProjects(&out[i], &out[j], order) < 0
	})
	return out
}

func (q *txQueries) FindProjects(ctx context.Context, f repository.ProjectFilter) ([]models.Project, error) {
	return q.matching(f, f.Sort), nil
}

func (q *txQueries) FindProjectsPage(ctx context.Context, f repository.ProjectFilter, page repository.PageRequest) ([]models.Project, int64, error) {
	all := q.matching(f, page.Sort)
	total := int64(len(all))
	start := page.Offset()
	if start < 0 || start >= len(all) {
		return []models.Project{}, total, nil
	}
	end := start + page.Size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (q *txQueries) CountProjects(ctx context.Context, f repository.ProjectFilter) (int64, error) {
	var n int64
	for _, p := range q.st.projects {
		p = q.withManagers(p)
		if f.Matches(&p) {
			n++
		}
	}
	return n, nil
}

func (q *txQueries) GetProject(ctx context.Context, id int64, lock bool) (*models.Project, error) {
	p, ok := q.st.projects[id]
	if !ok {
		return nil, fmt.Errorf("get project %d: %w", id, repository.ErrNotFound)
	}
	p = q.withManagers(p)
	return &p, nil
}

func (q *txQueries) CreateProject(ctx context.Context, p *models.Project) error {
	if q.readOnly {
		return errReadOnly
	}
	for _, existing := range q.st.projects {
		if existing.ProjectCode == p.ProjectCode {
			return fmt.Errorf("insert project %q: %w: projects_project_code_key", p.ProjectCode, repository.ErrConflict)
		}
	}
	q.st.nextProject++
	p.ID = q.st.nextProject
	stored := *p
	stored.Managers = nil
	q.st.projects[p.ID] = stored
	return nil
}

func (q *txQueries) UpdateProject(ctx context.Context, p *models.Project) error {
	if q.readOnly {
		return errReadOnly
	}
	existing, ok := q.st.projects[p.ID]
	if !ok {
		return fmt.Errorf("update project %d: %w", p.ID, repository.ErrNotFound)
	}
	stored := *p
	stored.ProjectCode = existing.ProjectCode
	stored.CreatedAt = existing.CreatedAt
	stored.Managers = nil
	q.st.projects[p.ID] = stored
	return nil
}

func (q *txQueries) AddAssignment(ctx context.Context, projectID, pmID int64) error {
	if q.readOnly {
		return errReadOnly
	}
	if _, ok := q.st.projects[projectID]; !ok {
		return fmt.Errorf("assign manager %d to project %d: %w", pmID, projectID, repository.ErrNotFound)
	}
	if _, ok := q.st.managers[pmID]; !ok {
		return fmt.Errorf("assign manager %d to project %d: %w", pmID, projectID, repository.ErrNotFound)
	}
	q.st.assignments[assignment{projectID: projectID, pmID: pmID}] = struct{}{}
	return nil
}

func (q *txQueries) RemoveAssignment(ctx context.Context, projectID, pmID int64) error {
	if q.readOnly {
		return errReadOnly
	}
	delete(q.st.assignments, assignment{projectID: projectID, pmID: pmID})
	return nil
}

func (q *txQueries) GetManager(ctx context.Context, id int64, lock bool) (*models.ProjectManager, error) {
	pm, ok := q.st.managers[id]
	if !ok {
		return nil, fmt.Errorf("get manager %d: %w", id, repository.ErrNotFound)
	}
	return &pm, nil
}

func (q *txQueries) ManagerExists(ctx context.Context, id int64) (bool, error) {
	_, ok := q.st.managers[id]
	return ok, nil
}

func (q *txQueries) FindManagers(ctx context.Context, f repository.ManagerFilter) ([]models.ProjectManager, error) {
	out := []models.ProjectManager{}
	for _, pm := range q.st.managers {
		pm := pm
		if f.Matches(&pm) {
			out = append(out, pm)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (q *txQueries) CreateManager(ctx context.Context, pm *models.ProjectManager) error {
	if q.readOnly {
		return errReadOnly
	}
	if pm.IsActive {
		for _, existing := range q.st.managers {
			if !existing.IsActive {
				continue
			}
			if existing.Email == pm.Email {
				return fmt.Errorf("insert manager %q: %w: project_managers_email_active_key", pm.Email, repository.ErrConflict)
			}
			if pm.EmployeeID != nil && existing.EmployeeID != nil && *existing.EmployeeID == *pm.EmployeeID {
				return fmt.Errorf("insert manager %q: %w: project_managers_employee_id_active_key", pm.Email, repository.ErrConflict)
			}
		}
	}
	q.st.nextManager++
	pm.ID = q.st.nextManager
	q.st.managers[pm.ID] = *pm
	return nil
}
