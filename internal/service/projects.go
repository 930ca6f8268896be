// Package service sequences validation, existence checks, persistence and
// mapping for every project and manager operation. Each operation runs in a
// single storage transaction.
package service

import (
	"context"
	"fmt"
	"time"

	"project-tracker-api/internal/mapper"
	"project-tracker-api/internal/models"
	"project-tracker-api/internal/repository"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ProjectService implements the project operations
type ProjectService struct {
	store    repository.Store
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewProjectService wires a ProjectService. A nil validator or logger is replaced by a default.
func NewProjectService(store repository.Store, v *validator.Validate, logger *zap.Logger) *ProjectService {
	if v == nil {
		v = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectService{store: store, validate: v, logger: logger.Named("projects"), now: defaultNow}
}

// SetClock overrides the time source used for created_at and updated_at
func (s *ProjectService) SetClock(now func() time.Time) {
	s.now = now
}

// timestamps round-trip through TIMESTAMPTZ at microsecond precision
func defaultNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// SearchParams are the optional criteria of Search; nil means unconstrained
type SearchParams struct {
	ManagerID  *int64
	Status     *models.ProjectStatus
	ClientName *string
}

func requireManager(ctx context.Context, q repository.Queries, pmID int64) error {
	ok, err := q.ManagerExists(ctx, pmID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("project manager %d: %w", pmID, repository.ErrNotFound)
	}
	return nil
}

func (s *ProjectService) read(ctx context.Context, fn func(q repository.Queries) error) error {
	return s.store.WithTx(ctx, repository.TxReadOnly, fn)
}

func (s *ProjectService) write(ctx context.Context, fn func(q repository.Queries) error) error {
	return s.store.WithTx(ctx, repository.TxReadWrite, fn)
}

// findForManager lists projects of an existing manager narrowed by f
func (s *ProjectService) findForManager(ctx context.Context, pmID int64, f repository.ProjectFilter) ([]models.ProjectDTO, error) {
	f.ManagerID = &pmID
	if f.Sort == nil {
		f.Sort = repository.SortByID
	}

	var out []models.ProjectDTO
	err := s.read(ctx, func(q repository.Queries) error {
		if err := requireManager(ctx, q, pmID); err != nil {
			return err
		}
		projects, err := q.FindProjects(ctx, f)
		if err != nil {
			return err
		}
		out = mapper.ToProjectDTOList(projects)
		return nil
	})
	return out, err
}

// GetByManagerID lists the active projects assigned to a manager
func (s *ProjectService) GetByManagerID(ctx context.Context, pmID int64) ([]models.ProjectDTO, error) {
	s.logger.Debug("fetching projects for manager", zap.Int64("pm_id", pmID))
	return s.findForManager(ctx, pmID, repository.ProjectFilter{})
}

// GetByManagerIDPage returns one sorted page of a manager's active projects
func (s *ProjectService) GetByManagerIDPage(ctx context.Context, pmID int64, page, size int, sortBy, sortDir string) (*models.ProjectPage, error) {
	s.logger.Debug("fetching project page for manager",
		zap.Int64("pm_id", pmID), zap.Int("page", page), zap.Int("size", size),
		zap.String("sort_by", sortBy), zap.String("sort_dir", sortDir))

	req, err := repository.NewPageRequest(page, size, sortBy, sortDir)
	if err != nil {
		return nil, Invalid("page", err.Error())
	}

	var out *models.ProjectPage
	err = s.read(ctx, func(q repository.Queries) error {
		if err := requireManager(ctx, q, pmID); err != nil {
			return err
		}
		projects, total, err := q.FindProjectsPage(ctx, repository.ProjectFilter{ManagerID: &pmID}, req)
		if err != nil {
			return err
		}
		out = &models.ProjectPage{
			Items:      mapper.ToProjectDTOList(projects),
			Total:      total,
			Page:       req.Page,
			Size:       req.Size,
			TotalPages: req.TotalPages(total),
		}
		return nil
	})
	return out, err
}

// GetByManagerEmail lists active projects of the manager with that email; unknown emails yield an empty list
func (s *ProjectService) GetByManagerEmail(ctx context.Context, email string) ([]models.ProjectDTO, error) {
	s.logger.Debug("fetching projects for manager email", zap.String("email", email))
	return s.find(ctx, repository.ProjectFilter{ManagerEmail: &email, Sort: repository.SortByID})
}

// GetByManagerEmployeeID lists active projects of the manager with that employee id
func (s *ProjectService) GetByManagerEmployeeID(ctx context.Context, employeeID string) ([]models.ProjectDTO, error) {
	s.logger.Debug("fetching projects for manager employee id", zap.String("employee_id", employeeID))
	return s.find(ctx, repository.ProjectFilter{ManagerEmployeeID: &employeeID, Sort: repository.SortByID})
}

// GetByManagerIDAndStatus narrows a manager's active projects to one status
func (s *ProjectService) GetByManagerIDAndStatus(ctx context.Context, pmID int64, status models.ProjectStatus) ([]models.ProjectDTO, error) {
	s.logger.Debug("fetching projects for manager by status", zap.Int64("pm_id", pmID), zap.String("status", string(status)))
	if !status.Valid() {
		return nil, Invalid("status", fmt.Sprintf("must be one of %v", models.ValidStatuses))
	}
	return s.findForManager(ctx, pmID, repository.ProjectFilter{Status: &status})
}

// GetByManagerIDAndDateRange narrows a manager's active projects to start dates in [start, end]
func (s *ProjectService) GetByManagerIDAndDateRange(ctx context.Context, pmID int64, start, end models.Date) ([]models.ProjectDTO, error) {
	s.logger.Debug("fetching projects for manager by date range",
		zap.Int64("pm_id", pmID), zap.Stringer("start", start), zap.Stringer("end", end))

	verr := &ValidationError{}
	if start.IsZero() {
		verr.add("start_date", "is required")
	}
	if end.IsZero() {
		verr.add("end_date", "is required")
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		verr.add("end_date", "must not be before start_date")
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}
	return s.findForManager(ctx, pmID, repository.ProjectFilter{StartFrom: &start, StartTo: &end})
}

// CountByManagerID counts a manager's active projects
func (s *ProjectService) CountByManagerID(ctx context.Context, pmID int64) (int64, error) {
	s.logger.Debug("counting projects for manager", zap.Int64("pm_id", pmID))

	var n int64
	err := s.read(ctx, func(q repository.Queries) error {
		if err := requireManager(ctx, q, pmID); err != nil {
			return err
		}
		var err error
		n, err = q.CountProjects(ctx, repository.ProjectFilter{ManagerID: &pmID})
		return err
	})
	return n, err
}

// GetByID returns a project whether or not it is active
func (s *ProjectService) GetByID(ctx context.Context, id int64) (*models.ProjectDTO, error) {
	s.logger.Debug("fetching project", zap.Int64("project_id", id))

	var out *models.ProjectDTO
	err := s.read(ctx, func(q repository.Queries) error {
		p, err := q.GetProject(ctx, id, false)
		if err != nil {
			return err
		}
		out = mapper.ToProjectDTO(p)
		return nil
	})
	return out, err
}

// GetByCode returns the active project with the given code
func (s *ProjectService) GetByCode(ctx context.Context, code string) (*models.ProjectDTO, error) {
	s.logger.Debug("fetching project by code", zap.String("project_code", code))

	projects, err := s.find(ctx, repository.ProjectFilter{Code: &code})
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, fmt.Errorf("project code %q: %w", code, repository.ErrNotFound)
	}
	return &projects[0], nil
}

// GetAllActive lists every active project, most recently updated first
func (s *ProjectService) GetAllActive(ctx context.Context) ([]models.ProjectDTO, error) {
	s.logger.Debug("fetching all active projects")
	return s.find(ctx, repository.ProjectFilter{Sort: repository.SortByUpdatedDesc})
}

// Search applies each present criterion; results are ordered by updated_at descending
func (s *ProjectService) Search(ctx context.Context, params SearchParams) ([]models.ProjectDTO, error) {
	s.logger.Debug("searching projects",
		zap.Int64p("pm_id", params.ManagerID),
		zap.Stringp("client_name", params.ClientName),
		zap.Any("status", params.Status))

	if params.Status != nil && !params.Status.Valid() {
		return nil, Invalid("status", fmt.Sprintf("must be one of %v", models.ValidStatuses))
	}
	return s.find(ctx, repository.ProjectFilter{
		ManagerID:  params.ManagerID,
		Status:     params.Status,
		ClientName: params.ClientName,
		Sort:       repository.SortByUpdatedDesc,
	})
}

func (s *ProjectService) find(ctx context.Context, f repository.ProjectFilter) ([]models.ProjectDTO, error) {
	var out []models.ProjectDTO
	err := s.read(ctx, func(q repository.Queries) error {
		projects, err := q.FindProjects(ctx, f)
		if err != nil {
			return err
		}
		out = mapper.ToProjectDTOList(projects)
		return nil
	})
	return out, err
}

// Validate runs the create-time checks without touching storage
func (s *ProjectService) Validate(dto *models.ProjectDTO) error {
	_, err := s.prepareCreate(dto)
	return err
}

func (s *ProjectService) prepareCreate(dto *models.ProjectDTO) (*models.Project, error) {
	if dto == nil {
		return nil, Invalid("body", "is required")
	}

	verr := &ValidationError{}
	if err := collect(s.validate.Struct(dto), verr); err != nil {
		return nil, err
	}
	if dto.StartDate == nil || dto.StartDate.IsZero() {
		verr.add("start_date", "is required")
	}

	p := mapper.ToProject(dto)
	p.Budget = money("budget", p.Budget, verr)
	p.ActualCost = money("actual_cost", p.ActualCost, verr)
	if p.EndDate != nil && !p.StartDate.IsZero() && p.EndDate.Before(p.StartDate) {
		verr.add("end_date", "must not be before start_date")
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	p.ID = 0
	if p.Status == "" {
		p.Status = models.StatusPlanning
	}
	if p.Priority == "" {
		p.Priority = models.PriorityMedium
	}
	p.IsActive = true
	return p, nil
}

// Create validates and persists a new active project
func (s *ProjectService) Create(ctx context.Context, dto *models.ProjectDTO) (*models.ProjectDTO, error) {
	return s.createWithManagers(ctx, dto, nil)
}

// Import creates a project and assigns the active managers with the given
// employee ids in one transaction. An unknown employee id fails the whole row.
func (s *ProjectService) Import(ctx context.Context, dto *models.ProjectDTO, managerEmployeeIDs []string) (*models.ProjectDTO, error) {
	return s.createWithManagers(ctx, dto, managerEmployeeIDs)
}

func (s *ProjectService) createWithManagers(ctx context.Context, dto *models.ProjectDTO, employeeIDs []string) (*models.ProjectDTO, error) {
	p, err := s.prepareCreate(dto)
	if err != nil {
		return nil, err
	}
	now := s.now()
	p.CreatedAt = now
	p.UpdatedAt = now

	var out *models.ProjectDTO
	err = s.write(ctx, func(q repository.Queries) error {
		if err := q.CreateProject(ctx, p); err != nil {
			return err
		}
		for _, empID := range employeeIDs {
			empID := empID
			managers, err := q.FindManagers(ctx, repository.ManagerFilter{EmployeeID: &empID})
			if err != nil {
				return err
			}
			if len(managers) == 0 {
				return fmt.Errorf("project manager with employee id %q: %w", empID, repository.ErrNotFound)
			}
			if err := q.AddAssignment(ctx, p.ID, managers[0].ID); err != nil {
				return err
			}
		}
		created, err := q.GetProject(ctx, p.ID, false)
		if err != nil {
			return err
		}
		out = mapper.ToProjectDTO(created)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("project created",
		zap.Int64("project_id", out.ID),
		zap.String("project_code", out.ProjectCode),
		zap.Int("managers", len(out.ProjectManagers)))
	return out, nil
}

// Update overwrites the mutable fields of a project: name, description,
// status, priority, end_date, budget, actual_cost and completion_percentage.
// An empty priority keeps the current one.
func (s *ProjectService) Update(ctx context.Context, id int64, dto *models.ProjectDTO) (*models.ProjectDTO, error) {
	if dto == nil {
		return nil, Invalid("body", "is required")
	}
	verr := &ValidationError{}
	if err := collect(s.validate.Struct(dto), verr, "ProjectCode"); err != nil {
		return nil, err
	}
	if dto.Status == "" {
		verr.add("status", "is required")
	}
	budget := money("budget", dto.Budget, verr)
	actualCost := money("actual_cost", dto.ActualCost, verr)
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	var out *models.ProjectDTO
	err := s.write(ctx, func(q repository.Queries) error {
		p, err := q.GetProject(ctx, id, true)
		if err != nil {
			return err
		}
		endDate := mapper.CloneDate(dto.EndDate)
		if endDate != nil && endDate.Before(p.StartDate) {
			return Invalid("end_date", "must not be before start_date")
		}

		p.Name = dto.Name
		p.Description = dto.Description
		p.Status = dto.Status
		if dto.Priority != "" {
			p.Priority = dto.Priority
		}
		p.EndDate = endDate
		p.Budget = budget
		p.ActualCost = actualCost
		if dto.CompletionPercentage != nil {
			p.CompletionPercentage = *dto.CompletionPercentage
		}
		p.UpdatedAt = s.now()

		if err := q.UpdateProject(ctx, p); err != nil {
			return err
		}
		out = mapper.ToProjectDTO(p)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("project updated", zap.Int64("project_id", id))
	return out, nil
}

// Delete flags a project inactive; the row and its assignments stay
func (s *ProjectService) Delete(ctx context.Context, id int64) error {
	err := s.write(ctx, func(q repository.Queries) error {
		p, err := q.GetProject(ctx, id, true)
		if err != nil {
			return err
		}
		p.IsActive = false
		p.UpdatedAt = s.now()
		return q.UpdateProject(ctx, p)
	})
	if err != nil {
		return err
	}

	s.logger.Info("project deactivated", zap.Int64("project_id", id))
	return nil
}

// AssignManager links a manager to a project; assigning twice changes nothing
func (s *ProjectService) AssignManager(ctx context.Context, projectID, pmID int64) (*models.ProjectDTO, error) {
	out, err := s.changeAssignment(ctx, projectID, pmID, func(q repository.Queries) error {
		return q.AddAssignment(ctx, projectID, pmID)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("manager assigned", zap.Int64("project_id", projectID), zap.Int64("pm_id", pmID))
	return out, nil
}

// RemoveManager unlinks a manager from a project; removing an absent link changes nothing
func (s *ProjectService) RemoveManager(ctx context.Context, projectID, pmID int64) (*models.ProjectDTO, error) {
	out, err := s.changeAssignment(ctx, projectID, pmID, func(q repository.Queries) error {
		return q.RemoveAssignment(ctx, projectID, pmID)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("manager removed", zap.Int64("project_id", projectID), zap.Int64("pm_id", pmID))
	return out, nil
}

// changeAssignment locks both rows, applies change and returns the project as it now stands
func (s *ProjectService) changeAssignment(ctx context.Context, projectID, pmID int64, change func(q repository.Queries) error) (*models.ProjectDTO, error) {
	var out *models.ProjectDTO
	err := s.write(ctx, func(q repository.Queries) error {
		if _, err := q.GetProject(ctx, projectID, true); err != nil {
			return err
		}
		if _, err := q.GetManager(ctx, pmID, true); err != nil {
			return err
		}
		if err := change(q); err != nil {
			return err
		}
		p, err := q.GetProject(ctx, projectID, false)
		if err != nil {
			return err
		}
		out = mapper.ToProjectDTO(p)
		return nil
	})
	return out, err
}
