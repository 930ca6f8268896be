package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"project-tracker-api/internal/mapper"
	"project-tracker-api/internal/models"
	"project-tracker-api/internal/repository"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ManagerService implements the project manager operations
type ManagerService struct {
	store    repository.Store
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewManagerService returns a ManagerService over store. A nil validator or
// logger falls back to NewValidator and a no-op logger.
func NewManagerService(store repository.Store, v *validator.Validate, logger *zap.Logger) *ManagerService {
	if v == nil {
		v = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ManagerService{store: store, validate: v, logger: logger.Named("managers"), now: defaultNow}
}

// SetClock overrides the time source used for created_at and updated_at
func (s *ManagerService) SetClock(now func() time.Time) {
	s.now = now
}

// Create registers a manager. Email and employee id must be unused among active managers.
func (s *ManagerService) Create(ctx context.Context, req *models.CreateManagerRequest) (*models.ProjectManagerDTO, error) {
	if req == nil {
		return nil, Invalid("body", "is required")
	}
	req.Email = strings.TrimSpace(req.Email)
	verr := &ValidationError{}
	if err := collect(s.validate.Struct(req), verr); err != nil {
		return nil, err
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	pm := mapper.ToProjectManager(req)
	now := s.now()
	pm.CreatedAt = now
	pm.UpdatedAt = now
	pm.IsActive = true

	err := s.store.WithTx(ctx, repository.TxReadWrite, func(q repository.Queries) error {
		taken, err := q.FindManagers(ctx, repository.ManagerFilter{Email: &pm.Email})
		if err != nil {
			return err
		}
		if len(taken) > 0 {
			return fmt.Errorf("email %q: %w", pm.Email, repository.ErrConflict)
		}
		if pm.EmployeeID != nil {
			taken, err = q.FindManagers(ctx, repository.ManagerFilter{EmployeeID: pm.EmployeeID})
			if err != nil {
				return err
			}
			if len(taken) > 0 {
				return fmt.Errorf("employee id %q: %w", *pm.EmployeeID, repository.ErrConflict)
			}
		}
		return q.CreateManager(ctx, pm)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("project manager created", zap.Int64("pm_id", pm.ID), zap.String("email", pm.Email))
	return mapper.ToProjectManagerDTO(pm), nil
}

// Get returns a manager by id, active or not
func (s *ManagerService) Get(ctx context.Context, id int64) (*models.ProjectManagerDTO, error) {
	s.logger.Debug("fetching project manager", zap.Int64("pm_id", id))

	var out *models.ProjectManagerDTO
	err := s.store.WithTx(ctx, repository.TxReadOnly, func(q repository.Queries) error {
		pm, err := q.GetManager(ctx, id, false)
		if err != nil {
			return err
		}
		out = mapper.ToProjectManagerDTO(pm)
		return nil
	})
	return out, err
}

// GetByEmail returns the active manager with the given email
func (s *ManagerService) GetByEmail(ctx context.Context, email string) (*models.ProjectManagerDTO, error) {
	return s.findOne(ctx, repository.ManagerFilter{Email: &email}, "email "+email)
}

// GetByEmployeeID returns the active manager with the given employee id
func (s *ManagerService) GetByEmployeeID(ctx context.Context, employeeID string) (*models.ProjectManagerDTO, error) {
	return s.findOne(ctx, repository.ManagerFilter{EmployeeID: &employeeID}, "employee id "+employeeID)
}

// List returns every active manager ordered by name
func (s *ManagerService) List(ctx context.Context) ([]models.ProjectManagerDTO, error) {
	s.logger.Debug("listing project managers")
	return s.find(ctx, repository.ManagerFilter{})
}

// Search filters active managers by a case-insensitive name fragment and an exact department
func (s *ManagerService) Search(ctx context.Context, name, department *string) ([]models.ProjectManagerDTO, error) {
	s.logger.Debug("searching project managers", zap.Stringp("name", name), zap.Stringp("department", department))
	return s.find(ctx, repository.ManagerFilter{Name: name, Department: department})
}

func (s *ManagerService) findOne(ctx context.Context, f repository.ManagerFilter, what string) (*models.ProjectManagerDTO, error) {
	found, err := s.find(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("project manager with %s: %w", what, repository.ErrNotFound)
	}
	return &found[0], nil
}

func (s *ManagerService) find(ctx context.Context, f repository.ManagerFilter) ([]models.ProjectManagerDTO, error) {
	var out []models.ProjectManagerDTO
	err := s.store.WithTx(ctx, repository.TxReadOnly, func(q repository.Queries) error {
		managers, err := q.FindManagers(ctx, f)
		if err != nil {
			return err
		}
		out = mapper.ToProjectManagerDTOList(managers)
		return nil
	})
	return out, err
}
