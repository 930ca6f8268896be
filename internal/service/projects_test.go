package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"project-tracker-api/internal/models"
	"project-tracker-api/internal/repository"
	"project-tracker-api/internal/repository/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeClock advances one minute per call so updated_at ordering is deterministic
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Minute)
	return c.t
}

type fixture struct {
	store    *memory.Store
	projects *ProjectService
	managers *ManagerService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	logger := zaptest.NewLogger(t)
	v := NewValidator()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)}

	ps := NewProjectService(store, v, logger)
	ps.SetClock(clock.Now)
	ms := NewManagerService(store, v, logger)
	ms.SetClock(clock.Now)
	return &fixture{store: store, projects: ps, managers: ms}
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func datePtr(y int, m time.Month, d int) *models.Date {
	v := models.NewDate(y, m, d)
	return &v
}

func (f *fixture) createProject(t *testing.T, code string) *models.ProjectDTO {
	t.Helper()
	dto, err := f.projects.Create(context.Background(), &models.ProjectDTO{
		Name:        "Project " + code,
		ProjectCode: code,
		StartDate:   datePtr(2024, 1, 1),
	})
	require.NoError(t, err)
	return dto
}

func (f *fixture) createManager(t *testing.T, name, email string) *models.ProjectManagerDTO {
	t.Helper()
	pm, err := f.managers.Create(context.Background(), &models.CreateManagerRequest{Name: name, Email: email})
	require.NoError(t, err)
	return pm
}

func projectIDs(dtos []models.ProjectDTO) []int64 {
	out := make([]int64, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.ID)
	}
	return out
}

func TestCreateAppliesDefaults(t *testing.T) {
	f := newFixture(t)

	got, err := f.projects.Create(context.Background(), &models.ProjectDTO{
		Name:        "Website Revamp",
		ProjectCode: "WR-001",
		StartDate:   datePtr(2024, 1, 1),
	})
	require.NoError(t, err)

	assert.NotZero(t, got.ID)
	assert.Equal(t, models.StatusPlanning, got.Status)
	assert.Equal(t, models.PriorityMedium, got.Priority)
	require.NotNil(t, got.CompletionPercentage)
	assert.Equal(t, 0, *got.CompletionPercentage)
	assert.True(t, got.IsActive)
	require.NotNil(t, got.CreatedAt)
	assert.Equal(t, got.CreatedAt, got.UpdatedAt)
	assert.Empty(t, got.ProjectManagers)
}

func TestCreateIgnoresClientSuppliedIdentity(t *testing.T) {
	f := newFixture(t)

	got, err := f.projects.Create(context.Background(), &models.ProjectDTO{
		ID:          99,
		Name:        "Data Platform",
		ProjectCode: "DP-1",
		StartDate:   datePtr(2024, 2, 1),
		IsActive:    false,
		Budget:      decimal.NewNullDecimal(decimal.RequireFromString("1000.456")),
		ProjectManagers: []models.ProjectManagerDTO{
			{ID: 1, Name: "Ghost", Email: "ghost@example.com"},
		},
	})
	require.NoError(t, err)
	assert.NotEqual(t, int64(99), got.ID)
	assert.True(t, got.IsActive)
	assert.Empty(t, got.ProjectManagers)
	assert.Equal(t, "1000.46", got.Budget.Decimal.StringFixed(2))
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name  string
		dto   *models.ProjectDTO
		field string
	}{
		{"nil body", nil, "body"},
		{"short name", &models.ProjectDTO{Name: "ab", ProjectCode: "X-1", StartDate: datePtr(2024, 1, 1)}, "name"},
		{"missing code", &models.ProjectDTO{Name: "Valid name", StartDate: datePtr(2024, 1, 1)}, "project_code"},
		{"long code", &models.ProjectDTO{Name: "Valid name", ProjectCode: "ABCDEFGHIJKLMNOPQRSTU", StartDate: datePtr(2024, 1, 1)}, "project_code"},
		{"missing start", &models.ProjectDTO{Name: "Valid name", ProjectCode: "X-1"}, "start_date"},
		{"bad status", &models.ProjectDTO{Name: "Valid name", ProjectCode: "X-1", StartDate: datePtr(2024, 1, 1), Status: "DONE"}, "status"},
		{"bad priority", &models.ProjectDTO{Name: "Valid name", ProjectCode: "X-1", StartDate: datePtr(2024, 1, 1), Priority: "URGENT"}, "priority"},
		{"completion over 100", &models.ProjectDTO{Name: "Valid name", ProjectCode: "X-1", StartDate: datePtr(2024, 1, 1), CompletionPercentage: intPtr(101)}, "completion_percentage"},
		{"negative budget", &models.ProjectDTO{Name: "Valid name", ProjectCode: "X-1", StartDate: datePtr(2024, 1, 1), Budget: decimal.NewNullDecimal(decimal.NewFromInt(-1))}, "budget"},
		{"end before start", &models.ProjectDTO{Name: "Valid name", ProjectCode: "X-1", StartDate: datePtr(2024, 3, 1), EndDate: datePtr(2024, 2, 1)}, "end_date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.projects.Create(context.Background(), tt.dto)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			fields := []string{}
			for _, fe := range verr.Fields {
				fields = append(fields, fe.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}

	all, err := f.projects.GetAllActive(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateDuplicateCode(t *testing.T) {
	f := newFixture(t)
	f.createProject(t, "DUP-1")

	_, err := f.projects.Create(context.Background(), &models.ProjectDTO{
		Name: "Another", ProjectCode: "DUP-1", StartDate: datePtr(2024, 5, 1),
	})
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestUpdateOverwritesOnlyMutableFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.projects.Create(ctx, &models.ProjectDTO{
		Name:            "Original",
		ProjectCode:     "UP-1",
		StartDate:       datePtr(2024, 1, 1),
		ClientName:      strPtr("Acme"),
		TechnologyStack: strPtr("Go"),
		TeamSize:        intPtr(5),
		Priority:        models.PriorityHigh,
	})
	require.NoError(t, err)
	pm := f.createManager(t, "Dana Lee", "dana@example.com")
	_, err = f.projects.AssignManager(ctx, created.ID, pm.ID)
	require.NoError(t, err)

	updated, err := f.projects.Update(ctx, created.ID, &models.ProjectDTO{
		Name:                 "Renamed",
		Description:          strPtr("now with a description"),
		ProjectCode:          "HIJACK",
		Status:               models.StatusInProgress,
		StartDate:            datePtr(2030, 1, 1),
		EndDate:              datePtr(2024, 12, 31),
		Budget:               decimal.NewNullDecimal(decimal.NewFromInt(5000)),
		ActualCost:           decimal.NewNullDecimal(decimal.NewFromInt(1200)),
		ClientName:           strPtr("Other client"),
		TechnologyStack:      strPtr("Rust"),
		TeamSize:             intPtr(50),
		CompletionPercentage: intPtr(60),
	})
	require.NoError(t, err)

	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "now with a description", *updated.Description)
	assert.Equal(t, models.StatusInProgress, updated.Status)
	assert.Equal(t, models.PriorityHigh, updated.Priority, "empty priority keeps the current value")
	assert.Equal(t, "2024-12-31", updated.EndDate.String())
	assert.Equal(t, "5000", updated.Budget.Decimal.String())
	assert.Equal(t, "1200", updated.ActualCost.Decimal.String())
	assert.Equal(t, 60, *updated.CompletionPercentage)

	assert.Equal(t, "UP-1", updated.ProjectCode)
	assert.Equal(t, "2024-01-01", updated.StartDate.String())
	assert.Equal(t, "Acme", *updated.ClientName)
	assert.Equal(t, "Go", *updated.TechnologyStack)
	assert.Equal(t, 5, *updated.TeamSize)
	require.Len(t, updated.ProjectManagers, 1)
	assert.Equal(t, pm.ID, updated.ProjectManagers[0].ID)
	assert.True(t, updated.UpdatedAt.After(*created.UpdatedAt))
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)

	stored, err := f.projects.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, stored)
}

func TestEmptyEndDateMeansNone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var dto models.ProjectDTO
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Website Revamp","project_code":"WR-001","start_date":"2024-01-01","end_date":""}`), &dto))
	require.NotNil(t, dto.EndDate)

	created, err := f.projects.Create(ctx, &dto)
	require.NoError(t, err)
	assert.Nil(t, created.EndDate)

	stored, err := f.projects.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.EndDate)

	body, err := json.Marshal(stored)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "end_date")

	updated, err := f.projects.Update(ctx, created.ID, &models.ProjectDTO{
		Name:    "Website Revamp",
		Status:  models.StatusInProgress,
		EndDate: &models.Date{},
	})
	require.NoError(t, err)
	assert.Nil(t, updated.EndDate)
}

func TestUpdateErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProject(t, "UE-1")

	_, err := f.projects.Update(ctx, 12345, &models.ProjectDTO{Name: "Whatever", Status: models.StatusPlanning})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = f.projects.Update(ctx, p.ID, &models.ProjectDTO{Name: "Whatever"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.projects.Update(ctx, p.ID, &models.ProjectDTO{Name: "Whatever", Status: models.StatusPlanning, EndDate: datePtr(2023, 12, 31)})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.projects.Update(ctx, p.ID, nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDeleteIsSoft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.createProject(t, "DEL-1")
	keep := f.createProject(t, "DEL-2")
	pm := f.createManager(t, "Eve", "eve@example.com")
	_, err := f.projects.AssignManager(ctx, p.ID, pm.ID)
	require.NoError(t, err)
	_, err = f.projects.AssignManager(ctx, keep.ID, pm.ID)
	require.NoError(t, err)

	require.NoError(t, f.projects.Delete(ctx, p.ID))

	all, err := f.projects.GetAllActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{keep.ID}, projectIDs(all))

	_, err = f.projects.GetByCode(ctx, "DEL-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	byManager, err := f.projects.GetByManagerID(ctx, pm.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{keep.ID}, projectIDs(byManager))

	n, err := f.projects.CountByManagerID(ctx, pm.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	byEmail, err := f.projects.GetByManagerEmail(ctx, "eve@example.com")
	require.NoError(t, err)
	assert.Equal(t, []int64{keep.ID}, projectIDs(byEmail))

	gone, err := f.projects.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, gone.IsActive)
	assert.Len(t, gone.ProjectManagers, 1)
	assert.True(t, gone.UpdatedAt.After(*p.UpdatedAt))

	assert.ErrorIs(t, f.projects.Delete(ctx, 999), repository.ErrNotFound)
}

func TestAssignManagerIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var p3 *models.ProjectDTO
	for _, code := range []string{"A-1", "A-2", "A-3"} {
		p3 = f.createProject(t, code)
	}
	var pm7 *models.ProjectManagerDTO
	for i := 0; i < 7; i++ {
		pm7 = f.createManager(t, "Manager", string(rune('a'+i))+"@example.com")
	}
	require.Equal(t, int64(3), p3.ID)
	require.Equal(t, int64(7), pm7.ID)

	first, err := f.projects.AssignManager(ctx, 3, 7)
	require.NoError(t, err)
	second, err := f.projects.AssignManager(ctx, 3, 7)
	require.NoError(t, err)
	assert.Equal(t, first.ProjectManagers, second.ProjectManagers)
	assert.Len(t, second.ProjectManagers, 1)

	got, err := f.projects.GetByManagerID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, projectIDs(got))
}

func TestRemoveManager(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProject(t, "RM-1")
	pm := f.createManager(t, "Frank", "frank@example.com")

	got, err := f.projects.RemoveManager(ctx, p.ID, pm.ID)
	require.NoError(t, err, "removing an absent link is a no-op")
	assert.Empty(t, got.ProjectManagers)

	_, err = f.projects.AssignManager(ctx, p.ID, pm.ID)
	require.NoError(t, err)
	got, err = f.projects.RemoveManager(ctx, p.ID, pm.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ProjectManagers)

	byManager, err := f.projects.GetByManagerID(ctx, pm.ID)
	require.NoError(t, err)
	assert.Empty(t, byManager)
}

func TestAssignmentRequiresBothSides(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProject(t, "AR-1")
	pm := f.createManager(t, "Gina", "gina@example.com")

	_, err := f.projects.AssignManager(ctx, 999, pm.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = f.projects.AssignManager(ctx, p.ID, 999)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = f.projects.RemoveManager(ctx, 999, pm.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = f.projects.RemoveManager(ctx, p.ID, 999)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestManagerScopedQueriesRequireManager(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.projects.GetByManagerID(ctx, 42)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = f.projects.GetByManagerIDPage(ctx, 42, 0, 10, "updatedAt", "desc")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = f.projects.GetByManagerIDAndStatus(ctx, 42, models.StatusPlanning)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = f.projects.GetByManagerIDAndDateRange(ctx, 42, models.NewDate(2024, 1, 1), models.NewDate(2024, 2, 1))
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = f.projects.CountByManagerID(ctx, 42)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	byEmail, err := f.projects.GetByManagerEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, byEmail)
	byEmployee, err := f.projects.GetByManagerEmployeeID(ctx, "E-404")
	require.NoError(t, err)
	assert.Empty(t, byEmployee)
}

func TestManagerScopedFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pm := f.createManager(t, "Hank", "hank@example.com")

	starts := []*models.Date{datePtr(2024, 1, 15), datePtr(2024, 2, 15), datePtr(2024, 3, 15)}
	var ids []int64
	for i, start := range starts {
		status := models.StatusPlanning
		if i == 1 {
			status = models.StatusOnHold
		}
		p, err := f.projects.Create(ctx, &models.ProjectDTO{
			Name: "Filtered project", ProjectCode: string(rune('F'+i)) + "-1", StartDate: start, Status: status,
		})
		require.NoError(t, err)
		_, err = f.projects.AssignManager(ctx, p.ID, pm.ID)
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}

	onHold, err := f.projects.GetByManagerIDAndStatus(ctx, pm.ID, models.StatusOnHold)
	require.NoError(t, err)
	assert.Equal(t, []int64{ids[1]}, projectIDs(onHold))

	_, err = f.projects.GetByManagerIDAndStatus(ctx, pm.ID, "SOMEDAY")
	assert.ErrorIs(t, err, ErrValidation)

	ranged, err := f.projects.GetByManagerIDAndDateRange(ctx, pm.ID, models.NewDate(2024, 1, 15), models.NewDate(2024, 2, 15))
	require.NoError(t, err)
	assert.Equal(t, []int64{ids[0], ids[1]}, projectIDs(ranged))

	_, err = f.projects.GetByManagerIDAndDateRange(ctx, pm.ID, models.NewDate(2024, 3, 1), models.NewDate(2024, 1, 1))
	assert.ErrorIs(t, err, ErrValidation)

	all, err := f.projects.GetByManagerID(ctx, pm.ID)
	require.NoError(t, err)
	n, err := f.projects.CountByManagerID(ctx, pm.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(len(all)), n)
}

func TestGetByManagerIDPage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pm := f.createManager(t, "Ivy", "ivy@example.com")

	var ids []int64
	for _, code := range []string{"PG-1", "PG-2", "PG-3"} {
		p := f.createProject(t, code)
		_, err := f.projects.AssignManager(ctx, p.ID, pm.ID)
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}

	page, err := f.projects.GetByManagerIDPage(ctx, pm.ID, 0, 2, "projectCode", "desc")
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 0, page.Page)
	assert.Equal(t, 2, page.Size)
	assert.Equal(t, []int64{ids[2], ids[1]}, projectIDs(page.Items))

	page, err = f.projects.GetByManagerIDPage(ctx, pm.ID, 1, 2, "projectCode", "anything")
	require.NoError(t, err)
	assert.Equal(t, []int64{ids[2]}, projectIDs(page.Items))

	_, err = f.projects.GetByManagerIDPage(ctx, pm.ID, 0, 2, "secret_column", "asc")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.projects.GetByManagerIDPage(ctx, pm.ID, -1, 2, "name", "asc")
	assert.ErrorIs(t, err, ErrValidation)

	assert.NotPanics(t, func() {
		_, err = f.projects.GetByManagerIDPage(ctx, pm.ID, 92233720368547758, 200, "name", "asc")
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pm := f.createManager(t, "Jack", "jack@example.com")

	acme, err := f.projects.Create(ctx, &models.ProjectDTO{
		Name: "Acme portal", ProjectCode: "S-1", StartDate: datePtr(2024, 1, 1), ClientName: strPtr("Acme Corp"),
	})
	require.NoError(t, err)
	globex, err := f.projects.Create(ctx, &models.ProjectDTO{
		Name: "Globex app", ProjectCode: "S-2", StartDate: datePtr(2024, 1, 1), ClientName: strPtr("Globex"),
		Status: models.StatusInProgress,
	})
	require.NoError(t, err)
	_, err = f.projects.AssignManager(ctx, acme.ID, pm.ID)
	require.NoError(t, err)

	unfiltered, err := f.projects.Search(ctx, SearchParams{})
	require.NoError(t, err)
	active, err := f.projects.GetAllActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, active, unfiltered)
	assert.Equal(t, []int64{globex.ID, acme.ID}, projectIDs(active), "most recently updated first")

	got, err := f.projects.Search(ctx, SearchParams{ClientName: strPtr("aCmE")})
	require.NoError(t, err)
	assert.Equal(t, []int64{acme.ID}, projectIDs(got))

	status := models.StatusInProgress
	got, err = f.projects.Search(ctx, SearchParams{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, []int64{globex.ID}, projectIDs(got))

	got, err = f.projects.Search(ctx, SearchParams{ManagerID: &pm.ID, Status: &status})
	require.NoError(t, err)
	assert.Empty(t, got)

	bogus := models.ProjectStatus("LATE")
	_, err = f.projects.Search(ctx, SearchParams{Status: &bogus})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGetByCode(t *testing.T) {
	f := newFixture(t)
	p := f.createProject(t, "CODE-1")

	got, err := f.projects.GetByCode(context.Background(), "CODE-1")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = f.projects.GetByCode(context.Background(), "CODE-2")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestImportAssignsManagersAtomically(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pm, err := f.managers.Create(ctx, &models.CreateManagerRequest{Name: "Kim", Email: "kim@example.com", EmployeeID: strPtr("E-1")})
	require.NoError(t, err)

	got, err := f.projects.Import(ctx, &models.ProjectDTO{
		Name: "Imported", ProjectCode: "IMP-1", StartDate: datePtr(2024, 1, 1),
	}, []string{"E-1"})
	require.NoError(t, err)
	require.Len(t, got.ProjectManagers, 1)
	assert.Equal(t, pm.ID, got.ProjectManagers[0].ID)

	_, err = f.projects.Import(ctx, &models.ProjectDTO{
		Name: "Imported too", ProjectCode: "IMP-2", StartDate: datePtr(2024, 1, 1),
	}, []string{"E-404"})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = f.projects.GetByCode(ctx, "IMP-2")
	assert.ErrorIs(t, err, repository.ErrNotFound, "failed import leaves no project behind")
}

func TestValidateDoesNotPersist(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.projects.Validate(&models.ProjectDTO{Name: "Dry run", ProjectCode: "DRY-1", StartDate: datePtr(2024, 1, 1)}))
	assert.ErrorIs(t, f.projects.Validate(&models.ProjectDTO{Name: "Dry run"}), ErrValidation)

	all, err := f.projects.GetAllActive(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}
