// Package repotest holds the behavioural contract every repository.Store
// implementation must satisfy. Run it from the implementation's tests.
package repotest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"project-tracker-api/internal/models"
	"project-tracker-api/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store; cleanup is the factory's responsibility
type Factory func(t *testing.T) repository.Store

var base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// Run executes the contract suite against stores produced by newStore
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s repository.Store)
	}{
		{"CreateAndGetProject", testCreateAndGetProject},
		{"DuplicateProjectCode", testDuplicateProjectCode},
		{"UpdateProject", testUpdateProject},
		{"GetMissingProject", testGetMissingProject},
		{"AssignmentsAreIdempotent", testAssignmentsAreIdempotent},
		{"FilterByManager", testFilterByManager},
		{"FilterCombinations", testFilterCombinations},
		{"InactiveProjectsHidden", testInactiveProjectsHidden},
		{"SortAndPage", testSortAndPage},
		{"PagePastEnd", testPagePastEnd},
		{"Managers", testManagers},
		{"ManagerUniqueness", testManagerUniqueness},
		{"TxRollback", testTxRollback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func strPtr(s string) *string { return &s }

func newProject(code string, start models.Date, updated time.Time) *models.Project {
	return &models.Project{
		Name:        "Project " + code,
		ProjectCode: code,
		Status:      models.StatusPlanning,
		Priority:    models.PriorityMedium,
		StartDate:   start,
		CreatedAt:   updated,
		UpdatedAt:   updated,
		IsActive:    true,
	}
}

func newManager(name, email string) *models.ProjectManager {
	return &models.ProjectManager{
		Name:      name,
		Email:     email,
		CreatedAt: base,
		UpdatedAt: base,
		IsActive:  true,
	}
}

func mustCreateProject(t *testing.T, s repository.Store, p *models.Project) *models.Project {
	t.Helper()
	require.NoError(t, s.CreateProject(context.Background(), p))
	require.NotZero(t, p.ID)
	return p
}

func mustCreateManager(t *testing.T, s repository.Store, pm *models.ProjectManager) *models.ProjectManager {
	t.Helper()
	require.NoError(t, s.CreateManager(context.Background(), pm))
	require.NotZero(t, pm.ID)
	return pm
}

func ids(projects []models.Project) []int64 {
	out := make([]int64, 0, len(projects))
	for _, p := range projects {
		out = append(out, p.ID)
	}
	return out
}

func testCreateAndGetProject(t *testing.T, s repository.Store) {
	ctx := context.Background()
	end := models.NewDate(2024, 6, 30)
	p := newProject("WR-001", models.NewDate(2024, 1, 1), base)
	p.Name = "Website Revamp"
	p.Description = strPtr("new marketing site")
	p.EndDate = &end
	p.Budget = decimal.NewNullDecimal(decimal.RequireFromString("125000.50"))
	p.ClientName = strPtr("Acme Corp")
	teamSize := 4
	p.TeamSize = &teamSize
	p.CompletionPercentage = 15
	mustCreateProject(t, s, p)

	got, err := s.GetProject(ctx, p.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "Website Revamp", got.Name)
	assert.Equal(t, "WR-001", got.ProjectCode)
	assert.Equal(t, "new marketing site", *got.Description)
	assert.True(t, got.StartDate.Equal(models.NewDate(2024, 1, 1)))
	require.NotNil(t, got.EndDate)
	assert.True(t, got.EndDate.Equal(end))
	assert.Nil(t, got.EstimatedEndDate)
	require.True(t, got.Budget.Valid)
	assert.True(t, got.Budget.Decimal.Equal(decimal.RequireFromString("125000.50")))
	assert.False(t, got.ActualCost.Valid)
	assert.Equal(t, 4, *got.TeamSize)
	assert.Equal(t, 15, got.CompletionPercentage)
	assert.True(t, got.CreatedAt.Equal(base))
	assert.True(t, got.IsActive)
	assert.Empty(t, got.Managers)
	assert.NotNil(t, got.Managers)
}

func testDuplicateProjectCode(t *testing.T, s repository.Store) {
	mustCreateProject(t, s, newProject("DUP-1", models.NewDate(2024, 1, 1), base))

	err := s.CreateProject(context.Background(), newProject("DUP-1", models.NewDate(2024, 2, 1), base))
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func testUpdateProject(t *testing.T, s repository.Store) {
	ctx := context.Background()
	p := mustCreateProject(t, s, newProject("UPD-1", models.NewDate(2024, 1, 1), base))

	p.Name = "Renamed"
	p.Status = models.StatusInProgress
	p.CompletionPercentage = 40
	p.UpdatedAt = base.Add(time.Hour)
	require.NoError(t, s.UpdateProject(ctx, p))

	got, err := s.GetProject(ctx, p.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, models.StatusInProgress, got.Status)
	assert.Equal(t, 40, got.CompletionPercentage)
	assert.Equal(t, "UPD-1", got.ProjectCode)
	assert.True(t, got.UpdatedAt.Equal(base.Add(time.Hour)))
	assert.True(t, got.CreatedAt.Equal(base))

	missing := newProject("NOPE", models.NewDate(2024, 1, 1), base)
	missing.ID = 999999
	assert.ErrorIs(t, s.UpdateProject(ctx, missing), repository.ErrNotFound)
}

func testGetMissingProject(t *testing.T, s repository.Store) {
	_, err := s.GetProject(context.Background(), 424242, false)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = s.GetManager(context.Background(), 424242, false)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func testAssignmentsAreIdempotent(t *testing.T, s repository.Store) {
	ctx := context.Background()
	p := mustCreateProject(t, s, newProject("ASG-1", models.NewDate(2024, 1, 1), base))
	pm := mustCreateManager(t, s, newManager("Dana Lee", "dana@example.com"))

	require.NoError(t, s.AddAssignment(ctx, p.ID, pm.ID))
	require.NoError(t, s.AddAssignment(ctx, p.ID, pm.ID))

	got, err := s.GetProject(ctx, p.ID, false)
	require.NoError(t, err)
	require.Len(t, got.Managers, 1)
	assert.Equal(t, pm.ID, got.Managers[0].ID)

	byManager, err := s.FindProjects(ctx, repository.ProjectFilter{ManagerID: &pm.ID})
	require.NoError(t, err)
	assert.Equal(t, []int64{p.ID}, ids(byManager))

	require.NoError(t, s.RemoveAssignment(ctx, p.ID, pm.ID))
	require.NoError(t, s.RemoveAssignment(ctx, p.ID, pm.ID))

	got, err = s.GetProject(ctx, p.ID, false)
	require.NoError(t, err)
	assert.Empty(t, got.Managers)

	assert.ErrorIs(t, s.AddAssignment(ctx, p.ID, 987654), repository.ErrNotFound)
}

func testFilterByManager(t *testing.T, s repository.Store) {
	ctx := context.Background()
	alice := newManager("Alice", "alice@example.com")
	alice.EmployeeID = strPtr("E-100")
	mustCreateManager(t, s, alice)
	bob := mustCreateManager(t, s, newManager("Bob", "bob@example.com"))

	p1 := mustCreateProject(t, s, newProject("FM-1", models.NewDate(2024, 1, 1), base))
	p2 := mustCreateProject(t, s, newProject("FM-2", models.NewDate(2024, 2, 1), base))
	p3 := mustCreateProject(t, s, newProject("FM-3", models.NewDate(2024, 3, 1), base))

	require.NoError(t, s.AddAssignment(ctx, p1.ID, alice.ID))
	require.NoError(t, s.AddAssignment(ctx, p2.ID, alice.ID))
	require.NoError(t, s.AddAssignment(ctx, p2.ID, bob.ID))
	require.NoError(t, s.AddAssignment(ctx, p3.ID, bob.ID))

	got, err := s.FindProjects(ctx, repository.ProjectFilter{ManagerID: &alice.ID, Sort: repository.SortByID})
	require.NoError(t, err)
	assert.Equal(t, []int64{p1.ID, p2.ID}, ids(got))

	n, err := s.CountProjects(ctx, repository.ProjectFilter{ManagerID: &alice.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err = s.FindProjects(ctx, repository.ProjectFilter{ManagerEmail: strPtr("bob@example.com"), Sort: repository.SortByID})
	require.NoError(t, err)
	assert.Equal(t, []int64{p2.ID, p3.ID}, ids(got))

	got, err = s.FindProjects(ctx, repository.ProjectFilter{ManagerEmployeeID: strPtr("E-100"), Sort: repository.SortByID})
	require.NoError(t, err)
	assert.Equal(t, []int64{p1.ID, p2.ID}, ids(got))

	got, err = s.FindProjects(ctx, repository.ProjectFilter{ManagerEmail: strPtr("nobody@example.com")})
	require.NoError(t, err)
	assert.Empty(t, got)

	// p2 carries both managers, ordered by manager id
	shared, err := s.GetProject(ctx, p2.ID, false)
	require.NoError(t, err)
	require.Len(t, shared.Managers, 2)
	assert.Equal(t, alice.ID, shared.Managers[0].ID)
	assert.Equal(t, bob.ID, shared.Managers[1].ID)
}

func testFilterCombinations(t *testing.T, s repository.Store) {
	ctx := context.Background()
	pm := mustCreateManager(t, s, newManager("Carol", "carol@example.com"))

	a := newProject("FC-1", models.NewDate(2024, 1, 10), base)
	a.ClientName = strPtr("Acme Corp")
	a.Status = models.StatusInProgress
	mustCreateProject(t, s, a)

	b := newProject("FC-2", models.NewDate(2024, 2, 10), base.Add(time.Minute))
	b.ClientName = strPtr("Globex 100%")
	mustCreateProject(t, s, b)

	c := newProject("FC-3", models.NewDate(2024, 3, 10), base.Add(2*time.Minute))
	c.ClientName = strPtr("ACME Holdings")
	c.Status = models.StatusInProgress
	mustCreateProject(t, s, c)

	for _, p := range []*models.Project{a, b, c} {
		require.NoError(t, s.AddAssignment(ctx, p.ID, pm.ID))
	}

	inProgress := models.StatusInProgress
	got, err := s.FindProjects(ctx, repository.ProjectFilter{Status: &inProgress, Sort: repository.SortByID})
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID, c.ID}, ids(got))

	got, err = s.FindProjects(ctx, repository.ProjectFilter{ClientName: strPtr("acme"), Sort: repository.SortByID})
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID, c.ID}, ids(got))

	// LIKE metacharacters in the needle match literally
	got, err = s.FindProjects(ctx, repository.ProjectFilter{ClientName: strPtr("100%")})
	require.NoError(t, err)
	assert.Equal(t, []int64{b.ID}, ids(got))
	got, err = s.FindProjects(ctx, repository.ProjectFilter{ClientName: strPtr("_")})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.FindProjects(ctx, repository.ProjectFilter{Code: strPtr("FC-2")})
	require.NoError(t, err)
	assert.Equal(t, []int64{b.ID}, ids(got))

	from, to := models.NewDate(2024, 1, 10), models.NewDate(2024, 2, 10)
	got, err = s.FindProjects(ctx, repository.ProjectFilter{ManagerID: &pm.ID, StartFrom: &from, StartTo: &to, Sort: repository.SortByID})
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID, b.ID}, ids(got), "date range bounds are inclusive")

	got, err = s.FindProjects(ctx, repository.ProjectFilter{ManagerID: &pm.ID, Status: &inProgress, ClientName: strPtr("holdings")})
	require.NoError(t, err)
	assert.Equal(t, []int64{c.ID}, ids(got))

	got, err = s.FindProjects(ctx, repository.ProjectFilter{Sort: repository.SortByUpdatedDesc})
	require.NoError(t, err)
	assert.Equal(t, []int64{c.ID, b.ID, a.ID}, ids(got))
}

func testInactiveProjectsHidden(t *testing.T, s repository.Store) {
	ctx := context.Background()
	pm := mustCreateManager(t, s, newManager("Eve", "eve@example.com"))
	live := mustCreateProject(t, s, newProject("IN-1", models.NewDate(2024, 1, 1), base))
	gone := mustCreateProject(t, s, newProject("IN-2", models.NewDate(2024, 1, 1), base))
	require.NoError(t, s.AddAssignment(ctx, live.ID, pm.ID))
	require.NoError(t, s.AddAssignment(ctx, gone.ID, pm.ID))

	gone.IsActive = false
	require.NoError(t, s.UpdateProject(ctx, gone))

	got, err := s.FindProjects(ctx, repository.ProjectFilter{ManagerID: &pm.ID})
	require.NoError(t, err)
	assert.Equal(t, []int64{live.ID}, ids(got))

	got, err = s.FindProjects(ctx, repository.ProjectFilter{Code: strPtr("IN-2")})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.FindProjects(ctx, repository.ProjectFilter{ManagerID: &pm.ID, IncludeInactive: true, Sort: repository.SortByID})
	require.NoError(t, err)
	assert.Equal(t, []int64{live.ID, gone.ID}, ids(got))

	fetched, err := s.GetProject(ctx, gone.ID, false)
	require.NoError(t, err)
	assert.False(t, fetched.IsActive)
	assert.Len(t, fetched.Managers, 1, "soft delete leaves assignments in place")
}

func testSortAndPage(t *testing.T, s repository.Store) {
	ctx := context.Background()
	pm := mustCreateManager(t, s, newManager("Frank", "frank@example.com"))

	var created []*models.Project
	for i := 0; i < 5; i++ {
		p := newProject(fmt.Sprintf("SP-%d", i), models.NewDate(2024, 1, 1+i), base.Add(time.Duration(i)*time.Minute))
		p.Name = fmt.Sprintf("Project %c", 'E'-i)
		if i%2 == 0 {
			p.Budget = decimal.NewNullDecimal(decimal.NewFromInt(int64(1000 * (i + 1))))
		}
		created = append(created, mustCreateProject(t, s, p))
		require.NoError(t, s.AddAssignment(ctx, p.ID, pm.ID))
	}
	f := repository.ProjectFilter{ManagerID: &pm.ID}

	page, err := repository.NewPageRequest(0, 2, "name", "asc")
	require.NoError(t, err)
	got, total, err := s.FindProjectsPage(ctx, f, page)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Equal(t, []int64{created[4].ID, created[3].ID}, ids(got))

	page, err = repository.NewPageRequest(2, 2, "name", "asc")
	require.NoError(t, err)
	got, total, err = s.FindProjectsPage(ctx, f, page)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Equal(t, []int64{created[0].ID}, ids(got))

	page, err = repository.NewPageRequest(0, 10, "updatedAt", "DESC")
	require.NoError(t, err)
	got, _, err = s.FindProjectsPage(ctx, f, page)
	require.NoError(t, err)
	assert.Equal(t, []int64{created[4].ID, created[3].ID, created[2].ID, created[1].ID, created[0].ID}, ids(got))

	// nulls last ascending, ties broken by id
	page, err = repository.NewPageRequest(0, 10, "budget", "asc")
	require.NoError(t, err)
	got, _, err = s.FindProjectsPage(ctx, f, page)
	require.NoError(t, err)
	assert.Equal(t, []int64{created[0].ID, created[2].ID, created[4].ID, created[1].ID, created[3].ID}, ids(got))

	// nulls first descending
	page, err = repository.NewPageRequest(0, 10, "budget", "desc")
	require.NoError(t, err)
	got, _, err = s.FindProjectsPage(ctx, f, page)
	require.NoError(t, err)
	assert.Equal(t, []int64{created[3].ID, created[1].ID, created[4].ID, created[2].ID, created[0].ID}, ids(got))
}

func testPagePastEnd(t *testing.T, s repository.Store) {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		mustCreateProject(t, s, newProject(fmt.Sprintf("PE-%d", i), models.NewDate(2024, 1, 1), base))
	}
	page, err := repository.NewPageRequest(5, 2, "id", "asc")
	require.NoError(t, err)

	got, total, err := s.FindProjectsPage(ctx, repository.ProjectFilter{}, page)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
	assert.Equal(t, int64(3), total)

	page, err = repository.NewPageRequest(repository.MaxPage(repository.MaxPageSize), repository.MaxPageSize, "id", "asc")
	require.NoError(t, err)
	got, total, err = s.FindProjectsPage(ctx, repository.ProjectFilter{}, page)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, int64(3), total)

	// an offset that overflowed int would still read as past the end
	got, _, err = s.FindProjectsPage(ctx, repository.ProjectFilter{}, repository.PageRequest{Page: -1, Size: 2, Sort: repository.SortByID})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testManagers(t *testing.T, s repository.Store) {
	ctx := context.Background()
	zed := newManager("Zed Quinn", "zed@example.com")
	zed.Department = strPtr("Engineering")
	mustCreateManager(t, s, zed)
	amy := newManager("Amy Quinn", "amy@example.com")
	amy.Department = strPtr("Sales")
	amy.EmployeeID = strPtr("E-7")
	mustCreateManager(t, s, amy)
	old := newManager("Old Timer", "old@example.com")
	old.IsActive = false
	mustCreateManager(t, s, old)

	all, err := s.FindManagers(ctx, repository.ManagerFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Amy Quinn", all[0].Name)
	assert.Equal(t, "Zed Quinn", all[1].Name)

	got, err := s.FindManagers(ctx, repository.ManagerFilter{Name: strPtr("quinn"), Department: strPtr("Engineering")})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, zed.ID, got[0].ID)

	got, err = s.FindManagers(ctx, repository.ManagerFilter{EmployeeID: strPtr("E-7")})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, amy.ID, got[0].ID)

	got, err = s.FindManagers(ctx, repository.ManagerFilter{Email: strPtr("old@example.com")})
	require.NoError(t, err)
	assert.Empty(t, got)

	fetched, err := s.GetManager(ctx, old.ID, false)
	require.NoError(t, err)
	assert.False(t, fetched.IsActive)

	ok, err := s.ManagerExists(ctx, amy.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.ManagerExists(ctx, 55555)
	require.NoError(t, err)
	assert.False(t, ok)
}

func testManagerUniqueness(t *testing.T, s repository.Store) {
	first := newManager("Gina", "gina@example.com")
	first.EmployeeID = strPtr("E-9")
	mustCreateManager(t, s, first)

	err := s.CreateManager(context.Background(), newManager("Gina Two", "gina@example.com"))
	assert.ErrorIs(t, err, repository.ErrConflict)

	dup := newManager("Other", "other@example.com")
	dup.EmployeeID = strPtr("E-9")
	err = s.CreateManager(context.Background(), dup)
	assert.ErrorIs(t, err, repository.ErrConflict)

	inactive := newManager("Gina Archived", "gina@example.com")
	inactive.IsActive = false
	assert.NoError(t, s.CreateManager(context.Background(), inactive))
}

func testTxRollback(t *testing.T, s repository.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, repository.TxReadWrite, func(q repository.Queries) error {
		if err := q.CreateProject(ctx, newProject("TX-1", models.NewDate(2024, 1, 1), base)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.FindProjects(ctx, repository.ProjectFilter{Code: strPtr("TX-1")})
	require.NoError(t, err)
	assert.Empty(t, got)

	var created int64
	err = s.WithTx(ctx, repository.TxReadWrite, func(q repository.Queries) error {
		p := newProject("TX-2", models.NewDate(2024, 1, 1), base)
		if err := q.CreateProject(ctx, p); err != nil {
			return err
		}
		created = p.ID
		locked, err := q.GetProject(ctx, p.ID, true)
		if err != nil {
			return err
		}
		locked.Name = "Locked and renamed"
		return q.UpdateProject(ctx, locked)
	})
	require.NoError(t, err)

	err = s.WithTx(ctx, repository.TxReadOnly, func(q repository.Queries) error {
		p, err := q.GetProject(ctx, created, false)
		if err != nil {
			return err
		}
		assert.Equal(t, "Locked and renamed", p.Name)
		return nil
	})
	require.NoError(t, err)
}
