package service

import (
	"context"
	"testing"

	"project-tracker-api/internal/models"
	"project-tracker-api/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateManager(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pm, err := f.managers.Create(ctx, &models.CreateManagerRequest{
		Name:       "Dana Lee",
		Email:      " dana@example.com ",
		Department: strPtr("Engineering"),
		EmployeeID: strPtr("E-100"),
	})
	require.NoError(t, err)
	assert.NotZero(t, pm.ID)
	assert.Equal(t, "dana@example.com", pm.Email)
	assert.True(t, pm.IsActive)
	require.NotNil(t, pm.CreatedAt)

	got, err := f.managers.Get(ctx, pm.ID)
	require.NoError(t, err)
	assert.Equal(t, pm, got)

	byEmail, err := f.managers.GetByEmail(ctx, "dana@example.com")
	require.NoError(t, err)
	assert.Equal(t, pm.ID, byEmail.ID)

	byEmployee, err := f.managers.GetByEmployeeID(ctx, "E-100")
	require.NoError(t, err)
	assert.Equal(t, pm.ID, byEmployee.ID)

	_, err = f.managers.GetByEmployeeID(ctx, "E-404")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = f.managers.Get(ctx, 404)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCreateManagerConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.managers.Create(ctx, &models.CreateManagerRequest{Name: "First", Email: "same@example.com", EmployeeID: strPtr("E-1")})
	require.NoError(t, err)

	_, err = f.managers.Create(ctx, &models.CreateManagerRequest{Name: "Second", Email: "same@example.com"})
	assert.ErrorIs(t, err, repository.ErrConflict)

	_, err = f.managers.Create(ctx, &models.CreateManagerRequest{Name: "Third", Email: "third@example.com", EmployeeID: strPtr("E-1")})
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestCreateManagerValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.managers.Create(ctx, &models.CreateManagerRequest{Name: "X", Email: "not-an-email"})
	require.ErrorIs(t, err, ErrValidation)

	verr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Equal(t, []FieldError{
		{Field: "email", Message: "must be a valid email address"},
		{Field: "name", Message: "must be at least 2 characters"},
	}, verr.Fields)

	_, err = f.managers.Create(ctx, nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestListAndSearchManagers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, req := range []models.CreateManagerRequest{
		{Name: "Zed Quinn", Email: "zed@example.com", Department: strPtr("Engineering")},
		{Name: "Amy Quinn", Email: "amy@example.com", Department: strPtr("Sales")},
		{Name: "Bo Park", Email: "bo@example.com", Department: strPtr("Engineering")},
	} {
		req := req
		_, err := f.managers.Create(ctx, &req)
		require.NoError(t, err)
	}

	all, err := f.managers.List(ctx)
	require.NoError(t, err)
	names := []string{}
	for _, pm := range all {
		names = append(names, pm.Name)
	}
	assert.Equal(t, []string{"Amy Quinn", "Bo Park", "Zed Quinn"}, names)

	got, err := f.managers.Search(ctx, strPtr("QUINN"), nil)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = f.managers.Search(ctx, strPtr("quinn"), strPtr("Engineering"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Zed Quinn", got[0].Name)

	got, err = f.managers.Search(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, all, got)
}

func TestValidationErrorMessage(t *testing.T) {
	err := Invalid("status", "is required")
	assert.Equal(t, "validation failed: status: is required", err.Error())
	assert.ErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, repository.ErrNotFound)
}
