package memory

import (
	"context"
	"sync"
	"testing"

	"project-tracker-api/internal/models"
	"project-tracker-api/internal/repository"
	"project-tracker-api/internal/repository/repotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreContract(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repository.Store { return New() })
}

func TestReadOnlyTxRejectsWrites(t *testing.T) {
	s := New()
	err := s.WithTx(context.Background(), repository.TxReadOnly, func(q repository.Queries) error {
		return q.CreateManager(context.Background(), &models.ProjectManager{Name: "Ro", Email: "ro@example.com", IsActive: true})
	})
	assert.ErrorIs(t, err, errReadOnly)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := New().WithTx(ctx, repository.TxReadWrite, func(q repository.Queries) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConcurrentAssignments(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := &models.Project{Name: "Concurrent", ProjectCode: "CC-1", StartDate: models.NewDate(2024, 1, 1), IsActive: true}
	require.NoError(t, s.CreateProject(ctx, p))

	var managers []int64
	for i := 0; i < 8; i++ {
		pm := &models.ProjectManager{Name: "PM", Email: string(rune('a'+i)) + "@example.com", IsActive: true}
		require.NoError(t, s.CreateManager(ctx, pm))
		managers = append(managers, pm.ID)
	}

	var wg sync.WaitGroup
	for _, id := range managers {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			assert.NoError(t, s.AddAssignment(ctx, p.ID, id))
		}(id)
	}
	wg.Wait()

	got, err := s.GetProject(ctx, p.ID, false)
	require.NoError(t, err)
	assert.Len(t, got.Managers, len(managers))
}
