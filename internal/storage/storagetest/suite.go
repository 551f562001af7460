// Package storagetest holds the behavioural suite every storage.TaskStore
// implementation must pass.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/bcnelson/tareas-api/internal/domain"
	"github.com/bcnelson/tareas-api/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) storage.TaskStore

func ptr[T any](v T) *T { return &v }

// Run exercises factory's stores against the TaskStore contract.
func Run(t *testing.T, factory Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.TaskStore)
	}{
		{"CreateNormalizesTitle", testCreateNormalizesTitle},
		{"CreateRejectsShortTitle", testCreateRejectsShortTitle},
		{"CreateRejectsDuplicateNormalizedTitle", testCreateRejectsDuplicate},
		{"ListKeepsInsertionOrder", testListOrder},
		{"IDsNeverReused", testIDsNeverReused},
		{"SeedContinuesCounter", testSeedContinuesCounter},
		{"GetUnknown", testGetUnknown},
		{"UpdateFields", testUpdateFields},
		{"UpdateUnknown", testUpdateUnknown},
		{"UpdateComparesRawTitle", testUpdateComparesRawTitle},
		{"UpdateSameTitleIsNoop", testUpdateSameTitle},
		{"Delete", testDelete},
		{"DeleteCompleted", testDeleteCompleted},
		{"ListReturnsCopies", testListReturnsCopies},
		{"ConcurrentCreatesOfSameTitle", testConcurrentCreates},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := factory(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func testCreateNormalizesTitle(t *testing.T, s storage.TaskStore) {
	ctx := context.Background()
	task, err := s.Create(ctx, "  My Task  ", false)
	require.NoError(t, err)
	assert.Equal(t, "my task", task.Title)
	assert.Equal(t, 1, task.ID)
	assert.False(t, task.Completed)

	task, err = s.Create(ctx, "Comprar   PAN", true)
	require.NoError(t, err)
	assert.Equal(t, "comprar pan", task.Title)
	assert.True(t, task.Completed)
}

func testCreateRejectsShortTitle(t *testing.T, s storage.TaskStore) {
	ctx := context.Background()
	_, err := s.Create(ctx, "ab", false)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = s.Create(ctx, "  a   b  ", false)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	tasks, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func testCreateRejectsDuplicate(t *testing.T, s storage.TaskStore) {
	ctx := context.Background()
	_, err := s.Create(ctx, "Lavar la ropa", false)
	require.NoError(t, err)

	_, err = s.Create(ctx, "  LAVAR   la ROPA ", true)
	assert.ErrorIs(t, err, domain.ErrConflict)

	tasks, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func testListOrder(t *testing.T, s storage.TaskStore) {
	ctx := context.Background()
	for _, title := range []string{"primera", "segunda", "tercera"} {
		_, err := s.Create(ctx, title, false)
		require.NoError(t, err)
	}
	tasks, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, "primera", tasks[0].Title)
	assert.Equal(t, "segunda", tasks[1].Title)
	assert.Equal(t, "tercera", tasks[2].Title)
}

func testIDsNeverReused(t *testing.T, s storage.TaskStore) {
	ctx := context.Background()
	a, err := s.Create(ctx, "tarea uno", false)
	require.NoError(t, err)
	b, err := s.Create(ctx, "tarea dos", false)
	require.NoError(t, err)
	assert.Greater(t, b.ID, a.ID)

	require.NoError(t, s.Delete(ctx, b.ID))
	c, err := s.Create(ctx, "tarea tres", false)
	require.NoError(t, err)
	assert.Greater(t, c.ID, b.ID)

	// Reusing a deleted title must also get a fresh id.
	d, err := s.Create(ctx, "tarea dos", false)
	require.NoError(t, err)
	assert.Greater(t, d.ID, c.ID)
}

func testSeedContinuesCounter(t *testing.T, s storage.TaskStore) {
	ctx := context.Background()
	require.NoError(t, s.Seed(ctx, domain.DemoTasks()))

	tasks, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 5)

	task, err := s.Create(ctx, "nueva tarea", false)
	require.NoError(t, err)
	assert.Equal(t, 6, task.ID)

	err = s.Seed(ctx, []domain.Task{{ID: 0, Title: "sin id"}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func testGetUnknown(t *testing.T, s storage.TaskStore) {
	_, err := s.Get(context.Background(), 99)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testUpdateFields(t *testing.T, s storage.TaskStore) {
	ctx := context.Background()
	created, err := s.Create(ctx, "estudiar go", false)
	require.NoError(t, err)

	updated, err := s.Update(ctx, created.ID, domain.TaskPatch{Completed: ptr(true)})
	require.NoError(t, err)
	assert.True(t, updated.Completed)
	assert.Equal(t, "estudiar go", updated.Title)

	updated, err = s.Update(ctx, created.ID, domain.TaskPatch{Title: ptr("Estudiar Go a fondo")})
	require.NoError(t, err)
	assert.Equal(t, "Estudiar Go a fondo", updated.Title)
	assert.True(t, updated.Completed)

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, got)

	updated, err = s.Update(ctx, created.ID, domain.TaskPatch{})
	require.NoError(t, err)
	assert.Equal(t, got, updated)
}

func testUpdateUnknown(t *testing.T, s storage.TaskStore) {
	_, err := s.Update(context.Background(), 42, domain.TaskPatch{Completed: ptr(true)})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testUpdateComparesRawTitle(t *testing.T, s storage.TaskStore) {
	ctx := context.Background()
	_, err := s.Create(ctx, "pasear perro", false)
	require.NoError(t, err)
	other, err := s.Create(ctx, "regar plantas", false)
	require.NoError(t, err)

	_, err = s.Update(ctx, other.ID, domain.TaskPatch{Title: ptr("pasear perro")})
	assert.ErrorIs(t, err, domain.ErrConflict)

	// Titles differing only in case or spacing do not collide on update.
	updated, err := s.Update(ctx, other.ID, domain.TaskPatch{Title: ptr("Pasear Perro")})
	require.NoError(t, err)
	assert.Equal(t, "Pasear Perro", updated.Title)

	got, err := s.Get(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pasear Perro", got.Title)
}

func testUpdateSameTitle(t *testing.T, s storage.TaskStore) {
	ctx := context.Background()
	created, err := s.Create(ctx, "hacer la cama", false)
	require.NoError(t, err)

	updated, err := s.Update(ctx, created.ID, domain.TaskPatch{Title: ptr("hacer la cama"), Completed: ptr(true)})
	require.NoError(t, err)
	assert.Equal(t, "hacer la cama", updated.Title)
	assert.True(t, updated.Completed)
}

func testDelete(t *testing.T, s storage.TaskStore) {
	ctx := context.Background()
	created, err := s.Create(ctx, "sacar basura", false)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, created.ID))
	assert.ErrorIs(t, s.Delete(ctx, created.ID), domain.ErrNotFound)

	_, err = s.Get(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testDeleteCompleted(t *testing.T, s storage.TaskStore) {
	ctx := context.Background()
	n, err := s.DeleteCompleted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	completed := map[int]bool{}
	for i := 0; i < 6; i++ {
		done := i%3 != 0
		task, err := s.Create(ctx, fmt.Sprintf("tarea numero %d", i), done)
		require.NoError(t, err)
		completed[task.ID] = done
	}

	n, err = s.DeleteCompleted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	tasks, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
	for _, task := range tasks {
		assert.False(t, task.Completed)
		assert.False(t, completed[task.ID], "task %d should have been removed", task.ID)
	}
}

func testListReturnsCopies(t *testing.T, s storage.TaskStore) {
	ctx := context.Background()
	_, err := s.Create(ctx, "leer un libro", false)
	require.NoError(t, err)

	tasks, err := s.List(ctx)
	require.NoError(t, err)
	tasks[0].Title = "mutated"
	tasks[0].Completed = true

	again, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "leer un libro", again[0].Title)
	assert.False(t, again[0].Completed)
}

func testConcurrentCreates(t *testing.T, s storage.TaskStore) {
	ctx := context.Background()
	const workers = 20

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Create(ctx, "Tarea Compartida", false)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrConflict)
	}
	assert.Equal(t, 1, succeeded)

	tasks, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}
