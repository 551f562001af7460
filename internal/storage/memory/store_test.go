package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/bcnelson/tareas-api/internal/storage"
	"github.com/bcnelson/tareas-api/internal/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.TaskStore {
		return New()
	})
}

func TestConcurrentCreatesGetDistinctIDs(t *testing.T) {
	s := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Create(ctx, fmt.Sprintf("tarea concurrente %d", i), i%2 == 0)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	tasks, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 50)

	seen := make(map[int]bool)
	for i, task := range tasks {
		assert.False(t, seen[task.ID], "duplicate id %d", task.ID)
		seen[task.ID] = true
		if i > 0 {
			assert.Greater(t, task.ID, tasks[i-1].ID)
		}
	}
}
