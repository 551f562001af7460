package storage

import (
	"context"

	"github.com/bcnelson/tareas-api/internal/domain"
)

// TaskStore defines the interface for the task storage layer.
// Implementations must be safe for concurrent use: every method is atomic
// with respect to the others.
type TaskStore interface {
	// Close releases the store's resources.
	Close() error

	// List returns all tasks in insertion order.
	List(ctx context.Context) ([]domain.Task, error)

	// Get returns the task with the given id or domain.ErrNotFound.
	Get(ctx context.Context, id int) (domain.Task, error)

	// Create normalizes rawTitle and appends a new task with the next id.
	// Fails with domain.ErrInvalidInput when the normalized title is too
	// short and domain.ErrConflict when another task already has it.
	Create(ctx context.Context, rawTitle string, completed bool) (domain.Task, error)

	// Update replaces the fields set in patch. A new title is compared
	// verbatim against the other tasks' titles and stored verbatim.
	Update(ctx context.Context, id int, patch domain.TaskPatch) (domain.Task, error)

	// Delete removes the task with the given id.
	Delete(ctx context.Context, id int) error

	// DeleteCompleted removes every completed task and returns how many
	// were removed.
	DeleteCompleted(ctx context.Context) (int, error)

	// Seed inserts tasks with their ids as given. The id counter continues
	// after the highest id in the store. Intended for an empty store.
	Seed(ctx context.Context, tasks []domain.Task) error
}
