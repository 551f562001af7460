package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/bcnelson/tareas-api/internal/domain"
	"github.com/bcnelson/tareas-api/internal/storage"
	"github.com/bcnelson/tareas-api/internal/validation"
)

var _ storage.TaskStore = (*Store)(nil)

// Store is an in-memory implementation of storage.TaskStore.
type Store struct {
	mu sync.RWMutex

	tasks  []domain.Task // insertion order
	nextID int
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{nextID: 1}
}

func (s *Store) Close() error { return nil }

func (s *Store) List(ctx context.Context) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tasks := make([]domain.Task, len(s.tasks))
	copy(tasks, s.tasks)
	return tasks, nil
}

func (s *Store) Get(ctx context.Context, id int) (domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	if i < 0 {
		return domain.Task{}, domain.ErrNotFound
	}
	return s.tasks[i], nil
}

func (s *Store) Create(ctx context.Context, rawTitle string, completed bool) (domain.Task, error) {
	title, err := validation.ValidateTitle(rawTitle)
	if err != nil {
		return domain.Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasTitle(title, -1) {
		return domain.Task{}, fmt.Errorf("title %q: %w", title, domain.ErrConflict)
	}
	task := domain.Task{ID: s.nextID, Title: title, Completed: completed}
	s.nextID++
	s.tasks = append(s.tasks, task)
	return task, nil
}

func (s *Store) Update(ctx context.Context, id int, patch domain.TaskPatch) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return domain.Task{}, domain.ErrNotFound
	}
	task := &s.tasks[i]
	if patch.Title != nil && *patch.Title != task.Title {
		if s.hasTitle(*patch.Title, id) {
			return domain.Task{}, fmt.Errorf("title %q: %w", *patch.Title, domain.ErrConflict)
		}
		task.Title = *patch.Title
	}
	if patch.Completed != nil {
		task.Completed = *patch.Completed
	}
	return *task, nil
}

func (s *Store) Delete(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return domain.ErrNotFound
	}
	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	return nil
}

func (s *Store) DeleteCompleted(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	// Walk backwards so splicing never shifts an index not yet visited.
	for i := len(s.tasks) - 1; i >= 0; i-- {
		if s.tasks[i].Completed {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			removed++
		}
	}
	return removed, nil
}

func (s *Store) Seed(ctx context.Context, tasks []domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, task := range tasks {
		if task.ID <= 0 {
			return fmt.Errorf("seeding task %q: id must be positive: %w", task.Title, domain.ErrInvalidInput)
		}
		if s.indexOf(task.ID) >= 0 {
			return fmt.Errorf("seeding task %d: %w", task.ID, domain.ErrConflict)
		}
		if s.hasTitle(task.Title, -1) {
			return fmt.Errorf("seeding task %q: %w", task.Title, domain.ErrConflict)
		}
		s.tasks = append(s.tasks, task)
		if task.ID >= s.nextID {
			s.nextID = task.ID + 1
		}
	}
	return nil
}

// indexOf returns the slice index of id, or -1. Caller holds mu.
func (s *Store) indexOf(id int) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// hasTitle reports whether a task other than except already uses title.
// Caller holds mu.
func (s *Store) hasTitle(title string, except int) bool {
	for i := range s.tasks {
		if s.tasks[i].ID != except && s.tasks[i].Title == title {
			return true
		}
	}
	return false
}
