package sql

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/bcnelson/tareas-api/internal/config"
	"github.com/bcnelson/tareas-api/internal/domain"
	"github.com/bcnelson/tareas-api/internal/storage"
	"github.com/bcnelson/tareas-api/internal/validation"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

var _ storage.TaskStore = (*Store)(nil)

// isUniqueViolation checks if an error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// wrapUniqueError converts UNIQUE violations to domain.ErrConflict.
func wrapUniqueError(err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%v: %w", err, domain.ErrConflict)
	}
	return err
}

// Store implements storage.TaskStore on an in-memory SQLite database.
type Store struct {
	db *sqlx.DB
}

// New opens dsn and runs migrations. The pool is pinned to one connection
// that never expires: an in-memory SQLite database lives exactly as long as
// the connection that created it.
func New(dsn string) (*Store, error) {
	if !config.IsInMemoryDSN(dsn) {
		return nil, fmt.Errorf("dsn %q is not an in-memory database: %w", dsn, domain.ErrInvalidInput)
	}

	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(db.DB, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection, discarding all tasks.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) List(ctx context.Context) ([]domain.Task, error) {
	tasks := make([]domain.Task, 0)
	if err := s.db.SelectContext(ctx, &tasks,
		`SELECT id, title, completed FROM tasks ORDER BY id`); err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	return tasks, nil
}

func getTask(ctx context.Context, q sqlx.QueryerContext, id int) (domain.Task, error) {
	var task domain.Task
	err := sqlx.GetContext(ctx, q, &task,
		`SELECT id, title, completed FROM tasks WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Task{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Task{}, fmt.Errorf("getting task %d: %w", id, err)
	}
	return task, nil
}

func (s *Store) Get(ctx context.Context, id int) (domain.Task, error) {
	return getTask(ctx, s.db, id)
}

func (s *Store) Create(ctx context.Context, rawTitle string, completed bool) (domain.Task, error) {
	title, err := validation.ValidateTitle(rawTitle)
	if err != nil {
		return domain.Task{}, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (title, completed) VALUES ($1, $2)`, title, completed)
	if err != nil {
		return domain.Task{}, fmt.Errorf("creating task: %w", wrapUniqueError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Task{}, fmt.Errorf("reading task id: %w", err)
	}
	return domain.Task{ID: int(id), Title: title, Completed: completed}, nil
}

func (s *Store) Update(ctx context.Context, id int, patch domain.TaskPatch) (domain.Task, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Task{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	task, err := getTask(ctx, tx, id)
	if err != nil {
		return domain.Task{}, err
	}

	if patch.Title != nil && *patch.Title != task.Title {
		if _, err := tx.ExecContext(ctx,
			`UPDATE tasks SET title = $1 WHERE id = $2`, *patch.Title, id); err != nil {
			return domain.Task{}, fmt.Errorf("updating task %d: %w", id, wrapUniqueError(err))
		}
		task.Title = *patch.Title
	}
	if patch.Completed != nil {
		if _, err := tx.ExecContext(ctx,
			`UPDATE tasks SET completed = $1 WHERE id = $2`, *patch.Completed, id); err != nil {
			return domain.Task{}, fmt.Errorf("updating task %d: %w", id, err)
		}
		task.Completed = *patch.Completed
	}

	if err := tx.Commit(); err != nil {
		return domain.Task{}, fmt.Errorf("committing task %d: %w", id, err)
	}
	return task, nil
}

func (s *Store) Delete(ctx context.Context, id int) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting task %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting task %d: %w", id, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteCompleted(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE completed = 1`)
	if err != nil {
		return 0, fmt.Errorf("deleting completed tasks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleting completed tasks: %w", err)
	}
	return int(n), nil
}

func (s *Store) Seed(ctx context.Context, tasks []domain.Task) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, task := range tasks {
		if task.ID <= 0 {
			return fmt.Errorf("seeding task %q: id must be positive: %w", task.Title, domain.ErrInvalidInput)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tasks (id, title, completed) VALUES ($1, $2, $3)`,
			task.ID, task.Title, task.Completed); err != nil {
			return fmt.Errorf("seeding task %d: %w", task.ID, wrapUniqueError(err))
		}
	}
	return tx.Commit()
}
