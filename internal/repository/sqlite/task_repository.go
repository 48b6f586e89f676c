package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"task-manager/internal/domain"
	"task-manager/internal/repository"
)

const createTasksTable = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_owner_id ON tasks(owner_id);
`

var taskColumns = []string{"id", "owner_id", "title", "description", "status", "created_at", "updated_at"}

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) repository.TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTasksTable); err != nil {
		return fmt.Errorf("create tasks table: %w", err)
	}
	return nil
}

func (r *TaskRepository) Create(ctx context.Context, task *domain.Task) (string, error) {
	now := time.Now().UTC()
	id := uuid.NewString()

	query, args, err := sq.Insert("tasks").
		Columns(taskColumns...).
		Values(id, task.OwnerID, task.Title, task.Description, string(task.Status), now, now).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build insert task: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("insert task: %w", err)
	}

	task.ID = id
	task.CreatedAt = now
	task.UpdatedAt = now
	return id, nil
}

func (r *TaskRepository) Get(ctx context.Context, ownerID, id string) (*domain.Task, error) {
	if !validID(id) {
		return nil, domain.NotFound("task not found")
	}

	query, args, err := sq.Select(taskColumns...).
		From("tasks").
		Where(sq.Eq{"id": id, "owner_id": ownerID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select task: %w", err)
	}
	return scanTask(r.db.QueryRowContext(ctx, query, args...))
}

func (r *TaskRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Task, error) {
	query, args, err := sq.Select(taskColumns...).
		From("tasks").
		Where(sq.Eq{"owner_id": ownerID}).
		OrderBy("rowid ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list tasks: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}

	return tasks, rows.Err()
}

// Update applies the supplied fields in a single statement filtered by id and owner.
func (r *TaskRepository) Update(ctx context.Context, ownerID, id string, update domain.TaskUpdate) (bool, error) {
	if !validID(id) {
		return false, nil
	}

	builder := sq.Update("tasks").
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id, "owner_id": ownerID})
	if update.Title != nil {
		builder = builder.Set("title", *update.Title)
	}
	if update.Description != nil {
		builder = builder.Set("description", *update.Description)
	}
	if update.Status != nil {
		builder = builder.Set("status", string(*update.Status))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return false, fmt.Errorf("build update task: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update task: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("task update rows affected: %w", err)
	}
	return aff > 0, nil
}

func (r *TaskRepository) Delete(ctx context.Context, ownerID, id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}

	query, args, err := sq.Delete("tasks").
		Where(sq.Eq{"id": id, "owner_id": ownerID}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build delete task: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("task delete rows affected: %w", err)
	}
	return aff > 0, nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func scanTask(scanner interface {
	Scan(dest ...any) error
}) (*domain.Task, error) {
	var (
		task   domain.Task
		status string
	)

	if err := scanner.Scan(
		&task.ID,
		&task.OwnerID,
		&task.Title,
		&task.Description,
		&status,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("task not found")
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}

	task.Status = domain.TaskStatus(status)
	return &task, nil
}
