package repository

import (
	"context"

	"task-manager/internal/domain"
)

// TaskRepository exposes persistence operations for Task records.
//
// Every read and write is scoped by ownerID in the same query as the id
// filter. A malformed id, an absent task and a task owned by someone else all
// yield domain.ErrNotFound (or false for Update/Delete).
type TaskRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, task *domain.Task) (string, error)
	Get(ctx context.Context, ownerID, id string) (*domain.Task, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Task, error)
	Update(ctx context.Context, ownerID, id string, update domain.TaskUpdate) (bool, error)
	Delete(ctx context.Context, ownerID, id string) (bool, error)
}
