package repository

import (
	"context"

	"task-manager/internal/domain"
)

// UserRepository defines persistence operations for User entities.
//
// Create returns an error matching domain.ErrConflict when the username is
// already taken; lookups return domain.ErrNotFound for absent users.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (string, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}
