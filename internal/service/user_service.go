package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"task-manager/internal/domain"
	"task-manager/internal/repository"
	"task-manager/internal/validate"
)

// TokenIssuer issues and verifies bearer tokens whose subject is a user id.
type TokenIssuer interface {
	Issue(userID string) (string, error)
	Verify(token string) (string, error)
	TTL() time.Duration
}

// Session is the result of a successful login.
type Session struct {
	AccessToken string
	ExpiresIn   time.Duration
	User        *domain.User
}

// UserService describes user lifecycle and authentication operations.
type UserService interface {
	Register(ctx context.Context, username, password string) (*domain.User, error)
	Authenticate(ctx context.Context, username, password string) (*Session, error)
	VerifyToken(token string) (string, error)
	UpdatePassword(ctx context.Context, userID, newPassword string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

type UserOption func(*userService)

// WithHashCost overrides the bcrypt cost used for new password hashes.
func WithHashCost(cost int) UserOption {
	return func(s *userService) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.hashCost = cost
		}
	}
}

type userService struct {
	users    repository.UserRepository
	tokens   TokenIssuer
	hashCost int
}

func NewUserService(users repository.UserRepository, tokens TokenIssuer, opts ...UserOption) UserService {
	s := &userService{
		users:    users,
		tokens:   tokens,
		hashCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a user. Uniqueness is decided by the store's unique index,
// whose violation surfaces as domain.ErrConflict.
func (s *userService) Register(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)

	if !validate.Username(username) {
		return nil, domain.Validation("Username must be at least 3 characters")
	}
	if !validate.Password(password) {
		return nil, domain.Validation("Password must be at least 8 characters")
	}

	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: hash,
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, domain.Conflict("Username already exists")
		}
		return nil, domain.Internal("create user", err)
	}

	return sanitizeUser(user), nil
}

func (s *userService) Authenticate(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, domain.Validation("Username and password are required")
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Auth("Invalid credentials")
		}
		return nil, domain.Internal("load user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.Auth("Invalid credentials")
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, domain.Internal("issue token", err)
	}

	return &Session{
		AccessToken: token,
		ExpiresIn:   s.tokens.TTL(),
		User:        sanitizeUser(user),
	}, nil
}

func (s *userService) VerifyToken(token string) (string, error) {
	userID, err := s.tokens.Verify(token)
	if err != nil {
		return "", &domain.Error{Kind: domain.KindAuth, Message: "Invalid or expired token", Err: err}
	}
	return userID, nil
}

func (s *userService) UpdatePassword(ctx context.Context, userID, newPassword string) (*domain.User, error) {
	if !validate.Password(newPassword) {
		return nil, domain.Validation("Password must be at least 8 characters")
	}

	hash, err := s.hash(newPassword)
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NotFound("User not found")
		}
		return nil, domain.Internal("update password", err)
	}

	return s.GetByID(ctx, userID)
}

func (s *userService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NotFound("User not found")
		}
		return nil, domain.Internal("load user", err)
	}
	return sanitizeUser(user), nil
}

func (s *userService) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", domain.Validation("Password must be at most 72 bytes")
		}
		return "", domain.Internal("hash password", fmt.Errorf("bcrypt: %w", err))
	}
	return string(hash), nil
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:        user.ID,
		Username:  user.Username,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
