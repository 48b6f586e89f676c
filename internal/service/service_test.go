package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"task-manager/internal/auth"
	"task-manager/internal/domain"
	"task-manager/internal/repository"
	"task-manager/internal/repository/sqlite"
)

func newStores(t *testing.T) (repository.UserRepository, repository.TaskRepository) {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	users := sqlite.NewUserRepository(db)
	tasks := sqlite.NewTaskRepository(db)
	require.NoError(t, users.Init(context.Background()))
	require.NoError(t, tasks.Init(context.Background()))
	return users, tasks
}

func newUserSvc(t *testing.T, users repository.UserRepository) UserService {
	t.Helper()
	return NewUserService(users, auth.NewTokens("test-secret", "task-manager", time.Hour), WithHashCost(bcrypt.MinCost))
}

func ptr[T any](v T) *T { return &v }

func TestRegister(t *testing.T) {
	ctx := context.Background()
	users, _ := newStores(t)
	svc := newUserSvc(t, users)

	u, err := svc.Register(ctx, "ann", "longpassword")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Empty(t, u.PasswordHash)

	stored, err := users.GetByUsername(ctx, "ann")
	require.NoError(t, err)
	assert.NotEqual(t, "longpassword", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("longpassword")))

	_, err = svc.Register(ctx, "ann", "other12345")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	users, _ := newStores(t)
	svc := newUserSvc(t, users)

	cases := map[string][2]string{
		"short username":  {"an", "longpassword"},
		"blank username":  {"    ", "longpassword"},
		"short password":  {"ann", "short"},
		"padded password": {"ann", "  short   "},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Register(ctx, in[0], in[1])
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	_, err := users.GetByUsername(ctx, "ann")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	users, _ := newStores(t)
	svc := newUserSvc(t, users)

	registered, err := svc.Register(ctx, "ann", "longpassword")
	require.NoError(t, err)

	session, err := svc.Authenticate(ctx, "ann", "longpassword")
	require.NoError(t, err)
	assert.NotEmpty(t, session.AccessToken)
	assert.Equal(t, time.Hour, session.ExpiresIn)

	subject, err := svc.VerifyToken(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, subject)

	_, err = svc.Authenticate(ctx, "ann", "wrong")
	assert.ErrorIs(t, err, domain.ErrAuth)

	_, err = svc.Authenticate(ctx, "nobody", "longpassword")
	assert.ErrorIs(t, err, domain.ErrAuth)

	_, err = svc.Authenticate(ctx, "", "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	users, _ := newStores(t)
	svc := newUserSvc(t, users)

	_, err := svc.VerifyToken("garbage")
	assert.ErrorIs(t, err, domain.ErrAuth)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestUpdatePassword(t *testing.T) {
	ctx := context.Background()
	users, _ := newStores(t)
	svc := newUserSvc(t, users)

	u, err := svc.Register(ctx, "ann", "longpassword")
	require.NoError(t, err)

	_, err = svc.UpdatePassword(ctx, u.ID, "short")
	assert.ErrorIs(t, err, domain.ErrValidation)

	updated, err := svc.UpdatePassword(ctx, u.ID, "brand-new-password")
	require.NoError(t, err)
	assert.Equal(t, "ann", updated.Username)
	assert.Empty(t, updated.PasswordHash)

	_, err = svc.Authenticate(ctx, "ann", "longpassword")
	assert.ErrorIs(t, err, domain.ErrAuth)
	_, err = svc.Authenticate(ctx, "ann", "brand-new-password")
	assert.NoError(t, err)
}

type failingUsers struct {
	repository.UserRepository
	err error
}

func (f failingUsers) GetByUsername(context.Context, string) (*domain.User, error) { return nil, f.err }

func TestAuthenticateStoreFailureIsInternal(t *testing.T) {
	svc := NewUserService(failingUsers{err: errors.New("connection reset")}, auth.NewTokens("k", "", time.Hour))

	_, err := svc.Authenticate(context.Background(), "ann", "longpassword")
	require.Error(t, err)
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))
}

func TestCreateAndGetTask(t *testing.T) {
	ctx := context.Background()
	_, tasks := newStores(t)
	svc := NewTaskService(tasks)

	id, err := svc.CreateTask(ctx, "u1", NewTask{Title: "Buy milk"})
	require.NoError(t, err)

	got, err := svc.GetTask(ctx, "u1", id)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskDetail{ID: id, Title: "Buy milk", Description: "", Status: domain.TaskStatusPending}, *got)

	_, err = svc.CreateTask(ctx, "u1", NewTask{Title: "ab"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.CreateTask(ctx, "u1", NewTask{Title: "Buy milk", Status: ptr(domain.TaskStatus("bogus"))})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.CreateTask(ctx, "u1", NewTask{Title: "Buy milk", Status: ptr(domain.TaskStatus(""))})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestTasksInvisibleToOtherUsers(t *testing.T) {
	ctx := context.Background()
	_, tasks := newStores(t)
	svc := NewTaskService(tasks)

	id, err := svc.CreateTask(ctx, "alice", NewTask{Title: "Secret plan", Description: "x", Status: ptr(domain.TaskStatusInProgress)})
	require.NoError(t, err)

	_, err = svc.GetTask(ctx, "bob", id)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, err := svc.ListTasks(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = svc.UpdateTask(ctx, "bob", id, domain.TaskUpdate{Status: ptr(domain.TaskStatusCompleted)})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	removed, err := svc.DeleteTask(ctx, "bob", id)
	require.NoError(t, err)
	assert.False(t, removed)

	got, err := svc.GetTask(ctx, "alice", id)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusInProgress, got.Status)
}

func TestListTasksProjection(t *testing.T) {
	ctx := context.Background()
	_, tasks := newStores(t)
	svc := NewTaskService(tasks)

	id1, err := svc.CreateTask(ctx, "u1", NewTask{Title: "first", Description: "hidden in list"})
	require.NoError(t, err)
	id2, err := svc.CreateTask(ctx, "u1", NewTask{Title: "second", Status: ptr(domain.TaskStatusCompleted)})
	require.NoError(t, err)

	list, err := svc.ListTasks(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []domain.TaskSummary{
		{ID: id1, Title: "first", Status: domain.TaskStatusPending},
		{ID: id2, Title: "second", Status: domain.TaskStatusCompleted},
	}, list)
}

func TestPartialUpdateLeavesOtherFields(t *testing.T) {
	ctx := context.Background()
	_, tasks := newStores(t)
	svc := NewTaskService(tasks)

	id, err := svc.CreateTask(ctx, "u1", NewTask{Title: "Buy milk", Description: "2 litres"})
	require.NoError(t, err)

	got, err := svc.UpdateTask(ctx, "u1", id, domain.TaskUpdate{Status: ptr(domain.TaskStatusCompleted)})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskDetail{ID: id, Title: "Buy milk", Description: "2 litres", Status: domain.TaskStatusCompleted}, *got)

	_, err = svc.UpdateTask(ctx, "u1", id, domain.TaskUpdate{Status: ptr(domain.TaskStatus("bogus"))})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.UpdateTask(ctx, "u1", id, domain.TaskUpdate{Title: ptr("  x ")})
	assert.ErrorIs(t, err, domain.ErrValidation)

	got, err = svc.GetTask(ctx, "u1", id)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, got.Status)
	assert.Equal(t, "Buy milk", got.Title)

	got, err = svc.UpdateTask(ctx, "u1", id, domain.TaskUpdate{})
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", got.Title)
}

func TestReplaceTaskRequiresAllFields(t *testing.T) {
	ctx := context.Background()
	_, tasks := newStores(t)
	svc := NewTaskService(tasks)

	id, err := svc.CreateTask(ctx, "u1", NewTask{Title: "Buy milk"})
	require.NoError(t, err)

	_, err = svc.ReplaceTask(ctx, "u1", id, domain.TaskUpdate{Title: ptr("Buy bread"), Status: ptr(domain.TaskStatusPending)})
	assert.ErrorIs(t, err, domain.ErrValidation)

	got, err := svc.ReplaceTask(ctx, "u1", id, domain.TaskUpdate{
		Title:       ptr("Buy bread"),
		Description: ptr("wholemeal"),
		Status:      ptr(domain.TaskStatusInProgress),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskDetail{ID: id, Title: "Buy bread", Description: "wholemeal", Status: domain.TaskStatusInProgress}, *got)

	_, err = svc.ReplaceTask(ctx, "u1", "missing", domain.TaskUpdate{
		Title:       ptr("Buy bread"),
		Description: ptr(""),
		Status:      ptr(domain.TaskStatusPending),
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteTask(t *testing.T) {
	ctx := context.Background()
	_, tasks := newStores(t)
	svc := NewTaskService(tasks)

	id, err := svc.CreateTask(ctx, "u1", NewTask{Title: "Buy milk"})
	require.NoError(t, err)

	removed, err := svc.DeleteTask(ctx, "u1", id)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = svc.DeleteTask(ctx, "u1", id)
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = svc.DeleteTask(ctx, "u1", "not-an-id")
	require.NoError(t, err)
	assert.False(t, removed)
}
