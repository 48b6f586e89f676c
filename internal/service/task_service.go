package service

import (
	"context"
	"errors"

	"task-manager/internal/domain"
	"task-manager/internal/repository"
	"task-manager/internal/validate"
)

// NewTask is the input of CreateTask. A nil Status defaults to pending; a
// supplied one, including the empty string, must be a known status.
type NewTask struct {
	Title       string
	Description string
	Status      *domain.TaskStatus
}

// TaskService coordinates validation and ownership-scoped task operations.
// Every method takes the verified caller id; tasks owned by anyone else
// behave exactly like tasks that do not exist.
type TaskService interface {
	CreateTask(ctx context.Context, userID string, in NewTask) (string, error)
	ListTasks(ctx context.Context, userID string) ([]domain.TaskSummary, error)
	GetTask(ctx context.Context, userID, taskID string) (*domain.TaskDetail, error)
	UpdateTask(ctx context.Context, userID, taskID string, update domain.TaskUpdate) (*domain.TaskDetail, error)
	ReplaceTask(ctx context.Context, userID, taskID string, update domain.TaskUpdate) (*domain.TaskDetail, error)
	DeleteTask(ctx context.Context, userID, taskID string) (bool, error)
}

type taskService struct {
	tasks repository.TaskRepository
}

func NewTaskService(tasks repository.TaskRepository) TaskService {
	return &taskService{tasks: tasks}
}

func (s *taskService) CreateTask(ctx context.Context, userID string, in NewTask) (string, error) {
	status := domain.TaskStatusPending
	if in.Status != nil {
		status = *in.Status
	}
	if !validate.TaskData(in.Title, status) {
		return "", domain.Validation("Invalid task data")
	}

	task := &domain.Task{
		OwnerID:     userID,
		Title:       in.Title,
		Description: in.Description,
		Status:      status,
	}
	id, err := s.tasks.Create(ctx, task)
	if err != nil {
		return "", domain.Internal("create task", err)
	}
	return id, nil
}

func (s *taskService) ListTasks(ctx context.Context, userID string) ([]domain.TaskSummary, error) {
	tasks, err := s.tasks.ListByOwner(ctx, userID)
	if err != nil {
		return nil, domain.Internal("list tasks", err)
	}

	out := make([]domain.TaskSummary, len(tasks))
	for i := range tasks {
		out[i] = tasks[i].Summary()
	}
	return out, nil
}

func (s *taskService) GetTask(ctx context.Context, userID, taskID string) (*domain.TaskDetail, error) {
	task, err := s.tasks.Get(ctx, userID, taskID)
	if err != nil {
		return nil, notFoundOrInternal("get task", err)
	}
	detail := task.Detail()
	return &detail, nil
}

// UpdateTask merges the supplied fields into the stored task.
func (s *taskService) UpdateTask(ctx context.Context, userID, taskID string, update domain.TaskUpdate) (*domain.TaskDetail, error) {
	if update.Status != nil && !update.Status.Valid() {
		return nil, domain.Validation("Invalid status value")
	}
	if update.Title != nil && !validate.Title(*update.Title) {
		return nil, domain.Validation("Title must be at least 3 characters")
	}

	if _, err := s.GetTask(ctx, userID, taskID); err != nil {
		return nil, err
	}

	if !update.Empty() {
		matched, err := s.tasks.Update(ctx, userID, taskID, update)
		if err != nil {
			return nil, domain.Internal("update task", err)
		}
		if !matched {
			// deleted between the lookup and the write
			return nil, domain.NotFound("Task not found")
		}
	}

	return s.GetTask(ctx, userID, taskID)
}

// ReplaceTask is the full-replace variant: title, description and status must all be supplied.
func (s *taskService) ReplaceTask(ctx context.Context, userID, taskID string, update domain.TaskUpdate) (*domain.TaskDetail, error) {
	if !update.Complete() {
		return nil, domain.Validation("Missing required fields")
	}
	return s.UpdateTask(ctx, userID, taskID, update)
}

func (s *taskService) DeleteTask(ctx context.Context, userID, taskID string) (bool, error) {
	removed, err := s.tasks.Delete(ctx, userID, taskID)
	if err != nil {
		return false, domain.Internal("delete task", err)
	}
	return removed, nil
}

func notFoundOrInternal(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NotFound("Task not found")
	}
	return domain.Internal(op, err)
}
