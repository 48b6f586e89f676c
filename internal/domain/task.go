package domain

import "time"

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// TaskStatuses lists every accepted status value.
var TaskStatuses = []TaskStatus{
	TaskStatusPending,
	TaskStatusInProgress,
	TaskStatusCompleted,
}

// Valid reports whether s is one of the accepted status values.
func (s TaskStatus) Valid() bool {
	for _, status := range TaskStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Task is a to-do item owned by exactly one user.
type Task struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	Status      TaskStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskUpdate carries the fields supplied by a caller. Nil fields are left untouched.
type TaskUpdate struct {
	Title       *string
	Description *string
	Status      *TaskStatus
}

// Empty reports whether no field was supplied.
func (u TaskUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Status == nil
}

// Complete reports whether every mutable field was supplied.
func (u TaskUpdate) Complete() bool {
	return u.Title != nil && u.Description != nil && u.Status != nil
}

// TaskSummary is the list view of a task.
type TaskSummary struct {
	ID     string
	Title  string
	Status TaskStatus
}

// TaskDetail is the single-task view.
type TaskDetail struct {
	ID          string
	Title       string
	Description string
	Status      TaskStatus
}

func (t Task) Summary() TaskSummary {
	return TaskSummary{ID: t.ID, Title: t.Title, Status: t.Status}
}

func (t Task) Detail() TaskDetail {
	return TaskDetail{ID: t.ID, Title: t.Title, Description: t.Description, Status: t.Status}
}
