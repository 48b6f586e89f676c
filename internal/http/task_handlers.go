package http

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"task-manager/internal/domain"
	"task-manager/internal/service"
)

type createTaskRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Status      optionalStatus `json:"status"`
}

// optionalStatus tells an absent "status" key apart from one sent as "" or null.
type optionalStatus struct {
	set   bool
	value domain.TaskStatus
}

func (o *optionalStatus) UnmarshalJSON(data []byte) error {
	o.set = true
	if string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, &o.value)
}

func (o optionalStatus) ptr() *domain.TaskStatus {
	if !o.set {
		return nil
	}
	v := o.value
	return &v
}

// updateTaskRequest distinguishes absent fields (nil) from supplied ones.
type updateTaskRequest struct {
	Title       *string            `json:"title"`
	Description *string            `json:"description"`
	Status      *domain.TaskStatus `json:"status"`
}

func (r updateTaskRequest) toDomain() domain.TaskUpdate {
	return domain.TaskUpdate{
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
	}
}

type TaskResponse struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Status      domain.TaskStatus `json:"status"`
}

type TaskSummaryResponse struct {
	ID     string            `json:"id"`
	Title  string            `json:"title"`
	Status domain.TaskStatus `json:"status"`
}

func taskToResponse(task domain.TaskDetail) TaskResponse {
	return TaskResponse{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
	}
}

func (h *Handler) createTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badJSON(c, err)
		return
	}

	id, err := h.tasks.CreateTask(c.Request.Context(), userID(c), service.NewTask{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status.ptr(),
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id, "message": "Task created"})
}

func (h *Handler) listTasks(c *gin.Context) {
	tasks, err := h.tasks.ListTasks(c.Request.Context(), userID(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := make([]TaskSummaryResponse, len(tasks))
	for i := range tasks {
		resp[i] = TaskSummaryResponse{ID: tasks[i].ID, Title: tasks[i].Title, Status: tasks[i].Status}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getTask(c *gin.Context) {
	task, err := h.tasks.GetTask(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, taskToResponse(*task))
}

func (h *Handler) replaceTask(c *gin.Context) {
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badJSON(c, err)
		return
	}

	task, err := h.tasks.ReplaceTask(c.Request.Context(), userID(c), c.Param("id"), req.toDomain())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, taskToResponse(*task))
}

func (h *Handler) updateTask(c *gin.Context) {
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badJSON(c, err)
		return
	}

	task, err := h.tasks.UpdateTask(c.Request.Context(), userID(c), c.Param("id"), req.toDomain())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, taskToResponse(*task))
}

func (h *Handler) deleteTask(c *gin.Context) {
	removed, err := h.tasks.DeleteTask(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if !removed {
		h.fail(c, domain.NotFound("Task not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task deleted"})
}
