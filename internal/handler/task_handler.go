package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"todoapp/internal/errors"
	"todoapp/internal/middleware"
	"todoapp/internal/model"
	"todoapp/internal/service"
)

// TaskHandler handles the task endpoints of the authenticated user.
type TaskHandler struct {
	taskService service.TaskService
}

// NewTaskHandler creates a new task handler.
func NewTaskHandler(taskService service.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

// CreateTaskRequest represents a new task. Any id sent by the client is
// ignored.
type CreateTaskRequest struct {
	Text       string           `json:"text"`
	Date       *string          `json:"date"`
	Completed  bool             `json:"completed"`
	Priority   model.Priority   `json:"priority"`
	Category   string           `json:"category" validate:"max=64"`
	Notes      *string          `json:"notes"`
	Recurrence model.Recurrence `json:"recurrence"`
}

// ReorderRequest carries the new order of task ids.
type ReorderRequest struct {
	Order []int64 `json:"order" validate:"required"`
}

// ReorderResponse reports how many tasks the reorder removed.
type ReorderResponse struct {
	Message string `json:"message"`
	Dropped int    `json:"dropped"`
}

// List godoc
// @Summary List tasks
// @Description Returns the tasks of the authenticated user in display order.
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Task
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /tasks [get]
func (h *TaskHandler) List(c echo.Context) error {
	tasks, err := h.taskService.List(c.Request().Context(), middleware.Username(c))
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, tasks)
}

// Create godoc
// @Summary Create a task
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateTaskRequest true "Task fields"
// @Success 201 {object} model.Task
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /tasks [post]
func (h *TaskHandler) Create(c echo.Context) error {
	var req CreateTaskRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	task, err := h.taskService.Create(c.Request().Context(), middleware.Username(c), model.NewTask{
		Text:       req.Text,
		Date:       req.Date,
		Completed:  req.Completed,
		Priority:   req.Priority,
		Category:   req.Category,
		Notes:      req.Notes,
		Recurrence: req.Recurrence,
	})
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusCreated, task)
}

// Update godoc
// @Summary Update a task
// @Description Applies only the fields present in the body. Completing a recurring task schedules its next occurrence.
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Task ID"
// @Param request body model.TaskPatch true "Fields to change"
// @Success 200 {object} model.Task
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /tasks/{id} [put]
func (h *TaskHandler) Update(c echo.Context) error {
	id, err := taskID(c)
	if err != nil {
		return err
	}

	var patch model.TaskPatch
	if err := bind(c, &patch); err != nil {
		return err
	}

	task, err := h.taskService.Update(c.Request().Context(), middleware.Username(c), id, patch)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, task)
}

// Delete godoc
// @Summary Delete a task
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param id path int true "Task ID"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /tasks/{id} [delete]
func (h *TaskHandler) Delete(c echo.Context) error {
	id, err := taskID(c)
	if err != nil {
		return err
	}

	if err := h.taskService.Delete(c.Request().Context(), middleware.Username(c), id); err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Task deleted successfully"})
}

// Reorder godoc
// @Summary Reorder tasks
// @Description Rewrites the collection in the given order. Tasks whose id is missing from order are deleted.
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ReorderRequest true "Task ids in display order"
// @Success 200 {object} ReorderResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /tasks/reorder [post]
func (h *TaskHandler) Reorder(c echo.Context) error {
	var req ReorderRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	dropped, err := h.taskService.Reorder(c.Request().Context(), middleware.Username(c), req.Order)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, ReorderResponse{Message: "Task order updated successfully", Dropped: dropped})
}

func taskID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, fail(errors.Validation("invalid task id"))
	}
	return id, nil
}
