package http

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/taskvault/core/internal/application/services"
	"github.com/taskvault/core/internal/domain/entities"
	"github.com/taskvault/core/internal/infrastructure/logger"
	"github.com/taskvault/core/internal/infrastructure/token"
	"github.com/taskvault/core/internal/ports"
)

// TaskHandler handles task-related requests
type TaskHandler struct {
	taskService *services.TaskService
	tokens      *token.Service
	logger      *logger.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(taskService *services.TaskService, tokens *token.Service, logger *logger.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		tokens:      tokens,
		logger:      logger,
	}
}

// currentUser re-verifies the cookie token inside the handler. The
// access gate already checked it, but gate and handler are independent
// trust boundaries and each does its own verification.
func (h *TaskHandler) currentUser(c echo.Context) (uuid.UUID, error) {
	claims, ok := h.tokens.FromRequest(c.Request())
	if !ok {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
	}

	return userID, nil
}

// ListTasks handles GET /tasks with pagination, status filter and
// title search.
func (h *TaskHandler) ListTasks(c echo.Context) error {
	owner, err := h.currentUser(c)
	if err != nil {
		return err
	}

	var req ports.ListTasksRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid query parameters")
	}

	tasks, total, err := h.taskService.ListTasks(c.Request().Context(), owner, req)
	if err != nil {
		if errors.Is(err, entities.ErrInvalidStatus) {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid query parameters")
		}
		h.logger.Errorw("List tasks failed", "error", err, "user_id", owner)
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	limit := req.PageSize
	if limit < 1 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}

	totalPages := total / int64(limit)
	if total%int64(limit) != 0 {
		totalPages++
	}

	return c.JSON(http.StatusOK, TaskListResponse{
		Tasks: tasks,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
		},
	})
}

// CreateTask handles POST /tasks.
func (h *TaskHandler) CreateTask(c echo.Context) error {
	owner, err := h.currentUser(c)
	if err != nil {
		return err
	}

	var req ports.CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := h.taskService.CreateTask(c.Request().Context(), owner, req)
	if err != nil {
		if errors.Is(err, entities.ErrInvalidStatus) {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid status")
		}
		h.logger.Errorw("Create task failed", "error", err, "user_id", owner)
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}

	return c.JSON(http.StatusCreated, TaskResponse{Task: task})
}

// GetTask handles GET /tasks/:id.
func (h *TaskHandler) GetTask(c echo.Context) error {
	owner, err := h.currentUser(c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid task ID")
	}

	task, err := h.taskService.GetTask(c.Request().Context(), id, owner)
	if err != nil {
		return h.mapTaskError(c, err, owner)
	}

	return c.JSON(http.StatusOK, TaskResponse{Task: task})
}

// UpdateTask handles PUT /tasks/:id with a partial patch.
func (h *TaskHandler) UpdateTask(c echo.Context) error {
	owner, err := h.currentUser(c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid task ID")
	}

	var req ports.UpdateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	// omitempty skips a present-but-empty title; an empty title is
	// still invalid.
	if req.Title != nil && *req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Title cannot be empty")
	}

	task, err := h.taskService.UpdateTask(c.Request().Context(), id, owner, req)
	if err != nil {
		if errors.Is(err, entities.ErrInvalidStatus) {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid status")
		}
		return h.mapTaskError(c, err, owner)
	}

	return c.JSON(http.StatusOK, TaskResponse{Task: task})
}

// DeleteTask handles DELETE /tasks/:id.
func (h *TaskHandler) DeleteTask(c echo.Context) error {
	owner, err := h.currentUser(c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid task ID")
	}

	if err := h.taskService.DeleteTask(c.Request().Context(), id, owner); err != nil {
		return h.mapTaskError(c, err, owner)
	}

	return c.JSON(http.StatusOK, MessageResponse{Message: "Task deleted successfully"})
}

// mapTaskError translates domain errors to HTTP codes. A missing id is
// 404 and a foreign task is 403; the distinction is deliberate.
func (h *TaskHandler) mapTaskError(c echo.Context, err error, owner uuid.UUID) error {
	switch {
	case errors.Is(err, entities.ErrTaskNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Task not found")
	case errors.Is(err, entities.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "Forbidden")
	default:
		h.logger.Errorw("Task operation failed", "error", err, "user_id", owner, "path", c.Request().URL.Path)
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}
}
