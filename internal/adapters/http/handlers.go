package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/taskpilot/core/internal/domain/entities"
	"github.com/taskpilot/core/internal/infrastructure/logger"
	"github.com/taskpilot/core/internal/ports"
)

// TaskHandler handles task-related requests
type TaskHandler struct {
	taskService ports.TaskService
	logger      *logger.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(taskService ports.TaskService, logger *logger.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		logger:      logger,
	}
}

// CreateTask handles task creation
func (h *TaskHandler) CreateTask(c echo.Context) error {
	var req ports.CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := h.taskService.CreateTask(c.Request().Context(), req)
	if err != nil {
		h.logger.Errorw("Create task failed", "error", err)
		return taskError(err)
	}

	return c.JSON(http.StatusCreated, task)
}

// GetTask handles getting a task by ID
func (h *TaskHandler) GetTask(c echo.Context) error {
	taskID, err := parseIDParam(c)
	if err != nil {
		return err
	}

	task, err := h.taskService.GetTask(c.Request().Context(), taskID)
	if err != nil {
		return taskError(err)
	}

	return c.JSON(http.StatusOK, task)
}

// UpdateTask handles partial task updates
func (h *TaskHandler) UpdateTask(c echo.Context) error {
	taskID, err := parseIDParam(c)
	if err != nil {
		return err
	}

	var req ports.UpdateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := h.taskService.UpdateTask(c.Request().Context(), taskID, req)
	if err != nil {
		h.logger.Errorw("Update task failed", "error", err, "task_id", taskID)
		return taskError(err)
	}

	return c.JSON(http.StatusOK, task)
}

// DeleteTask handles task deletion
func (h *TaskHandler) DeleteTask(c echo.Context) error {
	taskID, err := parseIDParam(c)
	if err != nil {
		return err
	}

	if err := h.taskService.DeleteTask(c.Request().Context(), taskID); err != nil {
		return taskError(err)
	}

	return c.JSON(http.StatusOK, ports.MessageResponse{Message: "Task deleted"})
}

// ToggleStatus flips a task between pending and completed
func (h *TaskHandler) ToggleStatus(c echo.Context) error {
	taskID, err := parseIDParam(c)
	if err != nil {
		return err
	}

	task, err := h.taskService.ToggleTaskStatus(c.Request().Context(), taskID)
	if err != nil {
		h.logger.Errorw("Toggle task status failed", "error", err, "task_id", taskID)
		return taskError(err)
	}

	return c.JSON(http.StatusOK, task)
}

// ToggleNotifications flips a task's notification opt-out
func (h *TaskHandler) ToggleNotifications(c echo.Context) error {
	taskID, err := parseIDParam(c)
	if err != nil {
		return err
	}

	task, err := h.taskService.ToggleNotifications(c.Request().Context(), taskID)
	if err != nil {
		return taskError(err)
	}

	return c.JSON(http.StatusOK, task)
}

// ListTasks handles listing tasks with filters and pagination
func (h *TaskHandler) ListTasks(c echo.Context) error {
	filter := ports.TaskFilter{Limit: 50}

	if status := c.QueryParam("status"); status != "" {
		taskStatus := entities.TaskStatus(status)
		if !taskStatus.IsValid() {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid status parameter")
		}
		filter.Status = &taskStatus
	}

	if priority := c.QueryParam("priority"); priority != "" {
		taskPriority := entities.Priority(priority)
		if !taskPriority.IsValid() {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid priority parameter")
		}
		filter.Priority = &taskPriority
	}

	if recurringStr := c.QueryParam("is_recurring"); recurringStr != "" {
		recurring, err := strconv.ParseBool(recurringStr)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid is_recurring parameter")
		}
		filter.IsRecurring = &recurring
	}

	if dueBefore := c.QueryParam("due_before"); dueBefore != "" {
		t, err := time.Parse(time.RFC3339, dueBefore)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid due_before parameter")
		}
		filter.DueBefore = &t
	}

	if dueAfter := c.QueryParam("due_after"); dueAfter != "" {
		t, err := time.Parse(time.RFC3339, dueAfter)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid due_after parameter")
		}
		filter.DueAfter = &t
	}

	if limitStr := c.QueryParam("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid limit parameter")
		}
		filter.Limit = limit
	}

	if offsetStr := c.QueryParam("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid offset parameter")
		}
		filter.Offset = offset
	}

	tasks, total, err := h.taskService.ListTasks(c.Request().Context(), filter)
	if err != nil {
		h.logger.Errorw("List tasks failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to retrieve tasks")
	}

	response := ports.PaginatedResponse[*entities.Task]{
		Data:   tasks,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	return c.JSON(http.StatusOK, response)
}

// SettingsManager is the slice of the settings service the handler needs.
type SettingsManager interface {
	GetSettings(ctx context.Context) (*entities.NotificationSettings, error)
	UpdateSettings(ctx context.Context, req ports.UpdateSettingsRequest) (*entities.NotificationSettings, error)
}

// SettingsHandler handles the notification settings endpoints
type SettingsHandler struct {
	settingsService SettingsManager
	logger          *logger.Logger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settingsService SettingsManager, logger *logger.Logger) *SettingsHandler {
	return &SettingsHandler{
		settingsService: settingsService,
		logger:          logger,
	}
}

// GetSettings returns the current notification settings
func (h *SettingsHandler) GetSettings(c echo.Context) error {
	settings, err := h.settingsService.GetSettings(c.Request().Context())
	if err != nil {
		h.logger.Errorw("Get settings failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to retrieve settings")
	}

	return c.JSON(http.StatusOK, settings)
}

// UpdateSettings replaces the notification settings
func (h *SettingsHandler) UpdateSettings(c echo.Context) error {
	var req ports.UpdateSettingsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	settings, err := h.settingsService.UpdateSettings(c.Request().Context(), req)
	if err != nil {
		h.logger.Errorw("Update settings failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to save settings")
	}

	return c.JSON(http.StatusOK, settings)
}

// ReminderRunner is the slice of the reminder service the handler needs.
type ReminderRunner interface {
	RunTick(ctx context.Context, req ports.TriggerRequest) (*ports.TriggerResponse, error)
}

// NotificationHandler handles the reminder trigger endpoints
type NotificationHandler struct {
	reminderService ReminderRunner
	logger          *logger.Logger
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(reminderService ReminderRunner, logger *logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		reminderService: reminderService,
		logger:          logger,
	}
}

// Trigger runs one reminder tick with an optional settings override
func (h *NotificationHandler) Trigger(c echo.Context) error {
	var req ports.TriggerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	resp, err := h.reminderService.RunTick(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, entities.ErrNoContactConfigured) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		h.logger.Errorw("Reminder tick failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Reminder check failed")
	}

	return c.JSON(http.StatusOK, resp)
}

// TriggerCron runs one reminder tick with stored settings. Exists so a
// plain GET from an external cron can drive the engine.
func (h *NotificationHandler) TriggerCron(c echo.Context) error {
	resp, err := h.reminderService.RunTick(c.Request().Context(), ports.TriggerRequest{})
	if err != nil {
		if errors.Is(err, entities.ErrNoContactConfigured) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		h.logger.Errorw("Reminder tick failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Reminder check failed")
	}

	return c.JSON(http.StatusOK, resp)
}

// Utility functions

func parseIDParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid task ID")
	}
	return id, nil
}

// taskError maps service errors onto HTTP status codes.
func taskError(err error) error {
	switch {
	case errors.Is(err, entities.ErrTaskNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Task not found")
	case errors.Is(err, entities.ErrInvalidPattern),
		errors.Is(err, entities.ErrInvalidStatus),
		errors.Is(err, entities.ErrInvalidPriority):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}
}
