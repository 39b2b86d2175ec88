package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/taskpilot/core/internal/domain/entities"
	"github.com/taskpilot/core/internal/infrastructure/logger"
	"github.com/taskpilot/core/internal/ports"
)

// TaskService handles task-related operations
type TaskService struct {
	taskRepo   ports.TaskRepository
	recurrence *RecurrenceService
	logger     *logger.Logger
}

// NewTaskService creates a new task service
func NewTaskService(taskRepo ports.TaskRepository, recurrence *RecurrenceService, logger *logger.Logger) *TaskService {
	return &TaskService{
		taskRepo:   taskRepo,
		recurrence: recurrence,
		logger:     logger,
	}
}

// CreateTask creates a new task. A recurring task requires a due date
// and a valid pattern; its NextDueDate is seeded from the evaluator so
// the task is born as the head of its chain.
func (s *TaskService) CreateTask(ctx context.Context, req ports.CreateTaskRequest) (*entities.Task, error) {
	priority := req.Priority
	if priority == "" {
		priority = entities.PriorityLow
	}
	if !priority.IsValid() {
		return nil, fmt.Errorf("%w: %q", entities.ErrInvalidPriority, priority)
	}

	notificationsEnabled := true
	if req.NotificationsEnabled != nil {
		notificationsEnabled = *req.NotificationsEnabled
	}

	task := &entities.Task{
		ID:                   uuid.New(),
		Title:                req.Title,
		Description:          req.Description,
		Status:               entities.TaskStatusPending,
		Priority:             priority,
		DueDate:              req.DueDate,
		IsRecurring:          req.IsRecurring,
		RecurrencePattern:    req.RecurrencePattern,
		RecurrenceEndDate:    req.RecurrenceEndDate,
		NotificationsEnabled: notificationsEnabled,
	}

	if req.IsRecurring {
		if req.DueDate == nil {
			return nil, fmt.Errorf("%w: recurring task requires a due date", entities.ErrInvalidPattern)
		}
		if err := req.RecurrencePattern.Validate(); err != nil {
			return nil, err
		}

		next, err := entities.NextOccurrence(*req.DueDate, req.RecurrencePattern)
		if err != nil {
			return nil, err
		}
		if req.RecurrenceEndDate == nil || !next.After(*req.RecurrenceEndDate) {
			task.NextDueDate = &next
		}
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.logger.Infow("Task created", "task_id", task.ID, "title", task.Title, "is_recurring", task.IsRecurring)

	return task, nil
}

// GetTask retrieves a task by ID
func (s *TaskService) GetTask(ctx context.Context, id uuid.UUID) (*entities.Task, error) {
	task, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return task, nil
}

// UpdateTask updates a task's information
func (s *TaskService) UpdateTask(ctx context.Context, id uuid.UUID, req ports.UpdateTaskRequest) (*entities.Task, error) {
	task, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = req.Description
	}
	if req.Status != nil {
		if !req.Status.IsValid() {
			return nil, fmt.Errorf("%w: %q", entities.ErrInvalidStatus, *req.Status)
		}
		task.Status = *req.Status
	}
	if req.Priority != nil {
		if !req.Priority.IsValid() {
			return nil, fmt.Errorf("%w: %q", entities.ErrInvalidPriority, *req.Priority)
		}
		task.Priority = *req.Priority
	}
	if req.DueDate != nil {
		task.DueDate = req.DueDate
	}
	if req.IsRecurring != nil {
		task.IsRecurring = *req.IsRecurring
	}
	if req.RecurrencePattern != nil {
		task.RecurrencePattern = *req.RecurrencePattern
	}
	if req.RecurrenceEndDate != nil {
		task.RecurrenceEndDate = req.RecurrenceEndDate
	}
	if req.NotificationsEnabled != nil {
		task.NotificationsEnabled = *req.NotificationsEnabled
	}

	// Re-seed the chain head whenever the recurrence inputs changed.
	if task.IsRecurring {
		if task.DueDate == nil {
			return nil, fmt.Errorf("%w: recurring task requires a due date", entities.ErrInvalidPattern)
		}
		if err := task.RecurrencePattern.Validate(); err != nil {
			return nil, err
		}
		if req.DueDate != nil || req.RecurrencePattern != nil || req.IsRecurring != nil {
			next, err := entities.NextOccurrence(*task.DueDate, task.RecurrencePattern)
			if err != nil {
				return nil, err
			}
			if task.RecurrenceEndDate == nil || !next.After(*task.RecurrenceEndDate) {
				task.NextDueDate = &next
			} else {
				task.NextDueDate = nil
			}
		}
	} else {
		task.RecurrencePattern = entities.RecurrencePattern{}
		task.NextDueDate = nil
		task.RecurrenceEndDate = nil
	}

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	return task, nil
}

// DeleteTask removes a task
func (s *TaskService) DeleteTask(ctx context.Context, id uuid.UUID) error {
	if err := s.taskRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Infow("Task deleted", "task_id", id)
	return nil
}

// ListTasks returns tasks matching the filter plus the unpaged total
func (s *TaskService) ListTasks(ctx context.Context, filter ports.TaskFilter) ([]*entities.Task, int, error) {
	tasks, err := s.taskRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.taskRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	return tasks, int(total), nil
}

// ToggleTaskStatus flips a task between pending and completed.
// Completing a recurring task propagates its successor immediately; a
// propagation failure is logged, not surfaced, because the next
// scheduler tick picks the template up again via its due NextDueDate.
func (s *TaskService) ToggleTaskStatus(ctx context.Context, id uuid.UUID) (*entities.Task, error) {
	task, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if task.IsCompleted() {
		task.Status = entities.TaskStatusPending
	} else {
		task.Status = entities.TaskStatusCompleted
	}

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update task status: %w", err)
	}

	if task.IsCompleted() && task.IsRecurring && task.NextDueDate != nil {
		if _, err := s.recurrence.Advance(ctx, task); err != nil {
			s.logger.Errorw("Propagation on completion failed", "task_id", task.ID, "error", err)
		}
	}

	return task, nil
}

// ToggleNotifications flips the per-task notification opt-out
func (s *TaskService) ToggleNotifications(ctx context.Context, id uuid.UUID) (*entities.Task, error) {
	task, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	task.NotificationsEnabled = !task.NotificationsEnabled

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to toggle notifications: %w", err)
	}

	return task, nil
}
