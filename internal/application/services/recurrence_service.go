package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/taskpilot/core/internal/domain/entities"
	"github.com/taskpilot/core/internal/infrastructure/logger"
	"github.com/taskpilot/core/internal/infrastructure/metrics"
	"github.com/taskpilot/core/internal/ports"
)

// RecurrenceService propagates a recurring task into its next instance.
type RecurrenceService struct {
	taskRepo ports.TaskRepository
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

// NewRecurrenceService creates a new recurrence service
func NewRecurrenceService(taskRepo ports.TaskRepository, logger *logger.Logger, metrics *metrics.Metrics) *RecurrenceService {
	return &RecurrenceService{
		taskRepo: taskRepo,
		logger:   logger,
		metrics:  metrics,
	}
}

// Advance derives and persists the successor of a recurring task whose
// NextDueDate has arrived or whose current instance was completed.
// Returns nil with no error when the chain terminates (end date reached)
// or the successor already exists; the successor and its predecessor are
// written in one transaction so neither lands without the other.
func (s *RecurrenceService) Advance(ctx context.Context, template *entities.Task) (*entities.Task, error) {
	if !template.IsRecurring || template.NextDueDate == nil {
		return nil, nil
	}

	dueDate := *template.NextDueDate
	lineageID := template.LineageID()

	// End of the chain: the next occurrence falls past the bound.
	if template.RecurrenceEndDate != nil && dueDate.After(*template.RecurrenceEndDate) {
		if err := s.retireTemplate(ctx, template); err != nil {
			return nil, err
		}
		s.logger.Infow("Recurrence chain ended",
			"task_id", template.ID, "lineage_id", lineageID,
			"recurrence_end_date", *template.RecurrenceEndDate)
		return nil, nil
	}

	exists, err := s.taskRepo.InstanceExists(ctx, lineageID, dueDate)
	if err != nil {
		return nil, fmt.Errorf("check successor existence: %w", err)
	}
	if exists {
		// Already materialized by an earlier run; just drop the stale
		// head pointer so this template is not rescanned every tick.
		s.logger.Warnw("Successor instance already exists, skipping",
			"task_id", template.ID, "lineage_id", lineageID, "due_date", dueDate)
		if err := s.retireTemplate(ctx, template); err != nil {
			return nil, err
		}
		return nil, nil
	}

	next, err := entities.NextOccurrence(dueDate, template.RecurrencePattern)
	if err != nil {
		return nil, fmt.Errorf("evaluate recurrence for task %s: %w", template.ID, err)
	}

	successor := &entities.Task{
		ID:                   uuid.New(),
		Title:                template.Title,
		Description:          template.Description,
		Status:               entities.TaskStatusPending,
		Priority:             template.Priority,
		DueDate:              &dueDate,
		IsRecurring:          true,
		RecurrencePattern:    template.RecurrencePattern,
		RecurrenceEndDate:    template.RecurrenceEndDate,
		ParentTaskID:         &lineageID,
		NotificationsEnabled: template.NotificationsEnabled,
	}

	// The successor becomes the new chain head unless its own next
	// occurrence would exceed the end date.
	if template.RecurrenceEndDate == nil || !next.After(*template.RecurrenceEndDate) {
		successor.NextDueDate = &next
	}

	if err := s.taskRepo.CreateSuccessor(ctx, successor, template.ID); err != nil {
		if errors.Is(err, entities.ErrDuplicateInstance) {
			// Lost a race with a concurrent tick; the instance exists.
			s.logger.Warnw("Concurrent successor creation detected",
				"task_id", template.ID, "lineage_id", lineageID, "due_date", dueDate)
			return nil, nil
		}
		return nil, fmt.Errorf("persist successor: %w", err)
	}

	s.metrics.InstancesCreated.Inc()
	s.logger.Infow("Recurring instance created",
		"task_id", successor.ID, "lineage_id", lineageID,
		"due_date", dueDate, "next_due_date", successor.NextDueDate)

	return successor, nil
}

func (s *RecurrenceService) retireTemplate(ctx context.Context, template *entities.Task) error {
	template.NextDueDate = nil
	if err := s.taskRepo.Update(ctx, template); err != nil {
		return fmt.Errorf("retire template %s: %w", template.ID, err)
	}
	return nil
}
