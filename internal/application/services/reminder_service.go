package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/taskpilot/core/internal/domain/entities"
	"github.com/taskpilot/core/internal/infrastructure/config"
	"github.com/taskpilot/core/internal/infrastructure/logger"
	"github.com/taskpilot/core/internal/infrastructure/metrics"
	"github.com/taskpilot/core/internal/ports"
)

// ReminderService runs the reminder tick: it materializes due recurring
// instances, scans pending tasks against the configured lead times and
// dispatches reminders, deduplicated through the notification ledger.
type ReminderService struct {
	taskRepo     ports.TaskRepository
	ledger       ports.NotificationLogRepository
	settingsRepo ports.SettingsRepository
	recurrence   *RecurrenceService
	dispatcher   *DispatchService
	cfg          config.NotificationsConfig
	clock        ports.Clock
	logger       *logger.Logger
	metrics      *metrics.Metrics
}

// NewReminderService creates a new reminder service
func NewReminderService(
	taskRepo ports.TaskRepository,
	ledger ports.NotificationLogRepository,
	settingsRepo ports.SettingsRepository,
	recurrence *RecurrenceService,
	dispatcher *DispatchService,
	cfg config.NotificationsConfig,
	clock ports.Clock,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *ReminderService {
	if clock == nil {
		clock = ports.ClockFunc(time.Now)
	}
	return &ReminderService{
		taskRepo:     taskRepo,
		ledger:       ledger,
		settingsRepo: settingsRepo,
		recurrence:   recurrence,
		dispatcher:   dispatcher,
		cfg:          cfg,
		clock:        clock,
		logger:       logger,
		metrics:      metrics,
	}
}

// EffectiveSettings resolves the configuration for one tick: the
// request override wins, then the stored singleton row, then the
// process defaults from config. The result is fully populated and has
// its lead times sorted descending.
func (s *ReminderService) EffectiveSettings(ctx context.Context, override *entities.NotificationSettings) (*entities.NotificationSettings, error) {
	var settings *entities.NotificationSettings

	switch {
	case override != nil:
		copied := *override
		settings = &copied
	default:
		stored, err := s.settingsRepo.Get(ctx)
		if err != nil {
			if !errors.Is(err, entities.ErrSettingsNotFound) {
				return nil, fmt.Errorf("load notification settings: %w", err)
			}
			settings = &entities.NotificationSettings{
				Email:              s.cfg.DefaultEmail,
				Phone:              s.cfg.DefaultPhone,
				EmailNotifications: s.cfg.DefaultEmail != "",
				SMSNotifications:   s.cfg.DefaultPhone != "",
			}
		} else {
			settings = stored
		}
	}

	if len(settings.ReminderTimes) == 0 {
		settings.ReminderTimes = append([]int{}, s.cfg.ReminderTimes...)
	}
	settings.SortReminderTimes()

	return settings, nil
}

// RunTick executes one reminder pass. Store failures on the initial
// reads abort the tick; per-task and per-channel failures are logged
// and processing continues.
func (s *ReminderService) RunTick(ctx context.Context, req ports.TriggerRequest) (*ports.TriggerResponse, error) {
	started := s.clock.Now()
	testMode := req.TestMode || req.SendNow

	settings, err := s.EffectiveSettings(ctx, req.Settings)
	if err != nil {
		return nil, err
	}
	if !settings.HasContact() {
		return nil, entities.ErrNoContactConfigured
	}

	// Materialize due recurring instances before scanning, so a task
	// that just came due can receive its reminders this very tick.
	if err := s.propagateDue(ctx); err != nil {
		return nil, err
	}

	pending := entities.TaskStatusPending
	hasDueDate := true
	tasks, err := s.taskRepo.List(ctx, ports.TaskFilter{Status: &pending, DueDateSet: &hasDueDate})
	if err != nil {
		return nil, fmt.Errorf("list pending tasks: %w", err)
	}

	now := s.clock.Now()
	sent := 0

	for _, task := range tasks {
		if !task.NotificationsEnabled {
			continue
		}

		reminderMinutes, fire := s.selectReminder(ctx, task, settings, now, testMode)
		if !fire {
			continue
		}

		result := s.dispatcher.Send(ctx, task, reminderMinutes, settings, now)
		delivered := result.Succeeded()
		if len(delivered) == 0 {
			continue
		}
		sent++

		if testMode {
			continue
		}

		record := &entities.NotificationRecord{
			TaskID:            task.ID,
			ReminderMinutes:   reminderMinutes,
			NotificationTypes: delivered,
		}
		if err := s.ledger.Upsert(ctx, record); err != nil {
			// The send happened; a missing ledger entry risks one
			// duplicate next tick, which beats losing the reminder.
			s.logger.Errorw("Failed to record notification",
				"task_id", task.ID, "reminder_minutes", reminderMinutes, "error", err)
		}
	}

	s.metrics.TicksTotal.Inc()
	s.logger.LogReminderTick(len(tasks), sent, testMode,
		float64(s.clock.Now().Sub(started).Nanoseconds())/1e6)

	message := fmt.Sprintf("Checked %d tasks, sent %d notifications", len(tasks), sent)
	if testMode {
		message = "Test completed: " + message
	}

	return &ports.TriggerResponse{
		TasksChecked:      len(tasks),
		NotificationsSent: sent,
		Message:           message,
	}, nil
}

// selectReminder picks at most one lead time for the task this tick.
// Lead times are checked in configured order and scanning stops at the
// first windowed match; the ledger then decides whether it still needs
// sending. Test mode skips both the window and the ledger and picks the
// first lead time at or below the remaining minutes (0 if none).
func (s *ReminderService) selectReminder(ctx context.Context, task *entities.Task, settings *entities.NotificationSettings, now time.Time, testMode bool) (int, bool) {
	minutesUntilDue, ok := task.MinutesUntilDue(now)
	if !ok {
		return 0, false
	}

	if testMode {
		for _, rm := range settings.ReminderTimes {
			if float64(rm) <= minutesUntilDue {
				return rm, true
			}
		}
		return 0, true
	}

	window := float64(s.cfg.WindowMinutes)
	for _, rm := range settings.ReminderTimes {
		if math.Abs(minutesUntilDue-float64(rm)) > window {
			continue
		}

		exists, err := s.ledger.Exists(ctx, task.ID, rm)
		if err != nil {
			// Without the dedup answer, skipping is the safe side:
			// the next tick retries while the window is still open.
			s.logger.Errorw("Ledger lookup failed",
				"task_id", task.ID, "reminder_minutes", rm, "error", err)
			return 0, false
		}
		if exists {
			return 0, false
		}

		return rm, true
	}

	return 0, false
}

// propagateDue advances every recurring task whose next occurrence has
// arrived. A failing template is logged and skipped; the next tick is
// the retry mechanism.
func (s *ReminderService) propagateDue(ctx context.Context) error {
	templates, err := s.taskRepo.ListDueTemplates(ctx, s.clock.Now())
	if err != nil {
		return fmt.Errorf("list due recurring tasks: %w", err)
	}

	for _, template := range templates {
		if _, err := s.recurrence.Advance(ctx, template); err != nil {
			s.logger.Errorw("Recurring propagation failed",
				"task_id", template.ID, "error", err)
		}
	}

	return nil
}
