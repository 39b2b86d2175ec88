package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/taskpilot/core/internal/domain/entities"
	"github.com/taskpilot/core/internal/infrastructure/database"
	"github.com/taskpilot/core/internal/ports"
)

// NotificationLogRepositoryImpl implements the NotificationLogRepository interface
type NotificationLogRepositoryImpl struct {
	db *database.DB
}

// NewNotificationLogRepository creates a new notification log repository
func NewNotificationLogRepository(db *database.DB) ports.NotificationLogRepository {
	return &NotificationLogRepositoryImpl{db: db}
}

func (r *NotificationLogRepositoryImpl) Exists(ctx context.Context, taskID uuid.UUID, reminderMinutes int) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM notification_log WHERE task_id = $1 AND reminder_minutes = $2)`

	var exists bool
	if err := r.db.DB.GetContext(ctx, &exists, query, taskID, reminderMinutes); err != nil {
		return false, fmt.Errorf("check notification record: %w", err)
	}

	return exists, nil
}

func (r *NotificationLogRepositoryImpl) Upsert(ctx context.Context, record *entities.NotificationRecord) error {
	// Conditional insert on the composite key keeps the check-then-write
	// race-free under concurrent ticks.
	query := `
		INSERT INTO notification_log (task_id, reminder_minutes, notification_types, sent_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
		ON CONFLICT (task_id, reminder_minutes)
		DO UPDATE SET notification_types = EXCLUDED.notification_types
		RETURNING sent_at`

	err := r.db.DB.QueryRowContext(ctx, query,
		record.TaskID, record.ReminderMinutes, pq.Array(record.NotificationTypes),
	).Scan(&record.SentAt)

	if err != nil {
		return fmt.Errorf("upsert notification record: %w", err)
	}

	return nil
}
