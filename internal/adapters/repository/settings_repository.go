package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/taskpilot/core/internal/domain/entities"
	"github.com/taskpilot/core/internal/infrastructure/database"
	"github.com/taskpilot/core/internal/ports"
)

// SettingsRepositoryImpl implements the SettingsRepository interface.
// The notification_settings table holds a single row per deployment.
type SettingsRepositoryImpl struct {
	db *database.DB
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *database.DB) ports.SettingsRepository {
	return &SettingsRepositoryImpl{db: db}
}

func (r *SettingsRepositoryImpl) Get(ctx context.Context) (*entities.NotificationSettings, error) {
	query := `
		SELECT email, phone, email_notifications, sms_notifications, reminder_times, updated_at
		FROM notification_settings
		WHERE id = 1`

	var settings entities.NotificationSettings
	var times pq.Int64Array

	row := r.db.DB.QueryRowContext(ctx, query)
	err := row.Scan(&settings.Email, &settings.Phone, &settings.EmailNotifications,
		&settings.SMSNotifications, &times, &settings.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrSettingsNotFound
		}
		return nil, fmt.Errorf("get notification settings: %w", err)
	}

	settings.ReminderTimes = make([]int, len(times))
	for i, t := range times {
		settings.ReminderTimes[i] = int(t)
	}

	return &settings, nil
}

func (r *SettingsRepositoryImpl) Save(ctx context.Context, settings *entities.NotificationSettings) error {
	query := `
		INSERT INTO notification_settings (id, email, phone, email_notifications, sms_notifications, reminder_times, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, CURRENT_TIMESTAMP)
		ON CONFLICT (id)
		DO UPDATE SET email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			email_notifications = EXCLUDED.email_notifications,
			sms_notifications = EXCLUDED.sms_notifications,
			reminder_times = EXCLUDED.reminder_times,
			updated_at = CURRENT_TIMESTAMP
		RETURNING updated_at`

	times := make(pq.Int64Array, len(settings.ReminderTimes))
	for i, t := range settings.ReminderTimes {
		times[i] = int64(t)
	}

	err := r.db.DB.QueryRowContext(ctx, query,
		settings.Email, settings.Phone, settings.EmailNotifications,
		settings.SMSNotifications, times,
	).Scan(&settings.UpdatedAt)

	if err != nil {
		return fmt.Errorf("save notification settings: %w", err)
	}

	return nil
}
