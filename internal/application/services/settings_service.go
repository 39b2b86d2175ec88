package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/taskpilot/core/internal/domain/entities"
	"github.com/taskpilot/core/internal/infrastructure/config"
	"github.com/taskpilot/core/internal/infrastructure/logger"
	"github.com/taskpilot/core/internal/ports"
)

// SettingsService manages the singleton notification settings row.
type SettingsService struct {
	settingsRepo ports.SettingsRepository
	cfg          config.NotificationsConfig
	logger       *logger.Logger
}

// NewSettingsService creates a new settings service
func NewSettingsService(settingsRepo ports.SettingsRepository, cfg config.NotificationsConfig, logger *logger.Logger) *SettingsService {
	return &SettingsService{
		settingsRepo: settingsRepo,
		cfg:          cfg,
		logger:       logger,
	}
}

// GetSettings returns the stored settings, falling back to the process
// defaults when nothing has been saved yet.
func (s *SettingsService) GetSettings(ctx context.Context) (*entities.NotificationSettings, error) {
	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		if errors.Is(err, entities.ErrSettingsNotFound) {
			return &entities.NotificationSettings{
				Email:              s.cfg.DefaultEmail,
				Phone:              s.cfg.DefaultPhone,
				EmailNotifications: s.cfg.DefaultEmail != "",
				SMSNotifications:   s.cfg.DefaultPhone != "",
				ReminderTimes:      append([]int{}, s.cfg.ReminderTimes...),
			}, nil
		}
		return nil, err
	}

	if len(settings.ReminderTimes) == 0 {
		settings.ReminderTimes = append([]int{}, s.cfg.ReminderTimes...)
	}
	settings.SortReminderTimes()

	return settings, nil
}

// UpdateSettings replaces the stored settings with the request values.
func (s *SettingsService) UpdateSettings(ctx context.Context, req ports.UpdateSettingsRequest) (*entities.NotificationSettings, error) {
	settings := &entities.NotificationSettings{
		Email:              req.Email,
		Phone:              req.Phone,
		EmailNotifications: req.EmailNotifications,
		SMSNotifications:   req.SMSNotifications,
		ReminderTimes:      req.ReminderTimes,
	}

	if len(settings.ReminderTimes) == 0 {
		settings.ReminderTimes = append([]int{}, s.cfg.ReminderTimes...)
	}
	settings.SortReminderTimes()

	if err := s.settingsRepo.Save(ctx, settings); err != nil {
		return nil, fmt.Errorf("save notification settings: %w", err)
	}

	s.logger.Infow("Notification settings updated",
		"email_notifications", settings.EmailNotifications,
		"sms_notifications", settings.SMSNotifications,
		"reminder_times", settings.ReminderTimes)

	return settings, nil
}
