package services

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"
	"unicode"

	"github.com/taskpilot/core/internal/domain/entities"
	"github.com/taskpilot/core/internal/infrastructure/config"
	"github.com/taskpilot/core/internal/infrastructure/logger"
	"github.com/taskpilot/core/internal/infrastructure/metrics"
	"github.com/taskpilot/core/internal/ports"
)

// DispatchService formats and sends the outbound message for a
// task + lead-time pair across the enabled channels.
type DispatchService struct {
	email   ports.EmailSender
	sms     ports.SMSSender
	cfg     config.NotificationsConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// NewDispatchService creates a new dispatch service
func NewDispatchService(email ports.EmailSender, sms ports.SMSSender, cfg config.NotificationsConfig, logger *logger.Logger, metrics *metrics.Metrics) *DispatchService {
	return &DispatchService{
		email:   email,
		sms:     sms,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// DispatchResult records the per-channel outcome of one send.
type DispatchResult struct {
	Channels map[string]bool
}

// Succeeded returns the channels that delivered, in a stable order.
func (r DispatchResult) Succeeded() []string {
	var out []string
	for _, channel := range []string{entities.ChannelEmail, entities.ChannelSMS} {
		if r.Channels[channel] {
			out = append(out, channel)
		}
	}
	return out
}

// Send attempts every enabled channel for the given task and lead time.
// Each channel's failure is isolated: a failing email never prevents the
// SMS attempt and vice versa. Overall dispatch succeeded when at least
// one channel delivered.
func (s *DispatchService) Send(ctx context.Context, task *entities.Task, reminderMinutes int, settings *entities.NotificationSettings, now time.Time) DispatchResult {
	result := DispatchResult{Channels: make(map[string]bool)}

	minutes, _ := task.MinutesUntilDue(now)
	dueText := DueText(minutes)

	if settings.EmailNotifications && settings.Email != "" && s.email != nil {
		msg := s.buildEmail(task, settings.Email, dueText)
		if err := s.email.Send(ctx, msg); err != nil {
			s.logger.LogChannelFailure(entities.ChannelEmail, task.ID.String(), reminderMinutes, err)
			s.metrics.SendFailures.WithLabelValues(entities.ChannelEmail).Inc()
			result.Channels[entities.ChannelEmail] = false
		} else {
			s.metrics.RemindersSent.WithLabelValues(entities.ChannelEmail).Inc()
			result.Channels[entities.ChannelEmail] = true
		}
	}

	if settings.SMSNotifications && settings.Phone != "" && s.sms != nil {
		msg := ports.SMSMessage{
			To:   NormalizePhone(settings.Phone, s.cfg.DefaultCountryCode),
			From: s.cfg.TwilioFromNumber,
			Body: fmt.Sprintf("Reminder: %q is due %s.", task.Title, dueText),
		}
		if err := s.sms.Send(ctx, msg); err != nil {
			s.logger.LogChannelFailure(entities.ChannelSMS, task.ID.String(), reminderMinutes, err)
			s.metrics.SendFailures.WithLabelValues(entities.ChannelSMS).Inc()
			result.Channels[entities.ChannelSMS] = false
		} else {
			s.metrics.RemindersSent.WithLabelValues(entities.ChannelSMS).Inc()
			result.Channels[entities.ChannelSMS] = true
		}
	}

	return result
}

func (s *DispatchService) buildEmail(task *entities.Task, to, dueText string) ports.EmailMessage {
	title := html.EscapeString(task.Title)

	var body strings.Builder
	body.WriteString("<h2>Task Reminder</h2>")
	body.WriteString(fmt.Sprintf("<p><strong>%s</strong> is due %s.</p>", title, dueText))
	if task.Description != nil && *task.Description != "" {
		body.WriteString(fmt.Sprintf("<p>%s</p>", html.EscapeString(*task.Description)))
	}
	if task.DueDate != nil {
		body.WriteString(fmt.Sprintf("<p>Due: %s</p>", task.DueDate.UTC().Format("Mon, 02 Jan 2006 15:04 MST")))
	}

	text := fmt.Sprintf("Reminder: %q is due %s.", task.Title, dueText)
	if task.Description != nil && *task.Description != "" {
		text += "\n\n" + *task.Description
	}

	return ports.EmailMessage{
		To:       to,
		Subject:  fmt.Sprintf("Reminder: %s is due %s", task.Title, dueText),
		HTMLBody: body.String(),
		TextBody: text,
	}
}

// DueText renders the human-readable distance to the due date:
// overdue, minutes under an hour, hours under a day, days otherwise.
func DueText(minutesUntilDue float64) string {
	switch {
	case minutesUntilDue < 0:
		return "overdue"
	case minutesUntilDue < 60:
		return fmt.Sprintf("in %d minutes", int(minutesUntilDue))
	case minutesUntilDue < 1440:
		return fmt.Sprintf("in %d hours", int(minutesUntilDue/60))
	default:
		return fmt.Sprintf("in %d days", int(minutesUntilDue/1440))
	}
}

// NormalizePhone strips everything except digits and a leading plus,
// then applies the default country code to bare 10-digit numbers. A
// best-effort heuristic, not validation: malformed numbers pass through
// to the sink, whose failure is isolated per channel.
func NormalizePhone(raw, defaultCountryCode string) string {
	hasPlus := strings.HasPrefix(strings.TrimSpace(raw), "+")

	var digits strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	number := digits.String()

	switch {
	case hasPlus:
		return "+" + number
	case len(number) == 10 && defaultCountryCode != "":
		return defaultCountryCode + number
	default:
		return "+" + number
	}
}
