package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taskpilot/core/internal/domain/entities"
)

// TaskService interface for task management operations
type TaskService interface {
	CreateTask(ctx context.Context, req CreateTaskRequest) (*entities.Task, error)
	GetTask(ctx context.Context, id uuid.UUID) (*entities.Task, error)
	UpdateTask(ctx context.Context, id uuid.UUID, req UpdateTaskRequest) (*entities.Task, error)
	DeleteTask(ctx context.Context, id uuid.UUID) error
	ListTasks(ctx context.Context, filter TaskFilter) ([]*entities.Task, int, error)
	ToggleTaskStatus(ctx context.Context, id uuid.UUID) (*entities.Task, error)
	ToggleNotifications(ctx context.Context, id uuid.UUID) (*entities.Task, error)
}

// EmailMessage is the payload handed to the email sink.
type EmailMessage struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// SMSMessage is the payload handed to the SMS sink.
type SMSMessage struct {
	To   string
	From string
	Body string
}

// EmailSender is the outbound email sink. Implementations report
// failure by returning an error; they must not retry internally.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// SMSSender is the outbound SMS sink.
type SMSSender interface {
	Send(ctx context.Context, msg SMSMessage) error
}

// Clock abstracts time.Now for deterministic scheduler tests.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// Request/Response Types

// Task related types
type CreateTaskRequest struct {
	Title                string                     `json:"title" validate:"required,max=500"`
	Description          *string                    `json:"description" validate:"omitempty,max=2000"`
	Priority             entities.Priority          `json:"priority" validate:"omitempty"`
	DueDate              *time.Time                 `json:"due_date"`
	IsRecurring          bool                       `json:"is_recurring"`
	RecurrencePattern    entities.RecurrencePattern `json:"recurrence_pattern"`
	RecurrenceEndDate    *time.Time                 `json:"recurrence_end_date"`
	NotificationsEnabled *bool                      `json:"notifications_enabled"`
}

type UpdateTaskRequest struct {
	Title                *string                     `json:"title" validate:"omitempty,max=500"`
	Description          *string                     `json:"description" validate:"omitempty,max=2000"`
	Status               *entities.TaskStatus        `json:"status" validate:"omitempty"`
	Priority             *entities.Priority          `json:"priority" validate:"omitempty"`
	DueDate              *time.Time                  `json:"due_date"`
	IsRecurring          *bool                       `json:"is_recurring"`
	RecurrencePattern    *entities.RecurrencePattern `json:"recurrence_pattern"`
	RecurrenceEndDate    *time.Time                  `json:"recurrence_end_date"`
	NotificationsEnabled *bool                       `json:"notifications_enabled"`
}

// UpdateSettingsRequest replaces the singleton notification settings.
type UpdateSettingsRequest struct {
	Email              string `json:"email" validate:"omitempty,email"`
	Phone              string `json:"phone" validate:"omitempty,max=32"`
	EmailNotifications bool   `json:"email_notifications"`
	SMSNotifications   bool   `json:"sms_notifications"`
	ReminderTimes      []int  `json:"reminder_times" validate:"dive,min=0"`
}

// TriggerRequest is the body of the reminder trigger endpoint. Settings
// overrides the stored/default configuration for this tick only.
type TriggerRequest struct {
	TestMode bool                           `json:"testMode"`
	SendNow  bool                           `json:"sendNow"`
	Settings *entities.NotificationSettings `json:"settings"`
}

// TriggerResponse summarizes one reminder tick.
type TriggerResponse struct {
	TasksChecked      int    `json:"tasksChecked"`
	NotificationsSent int    `json:"notificationsSent"`
	Message           string `json:"message"`
}

// Response types for pagination and common structures
type PaginatedResponse[T any] struct {
	Data   []T `json:"data"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
