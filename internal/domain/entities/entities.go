package entities

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrTaskNotFound        = errors.New("task not found")
	ErrSettingsNotFound    = errors.New("notification settings not found")
	ErrInvalidPattern      = errors.New("invalid recurrence pattern")
	ErrNoMatchingDay       = errors.New("no matching weekday within scan bound")
	ErrNoContactConfigured = errors.New("no email or phone configured for notifications")
	ErrDuplicateInstance   = errors.New("recurring instance already exists for this due date")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrInvalidPriority     = errors.New("invalid priority")
)

// Enums and types
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type RecurrenceType string

const (
	RecurrenceDaily   RecurrenceType = "daily"
	RecurrenceWeekly  RecurrenceType = "weekly"
	RecurrenceMonthly RecurrenceType = "monthly"
	RecurrenceYearly  RecurrenceType = "yearly"
	RecurrenceCustom  RecurrenceType = "custom"
)

// Notification channel names recorded in the ledger
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// RecurrencePattern describes how a recurring task repeats. The zero
// value (empty Type) means the task does not recur. Stored as JSONB.
type RecurrencePattern struct {
	Type       RecurrenceType `json:"type"`
	Interval   int            `json:"interval"`
	Days       []string       `json:"days,omitempty"`
	DayOfMonth int            `json:"day_of_month,omitempty"`
}

// IsZero reports whether no pattern is set.
func (p RecurrencePattern) IsZero() bool {
	return p.Type == ""
}

// Value implements driver.Valuer for JSONB storage.
func (p RecurrencePattern) Value() (driver.Value, error) {
	if p.IsZero() {
		return nil, nil
	}
	type alias RecurrencePattern
	return json.Marshal(alias(p))
}

// Scan implements sql.Scanner.
func (p *RecurrencePattern) Scan(src interface{}) error {
	if src == nil {
		*p = RecurrencePattern{}
		return nil
	}

	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into RecurrencePattern", src)
	}

	return json.Unmarshal(data, p)
}

// MarshalJSON emits null for the zero pattern so API clients see the
// field as absent rather than an empty object.
func (p RecurrencePattern) MarshalJSON() ([]byte, error) {
	if p.IsZero() {
		return []byte("null"), nil
	}
	type alias RecurrencePattern
	return json.Marshal(alias(p))
}

// UnmarshalJSON accepts null as the zero pattern.
func (p *RecurrencePattern) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = RecurrencePattern{}
		return nil
	}
	type alias RecurrencePattern
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*p = RecurrencePattern(a)
	return nil
}

// Task represents a task in the system. A recurring task with a
// populated NextDueDate is the head of its lineage chain; instances
// generated from it point back via ParentTaskID.
type Task struct {
	ID                   uuid.UUID         `json:"id" db:"id"`
	Title                string            `json:"title" db:"title"`
	Description          *string           `json:"description" db:"description"`
	Status               TaskStatus        `json:"status" db:"status"`
	Priority             Priority          `json:"priority" db:"priority"`
	DueDate              *time.Time        `json:"due_date" db:"due_date"`
	IsRecurring          bool              `json:"is_recurring" db:"is_recurring"`
	RecurrencePattern    RecurrencePattern `json:"recurrence_pattern" db:"recurrence_pattern"`
	NextDueDate          *time.Time        `json:"next_due_date" db:"next_due_date"`
	RecurrenceEndDate    *time.Time        `json:"recurrence_end_date" db:"recurrence_end_date"`
	ParentTaskID         *uuid.UUID        `json:"parent_task_id" db:"parent_task_id"`
	NotificationsEnabled bool              `json:"notifications_enabled" db:"notifications_enabled"`
	CreatedAt            time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at" db:"updated_at"`
}

// LineageID returns the id shared by every task in a recurrence chain:
// the original template's id, carried forward through ParentTaskID.
func (t *Task) LineageID() uuid.UUID {
	if t.ParentTaskID != nil {
		return *t.ParentTaskID
	}
	return t.ID
}

// IsCompleted reports whether the task is done.
func (t *Task) IsCompleted() bool {
	return t.Status == TaskStatusCompleted
}

// IsOverdue reports whether the task's due date has passed.
func (t *Task) IsOverdue(now time.Time) bool {
	if t.DueDate == nil {
		return false
	}
	return now.After(*t.DueDate) && t.Status != TaskStatusCompleted
}

// MinutesUntilDue returns the signed distance to the due date in
// minutes. Negative means overdue. Returns false if no due date is set.
func (t *Task) MinutesUntilDue(now time.Time) (float64, bool) {
	if t.DueDate == nil {
		return 0, false
	}
	return t.DueDate.Sub(now).Minutes(), true
}

// NotificationSettings is the per-deployment contact configuration
// threaded into the scheduler and dispatcher. ReminderTimes are
// minutes-before-due lead times; 0 means "at due time".
type NotificationSettings struct {
	Email              string    `json:"email" db:"email"`
	Phone              string    `json:"phone" db:"phone"`
	EmailNotifications bool      `json:"email_notifications" db:"email_notifications"`
	SMSNotifications   bool      `json:"sms_notifications" db:"sms_notifications"`
	ReminderTimes      []int     `json:"reminder_times"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// HasContact reports whether at least one contact target is set.
func (s *NotificationSettings) HasContact() bool {
	return s.Email != "" || s.Phone != ""
}

// SortReminderTimes orders lead times descending, the display order
// used everywhere (24h before 1h before 0).
func (s *NotificationSettings) SortReminderTimes() {
	sort.Sort(sort.Reverse(sort.IntSlice(s.ReminderTimes)))
}

// NotificationRecord is one entry in the dedup ledger, keyed on
// (TaskID, ReminderMinutes). NotificationTypes lists the channels that
// succeeded when the reminder was first sent.
type NotificationRecord struct {
	TaskID            uuid.UUID `json:"task_id" db:"task_id"`
	ReminderMinutes   int       `json:"reminder_minutes" db:"reminder_minutes"`
	NotificationTypes []string  `json:"notification_types"`
	SentAt            time.Time `json:"sent_at" db:"sent_at"`
}

// Utility methods
func (ts TaskStatus) IsValid() bool {
	switch ts {
	case TaskStatusPending, TaskStatusCompleted:
		return true
	default:
		return false
	}
}

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

func (rt RecurrenceType) IsValid() bool {
	switch rt {
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly, RecurrenceYearly, RecurrenceCustom:
		return true
	default:
		return false
	}
}
