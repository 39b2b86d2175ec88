package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taskpilot/core/internal/domain/entities"
)

// TaskRepository defines the interface for task data operations
type TaskRepository interface {
	Create(ctx context.Context, task *entities.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Task, error)
	Update(ctx context.Context, task *entities.Task) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter TaskFilter) ([]*entities.Task, error)
	Count(ctx context.Context, filter TaskFilter) (int64, error)

	// ListDueTemplates returns recurring tasks whose next_due_date has
	// arrived (is <= now), i.e. chain heads ready for propagation.
	ListDueTemplates(ctx context.Context, now time.Time) ([]*entities.Task, error)

	// InstanceExists reports whether an instance with the given lineage
	// id and due date already exists. Backstops the propagator's
	// idempotence invariant alongside the store's unique index.
	InstanceExists(ctx context.Context, parentTaskID uuid.UUID, dueDate time.Time) (bool, error)

	// CreateSuccessor inserts the successor instance and clears the
	// predecessor's next_due_date in a single transaction, so neither
	// write lands without the other.
	CreateSuccessor(ctx context.Context, successor *entities.Task, predecessorID uuid.UUID) error
}

// NotificationLogRepository is the dedup ledger of already-sent
// (task, lead-time) reminders. Entries are append-only.
type NotificationLogRepository interface {
	Exists(ctx context.Context, taskID uuid.UUID, reminderMinutes int) (bool, error)
	Upsert(ctx context.Context, record *entities.NotificationRecord) error
}

// SettingsRepository persists the singleton notification settings row.
type SettingsRepository interface {
	Get(ctx context.Context) (*entities.NotificationSettings, error)
	Save(ctx context.Context, settings *entities.NotificationSettings) error
}

// TaskFilter narrows task list queries. Nil pointer fields are not
// applied. DueDateSet filters on nullability of due_date.
type TaskFilter struct {
	Status       *entities.TaskStatus
	Priority     *entities.Priority
	IsRecurring  *bool
	ParentTaskID *uuid.UUID
	DueDateSet   *bool
	DueBefore    *time.Time
	DueAfter     *time.Time
	Limit        int
	Offset       int
}
