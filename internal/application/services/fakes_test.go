package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskpilot/core/internal/domain/entities"
	"github.com/taskpilot/core/internal/ports"
)

// fakeTaskRepo is an in-memory ports.TaskRepository.
type fakeTaskRepo struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*entities.Task

	listErr   error
	existsErr error
	createErr error
}

func newFakeTaskRepo(tasks ...*entities.Task) *fakeTaskRepo {
	r := &fakeTaskRepo{tasks: make(map[uuid.UUID]*entities.Task)}
	for _, t := range tasks {
		copied := *t
		r.tasks[t.ID] = &copied
	}
	return r
}

func (r *fakeTaskRepo) get(id uuid.UUID) *entities.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[id]; ok {
		copied := *t
		return &copied
	}
	return nil
}

func (r *fakeTaskRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

func (r *fakeTaskRepo) Create(ctx context.Context, task *entities.Task) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *task
	copied.CreatedAt = time.Now()
	copied.UpdatedAt = copied.CreatedAt
	r.tasks[task.ID] = &copied
	return nil
}

func (r *fakeTaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.Task, error) {
	if t := r.get(id); t != nil {
		return t, nil
	}
	return nil, entities.ErrTaskNotFound
}

func (r *fakeTaskRepo) Update(ctx context.Context, task *entities.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[task.ID]; !ok {
		return entities.ErrTaskNotFound
	}
	copied := *task
	copied.UpdatedAt = time.Now()
	r.tasks[task.ID] = &copied
	return nil
}

func (r *fakeTaskRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return entities.ErrTaskNotFound
	}
	delete(r.tasks, id)
	return nil
}

func (r *fakeTaskRepo) List(ctx context.Context, filter ports.TaskFilter) ([]*entities.Task, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.Task
	for _, t := range r.tasks {
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.Priority != nil && t.Priority != *filter.Priority {
			continue
		}
		if filter.IsRecurring != nil && t.IsRecurring != *filter.IsRecurring {
			continue
		}
		if filter.DueDateSet != nil && (t.DueDate != nil) != *filter.DueDateSet {
			continue
		}
		copied := *t
		out = append(out, &copied)
	}
	return out, nil
}

func (r *fakeTaskRepo) Count(ctx context.Context, filter ports.TaskFilter) (int64, error) {
	tasks, err := r.List(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(tasks)), nil
}

func (r *fakeTaskRepo) ListDueTemplates(ctx context.Context, now time.Time) ([]*entities.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.Task
	for _, t := range r.tasks {
		if t.IsRecurring && t.NextDueDate != nil && !t.NextDueDate.After(now) {
			copied := *t
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeTaskRepo) InstanceExists(ctx context.Context, parentTaskID uuid.UUID, dueDate time.Time) (bool, error) {
	if r.existsErr != nil {
		return false, r.existsErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.instanceExistsLocked(parentTaskID, dueDate), nil
}

func (r *fakeTaskRepo) instanceExistsLocked(parentTaskID uuid.UUID, dueDate time.Time) bool {
	for _, t := range r.tasks {
		if t.ParentTaskID != nil && *t.ParentTaskID == parentTaskID &&
			t.DueDate != nil && t.DueDate.Equal(dueDate) {
			return true
		}
	}
	return false
}

func (r *fakeTaskRepo) CreateSuccessor(ctx context.Context, successor *entities.Task, predecessorID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if successor.ParentTaskID != nil && successor.DueDate != nil &&
		r.instanceExistsLocked(*successor.ParentTaskID, *successor.DueDate) {
		return entities.ErrDuplicateInstance
	}
	copied := *successor
	r.tasks[successor.ID] = &copied
	if pred, ok := r.tasks[predecessorID]; ok {
		pred.NextDueDate = nil
	}
	return nil
}

// fakeLedger is an in-memory ports.NotificationLogRepository.
type fakeLedger struct {
	mu      sync.Mutex
	entries map[string]*entities.NotificationRecord

	existsErr error
	upsertErr error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{entries: make(map[string]*entities.NotificationRecord)}
}

func ledgerKey(taskID uuid.UUID, reminderMinutes int) string {
	return fmt.Sprintf("%s:%d", taskID, reminderMinutes)
}

func (l *fakeLedger) record(taskID uuid.UUID, reminderMinutes int, types ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[ledgerKey(taskID, reminderMinutes)] = &entities.NotificationRecord{
		TaskID:            taskID,
		ReminderMinutes:   reminderMinutes,
		NotificationTypes: types,
		SentAt:            time.Now(),
	}
}

func (l *fakeLedger) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *fakeLedger) Exists(ctx context.Context, taskID uuid.UUID, reminderMinutes int) (bool, error) {
	if l.existsErr != nil {
		return false, l.existsErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[ledgerKey(taskID, reminderMinutes)]
	return ok, nil
}

func (l *fakeLedger) Upsert(ctx context.Context, record *entities.NotificationRecord) error {
	if l.upsertErr != nil {
		return l.upsertErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	copied := *record
	copied.SentAt = time.Now()
	l.entries[ledgerKey(record.TaskID, record.ReminderMinutes)] = &copied
	return nil
}

// fakeSettingsRepo is an in-memory ports.SettingsRepository.
type fakeSettingsRepo struct {
	mu       sync.Mutex
	settings *entities.NotificationSettings
}

func (r *fakeSettingsRepo) Get(ctx context.Context) (*entities.NotificationSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settings == nil {
		return nil, entities.ErrSettingsNotFound
	}
	copied := *r.settings
	copied.ReminderTimes = append([]int{}, r.settings.ReminderTimes...)
	return &copied, nil
}

func (r *fakeSettingsRepo) Save(ctx context.Context, settings *entities.NotificationSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *settings
	copied.UpdatedAt = time.Now()
	r.settings = &copied
	return nil
}

// fakeEmailSender records sent emails and can fail on demand.
type fakeEmailSender struct {
	mu   sync.Mutex
	sent []ports.EmailMessage
	err  error
}

func (s *fakeEmailSender) Send(ctx context.Context, msg ports.EmailMessage) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeEmailSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// fakeSMSSender records sent SMS messages and can fail on demand.
type fakeSMSSender struct {
	mu   sync.Mutex
	sent []ports.SMSMessage
	err  error
}

func (s *fakeSMSSender) Send(ctx context.Context, msg ports.SMSMessage) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeSMSSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}
