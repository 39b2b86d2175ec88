package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/taskpilot/core/internal/domain/entities"
	"github.com/taskpilot/core/internal/infrastructure/database"
	"github.com/taskpilot/core/internal/ports"
)

const taskColumns = `id, title, description, status, priority, due_date, is_recurring,
	recurrence_pattern, next_due_date, recurrence_end_date, parent_task_id,
	notifications_enabled, created_at, updated_at`

// TaskRepositoryImpl implements the TaskRepository interface
type TaskRepositoryImpl struct {
	db *database.DB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *database.DB) ports.TaskRepository {
	return &TaskRepositoryImpl{db: db}
}

func (r *TaskRepositoryImpl) Create(ctx context.Context, task *entities.Task) error {
	query := `
		INSERT INTO tasks (id, title, description, status, priority, due_date, is_recurring,
			recurrence_pattern, next_due_date, recurrence_end_date, parent_task_id,
			notifications_enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`

	err := r.db.DB.QueryRowContext(ctx, query,
		task.ID, task.Title, task.Description, task.Status, task.Priority, task.DueDate,
		task.IsRecurring, task.RecurrencePattern, task.NextDueDate, task.RecurrenceEndDate,
		task.ParentTaskID, task.NotificationsEnabled,
	).Scan(&task.CreatedAt, &task.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	return nil
}

func (r *TaskRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*entities.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE id = $1`, taskColumns)

	var task entities.Task
	err := r.db.DB.GetContext(ctx, &task, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}

	return &task, nil
}

func (r *TaskRepositoryImpl) Update(ctx context.Context, task *entities.Task) error {
	query := `
		UPDATE tasks
		SET title = $2, description = $3, status = $4, priority = $5, due_date = $6,
			is_recurring = $7, recurrence_pattern = $8, next_due_date = $9,
			recurrence_end_date = $10, parent_task_id = $11, notifications_enabled = $12,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.DB.QueryRowContext(ctx, query,
		task.ID, task.Title, task.Description, task.Status, task.Priority, task.DueDate,
		task.IsRecurring, task.RecurrencePattern, task.NextDueDate, task.RecurrenceEndDate,
		task.ParentTaskID, task.NotificationsEnabled,
	).Scan(&task.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entities.ErrTaskNotFound
		}
		return fmt.Errorf("update task: %w", err)
	}

	return nil
}

func (r *TaskRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if affected == 0 {
		return entities.ErrTaskNotFound
	}

	return nil
}

func (r *TaskRepositoryImpl) List(ctx context.Context, filter ports.TaskFilter) ([]*entities.Task, error) {
	where, args := buildTaskFilter(filter)

	query := fmt.Sprintf(`SELECT %s FROM tasks %s ORDER BY due_date ASC NULLS LAST, created_at ASC`,
		taskColumns, where)

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	tasks := []*entities.Task{}
	if err := r.db.DB.SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	return tasks, nil
}

func (r *TaskRepositoryImpl) Count(ctx context.Context, filter ports.TaskFilter) (int64, error) {
	where, args := buildTaskFilter(filter)

	var count int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM tasks %s`, where)
	if err := r.db.DB.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}

	return count, nil
}

func (r *TaskRepositoryImpl) ListDueTemplates(ctx context.Context, now time.Time) ([]*entities.Task, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM tasks
		WHERE is_recurring = TRUE AND next_due_date IS NOT NULL AND next_due_date <= $1
		ORDER BY next_due_date ASC`, taskColumns)

	tasks := []*entities.Task{}
	if err := r.db.DB.SelectContext(ctx, &tasks, query, now); err != nil {
		return nil, fmt.Errorf("list due templates: %w", err)
	}

	return tasks, nil
}

func (r *TaskRepositoryImpl) InstanceExists(ctx context.Context, parentTaskID uuid.UUID, dueDate time.Time) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM tasks WHERE parent_task_id = $1 AND due_date = $2)`

	var exists bool
	if err := r.db.DB.GetContext(ctx, &exists, query, parentTaskID, dueDate); err != nil {
		return false, fmt.Errorf("check instance exists: %w", err)
	}

	return exists, nil
}

func (r *TaskRepositoryImpl) CreateSuccessor(ctx context.Context, successor *entities.Task, predecessorID uuid.UUID) error {
	err := r.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		insert := `
			INSERT INTO tasks (id, title, description, status, priority, due_date, is_recurring,
				recurrence_pattern, next_due_date, recurrence_end_date, parent_task_id,
				notifications_enabled)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING created_at, updated_at`

		err := tx.QueryRowContext(ctx, insert,
			successor.ID, successor.Title, successor.Description, successor.Status,
			successor.Priority, successor.DueDate, successor.IsRecurring,
			successor.RecurrencePattern, successor.NextDueDate, successor.RecurrenceEndDate,
			successor.ParentTaskID, successor.NotificationsEnabled,
		).Scan(&successor.CreatedAt, &successor.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert successor: %w", err)
		}

		// The predecessor is no longer the head of the chain.
		update := `UPDATE tasks SET next_due_date = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
		if _, err := tx.ExecContext(ctx, update, predecessorID); err != nil {
			return fmt.Errorf("clear predecessor next due date: %w", err)
		}

		return nil
	})

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return entities.ErrDuplicateInstance
		}
		return fmt.Errorf("create successor: %w", err)
	}

	return nil
}

func buildTaskFilter(filter ports.TaskFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	arg := 1

	add := func(condition string, value interface{}) {
		conditions = append(conditions, fmt.Sprintf(condition, arg))
		args = append(args, value)
		arg++
	}

	if filter.Status != nil {
		add("status = $%d", *filter.Status)
	}
	if filter.Priority != nil {
		add("priority = $%d", *filter.Priority)
	}
	if filter.IsRecurring != nil {
		add("is_recurring = $%d", *filter.IsRecurring)
	}
	if filter.ParentTaskID != nil {
		add("parent_task_id = $%d", *filter.ParentTaskID)
	}
	if filter.DueBefore != nil {
		add("due_date <= $%d", *filter.DueBefore)
	}
	if filter.DueAfter != nil {
		add("due_date >= $%d", *filter.DueAfter)
	}
	if filter.DueDateSet != nil {
		if *filter.DueDateSet {
			conditions = append(conditions, "due_date IS NOT NULL")
		} else {
			conditions = append(conditions, "due_date IS NULL")
		}
	}

	if len(conditions) == 0 {
		return "", args
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}
