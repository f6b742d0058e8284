package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Tih000/max/internal/models"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// TaskRepository handles task database operations
type TaskRepository struct {
	db *DB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Upsert inserts a task or, when (message_id, title) already exists, updates
// the mutable fields of the existing row. The task's ID is replaced with the
// stored one so callers always end up holding the canonical row. A zero ID
// gets a fresh UUID; the id column has no default, and inserting uuid.Nil
// would collide on the primary key from the second task onward.
func (r *TaskRepository) Upsert(ctx context.Context, task *models.Task) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}

	query := `
		INSERT INTO tasks (id, chat_id, title, description, due_at, assignee_id, assignee_name,
			message_id, creator_id, creator_name, status, priority, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		ON CONFLICT (message_id, title) DO UPDATE SET
			description = EXCLUDED.description,
			due_at = EXCLUDED.due_at,
			assignee_id = EXCLUDED.assignee_id,
			assignee_name = EXCLUDED.assignee_name,
			priority = EXCLUDED.priority,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at
	`

	var assigneeID sql.NullInt64
	if task.AssigneeID != nil {
		assigneeID = sql.NullInt64{Int64: *task.AssigneeID, Valid: true}
	}
	var dueAt sql.NullTime
	if task.DueAt != nil {
		dueAt = sql.NullTime{Time: *task.DueAt, Valid: true}
	}

	now := time.Now()
	err := r.db.QueryRowContext(ctx, query,
		task.ID,
		task.ChatID,
		task.Title,
		task.Description,
		dueAt,
		assigneeID,
		task.AssigneeName,
		task.MessageID,
		task.CreatorID,
		task.CreatorName,
		task.Status,
		task.Priority,
		now,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert task: %w", err)
	}

	return nil
}

// GetByID retrieves a task by ID
func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	query := `
		SELECT id, chat_id, title, description, due_at, assignee_id, assignee_name,
			message_id, creator_id, creator_name, status, priority, created_at, updated_at
		FROM tasks
		WHERE id = $1
	`

	task, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return task, nil
}

// ListByChat retrieves tasks for a chat, optionally filtered by status
func (r *TaskRepository) ListByChat(ctx context.Context, chatID int64, status *models.TaskStatus) ([]*models.Task, error) {
	query := `
		SELECT id, chat_id, title, description, due_at, assignee_id, assignee_name,
			message_id, creator_id, creator_name, status, priority, created_at, updated_at
		FROM tasks
		WHERE chat_id = $1
	`
	args := []any{chatID}

	if status != nil {
		query += " AND status = $2"
		args = append(args, string(*status))
	}

	query += " ORDER BY due_at NULLS LAST, created_at"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

// ListDueBetween retrieves open tasks whose due date falls inside [from, to)
func (r *TaskRepository) ListDueBetween(ctx context.Context, chatID int64, from, to time.Time) ([]*models.Task, error) {
	query := `
		SELECT id, chat_id, title, description, due_at, assignee_id, assignee_name,
			message_id, creator_id, creator_name, status, priority, created_at, updated_at
		FROM tasks
		WHERE chat_id = $1 AND status = 'open' AND due_at >= $2 AND due_at < $3
		ORDER BY due_at
	`

	rows, err := r.db.QueryContext(ctx, query, chatID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query due tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating due tasks: %w", err)
	}

	return tasks, nil
}

// SetStatus updates a task's status
func (r *TaskRepository) SetStatus(ctx context.Context, id uuid.UUID, status models.TaskStatus) error {
	query := `UPDATE tasks SET status = $2, updated_at = $3 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, status, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}

	return nil
}

// scanner abstracts sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*models.Task, error) {
	task := &models.Task{}
	var dueAt sql.NullTime
	var assigneeID sql.NullInt64

	err := s.Scan(
		&task.ID,
		&task.ChatID,
		&task.Title,
		&task.Description,
		&dueAt,
		&assigneeID,
		&task.AssigneeName,
		&task.MessageID,
		&task.CreatorID,
		&task.CreatorName,
		&task.Status,
		&task.Priority,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if dueAt.Valid {
		task.DueAt = &dueAt.Time
	}
	if assigneeID.Valid {
		task.AssigneeID = &assigneeID.Int64
	}

	return task, nil
}
