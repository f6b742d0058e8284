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

// ReminderRepository handles reminder database operations
type ReminderRepository struct {
	db *DB
}

// NewReminderRepository creates a new reminder repository
func NewReminderRepository(db *DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

// Create persists a new undelivered reminder
func (r *ReminderRepository) Create(ctx context.Context, reminder *models.Reminder) error {
	query := `
		INSERT INTO reminders (id, task_id, recipient_id, remind_at, delivered, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		reminder.ID,
		reminder.TaskID,
		reminder.RecipientID,
		reminder.RemindAt,
		time.Now(),
	).Scan(&reminder.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create reminder: %w", err)
	}

	return nil
}

// GetByID retrieves a reminder by ID
func (r *ReminderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Reminder, error) {
	reminder := &models.Reminder{}
	var deliveredAt sql.NullTime

	query := `
		SELECT id, task_id, recipient_id, remind_at, delivered, delivered_at, created_at
		FROM reminders
		WHERE id = $1
	`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&reminder.ID,
		&reminder.TaskID,
		&reminder.RecipientID,
		&reminder.RemindAt,
		&reminder.Delivered,
		&deliveredAt,
		&reminder.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reminder %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}

	if deliveredAt.Valid {
		reminder.DeliveredAt = &deliveredAt.Time
	}

	return reminder, nil
}

// FindDueUndelivered returns undelivered reminders with remind_at at or after
// sinceGrace, joined with their owning tasks. This is the recovery sweep
// query: anything older than sinceGrace is considered missed and is left
// alone.
func (r *ReminderRepository) FindDueUndelivered(ctx context.Context, sinceGrace time.Time) ([]*models.Reminder, []*models.Task, error) {
	query := `
		SELECT r.id, r.task_id, r.recipient_id, r.remind_at, r.delivered, r.delivered_at, r.created_at,
			t.id, t.chat_id, t.title, t.description, t.due_at, t.assignee_id, t.assignee_name,
			t.message_id, t.creator_id, t.creator_name, t.status, t.priority, t.created_at, t.updated_at
		FROM reminders r
		JOIN tasks t ON t.id = r.task_id
		WHERE NOT r.delivered AND r.remind_at >= $1
		ORDER BY r.remind_at
	`

	rows, err := r.db.QueryContext(ctx, query, sinceGrace)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query due reminders: %w", err)
	}
	defer rows.Close()

	var reminders []*models.Reminder
	var tasks []*models.Task
	for rows.Next() {
		reminder := &models.Reminder{}
		task := &models.Task{}
		var deliveredAt, dueAt sql.NullTime
		var assigneeID sql.NullInt64

		err := rows.Scan(
			&reminder.ID,
			&reminder.TaskID,
			&reminder.RecipientID,
			&reminder.RemindAt,
			&reminder.Delivered,
			&deliveredAt,
			&reminder.CreatedAt,
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
			return nil, nil, fmt.Errorf("failed to scan due reminder: %w", err)
		}

		if deliveredAt.Valid {
			reminder.DeliveredAt = &deliveredAt.Time
		}
		if dueAt.Valid {
			task.DueAt = &dueAt.Time
		}
		if assigneeID.Valid {
			task.AssigneeID = &assigneeID.Int64
		}

		reminders = append(reminders, reminder)
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating due reminders: %w", err)
	}

	return reminders, tasks, nil
}

// MarkDelivered flips the delivered flag. The WHERE clause makes the write a
// compare-and-set: only a still-undelivered row is updated, so concurrent
// deliverers cannot both win. Returns true if this call did the transition.
// Calling it on an already-delivered or unknown reminder is a no-op.
func (r *ReminderRepository) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE reminders
		SET delivered = TRUE, delivered_at = $2
		WHERE id = $1 AND NOT delivered
	`

	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to mark reminder delivered: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected > 0, nil
}
