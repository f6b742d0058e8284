package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle state of a task
type TaskStatus string

const (
	TaskStatusOpen      TaskStatus = "open"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// TaskPriority represents how urgent a task is
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// Task is a unit of work extracted from a chat message.
// Tasks are uniquely keyed by (message_id, title) so that re-running
// extraction over the same message never duplicates them.
type Task struct {
	ID           uuid.UUID    `json:"id"`
	ChatID       int64        `json:"chat_id"`
	Title        string       `json:"title"`
	Description  string       `json:"description,omitempty"`
	DueAt        *time.Time   `json:"due_at,omitempty"`
	AssigneeID   *int64       `json:"assignee_id,omitempty"`
	AssigneeName string       `json:"assignee_name,omitempty"`
	MessageID    string       `json:"message_id"`
	CreatorID    int64        `json:"creator_id"`
	CreatorName  string       `json:"creator_name,omitempty"`
	Status       TaskStatus   `json:"status"`
	Priority     TaskPriority `json:"priority"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// IsOpen reports whether the task still needs doing
func (t *Task) IsOpen() bool {
	return t.Status == TaskStatusOpen
}
