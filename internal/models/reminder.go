package models

import (
	"time"

	"github.com/google/uuid"
)

// Reminder is a one-shot scheduled notification tied to exactly one task.
// The delivered flag is monotonic: once true the reminder is terminal and
// must never fire again. Rows are never physically deleted.
type Reminder struct {
	ID          uuid.UUID  `json:"id"`
	TaskID      uuid.UUID  `json:"task_id"`
	RecipientID int64      `json:"recipient_id"`
	RemindAt    time.Time  `json:"remind_at"`
	Delivered   bool       `json:"delivered"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
