package models

import "time"

// DigestPreference declares that a user wants a recurring digest for a chat.
// CronSpec is a standard 5-field cron expression; an empty spec means the
// preference is disabled and no job should be live for the pair.
type DigestPreference struct {
	ChatID    int64     `json:"chat_id"`
	UserID    int64     `json:"user_id"`
	CronSpec  string    `json:"cron_spec"`
	UpdatedAt time.Time `json:"updated_at"`
}
