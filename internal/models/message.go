package models

import "time"

// ChatMessage is a persisted copy of a message received from the Max chat API.
// The ID is the platform-assigned message identifier (mid).
type ChatMessage struct {
	ID         string    `json:"id"`
	ChatID     int64     `json:"chat_id"`
	SenderID   int64     `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Text       string    `json:"text"`
	SentAt     time.Time `json:"sent_at"`
	CreatedAt  time.Time `json:"created_at"`
}
