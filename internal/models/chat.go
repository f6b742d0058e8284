package models

import "time"

// Chat is a Max chat the bot is a member of
type Chat struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Type      string    `json:"type"` // "dialog" or "chat"
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatMember is a user known to belong to a chat, refreshed by the
// periodic membership sync
type ChatMember struct {
	ChatID   int64     `json:"chat_id"`
	UserID   int64     `json:"user_id"`
	Name     string    `json:"name"`
	IsAdmin  bool      `json:"is_admin"`
	SyncedAt time.Time `json:"synced_at"`
}
