package database

import "fmt"

// Migrate creates the schema if it does not exist. Statements are ordered so
// foreign keys resolve; each is idempotent.
func (db *DB) Migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS chats (
			id BIGINT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL DEFAULT 'chat',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS chat_members (
			chat_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			synced_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (chat_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			chat_id BIGINT NOT NULL,
			sender_id BIGINT NOT NULL,
			sender_name TEXT NOT NULL DEFAULT '',
			text TEXT NOT NULL,
			sent_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat_sent ON messages (chat_id, sent_at DESC)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id UUID PRIMARY KEY,
			chat_id BIGINT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			due_at TIMESTAMPTZ,
			assignee_id BIGINT,
			assignee_name TEXT NOT NULL DEFAULT '',
			message_id TEXT NOT NULL,
			creator_id BIGINT NOT NULL,
			creator_name TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'open',
			priority TEXT NOT NULL DEFAULT 'medium',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (message_id, title)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_chat_status ON tasks (chat_id, status)`,
		`CREATE TABLE IF NOT EXISTS reminders (
			id UUID PRIMARY KEY,
			task_id UUID NOT NULL REFERENCES tasks(id),
			recipient_id BIGINT NOT NULL,
			remind_at TIMESTAMPTZ NOT NULL,
			delivered BOOLEAN NOT NULL DEFAULT FALSE,
			delivered_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_pending ON reminders (remind_at) WHERE NOT delivered`,
		`CREATE TABLE IF NOT EXISTS digest_preferences (
			chat_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			cron_spec TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (chat_id, user_id)
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	return nil
}
