package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Tih000/max/internal/models"
)

// ChatRepository handles chat and membership database operations
type ChatRepository struct {
	db *DB
}

// NewChatRepository creates a new chat repository
func NewChatRepository(db *DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// Upsert records a chat the bot has seen
func (r *ChatRepository) Upsert(ctx context.Context, chat *models.Chat) error {
	query := `
		INSERT INTO chats (id, title, type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			type = EXCLUDED.type,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query, chat.ID, chat.Title, chat.Type, time.Now())
	if err != nil {
		return fmt.Errorf("failed to upsert chat: %w", err)
	}

	return nil
}

// ListChats returns all chats the bot knows about
func (r *ChatRepository) ListChats(ctx context.Context) ([]*models.Chat, error) {
	query := `SELECT id, title, type, created_at, updated_at FROM chats ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query chats: %w", err)
	}
	defer rows.Close()

	var chats []*models.Chat
	for rows.Next() {
		chat := &models.Chat{}
		if err := rows.Scan(&chat.ID, &chat.Title, &chat.Type, &chat.CreatedAt, &chat.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		chats = append(chats, chat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chats: %w", err)
	}

	return chats, nil
}

// ReplaceMembers replaces the membership set of a chat in one transaction.
// The membership sync calls this with the full list from the platform API.
func (r *ChatRepository) ReplaceMembers(ctx context.Context, chatID int64, members []*models.ChatMember) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_members WHERE chat_id = $1`, chatID); err != nil {
		return fmt.Errorf("failed to clear chat members: %w", err)
	}

	now := time.Now()
	for _, m := range members {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO chat_members (chat_id, user_id, name, is_admin, synced_at)
			VALUES ($1, $2, $3, $4, $5)
		`, chatID, m.UserID, m.Name, m.IsAdmin, now)
		if err != nil {
			return fmt.Errorf("failed to insert chat member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit membership update: %w", err)
	}

	return nil
}

// ListMembers returns the current membership set of a chat
func (r *ChatRepository) ListMembers(ctx context.Context, chatID int64) ([]*models.ChatMember, error) {
	query := `
		SELECT chat_id, user_id, name, is_admin, synced_at
		FROM chat_members
		WHERE chat_id = $1
		ORDER BY user_id
	`

	rows, err := r.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat members: %w", err)
	}
	defer rows.Close()

	var members []*models.ChatMember
	for rows.Next() {
		m := &models.ChatMember{}
		if err := rows.Scan(&m.ChatID, &m.UserID, &m.Name, &m.IsAdmin, &m.SyncedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat member: %w", err)
		}
		members = append(members, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat members: %w", err)
	}

	return members, nil
}

// GetMember returns a member of a chat, or ErrNotFound
func (r *ChatRepository) GetMember(ctx context.Context, chatID, userID int64) (*models.ChatMember, error) {
	member := &models.ChatMember{}

	query := `
		SELECT chat_id, user_id, name, is_admin, synced_at
		FROM chat_members
		WHERE chat_id = $1 AND user_id = $2
	`

	err := r.db.QueryRowContext(ctx, query, chatID, userID).Scan(
		&member.ChatID,
		&member.UserID,
		&member.Name,
		&member.IsAdmin,
		&member.SyncedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("member %d in chat %d: %w", userID, chatID, ErrNotFound)
	}

	return member, nil
}
