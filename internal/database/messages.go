package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Tih000/max/internal/models"
)

// MessageRepository handles chat message database operations
type MessageRepository struct {
	db *DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Save persists an incoming message. Duplicate message IDs are ignored so a
// long-poll redelivery never fails the ingest pipeline.
func (r *MessageRepository) Save(ctx context.Context, msg *models.ChatMessage) error {
	query := `
		INSERT INTO messages (id, chat_id, sender_id, sender_name, text, sent_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query,
		msg.ID,
		msg.ChatID,
		msg.SenderID,
		msg.SenderName,
		msg.Text,
		msg.SentAt,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	return nil
}

// GetByID retrieves a message by its platform ID
func (r *MessageRepository) GetByID(ctx context.Context, id string) (*models.ChatMessage, error) {
	msg := &models.ChatMessage{}

	query := `
		SELECT id, chat_id, sender_id, sender_name, text, sent_at, created_at
		FROM messages
		WHERE id = $1
	`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&msg.ID,
		&msg.ChatID,
		&msg.SenderID,
		&msg.SenderName,
		&msg.Text,
		&msg.SentAt,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return msg, nil
}

// ListRecent returns the newest messages for a chat, oldest first, capped at
// limit. Used as retrieval context for question answering.
func (r *MessageRepository) ListRecent(ctx context.Context, chatID int64, limit int) ([]*models.ChatMessage, error) {
	query := `
		SELECT id, chat_id, sender_id, sender_name, text, sent_at, created_at
		FROM (
			SELECT id, chat_id, sender_id, sender_name, text, sent_at, created_at
			FROM messages
			WHERE chat_id = $1
			ORDER BY sent_at DESC
			LIMIT $2
		) recent
		ORDER BY sent_at
	`

	rows, err := r.db.QueryContext(ctx, query, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent messages: %w", err)
	}
	defer rows.Close()

	var msgs []*models.ChatMessage
	for rows.Next() {
		msg := &models.ChatMessage{}
		err := rows.Scan(
			&msg.ID,
			&msg.ChatID,
			&msg.SenderID,
			&msg.SenderName,
			&msg.Text,
			&msg.SentAt,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return msgs, nil
}

// ListBetween returns messages for a chat inside [from, to), oldest first.
// Used by the digest generator's day window.
func (r *MessageRepository) ListBetween(ctx context.Context, chatID int64, from, to time.Time) ([]*models.ChatMessage, error) {
	query := `
		SELECT id, chat_id, sender_id, sender_name, text, sent_at, created_at
		FROM messages
		WHERE chat_id = $1 AND sent_at >= $2 AND sent_at < $3
		ORDER BY sent_at
	`

	rows, err := r.db.QueryContext(ctx, query, chatID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var msgs []*models.ChatMessage
	for rows.Next() {
		msg := &models.ChatMessage{}
		err := rows.Scan(
			&msg.ID,
			&msg.ChatID,
			&msg.SenderID,
			&msg.SenderName,
			&msg.Text,
			&msg.SentAt,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return msgs, nil
}
