package database

import (
	"context"
	"time"

	"github.com/Tih000/max/internal/models"
	"github.com/google/uuid"
)

// TaskRepositoryInterface defines task repository operations.
// Interfaces live here so consumers can be tested against mocks.
type TaskRepositoryInterface interface {
	Upsert(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	ListByChat(ctx context.Context, chatID int64, status *models.TaskStatus) ([]*models.Task, error)
	ListDueBetween(ctx context.Context, chatID int64, from, to time.Time) ([]*models.Task, error)
	SetStatus(ctx context.Context, id uuid.UUID, status models.TaskStatus) error
}

// ReminderRepositoryInterface defines reminder repository operations
type ReminderRepositoryInterface interface {
	Create(ctx context.Context, reminder *models.Reminder) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Reminder, error)
	FindDueUndelivered(ctx context.Context, sinceGrace time.Time) ([]*models.Reminder, []*models.Task, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error)
}

// MessageRepositoryInterface defines message repository operations
type MessageRepositoryInterface interface {
	Save(ctx context.Context, msg *models.ChatMessage) error
	GetByID(ctx context.Context, id string) (*models.ChatMessage, error)
	ListRecent(ctx context.Context, chatID int64, limit int) ([]*models.ChatMessage, error)
	ListBetween(ctx context.Context, chatID int64, from, to time.Time) ([]*models.ChatMessage, error)
}

// ChatRepositoryInterface defines chat and membership repository operations
type ChatRepositoryInterface interface {
	Upsert(ctx context.Context, chat *models.Chat) error
	ListChats(ctx context.Context) ([]*models.Chat, error)
	ReplaceMembers(ctx context.Context, chatID int64, members []*models.ChatMember) error
	ListMembers(ctx context.Context, chatID int64) ([]*models.ChatMember, error)
	GetMember(ctx context.Context, chatID, userID int64) (*models.ChatMember, error)
}

// DigestPreferenceRepositoryInterface defines digest preference repository operations
type DigestPreferenceRepositoryInterface interface {
	Set(ctx context.Context, pref *models.DigestPreference) error
	Delete(ctx context.Context, chatID, userID int64) error
	FindWithRecurrence(ctx context.Context) ([]*models.DigestPreference, error)
}

// Ensure concrete types implement the interfaces
var (
	_ TaskRepositoryInterface             = (*TaskRepository)(nil)
	_ ReminderRepositoryInterface         = (*ReminderRepository)(nil)
	_ MessageRepositoryInterface          = (*MessageRepository)(nil)
	_ ChatRepositoryInterface             = (*ChatRepository)(nil)
	_ DigestPreferenceRepositoryInterface = (*DigestPreferenceRepository)(nil)
)
