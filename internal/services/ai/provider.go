package ai

import (
	"context"
	"time"

	"github.com/Tih000/max/internal/models"
)

// ExtractedTask is one task the model found in a chat message
type ExtractedTask struct {
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	DueAt        *time.Time `json:"-"`
	AssigneeName string     `json:"assignee,omitempty"`
	Priority     string     `json:"priority,omitempty"`
}

// Provider is the interface for LLM backends
type Provider interface {
	// ExtractTasks finds tasks and deadlines in a chat message. An empty
	// slice means the message contains no actionable work.
	ExtractTasks(ctx context.Context, msg *models.ChatMessage) ([]ExtractedTask, error)

	// AnswerQuestion answers a natural-language question using recent chat
	// history as retrieved context
	AnswerQuestion(ctx context.Context, question string, history []*models.ChatMessage) (string, error)

	// SummarizeDigest condenses a day of tasks and messages into digest text
	SummarizeDigest(ctx context.Context, chatTitle string, tasks []*models.Task, msgs []*models.ChatMessage) (string, error)
}
