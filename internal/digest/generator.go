package digest

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Tih000/max/internal/database"
	"github.com/Tih000/max/internal/logger"
	"github.com/Tih000/max/internal/models"
	"github.com/Tih000/max/internal/scheduler"
	"github.com/Tih000/max/internal/services/ai"
)

// Generator builds the daily digest text for a chat. When an AI provider
// is configured it summarizes the day, otherwise it falls back to a plain
// task listing. Implements scheduler.DigestGenerator.
type Generator struct {
	taskRepo database.TaskRepositoryInterface
	msgRepo  database.MessageRepositoryInterface
	chatRepo database.ChatRepositoryInterface
	provider ai.Provider // optional
	logger   *zap.Logger
}

// NewGenerator creates a digest generator. provider may be nil.
func NewGenerator(
	taskRepo database.TaskRepositoryInterface,
	msgRepo database.MessageRepositoryInterface,
	chatRepo database.ChatRepositoryInterface,
	provider ai.Provider,
	log *zap.Logger,
) *Generator {
	return &Generator{
		taskRepo: taskRepo,
		msgRepo:  msgRepo,
		chatRepo: chatRepo,
		provider: provider,
		logger:   log,
	}
}

var _ scheduler.DigestGenerator = (*Generator)(nil)

// Generate produces the digest text for one chat over the given window
func (g *Generator) Generate(ctx context.Context, chatID int64, window scheduler.TimeWindow) (string, error) {
	tasks, err := g.taskRepo.ListDueBetween(ctx, chatID, window.From, window.To)
	if err != nil {
		return "", fmt.Errorf("failed to load due tasks: %w", err)
	}

	open, err := g.taskRepo.ListByChat(ctx, chatID, statusPtr(models.TaskStatusOpen))
	if err != nil {
		return "", fmt.Errorf("failed to load open tasks: %w", err)
	}

	msgs, err := g.msgRepo.ListBetween(ctx, chatID, window.From, window.To)
	if err != nil {
		return "", fmt.Errorf("failed to load messages: %w", err)
	}

	title := g.chatTitle(ctx, chatID)

	if g.provider != nil {
		text, err := g.provider.SummarizeDigest(ctx, title, mergeTasks(tasks, open), msgs)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		if err != nil {
			g.logger.Warn("digest_summary_failed",
				zap.Int64("chat_id", chatID),
				zap.String("error", logger.SanitizeError(err)),
			)
		}
	}

	return plainDigest(title, tasks, open), nil
}

func (g *Generator) chatTitle(ctx context.Context, chatID int64) string {
	chats, err := g.chatRepo.ListChats(ctx)
	if err != nil {
		return ""
	}
	for _, c := range chats {
		if c.ID == chatID {
			return c.Title
		}
	}
	return ""
}

// plainDigest is the no-AI fallback format
func plainDigest(title string, due, open []*models.Task) string {
	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "Digest for %s\n\n", title)
	} else {
		b.WriteString("Daily digest\n\n")
	}

	if len(due) == 0 {
		b.WriteString("Nothing due today.\n")
	} else {
		b.WriteString("Due today:\n")
		for _, t := range due {
			writeTaskLine(&b, t, true)
		}
	}

	remaining := 0
	for _, t := range open {
		if containsTask(due, t.ID) {
			continue
		}
		if remaining == 0 {
			b.WriteString("\nStill open:\n")
		}
		remaining++
		if remaining > 10 {
			continue
		}
		writeTaskLine(&b, t, false)
	}
	if remaining > 10 {
		fmt.Fprintf(&b, "  ... and %d more\n", remaining-10)
	}

	return b.String()
}

func writeTaskLine(b *strings.Builder, t *models.Task, withTime bool) {
	b.WriteString("  - ")
	b.WriteString(t.Title)
	if t.AssigneeName != "" {
		fmt.Fprintf(b, " (%s)", t.AssigneeName)
	}
	if withTime && t.DueAt != nil {
		fmt.Fprintf(b, " at %s", t.DueAt.Format("15:04"))
	}
	if t.Priority == models.TaskPriorityHigh {
		b.WriteString(" [high]")
	}
	b.WriteString("\n")
}

func containsTask(tasks []*models.Task, id uuid.UUID) bool {
	for _, t := range tasks {
		if t.ID == id {
			return true
		}
	}
	return false
}

func mergeTasks(due, open []*models.Task) []*models.Task {
	merged := make([]*models.Task, 0, len(due)+len(open))
	merged = append(merged, due...)
	for _, t := range open {
		if !containsTask(due, t.ID) {
			merged = append(merged, t)
		}
	}
	return merged
}

func statusPtr(s models.TaskStatus) *models.TaskStatus {
	return &s
}
