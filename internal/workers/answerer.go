package workers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Tih000/max/internal/database"
	"github.com/Tih000/max/internal/logger"
	"github.com/Tih000/max/internal/queue"
	"github.com/Tih000/max/internal/services/ai"
)

// historyLimit is how many recent messages feed the answer prompt
const historyLimit = 50

// ChatSender sends text into a chat. Satisfied by *maxapi.Client
// through a thin adapter in the bot package.
type ChatSender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// QuestionAnswerer processes answer jobs: it retrieves recent chat history,
// asks the LLM, and posts the answer back into the chat.
type QuestionAnswerer struct {
	aiProvider ai.Provider
	msgRepo    database.MessageRepositoryInterface
	sender     ChatSender
	logger     *zap.Logger
}

// NewQuestionAnswerer creates a new question answerer
func NewQuestionAnswerer(
	aiProvider ai.Provider,
	msgRepo database.MessageRepositoryInterface,
	sender ChatSender,
	log *zap.Logger,
) *QuestionAnswerer {
	return &QuestionAnswerer{
		aiProvider: aiProvider,
		msgRepo:    msgRepo,
		sender:     sender,
		logger:     log,
	}
}

// ProcessAnswerJob answers one question job
func (a *QuestionAnswerer) ProcessAnswerJob(ctx context.Context, job *queue.Job) error {
	if job.Question == "" {
		return fmt.Errorf("question is required for answer job")
	}

	if a.aiProvider == nil {
		// No API key configured; tell the asker instead of silently
		// dropping the question
		a.logger.Warn("answer_skipped_no_ai_provider",
			zap.Int64("chat_id", job.ChatID),
			zap.Int64("user_id", job.UserID),
		)
		if err := a.sender.SendText(ctx, job.ChatID, "Question answering is not configured on this bot."); err != nil {
			a.logger.Error("answer_notice_failed",
				zap.Int64("chat_id", job.ChatID),
				zap.String("error", logger.SanitizeError(err)),
			)
		}
		return nil
	}

	history, err := a.msgRepo.ListRecent(ctx, job.ChatID, historyLimit)
	if err != nil {
		return fmt.Errorf("failed to load chat history: %w", err)
	}

	answer, err := a.aiProvider.AnswerQuestion(ctx, job.Question, history)
	if err != nil {
		return fmt.Errorf("failed to answer question: %w", err)
	}

	if err := a.sender.SendText(ctx, job.ChatID, answer); err != nil {
		return fmt.Errorf("failed to send answer: %w", err)
	}

	a.logger.Info("question_answered",
		zap.Int64("chat_id", job.ChatID),
		zap.Int64("user_id", job.UserID),
		zap.String("question", logger.SanitizeText(job.Question, 128)),
	)
	return nil
}
