package workers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Tih000/max/internal/database"
	"github.com/Tih000/max/internal/logger"
	"github.com/Tih000/max/internal/models"
	"github.com/Tih000/max/internal/queue"
	"github.com/Tih000/max/internal/scheduler"
	"github.com/Tih000/max/internal/services/ai"
	"github.com/Tih000/max/internal/validation"
)

// ReminderScheduling is the slice of the reminder scheduler the extractor
// needs. Satisfied by *scheduler.ReminderScheduler.
type ReminderScheduling interface {
	ScheduleReminder(ctx context.Context, task *models.Task, remindAt time.Time, recipient *int64) (*models.Reminder, error)
}

// TaskExtractor processes extraction jobs: it runs the LLM over a persisted
// chat message, upserts the tasks it finds, and schedules reminders for
// tasks that carry a deadline.
type TaskExtractor struct {
	aiProvider ai.Provider
	msgRepo    database.MessageRepositoryInterface
	taskRepo   database.TaskRepositoryInterface
	chatRepo   database.ChatRepositoryInterface
	reminders  ReminderScheduling
	remindLead time.Duration
	logger     *zap.Logger
}

// NewTaskExtractor creates a new task extractor
func NewTaskExtractor(
	aiProvider ai.Provider,
	msgRepo database.MessageRepositoryInterface,
	taskRepo database.TaskRepositoryInterface,
	chatRepo database.ChatRepositoryInterface,
	reminders ReminderScheduling,
	remindLead time.Duration,
	log *zap.Logger,
) *TaskExtractor {
	if remindLead <= 0 {
		remindLead = scheduler.DefaultRemindLead
	}
	return &TaskExtractor{
		aiProvider: aiProvider,
		msgRepo:    msgRepo,
		taskRepo:   taskRepo,
		chatRepo:   chatRepo,
		reminders:  reminders,
		remindLead: remindLead,
		logger:     log,
	}
}

// ProcessExtractJob runs extraction for one job
func (e *TaskExtractor) ProcessExtractJob(ctx context.Context, job *queue.Job) error {
	if job.MessageID == "" {
		return fmt.Errorf("message_id is required for extraction job")
	}

	if e.aiProvider == nil {
		// The process runs without an API key; retrying cannot help, so
		// the job is acked and the message stays a plain chat message
		e.logger.Warn("extraction_skipped_no_ai_provider",
			zap.String("message_id", job.MessageID),
			zap.Int64("chat_id", job.ChatID),
		)
		return nil
	}

	msg, err := e.msgRepo.GetByID(ctx, job.MessageID)
	if err != nil {
		return fmt.Errorf("failed to load message: %w", err)
	}

	extracted, err := e.aiProvider.ExtractTasks(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to extract tasks: %w", err)
	}
	if len(extracted) == 0 {
		e.logger.Debug("no_tasks_in_message",
			zap.String("message_id", msg.ID),
			zap.Int64("chat_id", msg.ChatID),
		)
		return nil
	}

	members, err := e.chatRepo.ListMembers(ctx, msg.ChatID)
	if err != nil {
		// Extraction still works without membership data, assignees
		// just stay unresolved
		e.logger.Warn("member_lookup_failed",
			zap.Int64("chat_id", msg.ChatID),
			zap.String("error", logger.SanitizeError(err)),
		)
		members = nil
	}

	saved := 0
	for _, et := range extracted {
		task := e.buildTask(msg, et, members)
		if err := e.taskRepo.Upsert(ctx, task); err != nil {
			e.logger.Error("task_upsert_failed",
				zap.String("message_id", msg.ID),
				zap.String("title", logger.SanitizeText(task.Title, 128)),
				zap.String("error", logger.SanitizeError(err)),
			)
			continue
		}
		saved++

		if task.DueAt != nil {
			remindAt := scheduler.RemindAtFor(*task.DueAt, e.remindLead, time.Now())
			if _, err := e.reminders.ScheduleReminder(ctx, task, remindAt, nil); err != nil {
				e.logger.Error("reminder_schedule_failed",
					zap.String("task_id", task.ID.String()),
					zap.String("error", logger.SanitizeError(err)),
				)
			}
		}
	}

	e.logger.Info("extraction_complete",
		zap.String("message_id", msg.ID),
		zap.Int64("chat_id", msg.ChatID),
		zap.Int("extracted", len(extracted)),
		zap.Int("saved", saved),
	)
	return nil
}

// buildTask converts one extraction result into a task keyed to the
// source message. Assignee names are matched against known chat members.
func (e *TaskExtractor) buildTask(msg *models.ChatMessage, et ai.ExtractedTask, members []*models.ChatMember) *models.Task {
	task := &models.Task{
		ID:           uuid.New(),
		ChatID:       msg.ChatID,
		Title:        validation.SanitizeText(et.Title),
		Description:  validation.SanitizeText(et.Description),
		DueAt:        et.DueAt,
		AssigneeName: et.AssigneeName,
		MessageID:    msg.ID,
		CreatorID:    msg.SenderID,
		CreatorName:  msg.SenderName,
		Status:       models.TaskStatusOpen,
		Priority:     models.TaskPriority(et.Priority),
	}
	// Model output is untrusted, fall back to medium on anything off-enum
	if validation.ValidateTaskPriority(et.Priority) != nil {
		task.Priority = models.TaskPriorityMedium
	}

	if et.AssigneeName != "" {
		if m := matchMember(members, et.AssigneeName); m != nil {
			task.AssigneeID = &m.UserID
			task.AssigneeName = m.Name
		}
	}
	return task
}

// matchMember finds a chat member whose name matches the extracted
// assignee, case-insensitively. First name matches count too, so that
// "Anna" resolves to "Anna Petrova".
func matchMember(members []*models.ChatMember, name string) *models.ChatMember {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil
	}
	for _, m := range members {
		if strings.ToLower(m.Name) == needle {
			return m
		}
	}
	for _, m := range members {
		fields := strings.Fields(m.Name)
		if len(fields) > 0 && strings.ToLower(fields[0]) == needle {
			return m
		}
	}
	return nil
}
