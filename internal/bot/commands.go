package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Tih000/max/internal/logger"
	"github.com/Tih000/max/internal/models"
	"github.com/Tih000/max/internal/queue"
)

const usageText = `Commands:
/tasks - list open tasks in this chat
/done <n> - complete task n from the list
/remind <n> <time> - remind me about task n (15:04, 2006-01-02 15:04, or 30m)
/digest <cron|daily|off> - daily digest schedule
/ask <question> - answer from chat history
/export <ics|xlsx> - export tasks`

// dailyDigestSpec is the shorthand schedule behind "/digest daily"
const dailyDigestSpec = "0 9 * * *"

// handleCommand dispatches one slash command. Replies go back into the
// originating chat; errors are reported to the user and logged.
func (b *Bot) handleCommand(ctx context.Context, msg *models.ChatMessage) {
	fields := strings.Fields(msg.Text)
	if len(fields) == 0 {
		return
	}

	// Group chats address commands as /cmd@botname
	cmd, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")
	args := fields[1:]

	var err error
	switch cmd {
	case "/tasks":
		err = b.cmdTasks(ctx, msg)
	case "/done":
		err = b.cmdDone(ctx, msg, args)
	case "/remind":
		err = b.cmdRemind(ctx, msg, args)
	case "/digest":
		err = b.cmdDigest(ctx, msg, args)
	case "/ask":
		err = b.cmdAsk(ctx, msg, args)
	case "/export":
		err = b.cmdExport(ctx, msg, args)
	case "/help", "/start":
		err = b.reply(ctx, msg, usageText)
	default:
		err = b.reply(ctx, msg, "Unknown command.\n"+usageText)
	}

	if err != nil {
		b.logger.Error("command_failed",
			zap.String("command", cmd),
			zap.Int64("chat_id", msg.ChatID),
			zap.Int64("sender_id", msg.SenderID),
			zap.String("error", logger.SanitizeError(err)),
		)
		if sendErr := b.reply(ctx, msg, "Something went wrong, try again."); sendErr != nil {
			b.logger.Error("reply_failed", zap.String("error", logger.SanitizeError(sendErr)))
		}
	}
}

func (b *Bot) cmdTasks(ctx context.Context, msg *models.ChatMessage) error {
	tasks, err := b.openTasks(ctx, msg.ChatID)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return b.reply(ctx, msg, "No open tasks.")
	}

	var sb strings.Builder
	sb.WriteString("Open tasks:\n")
	for i, t := range tasks {
		fmt.Fprintf(&sb, "%d. %s", i+1, t.Title)
		if t.AssigneeName != "" {
			fmt.Fprintf(&sb, " (%s)", t.AssigneeName)
		}
		if t.DueAt != nil {
			fmt.Fprintf(&sb, " due %s", t.DueAt.Format("Mon 2 Jan 15:04"))
		}
		sb.WriteString("\n")
	}
	return b.reply(ctx, msg, sb.String())
}

func (b *Bot) cmdDone(ctx context.Context, msg *models.ChatMessage, args []string) error {
	task, err := b.taskByNumber(ctx, msg.ChatID, args)
	if err != nil {
		return b.reply(ctx, msg, err.Error())
	}

	if err := b.taskRepo.SetStatus(ctx, task.ID, models.TaskStatusCompleted); err != nil {
		return fmt.Errorf("failed to complete task: %w", err)
	}
	return b.reply(ctx, msg, fmt.Sprintf("Done: %s", task.Title))
}

func (b *Bot) cmdRemind(ctx context.Context, msg *models.ChatMessage, args []string) error {
	if len(args) < 2 {
		return b.reply(ctx, msg, "Usage: /remind <n> <time>")
	}

	task, err := b.taskByNumber(ctx, msg.ChatID, args[:1])
	if err != nil {
		return b.reply(ctx, msg, err.Error())
	}

	remindAt, err := parseRemindTime(strings.Join(args[1:], " "), time.Now())
	if err != nil {
		return b.reply(ctx, msg, "Could not parse that time. Try 15:04, 2006-01-02 15:04, or 30m.")
	}

	recipient := msg.SenderID
	if _, err := b.reminders.ScheduleReminder(ctx, task, remindAt, &recipient); err != nil {
		return fmt.Errorf("failed to schedule reminder: %w", err)
	}
	return b.reply(ctx, msg, fmt.Sprintf("Will remind you about %q at %s.", task.Title, remindAt.Format("Mon 2 Jan 15:04")))
}

func (b *Bot) cmdDigest(ctx context.Context, msg *models.ChatMessage, args []string) error {
	if len(args) == 0 {
		return b.reply(ctx, msg, "Usage: /digest <cron|daily|off>")
	}

	if strings.EqualFold(args[0], "off") {
		b.digests.CancelDigest(msg.ChatID, msg.SenderID)
		if err := b.prefRepo.Delete(ctx, msg.ChatID, msg.SenderID); err != nil {
			return fmt.Errorf("failed to remove digest preference: %w", err)
		}
		return b.reply(ctx, msg, "Digest off.")
	}

	spec := strings.Join(args, " ")
	if strings.EqualFold(spec, "daily") {
		spec = dailyDigestSpec
	}

	// Validates the spec and replaces any previous schedule
	if err := b.digests.ScheduleDigest(msg.ChatID, msg.SenderID, spec, nil); err != nil {
		return b.reply(ctx, msg, "That is not a valid schedule. Use standard cron, e.g. 0 9 * * *.")
	}

	pref := &models.DigestPreference{ChatID: msg.ChatID, UserID: msg.SenderID, CronSpec: spec}
	if err := b.prefRepo.Set(ctx, pref); err != nil {
		return fmt.Errorf("failed to save digest preference: %w", err)
	}
	return b.reply(ctx, msg, fmt.Sprintf("Digest scheduled: %s", spec))
}

func (b *Bot) cmdAsk(ctx context.Context, msg *models.ChatMessage, args []string) error {
	if len(args) == 0 {
		return b.reply(ctx, msg, "Usage: /ask <question>")
	}

	question := strings.Join(args, " ")
	job := queue.NewAnswerJob(msg.ChatID, msg.SenderID, question)
	if err := b.jobs.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue question: %w", err)
	}
	return b.reply(ctx, msg, "Let me check...")
}

func (b *Bot) cmdExport(ctx context.Context, msg *models.ChatMessage, args []string) error {
	format := "xlsx"
	if len(args) > 0 {
		format = strings.ToLower(args[0])
	}
	if format != "ics" && format != "xlsx" {
		return b.reply(ctx, msg, "Usage: /export <ics|xlsx>")
	}
	if b.exportBaseURL == "" {
		return b.reply(ctx, msg, "Export is not configured.")
	}
	url := fmt.Sprintf("%s/api/v1/export/%d.%s", strings.TrimRight(b.exportBaseURL, "/"), msg.ChatID, format)
	return b.reply(ctx, msg, "Download: "+url)
}

// taskByNumber resolves "<n>" against the current open task listing
func (b *Bot) taskByNumber(ctx context.Context, chatID int64, args []string) (*models.Task, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("which task? Run /tasks and pass its number")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return nil, fmt.Errorf("task number must be a positive integer")
	}

	tasks, listErr := b.openTasks(ctx, chatID)
	if listErr != nil {
		return nil, listErr
	}
	if n > len(tasks) {
		return nil, fmt.Errorf("no task %d, there are %d open tasks", n, len(tasks))
	}
	return tasks[n-1], nil
}

func (b *Bot) openTasks(ctx context.Context, chatID int64) ([]*models.Task, error) {
	status := models.TaskStatusOpen
	tasks, err := b.taskRepo.ListByChat(ctx, chatID, &status)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

func (b *Bot) reply(ctx context.Context, msg *models.ChatMessage, text string) error {
	return b.sender.SendText(ctx, msg.ChatID, text)
}

// parseRemindTime accepts a relative duration ("30m", "2h"), a clock time
// ("15:04", rolled to tomorrow if already past), or an absolute timestamp
// ("2006-01-02 15:04").
func parseRemindTime(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)

	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return now.Add(d), nil
	}

	if clock, err := time.Parse("15:04", s); err == nil {
		at := time.Date(now.Year(), now.Month(), now.Day(), clock.Hour(), clock.Minute(), 0, 0, now.Location())
		if !at.After(now) {
			at = at.AddDate(0, 0, 1)
		}
		return at, nil
	}

	if at, err := time.ParseInLocation("2006-01-02 15:04", s, now.Location()); err == nil {
		return at, nil
	}

	if at, err := time.Parse(time.RFC3339, s); err == nil {
		return at, nil
	}

	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
