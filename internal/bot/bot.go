package bot

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Tih000/max/internal/database"
	"github.com/Tih000/max/internal/logger"
	"github.com/Tih000/max/internal/maxapi"
	"github.com/Tih000/max/internal/models"
	"github.com/Tih000/max/internal/queue"
	"github.com/Tih000/max/internal/scheduler"
	"github.com/Tih000/max/internal/validation"
)

// ReminderScheduling is the slice of the reminder scheduler commands use
type ReminderScheduling interface {
	ScheduleReminder(ctx context.Context, task *models.Task, remindAt time.Time, recipient *int64) (*models.Reminder, error)
}

// DigestScheduling is the slice of the digest scheduler commands use
type DigestScheduling interface {
	ScheduleDigest(chatID, userID int64, spec string, deliver scheduler.DigestDeliverFunc) error
	CancelDigest(chatID, userID int64)
}

// Cache remembers processed message IDs across long-poll redeliveries and
// keeps member display names warm between membership sync runs
type Cache interface {
	Seen(ctx context.Context, messageID string) (bool, error)
	CacheMemberName(ctx context.Context, chatID, userID int64, name string) error
	MemberName(ctx context.Context, chatID, userID int64) (string, error)
}

// TextSender posts text into a chat
type TextSender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// UpdateSource is the slice of the platform client the bot loop consumes
type UpdateSource interface {
	Me(ctx context.Context) (*maxapi.User, error)
	GetUpdates(ctx context.Context, marker int64, timeout time.Duration) (*maxapi.UpdateList, error)
	GetChatMembers(ctx context.Context, chatID int64) ([]maxapi.ChatMember, error)
}

// Config carries the tunables of the bot loop
type Config struct {
	PollTimeout   time.Duration
	SyncInterval  time.Duration
	ExportBaseURL string
}

// Bot owns the long-poll update loop: it ingests chat messages into the
// extraction pipeline, dispatches slash commands, and keeps chat
// membership in sync.
type Bot struct {
	client UpdateSource
	sender TextSender
	cache  Cache

	msgRepo  database.MessageRepositoryInterface
	taskRepo database.TaskRepositoryInterface
	chatRepo database.ChatRepositoryInterface
	prefRepo database.DigestPreferenceRepositoryInterface

	jobs      queue.JobQueue
	reminders ReminderScheduling
	digests   DigestScheduling

	pollTimeout   time.Duration
	syncInterval  time.Duration
	exportBaseURL string

	logger *zap.Logger
	selfID int64
}

// New creates a bot
func New(
	client UpdateSource,
	sender TextSender,
	cache Cache,
	msgRepo database.MessageRepositoryInterface,
	taskRepo database.TaskRepositoryInterface,
	chatRepo database.ChatRepositoryInterface,
	prefRepo database.DigestPreferenceRepositoryInterface,
	jobs queue.JobQueue,
	reminders ReminderScheduling,
	digests DigestScheduling,
	cfg Config,
	log *zap.Logger,
) *Bot {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30 * time.Second
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = time.Hour
	}
	return &Bot{
		client:        client,
		sender:        sender,
		cache:         cache,
		msgRepo:       msgRepo,
		taskRepo:      taskRepo,
		chatRepo:      chatRepo,
		prefRepo:      prefRepo,
		jobs:          jobs,
		reminders:     reminders,
		digests:       digests,
		pollTimeout:   cfg.PollTimeout,
		syncInterval:  cfg.SyncInterval,
		exportBaseURL: cfg.ExportBaseURL,
		logger:        log,
	}
}

// Run drives the long-poll loop until ctx is cancelled. The marker from
// each batch feeds the next request so no update is skipped or repeated
// within one connection.
func (b *Bot) Run(ctx context.Context) error {
	me, err := b.client.Me(ctx)
	if err != nil {
		return err
	}
	b.selfID = me.UserID
	b.logger.Info("bot_started",
		zap.Int64("bot_user_id", me.UserID),
		zap.String("bot_name", me.Name),
	)

	var marker int64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		list, err := b.client.GetUpdates(ctx, marker, b.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.Warn("poll_failed", zap.String("error", logger.SanitizeError(err)))
			time.Sleep(3 * time.Second)
			continue
		}

		for i := range list.Updates {
			b.handleUpdate(ctx, &list.Updates[i])
		}
		if list.Marker != nil {
			marker = *list.Marker
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, u *maxapi.Update) {
	switch u.UpdateType {
	case maxapi.UpdateTypeMessageCreated:
		if u.Message != nil {
			b.handleMessage(ctx, u.Message)
		}
	case maxapi.UpdateTypeBotAdded:
		if u.Chat != nil {
			b.handleBotAdded(ctx, u.Chat)
		}
	case maxapi.UpdateTypeBotRemoved:
		if u.Chat != nil {
			b.logger.Info("bot_removed", zap.Int64("chat_id", u.Chat.ChatID))
		}
	default:
		b.logger.Debug("update_skipped", zap.String("type", u.UpdateType))
	}
}

func (b *Bot) handleMessage(ctx context.Context, m *maxapi.Message) {
	if m.Sender.UserID == b.selfID || m.Sender.IsBot {
		return
	}

	msg := &models.ChatMessage{
		ID:         m.Body.Mid,
		ChatID:     m.Recipient.ChatID,
		SenderID:   m.Sender.UserID,
		SenderName: m.Sender.Name,
		Text:       m.Body.Text,
		SentAt:     time.UnixMilli(m.Timestamp),
	}
	if msg.ChatID == 0 {
		// Dialog messages carry only a user recipient
		msg.ChatID = m.Recipient.UserID
	}
	if msg.SenderName == "" {
		// Some update payloads omit the sender name; fall back to the name
		// captured by the last membership sync
		if name, err := b.cache.MemberName(ctx, msg.ChatID, msg.SenderID); err == nil && name != "" {
			msg.SenderName = name
		}
	}

	seen, err := b.cache.Seen(ctx, msg.ID)
	if err != nil {
		// Redis down degrades to at-least-once processing; the task
		// upsert key keeps extraction idempotent anyway
		b.logger.Warn("dedup_unavailable", zap.String("error", logger.SanitizeError(err)))
	} else if seen {
		return
	}

	if strings.HasPrefix(strings.TrimSpace(msg.Text), "/") {
		b.handleCommand(ctx, msg)
		return
	}
	b.ingest(ctx, msg)
}

// ingest persists a plain chat message and queues it for task extraction
func (b *Bot) ingest(ctx context.Context, msg *models.ChatMessage) {
	msg.Text = validation.SanitizeText(msg.Text)
	if msg.Text == "" {
		return
	}

	if err := b.msgRepo.Save(ctx, msg); err != nil {
		b.logger.Error("message_save_failed",
			zap.String("message_id", msg.ID),
			zap.String("error", logger.SanitizeError(err)),
		)
		return
	}

	job := queue.NewExtractJob(msg.ChatID, msg.ID)
	if err := b.jobs.Enqueue(ctx, job); err != nil {
		b.logger.Error("extract_enqueue_failed",
			zap.String("message_id", msg.ID),
			zap.String("error", logger.SanitizeError(err)),
		)
	}
}

func (b *Bot) handleBotAdded(ctx context.Context, c *maxapi.Chat) {
	chat := &models.Chat{ID: c.ChatID, Title: c.Title, Type: c.Type}
	if err := b.chatRepo.Upsert(ctx, chat); err != nil {
		b.logger.Error("chat_upsert_failed",
			zap.Int64("chat_id", c.ChatID),
			zap.String("error", logger.SanitizeError(err)),
		)
		return
	}
	b.logger.Info("bot_added", zap.Int64("chat_id", c.ChatID), zap.String("title", logger.SanitizeText(c.Title, 64)))

	b.syncChatMembers(ctx, c.ChatID)
}

// RunMembershipSync refreshes the member sets of all known chats on a
// fixed interval until ctx is cancelled
func (b *Bot) RunMembershipSync(ctx context.Context) error {
	ticker := time.NewTicker(b.syncInterval)
	defer ticker.Stop()

	b.syncAllMembers(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			b.syncAllMembers(ctx)
		}
	}
}

func (b *Bot) syncAllMembers(ctx context.Context) {
	chats, err := b.chatRepo.ListChats(ctx)
	if err != nil {
		b.logger.Error("membership_sync_failed", zap.String("error", logger.SanitizeError(err)))
		return
	}
	for _, chat := range chats {
		if chat.Type == "dialog" {
			continue
		}
		b.syncChatMembers(ctx, chat.ID)
	}
}

func (b *Bot) syncChatMembers(ctx context.Context, chatID int64) {
	apiMembers, err := b.client.GetChatMembers(ctx, chatID)
	if err != nil {
		b.logger.Warn("member_fetch_failed",
			zap.Int64("chat_id", chatID),
			zap.String("error", logger.SanitizeError(err)),
		)
		return
	}

	members := make([]*models.ChatMember, 0, len(apiMembers))
	for _, m := range apiMembers {
		if m.IsBot {
			continue
		}
		members = append(members, &models.ChatMember{
			ChatID:  chatID,
			UserID:  m.UserID,
			Name:    m.Name,
			IsAdmin: m.IsAdmin,
		})
	}

	if err := b.chatRepo.ReplaceMembers(ctx, chatID, members); err != nil {
		b.logger.Error("member_store_failed",
			zap.Int64("chat_id", chatID),
			zap.String("error", logger.SanitizeError(err)),
		)
		return
	}

	for _, m := range members {
		if err := b.cache.CacheMemberName(ctx, chatID, m.UserID, m.Name); err != nil {
			// Redis down only costs the name fallback; stop after one warn
			b.logger.Warn("member_cache_failed",
				zap.Int64("chat_id", chatID),
				zap.String("error", logger.SanitizeError(err)),
			)
			break
		}
	}

	b.logger.Debug("members_synced", zap.Int64("chat_id", chatID), zap.Int("count", len(members)))
}
