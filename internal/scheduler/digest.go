package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Tih000/max/internal/database"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DigestGenerator produces the digest text for a chat over a time window
type DigestGenerator interface {
	Generate(ctx context.Context, chatID int64, window TimeWindow) (string, error)
}

// DigestSender delivers digest text to a user
type DigestSender interface {
	SendToUser(ctx context.Context, userID int64, text string) error
}

// DigestDeliverFunc overrides the default sender for a single schedule
type DigestDeliverFunc func(ctx context.Context, userID int64, text string) error

type digestKey struct {
	ChatID int64
	UserID int64
}

type digestEntry struct {
	spec string
	id   cron.EntryID
}

// DigestScheduler maintains one recurring cron job per (chat, user) pair
// that generates and delivers a digest on each tick. Unlike reminders there
// is no durable per-tick record: a failed tick is lost and the next tick is
// unaffected.
type DigestScheduler struct {
	prefs     database.DigestPreferenceRepositoryInterface
	generator DigestGenerator
	sender    DigestSender
	logger    *zap.Logger
	cron      *cron.Cron

	mu      sync.Mutex
	entries map[digestKey]digestEntry
}

// NewDigestScheduler creates a digest scheduler using standard 5-field cron
// expressions.
func NewDigestScheduler(
	prefs database.DigestPreferenceRepositoryInterface,
	generator DigestGenerator,
	sender DigestSender,
	logger *zap.Logger,
) *DigestScheduler {
	return &DigestScheduler{
		prefs:     prefs,
		generator: generator,
		sender:    sender,
		logger:    logger,
		cron:      cron.New(),
		entries:   make(map[digestKey]digestEntry),
	}
}

// Init reconciles live jobs against persisted preferences, registers the
// hourly re-reconciliation, and starts the cron runner. A failed initial
// reconciliation is logged, not fatal: the hourly pass retries it.
func (s *DigestScheduler) Init(ctx context.Context) error {
	if err := s.reconcile(ctx); err != nil {
		s.logger.Error("digest_reconcile_failed", zap.Error(err))
	}

	_, err := s.cron.AddFunc("0 * * * *", func() {
		if err := s.reconcile(context.Background()); err != nil {
			s.logger.Error("digest_reconcile_failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to register reconciliation job: %w", err)
	}

	s.cron.Start()
	return nil
}

// ScheduleDigest registers (or replaces) the recurring digest job for a
// (chat, user) pair. Pass a nil deliver to use the default sender. The cron
// spec is validated before the previous job is touched.
func (s *DigestScheduler) ScheduleDigest(chatID, userID int64, spec string, deliver DigestDeliverFunc) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	if deliver == nil {
		deliver = s.sender.SendToUser
	}

	key := digestKey{ChatID: chatID, UserID: userID}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[key]; ok {
		s.cron.Remove(old.id)
		delete(s.entries, key)
	}

	id, err := s.cron.AddFunc(spec, func() {
		s.runDigest(chatID, userID, deliver)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule digest: %w", err)
	}

	s.entries[key] = digestEntry{spec: spec, id: id}

	s.logger.Info("digest_scheduled",
		zap.Int64("chat_id", chatID),
		zap.Int64("user_id", userID),
		zap.String("cron", spec),
	)

	return nil
}

// CancelDigest removes the recurring job for a (chat, user) pair. Missing
// keys are a no-op.
func (s *DigestScheduler) CancelDigest(chatID, userID int64) {
	key := digestKey{ChatID: chatID, UserID: userID}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return
	}
	s.cron.Remove(entry.id)
	delete(s.entries, key)

	s.logger.Info("digest_cancelled",
		zap.Int64("chat_id", chatID),
		zap.Int64("user_id", userID),
	)
}

// runDigest is one tick: generate the current day's digest and deliver it.
// Errors are logged per tick and never cancel the recurring job.
func (s *DigestScheduler) runDigest(chatID, userID int64, deliver DigestDeliverFunc) {
	ctx := context.Background()

	text, err := s.generator.Generate(ctx, chatID, DayWindow(time.Now()))
	if err != nil {
		s.logger.Error("digest_generation_failed",
			zap.Int64("chat_id", chatID),
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return
	}

	if err := deliver(ctx, userID, text); err != nil {
		s.logger.Error("digest_delivery_failed",
			zap.Int64("chat_id", chatID),
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("digest_delivered",
		zap.Int64("chat_id", chatID),
		zap.Int64("user_id", userID),
	)
}

// reconcile diffs persisted preferences against live jobs: schedules what
// is missing or changed, cancels what is no longer wanted. Per-preference
// failures are logged and skipped.
func (s *DigestScheduler) reconcile(ctx context.Context) error {
	prefs, err := s.prefs.FindWithRecurrence(ctx)
	if err != nil {
		return fmt.Errorf("failed to load digest preferences: %w", err)
	}

	desired := make(map[digestKey]string, len(prefs))
	for _, pref := range prefs {
		desired[digestKey{ChatID: pref.ChatID, UserID: pref.UserID}] = pref.CronSpec
	}

	s.mu.Lock()
	var stale []digestKey
	changed := make(map[digestKey]string)
	for key, spec := range desired {
		if live, ok := s.entries[key]; !ok || live.spec != spec {
			changed[key] = spec
		}
	}
	for key := range s.entries {
		if _, ok := desired[key]; !ok {
			stale = append(stale, key)
		}
	}
	s.mu.Unlock()

	for key, spec := range changed {
		if err := s.ScheduleDigest(key.ChatID, key.UserID, spec, nil); err != nil {
			s.logger.Warn("digest_reconcile_schedule_failed",
				zap.Int64("chat_id", key.ChatID),
				zap.Int64("user_id", key.UserID),
				zap.String("cron", spec),
				zap.Error(err),
			)
		}
	}
	for _, key := range stale {
		s.CancelDigest(key.ChatID, key.UserID)
	}

	if len(changed) > 0 || len(stale) > 0 {
		s.logger.Info("digest_reconciled",
			zap.Int("scheduled", len(changed)),
			zap.Int("cancelled", len(stale)),
		)
	}

	return nil
}

// Stop stops the cron runner. In-flight ticks finish on their own.
func (s *DigestScheduler) Stop() {
	s.cron.Stop()
}

func (s *DigestScheduler) liveJobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
