package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Tih000/max/internal/database"
	"github.com/Tih000/max/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DeliveryHandler transmits a fired reminder to its recipient. The handler
// may do its own I/O retries; the scheduler does not retry on failure. A
// failed delivery leaves the reminder undelivered in storage, and the next
// recovery sweep re-attempts it.
type DeliveryHandler interface {
	Deliver(ctx context.Context, task *models.Task, reminder *models.Reminder) error
}

// DeliveryHandlerFunc adapts a function to the DeliveryHandler interface
type DeliveryHandlerFunc func(ctx context.Context, task *models.Task, reminder *models.Reminder) error

// Deliver implements DeliveryHandler
func (f DeliveryHandlerFunc) Deliver(ctx context.Context, task *models.Task, reminder *models.Reminder) error {
	return f(ctx, task, reminder)
}

// ReminderScheduler guarantees that every persisted, undelivered,
// due-or-upcoming reminder fires its delivery handler, survives process
// restarts, and records the delivery outcome.
//
// Timers are purely in-memory and lost on restart; the store's delivered
// flag is the source of truth. Init re-derives the live timer set from
// storage on every start.
type ReminderScheduler struct {
	reminders database.ReminderRepositoryInterface
	tasks     database.TaskRepositoryInterface
	engine    TimerEngine
	logger    *zap.Logger
	grace     time.Duration

	mu      sync.Mutex
	handler DeliveryHandler
	timers  map[uuid.UUID]Timer

	// dispatch runs a timer-fired delivery off the timer engine's goroutine
	// so a slow handler cannot delay other timers. Tests replace it with a
	// synchronous call.
	dispatch func(fn func())
}

// NewReminderScheduler creates a reminder scheduler. Pass nil engine to use
// the runtime clock.
func NewReminderScheduler(
	reminders database.ReminderRepositoryInterface,
	tasks database.TaskRepositoryInterface,
	engine TimerEngine,
	logger *zap.Logger,
) *ReminderScheduler {
	if engine == nil {
		engine = NewTimerEngine()
	}
	return &ReminderScheduler{
		reminders: reminders,
		tasks:     tasks,
		engine:    engine,
		logger:    logger,
		grace:     GraceWindow,
		timers:    make(map[uuid.UUID]Timer),
		dispatch:  func(fn func()) { go fn() },
	}
}

// Init registers the delivery handler and runs the recovery sweep: every
// undelivered reminder due after now minus the grace window is scheduled
// again. Older reminders are considered missed and left undelivered. A
// failure loading the sweep is returned; per-reminder scheduling never
// aborts the sweep.
func (s *ReminderScheduler) Init(ctx context.Context, handler DeliveryHandler) error {
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()

	sinceGrace := s.engine.Now().Add(-s.grace)
	reminders, tasks, err := s.reminders.FindDueUndelivered(ctx, sinceGrace)
	if err != nil {
		return fmt.Errorf("recovery sweep failed: %w", err)
	}

	for i := range reminders {
		s.scheduleJob(ctx, tasks[i], reminders[i])
	}

	s.logger.Info("reminder_recovery_complete",
		zap.Int("recovered", len(reminders)),
		zap.Time("since", sinceGrace),
	)

	return nil
}

// ScheduleReminder persists a reminder for the task and arms its timer. The
// recipient falls back to the task's assignee, then its creator. A reminder
// already due (inside the grace window) fires synchronously before the call
// returns. Store errors propagate to the caller.
func (s *ReminderScheduler) ScheduleReminder(ctx context.Context, task *models.Task, remindAt time.Time, recipient *int64) (*models.Reminder, error) {
	reminder := &models.Reminder{
		ID:          uuid.New(),
		TaskID:      task.ID,
		RecipientID: ResolveRecipient(task, recipient),
		RemindAt:    remindAt,
	}

	if err := s.reminders.Create(ctx, reminder); err != nil {
		return nil, fmt.Errorf("failed to persist reminder: %w", err)
	}

	s.scheduleJob(ctx, task, reminder)

	return reminder, nil
}

// scheduleJob arms the in-memory timer for a persisted reminder. Canceling
// any live timer for the same ID and creating the new one happens under one
// lock acquisition, so two concurrent calls can never leave two live timers
// for one reminder.
func (s *ReminderScheduler) scheduleJob(ctx context.Context, task *models.Task, reminder *models.Reminder) {
	s.mu.Lock()
	if old, ok := s.timers[reminder.ID]; ok {
		old.Stop()
		delete(s.timers, reminder.ID)
	}

	delay := reminder.RemindAt.Sub(s.engine.Now())
	if delay <= s.grace {
		s.mu.Unlock()
		// Already due: fire in this call's continuation, skipping the
		// timer engine entirely.
		s.trigger(ctx, task, reminder)
		return
	}

	id := reminder.ID
	s.timers[id] = s.engine.AfterFunc(delay, func() {
		s.dispatch(func() { s.fire(id) })
	})
	s.mu.Unlock()

	s.logger.Debug("reminder_timer_armed",
		zap.String("reminder_id", id.String()),
		zap.Time("remind_at", reminder.RemindAt),
	)
}

// fire runs when an armed timer elapses. The persisted delivered flag is
// re-checked first: it is the authority when a fire races a cancellation or
// a concurrent manual acknowledgement.
func (s *ReminderScheduler) fire(id uuid.UUID) {
	ctx := context.Background()

	reminder, err := s.reminders.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("reminder_fire_load_failed",
			zap.String("reminder_id", id.String()),
			zap.Error(err),
		)
		return
	}

	if reminder.Delivered {
		s.removeTimer(id)
		return
	}

	task, err := s.tasks.GetByID(ctx, reminder.TaskID)
	if err != nil {
		s.logger.Error("reminder_fire_task_load_failed",
			zap.String("reminder_id", id.String()),
			zap.String("task_id", reminder.TaskID.String()),
			zap.Error(err),
		)
		return
	}

	s.trigger(ctx, task, reminder)
}

// trigger runs the fire protocol: check the task is still open, invoke the
// handler, then mark delivered. Handler failure leaves the reminder
// undelivered so a later recovery sweep retries it; there is no in-process
// retry.
func (s *ReminderScheduler) trigger(ctx context.Context, task *models.Task, reminder *models.Reminder) {
	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()

	if handler == nil {
		// Configuration error, not a runtime fault: nothing mutated, so the
		// reminder stays recoverable.
		s.logger.Error("delivery_handler_not_registered",
			zap.String("reminder_id", reminder.ID.String()),
		)
		return
	}

	if !task.IsOpen() {
		// Completed or cancelled between scheduling and firing; nudging is
		// pointless now. The row stays undelivered, which is harmless: the
		// recovery sweep only looks at reminders inside the grace window.
		s.removeTimer(reminder.ID)
		s.logger.Info("reminder_skipped_task_closed",
			zap.String("reminder_id", reminder.ID.String()),
			zap.String("task_id", task.ID.String()),
			zap.String("status", string(task.Status)),
		)
		return
	}

	if err := handler.Deliver(ctx, task, reminder); err != nil {
		s.logger.Error("reminder_delivery_failed",
			zap.String("reminder_id", reminder.ID.String()),
			zap.String("task_id", task.ID.String()),
			zap.Error(err),
		)
		return
	}

	won, err := s.reminders.MarkDelivered(ctx, reminder.ID)
	if err != nil {
		s.logger.Error("reminder_mark_delivered_failed",
			zap.String("reminder_id", reminder.ID.String()),
			zap.Error(err),
		)
		return
	}

	s.removeTimer(reminder.ID)

	if !won {
		// A concurrent instance won the compare-and-set after our delivered
		// check; its log line is the record of the delivery
		s.logger.Info("reminder_already_delivered",
			zap.String("reminder_id", reminder.ID.String()),
			zap.String("task_id", task.ID.String()),
		)
		return
	}

	s.logger.Info("reminder_delivered",
		zap.String("reminder_id", reminder.ID.String()),
		zap.String("task_id", task.ID.String()),
		zap.Int64("recipient_id", reminder.RecipientID),
	)
}

// MarkDelivered flags a reminder delivered without running the fire
// protocol (administrative override) and drops its timer. Idempotent:
// already-delivered or unknown reminders are a no-op. Store errors
// propagate.
func (s *ReminderScheduler) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	if _, err := s.reminders.MarkDelivered(ctx, id); err != nil {
		return fmt.Errorf("failed to mark reminder delivered: %w", err)
	}

	s.mu.Lock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	return nil
}

// Stop cancels all live timers. Already-fired callbacks may still be in
// flight; the persisted delivered flag keeps them idempotent.
func (s *ReminderScheduler) Stop() {
	s.mu.Lock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
}

func (s *ReminderScheduler) removeTimer(id uuid.UUID) {
	s.mu.Lock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
}

func (s *ReminderScheduler) liveTimers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
