package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Tih000/max/internal/database"
	"github.com/Tih000/max/internal/models"
	"github.com/google/uuid"
)

// fakeTimerEngine is a deterministic TimerEngine: time only moves when a
// test calls advance.
type fakeTimerEngine struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	engine  *fakeTimerEngine
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newFakeTimerEngine() *fakeTimerEngine {
	return &fakeTimerEngine{
		now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
}

func (e *fakeTimerEngine) Now() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

func (e *fakeTimerEngine) AfterFunc(d time.Duration, fn func()) Timer {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := &fakeTimer{engine: e, at: e.now.Add(d), fn: fn}
	e.timers = append(e.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.engine.mu.Lock()
	defer t.engine.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// advance moves the clock forward and fires every due, still-live timer
func (e *fakeTimerEngine) advance(d time.Duration) {
	e.mu.Lock()
	e.now = e.now.Add(d)
	var due []*fakeTimer
	for _, t := range e.timers {
		if !t.stopped && !t.fired && !t.at.After(e.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	e.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

// pending counts timers that are armed and have not fired
func (e *fakeTimerEngine) pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, t := range e.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// memTaskRepo is an in-memory TaskRepositoryInterface
type memTaskRepo struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*models.Task
}

func newMemTaskRepo() *memTaskRepo {
	return &memTaskRepo{tasks: make(map[uuid.UUID]*models.Task)}
}

func (r *memTaskRepo) Upsert(ctx context.Context, task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *task
	r.tasks[task.ID] = &copied
	return nil
}

func (r *memTaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, database.ErrNotFound)
	}
	copied := *task
	return &copied, nil
}

func (r *memTaskRepo) ListByChat(ctx context.Context, chatID int64, status *models.TaskStatus) ([]*models.Task, error) {
	return nil, nil
}

func (r *memTaskRepo) ListDueBetween(ctx context.Context, chatID int64, from, to time.Time) ([]*models.Task, error) {
	return nil, nil
}

func (r *memTaskRepo) SetStatus(ctx context.Context, id uuid.UUID, status models.TaskStatus) error {
	return nil
}

var _ database.TaskRepositoryInterface = (*memTaskRepo)(nil)

// memReminderRepo is an in-memory ReminderRepositoryInterface joined to a
// memTaskRepo for the recovery sweep
type memReminderRepo struct {
	mu        sync.Mutex
	reminders map[uuid.UUID]*models.Reminder
	tasks     *memTaskRepo
	createErr error
}

func newMemReminderRepo(tasks *memTaskRepo) *memReminderRepo {
	return &memReminderRepo{
		reminders: make(map[uuid.UUID]*models.Reminder),
		tasks:     tasks,
	}
}

func (r *memReminderRepo) Create(ctx context.Context, reminder *models.Reminder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	copied := *reminder
	copied.CreatedAt = time.Now()
	r.reminders[reminder.ID] = &copied
	reminder.CreatedAt = copied.CreatedAt
	return nil
}

func (r *memReminderRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reminder, ok := r.reminders[id]
	if !ok {
		return nil, fmt.Errorf("reminder %s: %w", id, database.ErrNotFound)
	}
	copied := *reminder
	return &copied, nil
}

func (r *memReminderRepo) FindDueUndelivered(ctx context.Context, sinceGrace time.Time) ([]*models.Reminder, []*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var reminders []*models.Reminder
	var tasks []*models.Task
	for _, reminder := range r.reminders {
		if reminder.Delivered || reminder.RemindAt.Before(sinceGrace) {
			continue
		}
		task, err := r.tasks.GetByID(ctx, reminder.TaskID)
		if err != nil {
			return nil, nil, err
		}
		copied := *reminder
		reminders = append(reminders, &copied)
		tasks = append(tasks, task)
	}
	return reminders, tasks, nil
}

func (r *memReminderRepo) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reminder, ok := r.reminders[id]
	if !ok || reminder.Delivered {
		return false, nil
	}
	now := time.Now()
	reminder.Delivered = true
	reminder.DeliveredAt = &now
	return true, nil
}

var _ database.ReminderRepositoryInterface = (*memReminderRepo)(nil)

// recordingHandler records every delivery and can be told to fail the
// first N calls
type recordingHandler struct {
	mu       sync.Mutex
	calls    []uuid.UUID
	failures int
}

func (h *recordingHandler) Deliver(ctx context.Context, task *models.Task, reminder *models.Reminder) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, reminder.ID)
	if h.failures > 0 {
		h.failures--
		return fmt.Errorf("delivery channel down")
	}
	return nil
}

func (h *recordingHandler) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

var _ DeliveryHandler = (*recordingHandler)(nil)
