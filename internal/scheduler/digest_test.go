package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Tih000/max/internal/database"
	"github.com/Tih000/max/internal/models"
	"go.uber.org/zap"
)

// memPrefRepo is an in-memory DigestPreferenceRepositoryInterface
type memPrefRepo struct {
	mu      sync.Mutex
	prefs   map[digestKey]*models.DigestPreference
	findErr error
}

func newMemPrefRepo() *memPrefRepo {
	return &memPrefRepo{prefs: make(map[digestKey]*models.DigestPreference)}
}

func (r *memPrefRepo) Set(ctx context.Context, pref *models.DigestPreference) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *pref
	r.prefs[digestKey{ChatID: pref.ChatID, UserID: pref.UserID}] = &copied
	return nil
}

func (r *memPrefRepo) Delete(ctx context.Context, chatID, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.prefs, digestKey{ChatID: chatID, UserID: userID})
	return nil
}

func (r *memPrefRepo) FindWithRecurrence(ctx context.Context) ([]*models.DigestPreference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	var out []*models.DigestPreference
	for _, pref := range r.prefs {
		if pref.CronSpec != "" {
			copied := *pref
			out = append(out, &copied)
		}
	}
	return out, nil
}

var _ database.DigestPreferenceRepositoryInterface = (*memPrefRepo)(nil)

type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	text  string
	err   error
}

func (g *fakeGenerator) Generate(ctx context.Context, chatID int64, window TimeWindow) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return fmt.Sprintf("%s (chat %d)", g.text, chatID), nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (s *fakeSender) SendToUser(ctx context.Context, userID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, text)
	return nil
}

func (s *fakeSender) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func newTestDigestScheduler(t *testing.T) (*DigestScheduler, *memPrefRepo, *fakeGenerator, *fakeSender) {
	t.Helper()
	prefs := newMemPrefRepo()
	gen := &fakeGenerator{text: "digest"}
	sender := &fakeSender{}
	s := NewDigestScheduler(prefs, gen, sender, zap.NewNop())
	return s, prefs, gen, sender
}

func TestScheduleDigestReplacesPrevious(t *testing.T) {
	s, _, _, _ := newTestDigestScheduler(t)

	if err := s.ScheduleDigest(1, 2, "0 9 * * *", nil); err != nil {
		t.Fatalf("ScheduleDigest() error: %v", err)
	}
	if err := s.ScheduleDigest(1, 2, "30 18 * * *", nil); err != nil {
		t.Fatalf("ScheduleDigest() second call error: %v", err)
	}

	if got := s.liveJobs(); got != 1 {
		t.Errorf("live jobs = %d, want 1", got)
	}
	if got := len(s.cron.Entries()); got != 1 {
		t.Errorf("cron entries = %d, want 1 (first must be removed)", got)
	}
	if spec := s.entries[digestKey{ChatID: 1, UserID: 2}].spec; spec != "30 18 * * *" {
		t.Errorf("live spec = %q, want the second expression", spec)
	}
}

func TestScheduleDigestRejectsInvalidCron(t *testing.T) {
	s, _, _, _ := newTestDigestScheduler(t)

	if err := s.ScheduleDigest(1, 2, "not a cron", nil); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
	if got := s.liveJobs(); got != 0 {
		t.Errorf("live jobs = %d, want 0", got)
	}
}

func TestCancelDigestIdempotent(t *testing.T) {
	s, _, _, _ := newTestDigestScheduler(t)

	if err := s.ScheduleDigest(1, 2, "0 9 * * *", nil); err != nil {
		t.Fatalf("ScheduleDigest() error: %v", err)
	}

	s.CancelDigest(1, 2)
	if got := s.liveJobs(); got != 0 {
		t.Errorf("live jobs = %d, want 0", got)
	}

	// Cancelling a missing key must not panic or error
	s.CancelDigest(1, 2)
	s.CancelDigest(99, 99)
}

func TestRunDigestDeliversGeneratedText(t *testing.T) {
	s, _, _, sender := newTestDigestScheduler(t)

	s.runDigest(5, 2, sender.SendToUser)

	if got := sender.sentCount(); got != 1 {
		t.Fatalf("sent = %d, want 1", got)
	}
	if want := "digest (chat 5)"; sender.sent[0] != want {
		t.Errorf("sent %q, want %q", sender.sent[0], want)
	}
}

func TestRunDigestGenerationFailureSkipsDelivery(t *testing.T) {
	s, _, gen, sender := newTestDigestScheduler(t)
	gen.err = errors.New("model unavailable")

	s.runDigest(5, 2, sender.SendToUser)

	if got := sender.sentCount(); got != 0 {
		t.Errorf("sent = %d, want 0", got)
	}
}

func TestRunDigestDeliveryFailureKeepsJob(t *testing.T) {
	s, _, _, sender := newTestDigestScheduler(t)
	if err := s.ScheduleDigest(5, 2, "0 9 * * *", nil); err != nil {
		t.Fatalf("ScheduleDigest() error: %v", err)
	}
	sender.err = errors.New("send failed")

	s.runDigest(5, 2, sender.SendToUser)

	// A failed tick must not cancel the recurring job
	if got := s.liveJobs(); got != 1 {
		t.Errorf("live jobs after failed tick = %d, want 1", got)
	}
}

func TestReconcileSchedulesAndCancels(t *testing.T) {
	s, prefs, _, _ := newTestDigestScheduler(t)
	ctx := context.Background()

	mustSet := func(chatID, userID int64, spec string) {
		t.Helper()
		if err := prefs.Set(ctx, &models.DigestPreference{ChatID: chatID, UserID: userID, CronSpec: spec}); err != nil {
			t.Fatalf("Set() error: %v", err)
		}
	}

	mustSet(1, 10, "0 9 * * *")
	mustSet(2, 20, "0 18 * * *")

	if err := s.reconcile(ctx); err != nil {
		t.Fatalf("reconcile() error: %v", err)
	}
	if got := s.liveJobs(); got != 2 {
		t.Fatalf("live jobs = %d, want 2", got)
	}

	// Spec change is picked up, removed preference is cancelled
	mustSet(1, 10, "15 9 * * *")
	if err := prefs.Delete(ctx, 2, 20); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	if err := s.reconcile(ctx); err != nil {
		t.Fatalf("reconcile() second pass error: %v", err)
	}
	if got := s.liveJobs(); got != 1 {
		t.Errorf("live jobs = %d, want 1", got)
	}
	if spec := s.entries[digestKey{ChatID: 1, UserID: 10}].spec; spec != "15 9 * * *" {
		t.Errorf("live spec = %q, want updated expression", spec)
	}

	// A second identical pass changes nothing
	if err := s.reconcile(ctx); err != nil {
		t.Fatalf("reconcile() third pass error: %v", err)
	}
	if got := s.liveJobs(); got != 1 {
		t.Errorf("live jobs after no-op pass = %d, want 1", got)
	}
}

func TestReconcileSkipsBadSpecs(t *testing.T) {
	s, prefs, _, _ := newTestDigestScheduler(t)
	ctx := context.Background()

	if err := prefs.Set(ctx, &models.DigestPreference{ChatID: 1, UserID: 10, CronSpec: "bogus"}); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if err := prefs.Set(ctx, &models.DigestPreference{ChatID: 2, UserID: 20, CronSpec: "0 9 * * *"}); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	// One bad preference must not block the good one
	if err := s.reconcile(ctx); err != nil {
		t.Fatalf("reconcile() error: %v", err)
	}
	if got := s.liveJobs(); got != 1 {
		t.Errorf("live jobs = %d, want 1", got)
	}
}

func TestInitSurvivesPreferenceLoadFailure(t *testing.T) {
	s, prefs, _, _ := newTestDigestScheduler(t)
	prefs.findErr = errors.New("db down")
	defer s.Stop()

	// The initial reconcile failure is logged, not fatal
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init() error: %v", err)
	}

	// The hourly reconciliation entry is registered
	if got := len(s.cron.Entries()); got != 1 {
		t.Errorf("cron entries = %d, want 1", got)
	}
}

func TestDayWindowCoversCalendarDay(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 30, 45, 0, time.UTC)
	window := DayWindow(now)

	if want := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC); !window.From.Equal(want) {
		t.Errorf("From = %v, want %v", window.From, want)
	}
	if want := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC); !window.To.Equal(want) {
		t.Errorf("To = %v, want %v", window.To, want)
	}
}
