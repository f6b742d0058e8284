package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Tih000/max/internal/database"
	"github.com/Tih000/max/internal/maxapi"
	"github.com/Tih000/max/internal/models"
	"github.com/Tih000/max/internal/queue"
	"github.com/Tih000/max/internal/scheduler"
)

// fakeSender records replies
type fakeSender struct {
	sent []string
}

func (f *fakeSender) SendText(ctx context.Context, chatID int64, text string) error {
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeSender) last() string {
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}

// fakeCache marks messages as seen after first sight and holds member names
type fakeCache struct {
	seen  map[string]bool
	names map[string]string
	err   error
}

func (f *fakeCache) Seen(ctx context.Context, messageID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	was := f.seen[messageID]
	f.seen[messageID] = true
	return was, nil
}

func (f *fakeCache) CacheMemberName(ctx context.Context, chatID, userID int64, name string) error {
	if f.err != nil {
		return f.err
	}
	if f.names == nil {
		f.names = make(map[string]string)
	}
	f.names[memberKey(chatID, userID)] = name
	return nil
}

func (f *fakeCache) MemberName(ctx context.Context, chatID, userID int64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.names[memberKey(chatID, userID)], nil
}

func memberKey(chatID, userID int64) string {
	return fmt.Sprintf("%d:%d", chatID, userID)
}

// fakeJobQueue records enqueued jobs
type fakeJobQueue struct {
	jobs []*queue.Job
}

func (f *fakeJobQueue) Enqueue(ctx context.Context, job *queue.Job) error {
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeJobQueue) Consume(ctx context.Context, prefetch int) (<-chan *queue.Message, <-chan error, error) {
	return nil, nil, errors.New("not implemented")
}

func (f *fakeJobQueue) Close() error { return nil }

// fakeMessageRepo stores saved messages
type fakeMessageRepo struct {
	saved   []*models.ChatMessage
	saveErr error
}

func (f *fakeMessageRepo) Save(ctx context.Context, msg *models.ChatMessage) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, msg)
	return nil
}

func (f *fakeMessageRepo) GetByID(ctx context.Context, id string) (*models.ChatMessage, error) {
	return nil, database.ErrNotFound
}

func (f *fakeMessageRepo) ListRecent(ctx context.Context, chatID int64, limit int) ([]*models.ChatMessage, error) {
	return nil, nil
}

func (f *fakeMessageRepo) ListBetween(ctx context.Context, chatID int64, from, to time.Time) ([]*models.ChatMessage, error) {
	return nil, nil
}

// fakeTaskRepo serves a fixed open task list
type fakeTaskRepo struct {
	open     []*models.Task
	statuses map[uuid.UUID]models.TaskStatus
}

func (f *fakeTaskRepo) Upsert(ctx context.Context, task *models.Task) error { return nil }

func (f *fakeTaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return nil, database.ErrNotFound
}

func (f *fakeTaskRepo) ListByChat(ctx context.Context, chatID int64, status *models.TaskStatus) ([]*models.Task, error) {
	return f.open, nil
}

func (f *fakeTaskRepo) ListDueBetween(ctx context.Context, chatID int64, from, to time.Time) ([]*models.Task, error) {
	return nil, nil
}

func (f *fakeTaskRepo) SetStatus(ctx context.Context, id uuid.UUID, status models.TaskStatus) error {
	if f.statuses == nil {
		f.statuses = make(map[uuid.UUID]models.TaskStatus)
	}
	f.statuses[id] = status
	return nil
}

// fakeChatRepo is a minimal chat repository
type fakeChatRepo struct {
	chats    []*models.Chat
	replaced map[int64][]*models.ChatMember
}

func (f *fakeChatRepo) Upsert(ctx context.Context, chat *models.Chat) error {
	f.chats = append(f.chats, chat)
	return nil
}

func (f *fakeChatRepo) ListChats(ctx context.Context) ([]*models.Chat, error) {
	return f.chats, nil
}

func (f *fakeChatRepo) ReplaceMembers(ctx context.Context, chatID int64, members []*models.ChatMember) error {
	if f.replaced == nil {
		f.replaced = make(map[int64][]*models.ChatMember)
	}
	f.replaced[chatID] = members
	return nil
}

func (f *fakeChatRepo) ListMembers(ctx context.Context, chatID int64) ([]*models.ChatMember, error) {
	return nil, nil
}

func (f *fakeChatRepo) GetMember(ctx context.Context, chatID, userID int64) (*models.ChatMember, error) {
	return nil, database.ErrNotFound
}

// fakePrefRepo stores digest preferences
type fakePrefRepo struct {
	set     []*models.DigestPreference
	deleted []int64
}

func (f *fakePrefRepo) Set(ctx context.Context, pref *models.DigestPreference) error {
	f.set = append(f.set, pref)
	return nil
}

func (f *fakePrefRepo) Delete(ctx context.Context, chatID, userID int64) error {
	f.deleted = append(f.deleted, userID)
	return nil
}

func (f *fakePrefRepo) FindWithRecurrence(ctx context.Context) ([]*models.DigestPreference, error) {
	return nil, nil
}

// fakeReminders records scheduled reminders
type fakeReminders struct {
	scheduled []time.Time
	recipient *int64
}

func (f *fakeReminders) ScheduleReminder(ctx context.Context, task *models.Task, remindAt time.Time, recipient *int64) (*models.Reminder, error) {
	f.scheduled = append(f.scheduled, remindAt)
	f.recipient = recipient
	return &models.Reminder{ID: uuid.New(), TaskID: task.ID, RemindAt: remindAt}, nil
}

// fakeDigests records digest schedule operations
type fakeDigests struct {
	scheduled map[int64]string
	cancelled []int64
	err       error
}

func (f *fakeDigests) ScheduleDigest(chatID, userID int64, spec string, deliver scheduler.DigestDeliverFunc) error {
	if f.err != nil {
		return f.err
	}
	if f.scheduled == nil {
		f.scheduled = make(map[int64]string)
	}
	f.scheduled[userID] = spec
	return nil
}

func (f *fakeDigests) CancelDigest(chatID, userID int64) {
	f.cancelled = append(f.cancelled, userID)
}

// fakeUpdateSource is a scripted platform client
type fakeUpdateSource struct {
	members []maxapi.ChatMember
}

func (f *fakeUpdateSource) Me(ctx context.Context) (*maxapi.User, error) {
	return &maxapi.User{UserID: 999, Name: "assistant", IsBot: true}, nil
}

func (f *fakeUpdateSource) GetUpdates(ctx context.Context, marker int64, timeout time.Duration) (*maxapi.UpdateList, error) {
	return &maxapi.UpdateList{}, nil
}

func (f *fakeUpdateSource) GetChatMembers(ctx context.Context, chatID int64) ([]maxapi.ChatMember, error) {
	return f.members, nil
}

type botFixture struct {
	bot       *Bot
	cache     *fakeCache
	sender    *fakeSender
	msgRepo   *fakeMessageRepo
	taskRepo  *fakeTaskRepo
	chatRepo  *fakeChatRepo
	prefRepo  *fakePrefRepo
	jobs      *fakeJobQueue
	reminders *fakeReminders
	digests   *fakeDigests
}

func newBotFixture() *botFixture {
	f := &botFixture{
		cache:     &fakeCache{},
		sender:    &fakeSender{},
		msgRepo:   &fakeMessageRepo{},
		taskRepo:  &fakeTaskRepo{},
		chatRepo:  &fakeChatRepo{},
		prefRepo:  &fakePrefRepo{},
		jobs:      &fakeJobQueue{},
		reminders: &fakeReminders{},
		digests:   &fakeDigests{},
	}
	f.bot = New(
		&fakeUpdateSource{},
		f.sender,
		f.cache,
		f.msgRepo,
		f.taskRepo,
		f.chatRepo,
		f.prefRepo,
		f.jobs,
		f.reminders,
		f.digests,
		Config{ExportBaseURL: "https://bot.example.com"},
		zap.NewNop(),
	)
	return f
}

func chatMsg(text string) *maxapi.Message {
	return &maxapi.Message{
		Sender:    maxapi.User{UserID: 7, Name: "Anna"},
		Recipient: maxapi.Recipient{ChatID: 100},
		Timestamp: time.Now().UnixMilli(),
		Body:      maxapi.MessageBody{Mid: "mid." + text, Text: text},
	}
}

func TestHandleMessageIngestsPlainText(t *testing.T) {
	f := newBotFixture()

	f.bot.handleMessage(context.Background(), chatMsg("we need to ship by friday"))

	if len(f.msgRepo.saved) != 1 {
		t.Fatalf("expected message saved, got %d", len(f.msgRepo.saved))
	}
	if len(f.jobs.jobs) != 1 {
		t.Fatalf("expected extraction job enqueued, got %d", len(f.jobs.jobs))
	}
	if f.jobs.jobs[0].Type != queue.JobTypeExtractTasks {
		t.Errorf("expected extraction job, got %s", f.jobs.jobs[0].Type)
	}
}

func TestHandleMessageDedup(t *testing.T) {
	f := newBotFixture()
	msg := chatMsg("hello")

	f.bot.handleMessage(context.Background(), msg)
	f.bot.handleMessage(context.Background(), msg)

	if len(f.msgRepo.saved) != 1 {
		t.Errorf("expected duplicate to be dropped, saved %d", len(f.msgRepo.saved))
	}
}

func TestHandleMessageIgnoresBots(t *testing.T) {
	f := newBotFixture()
	msg := chatMsg("bot chatter")
	msg.Sender.IsBot = true

	f.bot.handleMessage(context.Background(), msg)

	if len(f.msgRepo.saved) != 0 {
		t.Error("expected bot message to be ignored")
	}
}

func TestHandleMessageSkipsEmptyText(t *testing.T) {
	f := newBotFixture()

	f.bot.handleMessage(context.Background(), chatMsg("   "))

	if len(f.msgRepo.saved) != 0 || len(f.jobs.jobs) != 0 {
		t.Error("expected empty message to be dropped")
	}
}

func TestCmdTasksListsOpenTasks(t *testing.T) {
	f := newBotFixture()
	due := time.Date(2026, 3, 16, 15, 0, 0, 0, time.UTC)
	f.taskRepo.open = []*models.Task{
		{ID: uuid.New(), Title: "ship release", DueAt: &due, AssigneeName: "Anna"},
		{ID: uuid.New(), Title: "write notes"},
	}

	f.bot.handleMessage(context.Background(), chatMsg("/tasks"))

	reply := f.sender.last()
	if !strings.Contains(reply, "1. ship release") || !strings.Contains(reply, "2. write notes") {
		t.Errorf("unexpected task listing: %q", reply)
	}
}

func TestCmdTasksEmpty(t *testing.T) {
	f := newBotFixture()

	f.bot.handleMessage(context.Background(), chatMsg("/tasks"))

	if !strings.Contains(f.sender.last(), "No open tasks") {
		t.Errorf("unexpected reply: %q", f.sender.last())
	}
}

func TestCmdDoneCompletesTask(t *testing.T) {
	f := newBotFixture()
	id := uuid.New()
	f.taskRepo.open = []*models.Task{{ID: id, Title: "ship release"}}

	f.bot.handleMessage(context.Background(), chatMsg("/done 1"))

	if f.taskRepo.statuses[id] != models.TaskStatusCompleted {
		t.Errorf("expected task completed, got %s", f.taskRepo.statuses[id])
	}
	if !strings.Contains(f.sender.last(), "Done") {
		t.Errorf("unexpected reply: %q", f.sender.last())
	}
}

func TestCmdDoneOutOfRange(t *testing.T) {
	f := newBotFixture()
	f.taskRepo.open = []*models.Task{{ID: uuid.New(), Title: "only one"}}

	f.bot.handleMessage(context.Background(), chatMsg("/done 5"))

	if len(f.taskRepo.statuses) != 0 {
		t.Error("no task should have been completed")
	}
	if !strings.Contains(f.sender.last(), "no task 5") {
		t.Errorf("unexpected reply: %q", f.sender.last())
	}
}

func TestCmdRemindSchedulesForSender(t *testing.T) {
	f := newBotFixture()
	f.taskRepo.open = []*models.Task{{ID: uuid.New(), Title: "ship release"}}

	f.bot.handleMessage(context.Background(), chatMsg("/remind 1 30m"))

	if len(f.reminders.scheduled) != 1 {
		t.Fatalf("expected reminder scheduled, got %d", len(f.reminders.scheduled))
	}
	if f.reminders.recipient == nil || *f.reminders.recipient != 7 {
		t.Errorf("expected reminder for sender 7, got %v", f.reminders.recipient)
	}
}

func TestCmdDigestSetAndOff(t *testing.T) {
	f := newBotFixture()

	f.bot.handleMessage(context.Background(), chatMsg("/digest 0 9 * * *"))
	if f.digests.scheduled[7] != "0 9 * * *" {
		t.Errorf("expected digest scheduled, got %v", f.digests.scheduled)
	}
	if len(f.prefRepo.set) != 1 || f.prefRepo.set[0].CronSpec != "0 9 * * *" {
		t.Errorf("expected preference persisted, got %+v", f.prefRepo.set)
	}

	f.bot.handleMessage(context.Background(), chatMsg("/digest off"))
	if len(f.digests.cancelled) != 1 || f.digests.cancelled[0] != 7 {
		t.Errorf("expected digest cancelled for user 7, got %v", f.digests.cancelled)
	}
	if len(f.prefRepo.deleted) != 1 {
		t.Errorf("expected preference deleted, got %v", f.prefRepo.deleted)
	}
}

func TestCmdDigestDailyShorthand(t *testing.T) {
	f := newBotFixture()

	f.bot.handleMessage(context.Background(), chatMsg("/digest daily"))

	if f.digests.scheduled[7] != dailyDigestSpec {
		t.Errorf("expected daily shorthand expansion, got %v", f.digests.scheduled)
	}
}

func TestCmdDigestInvalidSpec(t *testing.T) {
	f := newBotFixture()
	f.digests.err = errors.New("invalid cron expression")

	f.bot.handleMessage(context.Background(), chatMsg("/digest not a cron"))

	if len(f.prefRepo.set) != 0 {
		t.Error("invalid spec must not be persisted")
	}
	if !strings.Contains(f.sender.last(), "not a valid schedule") {
		t.Errorf("unexpected reply: %q", f.sender.last())
	}
}

func TestCmdAskEnqueuesJob(t *testing.T) {
	f := newBotFixture()

	f.bot.handleMessage(context.Background(), chatMsg("/ask what is due today?"))

	if len(f.jobs.jobs) != 1 {
		t.Fatalf("expected answer job enqueued, got %d", len(f.jobs.jobs))
	}
	job := f.jobs.jobs[0]
	if job.Type != queue.JobTypeAnswerQuestion {
		t.Errorf("expected answer job, got %s", job.Type)
	}
	if job.Question != "what is due today?" {
		t.Errorf("unexpected question: %q", job.Question)
	}
}

func TestCmdExportBuildsURL(t *testing.T) {
	f := newBotFixture()

	f.bot.handleMessage(context.Background(), chatMsg("/export ics"))

	if !strings.Contains(f.sender.last(), "https://bot.example.com/api/v1/export/100.ics") {
		t.Errorf("unexpected reply: %q", f.sender.last())
	}
}

func TestUnknownCommandShowsUsage(t *testing.T) {
	f := newBotFixture()

	f.bot.handleMessage(context.Background(), chatMsg("/frobnicate"))

	if !strings.Contains(f.sender.last(), "Unknown command") {
		t.Errorf("unexpected reply: %q", f.sender.last())
	}
}

func TestCommandWithBotMention(t *testing.T) {
	f := newBotFixture()

	f.bot.handleMessage(context.Background(), chatMsg("/tasks@assistant"))

	if !strings.Contains(f.sender.last(), "No open tasks") {
		t.Errorf("expected mention suffix to be stripped, got %q", f.sender.last())
	}
}

func TestSyncChatMembersSkipsBots(t *testing.T) {
	f := newBotFixture()
	f.bot.client = &fakeUpdateSource{members: []maxapi.ChatMember{
		{User: maxapi.User{UserID: 7, Name: "Anna"}},
		{User: maxapi.User{UserID: 999, Name: "assistant", IsBot: true}},
	}}

	f.bot.syncChatMembers(context.Background(), 100)

	members := f.chatRepo.replaced[100]
	if len(members) != 1 || members[0].UserID != 7 {
		t.Errorf("expected only human members stored, got %+v", members)
	}
}

func TestSyncChatMembersCachesNames(t *testing.T) {
	f := newBotFixture()
	f.bot.client = &fakeUpdateSource{members: []maxapi.ChatMember{
		{User: maxapi.User{UserID: 7, Name: "Anna Petrova"}},
	}}

	f.bot.syncChatMembers(context.Background(), 100)

	name, err := f.cache.MemberName(context.Background(), 100, 7)
	if err != nil {
		t.Fatalf("MemberName() error: %v", err)
	}
	if name != "Anna Petrova" {
		t.Errorf("cached name = %q, want %q", name, "Anna Petrova")
	}
}

func TestHandleMessageSenderNameFromCache(t *testing.T) {
	f := newBotFixture()
	if err := f.cache.CacheMemberName(context.Background(), 100, 7, "Anna Petrova"); err != nil {
		t.Fatalf("CacheMemberName() error: %v", err)
	}

	msg := chatMsg("need to order the cake")
	msg.Sender.Name = ""
	f.bot.handleMessage(context.Background(), msg)

	if len(f.msgRepo.saved) != 1 {
		t.Fatalf("expected message saved, got %d", len(f.msgRepo.saved))
	}
	if got := f.msgRepo.saved[0].SenderName; got != "Anna Petrova" {
		t.Errorf("sender name = %q, want cached fallback", got)
	}
}

func TestParseRemindTime(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{"duration", "30m", now.Add(30 * time.Minute), false},
		{"clock later today", "15:04", time.Date(2026, 3, 14, 15, 4, 0, 0, time.UTC), false},
		{"clock already past rolls over", "09:00", time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC), false},
		{"absolute", "2026-04-01 10:30", time.Date(2026, 4, 1, 10, 30, 0, 0, time.UTC), false},
		{"garbage", "next tuesday-ish", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRemindTime(tt.input, now)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseRemindTime failed: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
