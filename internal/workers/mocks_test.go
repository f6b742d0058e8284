package workers

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Tih000/max/internal/database"
	"github.com/Tih000/max/internal/models"
	"github.com/Tih000/max/internal/services/ai"
)

// mockProvider is a mock implementation of ai.Provider
type mockProvider struct {
	extractTasksFunc   func(ctx context.Context, msg *models.ChatMessage) ([]ai.ExtractedTask, error)
	answerQuestionFunc func(ctx context.Context, question string, history []*models.ChatMessage) (string, error)
}

func (m *mockProvider) ExtractTasks(ctx context.Context, msg *models.ChatMessage) ([]ai.ExtractedTask, error) {
	if m.extractTasksFunc != nil {
		return m.extractTasksFunc(ctx, msg)
	}
	return nil, nil
}

func (m *mockProvider) AnswerQuestion(ctx context.Context, question string, history []*models.ChatMessage) (string, error) {
	if m.answerQuestionFunc != nil {
		return m.answerQuestionFunc(ctx, question, history)
	}
	return "answer", nil
}

func (m *mockProvider) SummarizeDigest(ctx context.Context, chatTitle string, tasks []*models.Task, msgs []*models.ChatMessage) (string, error) {
	return "", errors.New("not implemented")
}

var _ ai.Provider = (*mockProvider)(nil)

// mockMessageRepo is a mock implementation of MessageRepositoryInterface
type mockMessageRepo struct {
	getByIDFunc    func(ctx context.Context, id string) (*models.ChatMessage, error)
	listRecentFunc func(ctx context.Context, chatID int64, limit int) ([]*models.ChatMessage, error)
}

func (m *mockMessageRepo) Save(ctx context.Context, msg *models.ChatMessage) error { return nil }

func (m *mockMessageRepo) GetByID(ctx context.Context, id string) (*models.ChatMessage, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return &models.ChatMessage{
		ID:       id,
		ChatID:   100,
		SenderID: 1,
		Text:     "test message",
		SentAt:   time.Now(),
	}, nil
}

func (m *mockMessageRepo) ListRecent(ctx context.Context, chatID int64, limit int) ([]*models.ChatMessage, error) {
	if m.listRecentFunc != nil {
		return m.listRecentFunc(ctx, chatID, limit)
	}
	return nil, nil
}

func (m *mockMessageRepo) ListBetween(ctx context.Context, chatID int64, from, to time.Time) ([]*models.ChatMessage, error) {
	return nil, nil
}

var _ database.MessageRepositoryInterface = (*mockMessageRepo)(nil)

// mockTaskRepo is a mock implementation of TaskRepositoryInterface
type mockTaskRepo struct {
	upserted   []*models.Task
	upsertFunc func(ctx context.Context, task *models.Task) error
}

func (m *mockTaskRepo) Upsert(ctx context.Context, task *models.Task) error {
	if m.upsertFunc != nil {
		if err := m.upsertFunc(ctx, task); err != nil {
			return err
		}
	}
	m.upserted = append(m.upserted, task)
	return nil
}

func (m *mockTaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return nil, database.ErrNotFound
}

func (m *mockTaskRepo) ListByChat(ctx context.Context, chatID int64, status *models.TaskStatus) ([]*models.Task, error) {
	return nil, nil
}

func (m *mockTaskRepo) ListDueBetween(ctx context.Context, chatID int64, from, to time.Time) ([]*models.Task, error) {
	return nil, nil
}

func (m *mockTaskRepo) SetStatus(ctx context.Context, id uuid.UUID, status models.TaskStatus) error {
	return nil
}

var _ database.TaskRepositoryInterface = (*mockTaskRepo)(nil)

// mockChatRepo is a mock implementation of ChatRepositoryInterface
type mockChatRepo struct {
	members         []*models.ChatMember
	listMembersFunc func(ctx context.Context, chatID int64) ([]*models.ChatMember, error)
}

func (m *mockChatRepo) Upsert(ctx context.Context, chat *models.Chat) error { return nil }

func (m *mockChatRepo) ListChats(ctx context.Context) ([]*models.Chat, error) { return nil, nil }

func (m *mockChatRepo) ReplaceMembers(ctx context.Context, chatID int64, members []*models.ChatMember) error {
	return nil
}

func (m *mockChatRepo) ListMembers(ctx context.Context, chatID int64) ([]*models.ChatMember, error) {
	if m.listMembersFunc != nil {
		return m.listMembersFunc(ctx, chatID)
	}
	return m.members, nil
}

func (m *mockChatRepo) GetMember(ctx context.Context, chatID, userID int64) (*models.ChatMember, error) {
	for _, member := range m.members {
		if member.ChatID == chatID && member.UserID == userID {
			return member, nil
		}
	}
	return nil, database.ErrNotFound
}

var _ database.ChatRepositoryInterface = (*mockChatRepo)(nil)

// mockReminderScheduler records scheduled reminders
type mockReminderScheduler struct {
	scheduled   []scheduledCall
	scheduleErr error
}

type scheduledCall struct {
	task     *models.Task
	remindAt time.Time
}

func (m *mockReminderScheduler) ScheduleReminder(ctx context.Context, task *models.Task, remindAt time.Time, recipient *int64) (*models.Reminder, error) {
	if m.scheduleErr != nil {
		return nil, m.scheduleErr
	}
	m.scheduled = append(m.scheduled, scheduledCall{task: task, remindAt: remindAt})
	return &models.Reminder{ID: uuid.New(), TaskID: task.ID, RemindAt: remindAt}, nil
}

var _ ReminderScheduling = (*mockReminderScheduler)(nil)

// mockSender records sent messages
type mockSender struct {
	sent    []sentMessage
	sendErr error
}

type sentMessage struct {
	chatID int64
	text   string
}

func (m *mockSender) SendText(ctx context.Context, chatID int64, text string) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

var _ ChatSender = (*mockSender)(nil)
