package bot

import (
	"context"
	"fmt"

	"github.com/Tih000/max/internal/maxapi"
	"github.com/Tih000/max/internal/models"
	"github.com/Tih000/max/internal/scheduler"
	"github.com/Tih000/max/internal/workers"
)

// Sender adapts the platform client to the delivery interfaces the
// schedulers and workers consume.
type Sender struct {
	client *maxapi.Client
}

// NewSender creates a sender over the platform client
func NewSender(client *maxapi.Client) *Sender {
	return &Sender{client: client}
}

// SendText posts text into a chat
func (s *Sender) SendText(ctx context.Context, chatID int64, text string) error {
	_, err := s.client.SendMessage(ctx, chatID, text)
	return err
}

// SendToUser sends text to a user's dialog with the bot
func (s *Sender) SendToUser(ctx context.Context, userID int64, text string) error {
	_, err := s.client.SendToUser(ctx, userID, text)
	return err
}

// Deliver sends a fired reminder to its recipient
func (s *Sender) Deliver(ctx context.Context, task *models.Task, reminder *models.Reminder) error {
	return s.SendToUser(ctx, reminder.RecipientID, reminderText(task))
}

func reminderText(task *models.Task) string {
	text := fmt.Sprintf("Reminder: %s", task.Title)
	if task.DueAt != nil {
		text += fmt.Sprintf("\nDue %s", task.DueAt.Format("Mon 2 Jan 15:04"))
	}
	if task.Description != "" {
		text += "\n" + task.Description
	}
	return text
}

var (
	_ scheduler.DeliveryHandler = (*Sender)(nil)
	_ scheduler.DigestSender    = (*Sender)(nil)
	_ workers.ChatSender        = (*Sender)(nil)
)
