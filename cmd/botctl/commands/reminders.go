package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Tih000/max/internal/database"
)

// NewRemindersCmd creates the reminders command with pending and delivered subcommands
func NewRemindersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Inspect and update reminders",
	}
	cmd.AddCommand(newRemindersPendingCmd())
	cmd.AddCommand(newRemindersDeliveredCmd())
	return cmd
}

func newRemindersPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List all undelivered reminders",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore()
			if err != nil {
				return err
			}
			defer func() {
				_ = db.Close()
			}()

			repo := database.NewReminderRepository(db)
			reminders, tasks, err := repo.FindDueUndelivered(context.Background(), time.Unix(0, 0))
			if err != nil {
				return fmt.Errorf("list reminders: %w", err)
			}
			if len(reminders) == 0 {
				fmt.Println("No pending reminders.")
				return nil
			}
			for i, rem := range reminders {
				title := "-"
				if i < len(tasks) && tasks[i] != nil {
					title = tasks[i].Title
				}
				fmt.Printf("%s  at=%s  recipient=%d  %s\n", rem.ID, rem.RemindAt.Format(time.RFC3339), rem.RecipientID, title)
			}
			return nil
		},
	}
}

func newRemindersDeliveredCmd() *cobra.Command {
	var idStr string
	cmd := &cobra.Command{
		Use:   "delivered",
		Short: "Mark a reminder delivered",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(idStr)
			if err != nil {
				return fmt.Errorf("invalid reminder id: %w", err)
			}

			db, err := openStore()
			if err != nil {
				return err
			}
			defer func() {
				_ = db.Close()
			}()

			repo := database.NewReminderRepository(db)
			marked, err := repo.MarkDelivered(context.Background(), id)
			if err != nil {
				return fmt.Errorf("mark delivered: %w", err)
			}
			if !marked {
				fmt.Printf("Reminder %s was already delivered or does not exist.\n", id)
				return nil
			}
			fmt.Printf("Reminder %s marked delivered.\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&idStr, "id", "", "reminder ID (required)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
