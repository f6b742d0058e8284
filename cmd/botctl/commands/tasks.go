package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Tih000/max/internal/database"
	"github.com/Tih000/max/internal/models"
)

// NewTasksCmd creates the tasks command with list and complete subcommands
func NewTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect and update tasks",
	}
	cmd.AddCommand(newTasksListCmd())
	cmd.AddCommand(newTasksCompleteCmd())
	return cmd
}

func newTasksListCmd() *cobra.Command {
	var chatID int64
	var statusStr string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks in a chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore()
			if err != nil {
				return err
			}
			defer func() {
				_ = db.Close()
			}()

			var status *models.TaskStatus
			if statusStr != "" {
				s := models.TaskStatus(statusStr)
				status = &s
			}

			repo := database.NewTaskRepository(db)
			tasks, err := repo.ListByChat(context.Background(), chatID, status)
			if err != nil {
				return fmt.Errorf("list tasks: %w", err)
			}
			if len(tasks) == 0 {
				fmt.Println("No tasks.")
				return nil
			}
			for _, t := range tasks {
				due := "-"
				if t.DueAt != nil {
					due = t.DueAt.Format("2006-01-02 15:04")
				}
				fmt.Printf("%s  [%s/%s]  due=%s  %s\n", t.ID, t.Status, t.Priority, due, t.Title)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&chatID, "chat", 0, "chat ID (required)")
	cmd.Flags().StringVar(&statusStr, "status", "", "filter by status (open, completed, cancelled)")
	_ = cmd.MarkFlagRequired("chat")
	return cmd
}

func newTasksCompleteCmd() *cobra.Command {
	var idStr string
	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Mark a task completed",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(idStr)
			if err != nil {
				return fmt.Errorf("invalid task id: %w", err)
			}

			db, err := openStore()
			if err != nil {
				return err
			}
			defer func() {
				_ = db.Close()
			}()

			repo := database.NewTaskRepository(db)
			if err := repo.SetStatus(context.Background(), id, models.TaskStatusCompleted); err != nil {
				return fmt.Errorf("complete task: %w", err)
			}
			fmt.Printf("Task %s completed.\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&idStr, "id", "", "task ID (required)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
