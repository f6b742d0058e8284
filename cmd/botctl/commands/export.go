package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tih000/max/internal/database"
	"github.com/Tih000/max/internal/export"
)

// NewExportCmd creates the export command which writes a chat's tasks to a file
func NewExportCmd() *cobra.Command {
	var chatID int64
	var format, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a chat's tasks to an ICS or XLSX file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "ics" && format != "xlsx" {
				return fmt.Errorf("unsupported format %q (must be 'ics' or 'xlsx')", format)
			}
			if out == "" {
				out = fmt.Sprintf("tasks-%d.%s", chatID, format)
			}

			db, err := openStore()
			if err != nil {
				return err
			}
			defer func() {
				_ = db.Close()
			}()

			ctx := context.Background()
			tasks, err := database.NewTaskRepository(db).ListByChat(ctx, chatID, nil)
			if err != nil {
				return fmt.Errorf("list tasks: %w", err)
			}

			var data []byte
			switch format {
			case "ics":
				title := chatTitle(ctx, db, chatID)
				cal, err := export.TasksToICS(title, tasks)
				if err != nil {
					return fmt.Errorf("build calendar: %w", err)
				}
				data = []byte(cal)
			case "xlsx":
				data, err = export.TasksToXLSX(tasks)
				if err != nil {
					return fmt.Errorf("build workbook: %w", err)
				}
			}

			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Printf("Exported %d tasks to %s.\n", len(tasks), out)
			return nil
		},
	}
	cmd.Flags().Int64Var(&chatID, "chat", 0, "chat ID (required)")
	cmd.Flags().StringVar(&format, "format", "ics", "output format (ics or xlsx)")
	cmd.Flags().StringVar(&out, "out", "", "output file (default tasks-<chat>.<format>)")
	_ = cmd.MarkFlagRequired("chat")
	return cmd
}

func chatTitle(ctx context.Context, db *database.DB, chatID int64) string {
	chats, err := database.NewChatRepository(db).ListChats(ctx)
	if err != nil {
		return ""
	}
	for _, c := range chats {
		if c.ID == chatID {
			return c.Title
		}
	}
	return ""
}
