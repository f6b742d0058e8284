package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/Tih000/max/internal/database"
	"github.com/Tih000/max/internal/models"
)

// NewDigestsCmd creates the digests command with list, set and off subcommands
func NewDigestsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "digests",
		Short: "Manage digest subscriptions",
	}
	cmd.AddCommand(newDigestsListCmd())
	cmd.AddCommand(newDigestsSetCmd())
	cmd.AddCommand(newDigestsOffCmd())
	return cmd
}

func newDigestsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all digest subscriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore()
			if err != nil {
				return err
			}
			defer func() {
				_ = db.Close()
			}()

			repo := database.NewDigestPreferenceRepository(db)
			prefs, err := repo.FindWithRecurrence(context.Background())
			if err != nil {
				return fmt.Errorf("list digests: %w", err)
			}
			if len(prefs) == 0 {
				fmt.Println("No digest subscriptions.")
				return nil
			}
			for _, p := range prefs {
				fmt.Printf("chat=%d  user=%d  spec=%q  updated=%s\n",
					p.ChatID, p.UserID, p.CronSpec, p.UpdatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func newDigestsSetCmd() *cobra.Command {
	var chatID, userID int64
	var spec string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set a digest schedule for a chat and user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := cron.ParseStandard(spec); err != nil {
				return fmt.Errorf("invalid cron spec %q: %w", spec, err)
			}

			db, err := openStore()
			if err != nil {
				return err
			}
			defer func() {
				_ = db.Close()
			}()

			repo := database.NewDigestPreferenceRepository(db)
			pref := &models.DigestPreference{
				ChatID:   chatID,
				UserID:   userID,
				CronSpec: spec,
			}
			if err := repo.Set(context.Background(), pref); err != nil {
				return fmt.Errorf("set digest: %w", err)
			}
			fmt.Printf("Digest for chat=%d user=%d set to %q.\n", chatID, userID, spec)
			return nil
		},
	}
	cmd.Flags().Int64Var(&chatID, "chat", 0, "chat ID (required)")
	cmd.Flags().Int64Var(&userID, "user", 0, "user ID (required)")
	cmd.Flags().StringVar(&spec, "spec", "", "cron spec, e.g. \"0 9 * * *\" (required)")
	_ = cmd.MarkFlagRequired("chat")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("spec")
	return cmd
}

func newDigestsOffCmd() *cobra.Command {
	var chatID, userID int64
	cmd := &cobra.Command{
		Use:   "off",
		Short: "Remove a digest subscription",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore()
			if err != nil {
				return err
			}
			defer func() {
				_ = db.Close()
			}()

			repo := database.NewDigestPreferenceRepository(db)
			if err := repo.Delete(context.Background(), chatID, userID); err != nil {
				return fmt.Errorf("delete digest: %w", err)
			}
			fmt.Printf("Digest for chat=%d user=%d removed.\n", chatID, userID)
			return nil
		},
	}
	cmd.Flags().Int64Var(&chatID, "chat", 0, "chat ID (required)")
	cmd.Flags().Int64Var(&userID, "user", 0, "user ID (required)")
	_ = cmd.MarkFlagRequired("chat")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
