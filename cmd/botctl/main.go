package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tih000/max/cmd/botctl/commands"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "botctl",
		Short: "Admin tool for the max assistant bot",
		Long:  "CLI tool for inspecting tasks, reminders, and digest schedules directly in the store",
	}

	rootCmd.AddCommand(commands.NewTasksCmd())
	rootCmd.AddCommand(commands.NewRemindersCmd())
	rootCmd.AddCommand(commands.NewDigestsCmd())
	rootCmd.AddCommand(commands.NewExportCmd())
	rootCmd.AddCommand(commands.NewMigrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
