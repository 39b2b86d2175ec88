package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskpilot/core/cmd/api/commands"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "taskpilot",
		Short: "TaskPilot API Server",
		Long:  `TaskPilot is a personal task manager with recurring tasks and email/SMS due-date reminders.`,
	}

	// Add commands
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewMigrateCommand())
	rootCmd.AddCommand(commands.NewNotifyCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		log.Printf("Command execution failed: %v", err)
		os.Exit(1)
	}
}
