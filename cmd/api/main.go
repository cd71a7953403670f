package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskvault/core/cmd/api/commands"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "taskvault",
		Short: "TaskVault API Server",
		Long:  `TaskVault is a multi-user task tracker with cookie-based token authentication and field-level encryption of task descriptions.`,
	}

	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewMigrateCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		log.Printf("Command execution failed: %v", err)
		os.Exit(1)
	}
}
