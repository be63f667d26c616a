// Package cli defines the staffbot command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ebdekock/StaffSlackBot/internal/config"
	"github.com/ebdekock/StaffSlackBot/internal/logger"
)

// NewRootCommand creates the root command for the staffbot CLI.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "staffbot",
		Short:         "Slack bot that quizzes staff on each other's faces",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewSyncCommand())

	return cmd
}

// setup loads configuration and builds the logger shared by all commands.
func setup() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, fmt.Errorf("config: %w", err)
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return cfg, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, log, nil
}
