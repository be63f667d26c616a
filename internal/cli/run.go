package cli

import (
	"github.com/spf13/cobra"

	"github.com/ebdekock/StaffSlackBot/internal/app"
)

// NewRunCommand starts the bot's three loops and blocks until shutdown.
func NewRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bot (poller, processor and scheduler)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			return app.New(cfg, log).Run(cmd.Context())
		},
	}
}
