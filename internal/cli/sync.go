package cli

import (
	"github.com/spf13/cobra"

	"github.com/ebdekock/StaffSlackBot/internal/app"
)

// NewSyncCommand performs a one-off roster sync and exits.
func NewSyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Sync the user directory from Slack and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			return app.New(cfg, log).SyncOnce(cmd.Context())
		},
	}
}
