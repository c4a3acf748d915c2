package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/answerdesk/internal/cli/config"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Long: `Apply all pending migrations to the configured database.

Other commands migrate automatically; run this before deploying a new
version to upgrade the schema ahead of time.`,
		Example: `  answerdesk migrate --database /var/lib/answerdesk/qa.db`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := getConfig()
			store, err := openStore(cfg, config.GetLogger(cmd.Context()))
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			version, err := store.GetMigrationVersion()
			if err != nil {
				return fmt.Errorf("failed to read schema version: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Database %s is at schema version %d\n", cfg.Database, version)
			return nil
		},
	}
}
