package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/finchley/ragkit/internal/config"
	"github.com/finchley/ragkit/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations (postgres backend)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		if cfg.StorageBackend != config.StoragePostgres {
			return fmt.Errorf("storage backend is %q; migrations apply only to %q",
				cfg.StorageBackend, config.StoragePostgres)
		}

		if err := database.Migrate(cfg.PostgresConnectionString()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
