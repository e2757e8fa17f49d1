package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relaydesk/relaydesk/db"
	"github.com/relaydesk/relaydesk/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
