package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kolo-save/kolo/internal/config"
	"github.com/kolo-save/kolo/internal/infra"
	"github.com/kolo-save/kolo/internal/logging"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set")
		}
		return infra.Migrate(cfg.DatabaseURL, logging.New(cfg.LogLevel, cfg.LogFormat))
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
