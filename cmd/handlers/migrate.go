package handlers

import (
	"fmt"

	"github.com/spf13/cobra"

	"top3hunter/internal/config"
	"top3hunter/internal/configstore"
	"top3hunter/internal/logger"
)

// NewMigrateCmd creates the migrate command for initializing the database schema
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the configuration table",
		Long: `Create the configurations table and its indexes if they do not exist.

The migration is idempotent; running it against an up-to-date database
is a no-op.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.Get()

			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			store, err := configstore.New(cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer store.Close()

			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}

			log.Info("Database schema is up to date")
			fmt.Println("Migration complete")
			return nil
		},
	}
}
