package handlers

import (
	"fmt"

	"github.com/spf13/cobra"

	"top3hunter/internal/config"
	"top3hunter/internal/configstore"
	"top3hunter/internal/logger"
)

// NewSeedCmd creates the seed command for loading default configuration values
func NewSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the default configuration entries",
		Long: `Insert the default prompts, tool definition, and API key placeholders
into the configuration table.

Existing values are never overwritten, so seeding a configured
installation only fills in entries that were deleted. Replace the
placeholder API keys through the admin API before running searches.`,
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

			created, err := store.Seed(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to seed configuration: %w", err)
			}

			log.Info("Default configuration seeded", "created", created)
			fmt.Printf("Seeded %d configuration entries (%d already present)\n",
				created, len(configstore.DefaultConfigurations)-created)
			return nil
		},
	}
}
