package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"top3hunter/internal/cache"
	"top3hunter/internal/config"
	"top3hunter/internal/configstore"
	"top3hunter/internal/logger"
	"top3hunter/internal/pipeline"
	"top3hunter/internal/server"
)

// NewServeCmd creates the serve command for starting the HTTP server
func NewServeCmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the recommendation HTTP server",
		Long: `Start the Top3 Hunter API server.

The server provides:
  • POST /api/v1/search for keyword recommendations
  • Admin endpoints for runtime configuration (behind JWT)
  • Health check endpoints

Run 'top3hunter migrate' once to create the configuration table, and
'top3hunter seed' to load the default prompts and placeholders.

Examples:
  # Start server on default port 8000
  top3hunter serve

  # Start on custom port
  top3hunter serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port, host)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default from config: 8000)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (default from config: 0.0.0.0)")

	return cmd
}

func runServe(ctx context.Context, port int, host string) error {
	log := logger.Get()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.SetLevel(cfg.App.LogLevel)

	// Override server config from flags if provided
	if port != 0 {
		cfg.Server.Port = port
	}
	if host != "" {
		cfg.Server.Host = host
	}

	log.Info("Connecting to database")
	store, err := configstore.New(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w\n\n"+
			"Make sure PostgreSQL is running and TOP3_DATABASE_URL is correct", err)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	cacheClient := cache.New(cfg.Redis)
	defer cacheClient.Close()
	if err := cacheClient.Ping(ctx); err != nil {
		// The pipeline degrades to uncached operation, so this is not fatal
		log.Warn("Redis is unreachable, continuing without cache", "error", err.Error())
	} else {
		log.Info("Cache connection successful")
	}

	pipe := pipeline.New(cacheClient, store, pipeline.Options{
		SearchTimeout: cfg.Search.Timeout,
		LLMTimeout:    cfg.LLM.Timeout,
		ResponseTTL:   cfg.Cache.ResponseTTL,
		ConfigTTL:     cfg.Cache.ConfigTTL,
		MaxResults:    cfg.Search.MaxResults,
		Language:      cfg.Search.Language,
		Region:        cfg.Search.Region,
	})

	srv := server.New(pipe, store, cacheClient, cfg)

	// Channel to listen for errors coming from the server
	serverErrors := make(chan error, 1)

	go func() {
		log.Info(fmt.Sprintf("Server listening on http://%s:%d", cfg.Server.Host, cfg.Server.Port))
		log.Info("Press Ctrl+C to stop")
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Info("Server shutdown initiated", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		log.Info("Server stopped successfully")
	}

	return nil
}
