package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/capstone/vsl/internal/bootstrap"
	"github.com/capstone/vsl/internal/caller"
	"github.com/capstone/vsl/internal/config"
	"github.com/capstone/vsl/internal/database"
	"github.com/capstone/vsl/internal/dictionary"
	"github.com/capstone/vsl/internal/indexsync"
	"github.com/capstone/vsl/internal/inference/python"
	"github.com/capstone/vsl/internal/pipeline"
	"github.com/capstone/vsl/internal/search/elasticsearch"
	"github.com/capstone/vsl/internal/server"
)

var configFile string

func main() {
	var debugMode bool
	rootCmd := &cobra.Command{
		Use:           "vsl-server",
		Short:         "Gesture recognition and dictionary search HTTP server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogger(debugMode)
			return loadDotEnv(".env")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
	rootCmd.Flags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug mode")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	app := bootstrap.New()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loadConfig() > %w", err)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("database.Open() > %w", err)
	}
	app.OnShutdown("database", func(ctx context.Context) error {
		return db.Close()
	})

	index := elasticsearch.NewFromConfig(cfg.Search)
	app.OnShutdown("search index", func(ctx context.Context) error {
		return index.Close()
	})
	if err := index.EnsureIndex(ctx); err != nil {
		// Search falls back to the store and reconciliation catches up once
		// the cluster is reachable.
		slog.Default().Warn("search index not ready, starting without it", "error", err)
	}

	synchronizer := indexsync.New(dictionary.NewDBRepository(db), index, indexsync.OptionsFromConfig(cfg.Sync))
	if err := synchronizer.Start(ctx); err != nil {
		return fmt.Errorf("synchronizer.Start() > %w", err)
	}
	app.OnShutdown("synchronizer", synchronizer.Stop)

	gestureCaller := caller.New("gesture", cfg.Inference.Gesture.BaseURL, cfg.Inference.Gesture.Timeout)
	accentCaller := caller.New("accent", cfg.Inference.Accent.BaseURL, cfg.Inference.Accent.Timeout)
	app.OnShutdown("inference clients", func(ctx context.Context) error {
		return errors.Join(gestureCaller.Close(), accentCaller.Close())
	})
	gesturePipeline := pipeline.New(python.NewGestureClient(gestureCaller), python.NewAccentClient(accentCaller))

	handler, err := server.NewHandler(gesturePipeline, synchronizer)
	if err != nil {
		return fmt.Errorf("server.NewHandler() > %w", err)
	}
	srv := server.NewHTTPServer(cfg.Server, handler)
	app.OnShutdown("http server", srv.Shutdown)

	return app.Run(ctx, func(ctx context.Context) error {
		slog.Default().Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
}

func loadConfig() (*config.Config, error) {
	loader, err := config.NewConfigLoader(configFile)
	if err != nil {
		return nil, fmt.Errorf("config.NewConfigLoader() > %w", err)
	}
	return loader.Load()
}

// loadDotEnv loads environment variables from path when the file exists.
// Variables already set in the environment win.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("godotenv.Load(%s) > %w", path, err)
	}
	return nil
}

// setupLogger configures the default logger based on debug mode
func setupLogger(debugMode bool) {
	logLevel := slog.LevelInfo
	if debugMode {
		logLevel = slog.LevelDebug
	}

	slog.SetDefault(
		slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		})),
	)
}
