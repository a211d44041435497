package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lamim/storyforge/internal/api"
	"github.com/lamim/storyforge/internal/config"
	"github.com/lamim/storyforge/internal/metrics"
	"github.com/lamim/storyforge/internal/store"
	"github.com/lamim/storyforge/internal/writer"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	configPath string
	envFile    string
	outputDir  string
	logLevel   string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "storyforge",
		Short: "StoryForge - long-form narrated story generator",
		Long: `StoryForge plans, writes, translates and edits multi-chapter stories with LLMs,
keeps them in a local library and turns them into narrated videos.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnv()
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.toml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to environment file")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output", writer.DefaultOutputDir, "Directory holding session folders")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Console log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newRefineCmd())
	rootCmd.AddCommand(newProduceCmd())
	rootCmd.AddCommand(newLibraryCmd())
	rootCmd.AddCommand(newCheckpointCmd())
	rootCmd.AddCommand(newServeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadEnv loads the env file when present. Variables already set in the environment win.
func loadEnv() error {
	if envFile == "" {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		fmt.Fprintf(os.Stderr, "Warning: failed to load env file: %v\n", err)
		return nil
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "Loaded env file: %s\n", envFile)
	}
	return nil
}

func consoleLevel() slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	level, err := writer.ParseLevel(logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v, using info\n", err)
	}
	return level
}

// consoleLogger is used by commands that do not own a session directory
func consoleLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: consoleLevel()}))
}

// newAPIClient builds the shared HTTP client with provider rate limits and metrics
func newAPIClient(cfg *config.Config, logger *slog.Logger, m *metrics.Collector) *api.Client {
	pool := api.NewRateLimiterPool(cfg.ProviderRateLimits, cfg.ProviderBurstPercent)
	if len(cfg.ProviderRateLimits) > 0 {
		logger.Info("Provider rate limits configured", "providers", cfg.ProviderRateLimits, "burst_percent", cfg.ProviderBurstPercent)
	}
	client := api.NewClient(logger, pool)
	client.SetMetrics(m)
	return client
}

func openStore(cfg *config.Config) (*store.SQLiteStore, error) {
	st, err := store.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open story library: %w", err)
	}
	return st, nil
}
