// Package cmd implements the kisan command-line interface.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shuv1824/kisan/internal/config"
)

var (
	cfgFile string
	debug   bool

	rootCmd = &cobra.Command{
		Use:   "kisan",
		Short: "Crop disease risk service",
		Long:  `Kisan predicts crop disease risk from weather and leaf images and serves a disease knowledge base.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage: true,
	}
)

// Execute runs the root command
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $CONFIG_PATH or ./config.yml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd(), trainCmd(), versionCmd())
}

// loadConfig reads the configuration and installs the default logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	path := cfgFile
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.Log, debug)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// setupLogger uses a text handler at debug level in development and JSON
// otherwise.
func setupLogger(cfg config.LogConfig, debug bool) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	if debug {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
