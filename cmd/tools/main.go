// Package main implements the tracker CLI for operator tasks: minting JWTs,
// applying migrations and importing project workbooks.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"project-tracker-api/internal/config"
	"project-tracker-api/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

var logLevel string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tracker",
	Short: "Operator tools for the project tracker API",
	Long: `tracker groups the offline tasks of the project tracker API.
Configuration is read from the same environment variables (and optional .env
file) as the server.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(importCmd)
}

// setup loads configuration and a console logger for one command run
func setup() (*config.Config, *zap.Logger, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	logger, flush, err := logging.New(logging.Options{Level: level, Format: "console", File: cfg.LogFile})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, logger, flush, nil
}
