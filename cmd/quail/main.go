// Package main is the Quail API command: it serves the REST API, applies
// database migrations and runs one-off reconciliation.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/yourusername/quail/internal/config"
	"github.com/yourusername/quail/internal/logger"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "quail",
	Short: "Quail - trading strategy backtesting API",
	Long: `Quail stores trading strategies and runs their backtests on an external
LEAN runner, recording results and performance metrics per user.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default $QUAIL_CONFIG_PATH or config/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// bootstrap loads the configuration, overlays AWS secrets, validates the
// result and builds the application logger
func bootstrap(ctx context.Context) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.LoadWithDefaults(config.ResolvePath(cfgFile))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := config.LoadSecretsFromAWS(ctx, cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to load secrets: %w", err)
	}

	if err := config.Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level := cfg.App.LogLevel
	if debug {
		level = "debug"
	}
	log := logger.NewLogger(level, logger.FormatFor(cfg.App.Environment, cfg.App.LogFormat))
	log.WithFields(logrus.Fields{
		"environment": cfg.App.Environment,
		"version":     Version,
	}).Debug("Configuration loaded")

	return cfg, log, nil
}
