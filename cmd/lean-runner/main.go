// Package main runs the standalone backtest runner service that the Quail
// API polls in http runner mode.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/yourusername/quail/internal/config"
	"github.com/yourusername/quail/internal/leanrunner"
	"github.com/yourusername/quail/internal/logger"
)

var (
	cfgFile string
	port    int
	engine  string
)

var rootCmd = &cobra.Command{
	Use:          "lean-runner",
	Short:        "Backtest runner service for the Quail API",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept backtests over HTTP and report their status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "override lean_runner.port")
	serveCmd.Flags().StringVar(&engine, "engine", "", "override lean_runner.engine (simulate or process)")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWithDefaults(config.ResolvePath(cfgFile))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if port != 0 {
		cfg.LeanRunner.Port = port
	}
	if engine != "" {
		cfg.LeanRunner.Engine = engine
	}

	validator := config.NewValidator()
	if err := validator.ValidateStruct(cfg.LeanRunner); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.NewLogger(cfg.App.LogLevel, logger.FormatFor(cfg.App.Environment, cfg.App.LogFormat))

	eng, err := leanrunner.NewEngine(cfg.LeanRunner, cfg.Runner.Process, log)
	if err != nil {
		return err
	}

	srv := leanrunner.NewServer(cfg.LeanRunner, eng, log)
	if err := srv.Start(); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"port":   cfg.LeanRunner.Port,
		"engine": cfg.LeanRunner.Engine,
	}).Info("Runner service running")

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Runner service shutdown failed")
	}
	log.Info("Runner service shut down")
	return nil
}
