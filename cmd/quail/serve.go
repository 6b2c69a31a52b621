package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/yourusername/quail/internal/api"
	"github.com/yourusername/quail/internal/archive"
	"github.com/yourusername/quail/internal/auth"
	"github.com/yourusername/quail/internal/config"
	"github.com/yourusername/quail/internal/database"
	"github.com/yourusername/quail/internal/health"
	"github.com/yourusername/quail/internal/metrics"
	"github.com/yourusername/quail/internal/repository"
	"github.com/yourusername/quail/internal/runner"
	"github.com/yourusername/quail/internal/scheduler"
	"github.com/yourusername/quail/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the REST API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log, err := bootstrap(ctx)
	if err != nil {
		return err
	}

	db, err := database.Initialize(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	repos, err := repository.NewRepositories(db)
	if err != nil {
		return fmt.Errorf("failed to create repositories: %w", err)
	}

	backtestRunner, err := runner.New(cfg.Runner, log)
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}

	store, err := archive.New(ctx, cfg.Archive)
	if err != nil {
		return fmt.Errorf("failed to create result archive: %w", err)
	}

	metrics.InitRegistry()

	events := service.NewEventBus(0, log)
	tokens := auth.NewTokenManager(cfg.Auth)
	authService := service.NewAuthService(repos, tokens, auth.NewPasswordHasher(cfg.Auth.BcryptCost), log)
	strategyService := service.NewStrategyService(repos, store, log)
	backtestService := service.NewBacktestService(repos, backtestRunner, store, events, cfg.Backtest, log)

	apiServer := api.NewServer(api.Deps{
		Config:     cfg,
		Auth:       authService,
		Strategies: strategyService,
		Backtests:  backtestService,
		Events:     events,
		Tokens:     tokens,
		Logger:     log,
	})

	healthServer := newHealthServer(cfg, log, db, backtestRunner)
	if healthServer != nil {
		if err := healthServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start health server: %w", err)
		}
	}

	metricsServer := startMetricsServer(cfg.Metrics, log)

	jobs, err := startScheduler(ctx, cfg.Sweeper, backtestService, repos.Token, log)
	if err != nil {
		return err
	}

	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	if healthServer != nil {
		healthServer.SetReady(true)
	}

	log.WithFields(logrus.Fields{
		"addr":           cfg.ServerAddr(),
		"runner_mode":    cfg.Runner.Mode,
		"max_concurrent": cfg.Backtest.MaxConcurrent,
		"archive":        store != nil,
	}).Info("Quail API running")

	<-ctx.Done()
	log.Info("Shutdown signal received")

	if healthServer != nil {
		healthServer.SetReady(false)
	}

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("API server shutdown failed")
	}
	if jobs != nil {
		if err := jobs.Stop(shutdownCtx); err != nil {
			log.WithError(err).Error("Scheduler shutdown failed")
		}
	}
	if err := backtestService.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Backtests still running at shutdown were cancelled")
	}
	if metricsServer != nil {
		metricsServer.Shutdown(shutdownCtx)
	}
	if healthServer != nil {
		healthServer.Shutdown()
	}

	log.Info("Quail API shut down")
	return nil
}

func newHealthServer(cfg *config.Config, log *logrus.Logger, db *database.DB, backtestRunner runner.Runner) *health.Server {
	if !cfg.Health.Enabled {
		return nil
	}

	checks := map[string]health.Checker{"database": db}
	if hc, ok := backtestRunner.(runner.HealthChecker); ok {
		checks["runner"] = hc
	}

	return health.NewServer(health.Config{
		ServiceName: cfg.App.Name,
		Version:     Version,
		Commit:      GitCommit,
		Port:        cfg.Health.Port,
		Logger:      log,
		Checks:      checks,
	})
}

func startMetricsServer(cfg config.MetricsConfig, log *logrus.Logger) *http.Server {
	if !cfg.Enabled {
		return nil
	}

	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, metrics.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.WithFields(logrus.Fields{"port": cfg.Port, "path": path}).Info("Metrics server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Metrics server error")
		}
	}()
	return srv
}

// startScheduler fails stale backtests left by a previous process before
// scheduling the periodic jobs
func startScheduler(
	ctx context.Context,
	cfg config.SweeperConfig,
	backtests scheduler.StaleBacktestFailer,
	tokens scheduler.ExpiredTokenPurger,
	log *logrus.Logger,
) (*scheduler.Scheduler, error) {
	jobs := scheduler.NewScheduler(backtests, tokens, log)

	if cfg.Enabled {
		if _, err := jobs.SweepStale(ctx, cfg.StaleAfter); err != nil {
			log.WithError(err).Error("Startup sweep failed")
		}
		if err := jobs.ScheduleStaleSweep(cfg.Schedule, cfg.StaleAfter); err != nil {
			return nil, err
		}
	}
	if err := jobs.ScheduleTokenPurge(scheduler.TokenPurgeSchedule); err != nil {
		return nil, err
	}

	if err := jobs.Start(); err != nil {
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}
	return jobs, nil
}
