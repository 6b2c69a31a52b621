package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/yourusername/quail/internal/database"
	"github.com/yourusername/quail/internal/repository"
	"github.com/yourusername/quail/internal/runner"
	"github.com/yourusername/quail/internal/scheduler"
	"github.com/yourusername/quail/internal/service"
)

var sweepStaleAfter time.Duration

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Fail stale running backtests and purge expired refresh tokens once",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		cfg, log, err := bootstrap(ctx)
		if err != nil {
			return err
		}

		db, err := database.Initialize(ctx, cfg, log)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		repos, err := repository.NewRepositories(db)
		if err != nil {
			return err
		}

		backtestRunner, err := runner.New(cfg.Runner, log)
		if err != nil {
			return err
		}
		backtests := service.NewBacktestService(repos, backtestRunner, nil, service.NewEventBus(0, log), cfg.Backtest, log)
		defer backtests.Shutdown(ctx)

		staleAfter := cfg.Sweeper.StaleAfter
		if sweepStaleAfter > 0 {
			staleAfter = sweepStaleAfter
		}

		jobs := scheduler.NewScheduler(backtests, repos.Token, log)
		abandoned, err := jobs.SweepStale(ctx, staleAfter)
		if err != nil {
			return fmt.Errorf("failed to sweep stale backtests: %w", err)
		}
		purged, err := jobs.PurgeTokens(ctx)
		if err != nil {
			return fmt.Errorf("failed to purge tokens: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Failed %d stale backtest(s), purged %d expired token(s)\n", abandoned, purged)
		return nil
	},
}

func init() {
	sweepCmd.Flags().DurationVar(&sweepStaleAfter, "stale-after", 0, "override sweeper.stale_after")
	rootCmd.AddCommand(sweepCmd)
}
