// Package scheduler runs the periodic reconciliation jobs: failing backtests
// stuck in running and purging expired refresh tokens.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// TokenPurgeSchedule is how often expired refresh tokens are deleted
const TokenPurgeSchedule = "@hourly"

const defaultJobTimeout = time.Minute

// StaleBacktestFailer fails backtests running for longer than olderThan
type StaleBacktestFailer interface {
	FailStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// ExpiredTokenPurger deletes refresh tokens that expired before a time
type ExpiredTokenPurger interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Scheduler manages the reconciliation cron jobs
type Scheduler struct {
	cron       *cron.Cron
	backtests  StaleBacktestFailer
	tokens     ExpiredTokenPurger
	logger     *logrus.Logger
	mu         sync.RWMutex
	isRunning  bool
	jobIDs     []cron.EntryID
	jobTimeout time.Duration
}

// NewScheduler creates a new scheduler. Overlapping runs of a job are skipped.
func NewScheduler(backtests StaleBacktestFailer, tokens ExpiredTokenPurger, logger *logrus.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(logger.WithField("component", "scheduler"))
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		backtests:  backtests,
		tokens:     tokens,
		logger:     logger,
		jobIDs:     make([]cron.EntryID, 0),
		jobTimeout: defaultJobTimeout,
	}
}

// SweepStale fails every backtest running for longer than staleAfter
func (s *Scheduler) SweepStale(ctx context.Context, staleAfter time.Duration) (int, error) {
	n, err := s.backtests.FailStale(ctx, staleAfter)
	if err != nil {
		return 0, err
	}

	entry := s.logger.WithFields(logrus.Fields{
		"abandoned":   n,
		"stale_after": staleAfter.String(),
	})
	if n > 0 {
		entry.Warn("Failed stale backtests")
	} else {
		entry.Debug("No stale backtests")
	}
	return n, nil
}

// PurgeTokens deletes expired refresh tokens
func (s *Scheduler) PurgeTokens(ctx context.Context) (int64, error) {
	n, err := s.tokens.DeleteExpired(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	s.logger.WithField("deleted", n).Debug("Purged expired refresh tokens")
	return n, nil
}

// ScheduleStaleSweep schedules the stale backtest sweep
func (s *Scheduler) ScheduleStaleSweep(cronExpression string, staleAfter time.Duration) error {
	return s.schedule(cronExpression, "stale backtest sweep", func(ctx context.Context) error {
		_, err := s.SweepStale(ctx, staleAfter)
		return err
	})
}

// ScheduleTokenPurge schedules the expired token purge
func (s *Scheduler) ScheduleTokenPurge(cronExpression string) error {
	return s.schedule(cronExpression, "token purge", func(ctx context.Context) error {
		_, err := s.PurgeTokens(ctx)
		return err
	})
}

func (s *Scheduler) schedule(cronExpression, name string, job func(context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}

	entryID, err := s.cron.AddFunc(cronExpression, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
		defer cancel()

		if err := job(ctx); err != nil {
			s.logger.WithError(err).WithField("job", name).Error("Scheduled job failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add %s job: %w", name, err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.logger.WithFields(logrus.Fields{
		"job":      name,
		"schedule": cronExpression,
	}).Info("Scheduled job")

	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")

	return nil
}

// Stop stops the scheduler and waits for running jobs or ctx
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.isRunning = false
	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRun returns the time of the next scheduled job run
func (s *Scheduler) NextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return time.Time{}
	}

	nextRun := time.Time{}
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() && (nextRun.IsZero() || entry.Next.Before(nextRun)) {
			nextRun = entry.Next
		}
	}

	return nextRun
}
