package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/quail/internal/archive"
	"github.com/yourusername/quail/internal/config"
	"github.com/yourusername/quail/internal/logger"
	"github.com/yourusername/quail/internal/metrics"
	"github.com/yourusername/quail/internal/models"
	"github.com/yourusername/quail/internal/repository"
	"github.com/yourusername/quail/internal/runner"
)

// AbandonedMessage is the error recorded on backtests failed by the sweeper
const AbandonedMessage = "backtest abandoned: no terminal status reported"

// persistTimeout bounds the terminal status write, which must outlive the
// execution context.
const persistTimeout = 10 * time.Second

const defaultExecutionTimeout = 10 * time.Minute

var (
	// ErrServiceClosed is returned by Create after Shutdown has begun
	ErrServiceClosed = errors.New("backtest service is shutting down")

	errRunnerPanic = errors.New("runner panicked")
)

// CreateBacktestInput holds the fields of a new backtest
type CreateBacktestInput struct {
	Name string
}

// BacktestService coordinates the backtest lifecycle: it records a running
// backtest, hands the strategy code to the runner in the background and
// stores the terminal outcome.
type BacktestService struct {
	strategyRepo repository.StrategyRepository
	backtestRepo repository.BacktestRepository
	metricRepo   repository.MetricRepository
	tx           repository.Transactor
	runner       runner.Runner
	archive      archive.Storage
	events       *EventBus
	logger       *logrus.Logger
	log          *logger.BacktestLogger
	timeout      time.Duration

	slots   chan struct{}
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	baseCtx context.Context
	cancel  context.CancelFunc

	// inFlight holds the backtests this process is queueing or running
	inFlightMu sync.Mutex
	inFlight   map[uuid.UUID]struct{}
}

// NewBacktestService creates a new backtest service. store may be nil when
// archiving is disabled.
func NewBacktestService(
	repos *repository.Repositories,
	backtestRunner runner.Runner,
	store archive.Storage,
	events *EventBus,
	cfg config.BacktestConfig,
	baseLogger *logrus.Logger,
) *BacktestService {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	timeout := cfg.ExecutionTimeout
	if timeout <= 0 {
		timeout = defaultExecutionTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &BacktestService{
		strategyRepo: repos.Strategy,
		backtestRepo: repos.Backtest,
		metricRepo:   repos.Metric,
		tx:           repos.Tx,
		runner:       backtestRunner,
		archive:      store,
		events:       events,
		logger:       baseLogger,
		log:          logger.NewBacktestLogger(baseLogger),
		timeout:      timeout,
		slots:        make(chan struct{}, maxConcurrent),
		inFlight:     make(map[uuid.UUID]struct{}),
		baseCtx:      ctx,
		cancel:       cancel,
	}
}

// Create records a running backtest of a strategy owned by userID and starts
// its execution in the background. The returned backtest includes its strategy.
func (s *BacktestService) Create(ctx context.Context, userID, strategyID uuid.UUID, input CreateBacktestInput) (*models.Backtest, error) {
	strategy, err := s.strategyRepo.GetByID(ctx, userID, strategyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get strategy: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrServiceClosed
	}

	backtest := &models.Backtest{
		ID:         uuid.New(),
		UserID:     userID,
		StrategyID: strategy.ID,
		Name:       input.Name,
		Status:     models.BacktestStatusRunning,
	}

	if err := s.backtestRepo.Create(ctx, backtest); err != nil {
		return nil, fmt.Errorf("failed to create backtest: %w", err)
	}
	backtest.Strategy = strategy

	metrics.RecordBacktestSubmitted()
	s.log.LogSubmitted(backtest.ID.String(), strategy.ID.String(), userID.String(), backtest.Name)
	s.publish(EventBacktestSubmitted, backtest, models.BacktestStatusRunning)

	execution := *backtest
	s.track(execution.ID)
	s.wg.Add(1)
	go s.execute(&execution, strategy.Code)

	return backtest, nil
}

// FindAll returns the user's backtests newest first, optionally for one strategy
func (s *BacktestService) FindAll(ctx context.Context, userID uuid.UUID, strategyID *uuid.UUID) ([]*models.Backtest, error) {
	backtests, err := s.backtestRepo.ListByUser(ctx, userID, strategyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list backtests: %w", err)
	}
	return backtests, nil
}

// FindOne returns the backtest with its strategy and metrics
func (s *BacktestService) FindOne(ctx context.Context, userID, id uuid.UUID) (*models.Backtest, error) {
	backtest, err := s.backtestRepo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get backtest: %w", err)
	}

	backtestMetrics, err := s.metricRepo.ListByBacktest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get backtest metrics: %w", err)
	}
	backtest.Metrics = backtestMetrics

	return backtest, nil
}

// Remove deletes the backtest and its metrics. The archived result document
// is removed on a best-effort basis.
func (s *BacktestService) Remove(ctx context.Context, userID, id uuid.UUID) error {
	if _, err := s.FindOne(ctx, userID, id); err != nil {
		return err
	}

	if err := s.backtestRepo.Delete(ctx, userID, id); err != nil {
		return fmt.Errorf("failed to delete backtest: %w", err)
	}

	if s.archive != nil {
		if err := s.archive.Delete(ctx, archive.BacktestKey(userID, id)); err != nil {
			s.logger.WithError(err).WithField("backtest_id", id).Warn("Failed to delete archived backtest result")
		}
	}
	return nil
}

// FailStale fails backtests that have been running for longer than olderThan
// and returns how many were failed. Backtests this service is still queueing
// or executing are left alone.
func (s *BacktestService) FailStale(ctx context.Context, olderThan time.Duration) (int, error) {
	now := time.Now()
	abandoned, err := s.backtestRepo.FailStale(ctx, now.Add(-olderThan), errorDocument(AbandonedMessage), s.inFlightIDs())
	if err != nil {
		return 0, fmt.Errorf("failed to fail stale backtests: %w", err)
	}

	for _, backtest := range abandoned {
		runningFor := now.Sub(backtest.CreatedAt)
		s.log.LogAbandoned(backtest.ID.String(), runningFor)
		metrics.RecordBacktestTransition(string(models.BacktestStatusFailed), "abandoned", runningFor)
		s.publish(EventBacktestFailed, backtest, models.BacktestStatusFailed)
	}
	metrics.RecordAbandoned(len(abandoned))

	return len(abandoned), nil
}

// Shutdown stops accepting backtests and waits for in-flight executions.
// When ctx ends first the executions are cancelled and recorded as failed.
func (s *BacktestService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return ctx.Err()
	}
}

func (s *BacktestService) track(id uuid.UUID) {
	s.inFlightMu.Lock()
	s.inFlight[id] = struct{}{}
	s.inFlightMu.Unlock()
}

func (s *BacktestService) untrack(id uuid.UUID) {
	s.inFlightMu.Lock()
	delete(s.inFlight, id)
	s.inFlightMu.Unlock()
}

func (s *BacktestService) inFlightIDs() []uuid.UUID {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	ids := make([]uuid.UUID, 0, len(s.inFlight))
	for id := range s.inFlight {
		ids = append(ids, id)
	}
	return ids
}

func (s *BacktestService) execute(backtest *models.Backtest, code string) {
	defer s.wg.Done()
	defer s.untrack(backtest.ID)

	select {
	case s.slots <- struct{}{}:
	case <-s.baseCtx.Done():
		s.fail(backtest, fmt.Errorf("backtest cancelled before start: %w", s.baseCtx.Err()), 0)
		return
	}
	defer func() { <-s.slots }()

	metrics.BacktestStarted()
	defer metrics.BacktestFinished()

	start := time.Now()
	ctx, cancel := context.WithTimeout(s.baseCtx, s.timeout)
	defer cancel()

	result, err := s.run(ctx, backtest.ID.String(), code)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, runner.ErrTimeout) {
			err = fmt.Errorf("%w after %s", runner.ErrTimeout, s.timeout)
		}
		s.fail(backtest, err, time.Since(start))
		return
	}

	s.complete(backtest, result, start)
}

// run invokes the runner, converting a panic into an error
func (s *BacktestService) run(ctx context.Context, backtestID, code string) (result runner.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("%w: %v", errRunnerPanic, r)
		}
	}()

	result, err = s.runner.RunBacktest(ctx, backtestID, code)
	if err == nil && len(result) == 0 {
		err = fmt.Errorf("%w: empty result", runner.ErrInvalidResult)
	}
	return result, err
}

func (s *BacktestService) complete(backtest *models.Backtest, result runner.Result, start time.Time) {
	document, err := resultDocument(result)
	if err != nil {
		s.fail(backtest, fmt.Errorf("%w: %v", runner.ErrInvalidResult, err), time.Since(start))
		return
	}
	derived := DeriveMetrics(backtest.ID, result)

	ctx, cancel := s.persistContext()
	defer cancel()

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.backtestRepo.Complete(ctx, backtest.ID, document); err != nil {
			return err
		}
		return s.metricRepo.InsertBatch(ctx, derived)
	})
	if errors.Is(err, models.ErrNotRunning) {
		s.logger.WithField("backtest_id", backtest.ID).Warn("Backtest reached a terminal status before its result was stored")
		return
	}
	if err != nil {
		s.fail(backtest, fmt.Errorf("failed to store backtest result: %w", err), time.Since(start))
		return
	}

	duration := time.Since(start)
	s.archiveResult(ctx, backtest, document)
	metrics.RecordBacktestTransition(string(models.BacktestStatusCompleted), "success", duration)
	s.log.LogCompleted(backtest.ID.String(), len(derived), duration)
	s.publish(EventBacktestCompleted, backtest, models.BacktestStatusCompleted)
}

func (s *BacktestService) fail(backtest *models.Backtest, cause error, duration time.Duration) {
	ctx, cancel := s.persistContext()
	defer cancel()

	err := s.backtestRepo.Fail(ctx, backtest.ID, errorDocument(cause.Error()))
	if errors.Is(err, models.ErrNotRunning) {
		s.logger.WithField("backtest_id", backtest.ID).Warn("Backtest reached a terminal status before its failure was stored")
		return
	}
	if err != nil {
		s.logger.WithError(err).WithField("backtest_id", backtest.ID).Error("Failed to record backtest failure")
		return
	}

	metrics.RecordBacktestTransition(string(models.BacktestStatusFailed), failureReason(cause), duration)
	s.log.LogFailed(backtest.ID.String(), cause.Error(), duration)
	s.publish(EventBacktestFailed, backtest, models.BacktestStatusFailed)
}

func (s *BacktestService) archiveResult(ctx context.Context, backtest *models.Backtest, document []byte) {
	if s.archive == nil {
		return
	}

	if err := s.archive.Write(ctx, archive.BacktestKey(backtest.UserID, backtest.ID), document); err != nil {
		metrics.RecordArchiveWrite("failure")
		s.logger.WithError(err).WithField("backtest_id", backtest.ID).Warn("Failed to archive backtest result")
		return
	}
	metrics.RecordArchiveWrite("success")
}

// persistContext outlives both the execution timeout and shutdown cancellation
func (s *BacktestService) persistContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(s.baseCtx), persistTimeout)
}

func (s *BacktestService) publish(eventType EventType, backtest *models.Backtest, status models.BacktestStatus) {
	if s.events == nil {
		return
	}
	s.events.Publish(BacktestEvent{
		Type:       eventType,
		BacktestID: backtest.ID,
		UserID:     backtest.UserID,
		StrategyID: backtest.StrategyID,
		Status:     status,
		At:         time.Now().UTC(),
	})
}

// failureReason is the metrics label of a failed execution
func failureReason(err error) string {
	switch {
	case errors.Is(err, runner.ErrTimeout):
		return "timeout"
	case errors.Is(err, runner.ErrStartFailed):
		return "start_failed"
	case errors.Is(err, runner.ErrRunnerFailed):
		return "runner_failed"
	case errors.Is(err, runner.ErrProcessFailed):
		return "process_failed"
	case errors.Is(err, runner.ErrInvalidResult):
		return "invalid_result"
	case errors.Is(err, runner.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, errRunnerPanic):
		return "panic"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "error"
	}
}
