package leanrunner

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/quail/internal/config"
	"github.com/yourusername/quail/internal/runner"
)

const defaultInitialCapital = 100000.0

// Engine executes one backtest request to completion
type Engine interface {
	Run(ctx context.Context, req BacktestRequest) (runner.Result, error)
}

// NewEngine builds the engine selected by cfg.Engine
func NewEngine(cfg config.LeanRunnerConfig, process config.ProcessRunnerConfig, log *logrus.Logger) (Engine, error) {
	switch cfg.Engine {
	case "", "simulate":
		return &SimulatedEngine{Delay: cfg.SimulatedDelay}, nil
	case "process":
		return &ProcessEngine{runner: runner.NewProcessRunner(process, log)}, nil
	default:
		return nil, fmt.Errorf("unsupported engine %q", cfg.Engine)
	}
}

// SimulatedEngine produces plausible metrics without running LEAN. The same
// backtest id always yields the same result document.
type SimulatedEngine struct {
	Delay time.Duration
}

// Run waits for the configured delay and returns the simulated result
func (e *SimulatedEngine) Run(ctx context.Context, req BacktestRequest) (runner.Result, error) {
	if e.Delay > 0 {
		timer := time.NewTimer(e.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	h := fnv.New64a()
	h.Write([]byte(req.BacktestID))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	capital := req.InitialCapital
	if capital <= 0 {
		capital = defaultInitialCapital
	}

	totalReturn := uniform(rng, -0.2, 0.4)
	return runner.Result{
		"totalReturn":         totalReturn,
		"sharpeRatio":         uniform(rng, -1.0, 2.5),
		"maxDrawdown":         uniform(rng, -0.3, -0.05),
		"winRate":             uniform(rng, 0.3, 0.8),
		"finalPortfolioValue": capital * (1 + totalReturn),
		"totalTrades":         float64(1 + rng.Intn(50)),
		"profitLoss":          capital * totalReturn,
	}, nil
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

// ProcessEngine runs the LEAN CLI as a subprocess
type ProcessEngine struct {
	runner *runner.ProcessRunner
}

// Run delegates to the process runner
func (e *ProcessEngine) Run(ctx context.Context, req BacktestRequest) (runner.Result, error) {
	return e.runner.RunBacktest(ctx, req.BacktestID, req.StrategyCode)
}
