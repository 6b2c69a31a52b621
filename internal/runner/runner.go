// Package runner hands backtests to the external LEAN engine and waits for
// their result document.
package runner

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/quail/internal/config"
)

// Result is the opaque result document of a completed backtest
type Result map[string]interface{}

// Runner executes one backtest and blocks until it reaches a terminal state.
// A nil error always comes with a complete Result.
type Runner interface {
	RunBacktest(ctx context.Context, backtestID string, code string) (Result, error)
}

// HealthChecker is implemented by runners that can report their availability
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// New builds the runner selected by cfg.Mode.
func New(cfg config.RunnerConfig, log *logrus.Logger) (Runner, error) {
	switch cfg.Mode {
	case "http":
		return NewHTTPRunner(cfg.HTTP, log), nil
	case "process":
		return NewProcessRunner(cfg.Process, log), nil
	default:
		return nil, fmt.Errorf("unsupported runner mode %q", cfg.Mode)
	}
}
