package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// BacktestLogger provides dedicated logging for backtest executions.
type BacktestLogger struct {
	*logrus.Entry
}

// NewBacktestLogger creates a new backtest logger.
func NewBacktestLogger(baseLogger *logrus.Logger) *BacktestLogger {
	return &BacktestLogger{
		Entry: baseLogger.WithField("component", "backtest"),
	}
}

// LogSubmitted logs a backtest accepted for execution.
func (bl *BacktestLogger) LogSubmitted(backtestID, strategyID, userID, name string) {
	bl.WithFields(logrus.Fields{
		"backtest_id": backtestID,
		"strategy_id": strategyID,
		"user_id":     userID,
		"name":        name,
		"status":      "running",
	}).Info("Backtest submitted")
}

// LogCompleted logs a successful execution.
func (bl *BacktestLogger) LogCompleted(backtestID string, metricCount int, duration time.Duration) {
	bl.WithFields(logrus.Fields{
		"backtest_id": backtestID,
		"status":      "completed",
		"metrics":     metricCount,
		"duration_ms": duration.Milliseconds(),
	}).Info("Backtest completed")
}

// LogFailed logs an execution that ended in the failed state.
func (bl *BacktestLogger) LogFailed(backtestID, reason string, duration time.Duration) {
	bl.WithFields(logrus.Fields{
		"backtest_id": backtestID,
		"status":      "failed",
		"reason":      reason,
		"duration_ms": duration.Milliseconds(),
	}).Error("Backtest failed")
}

// LogPollAttempt logs a transient problem while waiting on the runner.
func (bl *BacktestLogger) LogPollAttempt(backtestID string, attempt int, err error) {
	bl.WithFields(logrus.Fields{
		"backtest_id": backtestID,
		"attempt":     attempt,
	}).WithError(err).Warn("Runner poll attempt did not complete")
}

// LogAbandoned logs a backtest failed by the reconciliation sweeper.
func (bl *BacktestLogger) LogAbandoned(backtestID string, runningFor time.Duration) {
	bl.WithFields(logrus.Fields{
		"backtest_id":    backtestID,
		"status":         "failed",
		"running_for_ms": runningFor.Milliseconds(),
	}).Warn("Backtest abandoned")
}
