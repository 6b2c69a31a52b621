// Package metrics defines backtesting-specific metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Backtest counter vectors
var (
	BacktestSubmissionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backtest_submissions_total",
		Help:      "Total number of backtests submitted",
	})

	BacktestTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backtest_transitions_total",
		Help:      "Backtest terminal transitions by status and reason",
	}, []string{"status", "reason"})

	RunnerPollErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runner_poll_errors_total",
		Help:      "Transient errors while polling the backtest runner",
	})

	SweeperAbandonedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweeper_abandoned_total",
		Help:      "Backtests failed by the reconciliation sweeper",
	})

	ArchiveWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "archive_writes_total",
		Help:      "Result document archive writes by outcome",
	}, []string{"outcome"})
)

// Backtest gauges
var (
	BacktestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "backtests_in_flight",
		Help:      "Backtests currently executing on the runner",
	})
)

// Backtest histogram vectors
var (
	BacktestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backtest_duration_seconds",
		Help:      "Duration of backtest executions in seconds by terminal status",
		Buckets:   []float64{1, 5, 10, 30, 60, 300, 600, 1800},
	}, []string{"status"})
)

// RecordBacktestSubmitted records a new running backtest.
func RecordBacktestSubmitted() {
	BacktestSubmissionsTotal.Inc()
}

// RecordBacktestTransition records a terminal transition.
// status should be one of: "completed", "failed"
// reason is "success" for completions and an error class for failures
func RecordBacktestTransition(status, reason string, duration time.Duration) {
	BacktestTransitionsTotal.WithLabelValues(status, reason).Inc()
	BacktestDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// BacktestStarted increments the in-flight gauge.
func BacktestStarted() {
	BacktestsInFlight.Inc()
}

// BacktestFinished decrements the in-flight gauge.
func BacktestFinished() {
	BacktestsInFlight.Dec()
}

// RecordRunnerPollError records a transient poll failure.
func RecordRunnerPollError() {
	RunnerPollErrorsTotal.Inc()
}

// RecordAbandoned records backtests failed by the sweeper.
func RecordAbandoned(count int) {
	SweeperAbandonedTotal.Add(float64(count))
}

// RecordArchiveWrite records an archive write outcome.
// outcome should be one of: "success", "failure"
func RecordArchiveWrite(outcome string) {
	ArchiveWritesTotal.WithLabelValues(outcome).Inc()
}
