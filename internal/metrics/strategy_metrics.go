// Package metrics defines strategy-specific metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Strategy counter vectors
var (
	StrategyOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "strategy_operations_total",
		Help:      "Strategy writes by operation",
	}, []string{"operation"})
)

// RecordStrategyOperation records a strategy write.
// operation should be one of: "create", "update", "delete"
func RecordStrategyOperation(operation string) {
	StrategyOperationsTotal.WithLabelValues(operation).Inc()
}
