// Package metrics provides the Prometheus registry and instruments for the API.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "quail"

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// HTTP metrics
var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, route and status code",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	RateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_rate_limited_total",
		Help:      "Requests rejected by the rate limiter",
	})

	WebsocketClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "websocket_clients",
		Help:      "Connected backtest event stream clients",
	})
)

// Auth metrics
var (
	AuthEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_events_total",
		Help:      "Authentication events by type and outcome",
	}, []string{"event", "outcome"})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		registry.MustRegister(HTTPRequestsTotal)
		registry.MustRegister(HTTPRequestDuration)
		registry.MustRegister(RateLimitedTotal)
		registry.MustRegister(WebsocketClients)
		registry.MustRegister(AuthEventsTotal)

		registry.MustRegister(StrategyOperationsTotal)

		registry.MustRegister(BacktestSubmissionsTotal)
		registry.MustRegister(BacktestTransitionsTotal)
		registry.MustRegister(BacktestsInFlight)
		registry.MustRegister(BacktestDuration)
		registry.MustRegister(RunnerPollErrorsTotal)
		registry.MustRegister(SweeperAbandonedTotal)
		registry.MustRegister(ArchiveWritesTotal)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return InitRegistry()
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordRateLimited records a request rejected with 429.
func RecordRateLimited() {
	RateLimitedTotal.Inc()
}

// RecordAuthEvent records a register, login, refresh or logout outcome.
// outcome should be one of: "success", "failure"
func RecordAuthEvent(event, outcome string) {
	AuthEventsTotal.WithLabelValues(event, outcome).Inc()
}
