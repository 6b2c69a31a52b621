package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/quail/internal/config"
	"github.com/yourusername/quail/internal/logger"
	"github.com/yourusername/quail/internal/metrics"
	"github.com/yourusername/quail/internal/retry"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultMaxAttempts  = 60
)

// StartRequest is the body of POST /backtest
type StartRequest struct {
	BacktestID     string  `json:"backtest_id"`
	StrategyCode   string  `json:"strategy_code"`
	StartDate      string  `json:"start_date,omitempty"`
	EndDate        string  `json:"end_date,omitempty"`
	InitialCapital float64 `json:"initial_capital,omitempty"`
}

// StatusResponse is the body of GET /backtest/{id}
type StatusResponse struct {
	BacktestID  string `json:"backtest_id"`
	Status      string `json:"status"`
	Results     Result `json:"results,omitempty"`
	Performance Result `json:"performance,omitempty"`
	Error       string `json:"error,omitempty"`
}

// HTTPRunner starts a backtest on the LEAN service and polls its status
type HTTPRunner struct {
	client    *rateLimitedClient
	baseURL   string
	poll      retry.Config
	log       *logrus.Entry
	backtests *logger.BacktestLogger
}

// NewHTTPRunner creates a runner for the LEAN HTTP service
func NewHTTPRunner(cfg config.HTTPRunnerConfig, log *logrus.Logger) *HTTPRunner {
	entry := log.WithField("component", "runner")

	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPRunner{
		client: newRateLimitedClient(httpClientConfig{
			Timeout:      timeout,
			MaxRetries:   cfg.RetryMax,
			RetryWaitMin: 100 * time.Millisecond,
			RetryWaitMax: 2 * time.Second,
			RateLimit:    cfg.RequestsPerSecond,
		}, entry),
		baseURL: strings.TrimRight(cfg.URL, "/"),
		poll: retry.Config{
			Interval:    interval,
			MaxAttempts: attempts,
			WaitFirst:   true,
		},
		log:       entry,
		backtests: logger.NewBacktestLogger(log),
	}
}

// RunBacktest starts the backtest and polls until it completes, fails or
// the attempts run out.
func (r *HTTPRunner) RunBacktest(ctx context.Context, backtestID string, code string) (Result, error) {
	if err := r.start(ctx, StartRequest{BacktestID: backtestID, StrategyCode: code}); err != nil {
		return nil, err
	}

	poll := r.poll
	poll.OnRetry = func(attempt int, err error) {
		metrics.RecordRunnerPollError()
		r.backtests.LogPollAttempt(backtestID, attempt, err)
	}

	result, err := retry.Poll(ctx, poll, func(ctx context.Context, attempt int) (Result, bool, error) {
		status, err := r.status(ctx, backtestID)
		if err != nil {
			return nil, false, err
		}
		return interpret(status)
	})
	if errors.Is(err, retry.ErrExhausted) {
		return nil, fmt.Errorf("%w after %d status checks", ErrTimeout, r.poll.MaxAttempts)
	}
	return result, err
}

// interpret maps a status document onto the polling contract
func interpret(status *StatusResponse) (Result, bool, error) {
	switch status.Status {
	case "completed":
		if len(status.Results) > 0 {
			return status.Results, true, nil
		}
		if len(status.Performance) > 0 {
			return status.Performance, true, nil
		}
		return nil, false, retry.Permanent(fmt.Errorf("%w: completed without results", ErrInvalidResult))
	case "failed":
		msg := status.Error
		if msg == "" {
			msg = "Backtest failed"
		}
		return nil, false, retry.Permanent(fmt.Errorf("%w: %s", ErrRunnerFailed, msg))
	default:
		return nil, false, nil
	}
}

func (r *HTTPRunner) start(ctx context.Context, body StartRequest) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/backtest", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStartFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStartFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: status %d: %s", ErrStartFailed, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	r.log.WithField("backtest_id", body.BacktestID).Debug("Backtest started on runner")
	return nil
}

func (r *HTTPRunner) status(ctx context.Context, backtestID string) (*StatusResponse, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/backtest/"+url.PathEscape(backtestID), nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status request failed with status %d", resp.StatusCode)
	}

	var status StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode status: %w", err)
	}

	return &status, nil
}

// HealthCheck checks the runner service health endpoint
func (r *HTTPRunner) HealthCheck(ctx context.Context) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := r.client.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	return nil
}
