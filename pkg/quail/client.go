// Package quail is a Go client for the Quail backtesting API.
//
// A Client keeps the token pair obtained from Login. When a protected call
// is rejected with 401 the client refreshes the pair once and retries the
// call; concurrent callers share a single refresh request.
package quail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Client calls the Quail API
type Client struct {
	baseURL  string
	http     *http.Client
	onTokens func(Tokens)

	mu      sync.RWMutex
	tokens  Tokens
	refresh singleflight.Group
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTokens starts the client with a previously issued token pair
func WithTokens(t Tokens) Option {
	return func(c *Client) { c.tokens = t }
}

// WithTokenCallback is called with every new token pair, e.g. to persist it
func WithTokenCallback(fn func(Tokens)) Option {
	return func(c *Client) { c.onTokens = fn }
}

// NewClient creates a client for the API at baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tokens returns the current token pair
func (c *Client) Tokens() Tokens {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokens
}

func (c *Client) setTokens(t Tokens) {
	c.mu.Lock()
	c.tokens = t
	c.mu.Unlock()

	if c.onTokens != nil {
		c.onTokens(t)
	}
}

// Register creates an account
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodPost, "/auth/register", req, &user, false); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login authenticates and keeps the returned token pair
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	body := map[string]string{"email": email, "password": password}

	var result LoginResult
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &result, false); err != nil {
		return nil, err
	}
	c.setTokens(result.Tokens)
	return &result, nil
}

// Refresh exchanges the refresh token for a new pair
func (c *Client) Refresh(ctx context.Context) (Tokens, error) {
	current := c.Tokens()
	if current.RefreshToken == "" {
		return Tokens{}, ErrNotAuthenticated
	}

	var tokens Tokens
	body := map[string]string{"refreshToken": current.RefreshToken}
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", body, &tokens, false); err != nil {
		return Tokens{}, err
	}
	c.setTokens(tokens)
	return tokens, nil
}

// Logout revokes the refresh token and forgets the pair
func (c *Client) Logout(ctx context.Context) error {
	current := c.Tokens()
	if current.RefreshToken == "" {
		return nil
	}

	body := map[string]string{"refreshToken": current.RefreshToken}
	if err := c.do(ctx, http.MethodPost, "/auth/logout", body, nil, false); err != nil {
		return err
	}
	c.setTokens(Tokens{})
	return nil
}

// CreateStrategy stores a new strategy
func (c *Client) CreateStrategy(ctx context.Context, req CreateStrategyRequest) (*Strategy, error) {
	var s Strategy
	if err := c.do(ctx, http.MethodPost, "/strategies", req, &s, true); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListStrategies returns the caller's strategies
func (c *Client) ListStrategies(ctx context.Context) ([]Strategy, error) {
	var out []Strategy
	if err := c.do(ctx, http.MethodGet, "/strategies", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// GetStrategy returns one strategy
func (c *Client) GetStrategy(ctx context.Context, id uuid.UUID) (*Strategy, error) {
	var s Strategy
	if err := c.do(ctx, http.MethodGet, "/strategies/"+url.PathEscape(id.String()), nil, &s, true); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateStrategy changes the fields set on req
func (c *Client) UpdateStrategy(ctx context.Context, id uuid.UUID, req UpdateStrategyRequest) (*Strategy, error) {
	var s Strategy
	if err := c.do(ctx, http.MethodPut, "/strategies/"+url.PathEscape(id.String()), req, &s, true); err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteStrategy removes a strategy and its backtests
func (c *Client) DeleteStrategy(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/strategies/"+url.PathEscape(id.String()), nil, nil, true)
}

// CreateBacktest submits a backtest. It is returned in the running state.
func (c *Client) CreateBacktest(ctx context.Context, req CreateBacktestRequest) (*Backtest, error) {
	var b Backtest
	if err := c.do(ctx, http.MethodPost, "/backtests", req, &b, true); err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBacktests returns the caller's backtests, limited to one strategy
// unless strategyID is uuid.Nil
func (c *Client) ListBacktests(ctx context.Context, strategyID uuid.UUID) ([]Backtest, error) {
	path := "/backtests"
	if strategyID != uuid.Nil {
		path += "?" + url.Values{"strategyId": {strategyID.String()}}.Encode()
	}

	var out []Backtest
	if err := c.do(ctx, http.MethodGet, path, nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// GetBacktest returns one backtest with its metrics
func (c *Client) GetBacktest(ctx context.Context, id uuid.UUID) (*Backtest, error) {
	var b Backtest
	if err := c.do(ctx, http.MethodGet, "/backtests/"+url.PathEscape(id.String()), nil, &b, true); err != nil {
		return nil, err
	}
	return &b, nil
}

// DeleteBacktest removes a backtest
func (c *Client) DeleteBacktest(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/backtests/"+url.PathEscape(id.String()), nil, nil, true)
}

// WaitForBacktest polls until the backtest is completed or failed
func (c *Client) WaitForBacktest(ctx context.Context, id uuid.UUID, interval time.Duration) (*Backtest, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		b, err := c.GetBacktest(ctx, id)
		if err != nil {
			return nil, err
		}
		if b.Terminal() {
			return b, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// do sends the request and decodes the envelope data into out. Protected
// calls are retried once after a token refresh when rejected with 401.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, protected bool) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	var token string
	if protected {
		token = c.Tokens().AccessToken
		if token == "" {
			return ErrNotAuthenticated
		}
	}

	resp, err := c.send(ctx, method, path, payload, token)
	if err != nil {
		return err
	}

	if protected && resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		if err := c.refreshAfter(ctx, token); err != nil {
			return err
		}
		if resp, err = c.send(ctx, method, path, payload, c.Tokens().AccessToken); err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	return decode(resp, out)
}

// refreshAfter refreshes the token pair unless another caller already
// replaced the stale access token
func (c *Client) refreshAfter(ctx context.Context, stale string) error {
	_, err, _ := c.refresh.Do("refresh", func() (interface{}, error) {
		if c.Tokens().AccessToken != stale {
			return nil, nil
		}
		_, err := c.Refresh(ctx)
		return nil, err
	})
	return err
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, token string) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quail: %s %s: %w", method, path, err)
	}
	return resp, nil
}

func decode(resp *http.Response, out interface{}) error {
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && err != io.EOF {
		if resp.StatusCode >= 300 {
			return &APIError{StatusCode: resp.StatusCode}
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: env.Message, Errors: env.Errors}
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}
