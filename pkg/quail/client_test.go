package quail

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI accepts only the current access token and rotates the pair on
// every successful refresh
type fakeAPI struct {
	mu        sync.Mutex
	access    string
	refresh   string
	refreshes atomic.Int32
	polls     atomic.Int32
	strategy  uuid.UUID
	backtest  uuid.UUID
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	f := &fakeAPI{access: "access-1", refresh: "refresh-1", strategy: uuid.New(), backtest: uuid.New()}
	srv := httptest.NewServer(f.routes())
	t.Cleanup(srv.Close)
	return f, srv
}

func writeEnvelope(w http.ResponseWriter, status int, data interface{}, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": status < 300,
		"data":    data,
		"message": message,
	})
}

func (f *fakeAPI) authorized(r *http.Request) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return r.Header.Get("Authorization") == "Bearer "+f.access
}

func (f *fakeAPI) expireAccess() {
	f.mu.Lock()
	f.access = "access-rotated-" + uuid.NewString()
	f.mu.Unlock()
}

func (f *fakeAPI) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret123" {
			writeEnvelope(w, http.StatusUnauthorized, nil, "Invalid credentials")
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		writeEnvelope(w, http.StatusOK, map[string]interface{}{
			"accessToken":  f.access,
			"refreshToken": f.refresh,
			"user":         map[string]string{"email": body["email"]},
		}, "")
	})

	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)

		f.mu.Lock()
		defer f.mu.Unlock()
		if body["refreshToken"] != f.refresh {
			writeEnvelope(w, http.StatusUnauthorized, nil, "Unauthorized")
			return
		}
		n := f.refreshes.Add(1)
		time.Sleep(20 * time.Millisecond)
		f.access = "access-refreshed"
		f.refresh = "refresh-" + string(rune('1'+n))
		writeEnvelope(w, http.StatusOK, map[string]string{
			"accessToken":  f.access,
			"refreshToken": f.refresh,
		}, "")
	})

	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("/strategies", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(r) {
			writeEnvelope(w, http.StatusUnauthorized, nil, "Unauthorized")
			return
		}
		writeEnvelope(w, http.StatusOK, []map[string]interface{}{
			{"id": f.strategy, "name": "Momentum", "isActive": true},
		}, "")
	})

	mux.HandleFunc("/strategies/", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(r) {
			writeEnvelope(w, http.StatusUnauthorized, nil, "Unauthorized")
			return
		}
		writeEnvelope(w, http.StatusNotFound, nil, "Strategy not found")
	})

	mux.HandleFunc("/backtests", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(r) {
			writeEnvelope(w, http.StatusUnauthorized, nil, "Unauthorized")
			return
		}
		if r.Method == http.MethodPost {
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			if body["name"] == "" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"success": false,
					"message": "Validation failed",
					"errors":  []string{"Name is required"},
				})
				return
			}
			writeEnvelope(w, http.StatusCreated, map[string]interface{}{
				"id": f.backtest, "strategyId": body["strategyId"], "name": body["name"], "status": StatusRunning,
			}, "")
			return
		}
		writeEnvelope(w, http.StatusOK, []map[string]interface{}{
			{"id": f.backtest, "strategyId": r.URL.Query().Get("strategyId"), "status": StatusRunning},
		}, "")
	})

	mux.HandleFunc("/backtests/", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(r) {
			writeEnvelope(w, http.StatusUnauthorized, nil, "Unauthorized")
			return
		}
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		status := StatusRunning
		if f.polls.Add(1) >= 3 {
			status = StatusCompleted
		}
		writeEnvelope(w, http.StatusOK, map[string]interface{}{
			"id": f.backtest, "status": status,
			"metrics": []map[string]interface{}{{"name": "Total Return", "value": 15, "unit": "%"}},
		}, "")
	})

	upgrader := websocket.Upgrader{}
	mux.HandleFunc("/ws/backtests", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(r) {
			writeEnvelope(w, http.StatusUnauthorized, nil, "Unauthorized")
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteJSON(BacktestEvent{Type: "backtest.completed", BacktestID: f.backtest, Status: StatusCompleted})
	})

	return mux
}

func loggedIn(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	t.Helper()
	c := NewClient(srv.URL, opts...)
	_, err := c.Login(context.Background(), "trader@example.com", "secret123")
	require.NoError(t, err)
	return c
}

func TestLogin(t *testing.T) {
	_, srv := newFakeAPI(t)
	c := NewClient(srv.URL + "/")

	_, err := c.Login(context.Background(), "trader@example.com", "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Empty(t, c.Tokens().AccessToken)

	result, err := c.Login(context.Background(), "trader@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "access-1", result.AccessToken)
	assert.Equal(t, "trader@example.com", result.User.Email)
	assert.Equal(t, Tokens{AccessToken: "access-1", RefreshToken: "refresh-1"}, c.Tokens())
}

func TestProtectedCallWithoutTokens(t *testing.T) {
	_, srv := newFakeAPI(t)
	_, err := NewClient(srv.URL).ListStrategies(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestRefreshOn401(t *testing.T) {
	api, srv := newFakeAPI(t)

	var saved []Tokens
	c := loggedIn(t, srv, WithTokenCallback(func(t Tokens) { saved = append(saved, t) }))
	api.mu.Lock()
	api.access = "access-refreshed"
	api.mu.Unlock()

	strategies, err := c.ListStrategies(context.Background())
	require.NoError(t, err)
	require.Len(t, strategies, 1)
	assert.Equal(t, "Momentum", strategies[0].Name)
	assert.Equal(t, int32(1), api.refreshes.Load())
	assert.Equal(t, "access-refreshed", c.Tokens().AccessToken)
	assert.Equal(t, "refresh-2", c.Tokens().RefreshToken)
	assert.Len(t, saved, 2)
}

func TestConcurrentRefreshCollapses(t *testing.T) {
	api, srv := newFakeAPI(t)
	c := loggedIn(t, srv)
	api.mu.Lock()
	api.access = "access-refreshed"
	api.mu.Unlock()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.ListStrategies(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), api.refreshes.Load())
}

func TestRefreshRejected(t *testing.T) {
	api, srv := newFakeAPI(t)
	c := loggedIn(t, srv)

	api.mu.Lock()
	api.access = "access-refreshed"
	api.refresh = "revoked"
	api.mu.Unlock()

	_, err := c.ListStrategies(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "access-1", c.Tokens().AccessToken)
}

func TestAPIErrors(t *testing.T) {
	_, srv := newFakeAPI(t)
	c := loggedIn(t, srv)

	_, err := c.GetStrategy(context.Background(), uuid.New())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Strategy not found", apiErr.Message)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.CreateBacktest(context.Background(), CreateBacktestRequest{StrategyID: uuid.New()})
	assert.ErrorIs(t, err, ErrValidation)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, []string{"Name is required"}, apiErr.Errors)
	assert.Contains(t, err.Error(), "Name is required")
}

func TestBacktestFlow(t *testing.T) {
	api, srv := newFakeAPI(t)
	c := loggedIn(t, srv)
	ctx := context.Background()

	b, err := c.CreateBacktest(ctx, CreateBacktestRequest{StrategyID: api.strategy, Name: "Run 1"})
	require.NoError(t, err)
	assert.Equal(t, api.backtest, b.ID)
	assert.Equal(t, api.strategy, b.StrategyID)
	assert.False(t, b.Terminal())

	list, err := c.ListBacktests(ctx, api.strategy)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, api.strategy, list[0].StrategyID)

	done, err := c.WaitForBacktest(ctx, b.ID, 5*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	require.Len(t, done.Metrics, 1)
	assert.Equal(t, 15.0, done.Metrics[0].Value)

	assert.NoError(t, c.DeleteBacktest(ctx, b.ID))
}

func TestWaitForBacktestCancelled(t *testing.T) {
	api, srv := newFakeAPI(t)
	c := loggedIn(t, srv)
	api.polls.Store(-1000)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := c.WaitForBacktest(ctx, api.backtest, 5*time.Millisecond)
	assert.Error(t, err)
}

func TestLogout(t *testing.T) {
	_, srv := newFakeAPI(t)
	c := loggedIn(t, srv)

	require.NoError(t, c.Logout(context.Background()))
	assert.Equal(t, Tokens{}, c.Tokens())
	assert.NoError(t, c.Logout(context.Background()))
}

func TestSubscribeBacktests(t *testing.T) {
	api, srv := newFakeAPI(t)
	c := loggedIn(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	events, err := c.SubscribeBacktests(ctx)
	require.NoError(t, err)

	ev, ok := <-events
	require.True(t, ok)
	assert.Equal(t, "backtest.completed", ev.Type)
	assert.Equal(t, api.backtest, ev.BacktestID)

	_, ok = <-events
	assert.False(t, ok, "channel closes when the server hangs up")
}

func TestSubscribeBacktestsUnauthorized(t *testing.T) {
	api, srv := newFakeAPI(t)
	c := loggedIn(t, srv)
	api.expireAccess()

	_, err := c.SubscribeBacktests(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
}
