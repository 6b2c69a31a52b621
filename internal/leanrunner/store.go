// Package leanrunner is the standalone backtest runner service polled by the
// HTTP runner client.
package leanrunner

import (
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/yourusername/quail/internal/runner"
)

// Status values reported by GET /backtest/{id}
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Status is the tracked state of one backtest
type Status struct {
	runner.StatusResponse
	CreatedAt time.Time `json:"created_at"`
}

// StatusStore keeps backtest statuses in memory until they expire
type StatusStore struct {
	cache *cache.Cache
	ttl   time.Duration
	mu    sync.Mutex
}

// NewStatusStore creates a store whose entries live for ttl after their
// last update
func NewStatusStore(ttl time.Duration) *StatusStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &StatusStore{
		cache: cache.New(ttl, ttl/2),
		ttl:   ttl,
	}
}

// Begin records a new running backtest. It returns false when the id is
// already running.
func (s *StatusStore) Begin(id string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.get(id); ok && existing.Status == StatusRunning {
		return false
	}

	s.cache.Set(id, Status{
		StatusResponse: runner.StatusResponse{BacktestID: id, Status: StatusRunning},
		CreatedAt:      now,
	}, s.ttl)
	return true
}

// Complete stores the result document of a finished backtest
func (s *StatusStore) Complete(id string, results runner.Result) {
	s.update(id, func(st *Status) {
		st.Status = StatusCompleted
		st.Results = results
	})
}

// Fail stores the error of a failed backtest
func (s *StatusStore) Fail(id string, msg string) {
	s.update(id, func(st *Status) {
		st.Status = StatusFailed
		st.Error = msg
	})
}

// Get returns the status of a backtest
func (s *StatusStore) Get(id string) (Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id)
}

func (s *StatusStore) get(id string) (Status, bool) {
	v, found := s.cache.Get(id)
	if !found {
		return Status{}, false
	}
	st, ok := v.(Status)
	return st, ok
}

func (s *StatusStore) update(id string, fn func(*Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.get(id)
	if !ok {
		st = Status{
			StatusResponse: runner.StatusResponse{BacktestID: id},
			CreatedAt:      time.Now(),
		}
	}
	fn(&st)
	s.cache.Set(id, st, s.ttl)
}
