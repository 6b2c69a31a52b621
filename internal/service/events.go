package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/quail/internal/models"
)

// EventType names a backtest lifecycle transition
type EventType string

const (
	EventBacktestSubmitted EventType = "backtest.submitted"
	EventBacktestCompleted EventType = "backtest.completed"
	EventBacktestFailed    EventType = "backtest.failed"
)

const defaultSubscriberBuffer = 16

// BacktestEvent is published on every backtest status change
type BacktestEvent struct {
	Type       EventType             `json:"type"`
	BacktestID uuid.UUID             `json:"backtestId"`
	UserID     uuid.UUID             `json:"userId"`
	StrategyID uuid.UUID             `json:"strategyId"`
	Status     models.BacktestStatus `json:"status"`
	At         time.Time             `json:"at"`
}

// EventBus fans backtest events out to per-user subscribers
type EventBus struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]map[chan BacktestEvent]struct{}
	buffer int
	logger *logrus.Logger
}

// NewEventBus creates an event bus whose subscriber channels hold buffer events
func NewEventBus(buffer int, logger *logrus.Logger) *EventBus {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &EventBus{
		subs:   make(map[uuid.UUID]map[chan BacktestEvent]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe returns a channel of the user's events and a function that
// unsubscribes and closes it. The function may be called more than once.
func (b *EventBus) Subscribe(userID uuid.UUID) (<-chan BacktestEvent, func()) {
	ch := make(chan BacktestEvent, b.buffer)

	b.mu.Lock()
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[chan BacktestEvent]struct{})
	}
	b.subs[userID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[userID], ch)
			if len(b.subs[userID]) == 0 {
				delete(b.subs, userID)
			}
			close(ch)
			b.mu.Unlock()
		})
	}
}

// Publish delivers evt to the owner's subscribers without blocking.
// A subscriber whose buffer is full misses the event.
func (b *EventBus) Publish(evt BacktestEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[evt.UserID] {
		select {
		case ch <- evt:
		default:
			b.logger.WithFields(logrus.Fields{
				"backtest_id": evt.BacktestID,
				"user_id":     evt.UserID,
				"event":       evt.Type,
			}).Warn("Dropping backtest event for slow subscriber")
		}
	}
}

// Subscribers returns the number of open subscriptions
func (b *EventBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, set := range b.subs {
		n += len(set)
	}
	return n
}
