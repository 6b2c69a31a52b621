package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/quail/internal/models"
)

func TestEventBus_DeliversOnlyOwnEvents(t *testing.T) {
	bus := NewEventBus(4, testLogger())
	alice, bob := uuid.New(), uuid.New()

	aliceCh, unsubAlice := bus.Subscribe(alice)
	defer unsubAlice()
	bobCh, unsubBob := bus.Subscribe(bob)
	defer unsubBob()

	evt := BacktestEvent{Type: EventBacktestCompleted, BacktestID: uuid.New(), UserID: alice, Status: models.BacktestStatusCompleted, At: time.Now()}
	bus.Publish(evt)

	select {
	case got := <-aliceCh:
		assert.Equal(t, evt, got)
	default:
		t.Fatal("expected event for subscriber")
	}

	select {
	case got := <-bobCh:
		t.Fatalf("unexpected event for other user: %+v", got)
	default:
	}
}

func TestEventBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := NewEventBus(1, testLogger())
	user := uuid.New()

	ch, unsubscribe := bus.Subscribe(user)
	assert.Equal(t, 1, bus.Subscribers())

	unsubscribe()
	unsubscribe()

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, bus.Subscribers())

	assert.NotPanics(t, func() {
		bus.Publish(BacktestEvent{UserID: user})
	})
}

func TestEventBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewEventBus(1, testLogger())
	user := uuid.New()

	ch, unsubscribe := bus.Subscribe(user)
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(BacktestEvent{UserID: user, Type: EventBacktestSubmitted})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	require.Len(t, ch, 1)
}
