package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterPerIP(t *testing.T) {
	rl := NewRateLimiter(1, 2)

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))

	assert.True(t, rl.Allow("10.0.0.2"))
}

func TestRateLimiterForgetsIdleVisitors(t *testing.T) {
	now := time.Now()
	rl := NewRateLimiter(1, 1)
	rl.now = func() time.Time { return now }

	rl.Allow("10.0.0.1")
	assert.Len(t, rl.visitors, 1)

	now = now.Add(visitorIdleTimeout + visitorSweepEvery + time.Second)
	rl.Allow("10.0.0.2")

	assert.Len(t, rl.visitors, 1)
	assert.Contains(t, rl.visitors, "10.0.0.2")
}
