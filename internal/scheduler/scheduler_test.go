package scheduler

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBacktests struct {
	calls     atomic.Int32
	olderThan time.Duration
	abandoned int
	err       error
}

func (f *fakeBacktests) FailStale(_ context.Context, olderThan time.Duration) (int, error) {
	f.calls.Add(1)
	f.olderThan = olderThan
	return f.abandoned, f.err
}

type fakeTokens struct {
	before time.Time
}

func (f *fakeTokens) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	f.before = before
	return 3, nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestSweepStale(t *testing.T) {
	backtests := &fakeBacktests{abandoned: 2}
	s := NewScheduler(backtests, &fakeTokens{}, testLogger())

	n, err := s.SweepStale(context.Background(), 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 15*time.Minute, backtests.olderThan)

	backtests.err = errors.New("db down")
	_, err = s.SweepStale(context.Background(), time.Minute)
	assert.Error(t, err)
}

func TestPurgeTokens(t *testing.T) {
	tokens := &fakeTokens{}
	s := NewScheduler(&fakeBacktests{}, tokens, testLogger())

	n, err := s.PurgeTokens(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.WithinDuration(t, time.Now(), tokens.before, time.Second)
}

func TestSchedulerLifecycle(t *testing.T) {
	backtests := &fakeBacktests{}
	s := NewScheduler(backtests, &fakeTokens{}, testLogger())

	assert.Error(t, s.Start(), "no jobs scheduled")
	assert.Error(t, s.ScheduleStaleSweep("not a schedule", time.Minute))

	require.NoError(t, s.ScheduleStaleSweep("@every 1s", time.Minute))
	require.NoError(t, s.ScheduleTokenPurge(TokenPurgeSchedule))
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.False(t, s.NextRun().IsZero())
	assert.Error(t, s.ScheduleTokenPurge("@hourly"))

	assert.Eventually(t, func() bool { return backtests.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.IsRunning())
}
