package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/douania/lovable-github-friendship-flow-sub001/internal/logger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestNewServiceRejectsBadSchedules(t *testing.T) {
	_, err := NewService([]Job{
		{Name: "ok", Schedule: "@hourly", Run: func(context.Context) error { return nil }},
		{Name: "bad", Schedule: "*/5 * * * *", Run: func(context.Context) error { return nil }},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `job "bad"`)
}

func TestRunDue(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)}
	var fastRuns, slowRuns int
	s, err := NewService([]Job{
		{Name: "fast", Schedule: "@every 1m", Run: func(context.Context) error { fastRuns++; return nil }},
		{Name: "slow", Schedule: "@every 10m", Run: func(context.Context) error { slowRuns++; return nil }},
	}, WithClock(clock.Now), WithLogger(logger.Discard()))
	require.NoError(t, err)

	assert.Equal(t, 0, s.RunDue(context.Background()), "nothing is due before the first period")

	clock.Advance(time.Minute)
	assert.Equal(t, 1, s.RunDue(context.Background()))
	assert.Equal(t, 1, fastRuns)
	assert.Equal(t, 0, slowRuns)

	clock.Advance(9 * time.Minute)
	assert.Equal(t, 2, s.RunDue(context.Background()))
	assert.Equal(t, 2, fastRuns)
	assert.Equal(t, 1, slowRuns)

	st := s.Status()
	require.Len(t, st, 2)
	assert.Equal(t, "fast", st[0].Name)
	assert.Equal(t, 2, st[0].Runs)
	assert.Equal(t, clock.Now().Add(time.Minute), st[0].NextRun)
	assert.Equal(t, clock.Now().Add(10*time.Minute), st[1].NextRun)
}

func TestRunDueRecordsFailure(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)}
	fail := true
	s, err := NewService([]Job{{
		Name:     "refresh:patients",
		Schedule: "@every 1m",
		Run: func(context.Context) error {
			if fail {
				return errors.New("upstream down")
			}
			return nil
		},
	}}, WithClock(clock.Now), WithLogger(logger.Discard()))
	require.NoError(t, err)

	clock.Advance(time.Minute)
	s.RunDue(context.Background())
	st := s.Status()[0]
	assert.Equal(t, "upstream down", st.LastError)
	assert.Equal(t, clock.Now().Add(time.Minute), st.NextRun, "a failed job is planned again")

	fail = false
	clock.Advance(time.Minute)
	s.RunDue(context.Background())
	assert.Empty(t, s.Status()[0].LastError)
	assert.Equal(t, 2, s.Status()[0].Runs)
}

func TestStartStop(t *testing.T) {
	ran := make(chan struct{}, 10)
	s, err := NewService([]Job{{
		Name: "tick", Schedule: "@every 1ms",
		Run: func(context.Context) error {
			select {
			case ran <- struct{}{}:
			default:
			}
			return nil
		},
	}}, WithTick(2*time.Millisecond), WithLogger(logger.Discard()))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job never ran")
	}
	s.Stop()
	s.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}
