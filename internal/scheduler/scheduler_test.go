package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T, opts ...Option) *Scheduler {
	t.Helper()
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	s, err := New("Asia/Kolkata", opts...)
	require.NoError(t, err)
	return s
}

func TestNewRejectsUnknownTimezone(t *testing.T) {
	_, err := New("Mars/Olympus")
	assert.Error(t, err)
}

func TestDailySpec(t *testing.T) {
	spec, err := DailySpec("09:05")
	require.NoError(t, err)
	assert.Equal(t, "5 9 * * *", spec)

	_, err = DailySpec("9am")
	assert.Error(t, err)
}

func TestRunNowReturnsJobError(t *testing.T) {
	s := newTestScheduler(t)
	want := errors.New("boom")
	err := s.RunNow(context.Background(), "post", func(context.Context) error { return want })
	assert.ErrorIs(t, err, want)
}

func TestRunNowRecoversPanic(t *testing.T) {
	s := newTestScheduler(t)
	err := s.RunNow(context.Background(), "scan", func(context.Context) error {
		panic("nil candidate")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil candidate")

	// The lock was released despite the panic.
	assert.NoError(t, s.RunNow(context.Background(), "scan", func(context.Context) error { return nil }))
}

func TestRunNowIsNonReentrant(t *testing.T) {
	s := newTestScheduler(t)
	started := make(chan struct{})
	finish := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- s.RunNow(context.Background(), "poll", func(context.Context) error {
			close(started)
			<-finish
			return nil
		})
	}()
	<-started

	err := s.RunNow(context.Background(), "poll", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrJobRunning)

	// A different job is not blocked.
	assert.NoError(t, s.RunNow(context.Background(), "scan", func(context.Context) error { return nil }))

	close(finish)
	require.NoError(t, <-done)
}

func TestRunNowAppliesTimeout(t *testing.T) {
	s := newTestScheduler(t, WithJobTimeout(20*time.Millisecond))
	err := s.RunNow(context.Background(), "refresh", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDailyJobNextRunInTimezone(t *testing.T) {
	s := newTestScheduler(t)
	require.NoError(t, s.AddDailyJob("post", "09:00", func(context.Context) error { return nil }))
	require.NoError(t, s.AddIntervalJob("poll", time.Minute, func(context.Context) error { return nil }))

	s.Start(context.Background())
	defer s.Stop()

	jobs := s.ListJobs()
	require.Len(t, jobs, 2)
	for _, j := range jobs {
		if j.Name != "post" {
			continue
		}
		next := j.NextRun.In(s.Location())
		assert.Equal(t, 9, next.Hour())
		assert.Equal(t, 0, next.Minute())
	}
}

func TestIntervalJobFires(t *testing.T) {
	s := newTestScheduler(t)
	var runs atomic.Int32
	require.NoError(t, s.AddIntervalJob("poll", time.Second, func(context.Context) error {
		runs.Add(1)
		return nil
	}))

	s.Start(context.Background())
	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
	<-s.Stop().Done()
}

func TestAddIntervalJobRejectsTinyInterval(t *testing.T) {
	s := newTestScheduler(t)
	assert.Error(t, s.AddIntervalJob("poll", 10*time.Millisecond, func(context.Context) error { return nil }))
}
