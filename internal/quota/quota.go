// Package quota enforces the hourly reply budget, persisted in the state
// store's meta table, and the in-memory per-cycle action ceiling.
package quota

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ibeckermayer/reply4me/internal/metrics"
	"github.com/ibeckermayer/reply4me/internal/store"
)

const (
	DefaultHourlyCap = 30
	DefaultCycleCap  = 50
	Window           = time.Hour
)

// MetaStore is the slice of the state store the tracker needs.
type MetaStore interface {
	UpdateMeta(ctx context.Context, keys []string, fn func(cur map[string]string) (map[string]string, error)) error
	GetMeta(ctx context.Context, key string) (string, bool, error)
}

// Tracker is a rolling hourly counter. All reads and writes of the counter
// and its reset instant happen inside one meta transaction.
type Tracker struct {
	store MetaStore
	cap   int
	now   func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a Tracker allowing cap consumptions per hour.
func NewTracker(s MetaStore, cap int, opts ...Option) *Tracker {
	if cap <= 0 {
		cap = DefaultHourlyCap
	}
	t := &Tracker{store: s, cap: cap, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Cap returns the configured hourly cap.
func (t *Tracker) Cap() int { return t.cap }

// TryConsume takes n units from the current window. It returns false, and
// leaves the count untouched, if that would exceed the cap. A window that has
// expired is reset to zero with a new reset instant of now+1h first.
func (t *Tracker) TryConsume(ctx context.Context, n int) (bool, error) {
	if n <= 0 {
		n = 1
	}
	now := t.now().UTC()
	var allowed bool
	var used int

	err := t.store.UpdateMeta(ctx, []string{store.MetaHourlyInteractionCount, store.MetaHourlyResetAt},
		func(cur map[string]string) (map[string]string, error) {
			count, resetAt, err := parseCounters(cur)
			if err != nil {
				return nil, err
			}

			next := map[string]string{}
			if resetAt.IsZero() || now.After(resetAt) {
				count = 0
				resetAt = now.Add(Window)
				next[store.MetaHourlyInteractionCount] = "0"
				next[store.MetaHourlyResetAt] = resetAt.Format(time.RFC3339Nano)
			}

			used = count
			if count+n > t.cap {
				allowed = false
				return next, nil
			}
			allowed = true
			used = count + n
			next[store.MetaHourlyInteractionCount] = strconv.Itoa(used)
			return next, nil
		})
	if err != nil {
		return false, err
	}
	metrics.HourlyQuotaUsed.Set(float64(used))
	return allowed, nil
}

// Usage reports the persisted count and reset instant without resetting.
func (t *Tracker) Usage(ctx context.Context) (int, time.Time, error) {
	cur := map[string]string{}
	for _, k := range []string{store.MetaHourlyInteractionCount, store.MetaHourlyResetAt} {
		v, ok, err := t.store.GetMeta(ctx, k)
		if err != nil {
			return 0, time.Time{}, err
		}
		if ok {
			cur[k] = v
		}
	}
	return parseCounters(cur)
}

func parseCounters(cur map[string]string) (int, time.Time, error) {
	var count int
	var resetAt time.Time
	if v, ok := cur[store.MetaHourlyInteractionCount]; ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, time.Time{}, fmt.Errorf("corrupt %s %q: %w", store.MetaHourlyInteractionCount, v, err)
		}
		count = n
	}
	if v, ok := cur[store.MetaHourlyResetAt]; ok && v != "" {
		ts, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return 0, time.Time{}, fmt.Errorf("corrupt %s %q: %w", store.MetaHourlyResetAt, v, err)
		}
		resetAt = ts
	}
	return count, resetAt, nil
}
