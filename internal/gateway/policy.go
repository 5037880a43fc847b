package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ibeckermayer/reply4me/internal/platform"
)

const (
	DefaultMaxAttempts   = 3
	DefaultBaseDelay     = 2 * time.Second
	DefaultRateLimitWait = 900 * time.Second
)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Policy decides how a failed platform call is retried. Rate-limit waits
// never count against MaxAttempts.
type Policy struct {
	MaxAttempts int
	// Backoff returns a fresh delay schedule for one call.
	Backoff func() backoff.BackOff
	// IsRateLimit extracts the server-advised wait from err. A zero duration
	// with ok=true means "rate limited, no hint".
	IsRateLimit func(err error) (time.Duration, bool)
	// IsPermanent reports errors that must not be retried at all.
	IsPermanent func(err error) bool

	DefaultRateLimitWait time.Duration
	Sleep                Sleeper
}

// DefaultPolicy retries 3 times with 2s, 4s, ... backoff and honours the
// platform's RateLimitError.
func DefaultPolicy() Policy {
	return NewPolicy(DefaultMaxAttempts, DefaultBaseDelay, DefaultRateLimitWait)
}

// NewPolicy builds the standard policy with custom bounds.
func NewPolicy(maxAttempts int, baseDelay, rateLimitWait time.Duration) Policy {
	return Policy{
		MaxAttempts:          maxAttempts,
		Backoff:              ExponentialBackoff(baseDelay),
		IsRateLimit:          platformRateLimit,
		IsPermanent:          func(err error) bool { return errors.Is(err, platform.ErrPermanent) },
		DefaultRateLimitWait: rateLimitWait,
		Sleep:                SleepContext,
	}
}

// ExponentialBackoff doubles from base without jitter: base, 2*base, 4*base...
func ExponentialBackoff(base time.Duration) func() backoff.BackOff {
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = base
		b.Multiplier = 2
		b.RandomizationFactor = 0
		b.MaxInterval = 5 * time.Minute
		b.MaxElapsedTime = 0
		b.Reset()
		return b
	}
}

func platformRateLimit(err error) (time.Duration, bool) {
	rl, ok := platform.AsRateLimit(err)
	if !ok {
		return 0, false
	}
	return rl.RetryAfter, true
}

// SleepContext is the production Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Backoff == nil {
		p.Backoff = ExponentialBackoff(DefaultBaseDelay)
	}
	if p.IsRateLimit == nil {
		p.IsRateLimit = platformRateLimit
	}
	if p.IsPermanent == nil {
		p.IsPermanent = func(error) bool { return false }
	}
	if p.DefaultRateLimitWait <= 0 {
		p.DefaultRateLimitWait = DefaultRateLimitWait
	}
	if p.Sleep == nil {
		p.Sleep = SleepContext
	}
	return p
}
