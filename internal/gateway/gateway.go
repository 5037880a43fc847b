// Package gateway wraps every outbound platform call with a uniform retry
// policy: rate-limit sleeps, bounded exponential backoff for transient
// failures, and a single ExternalServiceError once attempts are exhausted.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/ibeckermayer/reply4me/internal/metrics"
	"github.com/ibeckermayer/reply4me/internal/platform"
	"github.com/ibeckermayer/reply4me/internal/types"
)

// Gateway is safe for concurrent use by distinct callers. Calls are blocking.
type Gateway struct {
	client  platform.Client
	policy  Policy
	limiter *rate.Limiter
	logger  *slog.Logger

	selfMu sync.Mutex
	selfID string
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithPolicy replaces the default retry policy.
func WithPolicy(p Policy) Option {
	return func(g *Gateway) { g.policy = p }
}

// WithMinInterval spaces consecutive platform calls at least d apart.
func WithMinInterval(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// New creates a Gateway around client.
func New(client platform.Client, opts ...Option) *Gateway {
	g := &Gateway{
		client: client,
		policy: DefaultPolicy(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.policy = g.policy.withDefaults()
	g.logger = g.logger.With("subsystem", "gateway")
	return g
}

// call runs fn under the retry policy. Rate-limit waits are free; other
// failures consume an attempt and back off exponentially between attempts.
func call[T any](ctx context.Context, g *Gateway, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	p := g.policy
	schedule := p.Backoff()
	attempts := 0

	for {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return zero, &ExternalServiceError{Op: op, Attempts: attempts, Err: err}
			}
		}

		res, err := fn(ctx)
		if err == nil {
			return res, nil
		}

		if wait, ok := p.IsRateLimit(err); ok {
			if wait <= 0 {
				wait = p.DefaultRateLimitWait
			}
			metrics.GatewayRetryCount.WithLabelValues(op, "rate_limit").Inc()
			g.logger.Warn("rate limited, sleeping", "op", op, "wait", wait)
			if serr := p.Sleep(ctx, wait); serr != nil {
				return zero, &ExternalServiceError{Op: op, Attempts: attempts, Err: serr}
			}
			continue
		}

		attempts++
		if p.IsPermanent(err) || errors.Is(err, context.Canceled) {
			return zero, &ExternalServiceError{Op: op, Attempts: attempts, Err: err}
		}
		if attempts >= p.MaxAttempts {
			g.logger.Error("platform call failed", "op", op, "attempts", attempts, "error", err)
			return zero, &ExternalServiceError{Op: op, Attempts: attempts, Exhausted: true, Err: err}
		}

		delay := schedule.NextBackOff()
		if delay == backoff.Stop {
			return zero, &ExternalServiceError{Op: op, Attempts: attempts, Exhausted: true, Err: err}
		}
		metrics.GatewayRetryCount.WithLabelValues(op, "transient").Inc()
		g.logger.Warn("platform call failed, retrying", "op", op, "attempt", attempts, "max_attempts", p.MaxAttempts, "delay", delay, "error", err)
		if serr := p.Sleep(ctx, delay); serr != nil {
			return zero, &ExternalServiceError{Op: op, Attempts: attempts, Err: serr}
		}
	}
}

// FetchCandidates searches recent public posts matching query.
func (g *Gateway) FetchCandidates(ctx context.Context, query string, limit int) ([]types.Candidate, error) {
	page, err := call(ctx, g, "search_recent", func(ctx context.Context) (*platform.Page, error) {
		return g.client.SearchRecent(ctx, query, limit)
	})
	if err != nil {
		return nil, err
	}
	return page.Candidates(), nil
}

// FetchMentionsSince returns mentions with ids greater than cursor. An empty
// cursor means "no watermark yet".
func (g *Gateway) FetchMentionsSince(ctx context.Context, cursor string, limit int) ([]types.Candidate, error) {
	page, err := call(ctx, g, "get_mentions", func(ctx context.Context) (*platform.Page, error) {
		return g.client.GetMentionsSince(ctx, cursor, limit)
	})
	if err != nil {
		return nil, err
	}
	return page.Candidates(), nil
}

// PostContent publishes a new post. mediaRef is an uploaded media id, or "".
func (g *Gateway) PostContent(ctx context.Context, text, mediaRef string) (string, error) {
	var mediaIDs []string
	if mediaRef != "" {
		mediaIDs = []string{mediaRef}
	}
	return call(ctx, g, "create_post", func(ctx context.Context) (string, error) {
		return g.client.CreatePost(ctx, text, mediaIDs)
	})
}

// Reply answers targetID with text and returns the new post id.
func (g *Gateway) Reply(ctx context.Context, text, targetID string) (string, error) {
	return call(ctx, g, "reply", func(ctx context.Context) (string, error) {
		return g.client.ReplyTo(ctx, text, targetID)
	})
}

// Like likes targetID.
func (g *Gateway) Like(ctx context.Context, targetID string) (bool, error) {
	return call(ctx, g, "like", func(ctx context.Context) (bool, error) {
		return g.client.Like(ctx, targetID)
	})
}

// Repost reposts targetID.
func (g *Gateway) Repost(ctx context.Context, targetID string) (bool, error) {
	return call(ctx, g, "repost", func(ctx context.Context) (bool, error) {
		return g.client.Repost(ctx, targetID)
	})
}

// GetMetrics returns the current public metrics of targetID.
func (g *Gateway) GetMetrics(ctx context.Context, targetID string) (types.Metrics, error) {
	return call(ctx, g, "get_metrics", func(ctx context.Context) (types.Metrics, error) {
		return g.client.GetPostMetrics(ctx, targetID)
	})
}

// GetFollowerCount returns the account's follower count.
func (g *Gateway) GetFollowerCount(ctx context.Context) (int, error) {
	return call(ctx, g, "get_follower_count", func(ctx context.Context) (int, error) {
		return g.client.GetFollowerCount(ctx)
	})
}

// UploadMedia uploads the file at path and returns its media id.
func (g *Gateway) UploadMedia(ctx context.Context, path string) (string, error) {
	return call(ctx, g, "upload_media", func(ctx context.Context) (string, error) {
		return g.client.UploadMedia(ctx, path)
	})
}

// SelfID returns the authenticated account id, fetched once and cached.
func (g *Gateway) SelfID(ctx context.Context) (string, error) {
	g.selfMu.Lock()
	defer g.selfMu.Unlock()
	if g.selfID != "" {
		return g.selfID, nil
	}
	id, err := call(ctx, g, "get_self_id", func(ctx context.Context) (string, error) {
		return g.client.GetSelfID(ctx)
	})
	if err != nil {
		return "", err
	}
	g.selfID = id
	return id, nil
}
