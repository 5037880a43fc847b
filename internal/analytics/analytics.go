// Package analytics rolls interactions and post engagement up into one
// DailyAnalytics row per day and flags day-over-day sentiment drops.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ibeckermayer/reply4me/internal/metrics"
	"github.com/ibeckermayer/reply4me/internal/store"
)

const (
	DefaultAlertThreshold = -0.5
	DateLayout            = "2006-01-02"
	window                = 24 * time.Hour
)

// Store is the slice of the state store the aggregator reads and writes.
type Store interface {
	InteractionsBetween(ctx context.Context, since, until time.Time) (store.InteractionStats, error)
	EngagementBetween(ctx context.Context, since, until time.Time) (store.EngagementTotals, error)
	UpsertDailyAnalytics(ctx context.Context, a store.DailyAnalytics) error
	GetDailyAnalytics(ctx context.Context, date string) (*store.DailyAnalytics, error)
}

// FollowerSource reports the account's follower count.
type FollowerSource interface {
	GetFollowerCount(ctx context.Context) (int, error)
}

// SentimentDrop describes a day whose average sentiment fell by at least the
// configured threshold.
type SentimentDrop struct {
	Date      string
	Today     float64
	Yesterday float64
	Delta     float64
	Threshold float64
}

// Alerter receives sentiment-drop alerts. Delivery is best effort.
type Alerter interface {
	SentimentDrop(ctx context.Context, drop SentimentDrop) error
}

type Aggregator struct {
	store     Store
	followers FollowerSource
	alerter   Alerter
	threshold float64
	loc       *time.Location
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

func WithAlerter(a Alerter) Option {
	return func(g *Aggregator) { g.alerter = a }
}

// WithThreshold sets the (negative) day-over-day delta that raises an alert.
func WithThreshold(th float64) Option {
	return func(g *Aggregator) { g.threshold = th }
}

// WithLocation sets the timezone that defines calendar days.
func WithLocation(loc *time.Location) Option {
	return func(g *Aggregator) {
		if loc != nil {
			g.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Aggregator) { g.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Aggregator) { g.logger = l }
}

func New(s Store, f FollowerSource, opts ...Option) *Aggregator {
	g := &Aggregator{
		store:     s,
		followers: f,
		threshold: DefaultAlertThreshold,
		loc:       time.UTC,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("subsystem", "analytics")
	return g
}

// DateKey formats t's calendar day in the aggregator's timezone.
func (g *Aggregator) DateKey(t time.Time) string {
	return t.In(g.loc).Format(DateLayout)
}

// RunDailyRollup computes and upserts the row for date's calendar day. The
// 24h window ends at the earlier of now and the end of that day, so a run
// late in the day covers the trailing 24 hours and a backfill covers the day
// itself. Re-running for the same date overwrites the row.
func (g *Aggregator) RunDailyRollup(ctx context.Context, date time.Time) (*store.DailyAnalytics, error) {
	local := date.In(g.loc)
	key := local.Format(DateLayout)
	y, m, d := local.Date()
	endOfDay := time.Date(y, m, d, 0, 0, 0, 0, g.loc).AddDate(0, 0, 1)

	until := g.now()
	if until.After(endOfDay) {
		until = endOfDay
	}
	since := until.Add(-window)

	followers, err := g.followers.GetFollowerCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get follower count: %w", err)
	}

	stats, err := g.store.InteractionsBetween(ctx, since, until)
	if err != nil {
		return nil, err
	}
	eng, err := g.store.EngagementBetween(ctx, since, until)
	if err != nil {
		return nil, err
	}

	row := store.DailyAnalytics{
		Date:           key,
		FollowersCount: followers,
		MentionsCount:  stats.Mentions,
		RepliesSent:    stats.Total,
		AvgSentiment:   stats.AvgSentiment,
		EngagementRate: EngagementRate(eng),
	}
	if err := g.store.UpsertDailyAnalytics(ctx, row); err != nil {
		return nil, err
	}
	metrics.Followers.Set(float64(followers))

	g.logger.Info("daily rollup saved",
		"date", key,
		"followers", row.FollowersCount,
		"mentions", row.MentionsCount,
		"replies_sent", row.RepliesSent,
		"avg_sentiment", row.AvgSentiment,
		"engagement_rate", row.EngagementRate,
	)

	g.checkSentiment(ctx, local, row)
	return &row, nil
}

// checkSentiment is advisory: failures are logged, never returned.
func (g *Aggregator) checkSentiment(ctx context.Context, day time.Time, today store.DailyAnalytics) {
	yKey := day.AddDate(0, 0, -1).Format(DateLayout)
	prev, err := g.store.GetDailyAnalytics(ctx, yKey)
	if err != nil {
		g.logger.Warn("failed to read previous rollup", "date", yKey, "error", err)
		return
	}
	var yesterday float64
	if prev != nil {
		yesterday = prev.AvgSentiment
	}

	delta := today.AvgSentiment - yesterday
	if delta > g.threshold {
		return
	}

	drop := SentimentDrop{
		Date:      today.Date,
		Today:     today.AvgSentiment,
		Yesterday: yesterday,
		Delta:     delta,
		Threshold: g.threshold,
	}
	g.logger.Warn("sentiment dropped",
		"alert", "sentiment_drop",
		"date", drop.Date,
		"today", drop.Today,
		"yesterday", drop.Yesterday,
		"delta", drop.Delta,
	)
	if g.alerter == nil {
		return
	}
	if err := g.alerter.SentimentDrop(ctx, drop); err != nil {
		g.logger.Warn("failed to deliver sentiment alert", "error", err)
	}
}

// EngagementRate is (likes + retweets + replies) / max(1, posts).
func EngagementRate(t store.EngagementTotals) float64 {
	posts := t.Posts
	if posts < 1 {
		posts = 1
	}
	return float64(t.Likes+t.Retweets+t.Replies) / float64(posts)
}
