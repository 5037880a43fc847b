// Package app wires the engagement components into the bot's five jobs:
// daily post, mention poll, hashtag scan, metrics refresh and daily rollup.
// Each job method is one invocation; scheduling lives in internal/scheduler.
package app

import (
	"context"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ibeckermayer/reply4me/internal/analytics"
	"github.com/ibeckermayer/reply4me/internal/config"
	"github.com/ibeckermayer/reply4me/internal/cursor"
	"github.com/ibeckermayer/reply4me/internal/quota"
	"github.com/ibeckermayer/reply4me/internal/quotes"
	"github.com/ibeckermayer/reply4me/internal/replier"
	"github.com/ibeckermayer/reply4me/internal/scheduler"
	"github.com/ibeckermayer/reply4me/internal/scoring"
	"github.com/ibeckermayer/reply4me/internal/sentiment"
	"github.com/ibeckermayer/reply4me/internal/store"
	"github.com/ibeckermayer/reply4me/internal/types"
)

// Job names, used for scheduling, locks, logs and metrics.
const (
	JobPost    = "post"
	JobPoll    = "poll"
	JobScan    = "scan"
	JobRefresh = "refresh"
	JobRollup  = "rollup"
)

// engagedCacheSize bounds the set of recently engaged candidate ids.
const engagedCacheSize = 4096

// Platform is the gateway surface the jobs call. *gateway.Gateway
// implements it.
type Platform interface {
	FetchCandidates(ctx context.Context, query string, limit int) ([]types.Candidate, error)
	PostContent(ctx context.Context, text, mediaRef string) (string, error)
	Reply(ctx context.Context, text, targetID string) (string, error)
	Like(ctx context.Context, targetID string) (bool, error)
	Repost(ctx context.Context, targetID string) (bool, error)
	GetMetrics(ctx context.Context, targetID string) (types.Metrics, error)
	UploadMedia(ctx context.Context, path string) (string, error)
	SelfID(ctx context.Context) (string, error)
}

// MediaRenderer produces an image file to attach to the daily post. An
// empty path means "post without media".
type MediaRenderer interface {
	Render(ctx context.Context, q quotes.Quote, cat quotes.Category) (string, error)
}

// Deps are the collaborators an App is built from.
type Deps struct {
	Platform  Platform
	Store     *store.Store
	Quota     *quota.Tracker
	Cursor    *cursor.Manager
	Scorer    *scoring.Scorer
	Replier   *replier.Replier
	Sentiment *sentiment.Analyzer
	Analytics *analytics.Aggregator
	Picker    *quotes.Picker
	Media     MediaRenderer
}

// App holds the application state.
type App struct {
	platform  Platform
	store     *store.Store
	quota     *quota.Tracker
	cursor    *cursor.Manager
	scorer    *scoring.Scorer
	replier   *replier.Replier
	sentiment *sentiment.Analyzer
	analytics *analytics.Aggregator
	picker    *quotes.Picker
	media     MediaRenderer

	cfg        *config.Config
	thresholds scoring.Thresholds
	categories []quotes.Category
	loc        *time.Location
	now        func() time.Time
	logger     *slog.Logger

	// engaged remembers candidates acted on by earlier scans, since
	// consecutive search windows overlap.
	engaged *lru.Cache[string, struct{}]
}

// Option configures an App.
type Option func(*App)

func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithCategories replaces the daily-post category rotation.
func WithCategories(cats []quotes.Category) Option {
	return func(a *App) {
		if len(cats) > 0 {
			a.categories = cats
		}
	}
}

// New creates a new App instance.
func New(cfg *config.Config, d Deps, opts ...Option) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	engaged, err := lru.New[string, struct{}](engagedCacheSize)
	if err != nil {
		return nil, err
	}

	a := &App{
		platform:  d.Platform,
		store:     d.Store,
		quota:     d.Quota,
		cursor:    d.Cursor,
		scorer:    d.Scorer,
		replier:   d.Replier,
		sentiment: d.Sentiment,
		analytics: d.Analytics,
		picker:    d.Picker,
		media:     d.Media,
		cfg:       cfg,
		thresholds: scoring.Thresholds{
			Like:   cfg.Engagement.LikeThreshold,
			Repost: cfg.Engagement.RepostThreshold,
			Reply:  cfg.Engagement.ReplyThreshold,
		},
		categories: quotes.DefaultCategories,
		loc:        loc,
		now:        time.Now,
		logger:     slog.Default(),
		engaged:    engaged,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.scorer == nil {
		a.scorer = scoring.New(cfg.Engagement.LeadKeywords)
	}
	if a.sentiment == nil {
		a.sentiment = sentiment.New()
	}
	if a.picker == nil {
		a.picker = quotes.RandomPicker()
	}
	if a.replier == nil {
		a.replier = replier.New(nil, replier.WithMaxLength(cfg.Engagement.ReplyMaxLength))
	}
	return a, nil
}

// Jobs maps job names to their invocations.
func (a *App) Jobs() map[string]scheduler.Job {
	return map[string]scheduler.Job{
		JobPost:    a.PostDaily,
		JobPoll:    a.PollMentions,
		JobScan:    a.ScanHashtags,
		JobRefresh: a.RefreshMetrics,
		JobRollup:  func(ctx context.Context) error { return a.Rollup(ctx, time.Time{}) },
	}
}

// Register adds every job to s on the configured schedule.
func (a *App) Register(s *scheduler.Scheduler) error {
	sc := a.cfg.Schedule
	jobs := a.Jobs()
	if err := s.AddDailyJob(JobPost, sc.PostTime, jobs[JobPost]); err != nil {
		return err
	}
	if err := s.AddIntervalJob(JobPoll, sc.MentionInterval, jobs[JobPoll]); err != nil {
		return err
	}
	if err := s.AddIntervalJob(JobScan, sc.ScanInterval, jobs[JobScan]); err != nil {
		return err
	}
	if err := s.AddIntervalJob(JobRefresh, sc.RefreshInterval, jobs[JobRefresh]); err != nil {
		return err
	}
	if err := s.AddDailyJob(JobRollup, sc.RollupTime, jobs[JobRollup]); err != nil {
		return err
	}
	return nil
}

func (a *App) jobLogger(name string) *slog.Logger {
	return a.logger.With("job", name)
}
