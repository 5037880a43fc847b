package app

import (
	"fmt"
	"log/slog"

	"github.com/ibeckermayer/reply4me/internal/analytics"
	"github.com/ibeckermayer/reply4me/internal/config"
	"github.com/ibeckermayer/reply4me/internal/cursor"
	"github.com/ibeckermayer/reply4me/internal/gateway"
	"github.com/ibeckermayer/reply4me/internal/notifier"
	"github.com/ibeckermayer/reply4me/internal/quota"
	"github.com/ibeckermayer/reply4me/internal/replier"
	"github.com/ibeckermayer/reply4me/internal/replier/providers"
	"github.com/ibeckermayer/reply4me/internal/scoring"
	"github.com/ibeckermayer/reply4me/internal/sentiment"
	"github.com/ibeckermayer/reply4me/internal/store"
	"github.com/ibeckermayer/reply4me/internal/xapi"
)

// Build wires the production App from cfg. The caller owns the returned
// store and must close it.
func Build(cfg *config.Config, logger *slog.Logger) (*App, *store.Store, error) {
	sec := cfg.Secrets
	if sec.TwitterAPIKey == "" || sec.TwitterAPISecret == "" || sec.TwitterAccessToken == "" || sec.TwitterAccessTokenSecret == "" {
		return nil, nil, fmt.Errorf("missing X credentials: set TWITTER_API_KEY, TWITTER_API_SECRET, TWITTER_ACCESS_TOKEN and TWITTER_ACCESS_TOKEN_SECRET")
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}

	st, err := store.New(cfg.Storage.DBPath)
	if err != nil {
		return nil, nil, err
	}

	client := xapi.New(xapi.Credentials{
		ConsumerKey:    sec.TwitterAPIKey,
		ConsumerSecret: sec.TwitterAPISecret,
		AccessToken:    sec.TwitterAccessToken,
		AccessSecret:   sec.TwitterAccessTokenSecret,
	}, cfg.Retry.HTTPTimeout)
	gw := gateway.New(client,
		gateway.WithPolicy(gateway.NewPolicy(cfg.Retry.MaxAttempts, cfg.Retry.BaseDelay, cfg.Retry.DefaultRateLimitWait)),
		gateway.WithMinInterval(cfg.Retry.MinCallInterval),
		gateway.WithLogger(logger),
	)

	alerts, err := notifier.NewFromConfig(cfg.Alerts, sec.SMTPPass)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	rep, err := buildReplier(cfg, logger)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	e := cfg.Engagement
	a, err := New(cfg, Deps{
		Platform: gw,
		Store:    st,
		Quota:    quota.NewTracker(st, e.HourlyReplyCap),
		Cursor: cursor.New(st, gw,
			cursor.WithRecencyWindow(e.RecencyWindow),
			cursor.WithLimit(e.MentionLimit),
		),
		Scorer:    scoring.New(e.LeadKeywords),
		Replier:   rep,
		Sentiment: sentiment.New(),
		Analytics: analytics.New(st, gw,
			analytics.WithAlerter(alerts),
			analytics.WithThreshold(cfg.Analytics.SentimentAlertThreshold),
			analytics.WithLocation(loc),
			analytics.WithLogger(logger),
		),
		Media: DirMedia{Dir: cfg.Storage.MediaDir},
	}, WithLogger(logger))
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return a, st, nil
}

func buildReplier(cfg *config.Config, logger *slog.Logger) (*replier.Replier, error) {
	g := cfg.Generation
	opts := []replier.Option{
		replier.WithMaxLength(cfg.Engagement.ReplyMaxLength),
		replier.WithLogger(logger),
	}
	if g.CacheExchange {
		dir, err := config.ExchangeDir()
		if err != nil {
			return nil, err
		}
		opts = append(opts, replier.WithExchangeCache(dir))
	}

	var key string
	switch g.Provider {
	case config.ProviderNone:
		return replier.New(nil, opts...), nil
	case config.ProviderAnthropic:
		key = cfg.Secrets.AnthropicAPIKey
	case config.ProviderOpenAI:
		key = cfg.Secrets.OpenAIAPIKey
	}
	if key == "" {
		logger.Warn("no API key for LLM provider, replies will use canned answers", "provider", g.Provider)
		return replier.New(nil, opts...), nil
	}

	p, err := providers.New(g.Provider, providers.Settings{
		APIKey:      key,
		Model:       g.Model,
		MaxTokens:   g.MaxTokens,
		Temperature: g.Temperature,
	})
	if err != nil {
		return nil, err
	}
	return replier.New(p, opts...), nil
}
