package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

const appName = "reply4me"

// Config holds all application configuration
type Config struct {
	Version    int              `toml:"version"`
	Schedule   ScheduleConfig   `toml:"schedule"`
	Engagement EngagementConfig `toml:"engagement"`
	Retry      RetryConfig      `toml:"retry"`
	Analytics  AnalyticsConfig  `toml:"analytics"`
	Generation GenerationConfig `toml:"generation"`
	Storage    StorageConfig    `toml:"storage"`
	Alerts     AlertsConfig     `toml:"alerts"`
	Metrics    MetricsConfig    `toml:"metrics"`
	Log        LogConfig        `toml:"log"`

	// Secrets come from the environment only and are never written to disk.
	Secrets Secrets `toml:"-"`
}

type ScheduleConfig struct {
	Timezone        string        `toml:"timezone"`
	PostTime        string        `toml:"post_time"`
	RollupTime      string        `toml:"rollup_time"`
	MentionInterval time.Duration `toml:"mention_interval"`
	ScanInterval    time.Duration `toml:"scan_interval"`
	RefreshInterval time.Duration `toml:"refresh_interval"`
}

type EngagementConfig struct {
	Hashtags        []string      `toml:"hashtags"`
	ReplyKeywords   []string      `toml:"reply_keywords"`
	LeadKeywords    []string      `toml:"lead_keywords"`
	LikeThreshold   int           `toml:"like_threshold"`
	RepostThreshold int           `toml:"repost_threshold"`
	ReplyThreshold  int           `toml:"reply_threshold"`
	HourlyReplyCap  int           `toml:"hourly_reply_cap"`
	CycleActionCap  int           `toml:"cycle_action_cap"`
	RecencyWindow   time.Duration `toml:"recency_window"`
	SearchLimit     int           `toml:"search_limit"`
	MentionLimit    int           `toml:"mention_limit"`
	ReplyMaxLength  int           `toml:"reply_max_length"`
	RefreshLookback time.Duration `toml:"refresh_lookback"`
	RefreshWorkers  int           `toml:"refresh_workers"`
}

type RetryConfig struct {
	MaxAttempts          int           `toml:"max_attempts"`
	BaseDelay            time.Duration `toml:"base_delay"`
	DefaultRateLimitWait time.Duration `toml:"default_rate_limit_wait"`
	MinCallInterval      time.Duration `toml:"min_call_interval"`
	HTTPTimeout          time.Duration `toml:"http_timeout"`
}

type AnalyticsConfig struct {
	SentimentAlertThreshold float64 `toml:"sentiment_alert_threshold"`
}

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderNone      = "none"
)

type GenerationConfig struct {
	Provider      string  `toml:"provider"`
	Model         string  `toml:"model"`
	MaxTokens     int64   `toml:"max_tokens"`
	Temperature   float64 `toml:"temperature"`
	CacheExchange bool    `toml:"cache_exchanges"`
}

type StorageConfig struct {
	DataDir    string `toml:"data_dir"`
	DBPath     string `toml:"db_path"`
	QuotesPath string `toml:"quotes_path"`
	MediaDir   string `toml:"media_dir"`
}

type AlertsConfig struct {
	Provider string `toml:"provider"`
	SMTPHost string `toml:"smtp_host"`
	SMTPPort int    `toml:"smtp_port"`
	SMTPUser string `toml:"smtp_user"`
	FromAddr string `toml:"from_address"`
	ToAddr   string `toml:"to_address"`
}

type MetricsConfig struct {
	ListenAddr string `toml:"listen_addr"`
}

type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
	JSON  bool   `toml:"json"`
}

// Secrets are read from the environment (and an optional .env file).
type Secrets struct {
	TwitterAPIKey            string `env:"TWITTER_API_KEY"`
	TwitterAPISecret         string `env:"TWITTER_API_SECRET"`
	TwitterAccessToken       string `env:"TWITTER_ACCESS_TOKEN"`
	TwitterAccessTokenSecret string `env:"TWITTER_ACCESS_TOKEN_SECRET"`
	AnthropicAPIKey          string `env:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey             string `env:"OPENAI_API_KEY"`
	SMTPPass                 string `env:"SMTP_PASS"`
}

// overrides are the non-secret settings that may also be set from the
// environment. Nil means unset.
type overrides struct {
	PostTime                *string  `env:"POST_TIME"`
	Timezone                *string  `env:"BOT_TIMEZONE"`
	MaxRepliesPerHour       *int     `env:"MAX_REPLIES_PER_HOUR"`
	Hashtags                []string `env:"HASHTAGS_TO_MONITOR" envSeparator:","`
	ReplyKeywords           []string `env:"REPLY_KEYWORDS" envSeparator:","`
	SentimentAlertThreshold *float64 `env:"SENTIMENT_ALERT_THRESHOLD"`
	OpenAIModel             *string  `env:"OPENAI_MODEL"`
	LogLevel                *string  `env:"LOG_LEVEL"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Schedule: ScheduleConfig{
			Timezone:        "Asia/Kolkata",
			PostTime:        "09:00",
			RollupTime:      "23:59",
			MentionInterval: time.Minute,
			ScanInterval:    10 * time.Minute,
			RefreshInterval: 30 * time.Minute,
		},
		Engagement: EngagementConfig{
			Hashtags:        []string{"freelancing", "webdevelopment", "AItools"},
			ReplyKeywords:   []string{"pricing", "cost", "hire", "available"},
			LeadKeywords:    []string{"startup", "founder", "hiring", "freelance", "website", "ai", "automation", "lead"},
			LikeThreshold:   20,
			RepostThreshold: 60,
			ReplyThreshold:  70,
			HourlyReplyCap:  30,
			CycleActionCap:  50,
			RecencyWindow:   2 * time.Minute,
			SearchLimit:     50,
			MentionLimit:    50,
			ReplyMaxLength:  275,
			RefreshLookback: 48 * time.Hour,
			RefreshWorkers:  4,
		},
		Retry: RetryConfig{
			MaxAttempts:          3,
			BaseDelay:            2 * time.Second,
			DefaultRateLimitWait: 900 * time.Second,
			HTTPTimeout:          30 * time.Second,
		},
		Analytics: AnalyticsConfig{
			SentimentAlertThreshold: -0.5,
		},
		Generation: GenerationConfig{
			Provider:    ProviderOpenAI,
			Model:       "gpt-4o-mini",
			MaxTokens:   180,
			Temperature: 0.7,
		},
		Alerts: AlertsConfig{
			Provider: "log",
			SMTPPort: 587,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, appName), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the platform-appropriate cache directory
func CacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, appName), nil
}

// ExchangeDir is where saved LLM exchanges are written.
func ExchangeDir() (string, error) {
	dir, err := CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "exchanges"), nil
}

// Load reads config from path (the default location if empty), layering the
// file over Default() and the environment over the file. A missing file is
// not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if err := env.Parse(&c.Secrets); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	var o overrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if o.PostTime != nil {
		c.Schedule.PostTime = *o.PostTime
	}
	if o.Timezone != nil {
		c.Schedule.Timezone = *o.Timezone
	}
	if o.MaxRepliesPerHour != nil {
		c.Engagement.HourlyReplyCap = *o.MaxRepliesPerHour
	}
	if len(o.Hashtags) > 0 {
		c.Engagement.Hashtags = o.Hashtags
	}
	if len(o.ReplyKeywords) > 0 {
		c.Engagement.ReplyKeywords = o.ReplyKeywords
	}
	if o.SentimentAlertThreshold != nil {
		c.Analytics.SentimentAlertThreshold = *o.SentimentAlertThreshold
	}
	if o.OpenAIModel != nil && c.Generation.Provider == ProviderOpenAI {
		c.Generation.Model = *o.OpenAIModel
	}
	if o.LogLevel != nil {
		c.Log.Level = *o.LogLevel
	}
	return nil
}

// resolvePaths fills storage paths left empty with locations under DataDir.
func (c *Config) resolvePaths() error {
	s := &c.Storage
	if s.DataDir == "" {
		dir, err := ConfigDir()
		if err != nil {
			return err
		}
		s.DataDir = filepath.Join(dir, "data")
	}
	if s.DBPath == "" {
		s.DBPath = filepath.Join(s.DataDir, "bot.db")
	}
	if s.QuotesPath == "" {
		s.QuotesPath = filepath.Join(s.DataDir, "quotes.json")
	}
	if s.MediaDir == "" {
		s.MediaDir = filepath.Join(s.DataDir, "media")
	}
	return nil
}

// Location loads the configured timezone
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Schedule.Timezone)
}

// Validate returns an error naming the first invalid field
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("schedule.timezone: %w", err)
	}
	if _, _, err := ParseClock(c.Schedule.PostTime); err != nil {
		return fmt.Errorf("schedule.post_time: %w", err)
	}
	if _, _, err := ParseClock(c.Schedule.RollupTime); err != nil {
		return fmt.Errorf("schedule.rollup_time: %w", err)
	}
	intervals := []struct {
		name string
		d    time.Duration
	}{
		{"schedule.mention_interval", c.Schedule.MentionInterval},
		{"schedule.scan_interval", c.Schedule.ScanInterval},
		{"schedule.refresh_interval", c.Schedule.RefreshInterval},
	}
	for _, iv := range intervals {
		if iv.d < time.Second {
			return fmt.Errorf("%s: must be at least 1s, got %s", iv.name, iv.d)
		}
	}

	e := c.Engagement
	if len(e.Hashtags) == 0 {
		return fmt.Errorf("engagement.hashtags: at least one hashtag is required")
	}
	if !(0 <= e.LikeThreshold && e.LikeThreshold <= e.RepostThreshold && e.RepostThreshold <= e.ReplyThreshold && e.ReplyThreshold <= 100) {
		return fmt.Errorf("engagement thresholds: need 0 <= like (%d) <= repost (%d) <= reply (%d) <= 100",
			e.LikeThreshold, e.RepostThreshold, e.ReplyThreshold)
	}
	if e.HourlyReplyCap <= 0 {
		return fmt.Errorf("engagement.hourly_reply_cap: must be positive")
	}
	if e.CycleActionCap <= 0 {
		return fmt.Errorf("engagement.cycle_action_cap: must be positive")
	}
	if e.ReplyMaxLength <= 0 || e.ReplyMaxLength > 280 {
		return fmt.Errorf("engagement.reply_max_length: must be in 1..280, got %d", e.ReplyMaxLength)
	}

	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts: must be positive")
	}
	if c.Analytics.SentimentAlertThreshold > 0 {
		return fmt.Errorf("analytics.sentiment_alert_threshold: must be a negative delta, got %v", c.Analytics.SentimentAlertThreshold)
	}

	switch c.Generation.Provider {
	case ProviderAnthropic, ProviderOpenAI, ProviderNone:
	default:
		return fmt.Errorf("generation.provider: unknown provider %q", c.Generation.Provider)
	}

	switch c.Alerts.Provider {
	case "log", "":
	case "smtp":
		if c.Alerts.SMTPHost == "" || c.Alerts.ToAddr == "" {
			return fmt.Errorf("alerts: smtp provider needs smtp_host and to_address")
		}
	default:
		return fmt.Errorf("alerts.provider: unknown provider %q", c.Alerts.Provider)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	return nil
}

// ParseClock parses "HH:MM" (24h)
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	return t.Hour(), t.Minute(), nil
}

// Save writes config to path (the default location if empty)
func (c *Config) Save(path string) error {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}
