package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.resolvePaths())
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, "09:00", cfg.Schedule.PostTime)
	assert.Equal(t, 30, cfg.Engagement.HourlyReplyCap)
	assert.Equal(t, filepath.Join(cfg.Storage.DataDir, "bot.db"), cfg.Storage.DBPath)
}

func TestLoadLayersFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[schedule]
timezone = "UTC"
scan_interval = "5m"

[engagement]
hashtags = ["golang"]
hourly_reply_cap = 10

[storage]
data_dir = "`+filepath.ToSlash(dir)+`"
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "UTC", cfg.Schedule.Timezone)
	assert.Equal(t, 5*time.Minute, cfg.Schedule.ScanInterval)
	assert.Equal(t, time.Minute, cfg.Schedule.MentionInterval, "unset keys keep defaults")
	assert.Equal(t, []string{"golang"}, cfg.Engagement.Hashtags)
	assert.Equal(t, 10, cfg.Engagement.HourlyReplyCap)
	assert.Equal(t, filepath.Join(filepath.ToSlash(dir), "quotes.json"), cfg.Storage.QuotesPath)
}

func TestEnvOverridesAndSecrets(t *testing.T) {
	t.Setenv("MAX_REPLIES_PER_HOUR", "12")
	t.Setenv("HASHTAGS_TO_MONITOR", "go,rust")
	t.Setenv("SENTIMENT_ALERT_THRESHOLD", "-0.3")
	t.Setenv("OPENAI_MODEL", "gpt-4o")
	t.Setenv("TWITTER_API_KEY", "ck")
	t.Setenv("OPENAI_API_KEY", "sk")

	cfg, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Engagement.HourlyReplyCap)
	assert.Equal(t, []string{"go", "rust"}, cfg.Engagement.Hashtags)
	assert.Equal(t, -0.3, cfg.Analytics.SentimentAlertThreshold)
	assert.Equal(t, "gpt-4o", cfg.Generation.Model)
	assert.Equal(t, "ck", cfg.Secrets.TwitterAPIKey)
	assert.Equal(t, "sk", cfg.Secrets.OpenAIAPIKey)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"bad timezone", func(c *Config) { c.Schedule.Timezone = "Mars/Olympus" }, "schedule.timezone"},
		{"bad post time", func(c *Config) { c.Schedule.PostTime = "9am" }, "schedule.post_time"},
		{"tiny interval", func(c *Config) { c.Schedule.ScanInterval = 0 }, "schedule.scan_interval"},
		{"no hashtags", func(c *Config) { c.Engagement.Hashtags = nil }, "engagement.hashtags"},
		{"thresholds out of order", func(c *Config) { c.Engagement.RepostThreshold = 90 }, "engagement thresholds"},
		{"zero hourly cap", func(c *Config) { c.Engagement.HourlyReplyCap = 0 }, "engagement.hourly_reply_cap"},
		{"long replies", func(c *Config) { c.Engagement.ReplyMaxLength = 300 }, "engagement.reply_max_length"},
		{"positive alert threshold", func(c *Config) { c.Analytics.SentimentAlertThreshold = 0.5 }, "analytics.sentiment_alert_threshold"},
		{"unknown provider", func(c *Config) { c.Generation.Provider = "gemini" }, "generation.provider"},
		{"smtp without host", func(c *Config) { c.Alerts.Provider = "smtp" }, "alerts"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	cfg := Default()
	cfg.Secrets.OpenAIAPIKey = "do-not-write"
	require.NoError(t, cfg.Save(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "do-not-write")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Schedule, loaded.Schedule)
	assert.Equal(t, cfg.Engagement, loaded.Engagement)
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("23:59")
	require.NoError(t, err)
	assert.Equal(t, 23, h)
	assert.Equal(t, 59, m)

	_, _, err = ParseClock("24:00")
	assert.Error(t, err)
}

func TestExchangeDirUnderCacheDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	cache, err := CacheDir()
	require.NoError(t, err)
	dir, err := ExchangeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cache, "exchanges"), dir)
}
