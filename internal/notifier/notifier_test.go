package notifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/reply4me/internal/analytics"
	"github.com/ibeckermayer/reply4me/internal/config"
)

type fakeSender struct {
	to, subject, body string
	calls             int
	err               error
}

func (f *fakeSender) Send(to, subject, body string) error {
	f.calls++
	f.to, f.subject, f.body = to, subject, body
	return f.err
}

var drop = analytics.SentimentDrop{
	Date:      "2024-03-02",
	Today:     -0.3,
	Yesterday: 0.3,
	Delta:     -0.6,
	Threshold: -0.5,
}

func TestSentimentDropSendsMail(t *testing.T) {
	s := &fakeSender{}
	n := New(s, "ops@example.com")

	require.NoError(t, n.SentimentDrop(context.Background(), drop))
	assert.Equal(t, 1, s.calls)
	assert.Equal(t, "ops@example.com", s.to)
	assert.Equal(t, "[reply4me] sentiment drop on 2024-03-02", s.subject)
	assert.Contains(t, s.body, "fell by 0.60")
	assert.Contains(t, s.body, "Yesterday: 0.300")
}

func TestSentimentDropSenderError(t *testing.T) {
	s := &fakeSender{err: errors.New("smtp down")}
	err := New(s, "ops@example.com").SentimentDrop(context.Background(), drop)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
}

func TestLogOnlyNotifierIsNoop(t *testing.T) {
	n, err := NewFromConfig(config.AlertsConfig{Provider: "log"}, "")
	require.NoError(t, err)
	assert.False(t, n.Enabled())
	assert.NoError(t, n.SentimentDrop(context.Background(), drop))
}

func TestNewFromConfig(t *testing.T) {
	n, err := NewFromConfig(config.AlertsConfig{
		Provider: "smtp",
		SMTPHost: "mail.example.com",
		SMTPPort: 587,
		ToAddr:   "ops@example.com",
	}, "pw")
	require.NoError(t, err)
	assert.True(t, n.Enabled())

	_, err = NewFromConfig(config.AlertsConfig{Provider: "pager"}, "")
	assert.Error(t, err)
}

var _ analytics.Alerter = (*Notifier)(nil)
