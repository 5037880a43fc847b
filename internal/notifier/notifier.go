// Package notifier delivers operator alerts. Alerts are always logged by the
// caller; a Notifier adds an out-of-band copy (email) when configured.
package notifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/ibeckermayer/reply4me/internal/analytics"
	"github.com/ibeckermayer/reply4me/internal/config"
	"github.com/ibeckermayer/reply4me/internal/notifier/providers"
)

// Notifier implements analytics.Alerter.
type Notifier struct {
	sender Sender
	to     string
}

// Sender defines the interface for email sending
type Sender interface {
	Send(to, subject, body string) error
}

// New creates a notifier that mails alerts to toAddr. A nil sender makes
// every alert a no-op.
func New(sender Sender, toAddr string) *Notifier {
	return &Notifier{sender: sender, to: toAddr}
}

// NewFromConfig creates a notifier based on configuration
func NewFromConfig(cfg config.AlertsConfig, smtpPass string) (*Notifier, error) {
	switch cfg.Provider {
	case "", "log":
		return New(nil, ""), nil
	case "smtp":
		sender := providers.NewSMTPSender(
			cfg.SMTPHost,
			cfg.SMTPPort,
			cfg.SMTPUser,
			smtpPass,
			cfg.FromAddr,
		)
		return New(sender, cfg.ToAddr), nil
	default:
		return nil, fmt.Errorf("unknown alert provider: %s", cfg.Provider)
	}
}

// Enabled reports whether alerts leave the process.
func (n *Notifier) Enabled() bool {
	return n != nil && n.sender != nil
}

// SentimentDrop mails a sentiment-drop alert.
func (n *Notifier) SentimentDrop(ctx context.Context, d analytics.SentimentDrop) error {
	if !n.Enabled() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	subject := fmt.Sprintf("[reply4me] sentiment drop on %s", d.Date)
	if err := n.sender.Send(n.to, subject, sentimentBody(d)); err != nil {
		return fmt.Errorf("send sentiment alert: %w", err)
	}
	return nil
}

func sentimentBody(d analytics.SentimentDrop) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Average sentiment for %s fell by %.2f.\n\n", d.Date, -d.Delta)
	fmt.Fprintf(&b, "Today:     %.3f\n", d.Today)
	fmt.Fprintf(&b, "Yesterday: %.3f\n", d.Yesterday)
	fmt.Fprintf(&b, "Threshold: %.2f\n", d.Threshold)
	return b.String()
}
