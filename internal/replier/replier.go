// Package replier drafts personalised replies with an LLM provider.
package replier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ibeckermayer/reply4me/internal/store"
)

// DefaultMaxLength keeps replies under the platform's 280 character limit.
const DefaultMaxLength = 275

// ErrGeneration marks a failed draft. Draft never returns it; it degrades to
// the canned fallback instead.
var ErrGeneration = errors.New("reply generation failed")

// Context is what the drafter knows about the post being answered.
type Context struct {
	SourceText   string
	AuthorHandle string
	AuthorBio    string
	IntentHint   string
}

// Provider defines the interface for LLM providers
type Provider interface {
	Name() string
	Model() string
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Replier drafts replies with a Provider and falls back to canned answers.
type Replier struct {
	provider Provider
	maxLen   int
	cacheDir string
	logger   *slog.Logger
}

// Option configures a Replier.
type Option func(*Replier)

// WithMaxLength caps drafts at n runes.
func WithMaxLength(n int) Option {
	return func(r *Replier) {
		if n > 0 {
			r.maxLen = n
		}
	}
}

// WithExchangeCache saves every prompt/response pair as JSON under dir.
func WithExchangeCache(dir string) Option {
	return func(r *Replier) { r.cacheDir = dir }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Replier) { r.logger = l }
}

// New creates a Replier. A nil provider means every draft is the fallback.
func New(p Provider, opts ...Option) *Replier {
	r := &Replier{provider: p, maxLen: DefaultMaxLength, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Generate asks the provider for a reply. Errors wrap ErrGeneration.
func (r *Replier) Generate(ctx context.Context, c Context) (string, error) {
	if r.provider == nil {
		return "", fmt.Errorf("%w: no provider configured", ErrGeneration)
	}

	prompt := BuildPrompt(c)
	text, err := r.provider.Complete(ctx, SystemPrompt, prompt)
	text = strings.TrimSpace(text)
	r.cache(c, prompt, text, err)

	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrGeneration, r.provider.Name(), err)
	}
	if text == "" {
		return "", fmt.Errorf("%w: %s returned empty response", ErrGeneration, r.provider.Name())
	}
	return text, nil
}

// Draft returns a reply no longer than the configured maximum. It never fails.
func (r *Replier) Draft(ctx context.Context, c Context) string {
	text, err := r.Generate(ctx, c)
	if err != nil {
		r.logger.Warn("reply generation failed, using fallback", "intent", c.IntentHint, "error", err)
		text = Fallback(c)
	}
	return Truncate(text, r.maxLen)
}

func (r *Replier) cache(c Context, prompt, response string, err error) {
	if r.cacheDir == "" {
		return
	}
	ex := store.LLMExchange{
		Timestamp: time.Now(),
		Provider:  r.provider.Name(),
		Model:     r.provider.Model(),
		Intent:    c.IntentHint,
		Prompt:    prompt,
		Response:  response,
	}
	if err != nil {
		ex.Error = err.Error()
	}
	if path, cerr := store.SaveJSON(r.cacheDir, ex); cerr != nil {
		r.logger.Warn("failed to cache LLM exchange", "error", cerr)
	} else {
		r.logger.Debug("cached LLM exchange", "path", path)
	}
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
