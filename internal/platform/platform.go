// Package platform defines the capability the engagement core needs from a
// social platform. Concrete wire clients (see internal/xapi) implement Client.
package platform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ibeckermayer/reply4me/internal/types"
)

// Client is the social platform capability. Any method may return a
// *RateLimitError when the platform asks the caller to back off.
type Client interface {
	SearchRecent(ctx context.Context, query string, max int) (*Page, error)
	GetMentionsSince(ctx context.Context, cursorID string, max int) (*Page, error)
	CreatePost(ctx context.Context, text string, mediaIDs []string) (string, error)
	ReplyTo(ctx context.Context, text, targetID string) (string, error)
	Like(ctx context.Context, targetID string) (bool, error)
	Repost(ctx context.Context, targetID string) (bool, error)
	UploadMedia(ctx context.Context, path string) (string, error)
	GetPostMetrics(ctx context.Context, id string) (types.Metrics, error)
	GetFollowerCount(ctx context.Context) (int, error)
	GetSelfID(ctx context.Context) (string, error)
}

// Page is a batch of posts with the author profiles the platform expanded.
type Page struct {
	Posts       []types.Post
	AuthorsByID map[string]types.Author
}

// Candidates joins each post with its author, preserving post order.
func (p *Page) Candidates() []types.Candidate {
	if p == nil {
		return nil
	}
	out := make([]types.Candidate, 0, len(p.Posts))
	for _, post := range p.Posts {
		c := types.Candidate{Post: post}
		if a, ok := p.AuthorsByID[post.AuthorID]; ok {
			a := a
			c.Author = &a
		}
		out = append(out, c)
	}
	return out
}

// RateLimitError signals the platform refused the call until RetryAfter has
// elapsed. A zero RetryAfter means the platform gave no hint.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter <= 0 {
		return "rate limited"
	}
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// ErrPermanent marks failures that retrying cannot fix (bad request, forbidden,
// not found). Wrap it to opt out of the gateway's retry loop.
var ErrPermanent = errors.New("permanent platform error")

// AsRateLimit reports whether err carries a rate-limit signal.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}
