// Package cursor tracks the mention watermark so each mention is handled at
// most once across restarts.
//
// The cursor advances past a mention whether or not handling it succeeded.
// A mention whose reply fails is therefore never retried; duplicates are
// ruled out at the cost of occasionally missing one.
package cursor

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/ibeckermayer/reply4me/internal/metrics"
	"github.com/ibeckermayer/reply4me/internal/store"
	"github.com/ibeckermayer/reply4me/internal/types"
)

const (
	DefaultRecencyWindow = 2 * time.Minute
	DefaultPollLimit     = 50
	// Initial is the cursor value before any mention has been processed.
	Initial = "0"
)

// MetaStore is the slice of the state store the manager needs.
type MetaStore interface {
	GetMeta(ctx context.Context, key string) (string, bool, error)
	UpdateMeta(ctx context.Context, keys []string, fn func(cur map[string]string) (map[string]string, error)) error
}

// Fetcher returns mentions with ids greater than cursor. An empty cursor
// fetches the most recent mentions.
type Fetcher interface {
	FetchMentionsSince(ctx context.Context, cursor string, limit int) ([]types.Candidate, error)
}

// Mention is one unprocessed mention. Fresh is false when the mention is
// older than the recency window and must not be replied to.
type Mention struct {
	types.Candidate
	Fresh bool
}

// ID returns the mention's post id.
func (m Mention) ID() string { return m.Post.ID }

type Manager struct {
	store  MetaStore
	fetch  Fetcher
	limit  int
	window time.Duration
	now    func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

func WithRecencyWindow(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.window = d
		}
	}
}

func WithLimit(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.limit = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func New(s MetaStore, f Fetcher, opts ...Option) *Manager {
	m := &Manager{
		store:  s,
		fetch:  f,
		limit:  DefaultPollLimit,
		window: DefaultRecencyWindow,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Cursor returns the persisted watermark, or Initial if none.
func (m *Manager) Cursor(ctx context.Context) (string, error) {
	v, ok, err := m.store.GetMeta(ctx, store.MetaLastMentionCursor)
	if err != nil {
		return "", err
	}
	if !ok || v == "" {
		return Initial, nil
	}
	return v, nil
}

// Poll returns mentions newer than the cursor in ascending id order, each
// flagged with whether it is recent enough to reply to. Poll does not move
// the cursor; call Advance after handling each mention.
func (m *Manager) Poll(ctx context.Context) ([]Mention, error) {
	cur, err := m.Cursor(ctx)
	if err != nil {
		return nil, err
	}

	since := cur
	if since == Initial {
		since = ""
	}
	cands, err := m.fetch.FetchMentionsSince(ctx, since, m.limit)
	if err != nil {
		return nil, err
	}

	now := m.now()
	out := make([]Mention, 0, len(cands))
	for _, c := range cands {
		// the platform's since filter is trusted but not relied on
		if Compare(c.Post.ID, cur) <= 0 {
			continue
		}
		out = append(out, Mention{Candidate: c, Fresh: m.isFresh(c.Post.CreatedAt, now)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return Compare(out[i].Post.ID, out[j].Post.ID) < 0
	})
	return out, nil
}

func (m *Manager) isFresh(created, now time.Time) bool {
	if created.IsZero() {
		return false
	}
	return now.Sub(created) <= m.window
}

// Advance moves the cursor to id. It never moves the cursor backwards.
func (m *Manager) Advance(ctx context.Context, id string) error {
	var stored string
	err := m.store.UpdateMeta(ctx, []string{store.MetaLastMentionCursor}, func(cur map[string]string) (map[string]string, error) {
		old := cur[store.MetaLastMentionCursor]
		if old == "" {
			old = Initial
		}
		if Compare(id, old) <= 0 {
			stored = old
			return nil, nil
		}
		stored = id
		return map[string]string{store.MetaLastMentionCursor: id}, nil
	})
	if err != nil {
		return err
	}
	if f, perr := strconv.ParseFloat(stored, 64); perr == nil {
		metrics.MentionCursor.Set(f)
	}
	return nil
}

// Compare orders platform ids. Numeric ids of any length compare by value;
// anything else falls back to string order.
func Compare(a, b string) int {
	if isDigits(a) && isDigits(b) {
		a, b = trimZeros(a), trimZeros(b)
		if len(a) != len(b) {
			if len(a) < len(b) {
				return -1
			}
			return 1
		}
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func trimZeros(s string) string {
	for len(s) > 1 && s[0] == '0' {
		s = s[1:]
	}
	return s
}
