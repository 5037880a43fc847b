package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// PersistenceError wraps every failure of the state store. A job that sees
// one must abort; nothing past the last commit was written.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

// Store handles all database operations
type Store struct {
	db *sql.DB

	// metaMu serialises read-modify-write cycles on the meta table.
	metaMu sync.Mutex
}

// New creates a new Store with SQLite backend and applies migrations
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
			return nil, wrap("open", err)
		}
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_time_format=sqlite"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, wrap("open", err)
	}
	// Single connection: one writer at a time, and :memory: stays one database.
	db.SetMaxOpenConns(1)

	version, err := runMigrations(db)
	if err != nil {
		db.Close()
		return nil, wrap("migrate", err)
	}
	slog.Debug("state store ready", "path", dbPath, "schema_version", version)

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// withTx runs fn in a transaction, committing only if fn succeeds
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap(op, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return wrap(op, err)
	}
	return wrap(op, tx.Commit())
}

// LogPost records a published post. A duplicate external id is a no-op and
// reports inserted=false.
func (s *Store) LogPost(ctx context.Context, p PostRecord) (bool, error) {
	if p.PostedAt.IsZero() {
		p.PostedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (external_id, content, kind, likes, retweets, replies, posted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO NOTHING
	`, p.ExternalID, p.Content, string(p.Kind), p.Likes, p.Retweets, p.Replies, p.PostedAt.UTC())
	if err != nil {
		return false, wrap("log post", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap("log post", err)
	}
	return n > 0, nil
}

// UpdatePostMetrics replaces the engagement counters of a logged post
func (s *Store) UpdatePostMetrics(ctx context.Context, externalID string, likes, retweets, replies int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE posts SET likes = ?, retweets = ?, replies = ? WHERE external_id = ?
	`, likes, retweets, replies, externalID)
	return wrap("update post metrics", err)
}

// PostsSince returns posts published at or after since, oldest first
func (s *Store) PostsSince(ctx context.Context, since time.Time) ([]PostRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT external_id, content, kind, likes, retweets, replies, posted_at
		FROM posts
		WHERE posted_at >= ?
		ORDER BY posted_at ASC
	`, since.UTC())
	if err != nil {
		return nil, wrap("posts since", err)
	}
	defer rows.Close()

	var posts []PostRecord
	for rows.Next() {
		var p PostRecord
		var kind string
		if err := rows.Scan(&p.ExternalID, &p.Content, &kind, &p.Likes, &p.Retweets, &p.Replies, &p.PostedAt); err != nil {
			return nil, wrap("posts since", err)
		}
		p.Kind = PostKind(kind)
		posts = append(posts, p)
	}
	return posts, wrap("posts since", rows.Err())
}

// RecentContents returns the content of the newest posts of kind
func (s *Store) RecentContents(ctx context.Context, kind PostKind, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT content FROM posts WHERE kind = ? ORDER BY posted_at DESC LIMIT ?
	`, string(kind), limit)
	if err != nil {
		return nil, wrap("recent contents", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, wrap("recent contents", err)
		}
		out = append(out, c)
	}
	return out, wrap("recent contents", rows.Err())
}

// EngagementBetween sums metrics over posts published in [since, until)
func (s *Store) EngagementBetween(ctx context.Context, since, until time.Time) (EngagementTotals, error) {
	var t EngagementTotals
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(likes), 0), COALESCE(SUM(retweets), 0), COALESCE(SUM(replies), 0)
		FROM posts WHERE posted_at >= ? AND posted_at < ?
	`, since.UTC(), until.UTC()).Scan(&t.Posts, &t.Likes, &t.Retweets, &t.Replies)
	return t, wrap("engagement between", err)
}

// LogInteraction appends an interaction record
func (s *Store) LogInteraction(ctx context.Context, r InteractionRecord) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interactions (user_id, username, target_post_id, interaction_type,
			response_text, sentiment_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.UserID, r.Username, r.TargetPostID, string(r.InteractionType),
		r.ResponseText, r.SentimentScore, r.CreatedAt.UTC())
	return wrap("log interaction", err)
}

// InteractionsBetween aggregates interactions created in [since, until)
func (s *Store) InteractionsBetween(ctx context.Context, since, until time.Time) (InteractionStats, error) {
	var st InteractionStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN interaction_type = ? THEN 1 ELSE 0 END), 0),
			COUNT(*),
			COALESCE(AVG(sentiment_score), 0)
		FROM interactions WHERE created_at >= ? AND created_at < ?
	`, string(InteractionMention), since.UTC(), until.UTC()).Scan(&st.Mentions, &st.Total, &st.AvgSentiment)
	return st, wrap("interactions between", err)
}

// UpsertDailyAnalytics writes the rollup for a.Date, replacing any earlier run
func (s *Store) UpsertDailyAnalytics(ctx context.Context, a DailyAnalytics) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_analytics (date, followers_count, mentions_count, replies_sent,
			avg_sentiment, engagement_rate)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			followers_count = excluded.followers_count,
			mentions_count = excluded.mentions_count,
			replies_sent = excluded.replies_sent,
			avg_sentiment = excluded.avg_sentiment,
			engagement_rate = excluded.engagement_rate
	`, a.Date, a.FollowersCount, a.MentionsCount, a.RepliesSent, a.AvgSentiment, a.EngagementRate)
	return wrap("upsert daily analytics", err)
}

// GetDailyAnalytics returns the rollup for date, or nil if none exists
func (s *Store) GetDailyAnalytics(ctx context.Context, date string) (*DailyAnalytics, error) {
	var a DailyAnalytics
	err := s.db.QueryRowContext(ctx, `
		SELECT date, followers_count, mentions_count, replies_sent, avg_sentiment, engagement_rate
		FROM daily_analytics WHERE date = ?
	`, date).Scan(&a.Date, &a.FollowersCount, &a.MentionsCount, &a.RepliesSent, &a.AvgSentiment, &a.EngagementRate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get daily analytics", err)
	}
	return &a, nil
}
