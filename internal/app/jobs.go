package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ibeckermayer/reply4me/internal/metrics"
	"github.com/ibeckermayer/reply4me/internal/quota"
	"github.com/ibeckermayer/reply4me/internal/quotes"
	"github.com/ibeckermayer/reply4me/internal/replier"
	"github.com/ibeckermayer/reply4me/internal/store"
	"github.com/ibeckermayer/reply4me/internal/types"
)

func recordAction(action string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.ActionCount.WithLabelValues(action, result).Inc()
}

// PostDaily publishes today's quote. Media is optional: a render or upload
// failure posts text only.
func (a *App) PostDaily(ctx context.Context) error {
	logger := a.jobLogger(JobPost)

	library, err := quotes.Load(a.cfg.Storage.QuotesPath)
	if err != nil {
		return err
	}

	today := a.now().In(a.loc)
	cat := quotes.CategoryFor(today, a.categories)
	recent, err := a.store.RecentContents(ctx, store.KindQuote, quotes.RecentWindow)
	if err != nil {
		return err
	}
	q, err := a.picker.Pick(library, cat.Name, recent)
	if err != nil {
		return err
	}

	mediaRef := a.uploadMedia(ctx, q, cat)
	id, err := a.platform.PostContent(ctx, quotes.Status(q, cat), mediaRef)
	recordAction("post", err)
	if err != nil {
		return fmt.Errorf("failed to post daily quote: %w", err)
	}

	if _, err := a.store.LogPost(ctx, store.PostRecord{
		ExternalID: id,
		Content:    q.Content(),
		Kind:       store.KindQuote,
		PostedAt:   a.now(),
	}); err != nil {
		return err
	}
	logger.Info("Daily quote posted", "category", cat.Name, "post_id", id, "with_media", mediaRef != "")
	return nil
}

func (a *App) uploadMedia(ctx context.Context, q quotes.Quote, cat quotes.Category) string {
	if a.media == nil {
		return ""
	}
	logger := a.jobLogger(JobPost)
	path, err := a.media.Render(ctx, q, cat)
	if err != nil {
		logger.Warn("failed to render media, posting without it", "error", err)
		return ""
	}
	if path == "" {
		return ""
	}
	ref, err := a.platform.UploadMedia(ctx, path)
	recordAction("upload_media", err)
	if err != nil {
		logger.Warn("failed to upload media, posting without it", "path", path, "error", err)
		return ""
	}
	return ref
}

// PollMentions replies to fresh mentions in ascending id order and moves the
// cursor past every mention it handled, replied or not. A reply failure is
// logged and the mention is still passed; a store failure aborts the run.
// A mention whose reply was sent is passed even when logging it fails.
func (a *App) PollMentions(ctx context.Context) error {
	logger := a.jobLogger(JobPoll)

	mentions, err := a.cursor.Poll(ctx)
	if err != nil {
		return err
	}
	if len(mentions) == 0 {
		return nil
	}

	budget := quota.NewBudget(a.cfg.Engagement.CycleActionCap)
	replied := 0
	for i, m := range mentions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if m.Fresh {
			if !budget.Take() {
				// leave the rest for the next poll
				logger.Warn("cycle action budget exhausted", "unhandled", len(mentions)-i)
				break
			}
			ok, err := a.replyToMention(ctx, m.Candidate)
			if err != nil {
				if ok {
					if aerr := a.cursor.Advance(ctx, m.ID()); aerr != nil {
						return errors.Join(err, aerr)
					}
				}
				return err
			}
			if ok {
				replied++
			}
		} else {
			logger.Debug("skipping stale mention", "mention_id", m.ID(), "created_at", m.Post.CreatedAt)
		}
		if err := a.cursor.Advance(ctx, m.ID()); err != nil {
			return err
		}
	}
	logger.Info("Mentions processed", "seen", len(mentions), "replied", replied)
	return nil
}

// replyToMention reports whether a reply was sent. Only store errors are
// returned.
func (a *App) replyToMention(ctx context.Context, m types.Candidate) (bool, error) {
	logger := a.jobLogger(JobPoll)
	handle := m.Handle("")

	text := a.replier.Draft(ctx, replier.Context{
		SourceText:   m.Post.Text,
		AuthorHandle: handle,
		AuthorBio:    m.Bio(),
		IntentHint:   replier.IntentFor(m.Post.Text, a.cfg.Engagement.ReplyKeywords),
	})
	_, score := a.sentiment.Analyze(m.Post.Text)

	replyID, err := a.platform.Reply(ctx, text, m.Post.ID)
	recordAction("reply", err)
	if err != nil {
		logger.Error("Failed to reply to mention", "mention_id", m.Post.ID, "error", err)
		return false, nil
	}

	if err := a.store.LogInteraction(ctx, store.InteractionRecord{
		UserID:          m.Post.AuthorID,
		Username:        handle,
		TargetPostID:    m.Post.ID,
		InteractionType: store.InteractionMention,
		ResponseText:    text,
		SentimentScore:  score,
		CreatedAt:       a.now(),
	}); err != nil {
		return true, err
	}
	logger.Info("Replied to mention", "username", handle, "mention_id", m.Post.ID, "reply_id", replyID)
	return true, nil
}

// ScanResult summarises one hashtag scan.
type ScanResult struct {
	Candidates int
	Liked      int
	Reposted   int
	Replied    int
}

// HashtagQuery builds the search query for hashtags.
func HashtagQuery(hashtags []string) string {
	tags := make([]string, 0, len(hashtags))
	for _, h := range hashtags {
		h = strings.TrimPrefix(strings.TrimSpace(h), "#")
		if h != "" {
			tags = append(tags, "#"+h)
		}
	}
	return strings.Join(tags, " OR ") + " -is:retweet -is:reply lang:en"
}

// ScanHashtags engages with recent posts under the monitored hashtags. Likes
// and reposts are bounded by the per-cycle budget only; replies also need
// the hourly quota. Once the quota is spent the scan keeps liking and
// reposting.
func (a *App) ScanHashtags(ctx context.Context) error {
	_, err := a.scan(ctx)
	return err
}

func (a *App) scan(ctx context.Context) (ScanResult, error) {
	logger := a.jobLogger(JobScan)
	var res ScanResult

	selfID, err := a.platform.SelfID(ctx)
	if err != nil {
		return res, err
	}
	cands, err := a.platform.FetchCandidates(ctx, HashtagQuery(a.cfg.Engagement.Hashtags), a.cfg.Engagement.SearchLimit)
	if err != nil {
		return res, err
	}
	res.Candidates = len(cands)

	budget := quota.NewBudget(a.cfg.Engagement.CycleActionCap)
	quotaSpent := false

	for _, c := range cands {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if c.Post.AuthorID == selfID || a.engaged.Contains(c.Post.ID) {
			continue
		}
		d := a.thresholds.Decide(a.scorer.Score(c.Post, c.Author))
		if d.Skip() {
			continue
		}
		if !budget.Take() {
			logger.Warn("cycle action budget exhausted", "used", budget.Used())
			break
		}
		a.engaged.Add(c.Post.ID, struct{}{})

		_, err := a.platform.Like(ctx, c.Post.ID)
		recordAction("like", err)
		if err != nil {
			logger.Warn("failed to like post", "post_id", c.Post.ID, "error", err)
		} else {
			res.Liked++
		}

		if d.Repost && budget.Take() {
			_, err := a.platform.Repost(ctx, c.Post.ID)
			recordAction("repost", err)
			if err != nil {
				logger.Warn("failed to repost", "post_id", c.Post.ID, "error", err)
			} else {
				res.Reposted++
			}
		}

		if !d.Reply || quotaSpent || budget.Remaining() == 0 {
			continue
		}
		ok, err := a.quota.TryConsume(ctx, 1)
		if err != nil {
			return res, err
		}
		if !ok {
			quotaSpent = true
			logger.Info("hourly reply quota reached, continuing without replies", "cap", a.quota.Cap())
			continue
		}
		budget.Take()
		sent, err := a.replyToCandidate(ctx, c, d.Score)
		if err != nil {
			return res, err
		}
		if sent {
			res.Replied++
		}
	}

	logger.Info("Hashtag scan completed",
		"candidates", res.Candidates,
		"liked", res.Liked,
		"reposted", res.Reposted,
		"replied", res.Replied,
		"actions", budget.Used(),
	)
	return res, nil
}

// replyToCandidate sends a lead-generation reply. The quota unit is already
// spent; a failed reply does not refund it.
func (a *App) replyToCandidate(ctx context.Context, c types.Candidate, score int) (bool, error) {
	logger := a.jobLogger(JobScan)
	handle := c.Handle("")

	text := a.replier.Draft(ctx, replier.Context{
		SourceText:   c.Post.Text,
		AuthorHandle: handle,
		AuthorBio:    c.Bio(),
		IntentHint:   replier.IntentLeadGeneration,
	})
	_, sentScore := a.sentiment.Analyze(c.Post.Text)

	replyID, err := a.platform.Reply(ctx, text, c.Post.ID)
	recordAction("reply", err)
	if err != nil {
		logger.Warn("failed to reply to candidate", "post_id", c.Post.ID, "error", err)
		return false, nil
	}

	if err := a.store.LogInteraction(ctx, store.InteractionRecord{
		UserID:          c.Post.AuthorID,
		Username:        handle,
		TargetPostID:    c.Post.ID,
		InteractionType: store.InteractionHashtag,
		ResponseText:    text,
		SentimentScore:  sentScore,
		CreatedAt:       a.now(),
	}); err != nil {
		return true, err
	}
	logger.Info("Replied to candidate", "username", handle, "post_id", c.Post.ID, "score", score, "reply_id", replyID)
	return true, nil
}

// RefreshMetrics re-reads engagement counters for recent posts. One post's
// fetch failure is logged and skipped; a store failure aborts the run.
func (a *App) RefreshMetrics(ctx context.Context) error {
	logger := a.jobLogger(JobRefresh)

	posts, err := a.store.PostsSince(ctx, a.now().Add(-a.cfg.Engagement.RefreshLookback))
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, a.cfg.Engagement.RefreshWorkers))
	var failed atomic.Int64
	for _, p := range posts {
		id := p.ExternalID
		g.Go(func() error {
			m, err := a.platform.GetMetrics(gctx, id)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				failed.Add(1)
				logger.Warn("failed to fetch post metrics", "post_id", id, "error", err)
				return nil
			}
			return a.store.UpdatePostMetrics(gctx, id, m.Likes, m.Retweets, m.Replies)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Post metrics refreshed", "posts", len(posts), "failed", failed.Load())
	return nil
}

// Rollup writes the analytics row for date's calendar day in the configured
// timezone. A zero date means today.
func (a *App) Rollup(ctx context.Context, date time.Time) error {
	if date.IsZero() {
		date = a.now()
	}
	_, err := a.analytics.RunDailyRollup(ctx, date.In(a.loc))
	return err
}
