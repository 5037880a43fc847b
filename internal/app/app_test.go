package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/reply4me/internal/analytics"
	"github.com/ibeckermayer/reply4me/internal/config"
	"github.com/ibeckermayer/reply4me/internal/cursor"
	"github.com/ibeckermayer/reply4me/internal/quota"
	"github.com/ibeckermayer/reply4me/internal/quotes"
	"github.com/ibeckermayer/reply4me/internal/replier"
	"github.com/ibeckermayer/reply4me/internal/scheduler"
	"github.com/ibeckermayer/reply4me/internal/store"
	"github.com/ibeckermayer/reply4me/internal/types"
)

var testNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type sentReply struct {
	text, target string
}

type sentPost struct {
	text, media string
}

// fakePlatform records every write and serves canned reads.
type fakePlatform struct {
	mu sync.Mutex

	selfID     string
	candidates []types.Candidate
	mentions   []types.Candidate
	metrics    map[string]types.Metrics
	followers  int

	replyErr  error
	likeErr   error
	uploadErr error

	likes   []string
	reposts []string
	replies []sentReply
	posts   []sentPost
	uploads []string
	fetched []string
	nextID  int
}

func (f *fakePlatform) id() string {
	f.nextID++
	return fmt.Sprintf("9000%d", f.nextID)
}

func (f *fakePlatform) FetchCandidates(ctx context.Context, query string, limit int) ([]types.Candidate, error) {
	return f.candidates, nil
}

func (f *fakePlatform) FetchMentionsSince(ctx context.Context, cursor string, limit int) ([]types.Candidate, error) {
	return f.mentions, nil
}

func (f *fakePlatform) PostContent(ctx context.Context, text, mediaRef string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, sentPost{text, mediaRef})
	return f.id(), nil
}

func (f *fakePlatform) Reply(ctx context.Context, text, targetID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replyErr != nil {
		return "", f.replyErr
	}
	f.replies = append(f.replies, sentReply{text, targetID})
	return f.id(), nil
}

func (f *fakePlatform) Like(ctx context.Context, targetID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.likeErr != nil {
		return false, f.likeErr
	}
	f.likes = append(f.likes, targetID)
	return true, nil
}

func (f *fakePlatform) Repost(ctx context.Context, targetID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reposts = append(f.reposts, targetID)
	return true, nil
}

func (f *fakePlatform) GetMetrics(ctx context.Context, targetID string) (types.Metrics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, targetID)
	m, ok := f.metrics[targetID]
	if !ok {
		return types.Metrics{}, errors.New("not found")
	}
	return m, nil
}

func (f *fakePlatform) UploadMedia(ctx context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.uploads = append(f.uploads, path)
	return "media-1", nil
}

func (f *fakePlatform) SelfID(ctx context.Context) (string, error) {
	return f.selfID, nil
}

func (f *fakePlatform) GetFollowerCount(ctx context.Context) (int, error) {
	return f.followers, nil
}

type fixture struct {
	app   *App
	store *store.Store
	fp    *fakePlatform
	cfg   *config.Config
}

func newFixture(t *testing.T, fp *fakePlatform, mutate func(cfg *config.Config)) *fixture {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Storage.DataDir = dir
	cfg.Storage.DBPath = filepath.Join(dir, "bot.db")
	cfg.Storage.QuotesPath = filepath.Join(dir, "quotes.json")
	cfg.Storage.MediaDir = filepath.Join(dir, "media")
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())

	st, err := store.New(cfg.Storage.DBPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	clock := func() time.Time { return testNow }
	loc, err := cfg.Location()
	require.NoError(t, err)
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := New(cfg, Deps{
		Platform: fp,
		Store:    st,
		Quota:    quota.NewTracker(st, cfg.Engagement.HourlyReplyCap, quota.WithClock(clock)),
		Cursor: cursor.New(st, fp,
			cursor.WithClock(clock),
			cursor.WithRecencyWindow(cfg.Engagement.RecencyWindow),
		),
		Replier: replier.New(nil, replier.WithLogger(quiet)),
		Analytics: analytics.New(st, fp,
			analytics.WithLocation(loc),
			analytics.WithClock(clock),
			analytics.WithLogger(quiet),
		),
		Picker: quotes.NewPicker(func(int, func(i, j int)) {}),
	}, WithClock(clock), WithLogger(quiet))
	require.NoError(t, err)

	return &fixture{app: a, store: st, fp: fp, cfg: cfg}
}

// lead returns a candidate whose score is followers/100.
func lead(id string, followers int) types.Candidate {
	author := "author-" + id
	return types.Candidate{
		Post: types.Post{ID: id, AuthorID: author, Text: "Need a website for my startup, great timing", CreatedAt: testNow},
		Author: &types.Author{
			ID:            author,
			Username:      "user" + id,
			FollowerCount: followers,
		},
	}
}

func seedQuota(t *testing.T, st *store.Store, count int, resetAt time.Time) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.SetMeta(ctx, store.MetaHourlyInteractionCount, fmt.Sprint(count)))
	require.NoError(t, st.SetMeta(ctx, store.MetaHourlyResetAt, resetAt.Format(time.RFC3339Nano)))
}

func TestHashtagQuery(t *testing.T) {
	assert.Equal(t, "#freelancing OR #webdevelopment -is:retweet -is:reply lang:en",
		HashtagQuery([]string{"freelancing", " #webdevelopment", ""}))
}

func TestScanStopsRepliesAtHourlyCap(t *testing.T) {
	fp := &fakePlatform{
		selfID:     "me",
		candidates: []types.Candidate{lead("101", 8000), lead("102", 8000), lead("103", 8000)},
	}
	f := newFixture(t, fp, func(cfg *config.Config) { cfg.Engagement.HourlyReplyCap = 50 })
	seedQuota(t, f.store, 49, testNow.Add(30*time.Minute))

	res, err := f.app.scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Replied)
	require.Len(t, fp.replies, 1)
	assert.Equal(t, "101", fp.replies[0].target)
	assert.Equal(t, []string{"101", "102", "103"}, fp.likes)
	assert.Equal(t, []string{"101", "102", "103"}, fp.reposts)

	count, _, err := f.app.quota.Usage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 50, count)

	stats, err := f.store.InteractionsBetween(context.Background(), testNow.Add(-time.Hour), testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 0, stats.Mentions)
}

func TestScanActionsFollowThresholds(t *testing.T) {
	fp := &fakePlatform{
		selfID: "me",
		candidates: []types.Candidate{
			lead("201", 1000), // 10: skipped
			lead("202", 3000), // 30: like
			lead("203", 6500), // 65: like + repost
			lead("204", 9000), // 90: like + repost + reply
		},
	}
	own := lead("205", 9000)
	own.Post.AuthorID = "me"
	fp.candidates = append(fp.candidates, own)

	f := newFixture(t, fp, nil)
	res, err := f.app.scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"202", "203", "204"}, fp.likes)
	assert.Equal(t, []string{"203", "204"}, fp.reposts)
	require.Len(t, fp.replies, 1)
	assert.Equal(t, "204", fp.replies[0].target)
	assert.LessOrEqual(t, len([]rune(fp.replies[0].text)), replier.DefaultMaxLength)
	assert.Equal(t, ScanResult{Candidates: 5, Liked: 3, Reposted: 2, Replied: 1}, res)
}

func TestScanSkipsRecentlyEngaged(t *testing.T) {
	fp := &fakePlatform{selfID: "me", candidates: []types.Candidate{lead("301", 3000)}}
	f := newFixture(t, fp, nil)

	require.NoError(t, f.app.ScanHashtags(context.Background()))
	require.NoError(t, f.app.ScanHashtags(context.Background()))
	assert.Equal(t, []string{"301"}, fp.likes)
}

func TestScanRespectsCycleBudget(t *testing.T) {
	fp := &fakePlatform{
		selfID:     "me",
		candidates: []types.Candidate{lead("401", 3000), lead("402", 3000), lead("403", 3000)},
	}
	f := newFixture(t, fp, func(cfg *config.Config) { cfg.Engagement.CycleActionCap = 2 })

	res, err := f.app.scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"401", "402"}, fp.likes)
	assert.Equal(t, 2, res.Liked)
}

func TestScanLikeFailureDoesNotStopCycle(t *testing.T) {
	fp := &fakePlatform{
		selfID:     "me",
		candidates: []types.Candidate{lead("501", 9000)},
		likeErr:    errors.New("forbidden"),
	}
	f := newFixture(t, fp, nil)

	res, err := f.app.scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Liked)
	assert.Equal(t, 1, res.Reposted)
	assert.Equal(t, 1, res.Replied)
}

func TestPollMentionsRepliesToFreshMentionsInOrder(t *testing.T) {
	mention := func(id, text string, age time.Duration) types.Candidate {
		return types.Candidate{
			Post:   types.Post{ID: id, AuthorID: "u" + id, Text: text, CreatedAt: testNow.Add(-age)},
			Author: &types.Author{ID: "u" + id, Username: "fan" + id},
		}
	}
	fp := &fakePlatform{mentions: []types.Candidate{
		mention("9", "What is your pricing?", 30*time.Second),
		mention("5", "old news", 5*time.Minute),
		mention("7", "Love this, thank you!", time.Minute),
	}}
	f := newFixture(t, fp, nil)
	ctx := context.Background()

	require.NoError(t, f.app.PollMentions(ctx))

	require.Len(t, fp.replies, 2)
	assert.Equal(t, "7", fp.replies[0].target)
	assert.Equal(t, "9", fp.replies[1].target)
	assert.Contains(t, fp.replies[0].text, "@fan7")
	assert.Contains(t, fp.replies[1].text, "flexible pricing")

	cur, err := f.app.cursor.Cursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, "9", cur)

	stats, err := f.store.InteractionsBetween(ctx, testNow.Add(-time.Hour), testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Mentions)
	assert.Equal(t, 2, stats.Total)

	// Nothing new on the next poll.
	require.NoError(t, f.app.PollMentions(ctx))
	assert.Len(t, fp.replies, 2)
}

func TestPollMentionsAdvancesPastFailedReply(t *testing.T) {
	fp := &fakePlatform{
		mentions: []types.Candidate{{Post: types.Post{ID: "42", Text: "hi", CreatedAt: testNow}}},
		replyErr: errors.New("duplicate content"),
	}
	f := newFixture(t, fp, nil)
	ctx := context.Background()

	require.NoError(t, f.app.PollMentions(ctx))

	cur, err := f.app.cursor.Cursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, "42", cur)

	stats, err := f.store.InteractionsBetween(ctx, testNow.Add(-time.Hour), testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
}

// failInteractionInserts makes every interaction insert on the fixture's
// database fail while the meta table keeps working.
func failInteractionInserts(t *testing.T, f *fixture) {
	t.Helper()
	db, err := sql.Open("sqlite", f.cfg.Storage.DBPath)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`CREATE TRIGGER fail_interactions BEFORE INSERT ON interactions
		BEGIN SELECT RAISE(ABORT, 'disk full'); END`)
	require.NoError(t, err)
}

func TestPollMentionsAdvancesWhenLoggingSentReplyFails(t *testing.T) {
	fp := &fakePlatform{mentions: []types.Candidate{
		{Post: types.Post{ID: "42", AuthorID: "u1", Text: "hi", CreatedAt: testNow}},
		{Post: types.Post{ID: "43", AuthorID: "u2", Text: "hello", CreatedAt: testNow}},
	}}
	f := newFixture(t, fp, nil)
	ctx := context.Background()
	failInteractionInserts(t, f)

	err := f.app.PollMentions(ctx)
	var perr *store.PersistenceError
	require.ErrorAs(t, err, &perr)

	require.Len(t, fp.replies, 1)
	assert.Equal(t, "42", fp.replies[0].target)

	cur, err := f.app.cursor.Cursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, "42", cur)
}

func writeLibrary(t *testing.T, path string) []quotes.Quote {
	t.Helper()
	var lib []quotes.Quote
	for _, c := range quotes.DefaultCategories {
		lib = append(lib, quotes.Quote{Text: "Keep going in " + c.Name, Author: "Anon", Category: c.Name})
	}
	data, err := json.Marshal(lib)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0600))
	return lib
}

func TestPostDailyPublishesCategoryQuote(t *testing.T) {
	fp := &fakePlatform{}
	f := newFixture(t, fp, nil)
	writeLibrary(t, f.cfg.Storage.QuotesPath)
	ctx := context.Background()

	require.NoError(t, f.app.PostDaily(ctx))

	loc, _ := f.cfg.Location()
	cat := quotes.CategoryFor(testNow.In(loc), quotes.DefaultCategories)
	want := quotes.Quote{Text: "Keep going in " + cat.Name, Author: "Anon", Category: cat.Name}

	require.Len(t, fp.posts, 1)
	assert.Equal(t, quotes.Status(want, cat), fp.posts[0].text)
	assert.Empty(t, fp.posts[0].media)

	recent, err := f.store.RecentContents(ctx, store.KindQuote, quotes.RecentWindow)
	require.NoError(t, err)
	assert.Equal(t, []string{want.Content()}, recent)
}

func TestPostDailyAttachesMedia(t *testing.T) {
	fp := &fakePlatform{}
	f := newFixture(t, fp, nil)
	writeLibrary(t, f.cfg.Storage.QuotesPath)

	loc, _ := f.cfg.Location()
	cat := quotes.CategoryFor(testNow.In(loc), quotes.DefaultCategories)
	require.NoError(t, os.MkdirAll(f.cfg.Storage.MediaDir, 0700))
	img := filepath.Join(f.cfg.Storage.MediaDir, strings.ToLower(cat.Name)+".png")
	require.NoError(t, os.WriteFile(img, []byte("png"), 0600))
	f.app.media = DirMedia{Dir: f.cfg.Storage.MediaDir}

	require.NoError(t, f.app.PostDaily(context.Background()))
	assert.Equal(t, []string{img}, fp.uploads)
	require.Len(t, fp.posts, 1)
	assert.Equal(t, "media-1", fp.posts[0].media)
}

func TestPostDailyUploadFailurePostsText(t *testing.T) {
	fp := &fakePlatform{uploadErr: errors.New("too large")}
	f := newFixture(t, fp, nil)
	writeLibrary(t, f.cfg.Storage.QuotesPath)
	f.app.media = staticMedia("/tmp/quote.png")

	require.NoError(t, f.app.PostDaily(context.Background()))
	require.Len(t, fp.posts, 1)
	assert.Empty(t, fp.posts[0].media)
}

func TestPostDailyMissingLibrary(t *testing.T) {
	f := newFixture(t, &fakePlatform{}, nil)
	assert.Error(t, f.app.PostDaily(context.Background()))
}

type staticMedia string

func (s staticMedia) Render(context.Context, quotes.Quote, quotes.Category) (string, error) {
	return string(s), nil
}

func TestRefreshMetricsUpdatesRecentPosts(t *testing.T) {
	fp := &fakePlatform{metrics: map[string]types.Metrics{
		"p1": {Likes: 5, Retweets: 2, Replies: 1},
	}}
	f := newFixture(t, fp, nil)
	ctx := context.Background()

	for _, p := range []store.PostRecord{
		{ExternalID: "p1", Content: "a", Kind: store.KindQuote, PostedAt: testNow.Add(-time.Hour)},
		{ExternalID: "p2", Content: "b", Kind: store.KindQuote, PostedAt: testNow.Add(-3 * time.Hour)},
		{ExternalID: "old", Content: "c", Kind: store.KindQuote, PostedAt: testNow.Add(-72 * time.Hour)},
	} {
		_, err := f.store.LogPost(ctx, p)
		require.NoError(t, err)
	}

	require.NoError(t, f.app.RefreshMetrics(ctx))
	assert.ElementsMatch(t, []string{"p1", "p2"}, fp.fetched)

	posts, err := f.store.PostsSince(ctx, testNow.Add(-2*time.Hour))
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, 5, posts[0].Likes)
	assert.Equal(t, 2, posts[0].Retweets)
	assert.Equal(t, 1, posts[0].Replies)
}

func TestRollupUsesConfiguredTimezone(t *testing.T) {
	fp := &fakePlatform{followers: 1234}
	f := newFixture(t, fp, nil)
	ctx := context.Background()

	require.NoError(t, f.app.Rollup(ctx, time.Time{}))

	// 10:00 UTC is 15:30 in Asia/Kolkata, same calendar day.
	row, err := f.store.GetDailyAnalytics(ctx, "2024-03-01")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, 1234, row.FollowersCount)
}

func TestRegisterSchedulesAllJobs(t *testing.T) {
	f := newFixture(t, &fakePlatform{}, nil)
	s, err := scheduler.New(f.cfg.Schedule.Timezone, scheduler.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	require.NoError(t, f.app.Register(s))
	names := map[string]bool{}
	for _, j := range s.ListJobs() {
		names[j.Name] = true
	}
	assert.Equal(t, map[string]bool{JobPost: true, JobPoll: true, JobScan: true, JobRefresh: true, JobRollup: true}, names)
}
