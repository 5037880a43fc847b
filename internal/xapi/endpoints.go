package xapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ibeckermayer/reply4me/internal/platform"
	"github.com/ibeckermayer/reply4me/internal/types"
)

const (
	tweetFields = "author_id,created_at,public_metrics,conversation_id"
	userFields  = "username,name,description,public_metrics"
)

type tweet struct {
	ID             string    `json:"id"`
	Text           string    `json:"text"`
	AuthorID       string    `json:"author_id"`
	ConversationID string    `json:"conversation_id"`
	CreatedAt      time.Time `json:"created_at"`
	PublicMetrics  struct {
		LikeCount    int `json:"like_count"`
		RetweetCount int `json:"retweet_count"`
		ReplyCount   int `json:"reply_count"`
	} `json:"public_metrics"`
}

func (t tweet) toPost() types.Post {
	return types.Post{
		ID:             t.ID,
		AuthorID:       t.AuthorID,
		Text:           t.Text,
		CreatedAt:      t.CreatedAt,
		ConversationID: t.ConversationID,
		Metrics: types.Metrics{
			Likes:    t.PublicMetrics.LikeCount,
			Retweets: t.PublicMetrics.RetweetCount,
			Replies:  t.PublicMetrics.ReplyCount,
		},
	}
}

type user struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	PublicMetrics struct {
		FollowersCount int `json:"followers_count"`
	} `json:"public_metrics"`
}

func (u user) toAuthor() types.Author {
	return types.Author{
		ID:            u.ID,
		Username:      u.Username,
		Name:          u.Name,
		Bio:           u.Description,
		FollowerCount: u.PublicMetrics.FollowersCount,
	}
}

type tweetList struct {
	Data     []tweet `json:"data"`
	Includes struct {
		Users []user `json:"users"`
	} `json:"includes"`
	Meta struct {
		NextToken string `json:"next_token"`
	} `json:"meta"`
}

func (l tweetList) toPage() *platform.Page {
	page := &platform.Page{AuthorsByID: make(map[string]types.Author, len(l.Includes.Users))}
	for _, t := range l.Data {
		page.Posts = append(page.Posts, t.toPost())
	}
	for _, u := range l.Includes.Users {
		page.AuthorsByID[u.ID] = u.toAuthor()
	}
	return page
}

// clampResults keeps max_results inside the 10..100 range the API accepts.
func clampResults(n int) int {
	switch {
	case n < 10:
		return 10
	case n > 100:
		return 100
	}
	return n
}

func listParams(max int) url.Values {
	return url.Values{
		"max_results":  {strconv.Itoa(clampResults(max))},
		"tweet.fields": {tweetFields},
		"user.fields":  {userFields},
		"expansions":   {"author_id"},
	}
}

func (c *Client) SearchRecent(ctx context.Context, query string, max int) (*platform.Page, error) {
	params := listParams(max)
	params.Set("query", query)

	var out tweetList
	if err := c.do(ctx, http.MethodGet, c.Host, "/2/tweets/search/recent", params, nil, &out); err != nil {
		return nil, err
	}
	return out.toPage(), nil
}

// GetMentionsSince follows next_token until max mentions are collected or
// the timeline is exhausted.
func (c *Client) GetMentionsSince(ctx context.Context, cursorID string, max int) (*platform.Page, error) {
	me, err := c.GetSelfID(ctx)
	if err != nil {
		return nil, err
	}
	params := listParams(max)
	if cursorID != "" {
		params.Set("since_id", cursorID)
	}

	page := &platform.Page{AuthorsByID: map[string]types.Author{}}
	for {
		var out tweetList
		if err := c.do(ctx, http.MethodGet, c.Host, "/2/users/"+me+"/mentions", params, nil, &out); err != nil {
			return nil, err
		}
		next := out.toPage()
		page.Posts = append(page.Posts, next.Posts...)
		for id, a := range next.AuthorsByID {
			page.AuthorsByID[id] = a
		}
		if out.Meta.NextToken == "" || len(page.Posts) >= max {
			break
		}
		params.Set("pagination_token", out.Meta.NextToken)
	}
	if max > 0 && len(page.Posts) > max {
		page.Posts = page.Posts[:max]
	}
	return page, nil
}

type createTweetRequest struct {
	Text  string `json:"text"`
	Media *struct {
		MediaIDs []string `json:"media_ids"`
	} `json:"media,omitempty"`
	Reply *struct {
		InReplyToTweetID string `json:"in_reply_to_tweet_id"`
	} `json:"reply,omitempty"`
}

type createTweetResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (c *Client) createTweet(ctx context.Context, req createTweetRequest) (string, error) {
	var out createTweetResponse
	if err := c.do(ctx, http.MethodPost, c.Host, "/2/tweets", nil, req, &out); err != nil {
		return "", err
	}
	if out.Data.ID == "" {
		return "", fmt.Errorf("create tweet returned no id")
	}
	return out.Data.ID, nil
}

func (c *Client) CreatePost(ctx context.Context, text string, mediaIDs []string) (string, error) {
	req := createTweetRequest{Text: text}
	if len(mediaIDs) > 0 {
		req.Media = &struct {
			MediaIDs []string `json:"media_ids"`
		}{MediaIDs: mediaIDs}
	}
	return c.createTweet(ctx, req)
}

func (c *Client) ReplyTo(ctx context.Context, text, targetID string) (string, error) {
	req := createTweetRequest{Text: text}
	req.Reply = &struct {
		InReplyToTweetID string `json:"in_reply_to_tweet_id"`
	}{InReplyToTweetID: targetID}
	return c.createTweet(ctx, req)
}

type tweetRef struct {
	TweetID string `json:"tweet_id"`
}

func (c *Client) Like(ctx context.Context, targetID string) (bool, error) {
	me, err := c.GetSelfID(ctx)
	if err != nil {
		return false, err
	}
	var out struct {
		Data struct {
			Liked bool `json:"liked"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, c.Host, "/2/users/"+me+"/likes", nil, tweetRef{TweetID: targetID}, &out); err != nil {
		return false, err
	}
	return out.Data.Liked, nil
}

func (c *Client) Repost(ctx context.Context, targetID string) (bool, error) {
	me, err := c.GetSelfID(ctx)
	if err != nil {
		return false, err
	}
	var out struct {
		Data struct {
			Retweeted bool `json:"retweeted"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, c.Host, "/2/users/"+me+"/retweets", nil, tweetRef{TweetID: targetID}, &out); err != nil {
		return false, err
	}
	return out.Data.Retweeted, nil
}

// UploadMedia uses the v1.1 simple upload endpoint.
func (c *Client) UploadMedia(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open media %s: %w: %w", path, err, platform.ErrPermanent)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("media", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.UploadHost+"/1.1/media/upload.json", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var out struct {
		MediaIDString string `json:"media_id_string"`
	}
	if err := c.send(req, &out); err != nil {
		return "", err
	}
	if out.MediaIDString == "" {
		return "", fmt.Errorf("media upload returned no id")
	}
	return out.MediaIDString, nil
}

func (c *Client) GetPostMetrics(ctx context.Context, id string) (types.Metrics, error) {
	var out struct {
		Data tweet `json:"data"`
	}
	params := url.Values{"tweet.fields": {"public_metrics"}}
	if err := c.do(ctx, http.MethodGet, c.Host, "/2/tweets/"+url.PathEscape(id), params, nil, &out); err != nil {
		return types.Metrics{}, err
	}
	return out.Data.toPost().Metrics, nil
}

func (c *Client) me(ctx context.Context) (user, error) {
	var out struct {
		Data user `json:"data"`
	}
	params := url.Values{"user.fields": {"public_metrics"}}
	if err := c.do(ctx, http.MethodGet, c.Host, "/2/users/me", params, nil, &out); err != nil {
		return user{}, err
	}
	return out.Data, nil
}

func (c *Client) GetFollowerCount(ctx context.Context) (int, error) {
	u, err := c.me(ctx)
	if err != nil {
		return 0, err
	}
	return u.PublicMetrics.FollowersCount, nil
}

// GetSelfID returns the authenticated user's id, cached after the first call.
func (c *Client) GetSelfID(ctx context.Context) (string, error) {
	c.selfMu.Lock()
	defer c.selfMu.Unlock()
	if c.selfID != "" {
		return c.selfID, nil
	}
	u, err := c.me(ctx)
	if err != nil {
		return "", err
	}
	if u.ID == "" {
		return "", fmt.Errorf("users/me returned no id")
	}
	c.selfID = u.ID
	return c.selfID, nil
}
