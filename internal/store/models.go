package store

import "time"

// PostKind is the origin of a post we published
type PostKind string

const (
	KindQuote PostKind = "quote"
	KindReply PostKind = "reply"
)

// InteractionType is what triggered an interaction
type InteractionType string

const (
	InteractionMention InteractionType = "mention"
	InteractionHashtag InteractionType = "hashtag"
)

// Meta keys used for cross-restart resumption
const (
	MetaLastMentionCursor      = "last_mention_cursor"
	MetaHourlyInteractionCount = "hourly_interaction_count"
	MetaHourlyResetAt          = "hourly_reset_at"
)

// PostRecord is a post we published. Only metrics change after insert.
type PostRecord struct {
	ExternalID string    `json:"external_id"`
	Content    string    `json:"content"`
	Kind       PostKind  `json:"kind"`
	Likes      int       `json:"likes"`
	Retweets   int       `json:"retweets"`
	Replies    int       `json:"replies"`
	PostedAt   time.Time `json:"posted_at"`
}

// InteractionRecord is one reply we sent to a mention or candidate
type InteractionRecord struct {
	ID              int64           `json:"id"`
	UserID          string          `json:"user_id"`
	Username        string          `json:"username"`
	TargetPostID    string          `json:"target_post_id"`
	InteractionType InteractionType `json:"interaction_type"`
	ResponseText    string          `json:"response_text"`
	SentimentScore  float64         `json:"sentiment_score"`
	CreatedAt       time.Time       `json:"created_at"`
}

// DailyAnalytics is the per-day rollup, keyed by Date (YYYY-MM-DD)
type DailyAnalytics struct {
	Date           string  `json:"date"`
	FollowersCount int     `json:"followers_count"`
	MentionsCount  int     `json:"mentions_count"`
	RepliesSent    int     `json:"replies_sent"`
	AvgSentiment   float64 `json:"avg_sentiment"`
	EngagementRate float64 `json:"engagement_rate"`
}

// InteractionStats aggregates interactions over a window
type InteractionStats struct {
	Mentions     int
	Total        int
	AvgSentiment float64
}

// EngagementTotals sums metrics of posts over a window
type EngagementTotals struct {
	Posts    int
	Likes    int
	Retweets int
	Replies  int
}
