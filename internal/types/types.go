package types

import "time"

// Post represents a post returned by the platform (search result or mention)
type Post struct {
	ID             string    `json:"id"`
	AuthorID       string    `json:"author_id"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Metrics        Metrics   `json:"metrics"`
}

// Metrics holds the public engagement counters of a post
type Metrics struct {
	Likes    int `json:"likes"`
	Retweets int `json:"retweets"`
	Replies  int `json:"replies"`
}

// Author represents the profile of a post's author
type Author struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Name          string `json:"name"`
	Bio           string `json:"bio"`
	FollowerCount int    `json:"follower_count"`
}

// Candidate pairs a post with its (possibly unknown) author profile
type Candidate struct {
	Post   Post
	Author *Author // nil if the platform did not expand the author
}

// Handle returns the author's username or the given fallback.
func (c Candidate) Handle(fallback string) string {
	if c.Author == nil || c.Author.Username == "" {
		return fallback
	}
	return c.Author.Username
}

// Bio returns the author's profile description, or "" when unknown.
func (c Candidate) Bio() string {
	if c.Author == nil {
		return ""
	}
	return c.Author.Bio
}
