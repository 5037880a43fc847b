// Package scoring rates candidate posts for engagement. Everything here is
// pure: no I/O, no clock, no randomness.
package scoring

import (
	"strings"

	"github.com/ibeckermayer/reply4me/internal/types"
)

const (
	MaxScore        = 100
	KeywordBonus    = 5
	followerDivisor = 100
)

// DefaultLeadKeywords are matched against author bios.
var DefaultLeadKeywords = []string{
	"startup", "founder", "hiring", "freelance", "website", "ai", "automation", "lead",
}

// Thresholds map a score to actions. Each is inclusive.
type Thresholds struct {
	Like   int
	Repost int
	Reply  int
}

// DefaultThresholds returns like at 20, repost at 60, reply at 70.
func DefaultThresholds() Thresholds {
	return Thresholds{Like: 20, Repost: 60, Reply: 70}
}

// Scorer holds the lead-signal vocabulary.
type Scorer struct {
	keywords []string
}

// New returns a Scorer for keywords. Duplicates (case-insensitive) count once.
func New(keywords []string) *Scorer {
	seen := make(map[string]bool, len(keywords))
	var kw []string
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		kw = append(kw, k)
	}
	return &Scorer{keywords: kw}
}

// Score returns min(100, followers/100 + likes + 2*retweets + 5*matched bio
// keywords). A nil author contributes nothing. Negative counts count as 0.
func (s *Scorer) Score(post types.Post, author *types.Author) int {
	score := nonNeg(post.Metrics.Likes) + 2*nonNeg(post.Metrics.Retweets)
	if author != nil {
		score += nonNeg(author.FollowerCount) / followerDivisor
		score += KeywordBonus * s.matches(author.Bio)
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

func (s *Scorer) matches(bio string) int {
	if bio == "" {
		return 0
	}
	bio = strings.ToLower(bio)
	n := 0
	for _, k := range s.keywords {
		if strings.Contains(bio, k) {
			n++
		}
	}
	return n
}

func nonNeg(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// Decision is the set of actions a score qualifies for. Reply is a
// qualification only; the caller still has to win the hourly quota.
type Decision struct {
	Score  int
	Like   bool
	Repost bool
	Reply  bool
}

// Skip reports that no platform call should be made for the candidate.
func (d Decision) Skip() bool { return !d.Like }

// Decide maps a score to actions. Nothing below the like threshold qualifies.
func (t Thresholds) Decide(score int) Decision {
	d := Decision{Score: score}
	if score < t.Like {
		return d
	}
	d.Like = true
	d.Repost = score >= t.Repost
	d.Reply = score >= t.Reply
	return d
}
