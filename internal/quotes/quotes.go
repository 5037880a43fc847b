// Package quotes picks the daily quote post: category rotation by calendar
// day, recent-use avoidance, and hashtag formatting.
package quotes

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"time"
)

// MaxHashtagLine caps the hashtag suffix of a status.
const MaxHashtagLine = 250

// RecentWindow is how many past quote posts are avoided.
const RecentWindow = 50

// Quote is one entry of the quote library
type Quote struct {
	Text     string `json:"text"`
	Author   string `json:"author"`
	Category string `json:"category"`
}

// Content is the logged form of a quote: "<text> — <author>".
func (q Quote) Content() string {
	return fmt.Sprintf("%s — %s", q.Text, q.Author)
}

// Category pairs a rotation slot with its hashtags
type Category struct {
	Name     string
	Hashtags []string
}

// DefaultCategories is the rotation order.
var DefaultCategories = []Category{
	{Name: "Business", Hashtags: []string{"#Business", "#Entrepreneur", "#Leadership"}},
	{Name: "Success", Hashtags: []string{"#Success", "#Growth", "#Mindset"}},
	{Name: "Motivation", Hashtags: []string{"#Motivation", "#Inspiration", "#DailyQuote"}},
	{Name: "Technology", Hashtags: []string{"#Technology", "#AI", "#WebDev"}},
}

var trailingTags = []string{"#Quotes", "#Inspiration"}

// ErrEmptyLibrary is returned when there is nothing to post.
var ErrEmptyLibrary = errors.New("quote library is empty")

// Load reads a JSON array of quotes from path
func Load(path string) ([]Quote, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read quote library: %w", err)
	}
	var qs []Quote
	if err := json.Unmarshal(data, &qs); err != nil {
		return nil, fmt.Errorf("failed to parse quote library %s: %w", path, err)
	}
	return qs, nil
}

// DayOrdinal is the proleptic Gregorian ordinal of date's calendar day,
// with 0001-01-01 as day 1.
func DayOrdinal(date time.Time) int {
	y, m, d := date.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return int(day.Unix()/secondsPerDay) + unixEpochOrdinal
}

const (
	secondsPerDay    = 24 * 60 * 60
	unixEpochOrdinal = 719163 // 1970-01-01
)

// CategoryFor rotates through cats by calendar day. It is a pure function of
// its arguments.
func CategoryFor(date time.Time, cats []Category) Category {
	if len(cats) == 0 {
		return Category{}
	}
	return cats[DayOrdinal(date)%len(cats)]
}

// Picker chooses quotes. The zero value is not usable; call NewPicker.
type Picker struct {
	shuffle func(n int, swap func(i, j int))
}

// NewPicker returns a Picker; a nil shuffle keeps library order.
func NewPicker(shuffle func(n int, swap func(i, j int))) *Picker {
	if shuffle == nil {
		shuffle = func(int, func(i, j int)) {}
	}
	return &Picker{shuffle: shuffle}
}

// RandomPicker shuffles with math/rand/v2.
func RandomPicker() *Picker {
	return NewPicker(rand.Shuffle)
}

// Pick returns a quote in category whose content is not in recent. If every
// quote in the category was used recently it returns the first shuffled one;
// with no quotes in the category it returns any quote.
func (p *Picker) Pick(library []Quote, category string, recent []string) (Quote, error) {
	if len(library) == 0 {
		return Quote{}, ErrEmptyLibrary
	}

	var inCat []Quote
	for _, q := range library {
		if q.Category == category {
			inCat = append(inCat, q)
		}
	}
	if len(inCat) == 0 {
		all := append([]Quote(nil), library...)
		p.shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
		return all[0], nil
	}

	p.shuffle(len(inCat), func(i, j int) { inCat[i], inCat[j] = inCat[j], inCat[i] })

	used := make(map[string]bool, len(recent))
	for _, c := range recent {
		used[c] = true
	}
	for _, q := range inCat {
		if !used[q.Content()] {
			return q, nil
		}
	}
	return inCat[0], nil
}

// Status renders the post text: content, a blank line, then hashtags.
func Status(q Quote, cat Category) string {
	tags := append(append([]string{}, cat.Hashtags...), trailingTags...)
	line := strings.Join(tags, " ")
	if len(line) > MaxHashtagLine {
		line = line[:MaxHashtagLine]
	}
	return q.Content() + "\n\n" + line
}
