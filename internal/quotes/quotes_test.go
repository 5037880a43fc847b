package quotes

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayOrdinal(t *testing.T) {
	assert.Equal(t, 1, DayOrdinal(time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 730120, DayOrdinal(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)))
	// the calendar day of the given location counts, not the UTC day
	ist := time.FixedZone("IST", 5*3600+1800)
	assert.Equal(t, 730120, DayOrdinal(time.Date(2000, 1, 1, 1, 0, 0, 0, ist)))
}

func TestCategoryForRotatesDaily(t *testing.T) {
	day := time.Date(2000, 1, 1, 9, 0, 0, 0, time.UTC) // ordinal 730120, 730120 % 4 == 0
	assert.Equal(t, "Business", CategoryFor(day, DefaultCategories).Name)
	assert.Equal(t, "Success", CategoryFor(day.AddDate(0, 0, 1), DefaultCategories).Name)
	assert.Equal(t, "Motivation", CategoryFor(day.AddDate(0, 0, 2), DefaultCategories).Name)
	assert.Equal(t, "Technology", CategoryFor(day.AddDate(0, 0, 3), DefaultCategories).Name)
	assert.Equal(t, "Business", CategoryFor(day.AddDate(0, 0, 4), DefaultCategories).Name)

	// same day, same answer
	assert.Equal(t, CategoryFor(day, DefaultCategories), CategoryFor(day.Add(10*time.Hour), DefaultCategories))
	assert.Equal(t, Category{}, CategoryFor(day, nil))
}

var library = []Quote{
	{Text: "a", Author: "A", Category: "Business"},
	{Text: "b", Author: "B", Category: "Business"},
	{Text: "c", Author: "C", Category: "Success"},
}

func TestPickAvoidsRecent(t *testing.T) {
	p := NewPicker(nil)

	q, err := p.Pick(library, "Business", nil)
	require.NoError(t, err)
	assert.Equal(t, "a", q.Text)

	q, err = p.Pick(library, "Business", []string{"a — A"})
	require.NoError(t, err)
	assert.Equal(t, "b", q.Text)

	q, err = p.Pick(library, "Business", []string{"a — A", "b — B"})
	require.NoError(t, err)
	assert.Equal(t, "a", q.Text, "all used: first candidate")
}

func TestPickFallsBackToAnyQuote(t *testing.T) {
	q, err := NewPicker(nil).Pick(library, "Technology", nil)
	require.NoError(t, err)
	assert.Equal(t, "a", q.Text)

	_, err = NewPicker(nil).Pick(nil, "Business", nil)
	assert.ErrorIs(t, err, ErrEmptyLibrary)
}

func TestRandomPickerStaysInCategory(t *testing.T) {
	p := RandomPicker()
	for i := 0; i < 20; i++ {
		q, err := p.Pick(library, "Business", nil)
		require.NoError(t, err)
		assert.Equal(t, "Business", q.Category)
	}
}

func TestStatus(t *testing.T) {
	q := Quote{Text: "Stay hungry", Author: "Jobs"}
	got := Status(q, DefaultCategories[0])
	assert.Equal(t, "Stay hungry — Jobs\n\n#Business #Entrepreneur #Leadership #Quotes #Inspiration", got)

	long := Category{Hashtags: []string{strings.Repeat("#x", 200)}}
	parts := strings.SplitN(Status(q, long), "\n\n", 2)
	assert.Len(t, parts[1], MaxHashtagLine)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quotes.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"text":"t","author":"a","category":"Success"}]`), 0644))

	qs, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []Quote{{Text: "t", Author: "a", Category: "Success"}}, qs)

	require.NoError(t, os.WriteFile(path, []byte(`{`), 0644))
	_, err = Load(path)
	assert.Error(t, err)
}
