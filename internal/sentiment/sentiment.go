// Package sentiment scores short social posts with a small valence lexicon
// in the style of VADER: per-word valence, booster and negation handling,
// a "but" shift, and a compound score normalised into [-1, 1].
package sentiment

import (
	"math"
	"strings"
	"unicode"
)

// Label is the coarse polarity of a text.
type Label string

const (
	Positive Label = "positive"
	Neutral  Label = "neutral"
	Negative Label = "negative"
)

// Thresholds on the compound score.
const (
	positiveThreshold = 0.05
	negativeThreshold = -0.05
	alpha             = 15.0
	boosterIncr       = 0.293
	negationScale     = -0.74
	exclaimIncr       = 0.292
	capsIncr          = 0.733
)

// Analyzer scores text. The zero value is not usable; call New.
type Analyzer struct {
	lexicon map[string]float64
}

// New returns an Analyzer over the built-in lexicon.
func New() *Analyzer {
	return &Analyzer{lexicon: lexicon}
}

// Analyze returns the polarity label and compound score of text.
func (a *Analyzer) Analyze(text string) (Label, float64) {
	score := a.Compound(text)
	switch {
	case score >= positiveThreshold:
		return Positive, score
	case score <= negativeThreshold:
		return Negative, score
	}
	return Neutral, score
}

// Compound returns the normalised sum of word valences in [-1, 1].
func (a *Analyzer) Compound(text string) float64 {
	raw := tokenize(text)
	if len(raw) == 0 {
		return 0
	}
	words := make([]string, len(raw))
	for i, w := range raw {
		words[i] = strings.ToLower(w)
	}
	mixedCase := hasMixedCase(raw)

	valences := make([]float64, len(words))
	for i, w := range words {
		v, ok := a.lexicon[w]
		if !ok {
			continue
		}
		if mixedCase && isShouting(raw[i]) {
			v += sign(v) * capsIncr
		}
		// boosters and negations up to three words back
		for back := 1; back <= 3 && i-back >= 0; back++ {
			prev := words[i-back]
			if b, ok := boosters[prev]; ok {
				damp := 1.0 - 0.05*float64(back-1)
				v += sign(v) * b * damp
			}
			if negations[prev] || strings.HasSuffix(prev, "n't") {
				v *= negationScale
			}
		}
		valences[i] = v
	}

	// sentiment after "but" dominates
	for i, w := range words {
		if w != "but" {
			continue
		}
		for j := range valences {
			switch {
			case j < i:
				valences[j] *= 0.5
			case j > i:
				valences[j] *= 1.5
			}
		}
		break
	}

	var sum float64
	for _, v := range valences {
		sum += v
	}
	if sum != 0 {
		sum += sign(sum) * emphasis(text)
	}
	return normalize(sum)
}

func emphasis(text string) float64 {
	n := strings.Count(text, "!")
	if n > 4 {
		n = 4
	}
	return float64(n) * exclaimIncr
}

func normalize(score float64) float64 {
	n := score / math.Sqrt(score*score+alpha)
	return math.Max(-1, math.Min(1, n))
}

func tokenize(text string) []string {
	var out []string
	for _, field := range strings.Fields(text) {
		if strings.HasPrefix(field, "@") || strings.HasPrefix(field, "http://") || strings.HasPrefix(field, "https://") {
			continue
		}
		field = strings.ReplaceAll(field, "’", "'")
		parts := strings.FieldsFunc(field, func(r rune) bool {
			return unicode.IsPunct(r) && r != '\''
		})
		for _, p := range parts {
			if p = strings.Trim(p, "'"); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func isShouting(w string) bool {
	hasLetter := false
	for _, r := range w {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter && len(w) > 1
}

func hasMixedCase(words []string) bool {
	shouting := 0
	for _, w := range words {
		if isShouting(w) {
			shouting++
		}
	}
	return shouting > 0 && shouting < len(words)
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
