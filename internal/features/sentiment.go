package features

import (
	"math"
	"strings"
	"sync"

	"github.com/jonreiter/govader"
)

var (
	vaderOnce sync.Once
	vader     *govader.SentimentIntensityAnalyzer
)

// sharedVader loads the VADER lexicon once; the analyzer is read-only afterwards
func sharedVader() *govader.SentimentIntensityAnalyzer {
	vaderOnce.Do(func() {
		vader = govader.NewSentimentIntensityAnalyzer()
	})
	return vader
}

// SentimentAnalyzer scores text polarity with the VADER lexicon and rules
// (boosters, negation, caps emphasis, contrast, punctuation, idioms, emoji).
type SentimentAnalyzer struct {
	vader *govader.SentimentIntensityAnalyzer
}

// NewSentimentAnalyzer creates an analyzer backed by the shared VADER lexicon
func NewSentimentAnalyzer() *SentimentAnalyzer {
	return &SentimentAnalyzer{vader: sharedVader()}
}

// Compound returns the normalized polarity of text in [-1, 1], rounded to four decimals
func (s *SentimentAnalyzer) Compound(text string) float64 {
	// VADER tokenizes on single spaces only
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return 0
	}
	compound := s.vader.PolarityScores(text).Compound
	if math.IsNaN(compound) {
		return 0
	}
	compound = math.Max(-1, math.Min(1, compound))
	return math.Round(compound*10000) / 10000
}
