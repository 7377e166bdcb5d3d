package patterns

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombar/communityanalyzer/internal/models"
)

const filler = "We spent the whole weekend repotting tomatoes in the back garden."

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func findPattern(t *testing.T, summary models.CorpusPatternSummary, description string) models.DetectedPattern {
	t.Helper()
	for _, p := range summary.Patterns {
		if p.PatternDescription == description {
			return p
		}
	}
	t.Fatalf("pattern %q not in summary", description)
	return models.DetectedPattern{}
}

func TestDetectCorpusSeverityThresholds(t *testing.T) {
	var texts []string
	for i := 0; i < 25; i++ {
		texts = append(texts, filler+" Found a coupon for soil.")
	}
	for i := 0; i < 15; i++ {
		texts = append(texts, filler+" Their free trial was fine.")
	}
	for i := 0; i < 5; i++ {
		texts = append(texts, filler+" The heat was shocking.")
	}
	for len(texts) < 100 {
		texts = append(texts, filler)
	}

	summary := NewDetector().DetectCorpus(texts)
	assert.Equal(t, 100, summary.TotalPosts)

	coupon := findPattern(t, summary, `\bcoupon\b`)
	assert.Equal(t, 25, coupon.MatchCount)
	assert.Equal(t, models.SeverityHigh, coupon.Severity)
	assert.Equal(t, 25.0, coupon.Percentage)

	trial := findPattern(t, summary, `\bfree\s+trial\b`)
	assert.Equal(t, 15, trial.MatchCount)
	assert.Equal(t, models.SeverityMedium, trial.Severity)

	shocking := findPattern(t, summary, `\bshocking\b`)
	assert.Equal(t, 5, shocking.MatchCount)
	assert.Equal(t, models.SeverityLow, shocking.Severity)
	assert.Equal(t, "Off-topic", shocking.Category)

	require.Len(t, summary.Patterns, 3)
	assert.Equal(t, coupon, summary.Patterns[0])
	assert.Equal(t, trial, summary.Patterns[1])
	assert.Equal(t, shocking, summary.Patterns[2])

	assert.Equal(t, 40, summary.ByCategory["Promotional"])
	assert.Equal(t, 5, summary.ByCategory["Off-topic"])
	assert.Equal(t, 0, summary.ByCategory["Low-effort"])
	assert.Equal(t, 40.0, summary.CategoryPercentages["Promotional"])
	assert.Len(t, summary.ByCategory, 6)
}

func TestSeverityForShare(t *testing.T) {
	tests := []struct {
		percentage float64
		expected   models.Severity
	}{
		{25, models.SeverityHigh},
		{20.01, models.SeverityHigh},
		{20, models.SeverityMedium},
		{15, models.SeverityMedium},
		{10, models.SeverityMedium},
		{9.99, models.SeverityLow},
		{5, models.SeverityLow},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, SeverityForShare(tt.percentage), "percentage %v", tt.percentage)
	}
}

func TestDetectCorpusCountsDistinctPosts(t *testing.T) {
	texts := []string{
		filler + " coupon coupon, plus a promo code and a discount code.",
		filler,
	}

	summary := NewDetector().DetectCorpus(texts)
	assert.Equal(t, 1, summary.ByCategory["Promotional"])
	for _, p := range summary.Patterns {
		assert.Equal(t, 1, p.MatchCount, p.PatternDescription)
	}
}

func TestDetectCorpusTieBreakByCategory(t *testing.T) {
	texts := []string{
		filler + " The ending was shocking.",
		filler + " I used a coupon.",
	}

	summary := NewDetector().DetectCorpus(texts)
	require.Len(t, summary.Patterns, 2)
	assert.Equal(t, "Off-topic", summary.Patterns[0].Category)
	assert.Equal(t, "Promotional", summary.Patterns[1].Category)
}

func TestDetectCorpusEmpty(t *testing.T) {
	summary := NewDetector().DetectCorpus(nil)
	assert.Equal(t, 0, summary.TotalPosts)
	assert.Empty(t, summary.Patterns)
	assert.NotNil(t, summary.Patterns)
}

func TestDetectPost(t *testing.T) {
	d := NewDetector()

	matches := d.DetectPost("Check out my new app! Use promo code SAVE20!!! my product rocks")

	byPhrase := make(map[string]models.PatternMatch)
	for _, m := range matches {
		byPhrase[m.MatchedPhrase] = m
		assert.Equal(t, models.SourceSystem, m.Source)
	}

	require.Contains(t, byPhrase, "Check out my")
	assert.Equal(t, "Promotional", byPhrase["Check out my"].Category)
	assert.Equal(t, models.SeverityHigh, byPhrase["Check out my"].Severity)

	require.Contains(t, byPhrase, "promo code")
	require.Contains(t, byPhrase, "my product")
	assert.Equal(t, models.SeverityMedium, byPhrase["my product"].Severity)

	require.Contains(t, byPhrase, "!!!")
	assert.Equal(t, "Spam indicators", byPhrase["!!!"].Category)
	assert.Equal(t, models.SeverityHigh, byPhrase["!!!"].Severity)
}

func TestDetectPostDeduplicatesCaseInsensitively(t *testing.T) {
	matches := NewDetector().DetectPost("coupon COUPON Coupon")

	require.Len(t, matches, 2)
	assert.Equal(t, "coupon", matches[0].MatchedPhrase)
	assert.Equal(t, "Promotional", matches[0].Category)
	assert.Equal(t, "Low-effort", matches[1].Category)
	assert.Equal(t, models.SeverityLow, matches[1].Severity)
}

func TestDetectPostIgnoresSurroundingWhitespace(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		name string
		text string
	}{
		{"trailing newline", "Thoughts?\n"},
		{"trailing spaces", "Thoughts?   "},
		{"surrounding blank lines", "\n\nThoughts?\n\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := d.DetectPost(tt.text)
			require.Len(t, matches, 1)
			assert.Equal(t, "Thoughts?", matches[0].MatchedPhrase)
			assert.Equal(t, "Low-effort", matches[0].Category)
		})
	}
}

func TestDetectPostEmpty(t *testing.T) {
	d := NewDetector()
	for _, text := range []string{"", "   "} {
		matches := d.DetectPost(text)
		assert.NotNil(t, matches)
		assert.Empty(t, matches)
	}
}

func TestCustomPatterns(t *testing.T) {
	d := NewDetector(
		WithLogger(quietLogger()),
		WithCustomPatterns([]CustomPattern{
			{Category: "Promotional", Expr: `buy\s+now`},
			{Category: "", Expr: `([invalid`},
			{Category: "Giveaways", Expr: `giveaway`},
		}),
	)

	matches := d.DetectPost("You should buy now before the price goes up again next week")
	require.Len(t, matches, 1)
	assert.Equal(t, "buy now", matches[0].MatchedPhrase)
	assert.Equal(t, "Promotional", matches[0].Category)
	assert.Equal(t, models.SourceUserAdded, matches[0].Source)
	assert.Equal(t, models.SeverityMedium, matches[0].Severity)

	assert.Contains(t, d.Categories(), "Giveaways")
	assert.NotContains(t, d.Categories(), CustomCategory)

	summary := d.DetectCorpus([]string{filler + " Huge giveaway today."})
	require.Len(t, summary.Patterns, 1)
	assert.Equal(t, models.SourceUserAdded, summary.Patterns[0].Source)
	assert.Equal(t, 1, summary.ByCategory["Giveaways"])
}

func TestRepeatedPhrase(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{"three repeats", strings.Repeat("abcdefghij", 3), []string{strings.Repeat("abcdefghij", 3)}},
		{"four repeats", "x" + strings.Repeat("buy now plz ", 4), []string{strings.Repeat("buy now plz ", 4)}},
		{"two repeats", strings.Repeat("abcdefghij", 2), nil},
		{"unit too short", strings.Repeat("short", 5), nil},
		{"unit spans lines", strings.Repeat("abcdefghi\n", 3), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, repeatedPhrase(tt.text))
		})
	}
}

func TestShortPost(t *testing.T) {
	assert.Equal(t, []string{"Thoughts?"}, shortPost("  Thoughts?  "))
	assert.Nil(t, shortPost(filler))
	assert.Nil(t, shortPost(""))
}
