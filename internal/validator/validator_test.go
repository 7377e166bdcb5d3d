package validator

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombar/communityanalyzer/internal/models"
)

func TestLinkDensity(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected float64
	}{
		{"two paragraphs one link", "Paragraph one.\n\nParagraph two https://example.com", 0.5},
		{"empty", "", 0},
		{"whitespace", "  \n\n  ", 0},
		{"no links", "Just text.\n\nMore text.", 0},
		{"two links one paragraph", "see http://a.com and https://b.org/x", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, LinkDensity(tt.text))
		})
	}
}

func TestCheckSentenceLength(t *testing.T) {
	avg, ok := CheckSentenceLength("Short sentence. Another one.", 25)
	assert.Equal(t, 2.0, avg)
	assert.True(t, ok)

	avg, ok = CheckSentenceLength("This is a very long sentence with many words that exceeds the typical community norm.", 5)
	assert.Equal(t, 15.0, avg)
	assert.False(t, ok)

	avg, ok = CheckSentenceLength("...", 25)
	assert.Equal(t, 0.0, avg)
	assert.True(t, ok)
}

func TestDetectAITells(t *testing.T) {
	tells := DetectAITells("Furthermore, this innovative solution is a game-changer.")

	categories := make([]string, len(tells))
	for i, tell := range tells {
		categories[i] = tell.Category
	}
	assert.Equal(t, []string{"AI-formal-transition", "AI-corporate-buzzword", "AI-corporate-buzzword"}, categories)
	assert.Equal(t, models.SeverityMedium, tells[0].Severity)
	assert.Equal(t, models.SeverityHigh, tells[1].Severity)
	assert.Equal(t, "innovative solution", tells[1].MatchedText)
}

func TestDetectAITellsLayout(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		category string
	}{
		{"greeting", "Hey everyone! Long time lurker here.", "AI-generic-greeting"},
		{"so discourse", "I tried it. So, here is what happened.", "AI-so-discourse"},
		{"list", "My tips:\n- water early\n- mulch well\n- prune often", "AI-list-structure"},
		{"chatgpt", "Great question, I have thoughts.", "AI-chatgpt-phrase"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tells := DetectAITells(tt.text)
			require.NotEmpty(t, tells)
			assert.Equal(t, tt.category, tells[0].Category)
		})
	}

	assert.Empty(t, DetectAITells("my tomatoes died and I am sad about it"))
	assert.Empty(t, DetectAITells("Two items only:\n- one\n- two"))
}

func TestScanJargon(t *testing.T) {
	found := ScanJargon("Our revolutionary solution disrupts the market. Let's touch-base and LEVERAGE it.")
	assert.Equal(t, []string{"leverage", "touch base", "revolutionary"}, found)

	// word boundaries hold
	assert.Empty(t, ScanJargon("the leverages of synergyless growth"))
	assert.Empty(t, ScanJargon(""))
}

func TestJargonScannerCustomTerms(t *testing.T) {
	s := NewJargonScanner([]string{"Raised Bed", "raised bed", "", "compost"})
	assert.Equal(t, []string{"Raised Bed", "compost"}, s.Scan("My raised-bed compost pile"))

	empty := NewJargonScanner(nil)
	assert.Empty(t, empty.Scan("anything"))
}

func TestScanJargonConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.Equal(t, []string{"synergy"}, ScanJargon("pure synergy here"))
			}
		}()
	}
	wg.Wait()
}

func TestValidateDraft(t *testing.T) {
	draft := "Click here to see my results.\n\nIt worked out well https://example.com"
	forbidden := []string{
		`[CAT:Promotional] \bclick here\b`,
		`\bmy results\b`,
		`[CAT:Broken] (unclosed`,
		``,
	}

	result := ValidateDraft(draft, forbidden)

	assert.False(t, result.Passed)
	require.Len(t, result.Violations, 2)
	assert.Equal(t, "Promotional", result.Violations[0].Category)
	assert.Equal(t, "Click here", result.Violations[0].MatchedText)
	assert.Equal(t, `\bmy results\b`, result.Violations[1].Pattern)
	assert.Equal(t, []string{"(unclosed"}, result.SkippedPatterns)
	assert.Equal(t, 2, result.ForbiddenChecked)
	assert.Equal(t, 0.5, result.LinkDensity)
	assert.True(t, result.SentenceLengthOK)
}

func TestValidateDraftPasses(t *testing.T) {
	result := ValidateDraft("Check out my site!", []string{`\bclick here\b`})

	assert.True(t, result.Passed)
	assert.Empty(t, result.Violations)
	assert.NotNil(t, result.Violations)
	assert.Empty(t, result.AITells)
	assert.Empty(t, result.JargonTerms)
	assert.Equal(t, 1, result.ForbiddenChecked)
}

func TestValidateDraftLongSentences(t *testing.T) {
	draft := strings.Repeat("word ", 30) + "."
	result := ValidateDraft(draft, nil)

	assert.True(t, result.Passed)
	assert.False(t, result.SentenceLengthOK)
	assert.Equal(t, 30.0, result.AvgSentenceLength)
}
