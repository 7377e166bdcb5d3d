// Package profile aggregates scored posts into a community profile.
package profile

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/zombar/communityanalyzer/internal/models"
	"github.com/zombar/communityanalyzer/internal/scoring"
)

const (
	// MaxHooks is the number of top posts hooks are taken from
	MaxHooks = 5
	// MinHookLength is the shortest hook kept, in characters
	MinHookLength = 10
	// MaxHookLength is the longest hook kept, in characters
	MaxHookLength = 200
	// UnclassifiedArchetype counts posts without an archetype label
	UnclassifiedArchetype = "Unclassified"
)

// Input is everything the builder needs for one subreddit
type Input struct {
	CampaignID string
	Subreddit  string
	Posts      []models.ScoredPost
	ISC        float64
	Patterns   models.CorpusPatternSummary
	Style      *models.StyleFingerprint
}

// now is replaced in tests
var now = time.Now

// Build assembles the community profile. It fails with
// *scoring.InsufficientDataError when fewer than scoring.MinPosts posts are given.
func Build(in Input) (*models.CommunityProfile, error) {
	if err := scoring.RequireMinPosts(len(in.Posts)); err != nil {
		return nil, err
	}

	features := make([]models.TextFeatures, len(in.Posts))
	for i, p := range in.Posts {
		features[i] = p.Features
	}
	avg := Averages(features)

	return &models.CommunityProfile{
		ID:                    uuid.New().String(),
		CampaignID:            in.CampaignID,
		Subreddit:             in.Subreddit,
		ISCScore:              in.ISC,
		ISCTier:               scoring.Tier(in.ISC),
		DominantTone:          DominantTone(features),
		FormalityLevel:        avg.FormalityLevel,
		AvgSentenceLength:     avg.AvgSentenceLength,
		SentenceLengthStd:     avg.SentenceLengthStd,
		TopSuccessHooks:       Hooks(in.Posts),
		ArchetypeDistribution: archetypeDistribution(in.Posts),
		ForbiddenPatterns:     in.Patterns,
		Style:                 in.Style,
		SampleSize:            len(in.Posts),
		AnalyzedAt:            now().UTC(),
	}, nil
}

// DominantTone is the most frequent tone; ties go to the label seen first
func DominantTone(features []models.TextFeatures) models.Tone {
	counts := make(map[models.Tone]int)
	var order []models.Tone
	for _, f := range features {
		if _, ok := counts[f.Tone]; !ok {
			order = append(order, f.Tone)
		}
		counts[f.Tone]++
	}

	dominant := models.ToneNeutral
	best := 0
	for _, tone := range order {
		if counts[tone] > best {
			dominant, best = tone, counts[tone]
		}
	}
	return dominant
}

// Hooks returns the opening clause of the highest scoring posts
func Hooks(posts []models.ScoredPost) []string {
	sorted := make([]models.ScoredPost, len(posts))
	copy(sorted, posts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score.TotalScore > sorted[j].Score.TotalScore
	})
	if len(sorted) > MaxHooks {
		sorted = sorted[:MaxHooks]
	}

	hooks := []string{}
	for _, p := range sorted {
		hook := firstClause(p.Text)
		if utf8.RuneCountInString(hook) < MinHookLength {
			continue
		}
		hooks = append(hooks, truncateRunes(hook, MaxHookLength))
	}
	return hooks
}

// firstClause returns text up to the first terminal punctuation or line break
func firstClause(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, ".?!\n"); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func archetypeDistribution(posts []models.ScoredPost) map[string]int {
	dist := make(map[string]int)
	for _, p := range posts {
		label := strings.TrimSpace(p.Archetype)
		if label == "" {
			label = UnclassifiedArchetype
		}
		dist[label]++
	}
	return dist
}
