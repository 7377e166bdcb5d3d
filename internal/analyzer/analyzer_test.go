package analyzer

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombar/communityanalyzer/internal/models"
	"github.com/zombar/communityanalyzer/internal/patterns"
	"github.com/zombar/communityanalyzer/internal/scoring"
)

func intPtr(v int) *int {
	return &v
}

func samplePosts(n int) []models.Post {
	bodies := []string{
		"I struggled with my tomatoes this year. The leaves kept curling and I felt lost.",
		"Check out our revolutionary fertilizer! Leverage synergy at https://shop.example.com now.",
		"My journey with raised beds has been slow. I learned a lot about drainage though.",
		"Does anyone know why my basil wilts in the afternoon? It gets plenty of water.",
		"Honestly I was frustrated when the frost came early. We lost most of the peppers.",
	}
	posts := make([]models.Post, n)
	for i := range posts {
		posts[i] = models.Post{
			ID:           fmt.Sprintf("post-%d", i),
			CampaignID:   "camp-1",
			Subreddit:    "gardening",
			Title:        fmt.Sprintf("Post number %d", i),
			Body:         bodies[i%len(bodies)],
			CommentCount: intPtr(i * 3),
			Archetype:    []string{"Journey", "ProblemSolution", ""}[i%3],
		}
	}
	return posts
}

func TestAnalyzeSubreddit(t *testing.T) {
	a := New(WithWorkers(2))

	var stages []string
	result, err := a.AnalyzeSubreddit(context.Background(), Request{
		CampaignID: "camp-1",
		Subreddit:  "gardening",
		Posts:      samplePosts(12),
		Progress:   func(stage string) { stages = append(stages, stage) },
	})
	require.NoError(t, err)

	assert.Equal(t, []string{StageNLP, StageScoring, StageProfiling}, stages)
	assert.Len(t, result.Features, 12)
	require.Len(t, result.Scores, 12)
	assert.Equal(t, "post-0", result.Scores[0].PostID)
	assert.Equal(t, "post-11", result.Scores[11].PostID)

	assert.GreaterOrEqual(t, result.ISC, 1.0)
	assert.LessOrEqual(t, result.ISC, 10.0)
	assert.Equal(t, 12, result.Patterns.TotalPosts)

	prof := result.Profile
	require.NotNil(t, prof)
	assert.Equal(t, "camp-1", prof.CampaignID)
	assert.Equal(t, "gardening", prof.Subreddit)
	assert.Equal(t, result.ISC, prof.ISCScore)
	assert.Equal(t, 12, prof.SampleSize)
	assert.LessOrEqual(t, len(prof.TopSuccessHooks), 5)
	assert.Equal(t, 4, prof.ArchetypeDistribution["Unclassified"])
	require.NotNil(t, prof.Style)
	assert.NotEmpty(t, prof.Style.Vocabulary.TopTerms)

	for _, s := range result.Scores {
		assert.GreaterOrEqual(t, s.Score.TotalScore, 0.0)
		assert.LessOrEqual(t, s.Score.TotalScore, 10.0)
	}
}

func TestAnalyzeSubredditInsufficientData(t *testing.T) {
	called := false
	_, err := New().AnalyzeSubreddit(context.Background(), Request{
		Subreddit: "tiny",
		Posts:     samplePosts(7),
		Progress:  func(string) { called = true },
	})

	var insufficient *scoring.InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 7, insufficient.Got)
	assert.Equal(t, "insufficient data: need at least 10 posts, got 7", err.Error())
	assert.False(t, called)
}

func TestAnalyzeSubredditCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := New().AnalyzeSubreddit(ctx, Request{Subreddit: "gardening", Posts: samplePosts(10)})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)
}

func TestAnalyzeSubredditAveragesOverride(t *testing.T) {
	sentence := 40.0
	formality := 30.0
	override := &models.CommunityAverages{AvgSentenceLength: &sentence, FormalityLevel: &formality}

	a := New()
	base, err := a.AnalyzeSubreddit(context.Background(), Request{Subreddit: "gardening", Posts: samplePosts(10)})
	require.NoError(t, err)
	over, err := a.AnalyzeSubreddit(context.Background(), Request{Subreddit: "gardening", Posts: samplePosts(10), Averages: override})
	require.NoError(t, err)

	// the posts are far from the override baseline
	assert.Less(t, over.Scores[0].Score.RhythmAdherence, base.Scores[0].Score.RhythmAdherence)
}

func TestAnalyzeSubredditCustomPatterns(t *testing.T) {
	a := New(WithCustomPatterns([]patterns.CustomPattern{{Category: "Custom", Expr: `raised beds`}}))

	result, err := a.AnalyzeSubreddit(context.Background(), Request{Subreddit: "gardening", Posts: samplePosts(10)})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Patterns.ByCategory["Custom"])
}

func TestGroupBySubreddit(t *testing.T) {
	posts := []models.Post{
		{ID: "1", Subreddit: "b"},
		{ID: "2", Subreddit: "a"},
		{ID: "3", Subreddit: "b"},
	}

	groups := GroupBySubreddit(posts)
	require.Len(t, groups, 2)
	assert.Equal(t, "1", groups["b"][0].ID)
	assert.Equal(t, "3", groups["b"][1].ID)
	assert.Equal(t, []string{"a", "b"}, Subreddits(groups))
}

func TestScoreBreakdown(t *testing.T) {
	post := models.Post{ID: "p1", Subreddit: "gardening", Body: "Leverage synergy! Use my discount code at https://shop.example.com"}
	score := scoring.Score(post.Text(), models.TextFeatures{}, models.CommunityAverages{})

	breakdown := ScoreBreakdown(post, score, patterns.NewDetector())

	assert.Equal(t, "p1", breakdown.PostID)
	assert.Equal(t, "gardening", breakdown.Subreddit)
	assert.Equal(t, score, breakdown.Score)

	seen := make(map[string]bool)
	for _, p := range breakdown.Penalties {
		assert.False(t, seen[p.MatchedPhrase], "duplicate %q", p.MatchedPhrase)
		seen[p.MatchedPhrase] = true
	}
	assert.True(t, seen["synergy"])
	assert.True(t, seen["https://shop.example.com"])
	assert.True(t, seen["discount code"])
	assert.Greater(t, len(breakdown.Penalties), len(score.PenaltyPhrases))
}
