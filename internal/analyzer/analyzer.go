// Package analyzer runs the full behavioral analysis of a subreddit batch.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/zombar/communityanalyzer/internal/features"
	"github.com/zombar/communityanalyzer/internal/models"
	"github.com/zombar/communityanalyzer/internal/patterns"
	"github.com/zombar/communityanalyzer/internal/profile"
	"github.com/zombar/communityanalyzer/internal/scoring"
)

// Analysis stages reported through Request.Progress
const (
	StageNLP       = "nlp_analysis"
	StageScoring   = "scoring"
	StageProfiling = "profiling"
)

// TopStylePosts is the number of top scoring posts used for style openings
const TopStylePosts = 20

// Analyzer wires the extractor, detector, scorer and profile builder together
type Analyzer struct {
	extractor *features.Extractor
	detector  *patterns.Detector
	logger    *slog.Logger
}

type config struct {
	workers  int
	custom   []patterns.CustomPattern
	taxonomy *patterns.Taxonomy
	logger   *slog.Logger
}

// Option configures an Analyzer
type Option func(*config)

// WithWorkers sets the feature extraction parallelism
func WithWorkers(n int) Option {
	return func(c *config) {
		c.workers = n
	}
}

// WithCustomPatterns adds user supplied forbidden patterns
func WithCustomPatterns(custom []patterns.CustomPattern) Option {
	return func(c *config) {
		c.custom = append(c.custom, custom...)
	}
}

// WithTaxonomy replaces the embedded pattern taxonomy
func WithTaxonomy(t *patterns.Taxonomy) Option {
	return func(c *config) {
		c.taxonomy = t
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a new Analyzer
func New(opts ...Option) *Analyzer {
	cfg := &config{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	var extractorOpts []features.Option
	if cfg.workers > 0 {
		extractorOpts = append(extractorOpts, features.WithWorkers(cfg.workers))
	}
	detectorOpts := []patterns.Option{
		patterns.WithLogger(cfg.logger),
		patterns.WithCustomPatterns(cfg.custom),
	}
	if cfg.taxonomy != nil {
		detectorOpts = append(detectorOpts, patterns.WithTaxonomy(cfg.taxonomy))
	}

	return &Analyzer{
		extractor: features.New(extractorOpts...),
		detector:  patterns.NewDetector(detectorOpts...),
		logger:    cfg.logger,
	}
}

// Detector returns the pattern detector used by the analyzer
func (a *Analyzer) Detector() *patterns.Detector {
	return a.detector
}

// Request describes one subreddit analysis
type Request struct {
	CampaignID string
	Subreddit  string
	Posts      []models.Post
	// Averages overrides the baseline computed from the batch itself
	Averages *models.CommunityAverages
	Progress func(stage string)
}

// Result is the output of a subreddit analysis
type Result struct {
	Features []models.TextFeatures
	Scores   []models.ScoredPost
	Patterns models.CorpusPatternSummary
	ISC      float64
	Profile  *models.CommunityProfile
}

// AnalyzeSubreddit extracts features, scores every post, computes the
// sensitivity coefficient and builds the profile. Batches below
// scoring.MinPosts fail with *scoring.InsufficientDataError before any work.
func (a *Analyzer) AnalyzeSubreddit(ctx context.Context, req Request) (*Result, error) {
	if err := scoring.RequireMinPosts(len(req.Posts)); err != nil {
		return nil, err
	}
	progress := req.Progress
	if progress == nil {
		progress = func(string) {}
	}

	logger := a.logger.With("campaign_id", req.CampaignID, "subreddit", req.Subreddit)
	texts := make([]string, len(req.Posts))
	for i, p := range req.Posts {
		texts[i] = p.Text()
	}

	progress(StageNLP)
	feats, err := a.extractor.ExtractAll(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to extract features: %w", err)
	}

	avg := profile.Averages(feats)
	if req.Averages != nil {
		avg = *req.Averages
	}

	progress(StageScoring)
	scored := make([]models.ScoredPost, len(req.Posts))
	for i, p := range req.Posts {
		scored[i] = models.ScoredPost{
			PostID:       p.ID,
			Text:         texts[i],
			Features:     feats[i],
			Score:        scoring.Score(texts[i], feats[i], avg),
			CommentCount: p.CommentCount,
			Archetype:    p.Archetype,
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	isc, err := scoring.ComputeISC(scored)
	if err != nil {
		return nil, err
	}
	summary := a.detector.DetectCorpus(texts)

	progress(StageProfiling)
	style := a.extractor.ExtractStyle(texts, topTexts(scored, TopStylePosts))
	prof, err := profile.Build(profile.Input{
		CampaignID: req.CampaignID,
		Subreddit:  req.Subreddit,
		Posts:      scored,
		ISC:        isc,
		Patterns:   summary,
		Style:      &style,
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger.Info("subreddit analyzed",
		"posts", len(scored),
		"isc", isc,
		"tier", prof.ISCTier,
		"dominant_tone", prof.DominantTone)

	return &Result{
		Features: feats,
		Scores:   scored,
		Patterns: summary,
		ISC:      isc,
		Profile:  prof,
	}, nil
}

// topTexts returns the texts of the n highest scoring posts
func topTexts(scored []models.ScoredPost, n int) []string {
	sorted := make([]models.ScoredPost, len(scored))
	copy(sorted, scored)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score.TotalScore > sorted[j].Score.TotalScore
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	texts := make([]string, len(sorted))
	for i, p := range sorted {
		texts[i] = p.Text
	}
	return texts
}

// GroupBySubreddit buckets posts by subreddit, preserving input order
func GroupBySubreddit(posts []models.Post) map[string][]models.Post {
	groups := make(map[string][]models.Post)
	for _, p := range posts {
		groups[p.Subreddit] = append(groups[p.Subreddit], p)
	}
	return groups
}

// Subreddits returns the sorted keys of a grouping
func Subreddits(groups map[string][]models.Post) []string {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ScoreBreakdown merges scorer penalty phrases with the detector's per-post
// matches. Phrases already reported by the scorer are not repeated.
func ScoreBreakdown(post models.Post, score models.PostScore, detector *patterns.Detector) models.ScoreBreakdown {
	seen := make(map[string]bool)
	penalties := []models.PatternMatch{}
	add := func(m models.PatternMatch) {
		key := strings.ToLower(m.MatchedPhrase)
		if seen[key] {
			return
		}
		seen[key] = true
		penalties = append(penalties, m)
	}

	for _, m := range score.PenaltyPhrases {
		add(m)
	}
	if detector != nil {
		for _, m := range detector.DetectPost(post.Text()) {
			add(m)
		}
	}

	return models.ScoreBreakdown{
		PostID:    post.ID,
		Subreddit: post.Subreddit,
		Score:     score,
		Penalties: penalties,
	}
}
