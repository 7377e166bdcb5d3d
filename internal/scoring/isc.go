package scoring

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/zombar/communityanalyzer/internal/models"
)

// ISC factor weights
const (
	ISCJargonWeight        = 0.30
	ISCLinkWeight          = 0.20
	ISCVulnerabilityWeight = 0.30
	ISCDepthWeight         = 0.20

	// minCommentedPosts is the number of posts with comments needed for depth correlation
	minCommentedPosts = 5
	// minDepthSample is the smallest top-discussed subset
	minDepthSample = 2
)

// ComputeISC returns the community sensitivity coefficient in [1, 10],
// rounded to one decimal. It fails with *InsufficientDataError below MinPosts.
func ComputeISC(posts []models.ScoredPost) (float64, error) {
	if err := RequireMinPosts(len(posts)); err != nil {
		return 0, err
	}

	sorted := make([]models.ScoredPost, len(posts))
	copy(sorted, posts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score.TotalScore > sorted[j].Score.TotalScore
	})

	q := quartileSize(len(sorted))
	top := sorted[:q]
	bottom := sorted[len(sorted)-q:]

	jargon := ratioSensitivity(top, bottom, func(p models.ScoredPost) bool {
		penalty, _ := JargonPenalty(p.Text)
		return penalty > 0
	})
	link := ratioSensitivity(top, bottom, func(p models.ScoredPost) bool {
		penalty, _ := LinkPenalty(p.Text)
		return penalty > 0
	})
	vulnerability := clamp(NeutralScore+meanVulnerability(top)-meanVulnerability(bottom), 0, 10)
	depth := depthCorrelation(posts)

	isc := jargon*ISCJargonWeight +
		link*ISCLinkWeight +
		vulnerability*ISCVulnerabilityWeight +
		depth*ISCDepthWeight
	return round(clamp(isc, 1, 10), 1), nil
}

// quartileSize is ceil(n/4), at least 1
func quartileSize(n int) int {
	q := (n + 3) / 4
	if q < 1 {
		q = 1
	}
	return q
}

// ratioSensitivity compares how often a penalty appears in top vs bottom posts
func ratioSensitivity(top, bottom []models.ScoredPost, penalized func(models.ScoredPost) bool) float64 {
	topCount := countWhere(top, penalized)
	bottomCount := countWhere(bottom, penalized)
	if bottomCount == 0 {
		return NeutralScore
	}
	ratio := float64(topCount) / float64(bottomCount)
	return clamp(10-ratio*5, 0, 10)
}

func countWhere(posts []models.ScoredPost, pred func(models.ScoredPost) bool) int {
	n := 0
	for _, p := range posts {
		if pred(p) {
			n++
		}
	}
	return n
}

func meanVulnerability(posts []models.ScoredPost) float64 {
	if len(posts) == 0 {
		return 0
	}
	weights := make([]float64, len(posts))
	for i, p := range posts {
		weights[i] = p.Score.VulnerabilityWeight
	}
	return stat.Mean(weights, nil)
}

// depthCorrelation measures how authentic the most discussed posts are
func depthCorrelation(posts []models.ScoredPost) float64 {
	var commented []models.ScoredPost
	for _, p := range posts {
		if p.CommentCount != nil && *p.CommentCount > 0 {
			commented = append(commented, p)
		}
	}
	if len(commented) < minCommentedPosts {
		return NeutralScore
	}

	sort.SliceStable(commented, func(i, j int) bool {
		return *commented[i].CommentCount > *commented[j].CommentCount
	})
	k := quartileSize(len(commented))
	if k < minDepthSample {
		k = minDepthSample
	}

	sum := 0.0
	for _, p := range commented[:k] {
		sum += (p.Score.FormalityMatch + p.Score.VulnerabilityWeight) / 2
	}
	return clamp(sum/float64(k), 0, 10)
}

// Tier labels
const (
	TierLow      = "Low Sensitivity"
	TierModerate = "Moderate Sensitivity"
	TierHigh     = "High Sensitivity"
	TierVeryHigh = "Very High Sensitivity"
)

// Tier maps an ISC value to its display band
func Tier(isc float64) string {
	switch {
	case isc < 3:
		return TierLow
	case isc < 5:
		return TierModerate
	case isc < 7:
		return TierHigh
	default:
		return TierVeryHigh
	}
}
