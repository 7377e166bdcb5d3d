// Package scoring computes per-post behavioral scores and the community
// sensitivity coefficient.
package scoring

import (
	"math"
	"strings"

	"github.com/zombar/communityanalyzer/internal/models"
)

// Score weights
const (
	VulnerabilityWeight = 0.25
	RhythmWeight        = 0.25
	FormalityWeight     = 0.20
	JargonWeight        = 0.15
	LinkWeight          = 0.15

	// NeutralScore is used when a sub-score has no data to compare against
	NeutralScore = 5.0
)

// Penalty categories attached to penalty phrases
const (
	JargonCategory = "Promotional"
	LinkCategory   = "Link patterns"
)

// Score computes every sub-score and the weighted total of a post. It never
// fails; missing features degrade to neutral sub-scores.
func Score(text string, f models.TextFeatures, avg models.CommunityAverages) models.PostScore {
	vulnerability := VulnerabilityScore(text)
	rhythm := RhythmAdherence(f, avg)
	formality := FormalityMatch(f, avg)
	jargon, jargonPhrases := JargonPenalty(text)
	link, linkPhrases := LinkPenalty(text)

	total := vulnerability*VulnerabilityWeight +
		rhythm*RhythmWeight +
		formality*FormalityWeight -
		jargon*JargonWeight -
		link*LinkWeight

	phrases := make([]models.PatternMatch, 0, len(jargonPhrases)+len(linkPhrases))
	phrases = append(phrases, jargonPhrases...)
	phrases = append(phrases, linkPhrases...)

	return models.PostScore{
		VulnerabilityWeight:    vulnerability,
		RhythmAdherence:        rhythm,
		FormalityMatch:         formality,
		MarketingJargonPenalty: jargon,
		LinkDensityPenalty:     link,
		TotalScore:             round(clamp(total, 0, 10), 2),
		PenaltyPhrases:         phrases,
	}
}

// VulnerabilityScore maps the number of authentic-voice signals to [0, 10]
func VulnerabilityScore(text string) float64 {
	if text == "" {
		return 0
	}
	matches := 0
	for _, re := range signals().vulnerability {
		matches += len(re.FindAllStringIndex(text, -1))
	}

	var score float64
	switch {
	case matches == 0:
		score = 0
	case matches <= 3:
		score = 3
	case matches <= 6:
		score = 5
	case matches <= 10:
		score = 7
	default:
		score = math.Min(10, 7+float64(matches-10)*0.3)
	}
	return round(score, 2)
}

// RhythmAdherence compares the post's sentence rhythm with the community's
func RhythmAdherence(f models.TextFeatures, avg models.CommunityAverages) float64 {
	if f.AvgSentenceLength == nil || avg.AvgSentenceLength == nil {
		return NeutralScore
	}
	score := math.Max(0, 10-math.Abs(*f.AvgSentenceLength-*avg.AvgSentenceLength))
	if f.SentenceLengthStd != nil && avg.SentenceLengthStd != nil {
		stdDiff := math.Abs(*f.SentenceLengthStd - *avg.SentenceLengthStd)
		score -= math.Min(2, stdDiff*0.5)
	}
	return clamp(round(score, 2), 0, 10)
}

// FormalityMatch compares the post's formality with the community's
func FormalityMatch(f models.TextFeatures, avg models.CommunityAverages) float64 {
	if f.FormalityScore == nil || avg.FormalityLevel == nil {
		return NeutralScore
	}
	diff := math.Abs(*f.FormalityScore - *avg.FormalityLevel)
	return round(math.Max(0, 10-diff*2), 2)
}

// JargonPenalty counts distinct marketing terms and maps them to a penalty
func JargonPenalty(text string) (float64, []models.PatternMatch) {
	if text == "" {
		return 0, []models.PatternMatch{}
	}

	var phrases []string
	seen := make(map[string]bool)
	for _, re := range signals().jargon {
		for _, phrase := range re.FindAllString(text, -1) {
			key := strings.ToLower(phrase)
			if seen[key] {
				continue
			}
			seen[key] = true
			phrases = append(phrases, phrase)
		}
	}

	penalty, severity := jargonBucket(len(phrases))
	return round(penalty, 2), toMatches(phrases, JargonCategory, severity)
}

func jargonBucket(n int) (float64, models.Severity) {
	switch {
	case n == 0:
		return 0, models.SeverityNone
	case n == 1:
		return 3, models.SeverityLow
	case n == 2:
		return 5, models.SeverityMedium
	case n == 3:
		return 8, models.SeverityHigh
	default:
		return math.Min(10, 8+float64(n-3)*0.5), models.SeverityHigh
	}
}

// LinkPenalty counts URL occurrences and maps them to a penalty
func LinkPenalty(text string) (float64, []models.PatternMatch) {
	if text == "" {
		return 0, []models.PatternMatch{}
	}

	var links []string
	for _, re := range signals().urls {
		links = append(links, re.FindAllString(text, -1)...)
	}

	var (
		penalty  float64
		severity models.Severity
	)
	switch n := len(links); {
	case n == 0:
		penalty, severity = 0, models.SeverityNone
	case n == 1:
		penalty, severity = 3, models.SeverityLow
	case n == 2:
		penalty, severity = 6, models.SeverityMedium
	default:
		penalty, severity = 9, models.SeverityHigh
	}
	return penalty, toMatches(links, LinkCategory, severity)
}

func toMatches(phrases []string, category string, severity models.Severity) []models.PatternMatch {
	matches := make([]models.PatternMatch, 0, len(phrases))
	for _, p := range phrases {
		matches = append(matches, models.PatternMatch{
			Category:      category,
			MatchedPhrase: p,
			Severity:      severity,
			Source:        models.SourceSystem,
		})
	}
	return matches
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
