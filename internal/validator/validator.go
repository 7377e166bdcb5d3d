// Package validator checks drafted posts against a community's rules
// before they are published.
package validator

import (
	"regexp"
	"strings"

	"github.com/zombar/communityanalyzer/internal/models"
	"github.com/zombar/communityanalyzer/internal/patterns"
)

// MaxAvgSentenceLength is the highest acceptable average words per sentence
const MaxAvgSentenceLength = 25.0

var (
	urlPattern       = regexp.MustCompile(`http[s]?://(?:[a-zA-Z]|[0-9]|[$-_@.&+]|[!*\(\),]|(?:%[0-9a-fA-F][0-9a-fA-F]))+`)
	sentenceSplitter = regexp.MustCompile(`[.!?]+`)
)

// ValidateDraft checks a draft against forbidden patterns and the built-in
// authenticity checks. Forbidden entries use the "[CAT:name] regex" form;
// invalid expressions are reported in SkippedPatterns and otherwise ignored.
// A draft passes when no forbidden pattern matches.
func ValidateDraft(draft string, forbidden []string) models.DraftValidation {
	result := models.DraftValidation{
		Violations: []models.Violation{},
	}

	for _, entry := range forbidden {
		custom := patterns.ParseCustomPattern(entry)
		if strings.TrimSpace(custom.Expr) == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + custom.Expr)
		if err != nil {
			result.SkippedPatterns = append(result.SkippedPatterns, custom.Expr)
			continue
		}
		result.ForbiddenChecked++
		for _, m := range re.FindAllString(draft, -1) {
			result.Violations = append(result.Violations, models.Violation{
				Pattern:     custom.Expr,
				Category:    custom.Category,
				MatchedText: m,
			})
		}
	}

	result.AITells = DetectAITells(draft)
	result.JargonTerms = ScanJargon(draft)
	result.AvgSentenceLength, result.SentenceLengthOK = CheckSentenceLength(draft, MaxAvgSentenceLength)
	result.LinkDensity = LinkDensity(draft)
	result.Passed = len(result.Violations) == 0
	return result
}

// LinkDensity is the number of URLs per blank-line separated paragraph
func LinkDensity(text string) float64 {
	paragraphs := 0
	for _, p := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(p) != "" {
			paragraphs++
		}
	}
	if paragraphs == 0 {
		return 0
	}
	urls := len(urlPattern.FindAllStringIndex(text, -1))
	return float64(urls) / float64(paragraphs)
}

// CheckSentenceLength returns the average words per sentence and whether it
// stays within maxAvg. Text without sentences is within the limit.
func CheckSentenceLength(text string, maxAvg float64) (float64, bool) {
	words, sentences := 0, 0
	for _, s := range sentenceSplitter.Split(text, -1) {
		fields := strings.Fields(s)
		if len(fields) == 0 {
			continue
		}
		sentences++
		words += len(fields)
	}
	if sentences == 0 {
		return 0, true
	}
	avg := float64(words) / float64(sentences)
	return avg, avg <= maxAvg
}
