package patterns

import (
	"errors"
	"log/slog"
	"math"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/zombar/communityanalyzer/internal/models"
)

const (
	// HighShare is the percentage of posts above which a pattern is high severity
	HighShare = 20.0
	// MediumShare is the percentage of posts from which a pattern is medium severity
	MediumShare = 10.0
)

var errEmptyPattern = errors.New("empty pattern")

// Detector scans texts against the taxonomy and any custom patterns.
// It is immutable after construction and safe for concurrent use.
type Detector struct {
	patterns   []*pattern
	categories []string
}

type detectorConfig struct {
	taxonomy *Taxonomy
	custom   []CustomPattern
	logger   *slog.Logger
}

// Option configures a Detector
type Option func(*detectorConfig)

// WithTaxonomy replaces the built-in taxonomy
func WithTaxonomy(t *Taxonomy) Option {
	return func(c *detectorConfig) {
		c.taxonomy = t
	}
}

// WithCustomPatterns adds user patterns; invalid expressions are skipped
func WithCustomPatterns(custom []CustomPattern) Option {
	return func(c *detectorConfig) {
		c.custom = append(c.custom, custom...)
	}
}

// WithLogger sets the logger used to report skipped patterns
func WithLogger(logger *slog.Logger) Option {
	return func(c *detectorConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewDetector creates a detector over the built-in taxonomy unless
// WithTaxonomy is given
func NewDetector(opts ...Option) *Detector {
	cfg := &detectorConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	d := &Detector{}
	if cfg.taxonomy == nil {
		loadDefault()
		d.patterns = slices.Clone(defaultCompiled)
		d.categories = defaultTaxonomy.CategoryNames()
	} else {
		compiled, err := cfg.taxonomy.compile()
		if err != nil {
			cfg.logger.Warn("invalid taxonomy, detector has no system patterns", "error", err)
		}
		d.patterns = compiled
		d.categories = cfg.taxonomy.CategoryNames()
	}

	known := make(map[string]bool, len(d.categories))
	for _, name := range d.categories {
		known[name] = true
	}
	for _, c := range cfg.custom {
		p, err := compileCustom(c)
		if err != nil {
			cfg.logger.Warn("skipping invalid custom pattern",
				"category", c.Category,
				"pattern", c.Expr,
				"error", err,
			)
			continue
		}
		if !known[p.category] {
			known[p.category] = true
			d.categories = append(d.categories, p.category)
		}
		d.patterns = append(d.patterns, p)
	}
	return d
}

// compileCustom compiles a user pattern as a case-insensitive expression
func compileCustom(c CustomPattern) (*pattern, error) {
	if strings.TrimSpace(c.Expr) == "" {
		return nil, errEmptyPattern
	}
	re, err := regexp.Compile("(?i)" + c.Expr)
	if err != nil {
		return nil, err
	}
	category := c.Category
	if category == "" {
		category = CustomCategory
	}
	return &pattern{
		category:    category,
		severity:    models.SeverityMedium,
		source:      models.SourceUserAdded,
		description: truncate(c.Expr, DescriptionLength),
		re:          re,
	}, nil
}

// Categories returns the category names known to the detector in scan order
func (d *Detector) Categories() []string {
	return slices.Clone(d.categories)
}

// SeverityForShare maps the percentage of posts matching a pattern to a severity
func SeverityForShare(percentage float64) models.Severity {
	switch {
	case percentage > HighShare:
		return models.SeverityHigh
	case percentage >= MediumShare:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// DetectCorpus summarizes pattern usage across a batch of posts. Category
// counts are distinct posts; pattern counts are posts with at least one match.
func (d *Detector) DetectCorpus(texts []string) models.CorpusPatternSummary {
	summary := models.CorpusPatternSummary{
		TotalPosts:          len(texts),
		ByCategory:          make(map[string]int),
		CategoryPercentages: make(map[string]float64),
		Patterns:            []models.DetectedPattern{},
	}
	if len(texts) == 0 {
		return summary
	}

	total := float64(len(texts))
	matchedPosts := make(map[string]map[int]struct{}, len(d.categories))
	for _, name := range d.categories {
		matchedPosts[name] = make(map[int]struct{})
	}

	for _, p := range d.patterns {
		count := 0
		for i, text := range texts {
			if p.matches(text) {
				count++
				matchedPosts[p.category][i] = struct{}{}
			}
		}
		if count == 0 {
			continue
		}
		percentage := float64(count) / total * 100
		summary.Patterns = append(summary.Patterns, models.DetectedPattern{
			Category:           p.category,
			PatternDescription: p.description,
			MatchCount:         count,
			Percentage:         round2(percentage),
			Severity:           SeverityForShare(percentage),
			Source:             p.source,
		})
	}

	for _, name := range d.categories {
		n := len(matchedPosts[name])
		summary.ByCategory[name] = n
		summary.CategoryPercentages[name] = round2(float64(n) / total * 100)
	}

	sort.SliceStable(summary.Patterns, func(i, j int) bool {
		a, b := summary.Patterns[i], summary.Patterns[j]
		if a.MatchCount != b.MatchCount {
			return a.MatchCount > b.MatchCount
		}
		return a.Category < b.Category
	})
	return summary
}

// DetectPost returns the phrases in text that match any pattern. Phrases are
// trimmed and deduplicated case-insensitively, keeping the first occurrence.
func (d *Detector) DetectPost(text string) []models.PatternMatch {
	matches := []models.PatternMatch{}
	if strings.TrimSpace(text) == "" {
		return matches
	}

	seen := make(map[string]bool)
	for _, p := range d.patterns {
		for _, phrase := range p.findAll(text) {
			phrase = strings.TrimSpace(phrase)
			if phrase == "" {
				continue
			}
			key := strings.ToLower(phrase)
			if seen[key] {
				continue
			}
			seen[key] = true
			matches = append(matches, models.PatternMatch{
				Category:      p.category,
				MatchedPhrase: phrase,
				Severity:      p.severity,
				Source:        p.source,
			})
		}
	}
	return matches
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
