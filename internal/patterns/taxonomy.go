// Package patterns detects forbidden language patterns in community posts.
package patterns

import (
	_ "embed"
	"fmt"
	"regexp"
	"sync"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/zombar/communityanalyzer/internal/models"
)

// DescriptionLength is the maximum length of a pattern description in summaries
const DescriptionLength = 50

//go:embed taxonomy.yaml
var defaultTaxonomyYAML []byte

// Taxonomy is the versioned table of pattern categories
type Taxonomy struct {
	Version    int        `yaml:"version" json:"version"`
	Categories []Category `yaml:"categories" json:"categories"`
}

// Category groups patterns that share a per-post severity
type Category struct {
	Name     string          `yaml:"name" json:"name"`
	Severity models.Severity `yaml:"severity" json:"severity"`
	Patterns []PatternDef    `yaml:"patterns" json:"patterns"`
}

// PatternDef is either a regular expression or a named structural detector
type PatternDef struct {
	Expr          string `yaml:"expr,omitempty" json:"expr,omitempty"`
	Detector      string `yaml:"detector,omitempty" json:"detector,omitempty"`
	Description   string `yaml:"description,omitempty" json:"description,omitempty"`
	CaseSensitive bool   `yaml:"case_sensitive,omitempty" json:"case_sensitive,omitempty"`
}

// pattern is a compiled, immutable taxonomy entry
type pattern struct {
	category    string
	severity    models.Severity
	source      models.PatternSource
	description string
	re          *regexp.Regexp
	structural  structuralDetector
}

// findAll returns every matched phrase in text
func (p *pattern) findAll(text string) []string {
	if p.structural != nil {
		return p.structural(text)
	}
	return p.re.FindAllString(text, -1)
}

// matches reports whether text contains at least one match
func (p *pattern) matches(text string) bool {
	if p.structural != nil {
		return len(p.structural(text)) > 0
	}
	return p.re.MatchString(text)
}

var (
	defaultOnce     sync.Once
	defaultTaxonomy *Taxonomy
	defaultCompiled []*pattern
	defaultErr      error
)

// DefaultTaxonomy returns the built-in taxonomy. It is parsed once and must
// not be modified by callers.
func DefaultTaxonomy() *Taxonomy {
	loadDefault()
	return defaultTaxonomy
}

func loadDefault() {
	defaultOnce.Do(func() {
		defaultTaxonomy, defaultErr = LoadTaxonomy(defaultTaxonomyYAML)
		if defaultErr == nil {
			defaultCompiled, defaultErr = defaultTaxonomy.compile()
		}
		if defaultErr != nil {
			panic(fmt.Sprintf("invalid built-in pattern taxonomy: %v", defaultErr))
		}
	})
}

// LoadTaxonomy parses and validates a YAML taxonomy
func LoadTaxonomy(data []byte) (*Taxonomy, error) {
	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse taxonomy: %w", err)
	}
	if len(t.Categories) == 0 {
		return nil, fmt.Errorf("taxonomy has no categories")
	}
	if _, err := t.compile(); err != nil {
		return nil, err
	}
	return &t, nil
}

// compile turns every definition into a matcher, in taxonomy order
func (t *Taxonomy) compile() ([]*pattern, error) {
	var compiled []*pattern
	seen := make(map[string]bool)
	for _, c := range t.Categories {
		if c.Name == "" {
			return nil, fmt.Errorf("taxonomy category without a name")
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("duplicate taxonomy category %q", c.Name)
		}
		seen[c.Name] = true

		switch c.Severity {
		case models.SeverityLow, models.SeverityMedium, models.SeverityHigh:
		default:
			return nil, fmt.Errorf("category %q has invalid severity %q", c.Name, c.Severity)
		}

		for _, def := range c.Patterns {
			p := &pattern{
				category:    c.Name,
				severity:    c.Severity,
				source:      models.SourceSystem,
				description: def.Description,
			}
			switch {
			case def.Detector != "":
				detector, ok := structuralDetectors[def.Detector]
				if !ok {
					return nil, fmt.Errorf("category %q references unknown detector %q", c.Name, def.Detector)
				}
				p.structural = detector
				if p.description == "" {
					p.description = def.Detector
				}
			case def.Expr != "":
				expr := def.Expr
				if !def.CaseSensitive {
					expr = "(?i)" + expr
				}
				re, err := regexp.Compile(expr)
				if err != nil {
					return nil, fmt.Errorf("failed to compile pattern %q in category %q: %w", def.Expr, c.Name, err)
				}
				p.re = re
				if p.description == "" {
					p.description = def.Expr
				}
			default:
				return nil, fmt.Errorf("category %q has a pattern with neither expr nor detector", c.Name)
			}
			p.description = truncate(p.description, DescriptionLength)
			compiled = append(compiled, p)
		}
	}
	return compiled, nil
}

// CategoryNames returns the category names in taxonomy order
func (t *Taxonomy) CategoryNames() []string {
	names := make([]string, len(t.Categories))
	for i, c := range t.Categories {
		names[i] = c.Name
	}
	return names
}

// truncate cuts s to at most n runes
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
