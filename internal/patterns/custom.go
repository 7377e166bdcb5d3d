package patterns

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// CustomCategory is the category of a user pattern without a category prefix
const CustomCategory = "Custom"

// CustomPattern is a user-supplied forbidden pattern
type CustomPattern struct {
	Category string `json:"category" yaml:"category"`
	Expr     string `json:"pattern" yaml:"pattern"`
}

// ParseCustomPattern decodes the "[CAT:name]expr" storage form. Spaces after
// the prefix are dropped. Patterns without a prefix belong to CustomCategory.
func ParseCustomPattern(s string) CustomPattern {
	if strings.HasPrefix(s, "[CAT:") {
		if end := strings.Index(s, "]"); end >= 0 {
			category := strings.TrimSpace(s[len("[CAT:"):end])
			if category == "" {
				category = CustomCategory
			}
			return CustomPattern{Category: category, Expr: strings.TrimSpace(s[end+1:])}
		}
	}
	return CustomPattern{Category: CustomCategory, Expr: s}
}

// Encode returns the "[CAT:name]expr" storage form
func (c CustomPattern) Encode() string {
	category := c.Category
	if category == "" {
		category = CustomCategory
	}
	return "[CAT:" + category + "]" + c.Expr
}

// LoadCustomPatterns reads a YAML list of custom patterns. Entries are either
// "[CAT:name]expr" strings or {category, pattern} mappings. Empty
// expressions are dropped.
func LoadCustomPatterns(data []byte) ([]CustomPattern, error) {
	var nodes []yaml.Node
	if err := yaml.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("failed to parse custom patterns: %w", err)
	}

	out := make([]CustomPattern, 0, len(nodes))
	for i := range nodes {
		var c CustomPattern
		switch nodes[i].Kind {
		case yaml.ScalarNode:
			c = ParseCustomPattern(nodes[i].Value)
		case yaml.MappingNode:
			if err := nodes[i].Decode(&c); err != nil {
				return nil, fmt.Errorf("failed to decode custom pattern %d: %w", i, err)
			}
			if c.Category == "" {
				c.Category = CustomCategory
			}
		default:
			return nil, fmt.Errorf("custom pattern %d: expected string or mapping", i)
		}
		if strings.TrimSpace(c.Expr) != "" {
			out = append(out, c)
		}
	}
	return out, nil
}
