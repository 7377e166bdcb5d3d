package validator

import (
	"strings"
	"sync"
	"unicode"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

// DefaultJargonTerms are the marketing terms drafts are scanned for
var DefaultJargonTerms = []string{
	"synergy", "leverage", "paradigm", "disrupt", "disruptive", "disruption",
	"innovate", "innovative", "game-changer", "thought leader", "best-in-class",
	"reach out", "circle back", "touch base", "revolutionary", "cutting-edge",
	"scalable", "roi", "growth hack", "growth hacking", "streamline", "optimize",
	"robust", "seamless", "world-class", "next-level",
}

// JargonScanner finds whole-word jargon terms in a single pass over the text.
// It is safe for concurrent use.
type JargonScanner struct {
	terms []string

	mu      sync.Mutex // Matcher keeps per-call state
	matcher *ahocorasick.Matcher
}

// NewJargonScanner builds a scanner for the given terms. Matching ignores case
// and treats punctuation as a word break.
func NewJargonScanner(terms []string) *JargonScanner {
	s := &JargonScanner{}
	var keys []string
	seen := make(map[string]bool)
	for _, term := range terms {
		key := normalizeText(term)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		s.terms = append(s.terms, term)
		keys = append(keys, " "+key+" ")
	}
	if len(keys) > 0 {
		s.matcher = ahocorasick.NewStringMatcher(keys)
	}
	return s
}

// Scan returns the terms found in text, in term list order
func (s *JargonScanner) Scan(text string) []string {
	found := []string{}
	if s.matcher == nil {
		return found
	}
	s.mu.Lock()
	hits := s.matcher.Match([]byte(" " + normalizeText(text) + " "))
	s.mu.Unlock()

	matched := make(map[int]bool, len(hits))
	for _, i := range hits {
		matched[i] = true
	}
	for i, term := range s.terms {
		if matched[i] {
			found = append(found, term)
		}
	}
	return found
}

var (
	defaultScanner     *JargonScanner
	defaultScannerOnce sync.Once
)

// ScanJargon scans text for DefaultJargonTerms
func ScanJargon(text string) []string {
	defaultScannerOnce.Do(func() {
		defaultScanner = NewJargonScanner(DefaultJargonTerms)
	})
	return defaultScanner.Scan(text)
}

// normalizeText lowercases text, turns every non-alphanumeric rune into a
// word break and collapses whitespace
func normalizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
