package patterns

import (
	"slices"
	"strings"
	"unicode/utf8"
)

const (
	// ShortPostLength is the length under which a whole post counts as low effort
	ShortPostLength = 50
	minRepeatLength = 10
	maxRepeatLength = 100
	minRepeats      = 3
)

// structuralDetector finds matches that cannot be expressed in RE2
type structuralDetector func(text string) []string

var structuralDetectors = map[string]structuralDetector{
	"short_post":      shortPost,
	"repeated_phrase": repeatedPhrase,
}

// shortPost matches the whole trimmed post when it is under ShortPostLength runes
func shortPost(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || utf8.RuneCountInString(trimmed) >= ShortPostLength {
		return nil
	}
	return []string{trimmed}
}

// repeatedPhrase finds a run of at least minRepeatLength runes repeated back
// to back minRepeats or more times on a single line. The shortest repeating
// unit at the leftmost position wins, and the match covers every repetition.
func repeatedPhrase(text string) []string {
	runes := []rune(text)
	n := len(runes)
	var found []string

	for i := 0; i+minRepeatLength*minRepeats <= n; {
		if slices.Contains(runes[i:i+minRepeatLength-1], '\n') {
			i++
			continue
		}
		matchEnd := -1
		for l := minRepeatLength; l <= maxRepeatLength && i+l*minRepeats <= n; l++ {
			if runes[i+l-1] == '\n' {
				break
			}
			if runes[i] != runes[i+l] || runes[i] != runes[i+2*l] {
				continue
			}
			unit := runes[i : i+l]
			if !slices.Equal(unit, runes[i+l:i+2*l]) || !slices.Equal(unit, runes[i+2*l:i+3*l]) {
				continue
			}
			end := i + 3*l
			for end+l <= n && slices.Equal(unit, runes[end:end+l]) {
				end += l
			}
			matchEnd = end
			break
		}
		if matchEnd < 0 {
			i++
			continue
		}
		found = append(found, string(runes[i:matchEnd]))
		i = matchEnd
	}
	return found
}
