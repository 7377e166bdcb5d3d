package features

import (
	"math"
	"strings"
)

// fleschKincaidGrade returns the Flesch-Kincaid grade level
func fleschKincaidGrade(words, sentences, syllables int) (float64, bool) {
	if words == 0 || sentences == 0 {
		return 0, false
	}
	grade := 0.39*float64(words)/float64(sentences) + 11.8*float64(syllables)/float64(words) - 15.59
	return grade, isFinite(grade)
}

// gunningFog returns the Gunning Fog index
func gunningFog(words, sentences, complexWords int) (float64, bool) {
	if words == 0 || sentences == 0 {
		return 0, false
	}
	fog := 0.4 * (float64(words)/float64(sentences) + 100*float64(complexWords)/float64(words))
	return fog, isFinite(fog)
}

// formality averages both grade estimators; nil when either is degenerate
func formality(words []string, sentences int) *float64 {
	syllables := 0
	complexWords := 0
	for _, w := range words {
		n := countSyllablesInWord(w)
		syllables += n
		if n >= 3 {
			complexWords++
		}
	}

	fk, ok := fleschKincaidGrade(len(words), sentences, syllables)
	if !ok {
		return nil
	}
	fog, ok := gunningFog(len(words), sentences, complexWords)
	if !ok {
		return nil
	}
	score := (fk + fog) / 2
	return &score
}

// countSyllablesInWord counts syllables in a single word
func countSyllablesInWord(word string) int {
	word = strings.ToLower(word)
	if len(word) == 0 {
		return 0
	}

	count := 0
	vowels := "aeiouy"
	prevWasVowel := false

	for _, char := range word {
		isVowel := strings.ContainsRune(vowels, char)
		if isVowel && !prevWasVowel {
			count++
		}
		prevWasVowel = isVowel
	}

	// Adjust for silent e
	if strings.HasSuffix(word, "e") && count > 1 {
		count--
	}

	if count == 0 {
		count = 1
	}

	return count
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
