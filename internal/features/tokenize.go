package features

import (
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/aaaton/golem/v4"
	"github.com/aaaton/golem/v4/dicts/en"
	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	"golang.org/x/text/cases"
)

var (
	// word tokens keep inner apostrophes; every other non-space rune is its own token
	tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}]+)*|[^\p{L}\p{N}\s]`)
	// a blank line always ends a sentence
	paragraphBreak = regexp.MustCompile(`\n\s*\n`)
	// fallback boundary when the punkt model cannot be loaded
	sentenceBoundary = regexp.MustCompile(`[.!?]+["')\]]*(?:\s+|$)`)
)

var (
	punktOnce sync.Once
	punkt     *sentences.DefaultSentenceTokenizer

	lemmaOnce  sync.Once
	lemmatizer *golem.Lemmatizer
)

// sentenceTokenizer returns the shared English punkt tokenizer, or nil if its
// training data failed to load
func sentenceTokenizer() *sentences.DefaultSentenceTokenizer {
	punktOnce.Do(func() {
		t, err := english.NewSentenceTokenizer(nil)
		if err != nil {
			slog.Warn("sentence tokenizer unavailable, using punctuation boundaries", "error", err)
			return
		}
		punkt = t
	})
	return punkt
}

// sharedLemmatizer returns the shared English lemmatizer, or nil if its
// dictionary failed to load
func sharedLemmatizer() *golem.Lemmatizer {
	lemmaOnce.Do(func() {
		l, err := golem.New(en.New())
		if err != nil {
			slog.Warn("lemmatizer unavailable, words are their own lemma", "error", err)
			return
		}
		lemmatizer = l
	})
	return lemmatizer
}

// sentence is one sentence of a text with its tokens
type sentence struct {
	text   string
	tokens []string
}

// splitSentences splits text into sentences, dropping segments without tokens.
// Blank lines separate paragraphs; each paragraph is split by the punkt model,
// which keeps abbreviations and inline URLs inside their sentence.
func splitSentences(text string) []sentence {
	var out []sentence
	add := func(segment string) {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			return
		}
		tokens := tokenize(segment)
		if len(tokens) == 0 {
			return
		}
		out = append(out, sentence{text: segment, tokens: tokens})
	}

	tokenizer := sentenceTokenizer()
	for _, para := range paragraphBreak.Split(text, -1) {
		if strings.TrimSpace(para) == "" {
			continue
		}
		if tokenizer == nil {
			start := 0
			for _, loc := range sentenceBoundary.FindAllStringIndex(para, -1) {
				add(para[start:loc[1]])
				start = loc[1]
			}
			add(para[start:])
			continue
		}
		for _, s := range tokenizer.Tokenize(para) {
			add(s.Text)
		}
	}
	return out
}

// tokenize splits text into word and punctuation tokens
func tokenize(text string) []string {
	return tokenPattern.FindAllString(text, -1)
}

// isWord reports whether a token contains a letter or digit
func isWord(token string) bool {
	for _, r := range token {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return true
		}
	}
	return false
}

// isAlpha reports whether a token is made of letters only
func isAlpha(token string) bool {
	if token == "" {
		return false
	}
	for _, r := range token {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// normalize case-folds a token. A new caser is used per call because
// cases.Caser is not safe for concurrent use.
func normalize(token string) string {
	return cases.Fold().String(token)
}

// lemmatize returns the dictionary base form of a folded word, or the word
// itself when it is not in the dictionary
func lemmatize(word string) string {
	l := sharedLemmatizer()
	if l == nil {
		return word
	}
	return l.LemmaLower(word)
}
