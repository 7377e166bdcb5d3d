package features

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"gonum.org/v1/gonum/stat"

	"github.com/zombar/communityanalyzer/internal/models"
)

const (
	// TopStyleTerms is the number of lemmas kept in the vocabulary fingerprint
	TopStyleTerms = 30
	// TopOpenings is the number of opening patterns kept
	TopOpenings = 10
	// DefaultTopTexts is how many leading texts stand in for top posts when none are given
	DefaultTopTexts = 20
)

var (
	emojiPattern         = regexp.MustCompile(`[\x{1F600}-\x{1F64F}\x{1F300}-\x{1F5FF}\x{1F680}-\x{1F6FF}\x{1F1E0}-\x{1F1FF}\x{2702}-\x{27B0}\x{FE00}-\x{FE0F}\x{1F900}-\x{1F9FF}]+`)
	tldrPattern          = regexp.MustCompile(`(?i)tl;?dr`)
	editPattern          = regexp.MustCompile(`(?m)^(?:EDIT|UPDATE|ETA)\s*:`)
	plainLinkPattern     = regexp.MustCompile(`https?://\S+`)
	codePattern          = regexp.MustCompile("```|    \\S")
	parentheticalPattern = regexp.MustCompile(`\([^)]{5,}\)`)
	selfCorrectPattern   = regexp.MustCompile(`(?i)\b(?:I mean|actually|wait|edit:|update:|sorry,? I meant)\b`)
	dashPattern          = regexp.MustCompile(`\s[-\x{2013}\x{2014}]{1,2}\s`)
)

// counter counts keys and remembers first-seen order for ties
type counter struct {
	counts map[string]int
	order  []string
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(key string, n int) {
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
	}
	c.counts[key] += n
}

// mostCommon returns up to n keys by descending count
func (c *counter) mostCommon(n int) []models.TermCount {
	keys := make([]string, len(c.order))
	copy(keys, c.order)
	sort.SliceStable(keys, func(i, j int) bool {
		return c.counts[keys[i]] > c.counts[keys[j]]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	out := make([]models.TermCount, len(keys))
	for i, k := range keys {
		out[i] = models.TermCount{Term: k, Count: c.counts[k]}
	}
	return out
}

// ExtractStyle builds the style fingerprint of a community. topTexts are the
// best performing posts; when empty the first DefaultTopTexts texts are used.
func (e *Extractor) ExtractStyle(texts, topTexts []string) models.StyleFingerprint {
	style := models.StyleFingerprint{
		Vocabulary: models.VocabularyStyle{TopTerms: []models.TermCount{}},
		Openings:   []models.OpeningPattern{},
	}
	if len(texts) == 0 {
		return style
	}
	if len(topTexts) == 0 {
		topTexts = texts[:min(len(texts), DefaultTopTexts)]
	}

	docs := make([][]sentence, len(texts))
	for i, t := range texts {
		docs[i] = splitSentences(t)
	}

	style.Vocabulary = e.vocabularyStyle(docs)
	style.Structure = structureStyle(docs, texts)
	style.Punctuation = punctuationStyle(texts)
	style.Formatting = formattingStyle(texts)
	style.Openings = openingPatterns(topTexts)
	style.Imperfections = imperfectionStyle(texts)
	return style
}

func (e *Extractor) vocabularyStyle(docs [][]sentence) models.VocabularyStyle {
	lemmas := newCounter()
	var lengths []float64
	alpha, stops := 0, 0

	for _, doc := range docs {
		for _, s := range doc {
			for _, tok := range s.tokens {
				folded := normalize(tok)
				stop := e.stopWords[folded]
				if stop {
					stops++
				}
				if !isAlpha(tok) {
					continue
				}
				alpha++
				n := utf8.RuneCountInString(tok)
				if !stop && n > 2 {
					lemmas.add(lemmatize(folded), 1)
					lengths = append(lengths, float64(n))
				}
			}
		}
	}

	v := models.VocabularyStyle{TopTerms: lemmas.mostCommon(TopStyleTerms)}
	if len(lengths) > 0 {
		v.AvgWordLength = roundTo(stat.Mean(lengths, nil), 1)
	}
	if alpha > 0 {
		v.StopWordRatio = roundTo(float64(stops)/float64(alpha), 3)
	}
	return v
}

func structureStyle(docs [][]sentence, texts []string) models.StructureStyle {
	var paragraphCounts, paragraphLengths, wordCounts []float64
	questions, total := 0, 0

	for i, text := range texts {
		paragraphs := 0
		for _, p := range strings.Split(text, "\n\n") {
			if strings.TrimSpace(p) != "" {
				paragraphs++
			}
		}
		paragraphCounts = append(paragraphCounts, float64(paragraphs))

		words := 0
		for _, s := range docs[i] {
			for _, tok := range s.tokens {
				if isAlpha(tok) {
					words++
				}
			}
			if strings.HasSuffix(s.text, "?") {
				questions++
			}
		}
		wordCounts = append(wordCounts, float64(words))
		total += len(docs[i])

		if paragraphs > 0 {
			paragraphLengths = append(paragraphLengths, float64(len(docs[i]))/float64(paragraphs))
		}
	}

	s := models.StructureStyle{
		AvgParagraphCount: roundTo(stat.Mean(paragraphCounts, nil), 1),
		AvgPostWordCount:  math.Round(stat.Mean(wordCounts, nil)),
	}
	if len(paragraphLengths) > 0 {
		s.AvgParagraphLengthSentences = roundTo(stat.Mean(paragraphLengths, nil), 1)
	}
	if len(wordCounts) > 1 {
		s.PostWordCountStd = math.Round(stat.StdDev(wordCounts, nil))
	}
	if total > 0 {
		s.QuestionSentenceRatio = roundTo(float64(questions)/float64(total), 3)
	}
	return s
}

func punctuationStyle(texts []string) models.PunctuationStyle {
	var excl, quest, ellipsis, parens, emoji int
	for _, t := range texts {
		excl += strings.Count(t, "!")
		quest += strings.Count(t, "?")
		ellipsis += strings.Count(t, "...") + strings.Count(t, "…")
		parens += strings.Count(t, "(")
		emoji += len(emojiPattern.FindAllStringIndex(t, -1))
	}
	return models.PunctuationStyle{
		ExclamationPerPost:   perPost(excl, len(texts)),
		QuestionMarkPerPost:  perPost(quest, len(texts)),
		EllipsisPerPost:      perPost(ellipsis, len(texts)),
		EmojiPerPost:         perPost(emoji, len(texts)),
		ParentheticalPerPost: perPost(parens, len(texts)),
	}
}

func formattingStyle(texts []string) models.FormattingStyle {
	share := func(re *regexp.Regexp) float64 {
		n := 0
		for _, t := range texts {
			if re.MatchString(t) {
				n++
			}
		}
		return roundTo(float64(n)/float64(len(texts)), 3)
	}
	breaks := 0
	for _, t := range texts {
		breaks += strings.Count(t, "\n")
	}
	return models.FormattingStyle{
		HasTLDRRatio:       share(tldrPattern),
		HasEditRatio:       share(editPattern),
		HasLinksRatio:      share(plainLinkPattern),
		HasCodeBlocksRatio: share(codePattern),
		AvgLineBreaks:      roundTo(float64(breaks)/float64(len(texts)), 1),
	}
}

// openingPatterns groups top posts by their first two words
func openingPatterns(topTexts []string) []models.OpeningPattern {
	grouped := newCounter()
	for _, t := range topTexts {
		words := strings.Fields(t)
		if len(words) < 2 {
			continue
		}
		grouped.add(words[0]+" "+words[1]+" ...", 1)
	}

	top := grouped.mostCommon(TopOpenings)
	out := make([]models.OpeningPattern, len(top))
	for i, tc := range top {
		out[i] = models.OpeningPattern{Pattern: tc.Term, Count: tc.Count}
	}
	return out
}

func imperfectionStyle(texts []string) models.ImperfectionStyle {
	var parens, corrections, dashes int
	for _, t := range texts {
		parens += len(parentheticalPattern.FindAllStringIndex(t, -1))
		corrections += len(selfCorrectPattern.FindAllStringIndex(t, -1))
		dashes += len(dashPattern.FindAllStringIndex(t, -1))
	}
	return models.ImperfectionStyle{
		ParentheticalFrequency: perPost(parens, len(texts)),
		SelfCorrectionRate:     perPost(corrections, len(texts)),
		DashInterruptionRate:   perPost(dashes, len(texts)),
	}
}

func perPost(count, posts int) float64 {
	if posts == 0 {
		return 0
	}
	return roundTo(float64(count)/float64(posts), 2)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
