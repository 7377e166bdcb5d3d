// Package features converts raw post text into linguistic feature records.
package features

import (
	"context"
	"runtime"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/zombar/communityanalyzer/internal/models"
)

const (
	// MinFormalityLength is the shortest trimmed text that gets a formality score
	MinFormalityLength = 20
	// ToneThreshold is the compound polarity at which a text stops being neutral
	ToneThreshold = 0.05
)

// Extractor computes TextFeatures. It holds only read-only reference data
// and is safe for concurrent use.
type Extractor struct {
	sentiment *SentimentAnalyzer
	stopWords map[string]bool
	workers   int
}

// Option configures an Extractor
type Option func(*Extractor)

// WithWorkers sets the number of goroutines used by ExtractAll
func WithWorkers(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.workers = n
		}
	}
}

// New creates a new Extractor
func New(opts ...Option) *Extractor {
	e := &Extractor{
		sentiment: NewSentimentAnalyzer(),
		stopWords: getStopWords(),
		workers:   runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ClassifyTone maps a compound polarity to a tone label
func ClassifyTone(compound float64) models.Tone {
	switch {
	case compound >= ToneThreshold:
		return models.TonePositive
	case compound <= -ToneThreshold:
		return models.ToneNegative
	default:
		return models.ToneNeutral
	}
}

// Extract computes the features of a single text. It never fails; features
// that cannot be computed are left nil.
func (e *Extractor) Extract(text string) models.TextFeatures {
	trimmed := strings.TrimSpace(text)
	features := models.TextFeatures{Tone: models.ToneNeutral}
	if trimmed == "" {
		return features
	}

	features.ToneCompound = e.sentiment.Compound(trimmed)
	features.Tone = ClassifyTone(features.ToneCompound)

	sentences := splitSentences(trimmed)
	features.NumSentences = len(sentences)

	var words []string
	if len(sentences) > 0 {
		lengths := make([]float64, len(sentences))
		for i, s := range sentences {
			lengths[i] = float64(len(s.tokens))
			for _, tok := range s.tokens {
				if isWord(tok) {
					words = append(words, tok)
				}
			}
		}
		mean := stat.Mean(lengths, nil)
		std := 0.0
		if len(lengths) > 1 {
			std = stat.StdDev(lengths, nil)
		}
		features.AvgSentenceLength = &mean
		features.SentenceLengthStd = &std
	}

	if utf8.RuneCountInString(trimmed) >= MinFormalityLength {
		features.FormalityScore = formality(words, len(sentences))
	}
	features.VocabularyComplexity = e.vocabularyComplexity(words)

	return features
}

// vocabularyComplexity is the share of distinct lemmas among alphabetic non-stop tokens
func (e *Extractor) vocabularyComplexity(words []string) *float64 {
	total := 0
	lemmas := make(map[string]struct{})
	for _, w := range words {
		if !isAlpha(w) {
			continue
		}
		folded := normalize(w)
		if e.stopWords[folded] {
			continue
		}
		total++
		lemmas[lemmatize(folded)] = struct{}{}
	}
	if total == 0 {
		return nil
	}
	ratio := float64(len(lemmas)) / float64(total)
	return &ratio
}

// ExtractAll computes features for every text, preserving input order.
// The only error returned is a context cancellation.
func (e *Extractor) ExtractAll(ctx context.Context, texts []string) ([]models.TextFeatures, error) {
	results := make([]models.TextFeatures, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, text := range texts {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.Extract(text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// the loop may have stopped early without any worker observing it
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
