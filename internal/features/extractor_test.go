package features

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombar/communityanalyzer/internal/models"
)

func TestClassifyTone(t *testing.T) {
	tests := []struct {
		name     string
		compound float64
		expected models.Tone
	}{
		{"slightly positive", 0.06, models.TonePositive},
		{"negative", -0.10, models.ToneNegative},
		{"zero", 0.0, models.ToneNeutral},
		{"positive boundary", 0.05, models.TonePositive},
		{"negative boundary", -0.05, models.ToneNegative},
		{"just under threshold", 0.049, models.ToneNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyTone(tt.compound))
		})
	}
}

func TestExtractEmptyText(t *testing.T) {
	e := New()

	for _, text := range []string{"", "   ", "\n\t\n"} {
		f := e.Extract(text)
		assert.Equal(t, models.ToneNeutral, f.Tone)
		assert.Equal(t, 0.0, f.ToneCompound)
		assert.Nil(t, f.FormalityScore)
		assert.Nil(t, f.AvgSentenceLength)
		assert.Nil(t, f.SentenceLengthStd)
		assert.Nil(t, f.VocabularyComplexity)
		assert.Equal(t, 0, f.NumSentences)
	}
}

func TestExtractShortTextHasNoFormality(t *testing.T) {
	e := New()

	tests := []string{
		"Too short",
		"Hi there, friend!!",
		"  nineteen chars!!  ",
		strings.Repeat("a", MinFormalityLength-1),
	}
	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			assert.Nil(t, e.Extract(text).FormalityScore)
		})
	}
}

func TestExtractFormality(t *testing.T) {
	e := New()

	f := e.Extract("The committee evaluated several alternative implementation strategies. Their recommendation emphasized sustainability considerations.")
	require.NotNil(t, f.FormalityScore)

	simple := e.Extract("I ran to the shop. It was shut. I went home.")
	require.NotNil(t, simple.FormalityScore)

	assert.Greater(t, *f.FormalityScore, *simple.FormalityScore)
}

func TestExtractSentenceRhythm(t *testing.T) {
	e := New()

	f := e.Extract("I love this. It works well.")
	assert.Equal(t, 2, f.NumSentences)
	require.NotNil(t, f.AvgSentenceLength)
	require.NotNil(t, f.SentenceLengthStd)
	assert.Equal(t, 4.0, *f.AvgSentenceLength)
	assert.Equal(t, 0.0, *f.SentenceLengthStd)

	single := e.Extract("Just one sentence here")
	assert.Equal(t, 1, single.NumSentences)
	require.NotNil(t, single.SentenceLengthStd)
	assert.Equal(t, 0.0, *single.SentenceLengthStd)
	assert.Equal(t, 4.0, *single.AvgSentenceLength)

	uneven := e.Extract("Short one. This sentence is quite a lot longer than the first.")
	require.NotNil(t, uneven.SentenceLengthStd)
	assert.Greater(t, *uneven.SentenceLengthStd, 0.0)
}

func TestExtractVocabularyComplexity(t *testing.T) {
	e := New()

	f := e.Extract("Cats cats cats dogs")
	require.NotNil(t, f.VocabularyComplexity)
	assert.InDelta(t, 0.5, *f.VocabularyComplexity, 1e-9)

	assert.Nil(t, e.Extract("the and of").VocabularyComplexity)
	assert.Nil(t, e.Extract("123 456 !!!").VocabularyComplexity)
}

func TestExtractTone(t *testing.T) {
	e := New()

	tests := []struct {
		name     string
		text     string
		expected models.Tone
	}{
		{"positive", "This is great, I love how helpful everyone is.", models.TonePositive},
		{"negative", "This is terrible and I hate it.", models.ToneNegative},
		{"negated", "This is not great.", models.ToneNegative},
		{"neutral", "The meeting is on Tuesday at the office.", models.ToneNeutral},
		{"thrilled", "I'm thrilled with the results, really impressed.", models.TonePositive},
		{"miserable", "I feel miserable and hopeless about my job search.", models.ToneNegative},
		{"interjection", "Ugh, what a disaster. Everything crashed again.", models.ToneNegative},
		{"caps emphasis", "This is GREAT!!!", models.TonePositive},
		{"contrast", "The docs were good, but the install was awful.", models.ToneNegative},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := e.Extract(tt.text)
			assert.Equal(t, tt.expected, f.Tone)
			assert.GreaterOrEqual(t, f.ToneCompound, -1.0)
			assert.LessOrEqual(t, f.ToneCompound, 1.0)
		})
	}
}

func TestExtractIsIdempotent(t *testing.T) {
	e := New()
	text := "Honestly I struggled with this for weeks. Has anyone else found a fix? It's frustrating!"

	assert.Equal(t, e.Extract(text), e.Extract(text))
}

func TestExtractAllPreservesOrder(t *testing.T) {
	e := New(WithWorkers(3))
	texts := []string{
		"First post about something great.",
		"",
		"Second post. It has two sentences.",
		"Short",
		"I really hate when this happens, it is awful.",
	}

	results, err := e.ExtractAll(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, results, len(texts))
	for i, text := range texts {
		assert.Equal(t, e.Extract(text), results[i], "index %d", i)
	}
}

func TestExtractAllCancelled(t *testing.T) {
	e := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.ExtractAll(ctx, []string{"one", "two"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCountSyllablesInWord(t *testing.T) {
	tests := []struct {
		word     string
		expected int
	}{
		{"hello", 2},
		{"the", 1},
		{"beautiful", 3},
		{"cake", 1},
		{"rhythm", 1},
		{"", 0},
	}

	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			assert.Equal(t, tt.expected, countSyllablesInWord(tt.word))
		})
	}
}

func TestLemmatize(t *testing.T) {
	tests := []struct {
		word     string
		expected string
	}{
		{"cats", "cat"},
		{"running", "run"},
		{"stopped", "stop"},
		{"studies", "study"},
		{"classes", "class"},
		{"walked", "walk"},
		{"went", "go"},
		{"bus", "bus"},
		{"children", "child"},
		{"mice", "mouse"},
		{"xyzzyplugh", "xyzzyplugh"},
	}

	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			assert.Equal(t, tt.expected, lemmatize(tt.word))
		})
	}
}

func TestSplitSentences(t *testing.T) {
	sentences := splitSentences("First line here!\n\nSecond para without stop\nVisit https://example.com now. Done")
	require.Len(t, sentences, 3)
	assert.Equal(t, "First line here!", sentences[0].text)
	assert.Equal(t, "Done", sentences[2].text)
}

func TestSplitSentencesKeepsAbbreviations(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{"title", "I asked Dr. Smith about it. She agreed.", []string{"I asked Dr. Smith about it.", "She agreed."}},
		{"question and exclamation", "Does this work? Yes! Great", []string{"Does this work?", "Yes!", "Great"}},
		{"blank line without punctuation", "My title\n\nThe body follows", []string{"My title", "The body follows"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, s := range splitSentences(tt.text) {
				got = append(got, s.text)
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}
