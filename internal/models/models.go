package models

import (
	"strings"
	"time"
)

// Tone is the dominant sentiment label of a text
type Tone string

const (
	TonePositive Tone = "positive"
	ToneNegative Tone = "negative"
	ToneNeutral  Tone = "neutral"
)

// Severity ranks how strongly a pattern is penalized
type Severity string

const (
	SeverityNone   Severity = "none"
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// PatternSource tells whether a pattern is built in or supplied by a user
type PatternSource string

const (
	SourceSystem    PatternSource = "system"
	SourceUserAdded PatternSource = "user-added"
)

// Post is a raw community post as ingested
type Post struct {
	ID           string    `json:"id"`
	CampaignID   string    `json:"campaign_id"`
	Subreddit    string    `json:"subreddit"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	CommentCount *int      `json:"comment_count"`
	Upvotes      int       `json:"upvotes"`
	Archetype    string    `json:"archetype,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Text returns the analysed raw text of the post (title and body)
func (p Post) Text() string {
	title := strings.TrimSpace(p.Title)
	body := strings.TrimSpace(p.Body)
	switch {
	case title == "":
		return body
	case body == "":
		return title
	default:
		return title + "\n\n" + body
	}
}

// TextFeatures holds the per-post linguistic features.
// Nil pointers mean the feature could not be computed.
type TextFeatures struct {
	FormalityScore       *float64 `json:"formality_score"`
	Tone                 Tone     `json:"tone"`
	ToneCompound         float64  `json:"tone_compound"`
	AvgSentenceLength    *float64 `json:"avg_sentence_length"`
	SentenceLengthStd    *float64 `json:"sentence_length_std"`
	VocabularyComplexity *float64 `json:"vocabulary_complexity"`
	NumSentences         int      `json:"num_sentences"`
}

// PatternMatch is a single phrase matched in a post
type PatternMatch struct {
	Category      string        `json:"category"`
	MatchedPhrase string        `json:"matched_phrase"`
	Severity      Severity      `json:"severity"`
	Source        PatternSource `json:"source"`
}

// DetectedPattern is a corpus-level summary entry for one pattern
type DetectedPattern struct {
	Category           string        `json:"category"`
	PatternDescription string        `json:"pattern_description"`
	MatchCount         int           `json:"match_count"`
	Percentage         float64       `json:"percentage"`
	Severity           Severity      `json:"severity"`
	Source             PatternSource `json:"source"`
}

// CorpusPatternSummary aggregates pattern matches across a batch of posts
type CorpusPatternSummary struct {
	TotalPosts          int                `json:"total_posts"`
	ByCategory          map[string]int     `json:"by_category"`
	CategoryPercentages map[string]float64 `json:"category_percentages"`
	Patterns            []DetectedPattern  `json:"detected_patterns"`
}

// PostScore holds the behavioral sub-scores and total of one post
type PostScore struct {
	VulnerabilityWeight    float64        `json:"vulnerability_weight"`
	RhythmAdherence        float64        `json:"rhythm_adherence"`
	FormalityMatch         float64        `json:"formality_match"`
	MarketingJargonPenalty float64        `json:"marketing_jargon_penalty"`
	LinkDensityPenalty     float64        `json:"link_density_penalty"`
	TotalScore             float64        `json:"total_score"`
	PenaltyPhrases         []PatternMatch `json:"penalty_phrases"`
}

// CommunityAverages are the baseline values posts are scored against
type CommunityAverages struct {
	AvgSentenceLength *float64 `json:"avg_sentence_length"`
	SentenceLengthStd *float64 `json:"sentence_length_std"`
	FormalityLevel    *float64 `json:"formality_level"`
}

// ScoredPost pairs a post's text with its features and score
type ScoredPost struct {
	PostID       string       `json:"post_id,omitempty"`
	Text         string       `json:"raw_text"`
	Features     TextFeatures `json:"features"`
	Score        PostScore    `json:"score"`
	CommentCount *int         `json:"comment_count"`
	Archetype    string       `json:"archetype,omitempty"`
}

// CommunityProfile is the aggregated behavioral fingerprint of a subreddit
type CommunityProfile struct {
	ID                    string               `json:"id"`
	CampaignID            string               `json:"campaign_id"`
	Subreddit             string               `json:"subreddit"`
	ISCScore              float64              `json:"isc_score"`
	ISCTier               string               `json:"isc_tier"`
	DominantTone          Tone                 `json:"dominant_tone"`
	FormalityLevel        *float64             `json:"formality_level"`
	AvgSentenceLength     *float64             `json:"avg_sentence_length"`
	SentenceLengthStd     *float64             `json:"sentence_length_std"`
	TopSuccessHooks       []string             `json:"top_success_hooks"`
	ArchetypeDistribution map[string]int       `json:"archetype_distribution"`
	ForbiddenPatterns     CorpusPatternSummary `json:"forbidden_patterns"`
	Style                 *StyleFingerprint    `json:"style_metrics,omitempty"`
	SampleSize            int                  `json:"sample_size"`
	AnalyzedAt            time.Time            `json:"analyzed_at"`
}

// Averages returns the community baseline stored on the profile
func (p *CommunityProfile) Averages() CommunityAverages {
	return CommunityAverages{
		AvgSentenceLength: p.AvgSentenceLength,
		SentenceLengthStd: p.SentenceLengthStd,
		FormalityLevel:    p.FormalityLevel,
	}
}

// ScoreBreakdown explains how a stored post was scored
type ScoreBreakdown struct {
	PostID    string         `json:"post_id"`
	Subreddit string         `json:"subreddit"`
	Score     PostScore      `json:"score"`
	Penalties []PatternMatch `json:"penalties"`
}

// Violation is a forbidden pattern matched in a draft
type Violation struct {
	Pattern     string `json:"pattern"`
	Category    string `json:"category"`
	MatchedText string `json:"matched_text"`
}

// AITell is a phrase or layout typical of generated text
type AITell struct {
	Category    string   `json:"category"`
	Description string   `json:"description"`
	MatchedText string   `json:"matched_text"`
	Severity    Severity `json:"severity"`
}

// DraftValidation is the result of checking a draft against community rules
type DraftValidation struct {
	Passed            bool        `json:"passed"`
	Violations        []Violation `json:"violations"`
	AITells           []AITell    `json:"ai_tells"`
	JargonTerms       []string    `json:"jargon_terms"`
	AvgSentenceLength float64     `json:"avg_sentence_length"`
	SentenceLengthOK  bool        `json:"sentence_length_ok"`
	LinkDensity       float64     `json:"link_density"`
	SkippedPatterns   []string    `json:"skipped_patterns,omitempty"`
	ForbiddenChecked  int         `json:"forbidden_checked"`
}

// StyleFingerprint describes how a community writes
type StyleFingerprint struct {
	Vocabulary    VocabularyStyle   `json:"vocabulary"`
	Structure     StructureStyle    `json:"structure"`
	Punctuation   PunctuationStyle  `json:"punctuation"`
	Formatting    FormattingStyle   `json:"formatting"`
	Openings      []OpeningPattern  `json:"top_opening_patterns"`
	Imperfections ImperfectionStyle `json:"imperfections"`
}

// TermCount is a term with its frequency
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// VocabularyStyle holds word choice metrics
type VocabularyStyle struct {
	TopTerms      []TermCount `json:"top_terms"`
	AvgWordLength float64     `json:"avg_word_length"`
	StopWordRatio float64     `json:"stop_word_ratio"`
}

// StructureStyle holds post layout metrics
type StructureStyle struct {
	AvgParagraphCount           float64 `json:"avg_paragraph_count"`
	AvgParagraphLengthSentences float64 `json:"avg_paragraph_length_sentences"`
	AvgPostWordCount            float64 `json:"avg_post_word_count"`
	PostWordCountStd            float64 `json:"post_word_count_std"`
	QuestionSentenceRatio       float64 `json:"question_sentence_ratio"`
}

// PunctuationStyle holds per-post punctuation averages
type PunctuationStyle struct {
	ExclamationPerPost   float64 `json:"exclamation_per_post"`
	QuestionMarkPerPost  float64 `json:"question_mark_per_post"`
	EllipsisPerPost      float64 `json:"ellipsis_per_post"`
	EmojiPerPost         float64 `json:"emoji_per_post"`
	ParentheticalPerPost float64 `json:"parenthetical_per_post"`
}

// FormattingStyle holds the share of posts using each convention
type FormattingStyle struct {
	HasTLDRRatio       float64 `json:"has_tldr_ratio"`
	HasEditRatio       float64 `json:"has_edit_ratio"`
	HasLinksRatio      float64 `json:"has_links_ratio"`
	HasCodeBlocksRatio float64 `json:"has_code_blocks_ratio"`
	AvgLineBreaks      float64 `json:"avg_line_breaks"`
}

// OpeningPattern is a common way top posts start
type OpeningPattern struct {
	Pattern string `json:"pattern"`
	Count   int    `json:"count"`
}

// ImperfectionStyle measures human-looking irregularities
type ImperfectionStyle struct {
	ParentheticalFrequency float64 `json:"parenthetical_frequency"`
	SelfCorrectionRate     float64 `json:"self_correction_rate"`
	DashInterruptionRate   float64 `json:"dash_interruption_rate"`
}

// RunStatus is the lifecycle state of a subreddit analysis
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunSkipped   RunStatus = "skipped"
)

// AnalysisRun tracks one (campaign, subreddit) analysis job
type AnalysisRun struct {
	CampaignID string    `json:"campaign_id"`
	Subreddit  string    `json:"subreddit"`
	Status     RunStatus `json:"status"`
	Stage      string    `json:"stage,omitempty"`
	Error      string    `json:"error,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// StoredPattern is a user-added forbidden pattern persisted for a campaign
type StoredPattern struct {
	ID         string    `json:"id"`
	CampaignID string    `json:"campaign_id"`
	Subreddit  string    `json:"subreddit,omitempty"`
	Category   string    `json:"category"`
	Pattern    string    `json:"pattern"`
	CreatedAt  time.Time `json:"created_at"`
}
