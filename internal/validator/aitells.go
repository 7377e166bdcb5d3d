package validator

import (
	"regexp"

	"github.com/zombar/communityanalyzer/internal/models"
)

// maxTellLength bounds the matched text reported for an AI tell
const maxTellLength = 100

type aiTell struct {
	re          *regexp.Regexp
	category    string
	description string
	severity    models.Severity
}

var aiTells = []aiTell{
	{
		re:          regexp.MustCompile(`(?i)\b(Furthermore|Moreover|Additionally|In conclusion|That being said|With that in mind|It's worth noting|Needless to say)\b`),
		category:    "AI-formal-transition",
		description: "Formal transition phrase",
		severity:    models.SeverityMedium,
	},
	{
		re:          regexp.MustCompile(`(?i)\b(I'd be happy to|Great question|Let me share|Here's the thing|Without further ado|In today's world)\b`),
		category:    "AI-chatgpt-phrase",
		description: "ChatGPT-style phrase",
		severity:    models.SeverityHigh,
	},
	{
		re:          regexp.MustCompile(`(?i)\b(game-changer|cutting-edge|best-in-class|revolutionary|innovative solution|robust|streamline|leverage|optimize)\b`),
		category:    "AI-corporate-buzzword",
		description: "Corporate/marketing buzzword",
		severity:    models.SeverityHigh,
	},
	{
		re:          regexp.MustCompile(`(?m)(?:^|\n)[ \t]*[-*][ \t]+.+(?:\n[ \t]*[-*][ \t]+.+){2,}`),
		category:    "AI-list-structure",
		description: "Bullet point list (uncommon in casual Reddit posts)",
		severity:    models.SeverityMedium,
	},
	{
		re:          regexp.MustCompile(`(?im)^(?:Hey everyone|Hi everyone|Hello everyone|Hey folks|Hi folks|Greetings)[!,.]`),
		category:    "AI-generic-greeting",
		description: "Generic greeting opening",
		severity:    models.SeverityMedium,
	},
	{
		re:          regexp.MustCompile(`(?m)(?:^|\.\s+)So,\s`),
		category:    "AI-so-discourse",
		description: `"So," as discourse marker`,
		severity:    models.SeverityMedium,
	},
}

// DetectAITells reports every phrase or layout typical of generated text
func DetectAITells(text string) []models.AITell {
	tells := []models.AITell{}
	for _, t := range aiTells {
		for _, m := range t.re.FindAllString(text, -1) {
			if len(m) > maxTellLength {
				m = m[:maxTellLength]
			}
			tells = append(tells, models.AITell{
				Category:    t.category,
				Description: t.description,
				MatchedText: m,
				Severity:    t.severity,
			})
		}
	}
	return tells
}
