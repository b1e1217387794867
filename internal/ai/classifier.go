package ai

import (
	"regexp"
	"strings"
)

// Rule adds Tags when Pattern matches the message.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Tags    []Tag
}

// DefaultTags is returned when no rule matches.
var DefaultTags = TagSet{TagConversation, TagGeneral}

// DefaultRules is the German/English keyword rule table used by the chat route.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name: "programming",
			// Language names and German terms only match as whole words so
			// that e.g. "Manuskript" stays conversational.
			Pattern: regexp.MustCompile(`(?i)code|programm|function|class|debug|fehler|bug|algorithm|` +
				`\b(?:funktion(?:en)?|klassen?|python|javascript|typescript|golang|java|sql|script|skript|` +
				`kompilier\w*|compile[dr]?|refactor\w*)\b`),
			Tags: []Tag{TagCode, TagTechnical, TagProgramming},
		},
		{
			Name:    "analysis",
			Pattern: regexp.MustCompile(`(?i)analysier|analyse|berechne|vergleich|erkläre detailliert|komplex|philosophie`),
			Tags:    []Tag{TagComplex, TagReasoning, TagAnalysis},
		},
		{
			Name:    "short_answer",
			Pattern: regexp.MustCompile(`(?i)zusammenfass|kurz|schnell|liste|ja/nein|klassifizier`),
			Tags:    []Tag{TagSimple, TagFast, TagClassification, TagSummarization},
		},
		{
			Name:    "visual",
			Pattern: regexp.MustCompile(`(?i)bild|foto|visualisier|zeig mir|schau`),
			Tags:    []Tag{TagVision, TagMultimodal},
		},
	}
}

// Classifier maps free text to task tags by evaluating rules in order.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	rules []Rule
}

// NewClassifier builds a classifier over rules; nil or empty rules fall
// back to DefaultRules.
func NewClassifier(rules []Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Classifier{rules: append([]Rule(nil), rules...)}
}

// Classify never returns an empty set.
func (c *Classifier) Classify(message string) TagSet {
	tags := make(TagSet, 0, 8)
	for _, rule := range c.rules {
		if rule.Pattern == nil || !rule.Pattern.MatchString(message) {
			continue
		}
		tags = tags.Add(rule.Tags...)
	}
	if len(tags) == 0 {
		return append(TagSet(nil), DefaultTags...)
	}
	return tags
}

// ClassifyHistory classifies the most recent user message of history.
func (c *Classifier) ClassifyHistory(history []Message) TagSet {
	return c.Classify(LastUserMessage(history))
}

// LastUserMessage returns the content of the latest user message, or "".
func LastUserMessage(history []Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleUser {
			return strings.TrimSpace(history[i].Content)
		}
	}
	return ""
}
