package ai

import "strings"

// Tag is a coarse task category used only to rank model descriptors.
type Tag string

const (
	TagCode           Tag = "code"
	TagTechnical      Tag = "technical"
	TagProgramming    Tag = "programming"
	TagComplex        Tag = "complex"
	TagReasoning      Tag = "reasoning"
	TagAnalysis       Tag = "analysis"
	TagSimple         Tag = "simple"
	TagFast           Tag = "fast"
	TagClassification Tag = "classification"
	TagSummarization  Tag = "summarization"
	TagVision         Tag = "vision"
	TagMultimodal     Tag = "multimodal"
	TagConversation   Tag = "conversation"
	TagGeneral        Tag = "general"

	// Capability-only tags: they appear in catalog strengths but no
	// classifier rule emits them.
	TagMultilingual Tag = "multilingual"
	TagBalanced     Tag = "balanced"
	TagAccuracy     Tag = "accuracy"
	TagNuance       Tag = "nuance"
	TagExpert       Tag = "expert"
)

// TagSet is an insertion-ordered set of tags.
type TagSet []Tag

// Add appends tags that are not already present.
func (s TagSet) Add(tags ...Tag) TagSet {
	for _, tag := range tags {
		if !s.Has(tag) {
			s = append(s, tag)
		}
	}
	return s
}

func (s TagSet) Has(tag Tag) bool {
	for _, existing := range s {
		if existing == tag {
			return true
		}
	}
	return false
}

// Strings returns the tags as plain strings, preserving order.
func (s TagSet) Strings() []string {
	out := make([]string, 0, len(s))
	for _, tag := range s {
		out = append(out, string(tag))
	}
	return out
}

func (s TagSet) String() string {
	return strings.Join(s.Strings(), ", ")
}
