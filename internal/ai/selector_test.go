package ai

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelectPicksCodingModelForProgrammingTags(t *testing.T) {
	selector := NewSelector(DefaultCostPenalty)

	model := selector.Select(TagSet{TagCode, TagTechnical, TagProgramming}, DefaultCatalog())

	require.Equal(t, "openai/gpt-5-mini", model.ID)
}

func TestSelectPicksCheapSummarizerForShortAnswers(t *testing.T) {
	selector := NewSelector(DefaultCostPenalty)

	model := selector.Select(TagSet{TagSimple, TagFast, TagClassification, TagSummarization}, DefaultCatalog())

	require.Equal(t, "google/gemini-2.5-flash-lite", model.ID)
}

func TestSelectPicksConversationalModelByDefault(t *testing.T) {
	selector := NewSelector(DefaultCostPenalty)

	model := selector.Select(DefaultTags, DefaultCatalog())

	require.Equal(t, "google/gemini-2.5-flash", model.ID)
}

func TestSelectPrefersReasoningModelForAnalysis(t *testing.T) {
	selector := NewSelector(DefaultCostPenalty)

	model := selector.Select(TagSet{TagComplex, TagReasoning, TagAnalysis}, DefaultCatalog())

	require.Equal(t, "google/gemini-2.5-pro", model.ID)
}

func TestSelectEmptyTagsReturnsCheapestInCatalogOrder(t *testing.T) {
	selector := NewSelector(DefaultCostPenalty)

	model := selector.Select(nil, DefaultCatalog())

	require.Equal(t, "google/gemini-2.5-flash", model.ID)
}

func TestSelectBreaksExactTiesByCatalogOrder(t *testing.T) {
	catalog, err := NewCatalog([]ModelDescriptor{
		{Name: "first", ID: "a", Strengths: []Tag{TagFast}, Cost: 2},
		{Name: "second", ID: "b", Strengths: []Tag{TagFast}, Cost: 2},
	})
	require.NoError(t, err)

	selector := NewSelector(DefaultCostPenalty)
	require.Equal(t, "a", selector.Select(TagSet{TagFast}, catalog).ID)

	reversed, err := NewCatalog([]ModelDescriptor{catalog.List()[1], catalog.List()[0]})
	require.NoError(t, err)
	require.Equal(t, "b", selector.Select(TagSet{TagFast}, reversed).ID)
}

func TestSelectAlwaysReturnsCatalogMember(t *testing.T) {
	catalog := DefaultCatalog()
	selector := NewSelector(DefaultCostPenalty)
	tagSets := []TagSet{
		nil,
		{TagVision},
		{TagExpert, TagNuance},
		{"unknown"},
		{TagCode, TagVision, TagSimple, TagConversation},
	}

	for _, tags := range tagSets {
		model := selector.Select(tags, catalog)
		_, ok := catalog.Lookup(model.ID)
		require.True(t, ok, "tags %v selected %q", tags, model.ID)
	}
}

func TestSelectIsDeterministic(t *testing.T) {
	catalog := DefaultCatalog()
	selector := NewSelector(DefaultCostPenalty)
	tags := TagSet{TagFast, TagSimple}

	require.Equal(t, selector.Select(tags, catalog), selector.Select(tags, catalog))
}

func TestRankPenalizesCostAtEqualMatchScore(t *testing.T) {
	selector := NewSelector(DefaultCostPenalty)
	for cost := 1; cost < 5; cost++ {
		catalog, err := NewCatalog([]ModelDescriptor{
			{Name: "expensive", ID: "expensive", Strengths: []Tag{TagCode}, Cost: cost + 1},
			{Name: "cheap", ID: "cheap", Strengths: []Tag{TagCode}, Cost: cost},
		})
		require.NoError(t, err)

		ranked := selector.Rank(TagSet{TagCode}, catalog)
		require.Equal(t, "cheap", ranked[0].Model.ID)
		require.Equal(t, 1, ranked[0].MatchScore)
		require.Greater(t, ranked[0].Score, ranked[1].Score)
	}
}

func TestRankMatchScoreDominatesCost(t *testing.T) {
	catalog, err := NewCatalog([]ModelDescriptor{
		{Name: "cheap", ID: "cheap", Strengths: []Tag{TagCode}, Cost: 1},
		{Name: "capable", ID: "capable", Strengths: []Tag{TagCode, TagTechnical}, Cost: 5},
	})
	require.NoError(t, err)

	ranked := NewSelector(DefaultCostPenalty).Rank(TagSet{TagCode, TagTechnical}, catalog)

	require.Equal(t, "capable", ranked[0].Model.ID)
	require.InDelta(t, 1.5, ranked[0].Score, 1e-9)
	require.InDelta(t, 0.9, ranked[1].Score, 1e-9)
}

func TestZeroCostPenaltyFallsBackToCatalogOrder(t *testing.T) {
	catalog, err := NewCatalog([]ModelDescriptor{
		{Name: "pricey", ID: "pricey", Strengths: []Tag{TagCode}, Cost: 5},
		{Name: "cheap", ID: "cheap", Strengths: []Tag{TagCode}, Cost: 1},
	})
	require.NoError(t, err)

	require.Equal(t, "pricey", NewSelector(0).Select(TagSet{TagCode}, catalog).ID)
	require.Equal(t, "cheap", NewSelector(-1).Select(TagSet{TagCode}, catalog).ID)
}

func TestSelectOnZeroCatalog(t *testing.T) {
	require.Equal(t, ModelDescriptor{}, NewSelector(DefaultCostPenalty).Select(DefaultTags, Catalog{}))
}
