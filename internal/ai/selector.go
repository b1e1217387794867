package ai

import "sort"

// DefaultCostPenalty is subtracted per cost unit so that cheaper models
// win among equally capable candidates. It is a tunable heuristic.
const DefaultCostPenalty = 0.1

// ScoredCandidate pairs a model with its selection score.
type ScoredCandidate struct {
	Model      ModelDescriptor
	MatchScore int
	Score      float64
}

// Selector ranks catalog models against task tags. It is pure: the same
// inputs always produce the same ranking.
type Selector struct {
	costPenalty float64
}

// NewSelector returns a selector; a negative penalty falls back to
// DefaultCostPenalty.
func NewSelector(costPenalty float64) *Selector {
	if costPenalty < 0 {
		costPenalty = DefaultCostPenalty
	}
	return &Selector{costPenalty: costPenalty}
}

func (s *Selector) CostPenalty() float64 {
	return s.costPenalty
}

// Rank scores every catalog model and returns them best first. Equal
// scores keep catalog order.
func (s *Selector) Rank(tags TagSet, catalog Catalog) []ScoredCandidate {
	candidates := make([]ScoredCandidate, 0, catalog.Len())
	for _, model := range catalog.models {
		match := 0
		for _, tag := range tags {
			if model.Supports(tag) {
				match++
			}
		}
		candidates = append(candidates, ScoredCandidate{
			Model:      model.clone(),
			MatchScore: match,
			Score:      float64(match) - float64(model.Cost)*s.costPenalty,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

// Select returns the best candidate for tags. catalog must come from
// NewCatalog (non-empty); a zero Catalog yields a zero descriptor.
func (s *Selector) Select(tags TagSet, catalog Catalog) ModelDescriptor {
	ranked := s.Rank(tags, catalog)
	if len(ranked) == 0 {
		return ModelDescriptor{}
	}
	return ranked[0].Model
}
