// Package evaluation measures retrieval and answer quality against a
// labelled golden set and writes JSON and CSV reports.
package evaluation

import "github.com/knowledgebench/bench/engine/domain"

// Composite score weights. They sum to 1.0.
const (
	WeightRecall      = 0.30
	WeightMRR         = 0.20
	WeightSemanticSim = 0.30
	WeightCitation    = 0.20
)

// StrictSourceMatch counts expected sources found among retrieved ones.
// Matching is exact on document id and source ref. Each expected source
// counts at most once, at its first match.
func StrictSourceMatch(expected, retrieved []domain.SourceKey) (hits, total int) {
	for _, exp := range expected {
		for _, ret := range retrieved {
			if exp.DocumentID == ret.DocumentID && exp.SourceRef == ret.SourceRef {
				hits++
				break
			}
		}
	}
	return hits, len(expected)
}

// RecallAtK is the fraction of expected sources found in the top k
// retrieved. Zero when nothing is expected.
func RecallAtK(expected, retrieved []domain.SourceKey, k int) float64 {
	if len(expected) == 0 {
		return 0
	}
	if k < len(retrieved) {
		retrieved = retrieved[:k]
	}
	hits, total := StrictSourceMatch(expected, retrieved)
	return float64(hits) / float64(total)
}

// MRR is the reciprocal rank of the first retrieved source that matches
// any expected source, or zero when none match.
func MRR(expected, retrieved []domain.SourceKey) float64 {
	for i, ret := range retrieved {
		for _, exp := range expected {
			if exp.DocumentID == ret.DocumentID && exp.SourceRef == ret.SourceRef {
				return 1.0 / float64(i+1)
			}
		}
	}
	return 0
}
