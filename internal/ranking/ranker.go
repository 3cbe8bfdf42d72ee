// Package ranking computes top-K similarity rankings of candidate item
// vectors against a single query vector.
package ranking

import (
	"fmt"
	"sort"

	"github.com/hyperjump/susume/internal/models"
	"github.com/hyperjump/susume/internal/vector"
)

// TopK scores every candidate against query by cosine similarity and
// returns the K best, ordered by descending score with ties broken by
// ascending item ID so that repeated calls produce identical output.
// The result length is min(k, len(candidates)).
//
// The contract is deliberately "vector in, ranked list out": the brute-force
// O(N*D) scan here can be swapped for an approximate index without touching
// callers. Fails with models.ErrEmptyCandidateSet when candidates is empty
// and models.ErrDimensionMismatch when any candidate length differs from
// the query's.
func TopK(query []float32, candidates map[string][]float32, k int) ([]*models.ScoredItem, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be at least 1, got %d", k)
	}
	if len(candidates) == 0 {
		return nil, models.ErrEmptyCandidateSet
	}

	scored := make([]*models.ScoredItem, 0, len(candidates))
	for id, vec := range candidates {
		score, err := vector.Cosine(query, vec)
		if err != nil {
			return nil, fmt.Errorf("candidate %s: %w", id, err)
		}
		scored = append(scored, &models.ScoredItem{
			ItemID: id,
			Score:  score,
			Source: models.SourceSimilarity,
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ItemID < scored[j].ItemID
	})

	if k > len(scored) {
		k = len(scored)
	}
	scored = scored[:k]
	for i, s := range scored {
		s.Rank = i + 1
	}
	return scored, nil
}
