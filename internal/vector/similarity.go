// Package vector provides similarity math for embedding vectors.
package vector

import (
	"fmt"
	"math"

	"github.com/hyperjump/susume/internal/models"
)

// Dot returns the dot product of two equal-length vectors.
func Dot(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// Cosine returns the cosine similarity of a and b in [-1, 1].
// When either vector has zero magnitude the similarity is defined as 0
// (documented policy, not an error). Vectors of different lengths fail
// with models.ErrDimensionMismatch.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", models.ErrDimensionMismatch, len(a), len(b))
	}
	na := L2Norm(a)
	nb := L2Norm(b)
	if na == 0 || nb == 0 {
		return 0, nil
	}
	sim := Dot(a, b) / (na * nb)
	// Guard against float drift outside the valid range.
	return math.Max(-1, math.Min(1, sim)), nil
}
