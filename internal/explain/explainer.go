// Package explain produces natural-language rationale for a recommendation
// list, via an external generation service or a local template.
package explain

import (
	"context"

	"github.com/hyperjump/susume/internal/models"
)

// Explainer turns a subject profile and a chosen item list into prose.
// Failures are always non-fatal for the recommendation itself.
type Explainer interface {
	Explain(ctx context.Context, profile map[string]interface{}, items []*models.ScoredItem) (string, error)
	Close() error
}
