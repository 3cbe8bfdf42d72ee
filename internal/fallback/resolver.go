// Package fallback decides whether a similarity ranking is trustworthy and
// substitutes a curated default list when it is not.
package fallback

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/susume/internal/config"
	"github.com/hyperjump/susume/internal/models"
)

// Rejection reasons reported on the fallback path. ReasonNoQueryVector is
// set by the orchestrator when no query vector could be resolved at all, so
// that case stays distinguishable from a ranking that came back empty.
const (
	ReasonEmptyRanking  = "empty ranking"
	ReasonLowTopScore   = "top score below threshold"
	ReasonLowMeanScore  = "mean score below threshold"
	ReasonNoQueryVector = "query vector unavailable"
)

// DefaultSource provides curated default sets by name.
type DefaultSource interface {
	GetDefaultSet(ctx context.Context, name string) (*models.DefaultSet, error)
}

// Resolver applies the trust gate. The gate is a deliberately simple
// pass/fail decision on configured thresholds, not an adaptive one; the
// contract is a binary gate in front of a static list.
type Resolver struct {
	defaults DefaultSource
	cfg      *config.FallbackConfig
	logger   *zap.Logger
}

// NewResolver creates a resolver reading default sets from defaults.
func NewResolver(defaults DefaultSource, cfg *config.FallbackConfig, logger *zap.Logger) *Resolver {
	return &Resolver{defaults: defaults, cfg: cfg, logger: logger}
}

// Resolve passes a trustworthy ranking through unchanged (reason "") or
// returns the default list for the selector, tagged "fallback" with
// synthetic score 0 and a non-empty reason. category selects a per-category
// default set when one exists; otherwise the configured global set is used.
// A rejected ranking with no resolvable default set fails with
// models.ErrNoDefaultsConfigured.
func (r *Resolver) Resolve(ctx context.Context, ranked []*models.ScoredItem, category string, k int) ([]*models.ScoredItem, string, error) {
	reason := r.rejectReason(ranked)
	if reason == "" {
		return ranked, "", nil
	}

	r.logger.Debug("ranking rejected, using defaults",
		zap.String("reason", reason),
		zap.String("category", category),
		zap.Float64("threshold", r.cfg.Threshold))

	set, err := r.defaultSet(ctx, category)
	if err != nil {
		return nil, "", err
	}

	ids := set.ItemIDs
	if len(ids) > k {
		ids = ids[:k]
	}
	results := make([]*models.ScoredItem, len(ids))
	for i, id := range ids {
		results[i] = &models.ScoredItem{
			ItemID: id,
			Score:  0,
			Rank:   i + 1,
			Source: models.SourceFallback,
		}
	}
	return results, reason, nil
}

// rejectReason returns "" when the ranking passes the gate.
func (r *Resolver) rejectReason(ranked []*models.ScoredItem) string {
	if len(ranked) == 0 {
		return ReasonEmptyRanking
	}
	if ranked[0].Score < r.cfg.Threshold {
		return ReasonLowTopScore
	}
	if r.cfg.MeanGate {
		var sum float64
		for _, s := range ranked {
			sum += s.Score
		}
		if sum/float64(len(ranked)) < r.cfg.Threshold {
			return ReasonLowMeanScore
		}
	}
	return ""
}

func (r *Resolver) defaultSet(ctx context.Context, category string) (*models.DefaultSet, error) {
	if category != "" {
		set, err := r.defaults.GetDefaultSet(ctx, category)
		if err == nil {
			return set, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
	}
	set, err := r.defaults.GetDefaultSet(ctx, r.cfg.DefaultSet)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("selector %q: %w", r.cfg.DefaultSet, models.ErrNoDefaultsConfigured)
		}
		return nil, err
	}
	return set, nil
}
