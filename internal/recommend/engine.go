// Package recommend implements the recommendation orchestrator: it resolves
// the query vector, ranks the catalog, applies the fallback gate, and
// attaches explanations and item metadata.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/susume/internal/catalog"
	"github.com/hyperjump/susume/internal/config"
	"github.com/hyperjump/susume/internal/embedding"
	"github.com/hyperjump/susume/internal/explain"
	"github.com/hyperjump/susume/internal/fallback"
	"github.com/hyperjump/susume/internal/models"
	"github.com/hyperjump/susume/internal/ranking"
	"github.com/hyperjump/susume/internal/storage"
	"github.com/hyperjump/susume/pkg/utils"
)

// Engine serves recommendation requests. Safe for concurrent use: the
// catalog snapshot is immutable and the store is read-only on this path.
type Engine struct {
	store     storage.Storage
	catalog   *catalog.Catalog
	embedder  embedding.Embedder
	explainer explain.Explainer // nil means template explanations only
	resolver  *fallback.Resolver
	cfg       *config.Config
	logger    *zap.Logger
}

// NewEngine creates an engine with the given dependencies.
func NewEngine(
	store storage.Storage,
	cat *catalog.Catalog,
	embedder embedding.Embedder,
	explainer explain.Explainer,
	resolver *fallback.Resolver,
	cfg *config.Config,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		store:     store,
		catalog:   cat,
		embedder:  embedder,
		explainer: explainer,
		resolver:  resolver,
		cfg:       cfg,
		logger:    logger,
	}
}

// Recommend returns the top-K items for the request's subject or fresh
// profile. Embedding failures and unknown subjects degrade to the default
// list; an empty catalog fails with models.ErrNoCandidates; a rejected
// ranking with no defaults fails with models.ErrNoDefaultsConfigured.
func (e *Engine) Recommend(ctx context.Context, req *models.RecommendationRequest) (*models.RecommendationResult, error) {
	start := time.Now()
	if err := req.Validate(e.cfg.Recommend.DefaultK, e.cfg.Recommend.MaxK); err != nil {
		return nil, err
	}
	e.logger.Debug("recommendation request",
		zap.String("subject_id", req.SubjectID),
		zap.String("profile", utils.Truncate(req.Profile, 80)),
		zap.Int("k", req.K))

	snap := e.catalog.Current()
	if snap.Size() == 0 {
		return nil, models.ErrNoCandidates
	}

	queryVec, profile, resolveErr := e.resolveQueryVector(ctx, req)
	degraded := false
	var ranked []*models.ScoredItem
	if resolveErr != nil {
		if !errors.Is(resolveErr, models.ErrEmbeddingService) && !errors.Is(resolveErr, models.ErrNotFound) {
			return nil, resolveErr
		}
		// Recoverable: no query vector means an empty ranking, which the
		// resolver turns into the default list.
		e.logger.Warn("query vector unavailable, degrading to defaults",
			zap.String("subject_id", req.SubjectID), zap.Error(resolveErr))
		degraded = true
	} else {
		var err error
		ranked, err = ranking.TopK(queryVec, snap.Vectors(), req.K)
		if err != nil {
			return nil, err
		}
	}

	results, fallbackReason, err := e.resolver.Resolve(ctx, ranked, categoryOf(profile), req.K)
	if err != nil {
		return nil, err
	}
	if degraded && fallbackReason != "" {
		// The ranking was empty because no query vector could be resolved,
		// not because the catalog produced nothing.
		fallbackReason = fallback.ReasonNoQueryVector
	}

	results = e.resolveMetadata(ctx, results)

	result := &models.RecommendationResult{
		SubjectID:      req.SubjectID,
		Results:        results,
		Degraded:       degraded,
		FallbackReason: fallbackReason,
	}
	if req.WantExplanation {
		text, explainDegraded := e.explanation(ctx, profile, results)
		result.Explanation = text
		result.Degraded = result.Degraded || explainDegraded
	}
	result.QueryTime = time.Since(start).Milliseconds()
	return result, nil
}

// SimilarItems ranks the catalog against an item's own vector, excluding
// the item itself. No trust gate is applied: this is a plain similarity
// listing.
func (e *Engine) SimilarItems(ctx context.Context, itemID string, k int) ([]*models.ScoredItem, error) {
	if k <= 0 {
		k = e.cfg.Recommend.DefaultK
	}
	if k > e.cfg.Recommend.MaxK {
		k = e.cfg.Recommend.MaxK
	}

	snap := e.catalog.Current()
	target, ok := snap.Item(itemID)
	if !ok {
		stored, err := e.store.GetItem(ctx, itemID)
		if err != nil {
			return nil, err
		}
		target = stored
	}

	candidates := make(map[string][]float32, snap.Size())
	for id, vec := range snap.Vectors() {
		if id == itemID {
			continue
		}
		candidates[id] = vec
	}
	if len(candidates) == 0 {
		return nil, models.ErrNoCandidates
	}

	ranked, err := ranking.TopK(target.Vector, candidates, k)
	if err != nil {
		return nil, err
	}
	return e.resolveMetadata(ctx, ranked), nil
}

// RegisterSubject embeds the profile and persists the subject. This is the
// explicit vector write path; Recommend never writes.
func (e *Engine) RegisterSubject(ctx context.Context, input *models.SubjectInput) (*models.Subject, error) {
	if input.Profile == "" {
		return nil, fmt.Errorf("profile is required")
	}
	vec, err := e.embedder.Embed(ctx, input.Profile)
	if err != nil {
		return nil, err
	}

	id := input.ID
	if id == "" {
		id = uuid.NewString()
	}
	subject := &models.Subject{ID: id, Vector: vec, Metadata: input.Metadata}
	if err := e.store.PutSubject(ctx, subject); err != nil {
		return nil, err
	}
	e.logger.Info("subject registered", zap.String("subject_id", id))
	return subject, nil
}

// resolveQueryVector returns the stored vector for a known subject, or
// embeds the request profile. The returned map carries whatever profile
// metadata is known, for the fallback selector and explanations.
func (e *Engine) resolveQueryVector(ctx context.Context, req *models.RecommendationRequest) ([]float32, map[string]interface{}, error) {
	var profile map[string]interface{}
	if req.SubjectID != "" {
		subject, err := e.store.GetSubject(ctx, req.SubjectID)
		if err == nil {
			profile = subject.Metadata
			if subject.HasVector() {
				return subject.Vector, profile, nil
			}
		} else if !errors.Is(err, models.ErrNotFound) {
			return nil, nil, err
		}
	}

	if req.Profile == "" {
		return nil, profile, fmt.Errorf("subject %q has no stored vector and no profile was given: %w",
			req.SubjectID, models.ErrNotFound)
	}
	if profile == nil {
		profile = map[string]interface{}{"profile": req.Profile}
	}
	vec, err := e.embedder.Embed(ctx, req.Profile)
	if err != nil {
		return nil, profile, err
	}
	return vec, profile, nil
}

// resolveMetadata fills item name and category for each entry. Entries
// whose ID no longer resolves (catalog refreshed mid-request) are logged
// and dropped; remaining ranks are renumbered.
func (e *Engine) resolveMetadata(ctx context.Context, results []*models.ScoredItem) []*models.ScoredItem {
	snap := e.catalog.Current()
	out := make([]*models.ScoredItem, 0, len(results))
	for _, r := range results {
		item, ok := snap.Item(r.ItemID)
		if !ok {
			stored, err := e.store.GetItem(ctx, r.ItemID)
			if err != nil {
				e.logger.Warn("dropping unresolvable entry",
					zap.String("item_id", r.ItemID),
					zap.NamedError("cause", models.ErrDanglingReference))
				continue
			}
			item = stored
		}
		r.Name = item.Name
		r.Category = item.Category
		out = append(out, r)
	}
	for i, r := range out {
		r.Rank = i + 1
	}
	return out
}

// explanation returns prose for the result and whether the path degraded.
func (e *Engine) explanation(ctx context.Context, profile map[string]interface{}, results []*models.ScoredItem) (string, bool) {
	if e.explainer == nil {
		return explain.Template(profile, results), false
	}
	explainCtx := ctx
	if e.cfg.Explain.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		explainCtx, cancel = context.WithTimeout(ctx, time.Duration(e.cfg.Explain.TimeoutSeconds)*time.Second)
		defer cancel()
	}
	text, err := e.explainer.Explain(explainCtx, profile, results)
	if err != nil {
		e.logger.Warn("explanation failed, using template", zap.Error(err))
		return explain.Template(profile, results), true
	}
	return text, false
}

func categoryOf(profile map[string]interface{}) string {
	if profile == nil {
		return ""
	}
	if c, ok := profile["category"].(string); ok {
		return c
	}
	return ""
}
