package embedding

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// CachedEmbedder wraps an Embedder with an LRU cache and single-flight
// coalescing: at most one generation is in flight per distinct (normalized)
// text, and concurrent identical requests share its result. Generation runs
// detached from the originating caller's cancellation so that one caller
// disconnecting does not fail the other waiters.
type CachedEmbedder struct {
	inner   Embedder
	cache   *EmbeddingCache
	group   singleflight.Group
	timeout time.Duration
}

// NewCachedEmbedder wraps inner with a cache of the given capacity.
// timeout bounds each shared generation call independently of caller
// deadlines; zero means no bound beyond the inner embedder's own.
func NewCachedEmbedder(inner Embedder, capacity int, timeout time.Duration) *CachedEmbedder {
	return &CachedEmbedder{
		inner:   inner,
		cache:   NewEmbeddingCache(capacity),
		timeout: timeout,
	}
}

// Embed returns the cached vector for text, or generates it once for all
// concurrent identical callers. A cancelled caller stops waiting but the
// in-flight generation completes and populates the cache for the others.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := CacheKey(text)
	if vec, ok := e.cache.Get(key); ok {
		return vec, nil
	}

	ch := e.group.DoChan(key, func() (interface{}, error) {
		genCtx := context.WithoutCancel(ctx)
		if e.timeout > 0 {
			var cancel context.CancelFunc
			genCtx, cancel = context.WithTimeout(genCtx, e.timeout)
			defer cancel()
		}
		vec, err := e.inner.Embed(genCtx, text)
		if err != nil {
			return nil, err
		}
		e.cache.Set(key, vec)
		return vec, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]float32), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// EmbedBatch embeds each text through the cache.
func (e *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = vec
	}
	return embeddings, nil
}

// Dimensions returns the inner embedder's dimension.
func (e *CachedEmbedder) Dimensions() int {
	return e.inner.Dimensions()
}

// CacheLen returns the number of cached embeddings.
func (e *CachedEmbedder) CacheLen() int {
	return e.cache.Len()
}

// Close closes the inner embedder.
func (e *CachedEmbedder) Close() error {
	return e.inner.Close()
}
