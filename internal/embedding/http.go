package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/hyperjump/susume/internal/models"
)

// HTTPEmbedder calls an external embedding service over HTTP. Transient
// failures are retried with exponential backoff; persistent failures are
// reported as models.ErrEmbeddingService so the orchestrator can degrade
// instead of propagating them.
type HTTPEmbedder struct {
	baseURL    string
	dimensions int
	maxRetries uint64
	client     *http.Client
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// NewHTTPEmbedder creates a client for the embedding service at baseURL.
// timeout bounds each attempt; maxRetries bounds retry attempts per call.
func NewHTTPEmbedder(baseURL string, dimensions int, timeout time.Duration, maxRetries int) *HTTPEmbedder {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &HTTPEmbedder{
		baseURL:    baseURL,
		dimensions: dimensions,
		maxRetries: uint64(maxRetries),
		client:     &http.Client{Timeout: timeout},
	}
}

// Embed requests an embedding for text. The returned vector is validated
// against the configured dimensionality.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", models.ErrEmbeddingService, err)
	}

	var vec []float32
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embed", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := e.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return backoff.Permanent(fmt.Errorf("embedding service returned %d: %s", resp.StatusCode, data))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("embedding service returned %d", resp.StatusCode)
		}

		var parsed embedResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		vec = parsed.Embedding
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), e.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEmbeddingService, err)
	}

	if len(vec) != e.dimensions {
		return nil, fmt.Errorf("embedding response: %w: got %d, expected %d",
			models.ErrDimensionMismatch, len(vec), e.dimensions)
	}
	return vec, nil
}

// EmbedBatch embeds each text sequentially.
func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
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

// Dimensions returns the configured embedding dimension.
func (e *HTTPEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for HTTPEmbedder.
func (e *HTTPEmbedder) Close() error {
	return nil
}
