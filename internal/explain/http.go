package explain

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

// HTTPExplainer calls an external explanation service over HTTP. Failures
// are reported as models.ErrExplanationService; the caller degrades to a
// template explanation instead of failing the request.
type HTTPExplainer struct {
	baseURL    string
	maxRetries uint64
	client     *http.Client
}

type explainRequest struct {
	Profile map[string]interface{} `json:"profile"`
	Items   []*models.ScoredItem   `json:"items"`
}

type explainResponse struct {
	Explanation string `json:"explanation"`
}

// NewHTTPExplainer creates a client for the explanation service at baseURL.
func NewHTTPExplainer(baseURL string, timeout time.Duration, maxRetries int) *HTTPExplainer {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &HTTPExplainer{
		baseURL:    baseURL,
		maxRetries: uint64(maxRetries),
		client:     &http.Client{Timeout: timeout},
	}
}

// Explain requests prose for the profile and item list.
func (e *HTTPExplainer) Explain(ctx context.Context, profile map[string]interface{}, items []*models.ScoredItem) (string, error) {
	body, err := json.Marshal(explainRequest{Profile: profile, Items: items})
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", models.ErrExplanationService, err)
	}

	var text string
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/explain", bytes.NewReader(body))
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
			return backoff.Permanent(fmt.Errorf("explanation service returned %d: %s", resp.StatusCode, data))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("explanation service returned %d", resp.StatusCode)
		}

		var parsed explainResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		text = parsed.Explanation
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), e.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrExplanationService, err)
	}
	if text == "" {
		return "", fmt.Errorf("%w: empty explanation in response", models.ErrExplanationService)
	}
	return text, nil
}

// Close is a no-op for HTTPExplainer.
func (e *HTTPExplainer) Close() error {
	return nil
}
