package explain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/susume/internal/models"
)

func TestTemplate_WithPreferences(t *testing.T) {
	profile := map[string]interface{}{
		"preferences": []interface{}{"Electronics", "Gaming"},
		"location":    "Dubai",
	}
	got := Template(profile, nil)
	if !strings.Contains(got, "Electronics, Gaming") || !strings.Contains(got, "Dubai") {
		t.Errorf("got %q", got)
	}
}

func TestTemplate_FallbackItems(t *testing.T) {
	items := []*models.ScoredItem{{ItemID: "D1", Source: models.SourceFallback}}
	got := Template(nil, items)
	if !strings.Contains(got, "popular") {
		t.Errorf("got %q", got)
	}
}

func TestTemplate_Bare(t *testing.T) {
	if got := Template(nil, nil); got == "" {
		t.Error("template should never be empty")
	}
}

func TestHTTPExplainer_Explain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/explain" {
			http.NotFound(w, r)
			return
		}
		var req explainRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(explainResponse{Explanation: "because you like gadgets"})
	}))
	defer srv.Close()

	e := NewHTTPExplainer(srv.URL, 5*time.Second, 1)
	got, err := e.Explain(context.Background(),
		map[string]interface{}{"location": "Dubai"},
		[]*models.ScoredItem{{ItemID: "P1", Score: 0.9, Rank: 1, Source: models.SourceSimilarity}})
	if err != nil {
		t.Fatal(err)
	}
	if got != "because you like gadgets" {
		t.Errorf("got %q", got)
	}
}

func TestHTTPExplainer_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := NewHTTPExplainer(srv.URL, time.Second, 1)
	_, err := e.Explain(context.Background(), nil, nil)
	if !errors.Is(err, models.ErrExplanationService) {
		t.Errorf("expected ErrExplanationService, got %v", err)
	}
}
