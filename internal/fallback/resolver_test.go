package fallback

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/susume/internal/config"
	"github.com/hyperjump/susume/internal/models"
)

// fakeDefaults serves default sets from a map.
type fakeDefaults struct {
	sets map[string][]string
}

func (f *fakeDefaults) GetDefaultSet(ctx context.Context, name string) (*models.DefaultSet, error) {
	ids, ok := f.sets[name]
	if !ok {
		return nil, fmt.Errorf("default set %s: %w", name, models.ErrNotFound)
	}
	return &models.DefaultSet{Name: name, ItemIDs: ids}, nil
}

func newTestResolver(sets map[string][]string, meanGate bool) *Resolver {
	cfg := &config.FallbackConfig{Threshold: 0.5, MeanGate: meanGate, DefaultSet: "popular"}
	return NewResolver(&fakeDefaults{sets: sets}, cfg, zap.NewNop())
}

func ranked(scores ...float64) []*models.ScoredItem {
	out := make([]*models.ScoredItem, len(scores))
	for i, s := range scores {
		out[i] = &models.ScoredItem{
			ItemID: fmt.Sprintf("I%d", i),
			Score:  s,
			Rank:   i + 1,
			Source: models.SourceSimilarity,
		}
	}
	return out
}

func TestResolve_PassThrough(t *testing.T) {
	r := newTestResolver(map[string][]string{"popular": {"D1"}}, false)
	in := ranked(0.9, 0.6)
	out, reason, err := r.Resolve(context.Background(), in, "", 5)
	if err != nil {
		t.Fatal(err)
	}
	if reason != "" {
		t.Errorf("expected no rejection, got %q", reason)
	}
	if len(out) != 2 || out[0].Source != models.SourceSimilarity {
		t.Errorf("got %+v", out)
	}
}

func TestResolve_LowTopScore(t *testing.T) {
	r := newTestResolver(map[string][]string{"popular": {"D1", "D2", "D3"}}, false)
	out, reason, err := r.Resolve(context.Background(), ranked(0.2, 0.1), "", 2)
	if err != nil {
		t.Fatal(err)
	}
	if reason != ReasonLowTopScore {
		t.Errorf("reason: got %q", reason)
	}
	if len(out) != 2 {
		t.Fatalf("expected defaults truncated to k=2, got %d", len(out))
	}
	for i, s := range out {
		if s.Source != models.SourceFallback {
			t.Errorf("entry %d source: got %q", i, s.Source)
		}
		if s.Score != 0 {
			t.Errorf("entry %d score: got %v, want synthetic 0", i, s.Score)
		}
		if s.Rank != i+1 {
			t.Errorf("entry %d rank: got %d", i, s.Rank)
		}
	}
	if out[0].ItemID != "D1" || out[1].ItemID != "D2" {
		t.Errorf("default order: got %s, %s", out[0].ItemID, out[1].ItemID)
	}
}

func TestResolve_EmptyRanking(t *testing.T) {
	r := newTestResolver(map[string][]string{"popular": {"D1"}}, false)
	out, reason, err := r.Resolve(context.Background(), nil, "", 5)
	if err != nil {
		t.Fatal(err)
	}
	if reason != ReasonEmptyRanking {
		t.Errorf("reason: got %q", reason)
	}
	if len(out) != 1 || out[0].ItemID != "D1" {
		t.Errorf("got %+v", out)
	}
}

func TestResolve_MeanGate(t *testing.T) {
	// Top score passes, mean does not.
	r := newTestResolver(map[string][]string{"popular": {"D1"}}, true)
	_, reason, err := r.Resolve(context.Background(), ranked(0.8, 0.1, 0.1), "", 3)
	if err != nil {
		t.Fatal(err)
	}
	if reason != ReasonLowMeanScore {
		t.Errorf("reason: got %q", reason)
	}

	// Without the gate the same ranking passes.
	r = newTestResolver(map[string][]string{"popular": {"D1"}}, false)
	_, reason, err = r.Resolve(context.Background(), ranked(0.8, 0.1, 0.1), "", 3)
	if err != nil {
		t.Fatal(err)
	}
	if reason != "" {
		t.Errorf("expected pass, got %q", reason)
	}
}

func TestResolve_CategorySelector(t *testing.T) {
	r := newTestResolver(map[string][]string{
		"popular":     {"G1"},
		"Electronics": {"E1", "E2"},
	}, false)

	out, _, err := r.Resolve(context.Background(), nil, "Electronics", 5)
	if err != nil {
		t.Fatal(err)
	}
	if out[0].ItemID != "E1" {
		t.Errorf("expected category set, got %s", out[0].ItemID)
	}

	// Unknown category falls back to the global set.
	out, _, err = r.Resolve(context.Background(), nil, "Garden", 5)
	if err != nil {
		t.Fatal(err)
	}
	if out[0].ItemID != "G1" {
		t.Errorf("expected global set, got %s", out[0].ItemID)
	}
}

func TestResolve_NoDefaultsConfigured(t *testing.T) {
	r := newTestResolver(map[string][]string{}, false)
	_, _, err := r.Resolve(context.Background(), ranked(0.1), "", 5)
	if !errors.Is(err, models.ErrNoDefaultsConfigured) {
		t.Errorf("expected ErrNoDefaultsConfigured, got %v", err)
	}
}
