package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hyperjump/susume/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStorage_Subjects(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.GetSubject(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	subject := &models.Subject{
		ID:       "CUST_001",
		Vector:   []float32{0.1, 0.2, 0.3},
		Metadata: map[string]interface{}{"category": "Electronics"},
	}
	if err := store.PutSubject(ctx, subject); err != nil {
		t.Fatal(err)
	}
	if subject.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be set")
	}

	got, err := store.GetSubject(ctx, "CUST_001")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got.Vector, subject.Vector) {
		t.Errorf("vector round-trip: got %v", got.Vector)
	}
	if got.Category() != "Electronics" {
		t.Errorf("metadata round-trip: got %v", got.Metadata)
	}

	if err := store.PutSubjectVector(ctx, "CUST_001", []float32{1, 1, 1}); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetSubject(ctx, "CUST_001")
	if got.Vector[0] != 1 {
		t.Errorf("vector update: got %v", got.Vector)
	}

	if err := store.PutSubjectVector(ctx, "missing", []float32{1}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound for vector update of missing subject, got %v", err)
	}
}

func TestSQLiteStorage_Items(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	item := &models.Item{
		ID:       "P1",
		Name:     "Wireless Headphones",
		Category: "Electronics",
		Metadata: map[string]interface{}{"in_stock": true, "price": 199.0},
		Vector:   []float32{0.5, 0.5},
	}
	if err := store.PutItem(ctx, item); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetItem(ctx, "P1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Wireless Headphones" || got.Category != "Electronics" {
		t.Errorf("got %+v", got)
	}
	if !reflect.DeepEqual(got.Vector, item.Vector) {
		t.Errorf("vector round-trip: got %v", got.Vector)
	}

	if _, err := store.GetItem(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	items, err := store.ListItems(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Errorf("expected 1 item, got %d", len(items))
	}
}

func TestSQLiteStorage_DefaultSets(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.GetDefaultSet(ctx, "popular"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	set := &models.DefaultSet{Name: "popular", ItemIDs: []string{"P3", "P1", "P2"}}
	if err := store.PutDefaultSet(ctx, set); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetDefaultSet(ctx, "popular")
	if err != nil {
		t.Fatal(err)
	}
	// Order must be preserved exactly.
	if !reflect.DeepEqual(got.ItemIDs, []string{"P3", "P1", "P2"}) {
		t.Errorf("got %v", got.ItemIDs)
	}

	// Replacing overwrites previous entries.
	set.ItemIDs = []string{"P9"}
	if err := store.PutDefaultSet(ctx, set); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetDefaultSet(ctx, "popular")
	if !reflect.DeepEqual(got.ItemIDs, []string{"P9"}) {
		t.Errorf("got %v", got.ItemIDs)
	}
}

func TestSQLiteStorage_ListDefaultSets(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sets, err := store.ListDefaultSets(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(sets) != 0 {
		t.Errorf("expected no sets, got %d", len(sets))
	}

	store.PutDefaultSet(ctx, &models.DefaultSet{Name: "popular", ItemIDs: []string{"P1", "P2"}})
	store.PutDefaultSet(ctx, &models.DefaultSet{Name: "Electronics", ItemIDs: []string{"P3"}})

	sets, err = store.ListDefaultSets(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(sets) != 2 {
		t.Fatalf("expected 2 sets, got %d", len(sets))
	}
	// Ordered by name; entries keep their positions.
	if sets[0].Name != "Electronics" || sets[1].Name != "popular" {
		t.Errorf("got %s, %s", sets[0].Name, sets[1].Name)
	}
	if !reflect.DeepEqual(sets[1].ItemIDs, []string{"P1", "P2"}) {
		t.Errorf("got %v", sets[1].ItemIDs)
	}
}

func TestSQLiteStorage_ReplaceCatalog(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := &models.Item{ID: "OLD", Vector: []float32{1}}
	if err := store.PutItem(ctx, old); err != nil {
		t.Fatal(err)
	}

	items := []*models.Item{
		{ID: "A", Name: "Item A", Vector: []float32{1, 0}},
		{ID: "B", Name: "Item B", Vector: []float32{0, 1}},
	}
	sets := []*models.DefaultSet{{Name: "popular", ItemIDs: []string{"A", "B"}}}
	if err := store.ReplaceCatalog(ctx, items, sets); err != nil {
		t.Fatal(err)
	}

	if _, err := store.GetItem(ctx, "OLD"); !errors.Is(err, models.ErrNotFound) {
		t.Error("old item should be gone after replace")
	}
	count, err := store.CountItems(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("expected 2 items, got %d", count)
	}
	got, err := store.GetDefaultSet(ctx, "popular")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got.ItemIDs, []string{"A", "B"}) {
		t.Errorf("got %v", got.ItemIDs)
	}
}

func TestImportCatalogFile(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "catalog.json")
	content := `{
		"items": [
			{"id": "P1", "name": "Desk Lamp", "category": "Home", "embedding": [0.1, 0.9], "metadata": {"in_stock": true}},
			{"id": "P2", "name": "Monitor", "category": "Electronics", "embedding": [0.8, 0.2]}
		],
		"default_sets": {
			"popular": ["P2", "P1"],
			"Home": ["P1"]
		}
	}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	nItems, nSets, err := ImportCatalogFile(ctx, store, path)
	if err != nil {
		t.Fatal(err)
	}
	if nItems != 2 || nSets != 2 {
		t.Errorf("imported %d items, %d sets", nItems, nSets)
	}

	item, err := store.GetItem(ctx, "P1")
	if err != nil {
		t.Fatal(err)
	}
	if item.Name != "Desk Lamp" || !reflect.DeepEqual(item.Vector, []float32{0.1, 0.9}) {
		t.Errorf("got %+v", item)
	}
	set, err := store.GetDefaultSet(ctx, "popular")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(set.ItemIDs, []string{"P2", "P1"}) {
		t.Errorf("got %v", set.ItemIDs)
	}
}

func TestImportCatalogFile_Invalid(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	missing := filepath.Join(dir, "nope.json")
	if _, _, err := ImportCatalogFile(ctx, store, missing); err == nil {
		t.Error("expected error for missing file")
	}

	noEmbedding := filepath.Join(dir, "bad.json")
	os.WriteFile(noEmbedding, []byte(`{"items":[{"id":"X"}]}`), 0600)
	if _, _, err := ImportCatalogFile(ctx, store, noEmbedding); err == nil {
		t.Error("expected error for item without embedding")
	}
}
