package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/hyperjump/susume/internal/models"
)

// catalogFile is the JSON layout produced by the offline embedding batch job.
type catalogFile struct {
	Items       []catalogItem       `json:"items"`
	DefaultSets map[string][]string `json:"default_sets"`
}

type catalogItem struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Category  string                 `json:"category"`
	Embedding []float32              `json:"embedding"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// ImportCatalogFile loads an items+defaults JSON file into the store,
// replacing the previous catalog. Returns the number of items and default
// sets imported.
func ImportCatalogFile(ctx context.Context, store Storage, path string) (int, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var file catalogFile
	if err := json.Unmarshal(data, &file); err != nil {
		return 0, 0, fmt.Errorf("failed to parse catalog file: %w", err)
	}

	items := make([]*models.Item, 0, len(file.Items))
	for _, ci := range file.Items {
		if ci.ID == "" {
			return 0, 0, fmt.Errorf("catalog file contains an item without an id")
		}
		if len(ci.Embedding) == 0 {
			return 0, 0, fmt.Errorf("item %s has no embedding", ci.ID)
		}
		items = append(items, &models.Item{
			ID:       ci.ID,
			Name:     ci.Name,
			Category: ci.Category,
			Metadata: ci.Metadata,
			Vector:   ci.Embedding,
		})
	}

	names := make([]string, 0, len(file.DefaultSets))
	for name := range file.DefaultSets {
		names = append(names, name)
	}
	sort.Strings(names)
	sets := make([]*models.DefaultSet, 0, len(names))
	for _, name := range names {
		sets = append(sets, &models.DefaultSet{Name: name, ItemIDs: file.DefaultSets[name]})
	}

	if err := store.ReplaceCatalog(ctx, items, sets); err != nil {
		return 0, 0, fmt.Errorf("failed to replace catalog: %w", err)
	}
	return len(items), len(sets), nil
}
