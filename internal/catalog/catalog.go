// Package catalog maintains an immutable in-memory snapshot of item vectors
// for the hot ranking path. Readers take the current snapshot without
// locking; Refresh builds a complete replacement and publishes it atomically.
package catalog

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/susume/internal/models"
	"github.com/hyperjump/susume/internal/storage"
)

// Snapshot is one immutable version of the catalog. All vectors in a
// snapshot share the configured dimensionality.
type Snapshot struct {
	Version   int64
	CreatedAt time.Time
	items     map[string]*models.Item
	vectors   map[string][]float32
}

// Vectors returns the candidate map for the ranker. The returned map is
// shared and must be treated as read-only.
func (s *Snapshot) Vectors() map[string][]float32 {
	return s.vectors
}

// Item returns the item with the given ID, if present in this snapshot.
func (s *Snapshot) Item(id string) (*models.Item, bool) {
	item, ok := s.items[id]
	return item, ok
}

// Size returns the number of items in the snapshot.
func (s *Snapshot) Size() int {
	return len(s.items)
}

// Catalog holds the current snapshot and rebuilds it from storage.
type Catalog struct {
	store      storage.Storage
	dimensions int
	logger     *zap.Logger
	current    atomic.Pointer[Snapshot]
	version    atomic.Int64
}

// New creates a catalog with an empty initial snapshot. Call Refresh to
// load items from storage.
func New(store storage.Storage, dimensions int, logger *zap.Logger) *Catalog {
	c := &Catalog{
		store:      store,
		dimensions: dimensions,
		logger:     logger,
	}
	c.current.Store(&Snapshot{
		CreatedAt: time.Now(),
		items:     map[string]*models.Item{},
		vectors:   map[string][]float32{},
	})
	return c
}

// Current returns the latest published snapshot. Never nil.
func (c *Catalog) Current() *Snapshot {
	return c.current.Load()
}

// Refresh loads all items from storage and publishes a new snapshot.
// Items marked out of stock are excluded. Any vector whose length differs
// from the configured dimensionality fails the refresh with
// models.ErrDimensionMismatch; the previous snapshot stays published.
func (c *Catalog) Refresh(ctx context.Context) error {
	items, err := c.store.ListItems(ctx)
	if err != nil {
		return fmt.Errorf("failed to load items: %w", err)
	}

	snap := &Snapshot{
		Version:   c.version.Add(1),
		CreatedAt: time.Now(),
		items:     make(map[string]*models.Item, len(items)),
		vectors:   make(map[string][]float32, len(items)),
	}
	skipped := 0
	for _, item := range items {
		if len(item.Vector) != c.dimensions {
			return fmt.Errorf("item %s: %w: got %d, expected %d",
				item.ID, models.ErrDimensionMismatch, len(item.Vector), c.dimensions)
		}
		if !item.Available() {
			skipped++
			continue
		}
		snap.items[item.ID] = item
		snap.vectors[item.ID] = item.Vector
	}

	c.current.Store(snap)
	c.logger.Info("catalog snapshot published",
		zap.Int64("version", snap.Version),
		zap.Int("items", snap.Size()),
		zap.Int("unavailable", skipped))
	return nil
}
