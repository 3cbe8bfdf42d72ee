// Package storage defines the persistence interface for subjects, items,
// and default sets.
package storage

import (
	"context"

	"github.com/hyperjump/susume/internal/models"
)

// Storage is the vector store adapter: uniform read access to subject and
// item vectors with metadata, regardless of backing medium. Reads return
// models.ErrNotFound for absent keys. Writes are distinct, explicitly
// invoked operations; the recommendation path itself never writes.
type Storage interface {
	// Subject operations
	GetSubject(ctx context.Context, id string) (*models.Subject, error)
	PutSubject(ctx context.Context, subject *models.Subject) error
	PutSubjectVector(ctx context.Context, id string, vec []float32) error

	// Item operations
	GetItem(ctx context.Context, id string) (*models.Item, error)
	ListItems(ctx context.Context) ([]*models.Item, error)
	PutItem(ctx context.Context, item *models.Item) error

	// Default set operations
	GetDefaultSet(ctx context.Context, name string) (*models.DefaultSet, error)
	ListDefaultSets(ctx context.Context) ([]*models.DefaultSet, error)
	PutDefaultSet(ctx context.Context, set *models.DefaultSet) error

	// ReplaceCatalog atomically replaces all items and default sets with
	// the given collections (output of the offline embedding batch job).
	ReplaceCatalog(ctx context.Context, items []*models.Item, sets []*models.DefaultSet) error

	// Stats
	CountSubjects(ctx context.Context) (int64, error)
	CountItems(ctx context.Context) (int64, error)

	Close() error
}
