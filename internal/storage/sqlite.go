// Package storage provides the SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/susume/internal/models"
)

// SQLiteStorage implements Storage using SQLite. Embedding vectors are
// stored as little-endian float32 BLOBs.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS subjects (
		id TEXT PRIMARY KEY,
		embedding BLOB,
		metadata TEXT,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		name TEXT,
		category TEXT,
		metadata TEXT,
		embedding BLOB NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_items_category ON items(category);

	CREATE TABLE IF NOT EXISTS default_sets (
		name TEXT NOT NULL,
		position INTEGER NOT NULL,
		item_id TEXT NOT NULL,
		PRIMARY KEY (name, position)
	);
	`
	_, err := db.Exec(schema)
	return err
}

// GetSubject returns the subject with the given ID, or models.ErrNotFound.
func (s *SQLiteStorage) GetSubject(ctx context.Context, id string) (*models.Subject, error) {
	var (
		embedding    []byte
		metadataJSON sql.NullString
		subject      = models.Subject{ID: id}
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT embedding, metadata, updated_at FROM subjects WHERE id = ?", id,
	).Scan(&embedding, &metadataJSON, &subject.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("subject %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subject: %w", err)
	}
	if len(embedding) > 0 {
		subject.Vector = bytesToFloat32Slice(embedding)
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &subject.Metadata); err != nil {
			return nil, fmt.Errorf("failed to parse subject metadata: %w", err)
		}
	}
	return &subject, nil
}

// PutSubject inserts or replaces a subject.
func (s *SQLiteStorage) PutSubject(ctx context.Context, subject *models.Subject) error {
	metadataJSON, err := json.Marshal(subject.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal subject metadata: %w", err)
	}
	subject.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO subjects (id, embedding, metadata, updated_at) VALUES (?, ?, ?, ?)",
		subject.ID, float32SliceToBytes(subject.Vector), string(metadataJSON), subject.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to put subject: %w", err)
	}
	return nil
}

// PutSubjectVector updates only the stored vector of an existing subject.
// Fails with models.ErrNotFound if the subject does not exist.
func (s *SQLiteStorage) PutSubjectVector(ctx context.Context, id string, vec []float32) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE subjects SET embedding = ?, updated_at = ? WHERE id = ?",
		float32SliceToBytes(vec), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update subject vector: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update subject vector: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("subject %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// GetItem returns the item with the given ID, or models.ErrNotFound.
func (s *SQLiteStorage) GetItem(ctx context.Context, id string) (*models.Item, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, category, metadata, embedding, updated_at FROM items WHERE id = ?", id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("item %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// ListItems returns all catalog items.
func (s *SQLiteStorage) ListItems(ctx context.Context) ([]*models.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, category, metadata, embedding, updated_at FROM items ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []*models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// PutItem inserts or replaces an item.
func (s *SQLiteStorage) PutItem(ctx context.Context, item *models.Item) error {
	metadataJSON, err := json.Marshal(item.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal item metadata: %w", err)
	}
	item.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO items (id, name, category, metadata, embedding, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		item.ID, item.Name, item.Category, string(metadataJSON), float32SliceToBytes(item.Vector), item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}
	return nil
}

// GetDefaultSet returns the named curated list, or models.ErrNotFound when
// no entries exist under that name.
func (s *SQLiteStorage) GetDefaultSet(ctx context.Context, name string) (*models.DefaultSet, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT item_id FROM default_sets WHERE name = ? ORDER BY position", name)
	if err != nil {
		return nil, fmt.Errorf("failed to get default set: %w", err)
	}
	defer rows.Close()

	set := &models.DefaultSet{Name: name}
	for rows.Next() {
		var itemID string
		if err := rows.Scan(&itemID); err != nil {
			return nil, fmt.Errorf("failed to scan default set: %w", err)
		}
		set.ItemIDs = append(set.ItemIDs, itemID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(set.ItemIDs) == 0 {
		return nil, fmt.Errorf("default set %s: %w", name, models.ErrNotFound)
	}
	return set, nil
}

// ListDefaultSets returns all curated lists, ordered by name.
func (s *SQLiteStorage) ListDefaultSets(ctx context.Context) ([]*models.DefaultSet, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, item_id FROM default_sets ORDER BY name, position")
	if err != nil {
		return nil, fmt.Errorf("failed to list default sets: %w", err)
	}
	defer rows.Close()

	var sets []*models.DefaultSet
	for rows.Next() {
		var name, itemID string
		if err := rows.Scan(&name, &itemID); err != nil {
			return nil, fmt.Errorf("failed to scan default set: %w", err)
		}
		if len(sets) == 0 || sets[len(sets)-1].Name != name {
			sets = append(sets, &models.DefaultSet{Name: name})
		}
		last := sets[len(sets)-1]
		last.ItemIDs = append(last.ItemIDs, itemID)
	}
	return sets, rows.Err()
}

// PutDefaultSet replaces the named curated list.
func (s *SQLiteStorage) PutDefaultSet(ctx context.Context, set *models.DefaultSet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM default_sets WHERE name = ?", set.Name); err != nil {
		return fmt.Errorf("failed to clear default set: %w", err)
	}
	for i, itemID := range set.ItemIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO default_sets (name, position, item_id) VALUES (?, ?, ?)",
			set.Name, i, itemID); err != nil {
			return fmt.Errorf("failed to insert default set entry: %w", err)
		}
	}
	return tx.Commit()
}

// ReplaceCatalog replaces all items and default sets in a single transaction,
// so a concurrent reader never observes a half-imported catalog.
func (s *SQLiteStorage) ReplaceCatalog(ctx context.Context, items []*models.Item, sets []*models.DefaultSet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM items"); err != nil {
		return fmt.Errorf("failed to clear items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM default_sets"); err != nil {
		return fmt.Errorf("failed to clear default sets: %w", err)
	}

	now := time.Now().UTC()
	for _, item := range items {
		metadataJSON, err := json.Marshal(item.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata for item %s: %w", item.ID, err)
		}
		item.UpdatedAt = now
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO items (id, name, category, metadata, embedding, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
			item.ID, item.Name, item.Category, string(metadataJSON), float32SliceToBytes(item.Vector), now); err != nil {
			return fmt.Errorf("failed to insert item %s: %w", item.ID, err)
		}
	}
	for _, set := range sets {
		for i, itemID := range set.ItemIDs {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO default_sets (name, position, item_id) VALUES (?, ?, ?)",
				set.Name, i, itemID); err != nil {
				return fmt.Errorf("failed to insert default set %s: %w", set.Name, err)
			}
		}
	}
	return tx.Commit()
}

// CountSubjects returns the number of stored subjects.
func (s *SQLiteStorage) CountSubjects(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM subjects").Scan(&count)
	return count, err
}

// CountItems returns the number of catalog items.
func (s *SQLiteStorage) CountItems(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&count)
	return count, err
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner) (*models.Item, error) {
	var (
		item         models.Item
		name         sql.NullString
		category     sql.NullString
		metadataJSON sql.NullString
		embedding    []byte
	)
	if err := row.Scan(&item.ID, &name, &category, &metadataJSON, &embedding, &item.UpdatedAt); err != nil {
		return nil, err
	}
	item.Name = name.String
	item.Category = category.String
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &item.Metadata); err != nil {
			return nil, fmt.Errorf("failed to parse item metadata: %w", err)
		}
	}
	item.Vector = bytesToFloat32Slice(embedding)
	return &item, nil
}

func float32SliceToBytes(s []float32) []byte {
	if len(s) == 0 {
		return nil
	}
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
