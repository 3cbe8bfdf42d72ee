package models

import "time"

// Item represents a catalog entry (product, manual section). Items are
// pre-embedded in bulk before serving and immutable during a serving session;
// an offline batch job refreshes them.
type Item struct {
	ID        string                 `json:"id" db:"id"`
	Name      string                 `json:"name" db:"name"`
	Category  string                 `json:"category,omitempty" db:"category"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	Vector    []float32              `json:"-" db:"-"`
	UpdatedAt time.Time              `json:"updated_at" db:"updated_at"`
}

// Available reports whether the item should be offered. Items are available
// unless metadata explicitly marks them out of stock.
func (i *Item) Available() bool {
	if i.Metadata == nil {
		return true
	}
	if v, ok := i.Metadata["in_stock"].(bool); ok {
		return v
	}
	return true
}

// DefaultSet is a named, pre-curated ordered list of item IDs, substituted
// when computed similarity is untrustworthy. Read-only during serving.
type DefaultSet struct {
	Name    string   `json:"name"`
	ItemIDs []string `json:"item_ids"`
}
