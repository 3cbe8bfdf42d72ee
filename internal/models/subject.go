// Package models defines core data structures and domain errors for the recommendation engine.
package models

import "time"

// Subject represents a recommendation target: a customer, search query, or
// lookup session. The vector may be absent for never-before-seen subjects.
type Subject struct {
	ID        string                 `json:"id" db:"id"`
	Vector    []float32              `json:"-" db:"-"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	UpdatedAt time.Time              `json:"updated_at" db:"updated_at"`
}

// HasVector reports whether a stored embedding exists for the subject.
func (s *Subject) HasVector() bool {
	return len(s.Vector) > 0
}

// Category returns the subject's declared category preference, if any.
// Used by the fallback resolver to pick a per-category default set.
func (s *Subject) Category() string {
	if s == nil || s.Metadata == nil {
		return ""
	}
	if c, ok := s.Metadata["category"].(string); ok {
		return c
	}
	return ""
}

// SubjectInput is the input for registering a subject. Profile is free-form
// text describing the subject; it is embedded to produce the stored vector.
type SubjectInput struct {
	ID       string                 `json:"id,omitempty"`
	Profile  string                 `json:"profile"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
