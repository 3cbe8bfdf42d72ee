package models

import "fmt"

// Result sources: how a returned entry was chosen.
const (
	SourceSimilarity = "similarity"
	SourceFallback   = "fallback"
)

// ScoredItem is a single ranked recommendation. Transient: produced per
// request, never persisted.
type ScoredItem struct {
	ItemID   string  `json:"item_id"`
	Name     string  `json:"name,omitempty"`
	Category string  `json:"category,omitempty"`
	Score    float64 `json:"score"`
	Rank     int     `json:"rank"`
	Source   string  `json:"source"`
}

// RecommendationRequest asks for top-K recommendations. Either SubjectID
// (known subject with a stored vector) or Profile (fresh, free-form text to
// embed) must be set; when both are set the stored vector wins and Profile
// is used only if the subject is unknown or has no vector yet.
type RecommendationRequest struct {
	SubjectID       string `json:"subject_id,omitempty"`
	Profile         string `json:"profile,omitempty"`
	K               int    `json:"k,omitempty"`
	WantExplanation bool   `json:"want_explanation,omitempty"`
}

// Validate checks the request and normalizes K against the configured bounds.
func (r *RecommendationRequest) Validate(defaultK, maxK int) error {
	if r.SubjectID == "" && r.Profile == "" {
		return fmt.Errorf("subject_id or profile is required")
	}
	if r.K <= 0 {
		r.K = defaultK
	}
	if maxK > 0 && r.K > maxK {
		r.K = maxK
	}
	return nil
}

// RecommendationResult is the response for a recommendation request.
// Degraded is set when an external service failed and the result was
// produced on a reduced path (fallback list, placeholder explanation).
type RecommendationResult struct {
	SubjectID      string        `json:"subject_id"`
	Results        []*ScoredItem `json:"results"`
	Explanation    string        `json:"explanation,omitempty"`
	Degraded       bool          `json:"degraded"`
	FallbackReason string        `json:"fallback_reason,omitempty"`
	QueryTime      int64         `json:"query_time_ms"`
}
