package explain

import (
	"fmt"
	"strings"

	"github.com/hyperjump/susume/internal/models"
)

// Template builds a canned explanation from whatever profile attributes are
// present. Used when no explanation service is configured, and as the
// placeholder when the service fails.
func Template(profile map[string]interface{}, items []*models.ScoredItem) string {
	preferences := stringList(profile, "preferences")
	location := stringValue(profile, "location")
	if location == "" {
		location = "your area"
	}

	if len(preferences) > 0 {
		return fmt.Sprintf(
			"Based on your interest in %s, we've selected these highly-rated picks that match your preferences. They are popular among customers in %s.",
			strings.Join(preferences, ", "), location)
	}
	if len(items) > 0 && items[0].Source == models.SourceFallback {
		return fmt.Sprintf(
			"We've selected these popular, highly-rated picks that are trending among customers in %s.", location)
	}
	return "These are our top recommendations based on your profile."
}

func stringValue(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func stringList(m map[string]interface{}, key string) []string {
	if m == nil {
		return nil
	}
	switch v := m[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
