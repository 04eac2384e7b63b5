package catalog

import (
	"sort"
	"strings"

	"github.com/retrofails/backend/internal/models"
)

// Apply filters by search and category, then sorts. The input slice is left untouched.
func Apply(incidents []models.Incident, c Criteria) []models.Incident {
	out := Filter(incidents, c.Search, c.Categories)
	SortInPlace(out, c.Sort)
	return out
}

// Filter keeps incidents matching the search text and the category selection,
// in their original order.
func Filter(incidents []models.Incident, search string, categories CategorySelection) []models.Incident {
	needle := strings.ToLower(strings.TrimSpace(search))
	out := make([]models.Incident, 0, len(incidents))
	for _, inc := range incidents {
		if !MatchesSearch(inc, needle) {
			continue
		}
		if !categories.Contains(inc.Category) {
			continue
		}
		out = append(out, inc)
	}
	return out
}

// MatchesSearch reports whether a lowercased needle occurs in the name or description.
func MatchesSearch(inc models.Incident, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(inc.Name), needle) ||
		strings.Contains(strings.ToLower(inc.Description), needle)
}

// Categories lists the distinct non-blank categories, sorted case-insensitively.
func Categories(incidents []models.Incident) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, inc := range incidents {
		c := strings.TrimSpace(inc.Category)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	return out
}

// IndexOf returns the position of the incident with id, or -1.
func IndexOf(incidents []models.Incident, id models.IncidentID) int {
	for i, inc := range incidents {
		if inc.ID == id {
			return i
		}
	}
	return -1
}
