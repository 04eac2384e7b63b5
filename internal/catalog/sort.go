package catalog

import (
	"sort"
	"strings"

	"github.com/retrofails/backend/internal/models"
)

// Sort returns a sorted copy of incidents.
func Sort(incidents []models.Incident, key SortKey) []models.Incident {
	out := make([]models.Incident, len(incidents))
	copy(out, incidents)
	SortInPlace(out, key)
	return out
}

// SortInPlace stable-sorts incidents by key; equal elements keep their order.
// Undated incidents and unknown severities go last whatever the direction.
func SortInPlace(incidents []models.Incident, key SortKey) {
	less := lessFunc(key)
	sort.SliceStable(incidents, func(i, j int) bool {
		return less(incidents[i], incidents[j])
	})
}

func lessFunc(key SortKey) func(a, b models.Incident) bool {
	switch key {
	case SortYearDesc:
		return byYear(true)
	case SortNameAsc:
		return byName(false)
	case SortNameDesc:
		return byName(true)
	case SortSeverityAsc:
		return bySeverity(false)
	case SortSeverityDesc:
		return bySeverity(true)
	default:
		return byYear(false)
	}
}

func byYear(desc bool) func(a, b models.Incident) bool {
	return func(a, b models.Incident) bool {
		ya, okA := a.Year()
		yb, okB := b.Year()
		switch {
		case !okA && !okB:
			return false
		case !okA:
			return false
		case !okB:
			return true
		}
		if desc {
			return ya > yb
		}
		return ya < yb
	}
}

func byName(desc bool) func(a, b models.Incident) bool {
	return func(a, b models.Incident) bool {
		na, nb := strings.ToLower(a.Name), strings.ToLower(b.Name)
		if desc {
			return na > nb
		}
		return na < nb
	}
}

func bySeverity(desc bool) func(a, b models.Incident) bool {
	return func(a, b models.Incident) bool {
		unknownA := models.IsUnknownSeverity(a.Severity)
		unknownB := models.IsUnknownSeverity(b.Severity)
		switch {
		case unknownA && unknownB:
			return false
		case unknownA:
			return false
		case unknownB:
			return true
		}
		ra, rb := models.SeverityRank(a.Severity), models.SeverityRank(b.Severity)
		if desc {
			return ra > rb
		}
		return ra < rb
	}
}
