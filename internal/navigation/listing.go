package navigation

import (
	"github.com/retrofails/backend/internal/catalog"
	"github.com/retrofails/backend/internal/models"
)

// Listing is what the current level shows.
type Listing struct {
	Level       Level                  `json:"level"`
	Decade      int                    `json:"decade,omitempty"`
	Year        int                    `json:"year,omitempty"`
	Decades     []catalog.DecadeFolder `json:"decades,omitempty"`
	Years       []catalog.YearFolder   `json:"years,omitempty"`
	Incidents   []models.Incident      `json:"incidents,omitempty"`
	Undated     []models.Incident      `json:"undated,omitempty"`
	Current     *models.Incident       `json:"current,omitempty"`
	Index       int                    `json:"index"`
	Total       int                    `json:"total"`
	HasNext     bool                   `json:"has_next"`
	HasPrevious bool                   `json:"has_previous"`
}

// List describes the level the state is on. Call Reconcile first if the
// collection may have changed.
func (s State) List(v View) Listing {
	l := Listing{
		Level:  s.Level,
		Decade: s.Decade,
		Year:   s.Year,
		Index:  -1,
		Total:  len(v.Incidents),
	}
	switch s.Level {
	case LevelDecade:
		l.Years = v.Groups.Folder(s.Decade).Years
	case LevelYear:
		l.Incidents = v.Groups.Year(s.Year)
	case LevelDetail:
		if s.Index >= 0 && s.Index < len(v.Incidents) {
			current := v.Incidents[s.Index]
			l.Current = &current
			l.Index = s.Index
			l.HasPrevious = s.Index > 0
			l.HasNext = s.Index < len(v.Incidents)-1
		}
	default:
		l.Decades = v.Groups.Folders()
		l.Undated = v.Groups.Undated()
	}
	return l
}
