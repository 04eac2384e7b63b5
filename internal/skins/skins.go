// Package skins picks the detail-view presentation for an incident from the
// decade it happened in.
package skins

import (
	"math"
	"strconv"

	"github.com/retrofails/backend/internal/models"
)

type Skin string

const (
	SkinMacintosh     Skin = "macintosh"
	SkinWindows95     Skin = "windows95"
	SkinAero          Skin = "aero"
	SkinGlassmorphism Skin = "glassmorphism"
)

// Variant is one row of the dispatch table. It covers decades in [From, To].
type Variant struct {
	Skin       Skin   `json:"skin"`
	Title      string `json:"title"`
	WindowIcon string `json:"window_icon"`
	FromDecade int    `json:"from_decade"`
	ToDecade   int    `json:"to_decade"`
}

func (v Variant) covers(decade int) bool {
	return decade >= v.FromDecade && decade <= v.ToDecade
}

// Table resolves decades to variants. Ranges must not overlap; the first match wins.
type Table struct {
	variants []Variant
	fallback Variant
}

func NewTable(fallback Variant, variants ...Variant) *Table {
	return &Table{variants: variants, fallback: fallback}
}

// DefaultTable is the stock set of skins.
func DefaultTable() *Table {
	return NewTable(
		Variant{Skin: SkinGlassmorphism, Title: "Incident Report", WindowIcon: "glass-doc", FromDecade: math.MinInt, ToDecade: math.MaxInt},
		Variant{Skin: SkinMacintosh, Title: "Get Info", WindowIcon: "mac-floppy", FromDecade: math.MinInt, ToDecade: 1980},
		Variant{Skin: SkinWindows95, Title: "Properties", WindowIcon: "win95-computer", FromDecade: 1990, ToDecade: 1990},
		Variant{Skin: SkinAero, Title: "Details", WindowIcon: "aero-orb", FromDecade: 2000, ToDecade: 2000},
		Variant{Skin: SkinGlassmorphism, Title: "Incident Report", WindowIcon: "glass-doc", FromDecade: 2010, ToDecade: math.MaxInt},
	)
}

// Resolve returns the variant for a decade.
func (t *Table) Resolve(decade int) Variant {
	for _, v := range t.variants {
		if v.covers(decade) {
			return v
		}
	}
	return t.fallback
}

// ForIncident resolves an incident's variant; undated incidents get the fallback.
func (t *Table) ForIncident(inc models.Incident) Variant {
	decade, ok := inc.Decade()
	if !ok {
		return t.fallback
	}
	return t.Resolve(decade)
}

// Field is one labelled line of the detail view.
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// DetailView is the render-ready form of an incident. Absent values are "Unknown".
type DetailView struct {
	ID          models.IncidentID `json:"id"`
	Name        string            `json:"name"`
	Variant     Variant           `json:"variant"`
	Decade      string            `json:"decade"`
	Year        string            `json:"year"`
	Description string            `json:"description"`
	ImageURL    string            `json:"image_url,omitempty"`
	Fields      []Field           `json:"fields"`
}

// Render resolves the variant once and fills in the view model.
func (t *Table) Render(inc models.Incident) DetailView {
	view := DetailView{
		ID:          inc.ID,
		Name:        models.OrUnknown(inc.Name),
		Variant:     t.ForIncident(inc),
		Decade:      models.UnknownValue,
		Year:        models.UnknownValue,
		Description: models.OrUnknown(inc.Description),
		ImageURL:    inc.ImageURL,
	}
	if year, ok := inc.Year(); ok {
		view.Year = strconv.Itoa(year)
		view.Decade = strconv.Itoa(models.DecadeOf(year)) + "s"
	}
	view.Fields = []Field{
		{Label: "Category", Value: models.OrUnknown(inc.Category)},
		{Label: "Severity", Value: severityLabel(inc.Severity)},
		{Label: "Date", Value: models.OrUnknown(inc.IncidentDate)},
		{Label: "Cause", Value: models.OrUnknown(inc.Cause)},
		{Label: "Consequences", Value: models.OrUnknown(inc.Consequences)},
		{Label: "Time to resolve", Value: models.OrUnknown(inc.TimeToResolve)},
	}
	return view
}

func severityLabel(raw string) string {
	if s, err := models.ParseSeverity(raw); err == nil {
		return string(s)
	}
	return models.OrUnknown(raw)
}
