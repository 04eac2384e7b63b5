package catalog

import (
	"sort"
	"strconv"

	"github.com/retrofails/backend/internal/models"
)

// Groups is the decade/year folder tree derived from an incident list.
// Incidents inside each folder keep the order of the source list.
type Groups struct {
	byDecade map[int][]models.Incident
	byYear   map[int][]models.Incident
	decades  []int
	undated  []models.Incident
}

// GroupByDecade derives the folder tree. Call it again whenever the list changes.
func GroupByDecade(incidents []models.Incident) *Groups {
	g := &Groups{
		byDecade: make(map[int][]models.Incident),
		byYear:   make(map[int][]models.Incident),
	}
	for _, inc := range incidents {
		year, ok := inc.Year()
		if !ok {
			g.undated = append(g.undated, inc)
			continue
		}
		decade := models.DecadeOf(year)
		if _, seen := g.byDecade[decade]; !seen {
			g.decades = append(g.decades, decade)
		}
		g.byDecade[decade] = append(g.byDecade[decade], inc)
		g.byYear[year] = append(g.byYear[year], inc)
	}
	sort.Ints(g.decades)
	return g
}

// Decades lists the decades that have at least one incident, ascending.
func (g *Groups) Decades() []int {
	return append([]int(nil), g.decades...)
}

func (g *Groups) HasDecade(decade int) bool {
	_, ok := g.byDecade[decade]
	return ok
}

func (g *Groups) Decade(decade int) []models.Incident {
	return g.byDecade[decade]
}

// Years lists the populated years of a decade, ascending.
func (g *Groups) Years(decade int) []int {
	var years []int
	for y := decade; y < decade+10; y++ {
		if _, ok := g.byYear[y]; ok {
			years = append(years, y)
		}
	}
	return years
}

func (g *Groups) HasYear(year int) bool {
	_, ok := g.byYear[year]
	return ok
}

func (g *Groups) Year(year int) []models.Incident {
	return g.byYear[year]
}

// Undated returns incidents that have no usable incident_date.
func (g *Groups) Undated() []models.Incident {
	return g.undated
}

// YearFolder summarizes one year inside a decade.
type YearFolder struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// DecadeFolder summarizes one decade for folder listings.
type DecadeFolder struct {
	Decade int          `json:"decade"`
	Label  string       `json:"label"`
	Count  int          `json:"count"`
	Years  []YearFolder `json:"years"`
}

// Folders summarizes the whole tree.
func (g *Groups) Folders() []DecadeFolder {
	out := make([]DecadeFolder, 0, len(g.decades))
	for _, d := range g.decades {
		out = append(out, g.Folder(d))
	}
	return out
}

func (g *Groups) Folder(decade int) DecadeFolder {
	folder := DecadeFolder{
		Decade: decade,
		Label:  DecadeLabel(decade),
		Count:  len(g.byDecade[decade]),
		Years:  []YearFolder{},
	}
	for _, y := range g.Years(decade) {
		folder.Years = append(folder.Years, YearFolder{Year: y, Count: len(g.byYear[y])})
	}
	return folder
}

// DecadeLabel renders 1990 as "1990s".
func DecadeLabel(decade int) string {
	return strconv.Itoa(decade) + "s"
}
