package services

import (
	"context"

	"github.com/retrofails/backend/internal/catalog"
	"github.com/retrofails/backend/internal/models"
	"github.com/retrofails/backend/internal/skins"
)

// CatalogService answers read queries over the whole incident collection.
// Each call fetches the collection fresh; there is no server-side cache.
type CatalogService struct {
	source IncidentSource
	skins  *skins.Table
}

func NewCatalogService(source IncidentSource, table *skins.Table) *CatalogService {
	if table == nil {
		table = skins.DefaultTable()
	}
	return &CatalogService{source: source, skins: table}
}

// BrowseResult is the filtered collection plus everything derived from it.
type BrowseResult struct {
	Incidents  []models.Incident      `json:"incidents"`
	Total      int                    `json:"total"`
	Matched    int                    `json:"matched"`
	Decades    []catalog.DecadeFolder `json:"decades"`
	Undated    int                    `json:"undated"`
	Categories []string               `json:"categories"`
	Search     string                 `json:"search"`
	Selected   []string               `json:"selected_categories"`
	Sort       catalog.SortKey        `json:"sort"`
}

// Browse applies criteria to the current collection.
func (cs *CatalogService) Browse(ctx context.Context, criteria catalog.Criteria) (*BrowseResult, error) {
	all, err := cs.source.List(ctx)
	if err != nil {
		return nil, err
	}
	filtered := catalog.Apply(all, criteria)
	groups := catalog.GroupByDecade(filtered)

	return &BrowseResult{
		Incidents:  filtered,
		Total:      len(all),
		Matched:    len(filtered),
		Decades:    groups.Folders(),
		Undated:    len(groups.Undated()),
		Categories: nonNil(catalog.Categories(all)),
		Search:     criteria.Search,
		Selected:   criteria.Categories.Names(),
		Sort:       criteria.Sort,
	}, nil
}

// All returns the unfiltered collection in source order.
func (cs *CatalogService) All(ctx context.Context) ([]models.Incident, error) {
	return cs.source.List(ctx)
}

func (cs *CatalogService) Categories(ctx context.Context) ([]string, error) {
	all, err := cs.source.List(ctx)
	if err != nil {
		return nil, err
	}
	return nonNil(catalog.Categories(all)), nil
}

// DetailView renders one incident with its decade skin.
func (cs *CatalogService) DetailView(ctx context.Context, id models.IncidentID) (*skins.DetailView, error) {
	inc, err := cs.source.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	view := cs.skins.Render(*inc)
	return &view, nil
}

// Render renders an incident that is already in hand.
func (cs *CatalogService) Render(inc models.Incident) skins.DetailView {
	return cs.skins.Render(inc)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
