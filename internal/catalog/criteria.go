// Package catalog filters, sorts and groups incident collections.
// Every function is pure: inputs are never modified.
package catalog

import (
	"fmt"
	"sort"
	"strings"
)

type SortKey string

const (
	SortYearAsc      SortKey = "year-asc"
	SortYearDesc     SortKey = "year-desc"
	SortNameAsc      SortKey = "name-asc"
	SortNameDesc     SortKey = "name-desc"
	SortSeverityAsc  SortKey = "severity-asc"
	SortSeverityDesc SortKey = "severity-desc"

	DefaultSort = SortYearAsc
)

// AllCategories is the sentinel category value that disables category filtering.
const AllCategories = "all"

var sortKeys = []SortKey{SortYearAsc, SortYearDesc, SortNameAsc, SortNameDesc, SortSeverityAsc, SortSeverityDesc}

// ParseSortKey validates a sort key. Blank means DefaultSort.
func ParseSortKey(raw string) (SortKey, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return DefaultSort, nil
	}
	for _, k := range sortKeys {
		if string(k) == raw {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown sort key %q", raw)
}

// CategorySelection is either "all" or an explicit set of category names.
// The zero value selects all categories.
type CategorySelection struct {
	names map[string]struct{}
}

// SelectCategories builds a selection from names. No names, or any name equal
// to "all", selects everything.
func SelectCategories(names ...string) CategorySelection {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if strings.EqualFold(n, AllCategories) {
			return CategorySelection{}
		}
		set[n] = struct{}{}
	}
	if len(set) == 0 {
		return CategorySelection{}
	}
	return CategorySelection{names: set}
}

// ParseCategories accepts repeated values and comma separated lists.
func ParseCategories(values []string) CategorySelection {
	var names []string
	for _, v := range values {
		names = append(names, strings.Split(v, ",")...)
	}
	return SelectCategories(names...)
}

func (s CategorySelection) All() bool {
	return len(s.names) == 0
}

func (s CategorySelection) Contains(category string) bool {
	if s.All() {
		return true
	}
	_, ok := s.names[category]
	return ok
}

// Names returns the selected names sorted, or ["all"].
func (s CategorySelection) Names() []string {
	if s.All() {
		return []string{AllCategories}
	}
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Criteria is the full set of user-controlled view parameters.
type Criteria struct {
	Search     string
	Categories CategorySelection
	Sort       SortKey
}

// ParseCriteria builds Criteria from raw query values.
func ParseCriteria(search string, categories []string, sortKey string) (Criteria, error) {
	key, err := ParseSortKey(sortKey)
	if err != nil {
		return Criteria{}, err
	}
	return Criteria{
		Search:     search,
		Categories: ParseCategories(categories),
		Sort:       key,
	}, nil
}
