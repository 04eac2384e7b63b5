// Package navigation implements the folder browser: Root shows decades, a
// decade shows its years, a year shows its incidents and Detail shows one
// incident. Selection mode is tracked alongside and changes what a click does.
package navigation

import (
	"errors"
	"fmt"

	"github.com/retrofails/backend/internal/catalog"
	"github.com/retrofails/backend/internal/models"
)

type Level string

const (
	LevelRoot   Level = "root"
	LevelDecade Level = "decade"
	LevelYear   Level = "year"
	LevelDetail Level = "detail"
)

var (
	ErrInvalidTransition = errors.New("invalid navigation transition")
	ErrNoSuchFolder      = errors.New("folder does not exist")
	ErrOutOfRange        = errors.New("incident index out of range")
	ErrUnknownIncident   = errors.New("incident is not in the current collection")
	ErrNotSelecting      = errors.New("selection mode is not active")
)

// View is the filtered collection the state is evaluated against.
type View struct {
	Incidents []models.Incident
	Groups    *catalog.Groups
}

func NewView(incidents []models.Incident) View {
	return View{Incidents: incidents, Groups: catalog.GroupByDecade(incidents)}
}

// State is serializable so it can be kept in a session store between requests.
type State struct {
	Level  Level `json:"level"`
	Decade int   `json:"decade,omitempty"`
	Year   int   `json:"year,omitempty"`
	// Index points into the filtered collection while Level is LevelDetail, else -1.
	Index int `json:"index"`
	// Current is the id of the incident at Index. Reconcile follows it when
	// the collection shifts underneath the index.
	Current models.IncidentID `json:"current,omitempty"`
	// Parent is the level Detail was entered from.
	Parent        Level               `json:"parent,omitempty"`
	SelectionMode bool                `json:"selection_mode"`
	Selected      []models.IncidentID `json:"selected"`
}

func NewState() State {
	return State{Level: LevelRoot, Index: -1, Selected: []models.IncidentID{}}
}

// OpenDecade descends from Root into a decade folder.
func (s *State) OpenDecade(v View, decade int) error {
	if s.Level != LevelRoot {
		return fmt.Errorf("%w: cannot open a decade from %s", ErrInvalidTransition, s.Level)
	}
	if !v.Groups.HasDecade(decade) {
		return fmt.Errorf("%w: %s", ErrNoSuchFolder, catalog.DecadeLabel(decade))
	}
	s.Level = LevelDecade
	s.Decade = decade
	s.Year = 0
	s.Index = -1
	return nil
}

// OpenYear descends from a decade into one of its years.
func (s *State) OpenYear(v View, year int) error {
	if s.Level != LevelDecade {
		return fmt.Errorf("%w: cannot open a year from %s", ErrInvalidTransition, s.Level)
	}
	if models.DecadeOf(year) != s.Decade || !v.Groups.HasYear(year) {
		return fmt.Errorf("%w: %d in %s", ErrNoSuchFolder, year, catalog.DecadeLabel(s.Decade))
	}
	s.Level = LevelYear
	s.Year = year
	s.Index = -1
	return nil
}

// OpenIncident shows the incident at index of the filtered collection.
func (s *State) OpenIncident(v View, index int) error {
	if index < 0 || index >= len(v.Incidents) {
		return fmt.Errorf("%w: %d of %d", ErrOutOfRange, index, len(v.Incidents))
	}
	if s.Level != LevelDetail {
		s.Parent = s.Level
	}
	s.Level = LevelDetail
	s.Index = index
	s.Current = v.Incidents[index].ID
	return nil
}

// Select opens the incident with the given id.
func (s *State) Select(v View, id models.IncidentID) error {
	idx := catalog.IndexOf(v.Incidents, id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownIncident, id)
	}
	return s.OpenIncident(v, idx)
}

type ClickResult string

const (
	ClickOpened  ClickResult = "opened"
	ClickToggled ClickResult = "toggled"
)

// Click is what happens when an incident is clicked: in selection mode it
// toggles membership, otherwise it opens the detail view.
func (s *State) Click(v View, id models.IncidentID) (ClickResult, error) {
	if catalog.IndexOf(v.Incidents, id) < 0 {
		return "", fmt.Errorf("%w: %s", ErrUnknownIncident, id)
	}
	if s.SelectionMode {
		if err := s.ToggleSelected(id); err != nil {
			return "", err
		}
		return ClickToggled, nil
	}
	if err := s.Select(v, id); err != nil {
		return "", err
	}
	return ClickOpened, nil
}

// Next moves to the following incident. It reports false at the end.
func (s *State) Next(v View) (bool, error) {
	return s.step(v, 1)
}

// Previous moves to the preceding incident. It reports false at the start.
func (s *State) Previous(v View) (bool, error) {
	return s.step(v, -1)
}

func (s *State) step(v View, delta int) (bool, error) {
	if s.Level != LevelDetail {
		return false, fmt.Errorf("%w: next/previous outside detail view", ErrInvalidTransition)
	}
	target := s.Index + delta
	if target < 0 || target >= len(v.Incidents) {
		return false, nil
	}
	s.Index = target
	s.Current = v.Incidents[target].ID
	if year, ok := v.Incidents[target].Year(); ok {
		s.Decade = models.DecadeOf(year)
		s.Year = year
	}
	return true, nil
}

// Up ascends one level. Detail returns to the level it was opened from.
func (s *State) Up() {
	switch s.Level {
	case LevelDetail:
		parent := s.Parent
		s.Index = -1
		s.Current = ""
		s.Parent = ""
		switch parent {
		case LevelYear:
			s.Level = LevelYear
		case LevelDecade:
			s.Level = LevelDecade
			s.Year = 0
		default:
			s.Root()
		}
	case LevelYear:
		s.Level = LevelDecade
		s.Year = 0
	case LevelDecade:
		s.Root()
	}
}

// Root returns to the decade listing. Selection is kept.
func (s *State) Root() {
	s.Level = LevelRoot
	s.Decade = 0
	s.Year = 0
	s.Index = -1
	s.Current = ""
	s.Parent = ""
}

// ToggleSelectionMode enters or leaves selection mode. Leaving clears the selection.
func (s *State) ToggleSelectionMode() {
	s.SelectionMode = !s.SelectionMode
	s.Selected = []models.IncidentID{}
}

// ToggleSelected adds id to the selection or removes it.
func (s *State) ToggleSelected(id models.IncidentID) error {
	if !s.SelectionMode {
		return ErrNotSelecting
	}
	for i, sel := range s.Selected {
		if sel == id {
			s.Selected = append(s.Selected[:i], s.Selected[i+1:]...)
			return nil
		}
	}
	s.Selected = append(s.Selected, id)
	return nil
}

func (s *State) IsSelected(id models.IncidentID) bool {
	for _, sel := range s.Selected {
		if sel == id {
			return true
		}
	}
	return false
}

// Deselect drops ids from the selection, e.g. after they were deleted.
func (s *State) Deselect(ids ...models.IncidentID) {
	kept := make([]models.IncidentID, 0, len(s.Selected))
	for _, sel := range s.Selected {
		drop := false
		for _, id := range ids {
			if sel == id {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, sel)
		}
	}
	s.Selected = kept
}

// Reconcile repairs the state after the collection changed (new criteria,
// re-fetch, deletions). Detail follows its incident to its new index. A folder
// or incident that disappeared sends the state back to Root. It reports
// whether that happened.
func (s *State) Reconcile(v View) bool {
	if s.Level == "" {
		*s = NewState()
		return true
	}
	if s.Selected == nil {
		s.Selected = []models.IncidentID{}
	}

	reset := false
	switch s.Level {
	case LevelDecade:
		reset = !v.Groups.HasDecade(s.Decade)
	case LevelYear:
		reset = !v.Groups.HasYear(s.Year)
	case LevelDetail:
		if s.Current != "" {
			s.Index = catalog.IndexOf(v.Incidents, s.Current)
		}
		reset = s.Index < 0 || s.Index >= len(v.Incidents)
	}
	if reset {
		s.Root()
	}
	return reset
}
