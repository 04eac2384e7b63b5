package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/retrofails/backend/internal/apperrors"
	"github.com/retrofails/backend/internal/catalog"
	"github.com/retrofails/backend/internal/logger"
	"github.com/retrofails/backend/internal/models"
	"github.com/retrofails/backend/internal/navigation"
	"github.com/retrofails/backend/internal/skins"
)

// NavigationService runs state machine operations for a visitor, keyed by a
// navigation session id.
type NavigationService struct {
	catalog *CatalogService
	store   NavigationStore
}

func NewNavigationService(catalog *CatalogService, store NavigationStore) *NavigationService {
	return &NavigationService{catalog: catalog, store: store}
}

// NavigationResult is returned after every operation.
type NavigationResult struct {
	State      navigation.State   `json:"state"`
	Listing    navigation.Listing `json:"listing"`
	Detail     *skins.DetailView  `json:"detail,omitempty"`
	Search     string             `json:"search"`
	Categories []string           `json:"categories"`
	Sort       catalog.SortKey    `json:"sort"`
	Reset      bool               `json:"reset"`
	Moved      *bool              `json:"moved,omitempty"`
	Click      string             `json:"click,omitempty"`
}

// Operation mutates the state against the current view.
type Operation func(s *NavigationSession, v navigation.View, r *NavigationResult) error

// Current returns the session's state without changing it.
func (ns *NavigationService) Current(ctx context.Context, sessionID string) (*NavigationResult, error) {
	return ns.Apply(ctx, sessionID, nil)
}

// Apply loads the session, rebuilds the filtered view from its criteria,
// reconciles the state, runs op and saves the session.
func (ns *NavigationService) Apply(ctx context.Context, sessionID string, op Operation) (*NavigationResult, error) {
	session, err := ns.store.Load(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		session = NewNavigationSession()
	} else if err != nil {
		return nil, apperrors.Internal("Failed to load navigation session", err)
	}

	criteria, err := catalog.ParseCriteria(session.Search, session.Categories, session.Sort)
	if err != nil {
		// stored criteria are validated on the way in; start over if they rot
		criteria = catalog.Criteria{Sort: catalog.DefaultSort}
	}
	incidents, err := ns.catalog.All(ctx)
	if err != nil {
		return nil, err
	}
	view := navigation.NewView(catalog.Apply(incidents, criteria))

	result := &NavigationResult{}
	result.Reset = session.State.Reconcile(view)

	if op != nil {
		before := criteriaKey(session)

		if err := op(session, view, result); err != nil {
			return nil, navigationError(err)
		}

		if criteriaKey(session) != before {
			criteria, err = catalog.ParseCriteria(session.Search, session.Categories, session.Sort)
			if err != nil {
				return nil, apperrors.Validation(err.Error())
			}
			view = navigation.NewView(catalog.Apply(incidents, criteria))
			// an open incident keeps showing if it survived the new filter
			if session.State.Reconcile(view) {
				result.Reset = true
			}
		}
	}

	session.UpdatedAt = time.Now().UTC()
	if err := ns.store.Save(ctx, sessionID, session); err != nil {
		logger.WithNavigation(sessionID).WithError(err).Error("Failed to save navigation session")
		return nil, apperrors.Internal("Failed to save navigation session", err)
	}

	result.State = session.State
	result.Listing = session.State.List(view)
	result.Search = session.Search
	result.Categories = criteria.Categories.Names()
	result.Sort = criteria.Sort
	if result.Listing.Current != nil {
		detail := ns.catalog.Render(*result.Listing.Current)
		result.Detail = &detail
	}
	return result, nil
}

// SetCriteria replaces the visitor's search, categories and sort.
func SetCriteria(search string, categories []string, sortKey string) (Operation, error) {
	criteria, err := catalog.ParseCriteria(search, categories, sortKey)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	return func(s *NavigationSession, _ navigation.View, _ *NavigationResult) error {
		s.Search = criteria.Search
		s.Categories = criteria.Categories.Names()
		s.Sort = string(criteria.Sort)
		return nil
	}, nil
}

func OpenDecade(decade int) Operation {
	return func(s *NavigationSession, v navigation.View, _ *NavigationResult) error {
		return s.State.OpenDecade(v, decade)
	}
}

func OpenYear(year int) Operation {
	return func(s *NavigationSession, v navigation.View, _ *NavigationResult) error {
		return s.State.OpenYear(v, year)
	}
}

func OpenIncident(index int) Operation {
	return func(s *NavigationSession, v navigation.View, _ *NavigationResult) error {
		return s.State.OpenIncident(v, index)
	}
}

func Click(id models.IncidentID) Operation {
	return func(s *NavigationSession, v navigation.View, r *NavigationResult) error {
		outcome, err := s.State.Click(v, id)
		r.Click = string(outcome)
		return err
	}
}

func Next() Operation {
	return func(s *NavigationSession, v navigation.View, r *NavigationResult) error {
		moved, err := s.State.Next(v)
		r.Moved = &moved
		return err
	}
}

func Previous() Operation {
	return func(s *NavigationSession, v navigation.View, r *NavigationResult) error {
		moved, err := s.State.Previous(v)
		r.Moved = &moved
		return err
	}
}

func Up() Operation {
	return func(s *NavigationSession, _ navigation.View, _ *NavigationResult) error {
		s.State.Up()
		return nil
	}
}

func Root() Operation {
	return func(s *NavigationSession, _ navigation.View, _ *NavigationResult) error {
		s.State.Root()
		return nil
	}
}

func ToggleSelectionMode() Operation {
	return func(s *NavigationSession, _ navigation.View, _ *NavigationResult) error {
		s.State.ToggleSelectionMode()
		return nil
	}
}

// Deselect drops deleted ids from the visitor's selection.
func Deselect(ids []models.IncidentID) Operation {
	return func(s *NavigationSession, _ navigation.View, _ *NavigationResult) error {
		s.State.Deselect(ids...)
		return nil
	}
}

// Selection returns the ids currently selected in a session.
func (ns *NavigationService) Selection(ctx context.Context, sessionID string) ([]models.IncidentID, error) {
	session, err := ns.store.Load(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return []models.IncidentID{}, nil
	}
	if err != nil {
		return nil, apperrors.Internal("Failed to load navigation session", err)
	}
	if session.State.Selected == nil {
		return []models.IncidentID{}, nil
	}
	return session.State.Selected, nil
}

func criteriaKey(s *NavigationSession) string {
	return s.Search + "\x00" + strings.Join(s.Categories, "\x00") + "\x00" + s.Sort
}

func navigationError(err error) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, navigation.ErrNoSuchFolder),
		errors.Is(err, navigation.ErrUnknownIncident),
		errors.Is(err, navigation.ErrOutOfRange):
		return apperrors.NotFound(err.Error())
	case errors.Is(err, navigation.ErrInvalidTransition),
		errors.Is(err, navigation.ErrNotSelecting):
		return apperrors.New(apperrors.TypeValidation, http.StatusConflict, err.Error())
	}
	return apperrors.Internal("Navigation failed", err)
}
