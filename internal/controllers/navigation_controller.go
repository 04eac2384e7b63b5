package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/retrofails/backend/internal/apperrors"
	"github.com/retrofails/backend/internal/logger"
	"github.com/retrofails/backend/internal/middleware"
	"github.com/retrofails/backend/internal/models"
	"github.com/retrofails/backend/internal/services"
)

// NavigationSessionCookie identifies a visitor's browser position.
const NavigationSessionCookie = "nav_session"

type NavigationController struct {
	navigation *services.NavigationService
	source     services.IncidentSource
	secure     bool
	ttl        time.Duration
}

func NewNavigationController(navigation *services.NavigationService, source services.IncidentSource, secure bool, ttl time.Duration) *NavigationController {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &NavigationController{navigation: navigation, source: source, secure: secure, ttl: ttl}
}

type CriteriaRequest struct {
	Search     string   `json:"search"`
	Categories []string `json:"categories"`
	Sort       string   `json:"sort"`
}

type ClickRequest struct {
	ID models.IncidentID `json:"id" binding:"required"`
}

// sessionID returns the visitor's navigation session, issuing one if needed.
// The cookie is refreshed on every call so its lifetime tracks the store TTL.
func (nc *NavigationController) sessionID(c *gin.Context) string {
	id, err := c.Cookie(NavigationSessionCookie)
	if err != nil || id == "" {
		id = uuid.NewString()
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(NavigationSessionCookie, id, int(nc.ttl.Seconds()), "/", "", nc.secure, true)
	return id
}

func (nc *NavigationController) run(c *gin.Context, op services.Operation) {
	result, err := nc.navigation.Apply(c.Request.Context(), nc.sessionID(c), op)
	if err != nil {
		respondError(c, err, "navigation")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"navigation": result,
	})
}

func (nc *NavigationController) State(c *gin.Context) {
	nc.run(c, nil)
}

func (nc *NavigationController) SetCriteria(c *gin.Context) {
	var req CriteriaRequest
	if !bindJSON(c, &req) {
		return
	}
	op, err := services.SetCriteria(req.Search, req.Categories, req.Sort)
	if err != nil {
		respondError(c, err, "navigation")
		return
	}
	nc.run(c, op)
}

func (nc *NavigationController) OpenDecade(c *gin.Context) {
	decade, ok := intParam(c, "decade")
	if !ok {
		return
	}
	nc.run(c, services.OpenDecade(decade))
}

func (nc *NavigationController) OpenYear(c *gin.Context) {
	year, ok := intParam(c, "year")
	if !ok {
		return
	}
	nc.run(c, services.OpenYear(year))
}

func (nc *NavigationController) OpenIncident(c *gin.Context) {
	index, ok := intParam(c, "index")
	if !ok {
		return
	}
	nc.run(c, services.OpenIncident(index))
}

// Click opens the incident, or toggles it when selection mode is on.
func (nc *NavigationController) Click(c *gin.Context) {
	var req ClickRequest
	if !bindJSON(c, &req) {
		return
	}
	nc.run(c, services.Click(req.ID))
}

func (nc *NavigationController) Next(c *gin.Context) {
	nc.run(c, services.Next())
}

func (nc *NavigationController) Previous(c *gin.Context) {
	nc.run(c, services.Previous())
}

func (nc *NavigationController) Up(c *gin.Context) {
	nc.run(c, services.Up())
}

func (nc *NavigationController) Root(c *gin.Context) {
	nc.run(c, services.Root())
}

func (nc *NavigationController) ToggleSelectionMode(c *gin.Context) {
	nc.run(c, services.ToggleSelectionMode())
}

func (nc *NavigationController) Selection(c *gin.Context) {
	selected, err := nc.navigation.Selection(c.Request.Context(), nc.sessionID(c))
	if err != nil {
		respondError(c, err, "navigation")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"selected": selected,
		"count":    len(selected),
	})
}

// DeleteSelected deletes every selected incident in one batch and clears
// them from the selection.
func (nc *NavigationController) DeleteSelected(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := nc.sessionID(c)

	selected, err := nc.navigation.Selection(ctx, sessionID)
	if err != nil {
		respondError(c, err, "navigation")
		return
	}
	if len(selected) == 0 {
		respondError(c, apperrors.Validation("Nothing is selected"), "navigation")
		return
	}

	deleted, err := nc.source.Delete(ctx, middleware.AccessToken(c), selected)
	if err != nil {
		respondError(c, err, "navigation")
		return
	}

	result, err := nc.navigation.Apply(ctx, sessionID, services.Deselect(selected))
	if err != nil {
		respondError(c, err, "navigation")
		return
	}

	logger.WithNavigation(sessionID).WithField("deleted", deleted).Info("Deleted selected incidents")

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"deleted":    deleted,
		"navigation": result,
	})
}

func intParam(c *gin.Context, name string) (int, bool) {
	value, err := strconv.Atoi(c.Param(name))
	if err != nil {
		respondError(c, apperrors.Validation(name+" must be an integer"), "navigation")
		return 0, false
	}
	return value, true
}
