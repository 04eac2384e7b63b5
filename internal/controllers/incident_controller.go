package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/retrofails/backend/internal/apperrors"
	"github.com/retrofails/backend/internal/logger"
	"github.com/retrofails/backend/internal/middleware"
	"github.com/retrofails/backend/internal/models"
	"github.com/retrofails/backend/internal/services"
)

type IncidentController struct {
	source     services.IncidentSource
	images     services.ImageStore
	catalog    *services.CatalogService
	navigation *services.NavigationService
}

func NewIncidentController(source services.IncidentSource, images services.ImageStore, catalog *services.CatalogService, navigation *services.NavigationService) *IncidentController {
	return &IncidentController{
		source:     source,
		images:     images,
		catalog:    catalog,
		navigation: navigation,
	}
}

// CreateIncidentRequest is an incident plus an optional base64 image, either
// a data URL or bare base64.
type CreateIncidentRequest struct {
	models.Incident
	Image string `json:"image"`
}

type DeleteIncidentsRequest struct {
	IDs []models.IncidentID `json:"ids"`
}

func (ic *IncidentController) List(c *gin.Context) {
	incidents, err := ic.source.List(c.Request.Context())
	if err != nil {
		respondError(c, err, "incidents")
		return
	}
	if incidents == nil {
		incidents = []models.Incident{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"incidents": incidents,
		"count":     len(incidents),
	})
}

func (ic *IncidentController) Get(c *gin.Context) {
	incident, err := ic.source.Get(c.Request.Context(), models.IncidentID(c.Param("id")))
	if err != nil {
		respondError(c, err, "incidents")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"incident": incident,
	})
}

// View returns the incident rendered in its decade's skin.
func (ic *IncidentController) View(c *gin.Context) {
	view, err := ic.catalog.DetailView(c.Request.Context(), models.IncidentID(c.Param("id")))
	if err != nil {
		respondError(c, err, "incidents")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"view":    view,
	})
}

// Create validates everything, image included, before calling the backend.
func (ic *IncidentController) Create(c *gin.Context) {
	var req CreateIncidentRequest
	if !bindJSON(c, &req) {
		return
	}

	incident := req.Incident
	incident.CreatedAt = nil
	if err := services.ValidateIncident(&incident); err != nil {
		respondError(c, err, "incidents")
		return
	}

	var image *services.DecodedImage
	if req.Image != "" {
		decoded, err := services.DecodeImage(req.Image)
		if err != nil {
			respondError(c, err, "incidents")
			return
		}
		image = decoded
	}

	ctx := c.Request.Context()
	token := middleware.AccessToken(c)

	if image != nil {
		if ic.images == nil {
			respondError(c, apperrors.Internal("Image storage is not configured", nil), "incidents")
			return
		}
		url, err := ic.images.Save(ctx, token, image)
		if err != nil {
			respondError(c, err, "incidents")
			return
		}
		incident.ImageURL = url
	}

	created, err := ic.source.Create(ctx, token, incident)
	if err != nil {
		respondError(c, err, "incidents")
		return
	}

	user := middleware.CurrentUser(c)
	logger.WithIncident(created.ID.String(), "incidents").WithField("user_id", user.ID).Info("Incident created")

	c.JSON(http.StatusCreated, gin.H{
		"success":  true,
		"incident": created,
	})
}

func (ic *IncidentController) Update(c *gin.Context) {
	var patch services.IncidentPatch
	if !bindJSON(c, &patch) {
		return
	}
	if err := patch.Validate(); err != nil {
		respondError(c, err, "incidents")
		return
	}

	id := models.IncidentID(c.Param("id"))
	updated, err := ic.source.Update(c.Request.Context(), middleware.AccessToken(c), id, patch)
	if err != nil {
		respondError(c, err, "incidents")
		return
	}

	logger.WithIncident(id.String(), "incidents").WithField("fields", len(patch.Changes())).Info("Incident updated")

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"incident": updated,
	})
}

// Delete removes a batch of incidents and drops them from the caller's
// selection.
func (ic *IncidentController) Delete(c *gin.Context) {
	var req DeleteIncidentsRequest
	if !bindJSON(c, &req) {
		return
	}
	ids := compactIDs(req.IDs)
	if len(ids) == 0 {
		respondError(c, apperrors.Validation("ids must contain at least one incident id"), "incidents")
		return
	}

	deleted, err := ic.source.Delete(c.Request.Context(), middleware.AccessToken(c), ids)
	if err != nil {
		respondError(c, err, "incidents")
		return
	}

	if ic.navigation != nil {
		if sessionID, err := c.Cookie(NavigationSessionCookie); err == nil && sessionID != "" {
			if _, err := ic.navigation.Apply(c.Request.Context(), sessionID, services.Deselect(ids)); err != nil {
				logger.WithNavigation(sessionID).WithError(err).Warn("Failed to drop deleted incidents from selection")
			}
		}
	}

	logger.Info("Incidents deleted", map[string]interface{}{
		"requested": len(ids),
		"deleted":   deleted,
		"user_id":   middleware.CurrentUser(c).ID,
	})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"deleted": deleted,
		"ids":     ids,
	})
}

// compactIDs drops blanks and duplicates, keeping first-seen order.
func compactIDs(ids []models.IncidentID) []models.IncidentID {
	seen := make(map[models.IncidentID]bool, len(ids))
	out := make([]models.IncidentID, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
