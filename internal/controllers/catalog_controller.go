package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/retrofails/backend/internal/apperrors"
	"github.com/retrofails/backend/internal/catalog"
	"github.com/retrofails/backend/internal/services"
)

type CatalogController struct {
	catalog *services.CatalogService
}

func NewCatalogController(catalog *services.CatalogService) *CatalogController {
	return &CatalogController{catalog: catalog}
}

// Browse filters and sorts the collection. Query: search, category
// (repeatable or comma separated, "all" for everything) and sort.
func (cc *CatalogController) Browse(c *gin.Context) {
	criteria, err := catalog.ParseCriteria(c.Query("search"), c.QueryArray("category"), c.Query("sort"))
	if err != nil {
		respondError(c, apperrors.Validation(err.Error()), "catalog")
		return
	}

	result, err := cc.catalog.Browse(c.Request.Context(), criteria)
	if err != nil {
		respondError(c, err, "catalog")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"catalog": result,
	})
}

func (cc *CatalogController) Categories(c *gin.Context) {
	categories, err := cc.catalog.Categories(c.Request.Context())
	if err != nil {
		respondError(c, err, "catalog")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"categories": categories,
	})
}
