package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/retrofails/backend/internal/apperrors"
	"github.com/retrofails/backend/internal/logger"
)

// respondError writes the error envelope. Server side failures are logged
// with their cause; client errors are left to the request logger.
func respondError(c *gin.Context, err error, component string) {
	appErr := apperrors.From(err)
	if appErr.Status >= 500 {
		logger.WithError(err, component).WithField("path", c.Request.URL.Path).Error(appErr.Message)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(appErr.Status, appErr.Envelope())
}

// bindJSON binds the body and reports failures as validation errors.
func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, apperrors.Validation(err.Error()).Envelope())
		return false
	}
	return true
}
