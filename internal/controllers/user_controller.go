package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/retrofails/backend/internal/apperrors"
	"github.com/retrofails/backend/internal/logger"
	"github.com/retrofails/backend/internal/middleware"
	"github.com/retrofails/backend/internal/models"
	"github.com/retrofails/backend/internal/services"
	"gorm.io/gorm"
)

// UserController manages local accounts. It is only mounted when the local
// auth provider is in use; hosted accounts are managed by the provider.
type UserController struct {
	db *gorm.DB
}

func NewUserController(db *gorm.DB) *UserController {
	return &UserController{db: db}
}

type UpdateUserRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// Admin: list users, paginated, optionally filtered by email
func (uc *UserController) GetUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	search := c.Query("search")

	query := uc.db.WithContext(c.Request.Context()).Model(&models.User{})
	if search != "" {
		query = query.Where("LOWER(email) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, apperrors.Internal("Failed to count users", err), "users")
		return
	}

	var users []models.User
	if err := query.Order("id asc").Offset((page - 1) * limit).Limit(limit).Find(&users).Error; err != nil {
		respondError(c, apperrors.Internal("Failed to fetch users", err), "users")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"users":   users,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// Admin: change a user's role. The last admin cannot be demoted.
func (uc *UserController) UpdateUserRole(c *gin.Context) {
	id, ok := uc.targetID(c)
	if !ok {
		return
	}

	var req UpdateUserRoleRequest
	if !bindJSON(c, &req) {
		return
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		respondError(c, apperrors.Validation(err.Error()), "users")
		return
	}

	var user models.User
	err = uc.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("User not found")
			}
			return apperrors.Internal("Failed to fetch user", err)
		}
		if user.Role == models.RoleAdmin && role != models.RoleAdmin {
			if err := uc.ensureAnotherAdmin(tx); err != nil {
				return err
			}
		}
		user.Role = role
		if err := tx.Save(&user).Error; err != nil {
			return apperrors.Internal("Failed to update user role", err)
		}
		return nil
	})
	if err != nil {
		respondError(c, err, "users")
		return
	}

	logger.WithUser(middleware.CurrentUser(c).ID, middleware.CurrentUser(c).Email).
		WithField("target_user", id).WithField("role", role).Info("User role updated")

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "User role updated successfully",
		"user":    user,
	})
}

// Admin: remove a user. The last admin cannot be removed.
func (uc *UserController) RemoveUser(c *gin.Context) {
	id, ok := uc.targetID(c)
	if !ok {
		return
	}

	err := uc.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("User not found")
			}
			return apperrors.Internal("Failed to fetch user", err)
		}
		if user.Role == models.RoleAdmin {
			if err := uc.ensureAnotherAdmin(tx); err != nil {
				return err
			}
		}
		if err := services.PurgeUser(tx, user.ID); err != nil {
			return apperrors.Internal("Failed to delete user", err)
		}
		return nil
	})
	if err != nil {
		respondError(c, err, "users")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "User deleted",
	})
}

// targetID parses :id and refuses to act on the caller's own account.
func (uc *UserController) targetID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, apperrors.Validation("Invalid user ID"), "users")
		return 0, false
	}
	if c.Param("id") == middleware.CurrentUser(c).ID {
		respondError(c, apperrors.Validation("Cannot change your own account"), "users")
		return 0, false
	}
	return uint(id), true
}

func (uc *UserController) ensureAnotherAdmin(tx *gorm.DB) error {
	var admins int64
	if err := tx.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&admins).Error; err != nil {
		return apperrors.Internal("Failed to check admin count", err)
	}
	if admins <= 1 {
		return apperrors.Validation("At least one admin must remain in the system")
	}
	return nil
}
