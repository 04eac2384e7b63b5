package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/retrofails/backend/internal/apperrors"
	"github.com/retrofails/backend/internal/services"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"

	contextUserID      = "user_id"
	contextUserEmail   = "user_email"
	contextUserRole    = "user_role"
	contextAccessToken = "access_token"
)

// RequireSession admits requests carrying a valid access token, either in the
// access_token cookie or as a Bearer header.
func RequireSession(verifier services.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := RequestToken(c)
		if token == "" {
			abortWithError(c, apperrors.Unauthorized("Authentication required"))
			return
		}

		user, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			abortWithError(c, apperrors.From(err))
			return
		}

		c.Set(contextUserID, user.ID)
		c.Set(contextUserEmail, user.Email)
		c.Set(contextUserRole, user.Role)
		c.Set(contextAccessToken, token)
		c.Next()
	}
}

// RequestToken reads the access token from the cookie, falling back to the
// Authorization header.
func RequestToken(c *gin.Context) string {
	if cookie, err := c.Cookie(AccessTokenCookie); err == nil && cookie != "" {
		return cookie
	}
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

// AccessToken returns the token RequireSession verified for this request.
func AccessToken(c *gin.Context) string {
	return c.GetString(contextAccessToken)
}

func CurrentUser(c *gin.Context) services.AuthUser {
	return services.AuthUser{
		ID:    c.GetString(contextUserID),
		Email: c.GetString(contextUserEmail),
		Role:  c.GetString(contextUserRole),
	}
}

func abortWithError(c *gin.Context, err *apperrors.Error) {
	c.AbortWithStatusJSON(err.Status, err.Envelope())
}

// RequireRole admits sessions whose role matches one of roles. It must run
// after RequireSession.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(contextUserRole)
		for _, allowed := range roles {
			if strings.EqualFold(role, allowed) {
				c.Next()
				return
			}
		}
		abortWithError(c, apperrors.New(apperrors.TypeAuthentication, http.StatusForbidden, "Insufficient permissions"))
	}
}
