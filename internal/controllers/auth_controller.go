package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/retrofails/backend/internal/apperrors"
	"github.com/retrofails/backend/internal/logger"
	"github.com/retrofails/backend/internal/middleware"
	"github.com/retrofails/backend/internal/services"
)

// CookieSettings controls how session cookies are written.
type CookieSettings struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type AuthController struct {
	auth    services.AuthProvider
	cookies CookieSettings
}

func NewAuthController(auth services.AuthProvider, cookies CookieSettings) *AuthController {
	if cookies.AccessTTL <= 0 {
		cookies.AccessTTL = time.Hour
	}
	if cookies.RefreshTTL <= 0 {
		cookies.RefreshTTL = 30 * 24 * time.Hour
	}
	return &AuthController{auth: auth, cookies: cookies}
}

type SignInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type CredentialsRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type RecoverRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ConfirmRecoveryRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (ac *AuthController) SignIn(c *gin.Context) {
	var req SignInRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := ac.auth.SignIn(c.Request.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		respondError(c, err, "auth")
		return
	}

	ac.setSessionCookies(c, session)
	logger.WithUser(session.User.ID, session.User.Email).Info("User signed in")

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Signed in",
		"user":       session.User,
		"expires_at": session.ExpiresAt,
	})
}

// SignUp registers a user. When the provider requires email confirmation no
// session is issued and no cookies are set.
func (ac *AuthController) SignUp(c *gin.Context) {
	var req CredentialsRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := ac.auth.SignUp(c.Request.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		respondError(c, err, "auth")
		return
	}

	confirmationRequired := !session.HasTokens()
	if !confirmationRequired {
		ac.setSessionCookies(c, session)
	}
	logger.WithUser(session.User.ID, session.User.Email).Info("User signed up")

	c.JSON(http.StatusCreated, gin.H{
		"success":               true,
		"user":                  session.User,
		"confirmation_required": confirmationRequired,
	})
}

// SignOut always clears the cookies, even if the provider call fails.
func (ac *AuthController) SignOut(c *gin.Context) {
	token := middleware.RequestToken(c)
	if err := ac.auth.SignOut(c.Request.Context(), token); err != nil {
		logger.WithError(err, "auth").Warn("Provider sign out failed, clearing cookies anyway")
	}

	ac.clearSessionCookies(c)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Signed out",
	})
}

func (ac *AuthController) Refresh(c *gin.Context) {
	refreshToken, _ := c.Cookie(middleware.RefreshTokenCookie)
	if refreshToken == "" && c.Request.ContentLength > 0 {
		var req RefreshRequest
		if !bindJSON(c, &req) {
			return
		}
		refreshToken = req.RefreshToken
	}
	if refreshToken == "" {
		respondError(c, apperrors.Unauthorized("No refresh token"), "auth")
		return
	}

	session, err := ac.auth.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		if apperrors.IsType(err, apperrors.TypeAuthentication) || apperrors.IsType(err, apperrors.TypeValidation) {
			ac.clearSessionCookies(c)
		}
		respondError(c, err, "auth")
		return
	}

	ac.setSessionCookies(c, session)
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"user":       session.User,
		"expires_at": session.ExpiresAt,
	})
}

// Session reports the user behind the verified access token.
func (ac *AuthController) Session(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    middleware.CurrentUser(c),
	})
}

// Recover starts password recovery. The response does not reveal whether
// the address is registered.
func (ac *AuthController) Recover(c *gin.Context) {
	var req RecoverRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := ac.auth.RecoverPassword(c.Request.Context(), strings.TrimSpace(req.Email)); err != nil {
		respondError(c, err, "auth")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "If the address is registered, a reset link has been sent",
	})
}

func (ac *AuthController) Confirm(c *gin.Context) {
	var req ConfirmRecoveryRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := ac.auth.ConfirmRecovery(c.Request.Context(), req.Token, req.Password)
	if err != nil {
		respondError(c, err, "auth")
		return
	}

	ac.setSessionCookies(c, session)
	logger.WithUser(session.User.ID, session.User.Email).Info("Password reset")

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Password updated",
		"user":    session.User,
	})
}

func (ac *AuthController) setSessionCookies(c *gin.Context, session *services.AuthSession) {
	if !session.HasTokens() {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, session.AccessToken, int(ac.cookies.AccessTTL.Seconds()), "/", "", ac.cookies.Secure, true)
	c.SetCookie(middleware.RefreshTokenCookie, session.RefreshToken, int(ac.cookies.RefreshTTL.Seconds()), "/", "", ac.cookies.Secure, true)
}

func (ac *AuthController) clearSessionCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", "", ac.cookies.Secure, true)
	c.SetCookie(middleware.RefreshTokenCookie, "", -1, "/", "", ac.cookies.Secure, true)
}
