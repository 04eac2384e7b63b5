package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/retrofails/backend/internal/apperrors"
	"github.com/retrofails/backend/internal/logger"
	"github.com/retrofails/backend/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 6

func errResetTokenInvalid() *apperrors.Error {
	return apperrors.Unauthorized("Reset token is invalid or has expired")
}

// ResetNotifier delivers a password reset token to the user.
type ResetNotifier func(ctx context.Context, email, token string) error

// LocalAuthService keeps users in the application database. It is meant for
// development and self-hosted installs that have no hosted auth service.
type LocalAuthService struct {
	db         *gorm.DB
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	resetTTL   time.Duration
	notify     ResetNotifier
}

type LocalAuthConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ResetTTL   time.Duration
	Notify     ResetNotifier
}

func NewLocalAuthService(db *gorm.DB, cfg LocalAuthConfig) *LocalAuthService {
	notify := cfg.Notify
	if notify == nil {
		notify = logResetToken
	}
	return &LocalAuthService{
		db:         db,
		secret:     []byte(cfg.Secret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		resetTTL:   cfg.ResetTTL,
		notify:     notify,
	}
}

// logResetToken stands in for an email sender.
func logResetToken(_ context.Context, email, token string) error {
	logger.Info("Password reset requested", map[string]interface{}{
		"email":       email,
		"reset_token": token,
		"component":   "local_auth",
	})
	return nil
}

func (las *LocalAuthService) SignIn(ctx context.Context, email, password string) (*AuthSession, error) {
	var user models.User
	if err := las.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		return nil, apperrors.Unauthorized("Invalid login credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, apperrors.Unauthorized("Invalid login credentials")
	}
	return las.issue(user)
}

func (las *LocalAuthService) SignUp(ctx context.Context, email, password string) (*AuthSession, error) {
	email = normalizeEmail(email)
	if len(password) < minPasswordLength {
		return nil, apperrors.Validation("Password should be at least 6 characters")
	}

	var existing models.User
	if err := las.db.WithContext(ctx).Unscoped().Where("email = ?", email).First(&existing).Error; err == nil {
		if !existing.DeletedAt.Valid {
			return nil, apperrors.New(apperrors.TypeValidation, http.StatusConflict, "User already registered")
		}
		// a removed account frees its address
		if err := PurgeUser(las.db.WithContext(ctx), existing.ID); err != nil {
			return nil, apperrors.Internal("Failed to create user", err)
		}
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Internal("Failed to hash password", err)
	}
	user := models.User{Email: email, Password: string(hashedPassword), Role: models.RoleViewer}
	if err := las.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, apperrors.Internal("Failed to create user", err)
	}
	return las.issue(user)
}

// SignOut has nothing to revoke: tokens are stateless and the cookies are
// cleared by the caller.
func (las *LocalAuthService) SignOut(context.Context, string) error {
	return nil
}

func (las *LocalAuthService) Refresh(ctx context.Context, refreshToken string) (*AuthSession, error) {
	claims := &accessClaims{}
	token, err := jwt.ParseWithClaims(refreshToken, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return las.secret, nil
	})
	if err != nil || !token.Valid || claims.TokenType != tokenTypeRefresh {
		return nil, apperrors.Unauthorized("Invalid refresh token")
	}

	user, err := las.userByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	return las.issue(*user)
}

// RecoverPassword always succeeds so the endpoint does not reveal which
// addresses are registered.
func (las *LocalAuthService) RecoverPassword(ctx context.Context, email string) error {
	var user models.User
	if err := las.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		return nil
	}

	token := uuid.NewString()
	reset := models.PasswordReset{
		UserID:    user.ID,
		TokenHash: hashResetToken(token),
		ExpiresAt: time.Now().Add(las.resetTTL),
	}
	if err := las.db.WithContext(ctx).Create(&reset).Error; err != nil {
		return apperrors.Internal("Failed to create reset token", err)
	}
	return las.notify(ctx, user.Email, token)
}

// ConfirmRecovery consumes a reset token and sets the new password.
func (las *LocalAuthService) ConfirmRecovery(ctx context.Context, token, newPassword string) (*AuthSession, error) {
	if len(newPassword) < minPasswordLength {
		return nil, apperrors.Validation("Password should be at least 6 characters")
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Internal("Failed to hash password", err)
	}

	var user models.User
	err = las.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reset models.PasswordReset
		if err := tx.Where("token_hash = ? AND consumed_at IS NULL", hashResetToken(token)).First(&reset).Error; err != nil {
			return errResetTokenInvalid()
		}
		now := time.Now()
		if now.After(reset.ExpiresAt) {
			return errResetTokenInvalid()
		}
		// only one of two concurrent confirms can flip consumed_at
		consumed := tx.Model(&models.PasswordReset{}).
			Where("id = ? AND consumed_at IS NULL", reset.ID).
			Update("consumed_at", &now)
		if consumed.Error != nil {
			return consumed.Error
		}
		if consumed.RowsAffected != 1 {
			return errResetTokenInvalid()
		}
		if err := tx.First(&user, reset.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errResetTokenInvalid()
			}
			return err
		}
		return tx.Model(&user).Update("password", string(hashedPassword)).Error
	})
	if err != nil {
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperrors.Internal("Failed to reset password", err)
	}
	return las.issue(user)
}

// Verify checks the token and then reloads the account, so a removed user or
// a changed role takes effect on the next request rather than at expiry.
func (las *LocalAuthService) Verify(ctx context.Context, accessToken string) (*AuthUser, error) {
	return las.CurrentUser(ctx, accessToken)
}

func (las *LocalAuthService) CurrentUser(ctx context.Context, accessToken string) (*AuthUser, error) {
	verified, err := NewJWTVerifier(string(las.secret), nil).Verify(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	user, err := las.userByID(ctx, verified.ID)
	if err != nil {
		return nil, err
	}
	au := toAuthUser(*user)
	return &au, nil
}

func (las *LocalAuthService) userByID(ctx context.Context, id string) (*models.User, error) {
	userID, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return nil, apperrors.Unauthorized("Invalid session subject")
	}
	var user models.User
	if err := las.db.WithContext(ctx).First(&user, uint(userID)).Error; err != nil {
		return nil, apperrors.Unauthorized("User no longer exists")
	}
	return &user, nil
}

func (las *LocalAuthService) issue(user models.User) (*AuthSession, error) {
	au := toAuthUser(user)
	access, expiresAt, err := signToken(las.secret, au, tokenTypeAccess, las.accessTTL)
	if err != nil {
		return nil, apperrors.Internal("Failed to generate token", err)
	}
	refresh, _, err := signToken(las.secret, au, tokenTypeRefresh, las.refreshTTL)
	if err != nil {
		return nil, apperrors.Internal("Failed to generate token", err)
	}
	return &AuthSession{AccessToken: access, RefreshToken: refresh, ExpiresAt: expiresAt, User: au}, nil
}

// PurgeUser removes an account row for good, with its reset tokens, so the
// address can be registered again.
func PurgeUser(tx *gorm.DB, id uint) error {
	if err := tx.Where("user_id = ?", id).Delete(&models.PasswordReset{}).Error; err != nil {
		return err
	}
	return tx.Unscoped().Delete(&models.User{}, id).Error
}

func toAuthUser(user models.User) AuthUser {
	return AuthUser{
		ID:    strconv.FormatUint(uint64(user.ID), 10),
		Email: user.Email,
		Role:  string(user.Role),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
