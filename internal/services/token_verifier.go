package services

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/retrofails/backend/internal/apperrors"
)

// TokenVerifier turns an access token into the user it was issued to.
type TokenVerifier interface {
	Verify(ctx context.Context, accessToken string) (*AuthUser, error)
}

// JWTVerifier checks HS256 access tokens locally with the shared secret.
// Without a secret it asks the auth provider instead.
type JWTVerifier struct {
	secret   []byte
	provider AuthProvider
}

func NewJWTVerifier(secret string, provider AuthProvider) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), provider: provider}
}

// accessClaims matches both the hosted provider's tokens and the ones
// LocalAuthService issues.
type accessClaims struct {
	Email     string `json:"email"`
	Role      string `json:"role"`
	TokenType string `json:"typ,omitempty"`
	jwt.RegisteredClaims
}

func (v *JWTVerifier) Verify(ctx context.Context, accessToken string) (*AuthUser, error) {
	if accessToken == "" {
		return nil, apperrors.Unauthorized("Not signed in")
	}
	if len(v.secret) == 0 {
		if v.provider == nil {
			return nil, apperrors.Internal("No token verifier configured", nil)
		}
		return v.provider.CurrentUser(ctx, accessToken)
	}

	claims := &accessClaims{}
	token, err := jwt.ParseWithClaims(accessToken, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperrors.Unauthorized("Invalid or expired session")
	}
	if claims.TokenType == tokenTypeRefresh {
		return nil, apperrors.Unauthorized("Invalid or expired session")
	}
	if claims.Subject == "" {
		return nil, apperrors.Unauthorized("Session token has no subject")
	}
	return &AuthUser{ID: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
}

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// signToken issues an HS256 token of the given type.
func signToken(secret []byte, user AuthUser, tokenType string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := accessClaims{
		Email:     user.Email,
		Role:      user.Role,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}
	return signed, expiresAt, nil
}
