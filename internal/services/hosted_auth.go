package services

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/retrofails/backend/internal/apperrors"
)

type hostedUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (u hostedUser) toAuthUser() AuthUser {
	return AuthUser{ID: u.ID, Email: u.Email, Role: u.Role}
}

// hostedTokenResponse is what the token, signup and verify endpoints return.
// Sign-up without auto-confirm returns the bare user object instead, which
// decodes into the embedded fields.
type hostedTokenResponse struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresIn    int        `json:"expires_in"`
	ExpiresAt    int64      `json:"expires_at"`
	User         hostedUser `json:"user"`
	hostedUser
}

func (r hostedTokenResponse) toSession() *AuthSession {
	user := r.User
	if user.ID == "" {
		user = r.hostedUser
	}
	s := &AuthSession{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		User:         user.toAuthUser(),
	}
	switch {
	case r.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(r.ExpiresAt, 0).UTC()
	case r.ExpiresIn > 0:
		s.ExpiresAt = time.Now().Add(time.Duration(r.ExpiresIn) * time.Second).UTC()
	}
	return s
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (hc *HostedClient) SignIn(ctx context.Context, email, password string) (*AuthSession, error) {
	var resp hostedTokenResponse
	err := hc.do(ctx, hostedRequest{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"password"}},
		token:  hc.anonKey,
		body:   credentials{Email: email, Password: password},
	}, &resp)
	if err != nil {
		if apperrors.IsType(err, apperrors.TypeValidation) {
			// the auth API answers bad credentials with 400
			return nil, apperrors.Unauthorized("Invalid login credentials")
		}
		return nil, err
	}
	return resp.toSession(), nil
}

func (hc *HostedClient) SignUp(ctx context.Context, email, password string) (*AuthSession, error) {
	var resp hostedTokenResponse
	err := hc.do(ctx, hostedRequest{
		method: http.MethodPost,
		path:   "/auth/v1/signup",
		token:  hc.anonKey,
		body:   credentials{Email: email, Password: password},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.toSession(), nil
}

func (hc *HostedClient) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	return hc.do(ctx, hostedRequest{
		method: http.MethodPost,
		path:   "/auth/v1/logout",
		token:  accessToken,
	}, nil)
}

func (hc *HostedClient) Refresh(ctx context.Context, refreshToken string) (*AuthSession, error) {
	var resp hostedTokenResponse
	err := hc.do(ctx, hostedRequest{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"refresh_token"}},
		token:  hc.anonKey,
		body:   map[string]string{"refresh_token": refreshToken},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.toSession(), nil
}

func (hc *HostedClient) RecoverPassword(ctx context.Context, email string) error {
	query := url.Values{}
	if hc.siteURL != "" {
		query.Set("redirect_to", hc.siteURL+"/reset-password")
	}
	return hc.do(ctx, hostedRequest{
		method: http.MethodPost,
		path:   "/auth/v1/recover",
		query:  query,
		token:  hc.anonKey,
		body:   map[string]string{"email": email},
	}, nil)
}

// ConfirmRecovery exchanges the emailed recovery token for a session and
// sets the new password with it.
func (hc *HostedClient) ConfirmRecovery(ctx context.Context, token, newPassword string) (*AuthSession, error) {
	var resp hostedTokenResponse
	err := hc.do(ctx, hostedRequest{
		method: http.MethodPost,
		path:   "/auth/v1/verify",
		token:  hc.anonKey,
		body:   map[string]string{"type": "recovery", "token_hash": token},
	}, &resp)
	if err != nil {
		return nil, err
	}
	session := resp.toSession()
	if session.AccessToken == "" {
		return nil, apperrors.Unauthorized("Reset token is invalid or has expired")
	}

	var user hostedUser
	err = hc.do(ctx, hostedRequest{
		method: http.MethodPut,
		path:   "/auth/v1/user",
		token:  session.AccessToken,
		body:   map[string]string{"password": newPassword},
	}, &user)
	if err != nil {
		return nil, err
	}
	if user.ID != "" {
		session.User = user.toAuthUser()
	}
	return session, nil
}

func (hc *HostedClient) CurrentUser(ctx context.Context, accessToken string) (*AuthUser, error) {
	if accessToken == "" {
		return nil, apperrors.Unauthorized("Not signed in")
	}
	var user hostedUser
	if err := hc.do(ctx, hostedRequest{
		method: http.MethodGet,
		path:   "/auth/v1/user",
		token:  accessToken,
	}, &user); err != nil {
		return nil, err
	}
	u := user.toAuthUser()
	return &u, nil
}
