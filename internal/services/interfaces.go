package services

import (
	"context"
	"strings"
	"time"

	"github.com/retrofails/backend/internal/apperrors"
	"github.com/retrofails/backend/internal/models"
)

// IncidentSource is where incident records live. accessToken is the caller's
// session token; sources that enforce row-level permissions forward it.
type IncidentSource interface {
	List(ctx context.Context) ([]models.Incident, error)
	Get(ctx context.Context, id models.IncidentID) (*models.Incident, error)
	Create(ctx context.Context, accessToken string, inc models.Incident) (*models.Incident, error)
	Update(ctx context.Context, accessToken string, id models.IncidentID, patch IncidentPatch) (*models.Incident, error)
	Delete(ctx context.Context, accessToken string, ids []models.IncidentID) (int, error)
	Ping(ctx context.Context) error
}

// AuthUser is the signed-in identity.
type AuthUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// AuthSession is an issued token pair. Sign-up may return a session without
// tokens when the provider wants the address confirmed first.
type AuthSession struct {
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expiresAt"`
	User         AuthUser  `json:"user"`
}

func (s *AuthSession) HasTokens() bool {
	return s != nil && s.AccessToken != "" && s.RefreshToken != ""
}

// AuthProvider signs users in and out and runs password recovery.
type AuthProvider interface {
	SignIn(ctx context.Context, email, password string) (*AuthSession, error)
	SignUp(ctx context.Context, email, password string) (*AuthSession, error)
	SignOut(ctx context.Context, accessToken string) error
	Refresh(ctx context.Context, refreshToken string) (*AuthSession, error)
	RecoverPassword(ctx context.Context, email string) error
	ConfirmRecovery(ctx context.Context, token, newPassword string) (*AuthSession, error)
	CurrentUser(ctx context.Context, accessToken string) (*AuthUser, error)
}

// ImageStore keeps uploaded incident images and returns a URL for them.
type ImageStore interface {
	Save(ctx context.Context, accessToken string, img *DecodedImage) (string, error)
}

// IncidentPatch is a partial update. Nil fields are left alone.
type IncidentPatch struct {
	Name          *string `json:"name"`
	Category      *string `json:"category"`
	Severity      *string `json:"severity"`
	IncidentDate  *string `json:"incident_date"`
	Description   *string `json:"description"`
	Cause         *string `json:"cause"`
	Consequences  *string `json:"consequences"`
	TimeToResolve *string `json:"time_to_resolve"`
	ImageURL      *string `json:"image_url"`
}

func (p IncidentPatch) fields() []struct {
	column string
	value  *string
} {
	return []struct {
		column string
		value  *string
	}{
		{"name", p.Name},
		{"category", p.Category},
		{"severity", p.Severity},
		{"incident_date", p.IncidentDate},
		{"description", p.Description},
		{"cause", p.Cause},
		{"consequences", p.Consequences},
		{"time_to_resolve", p.TimeToResolve},
		{"image_url", p.ImageURL},
	}
}

// Changes returns column -> value for the fields that are set.
func (p IncidentPatch) Changes() map[string]interface{} {
	changes := make(map[string]interface{})
	for _, f := range p.fields() {
		if f.value != nil {
			changes[f.column] = *f.value
		}
	}
	return changes
}

func (p IncidentPatch) IsEmpty() bool {
	return len(p.Changes()) == 0
}

// Validate rejects patches that would blank the name or carry a bad severity.
func (p *IncidentPatch) Validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return apperrors.Validation("name cannot be empty")
	}
	if p.Severity != nil && *p.Severity != "" {
		sev, err := models.ParseSeverity(*p.Severity)
		if err != nil {
			return apperrors.Validation(err.Error())
		}
		s := string(sev)
		p.Severity = &s
	}
	if p.IsEmpty() {
		return apperrors.Validation("no fields to update")
	}
	return nil
}

// ValidateIncident checks a new record before it is sent anywhere.
func ValidateIncident(inc *models.Incident) error {
	inc.Name = strings.TrimSpace(inc.Name)
	if inc.Name == "" {
		return apperrors.Validation("name is required")
	}
	if inc.Severity != "" {
		sev, err := models.ParseSeverity(inc.Severity)
		if err != nil {
			return apperrors.Validation(err.Error())
		}
		inc.Severity = string(sev)
	}
	return nil
}
