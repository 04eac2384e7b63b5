package routes

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/retrofails/backend/internal/apperrors"
	"github.com/retrofails/backend/internal/controllers"
	"github.com/retrofails/backend/internal/middleware"
	"github.com/retrofails/backend/internal/models"
	"github.com/retrofails/backend/internal/navigation"
	"github.com/retrofails/backend/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSource struct {
	incidents []models.Incident
	calls     []string
	lastToken string
}

func (f *fakeSource) List(context.Context) ([]models.Incident, error) {
	f.calls = append(f.calls, "list")
	return f.incidents, nil
}

func (f *fakeSource) Get(_ context.Context, id models.IncidentID) (*models.Incident, error) {
	f.calls = append(f.calls, "get")
	for _, inc := range f.incidents {
		if inc.ID == id {
			found := inc
			return &found, nil
		}
	}
	return nil, apperrors.NotFound("Incident not found")
}

func (f *fakeSource) Create(_ context.Context, token string, inc models.Incident) (*models.Incident, error) {
	f.calls = append(f.calls, "create")
	f.lastToken = token
	inc.ID = "99"
	f.incidents = append(f.incidents, inc)
	return &inc, nil
}

func (f *fakeSource) Update(ctx context.Context, token string, id models.IncidentID, patch services.IncidentPatch) (*models.Incident, error) {
	f.calls = append(f.calls, "update")
	f.lastToken = token
	return f.Get(ctx, id)
}

func (f *fakeSource) Delete(_ context.Context, token string, ids []models.IncidentID) (int, error) {
	f.calls = append(f.calls, "delete")
	f.lastToken = token
	kept := f.incidents[:0]
	deleted := 0
	for _, inc := range f.incidents {
		remove := false
		for _, id := range ids {
			if inc.ID == id {
				remove = true
			}
		}
		if remove {
			deleted++
		} else {
			kept = append(kept, inc)
		}
	}
	f.incidents = kept
	return deleted, nil
}

func (f *fakeSource) Ping(context.Context) error { return nil }

type fakeAuth struct {
	signedOut string
}

func (a *fakeAuth) SignIn(_ context.Context, email, password string) (*services.AuthSession, error) {
	if password != "hunter22" {
		return nil, apperrors.Unauthorized("Invalid login credentials")
	}
	return &services.AuthSession{
		AccessToken:  "access-" + email,
		RefreshToken: "refresh-" + email,
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         services.AuthUser{ID: "u1", Email: email},
	}, nil
}

func (a *fakeAuth) SignUp(_ context.Context, email, _ string) (*services.AuthSession, error) {
	return &services.AuthSession{User: services.AuthUser{ID: "u2", Email: email}}, nil
}

func (a *fakeAuth) SignOut(_ context.Context, token string) error {
	a.signedOut = token
	return nil
}

func (a *fakeAuth) Refresh(_ context.Context, token string) (*services.AuthSession, error) {
	if token != "refresh-a@b.c" {
		return nil, apperrors.Unauthorized("Invalid refresh token")
	}
	return a.SignIn(context.Background(), "a@b.c", "hunter22")
}

func (a *fakeAuth) RecoverPassword(context.Context, string) error { return nil }

func (a *fakeAuth) ConfirmRecovery(context.Context, string, string) (*services.AuthSession, error) {
	return nil, apperrors.Unauthorized("Reset token is invalid or has expired")
}

func (a *fakeAuth) CurrentUser(_ context.Context, token string) (*services.AuthUser, error) {
	if !strings.HasPrefix(token, "access-") {
		return nil, apperrors.Unauthorized("Invalid or expired session")
	}
	return &services.AuthUser{ID: "u1", Email: strings.TrimPrefix(token, "access-")}, nil
}

type memoryImages struct {
	saved []string
}

func (m *memoryImages) Save(_ context.Context, _ string, img *services.DecodedImage) (string, error) {
	m.saved = append(m.saved, img.Name)
	return "/images/" + img.Name, nil
}

type testServer struct {
	router *gin.Engine
	source *fakeSource
	auth   *fakeAuth
	images *memoryImages
}

func setupTestRouter() *testServer {
	source := &fakeSource{incidents: []models.Incident{
		{ID: "1", Name: "Therac-25", Category: "Medical", Severity: "Critical", IncidentDate: "1985-06-03"},
		{ID: "2", Name: "Pentium FDIV bug", Category: "Hardware", Severity: "Moderate", IncidentDate: "1994-10-30"},
		{ID: "3", Name: "Ariane 5", Category: "Space", Severity: "High", IncidentDate: "1996-06-04"},
		{ID: "4", Name: "Mystery outage", Category: "Grid"},
	}}
	auth := &fakeAuth{}
	images := &memoryImages{}

	catalogService := services.NewCatalogService(source, nil)
	navigationService := services.NewNavigationService(catalogService, services.NewMemoryNavigationStore(time.Hour, 100))

	r := gin.New()
	r.Use(middleware.CORS())
	SetupRoutes(r, Dependencies{
		Incidents:  source,
		Auth:       auth,
		Images:     images,
		Verifier:   services.NewJWTVerifier("", auth),
		Catalog:    catalogService,
		Navigation: navigationService,
		Cookies:    controllers.CookieSettings{Secure: true},
	})
	return &testServer{router: r, source: source, auth: auth, images: images}
}

func (ts *testServer) do(method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func cookieNamed(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) apperrors.Envelope {
	t.Helper()
	var env apperrors.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NotNil(t, env.Error)
	return env
}

var sessionCookie = &http.Cookie{Name: middleware.AccessTokenCookie, Value: "access-a@b.c"}

func TestSignInSetsSessionCookies(t *testing.T) {
	ts := setupTestRouter()

	w := ts.do(http.MethodPost, "/api/v1/auth/signin", gin.H{"email": "a@b.c", "password": "hunter22"})
	require.Equal(t, http.StatusOK, w.Code)

	for _, name := range []string{middleware.AccessTokenCookie, middleware.RefreshTokenCookie} {
		c := cookieNamed(w, name)
		require.NotNil(t, c, name)
		assert.True(t, c.HttpOnly)
		assert.True(t, c.Secure)
		assert.Equal(t, "/", c.Path)
		assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	}
	assert.Equal(t, "access-a@b.c", cookieNamed(w, middleware.AccessTokenCookie).Value)
	assert.NotContains(t, w.Body.String(), "refresh-a@b.c")
}

func TestSignInFailures(t *testing.T) {
	ts := setupTestRouter()

	w := ts.do(http.MethodPost, "/api/v1/auth/signin", gin.H{"email": "a@b.c", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, cookieNamed(w, middleware.AccessTokenCookie))

	w = ts.do(http.MethodPost, "/api/v1/auth/signin", gin.H{"email": "not-an-email", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.TypeValidation, decodeError(t, w).Error.Type)
}

func TestSignUpAwaitingConfirmation(t *testing.T) {
	ts := setupTestRouter()

	w := ts.do(http.MethodPost, "/api/v1/auth/signup", gin.H{"email": "new@b.c", "password": "secret1"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"confirmation_required":true`)
	assert.Nil(t, cookieNamed(w, middleware.AccessTokenCookie))
}

func TestSignOutClearsCookies(t *testing.T) {
	ts := setupTestRouter()

	w := ts.do(http.MethodPost, "/api/v1/auth/signout", nil, sessionCookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "access-a@b.c", ts.auth.signedOut)
	for _, name := range []string{middleware.AccessTokenCookie, middleware.RefreshTokenCookie} {
		c := cookieNamed(w, name)
		require.NotNil(t, c, name)
		assert.Equal(t, "", c.Value)
		assert.True(t, c.MaxAge < 0)
	}
}

func TestRefreshRotatesCookies(t *testing.T) {
	ts := setupTestRouter()

	w := ts.do(http.MethodPost, "/api/v1/auth/refresh", nil, &http.Cookie{Name: middleware.RefreshTokenCookie, Value: "refresh-a@b.c"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, cookieNamed(w, middleware.AccessTokenCookie))

	w = ts.do(http.MethodPost, "/api/v1/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionRequiresToken(t *testing.T) {
	ts := setupTestRouter()

	w := ts.do(http.MethodGet, "/api/v1/auth/session", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(http.MethodGet, "/api/v1/auth/session", nil, sessionCookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "a@b.c")
}

func TestConfirmRecoveryRejectsBadToken(t *testing.T) {
	ts := setupTestRouter()

	w := ts.do(http.MethodPost, "/api/v1/auth/confirm", gin.H{"token": "stale", "password": "newpass1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(http.MethodPost, "/api/v1/auth/recover", gin.H{"email": "a@b.c"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListIncidents(t *testing.T) {
	ts := setupTestRouter()

	w := ts.do(http.MethodGet, "/api/v1/incidents", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success   bool              `json:"success"`
		Incidents []models.Incident `json:"incidents"`
		Count     int               `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 4, body.Count)
	assert.Contains(t, w.Body.String(), `"id":1`)
}

func TestGetIncidentNotFound(t *testing.T) {
	ts := setupTestRouter()

	w := ts.do(http.MethodGet, "/api/v1/incidents/404", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	env := decodeError(t, w)
	assert.False(t, env.Success)
	assert.Equal(t, apperrors.TypeNotFound, env.Error.Type)
}

func TestIncidentView(t *testing.T) {
	ts := setupTestRouter()

	w := ts.do(http.MethodGet, "/api/v1/incidents/3/view", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"skin":"windows95"`)

	w = ts.do(http.MethodGet, "/api/v1/incidents/4/view", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Unknown")
}

func TestCreateIncidentRequiresSession(t *testing.T) {
	ts := setupTestRouter()

	w := ts.do(http.MethodPost, "/api/v1/incidents", gin.H{"name": "Y2K"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotContains(t, ts.source.calls, "create")
}

func TestCreateIncidentWithImage(t *testing.T) {
	ts := setupTestRouter()
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

	w := ts.do(http.MethodPost, "/api/v1/incidents", gin.H{
		"name":          "Y2K",
		"severity":      "medium",
		"incident_date": "2000-01-01",
		"image":         "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	}, sessionCookie)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, ts.images.saved, 1)
	assert.Equal(t, "access-a@b.c", ts.source.lastToken)
	assert.Contains(t, w.Body.String(), `"severity":"Moderate"`)
	assert.Contains(t, w.Body.String(), "/images/"+ts.images.saved[0])
}

func TestCreateIncidentValidatesBeforeBackend(t *testing.T) {
	ts := setupTestRouter()

	w := ts.do(http.MethodPost, "/api/v1/incidents", gin.H{"name": "  "}, sessionCookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	big := make([]byte, services.MaxImageBytes+1)
	w = ts.do(http.MethodPost, "/api/v1/incidents", gin.H{
		"name":  "Huge",
		"image": base64.StdEncoding.EncodeToString(big),
	}, sessionCookie)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, apperrors.TypePayloadTooLarge, decodeError(t, w).Error.Type)

	assert.NotContains(t, ts.source.calls, "create")
	assert.Empty(t, ts.images.saved)
}

func TestUpdateIncident(t *testing.T) {
	ts := setupTestRouter()

	w := ts.do(http.MethodPut, "/api/v1/incidents/2", gin.H{"severity": "high"}, sessionCookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, ts.source.calls, "update")

	w = ts.do(http.MethodPut, "/api/v1/incidents/2", gin.H{"severity": "apocalyptic"}, sessionCookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteIncidentsBatch(t *testing.T) {
	ts := setupTestRouter()

	w := ts.do(http.MethodDelete, "/api/v1/incidents", gin.H{"ids": []interface{}{1, "3", 3}}, sessionCookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"deleted":2`)
	assert.Len(t, ts.source.incidents, 2)

	w = ts.do(http.MethodDelete, "/api/v1/incidents", gin.H{"ids": []string{}}, sessionCookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBrowseCatalog(t *testing.T) {
	ts := setupTestRouter()

	w := ts.do(http.MethodGet, "/api/v1/catalog?sort=severity-desc&category=Medical,Space&category=Hardware", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Catalog services.BrowseResult `json:"catalog"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	names := make([]string, 0, len(body.Catalog.Incidents))
	for _, inc := range body.Catalog.Incidents {
		names = append(names, inc.Name)
	}
	assert.Equal(t, []string{"Therac-25", "Ariane 5", "Pentium FDIV bug"}, names)
	assert.Equal(t, 4, body.Catalog.Total)

	w = ts.do(http.MethodGet, "/api/v1/catalog?sort=sideways", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodGet, "/api/v1/catalog/categories", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success": true, "categories": ["Grid", "Hardware", "Medical", "Space"]}`, w.Body.String())
}

func TestNavigationFlow(t *testing.T) {
	ts := setupTestRouter()

	w := ts.do(http.MethodGet, "/api/v1/navigation", nil)
	require.Equal(t, http.StatusOK, w.Code)
	nav := cookieNamed(w, controllers.NavigationSessionCookie)
	require.NotNil(t, nav)
	assert.True(t, nav.HttpOnly)

	w = ts.do(http.MethodPost, "/api/v1/navigation/decades/1990", nil, nav)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"level":"decade"`)

	w = ts.do(http.MethodPost, "/api/v1/navigation/decades/1980", nil, nav)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(http.MethodPost, "/api/v1/navigation/years/abc", nil, nav)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodPost, "/api/v1/navigation/root", nil, nav)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"level":"root"`)

	w = ts.do(http.MethodPut, "/api/v1/navigation/criteria", gin.H{"sort": "bogus"}, nav)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNavigationDeleteSelected(t *testing.T) {
	ts := setupTestRouter()
	nav := &http.Cookie{Name: controllers.NavigationSessionCookie, Value: "visitor-1"}

	w := ts.do(http.MethodPost, "/api/v1/navigation/selection/toggle", nil, nav)
	require.Equal(t, http.StatusOK, w.Code)
	w = ts.do(http.MethodPost, "/api/v1/navigation/click", gin.H{"id": 2}, nav)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"click":"toggled"`)

	w = ts.do(http.MethodDelete, "/api/v1/navigation/selection", nil, nav)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(http.MethodDelete, "/api/v1/navigation/selection", nil, nav, sessionCookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"deleted":1`)
	assert.Len(t, ts.source.incidents, 3)

	w = ts.do(http.MethodGet, "/api/v1/navigation/selection", nil, nav)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":0`)
}

func TestNavigationDetailAfterDeleteSelected(t *testing.T) {
	ts := setupTestRouter()
	nav := &http.Cookie{Name: controllers.NavigationSessionCookie, Value: "visitor-2"}

	w := ts.do(http.MethodPost, "/api/v1/navigation/click", gin.H{"id": 3}, nav)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"index":2`)

	w = ts.do(http.MethodPost, "/api/v1/navigation/selection/toggle", nil, nav)
	require.Equal(t, http.StatusOK, w.Code)
	w = ts.do(http.MethodPost, "/api/v1/navigation/click", gin.H{"id": 1}, nav)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodDelete, "/api/v1/navigation/selection", nil, nav, sessionCookie)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodGet, "/api/v1/navigation", nil, nav)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Navigation services.NavigationResult `json:"navigation"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, navigation.LevelDetail, body.Navigation.State.Level)
	assert.Equal(t, models.IncidentID("3"), body.Navigation.State.Current)
	assert.Equal(t, 1, body.Navigation.State.Index)
	require.NotNil(t, body.Navigation.Detail)
	assert.Equal(t, "Ariane 5", body.Navigation.Detail.Name)
}

func TestPreflightAnswered(t *testing.T) {
	ts := setupTestRouter()

	w := ts.do(http.MethodOptions, "/api/v1/incidents", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Methods"))
}
