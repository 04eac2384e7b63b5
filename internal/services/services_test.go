package services

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/retrofails/backend/internal/apperrors"
	"github.com/retrofails/backend/internal/catalog"
	"github.com/retrofails/backend/internal/models"
	"github.com/retrofails/backend/internal/navigation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// smallest valid PNG header; enough for content sniffing
var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

type fakeSource struct {
	incidents []models.Incident
	err       error
}

func (f *fakeSource) List(context.Context) ([]models.Incident, error) {
	return f.incidents, f.err
}

func (f *fakeSource) Get(_ context.Context, id models.IncidentID) (*models.Incident, error) {
	for _, inc := range f.incidents {
		if inc.ID == id {
			found := inc
			return &found, nil
		}
	}
	return nil, apperrors.NotFound("Incident not found")
}

func (f *fakeSource) Create(_ context.Context, _ string, inc models.Incident) (*models.Incident, error) {
	f.incidents = append(f.incidents, inc)
	return &inc, nil
}

func (f *fakeSource) Update(ctx context.Context, _ string, id models.IncidentID, patch IncidentPatch) (*models.Incident, error) {
	return f.Get(ctx, id)
}

func (f *fakeSource) Delete(_ context.Context, _ string, ids []models.IncidentID) (int, error) {
	return len(ids), nil
}

func (f *fakeSource) Ping(context.Context) error {
	return f.err
}

func catalogFixture() []models.Incident {
	return []models.Incident{
		{ID: "1", Name: "Therac-25", Category: "Medical", IncidentDate: "1985-06-03"},
		{ID: "2", Name: "Pentium FDIV bug", Category: "Hardware", IncidentDate: "1994-10-30"},
		{ID: "3", Name: "Ariane 5", Category: "Space", IncidentDate: "1996-06-04"},
		{ID: "4", Name: "Northeast blackout", Category: "Grid", IncidentDate: "2003-08-14"},
	}
}

func TestDecodeImage(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString(pngBytes)

	img, err := DecodeImage("data:image/png;base64," + encoded)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.ContentType)
	assert.True(t, strings.HasSuffix(img.Name, ".png"))

	img, err = DecodeImage(encoded)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, img.Data)
}

func TestDecodeImageRejects(t *testing.T) {
	_, err := DecodeImage("data:image/png," + "abc")
	assert.True(t, apperrors.IsType(err, apperrors.TypeValidation))

	_, err = DecodeImage("!!!not base64!!!")
	assert.True(t, apperrors.IsType(err, apperrors.TypeValidation))

	_, err = DecodeImage(base64.StdEncoding.EncodeToString([]byte("plain text, not an image")))
	assert.True(t, apperrors.IsType(err, apperrors.TypeValidation))

	big := make([]byte, MaxImageBytes+1)
	copy(big, pngBytes)
	_, err = DecodeImage(base64.StdEncoding.EncodeToString(big))
	assert.True(t, apperrors.IsType(err, apperrors.TypePayloadTooLarge))
}

func TestDiskImageStore(t *testing.T) {
	dir := t.TempDir()
	store := NewDiskImageStore(dir, "/images/")

	url, err := store.Save(context.Background(), "", &DecodedImage{Data: pngBytes, ContentType: "image/png", Name: "abc.png"})
	require.NoError(t, err)
	assert.Equal(t, "/images/abc.png", url)

	data, err := os.ReadFile(filepath.Join(dir, "abc.png"))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)
}

func TestIncidentPatchValidate(t *testing.T) {
	empty := ""
	patch := IncidentPatch{Name: &empty}
	assert.Error(t, patch.Validate())

	assert.Error(t, (&IncidentPatch{}).Validate())

	sev := "high"
	patch = IncidentPatch{Severity: &sev}
	require.NoError(t, patch.Validate())
	assert.Equal(t, "High", *patch.Severity)
	assert.Equal(t, map[string]interface{}{"severity": "High"}, patch.Changes())
}

func TestValidateIncident(t *testing.T) {
	inc := models.Incident{Name: "  "}
	assert.True(t, apperrors.IsType(ValidateIncident(&inc), apperrors.TypeValidation))

	inc = models.Incident{Name: " Y2K ", Severity: "moderate"}
	require.NoError(t, ValidateIncident(&inc))
	assert.Equal(t, "Y2K", inc.Name)
	assert.Equal(t, "Moderate", inc.Severity)

	inc = models.Incident{Name: "Y2K", Severity: "meh"}
	assert.Error(t, ValidateIncident(&inc))
}

func TestMemoryNavigationStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryNavigationStore(time.Hour, 2)

	_, err := store.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	s := NewNavigationSession()
	s.Search = "bug"
	require.NoError(t, store.Save(ctx, "a", s))
	loaded, err := store.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "bug", loaded.Search)

	require.NoError(t, store.Save(ctx, "b", s))
	require.NoError(t, store.Save(ctx, "c", s))
	assert.Equal(t, 2, store.Len())

	require.NoError(t, store.Delete(ctx, "c"))
	_, err = store.Load(ctx, "c")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func newNavigationService(incidents []models.Incident) *NavigationService {
	cs := NewCatalogService(&fakeSource{incidents: incidents}, nil)
	return NewNavigationService(cs, NewMemoryNavigationStore(time.Hour, 100))
}

func TestNavigationServiceWalk(t *testing.T) {
	ctx := context.Background()
	ns := newNavigationService(catalogFixture())

	res, err := ns.Current(ctx, "visitor")
	require.NoError(t, err)
	assert.Equal(t, navigation.LevelRoot, res.Listing.Level)
	assert.Len(t, res.Listing.Decades, 3)

	res, err = ns.Apply(ctx, "visitor", OpenDecade(1990))
	require.NoError(t, err)
	assert.Equal(t, navigation.LevelDecade, res.State.Level)

	res, err = ns.Apply(ctx, "visitor", OpenYear(1996))
	require.NoError(t, err)
	require.Len(t, res.Listing.Incidents, 1)

	res, err = ns.Apply(ctx, "visitor", Click("3"))
	require.NoError(t, err)
	assert.Equal(t, "opened", res.Click)
	require.NotNil(t, res.Detail)
	assert.Equal(t, "Ariane 5", res.Detail.Name)
	assert.Equal(t, 2, res.State.Index)

	res, err = ns.Apply(ctx, "visitor", Next())
	require.NoError(t, err)
	require.NotNil(t, res.Moved)
	assert.True(t, *res.Moved)
	assert.Equal(t, "Northeast blackout", res.Listing.Current.Name)

	res, err = ns.Apply(ctx, "visitor", Root())
	require.NoError(t, err)
	assert.Equal(t, navigation.LevelRoot, res.State.Level)
}

func TestNavigationServiceMapsErrors(t *testing.T) {
	ctx := context.Background()
	ns := newNavigationService(catalogFixture())

	_, err := ns.Apply(ctx, "v", OpenYear(1994))
	assert.Equal(t, http.StatusConflict, apperrors.From(err).Status)

	_, err = ns.Apply(ctx, "v", OpenDecade(1970))
	assert.Equal(t, http.StatusNotFound, apperrors.From(err).Status)

	_, err = SetCriteria("", nil, "sideways")
	assert.True(t, apperrors.IsType(err, apperrors.TypeValidation))
}

func TestNavigationServiceCriteriaKeepDetail(t *testing.T) {
	ctx := context.Background()
	ns := newNavigationService(catalogFixture())

	_, err := ns.Apply(ctx, "v", OpenIncident(2))
	require.NoError(t, err)

	op, err := SetCriteria("", nil, string(catalog.SortYearDesc))
	require.NoError(t, err)
	res, err := ns.Apply(ctx, "v", op)
	require.NoError(t, err)
	assert.Equal(t, navigation.LevelDetail, res.State.Level)
	assert.Equal(t, "Ariane 5", res.Listing.Current.Name)
	assert.Equal(t, 1, res.State.Index)
	assert.False(t, res.Reset)

	op, err = SetCriteria("therac", nil, "")
	require.NoError(t, err)
	res, err = ns.Apply(ctx, "v", op)
	require.NoError(t, err)
	assert.True(t, res.Reset)
	assert.Equal(t, navigation.LevelRoot, res.State.Level)
	assert.Equal(t, 1, res.Listing.Total)
}

func TestNavigationServiceDetailSurvivesRefetch(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{incidents: catalogFixture()}
	ns := NewNavigationService(NewCatalogService(source, nil), NewMemoryNavigationStore(time.Hour, 10))

	res, err := ns.Apply(ctx, "v", Click("3"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.State.Index)

	source.incidents = source.incidents[1:]
	res, err = ns.Current(ctx, "v")
	require.NoError(t, err)
	assert.False(t, res.Reset)
	assert.Equal(t, navigation.LevelDetail, res.State.Level)
	assert.Equal(t, 1, res.State.Index)
	require.NotNil(t, res.Detail)
	assert.Equal(t, "Ariane 5", res.Detail.Name)

	source.incidents = []models.Incident{source.incidents[0], source.incidents[2]}
	res, err = ns.Current(ctx, "v")
	require.NoError(t, err)
	assert.True(t, res.Reset)
	assert.Equal(t, navigation.LevelRoot, res.State.Level)
	assert.Nil(t, res.Detail)
}

func TestNavigationServiceSelection(t *testing.T) {
	ctx := context.Background()
	ns := newNavigationService(catalogFixture())

	_, err := ns.Apply(ctx, "v", ToggleSelectionMode())
	require.NoError(t, err)
	for _, id := range []models.IncidentID{"1", "4"} {
		res, err := ns.Apply(ctx, "v", Click(id))
		require.NoError(t, err)
		assert.Equal(t, "toggled", res.Click)
	}

	selected, err := ns.Selection(ctx, "v")
	require.NoError(t, err)
	assert.Equal(t, []models.IncidentID{"1", "4"}, selected)

	_, err = ns.Apply(ctx, "v", Deselect([]models.IncidentID{"1"}))
	require.NoError(t, err)
	selected, _ = ns.Selection(ctx, "v")
	assert.Equal(t, []models.IncidentID{"4"}, selected)

	_, err = ns.Apply(ctx, "v", ToggleSelectionMode())
	require.NoError(t, err)
	selected, _ = ns.Selection(ctx, "v")
	assert.Empty(t, selected)
}

func TestNavigationServiceSourceError(t *testing.T) {
	cs := NewCatalogService(&fakeSource{err: apperrors.Backend(http.StatusServiceUnavailable, "down", nil)}, nil)
	ns := NewNavigationService(cs, NewMemoryNavigationStore(time.Hour, 10))

	_, err := ns.Current(context.Background(), "v")
	assert.Equal(t, http.StatusServiceUnavailable, apperrors.From(err).Status)
}

func TestCatalogServiceBrowse(t *testing.T) {
	cs := NewCatalogService(&fakeSource{incidents: catalogFixture()}, nil)
	criteria, err := catalog.ParseCriteria("", []string{"Space,Hardware"}, "name-asc")
	require.NoError(t, err)

	res, err := cs.Browse(context.Background(), criteria)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 2, res.Matched)
	assert.Equal(t, "Ariane 5", res.Incidents[0].Name)
	assert.Equal(t, []string{"Grid", "Hardware", "Medical", "Space"}, res.Categories)
	require.Len(t, res.Decades, 1)
	assert.Equal(t, 1990, res.Decades[0].Decade)
}

func TestJWTVerifier(t *testing.T) {
	ctx := context.Background()
	secret := []byte("test-secret")
	user := AuthUser{ID: "u1", Email: "a@b.c", Role: "authenticated"}

	access, _, err := signToken(secret, user, tokenTypeAccess, time.Minute)
	require.NoError(t, err)
	refresh, _, err := signToken(secret, user, tokenTypeRefresh, time.Minute)
	require.NoError(t, err)
	expired, _, err := signToken(secret, user, tokenTypeAccess, -time.Minute)
	require.NoError(t, err)

	v := NewJWTVerifier(string(secret), nil)
	got, err := v.Verify(ctx, access)
	require.NoError(t, err)
	assert.Equal(t, user, *got)

	for name, token := range map[string]string{"refresh": refresh, "expired": expired, "empty": "", "garbage": "a.b.c"} {
		_, err := v.Verify(ctx, token)
		assert.True(t, apperrors.IsType(err, apperrors.TypeAuthentication), name)
	}

	_, err = NewJWTVerifier("other-secret", nil).Verify(ctx, access)
	assert.Error(t, err)
}

type stubProvider struct {
	AuthProvider
	user *AuthUser
}

func (s stubProvider) CurrentUser(context.Context, string) (*AuthUser, error) {
	if s.user == nil {
		return nil, errors.New("no user")
	}
	return s.user, nil
}

func TestJWTVerifierFallsBackToProvider(t *testing.T) {
	v := NewJWTVerifier("", stubProvider{user: &AuthUser{ID: "u9"}})
	got, err := v.Verify(context.Background(), "opaque")
	require.NoError(t, err)
	assert.Equal(t, "u9", got.ID)
}
