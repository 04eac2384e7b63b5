package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBackendMapsStatusToType(t *testing.T) {
	tests := []struct {
		status     int
		wantType   Type
		wantStatus int
	}{
		{http.StatusUnauthorized, TypeAuthentication, http.StatusUnauthorized},
		{http.StatusNotFound, TypeNotFound, http.StatusNotFound},
		{http.StatusUnprocessableEntity, TypeValidation, http.StatusUnprocessableEntity},
		{http.StatusInternalServerError, TypeBackend, http.StatusInternalServerError},
		{0, TypeBackend, http.StatusBadGateway},
		{http.StatusOK, TypeBackend, http.StatusBadGateway},
	}

	for _, tt := range tests {
		err := Backend(tt.status, "", nil)
		assert.Equal(t, tt.wantType, err.Type, "status %d", tt.status)
		assert.Equal(t, tt.wantStatus, err.Status, "status %d", tt.status)
		assert.NotEmpty(t, err.Message)
		assert.False(t, err.Timestamp.IsZero())
	}
}

func TestFromKeepsWrappedAppError(t *testing.T) {
	orig := Validation("name is required")
	wrapped := fmt.Errorf("create incident: %w", orig)

	got := From(wrapped)
	assert.Same(t, orig, got)
	assert.True(t, IsType(wrapped, TypeValidation))
}

func TestFromWrapsPlainError(t *testing.T) {
	got := From(errors.New("boom"))
	assert.Equal(t, TypeInternal, got.Type)
	assert.Equal(t, http.StatusInternalServerError, got.Status)
	assert.Nil(t, From(nil))
}

func TestEnvelope(t *testing.T) {
	env := NotFound("Incident not found").Envelope()
	assert.False(t, env.Success)
	assert.Equal(t, "Incident not found", env.Error.Message)
	assert.Equal(t, http.StatusNotFound, env.Error.Status)
}
