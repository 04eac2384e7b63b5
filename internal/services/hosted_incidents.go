package services

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/retrofails/backend/internal/apperrors"
	"github.com/retrofails/backend/internal/models"
)

const returnRepresentation = "return=representation"

func (hc *HostedClient) tablePath() string {
	return "/rest/v1/" + hc.table
}

// List fetches every incident in backend order.
func (hc *HostedClient) List(ctx context.Context) ([]models.Incident, error) {
	var incidents []models.Incident
	err := hc.do(ctx, hostedRequest{
		method: http.MethodGet,
		path:   hc.tablePath(),
		query:  url.Values{"select": {"*"}},
	}, &incidents)
	if err != nil {
		return nil, err
	}
	if incidents == nil {
		incidents = []models.Incident{}
	}
	return incidents, nil
}

func (hc *HostedClient) Get(ctx context.Context, id models.IncidentID) (*models.Incident, error) {
	var incidents []models.Incident
	err := hc.do(ctx, hostedRequest{
		method: http.MethodGet,
		path:   hc.tablePath(),
		query:  url.Values{"select": {"*"}, "id": {"eq." + id.String()}},
	}, &incidents)
	if err != nil {
		return nil, err
	}
	if len(incidents) == 0 {
		return nil, apperrors.NotFound("Incident not found")
	}
	return &incidents[0], nil
}

func (hc *HostedClient) Create(ctx context.Context, accessToken string, inc models.Incident) (*models.Incident, error) {
	body := map[string]interface{}{"name": inc.Name}
	if inc.ID != "" {
		body["id"] = inc.ID
	}
	optional := map[string]string{
		"category":        inc.Category,
		"severity":        inc.Severity,
		"incident_date":   inc.IncidentDate,
		"description":     inc.Description,
		"cause":           inc.Cause,
		"consequences":    inc.Consequences,
		"time_to_resolve": inc.TimeToResolve,
		"image_url":       inc.ImageURL,
	}
	for column, value := range optional {
		if value != "" {
			body[column] = value
		}
	}

	var created []models.Incident
	err := hc.do(ctx, hostedRequest{
		method:  http.MethodPost,
		path:    hc.tablePath(),
		token:   accessToken,
		body:    body,
		headers: map[string]string{"Prefer": returnRepresentation},
	}, &created)
	if err != nil {
		return nil, err
	}
	if len(created) == 0 {
		return &inc, nil
	}
	return &created[0], nil
}

func (hc *HostedClient) Update(ctx context.Context, accessToken string, id models.IncidentID, patch IncidentPatch) (*models.Incident, error) {
	var updated []models.Incident
	err := hc.do(ctx, hostedRequest{
		method:  http.MethodPatch,
		path:    hc.tablePath(),
		query:   url.Values{"id": {"eq." + id.String()}},
		token:   accessToken,
		body:    patch.Changes(),
		headers: map[string]string{"Prefer": returnRepresentation},
	}, &updated)
	if err != nil {
		return nil, err
	}
	if len(updated) == 0 {
		return nil, apperrors.NotFound("Incident not found")
	}
	return &updated[0], nil
}

// Delete removes a batch in one request and reports how many rows went away.
func (hc *HostedClient) Delete(ctx context.Context, accessToken string, ids []models.IncidentID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = quoteFilterValue(id.String())
	}

	var deleted []models.Incident
	err := hc.do(ctx, hostedRequest{
		method:  http.MethodDelete,
		path:    hc.tablePath(),
		query:   url.Values{"id": {"in.(" + strings.Join(parts, ",") + ")"}},
		token:   accessToken,
		headers: map[string]string{"Prefer": returnRepresentation},
	}, &deleted)
	if err != nil {
		return 0, err
	}
	return len(deleted), nil
}

// Ping checks that the table endpoint answers.
func (hc *HostedClient) Ping(ctx context.Context) error {
	return hc.do(ctx, hostedRequest{
		method: http.MethodGet,
		path:   hc.tablePath(),
		query:  url.Values{"select": {"id"}, "limit": {"1"}},
	}, nil)
}

// quoteFilterValue quotes values containing characters that are reserved in
// an in.(...) filter.
func quoteFilterValue(v string) string {
	if strings.ContainsAny(v, ",()\" ") {
		return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
	}
	return v
}
