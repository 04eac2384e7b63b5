package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/retrofails/backend/internal/apperrors"
	"github.com/retrofails/backend/internal/logger"
)

// HostedClient talks to the hosted auth/data service: a REST table API under
// /rest/v1, the auth API under /auth/v1 and object storage under /storage/v1.
// It implements IncidentSource, AuthProvider and ImageStore.
type HostedClient struct {
	baseURL    string
	anonKey    string
	serviceKey string
	table      string
	bucket     string
	siteURL    string
	client     *http.Client
}

type HostedClientConfig struct {
	BaseURL    string
	AnonKey    string
	ServiceKey string
	Table      string
	Bucket     string
	SiteURL    string
	Timeout    time.Duration
}

func NewHostedClient(cfg HostedClientConfig) *HostedClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	table := cfg.Table
	if table == "" {
		table = "incidents"
	}
	return &HostedClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		anonKey:    cfg.AnonKey,
		serviceKey: cfg.ServiceKey,
		table:      table,
		bucket:     cfg.Bucket,
		siteURL:    cfg.SiteURL,
		client:     &http.Client{Timeout: timeout},
	}
}

// hostedRequest describes one call. token is sent as the bearer; when empty
// the service key (or the anon key) is used instead.
type hostedRequest struct {
	method      string
	path        string
	query       url.Values
	token       string
	body        interface{}
	rawBody     []byte
	contentType string
	headers     map[string]string
}

func (hc *HostedClient) do(ctx context.Context, r hostedRequest, out interface{}) error {
	endpoint := hc.baseURL + r.path
	if len(r.query) > 0 {
		endpoint += "?" + r.query.Encode()
	}
	log := logger.WithBackend(r.method, r.path)

	var body io.Reader
	contentType := r.contentType
	switch {
	case r.rawBody != nil:
		body = bytes.NewReader(r.rawBody)
	case r.body != nil:
		jsonData, err := json.Marshal(r.body)
		if err != nil {
			return apperrors.Internal("Failed to encode backend request", err)
		}
		body = bytes.NewBuffer(jsonData)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, r.method, endpoint, body)
	if err != nil {
		return apperrors.Internal("Failed to build backend request", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if hc.anonKey != "" {
		req.Header.Set("apikey", hc.anonKey)
	}
	if bearer := hc.bearer(r.token); bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := hc.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		log.WithField("elapsed", elapsed.String()).WithError(err).Error("Backend request failed")
		return apperrors.Backend(http.StatusBadGateway, "Backend is unavailable", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Backend(http.StatusBadGateway, "Failed to read backend response", err)
	}

	log.WithField("status", resp.StatusCode).WithField("elapsed", elapsed.String()).Debug("Backend request completed")

	if resp.StatusCode >= 400 {
		message := backendMessage(respBody)
		log.WithField("status", resp.StatusCode).WithField("message", message).Warn("Backend returned an error")
		return apperrors.Backend(resp.StatusCode, message, fmt.Errorf("backend returned status %d", resp.StatusCode))
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return apperrors.Backend(http.StatusBadGateway, "Failed to decode backend response", err)
	}
	return nil
}

func (hc *HostedClient) bearer(token string) string {
	if token != "" {
		return token
	}
	if hc.serviceKey != "" {
		return hc.serviceKey
	}
	return hc.anonKey
}

// backendMessage pulls a human readable message out of an error body.
func backendMessage(body []byte) string {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.TrimSpace(string(body))
	}
	for _, key := range []string{"msg", "message", "error_description", "error"} {
		if v, ok := payload[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
