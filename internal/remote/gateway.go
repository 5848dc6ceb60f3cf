// Package remote is the request layer for the hosted entity API. It attaches
// the tenant header and bearer token, and turns non-success responses into
// coded errors carrying the server's message.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/kimhsiao/gosauna/backend/internal/errors"
	"github.com/kimhsiao/gosauna/backend/internal/logging"
)

const (
	// DefaultBaseURL is the hosted API root; the app id is appended as a path segment.
	DefaultBaseURL = "https://go-sauna-now.base44.app/api/apps"

	// DefaultAppID is the tenant the admin console talks to.
	DefaultAppID = "698de9b6841548fa03673e8c"

	// AppIDHeader carries the tenant identifier on every call.
	AppIDHeader = "X-App-Id"
)

// Config configures a Gateway.
type Config struct {
	BaseURL string
	AppID   string
	Timeout time.Duration
	Tokens  TokenSource
}

// Gateway issues authenticated JSON requests. It never retries; callers
// decide whether to degrade.
type Gateway struct {
	baseURL    string
	appID      string
	tokens     TokenSource
	httpClient *http.Client
}

// NewGateway creates a Gateway. Empty fields take the package defaults.
func NewGateway(cfg Config) *Gateway {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.AppID == "" {
		cfg.AppID = DefaultAppID
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Tokens == nil {
		cfg.Tokens = StaticToken("")
	}
	return &Gateway{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		appID:   cfg.AppID,
		tokens:  cfg.Tokens,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// AppID returns the tenant identifier.
func (g *Gateway) AppID() string {
	return g.appID
}

// Request performs method on path (relative to the tenant root) with an
// optional JSON body. A 204 response yields a nil payload.
func (g *Gateway) Request(ctx context.Context, method, path string, body interface{}) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInvalid, "failed to encode request body", err)
		}
		reader = bytes.NewReader(data)
	}

	url := g.baseURL + "/" + g.appID + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalid, "failed to build request", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(AppIDHeader, g.appID)
	if token := g.tokens.Token(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		logging.Debug("remote request failed", map[string]interface{}{
			"method": method,
			"path":   path,
			"error":  err.Error(),
		})
		return nil, apperrors.Wrap(apperrors.ErrRemoteUnavailable, "remote service unreachable", err)
	}
	defer resp.Body.Close()

	logging.Debug("remote request", map[string]interface{}{
		"method":      method,
		"path":        path,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRemoteUnavailable, "failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperrors.WithStatus(resp.StatusCode, errorMessage(payload, resp.StatusCode))
	}

	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, nil
	}
	if !json.Valid(payload) {
		return nil, apperrors.New(apperrors.ErrRemoteDecode, "response is not valid JSON")
	}
	return json.RawMessage(payload), nil
}

// errorMessage picks the body's message, then detail, then a generic text.
func errorMessage(payload []byte, status int) string {
	var body struct {
		Message interface{} `json:"message"`
		Detail  interface{} `json:"detail"`
	}
	if err := json.Unmarshal(payload, &body); err == nil {
		if s := stringValue(body.Message); s != "" {
			return s
		}
		if s := stringValue(body.Detail); s != "" {
			return s
		}
	}
	return fmt.Sprintf("Request failed (%d)", status)
}

func stringValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(data)
	}
}
