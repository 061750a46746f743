package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-leadboard/components/leads"
	"github.com/google/uuid"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// HTTPConfig configures the backend client.
type HTTPConfig struct {
	BaseURL string
	// Auth supplies bearer tokens for mutations. List calls receive their token per request.
	Auth       *leads.AuthContext
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *slog.Logger
	// RequestID overrides uuid.NewString, mostly for tests.
	RequestID func() string
}

// HTTPClient talks to the dashboard's REST backend.
type HTTPClient struct {
	baseURL   string
	auth      *leads.AuthContext
	client    *http.Client
	logger    *slog.Logger
	requestID func() string
}

var (
	_ leads.CollectionFetcher = (*HTTPClient)(nil)
	_ leads.Patcher           = (*HTTPClient)(nil)
	_ leads.EntityClient      = (*HTTPClient)(nil)
)

// NewHTTPClient builds a client for the backend at cfg.BaseURL.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("apiclient: base url is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	requestID := cfg.RequestID
	if requestID == nil {
		requestID = uuid.NewString
	}
	auth := cfg.Auth
	if auth == nil {
		auth = leads.NewAuthContext(nil)
	}
	return &HTTPClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		auth:      auth,
		client:    httpClient,
		logger:    logger,
		requestID: requestID,
	}, nil
}

// List fetches a collection. The body may be {<collection>: [...]} or a bare array.
func (c *HTTPClient) List(ctx context.Context, req leads.ListRequest) ([]leads.Row, error) {
	op := "load " + collectionName(req)
	body, err := c.do(ctx, op, http.MethodGet, req.Path, req.Token, nil)
	if err != nil {
		return nil, err
	}
	rows, err := decodeCollection(body, req.Collection)
	if err != nil {
		return nil, leads.NewServerError(op, http.StatusOK, fmt.Sprintf("failed to %s: %v", op, err))
	}
	return rows, nil
}

// PageInsights fetches the page statistics object.
func (c *HTTPClient) PageInsights(ctx context.Context, path, token string) (leads.PageInsights, error) {
	const op = "load page insights"
	body, err := c.do(ctx, op, http.MethodGet, path, token, nil)
	if err != nil {
		return leads.PageInsights{}, err
	}
	var insights leads.PageInsights
	if err := json.Unmarshal(body, &insights); err != nil {
		return leads.PageInsights{}, leads.NewServerError(op, http.StatusOK, fmt.Sprintf("failed to %s: %v", op, err))
	}
	return insights, nil
}

// Patch issues the bulk annotation PATCH.
func (c *HTTPClient) Patch(ctx context.Context, endpoint string, payload any) (leads.MutationResponse, error) {
	return c.mutate(ctx, "save annotations", http.MethodPatch, endpoint, payload)
}

// Create posts a new entity.
func (c *HTTPClient) Create(ctx context.Context, path string, payload any) (leads.MutationResponse, error) {
	return c.mutate(ctx, "create", http.MethodPost, path, payload)
}

// Delete removes an entity.
func (c *HTTPClient) Delete(ctx context.Context, path string) (leads.MutationResponse, error) {
	return c.mutate(ctx, "delete", http.MethodDelete, path, nil)
}

// Credentials is the sign-in body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for a session.
func (c *HTTPClient) Login(ctx context.Context, path string, creds Credentials) (leads.Session, error) {
	const op = "sign in"
	body, err := c.do(ctx, op, http.MethodPost, path, "", creds)
	if err != nil {
		return leads.Session{}, err
	}
	var resp loginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return leads.Session{}, leads.NewServerError(op, http.StatusOK, fmt.Sprintf("failed to %s: %v", op, err))
	}
	if resp.Token == "" {
		return leads.Session{}, leads.NewServerError(op, http.StatusOK, firstNonEmpty(resp.Message, "failed to sign in: no token returned"))
	}
	return leads.Session{Token: resp.Token, Role: resp.Role, UserID: resp.UserID}, nil
}

type loginResponse struct {
	Token   string `json:"token"`
	Role    string `json:"role"`
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

func (c *HTTPClient) mutate(ctx context.Context, op, method, path string, payload any) (leads.MutationResponse, error) {
	token, err := c.auth.Token(ctx)
	if err != nil {
		return leads.MutationResponse{}, err
	}
	body, status, err := c.send(ctx, op, method, path, token, payload)
	if err != nil {
		return leads.MutationResponse{}, err
	}
	resp := leads.MutationResponse{Status: status}
	if len(bytes.TrimSpace(body)) == 0 {
		return resp, nil
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		// non-JSON 2xx bodies carry no success flag
		return resp, nil
	}
	resp.Success = env.Success
	resp.Message = env.message()
	return resp, nil
}

func (c *HTTPClient) do(ctx context.Context, op, method, path, token string, payload any) ([]byte, error) {
	body, _, err := c.send(ctx, op, method, path, token, payload)
	return body, err
}

func (c *HTTPClient) send(ctx context.Context, op, method, path, token string, payload any) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("apiclient: encode payload: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return nil, 0, fmt.Errorf("apiclient: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	requestID := c.requestID()
	req.Header.Set(RequestIDHeader, requestID)

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return nil, 0, leads.NewTransportError(op, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, leads.NewTransportError(op, fmt.Errorf("read response: %w", err))
	}
	c.logger.Debug("request finished",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	if err := statusError(op, resp.StatusCode, body); err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func (c *HTTPClient) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// statusError maps non-2xx responses onto the leads error taxonomy, surfacing the server's
// message or error field when present.
func statusError(op string, status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	var env envelope
	_ = json.Unmarshal(body, &env)
	msg := env.message()
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		if msg == "" {
			msg = http.StatusText(status)
		}
		if !strings.HasPrefix(msg, "Unauthorized") {
			msg = "Unauthorized: " + msg
		}
		return &leads.Error{Kind: leads.KindUnauthenticated, Op: op, Status: status, Message: msg}
	}
	if msg == "" {
		msg = fmt.Sprintf("failed to %s: HTTP %d", op, status)
	}
	return leads.NewServerError(op, status, msg)
}

type envelope struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (e envelope) message() string {
	return firstNonEmpty(e.Message, e.Error)
}

func decodeCollection(body []byte, collection string) ([]leads.Row, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty response")
	}
	if trimmed[0] == '[' {
		var rows []leads.Row
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, fmt.Errorf("decode rows: %w", err)
		}
		return rows, nil
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	raw, ok := doc[collection]
	if !ok && collection == "" {
		raw, ok = soleArray(doc)
	}
	if !ok {
		return nil, fmt.Errorf("response has no %q collection", collection)
	}
	var rows []leads.Row
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode %s: %w", collection, err)
	}
	return rows, nil
}

// soleArray returns the only array-valued member of doc.
func soleArray(doc map[string]json.RawMessage) (json.RawMessage, bool) {
	var found json.RawMessage
	for _, raw := range doc {
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			if found != nil {
				return nil, false
			}
			found = trimmed
		}
	}
	return found, found != nil
}

func collectionName(req leads.ListRequest) string {
	if req.Collection != "" {
		return req.Collection
	}
	return strings.Trim(req.Path, "/")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
