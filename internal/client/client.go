// Package client talks to a running session-vault server over its JSON API.
//
// Usage:
//
//	c := client.New("http://127.0.0.1:3000")
//	resp, err := c.Search(ctx, internal.SearchFilters{Query: "postgresql"})
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/iksnae/session-vault/internal"
	"github.com/iksnae/session-vault/internal/content"
	"github.com/iksnae/session-vault/internal/server"
)

// APIError is a non-2xx response from the server
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 from the server
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Option configures the Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// Client is the session-vault API client
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the server at baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server address the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload server.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			apiErr.Code = "unknown"
			apiErr.Message = fmt.Sprintf("HTTP %d", resp.StatusCode)
		} else {
			apiErr.Code = payload.Error
			apiErr.Message = payload.Message
		}
		return apiErr
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Health checks the server
func (c *Client) Health(ctx context.Context) (*server.HealthResponse, error) {
	var result server.HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Create stores a session
func (c *Client) Create(ctx context.Context, req server.CreateSessionRequest) (*server.CreateSessionResponse, error) {
	var result server.CreateSessionResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/sessions", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Get fetches one session
func (c *Client) Get(ctx context.Context, id string) (*internal.Session, error) {
	var result internal.Session
	if err := c.doJSON(ctx, http.MethodGet, "/api/sessions/"+url.PathEscape(id), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Update applies a partial update
func (c *Client) Update(ctx context.Context, id string, update internal.SessionUpdate) error {
	return c.doJSON(ctx, http.MethodPut, "/api/sessions/"+url.PathEscape(id), update, nil)
}

// Delete removes one session
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/sessions/"+url.PathEscape(id), nil, nil)
}

// DeleteMany removes the listed sessions and returns how many existed
func (c *Client) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	return c.deleted(ctx, http.MethodPost, "/api/sessions/bulk-delete", server.BulkDeleteRequest{IDs: ids})
}

// DeleteOlderThan removes sessions older than days, optionally scoped
func (c *Client) DeleteOlderThan(ctx context.Context, days int, agentType internal.AgentType, project string) (int64, error) {
	q := url.Values{}
	if agentType != "" {
		q.Set("agent_type", string(agentType))
	}
	if project != "" {
		q.Set("project", project)
	}
	return c.deleted(ctx, http.MethodDelete, withQuery("/api/sessions/older-than/"+strconv.Itoa(days), q), nil)
}

// DeleteByAgent removes every session of agentID
func (c *Client) DeleteByAgent(ctx context.Context, agentID string) (int64, error) {
	return c.deleted(ctx, http.MethodDelete, "/api/agents/"+url.PathEscape(agentID)+"/sessions", nil)
}

// DeleteByProject removes every session of project
func (c *Client) DeleteByProject(ctx context.Context, project string) (int64, error) {
	return c.deleted(ctx, http.MethodDelete, "/api/projects/"+url.PathEscape(project)+"/sessions", nil)
}

// DeleteAll removes every session
func (c *Client) DeleteAll(ctx context.Context) (int64, error) {
	return c.deleted(ctx, http.MethodDelete, "/api/sessions?confirm=true", nil)
}

func (c *Client) deleted(ctx context.Context, method, path string, body interface{}) (int64, error) {
	var result server.DeleteResponse
	if err := c.doJSON(ctx, method, path, body, &result); err != nil {
		return 0, err
	}
	return result.Deleted, nil
}

// Search runs a filtered search
func (c *Client) Search(ctx context.Context, filters internal.SearchFilters) (*server.SearchResponse, error) {
	var result server.SearchResponse
	if err := c.doJSON(ctx, http.MethodGet, withQuery("/api/sessions", searchQuery(filters)), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FindSimilar returns sessions sharing salient terms with text
func (c *Client) FindSimilar(ctx context.Context, text string, limit int) (*server.SearchResponse, error) {
	var result server.SearchResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/sessions/similar", server.SimilarRequest{Text: text, Limit: limit}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListRecent returns the newest sessions
func (c *Client) ListRecent(ctx context.Context, limit int, agentType internal.AgentType) ([]*internal.Session, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if agentType != "" {
		q.Set("agent_type", string(agentType))
	}
	return c.sessions(ctx, withQuery("/api/sessions/recent", q))
}

// ListByAgent returns the newest sessions of agentID
func (c *Client) ListByAgent(ctx context.Context, agentID string, limit int) ([]*internal.Session, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.sessions(ctx, withQuery("/api/agents/"+url.PathEscape(agentID)+"/sessions", q))
}

func (c *Client) sessions(ctx context.Context, path string) ([]*internal.Session, error) {
	var result server.SessionsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Sessions, nil
}

// Stats returns store statistics
func (c *Client) Stats(ctx context.Context) (*server.StatsResponse, error) {
	var result server.StatsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/stats", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Process runs the content processor on the server without storing anything
func (c *Client) Process(ctx context.Context, text string) (*content.Result, error) {
	var result content.Result
	if err := c.doJSON(ctx, http.MethodPost, "/api/process", server.ProcessRequest{Content: text}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func searchQuery(f internal.SearchFilters) url.Values {
	q := url.Values{}
	if f.Query != "" {
		q.Set("q", f.Query)
	}
	if f.AgentType != "" {
		q.Set("agent_type", string(f.AgentType))
	}
	if f.ProjectContext != "" {
		q.Set("project", f.ProjectContext)
	}
	if len(f.Tags) > 0 {
		q.Set("tags", strings.Join(f.Tags, ","))
	}
	if f.DateFrom != nil {
		q.Set("date_from", f.DateFrom.UTC().Format(time.RFC3339Nano))
	}
	if f.DateTo != nil {
		q.Set("date_to", f.DateTo.UTC().Format(time.RFC3339Nano))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	return q
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
