package server

import (
	"github.com/iksnae/session-vault/internal"
)

// CreateSessionRequest is the body of POST /api/sessions
type CreateSessionRequest struct {
	Title           string             `json:"title,omitempty"`
	AgentID         string             `json:"agent_id"`
	AgentType       internal.AgentType `json:"agent_type"`
	ProjectContext  string             `json:"project_context,omitempty"`
	OriginalContent string             `json:"original_content"`
	Tags            []string           `json:"tags,omitempty"`
}

// CreateSessionResponse reports the stored session's id, its title (generated
// when none was supplied) and the digest of its content
type CreateSessionResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	ContentHash string `json:"content_hash"`
}

// SearchResponse wraps search and similarity results
type SearchResponse struct {
	Results    []internal.SearchResult `json:"results"`
	Count      int                     `json:"count"`
	Capability string                  `json:"capability"`
}

// SessionsResponse wraps plain session listings
type SessionsResponse struct {
	Sessions []*internal.Session `json:"sessions"`
	Count    int                 `json:"count"`
}

// SimilarRequest is the body of POST /api/sessions/similar
type SimilarRequest struct {
	Text  string `json:"text"`
	Limit int    `json:"limit,omitempty"`
}

// BulkDeleteRequest is the body of POST /api/sessions/bulk-delete
type BulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

// DeleteResponse reports how many sessions a delete removed
type DeleteResponse struct {
	Deleted int64 `json:"deleted"`
}

// UpdateResponse reports the outcome of PUT /api/sessions/{id}
type UpdateResponse struct {
	Updated bool `json:"updated"`
}

// ProcessRequest is the body of POST /api/process
type ProcessRequest struct {
	Content string `json:"content"`
}

// StatsResponse is the body of GET /api/stats
type StatsResponse struct {
	internal.Stats
	Capability string `json:"capability"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status     string `json:"status"`
	Capability string `json:"capability"`
	Uptime     string `json:"uptime"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
