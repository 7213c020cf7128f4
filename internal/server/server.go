// Package server exposes the session store over HTTP with JSON bodies.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/iksnae/session-vault/internal"
	"github.com/iksnae/session-vault/internal/config"
	"github.com/iksnae/session-vault/internal/content"
	"github.com/iksnae/session-vault/internal/store"
)

// SessionStore is the subset of *store.Store the routes use
type SessionStore interface {
	Create(ctx context.Context, fields internal.SessionFields) (string, error)
	Get(ctx context.Context, id string) (*internal.Session, error)
	Update(ctx context.Context, id string, update internal.SessionUpdate) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	DeleteMany(ctx context.Context, ids []string) (int64, error)
	DeleteOlderThan(ctx context.Context, days int, agentType internal.AgentType, project string) (int64, error)
	DeleteByAgent(ctx context.Context, agentID string) (int64, error)
	DeleteByProject(ctx context.Context, project string) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
	ListRecent(ctx context.Context, limit int, agentType internal.AgentType) ([]*internal.Session, error)
	ListByAgent(ctx context.Context, agentID string, limit int) ([]*internal.Session, error)
	Stats(ctx context.Context) (*internal.Stats, error)
	Search(ctx context.Context, filters internal.SearchFilters) ([]internal.SearchResult, error)
	FindSimilar(ctx context.Context, text string, limit int) ([]internal.SearchResult, error)
	Capability() store.Capability
}

// maxBulkDelete bounds the id list of one bulk-delete request
const maxBulkDelete = 1000

// Server is the HTTP routing layer
type Server struct {
	store           SessionStore
	processor       content.Processor
	logger          *zap.Logger
	maxContentBytes int
	limiter         *RateLimiter
	mux             *http.ServeMux
	server          *http.Server
	startTime       time.Time
}

// Option configures the Server
type Option func(*Server)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithProcessor replaces the default content processor
func WithProcessor(p content.Processor) Option {
	return func(s *Server) { s.processor = p }
}

// WithRateLimiter puts a per-client limiter in front of the API routes
func WithRateLimiter(rl *RateLimiter) Option {
	return func(s *Server) { s.limiter = rl }
}

// WithMaxContentBytes bounds original_content on writes
func WithMaxContentBytes(n int) Option {
	return func(s *Server) { s.maxContentBytes = n }
}

// New creates the server and registers its routes
func New(st SessionStore, opts ...Option) *Server {
	s := &Server{
		store:           st,
		processor:       content.Default(),
		logger:          zap.NewNop(),
		maxContentBytes: config.DefaultMaxContentBytes,
		startTime:       time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /api/sessions", s.handleCreate)
	mux.HandleFunc("GET /api/sessions", s.handleSearch)
	mux.HandleFunc("DELETE /api/sessions", s.handleDeleteAll)
	mux.HandleFunc("GET /api/sessions/recent", s.handleRecent)
	mux.HandleFunc("POST /api/sessions/similar", s.handleSimilar)
	mux.HandleFunc("POST /api/sessions/bulk-delete", s.handleBulkDelete)
	mux.HandleFunc("DELETE /api/sessions/older-than/{days}", s.handleDeleteOlderThan)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGet)
	mux.HandleFunc("PUT /api/sessions/{id}", s.handleUpdate)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDelete)

	mux.HandleFunc("GET /api/agents/{agentID}/sessions", s.handleListByAgent)
	mux.HandleFunc("DELETE /api/agents/{agentID}/sessions", s.handleDeleteByAgent)
	mux.HandleFunc("DELETE /api/projects/{project}/sessions", s.handleDeleteByProject)

	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("POST /api/process", s.handleProcess)

	s.mux = mux
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler for use with httptest or custom servers
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	if s.limiter != nil {
		h = s.limiter.Middleware(h)
	}
	h = s.logRequests(h)
	h = s.recoverPanics(h)
	return requestID(h)
}

// ListenAndServe binds addr and serves until Shutdown
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown. A clean shutdown returns nil.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("http server starting",
		zap.String("addr", ln.Addr().String()),
		zap.String("capability", string(s.store.Capability())))

	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
