// Package mcpserver exposes the session API as MCP tools over stdio. Every
// tool forwards to a running session-vault HTTP server.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/iksnae/session-vault/internal"
	"github.com/iksnae/session-vault/internal/server"
)

// Backend is the part of the HTTP client the tools call
type Backend interface {
	Create(ctx context.Context, req server.CreateSessionRequest) (*server.CreateSessionResponse, error)
	Get(ctx context.Context, id string) (*internal.Session, error)
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, filters internal.SearchFilters) (*server.SearchResponse, error)
	FindSimilar(ctx context.Context, text string, limit int) (*server.SearchResponse, error)
	ListRecent(ctx context.Context, limit int, agentType internal.AgentType) ([]*internal.Session, error)
	Stats(ctx context.Context) (*server.StatsResponse, error)
}

// SaveSessionInput is the argument of save_session
type SaveSessionInput struct {
	Content   string   `json:"content" jsonschema:"the full conversation text"`
	AgentID   string   `json:"agent_id" jsonschema:"identifier of the agent instance saving the session"`
	AgentType string   `json:"agent_type" jsonschema:"one of claude, cursor, other"`
	Title     string   `json:"title,omitempty" jsonschema:"optional title; generated from the content when empty"`
	Project   string   `json:"project,omitempty" jsonschema:"project the conversation belongs to"`
	Tags      []string `json:"tags,omitempty" jsonschema:"free-form labels"`
}

// SearchInput is the argument of search_sessions
type SearchInput struct {
	Query     string   `json:"query,omitempty" jsonschema:"words to look for in title, content and tags"`
	AgentType string   `json:"agent_type,omitempty" jsonschema:"restrict to one agent type"`
	Project   string   `json:"project,omitempty" jsonschema:"restrict to one project"`
	Tags      []string `json:"tags,omitempty" jsonschema:"match sessions carrying any of these tags"`
	Limit     int      `json:"limit,omitempty" jsonschema:"page size, at most 100"`
	Offset    int      `json:"offset,omitempty" jsonschema:"number of results to skip"`
}

// IDInput carries a session id
type IDInput struct {
	ID string `json:"id" jsonschema:"session id"`
}

// SimilarInput is the argument of find_similar
type SimilarInput struct {
	Text  string `json:"text" jsonschema:"text to find related sessions for"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of sessions, default 5"`
}

// RecentInput is the argument of list_recent
type RecentInput struct {
	Limit     int    `json:"limit,omitempty" jsonschema:"maximum number of sessions, default 20"`
	AgentType string `json:"agent_type,omitempty" jsonschema:"restrict to one agent type"`
}

// EmptyInput is used by tools without arguments
type EmptyInput struct{}

// Server wraps an MCP server whose tools forward to backend
type Server struct {
	mcp     *mcp.Server
	backend Backend
	logger  *zap.Logger
}

// New creates the MCP server and registers its tools
func New(backend Backend, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		mcp:     mcp.NewServer(&mcp.Implementation{Name: "session-vault", Version: version}, nil),
		backend: backend,
		logger:  logger,
	}

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "save_session",
		Description: "Store a conversation so it can be searched later",
	}, s.saveSession)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_sessions",
		Description: "Search stored conversations by text, agent type, project and tags",
	}, s.searchSessions)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_session",
		Description: "Fetch one stored conversation by id",
	}, s.getSession)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "find_similar",
		Description: "Find stored conversations related to a piece of text",
	}, s.findSimilar)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_recent",
		Description: "List the most recently stored conversations",
	}, s.listRecent)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "session_stats",
		Description: "Count stored conversations per agent type and project",
	}, s.sessionStats)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "delete_session",
		Description: "Delete one stored conversation by id",
	}, s.deleteSession)

	return s
}

// MCP returns the underlying SDK server
func (s *Server) MCP() *mcp.Server {
	return s.mcp
}

// Run serves tools over stdin/stdout until ctx is done or the peer disconnects
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server starting on stdio")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) saveSession(ctx context.Context, _ *mcp.CallToolRequest, in SaveSessionInput) (*mcp.CallToolResult, any, error) {
	resp, err := s.backend.Create(ctx, server.CreateSessionRequest{
		Title:           in.Title,
		AgentID:         in.AgentID,
		AgentType:       internal.AgentType(in.AgentType),
		ProjectContext:  in.Project,
		OriginalContent: in.Content,
		Tags:            in.Tags,
	})
	if err != nil {
		return s.fail("save_session", err)
	}
	return jsonResult(resp)
}

func (s *Server) searchSessions(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, any, error) {
	resp, err := s.backend.Search(ctx, internal.SearchFilters{
		Query:          in.Query,
		AgentType:      internal.AgentType(in.AgentType),
		ProjectContext: in.Project,
		Tags:           in.Tags,
		Limit:          in.Limit,
		Offset:         in.Offset,
	})
	if err != nil {
		return s.fail("search_sessions", err)
	}
	return jsonResult(resp)
}

func (s *Server) getSession(ctx context.Context, _ *mcp.CallToolRequest, in IDInput) (*mcp.CallToolResult, any, error) {
	session, err := s.backend.Get(ctx, in.ID)
	if err != nil {
		return s.fail("get_session", err)
	}
	return jsonResult(session)
}

func (s *Server) findSimilar(ctx context.Context, _ *mcp.CallToolRequest, in SimilarInput) (*mcp.CallToolResult, any, error) {
	resp, err := s.backend.FindSimilar(ctx, in.Text, in.Limit)
	if err != nil {
		return s.fail("find_similar", err)
	}
	return jsonResult(resp)
}

func (s *Server) listRecent(ctx context.Context, _ *mcp.CallToolRequest, in RecentInput) (*mcp.CallToolResult, any, error) {
	sessions, err := s.backend.ListRecent(ctx, in.Limit, internal.AgentType(in.AgentType))
	if err != nil {
		return s.fail("list_recent", err)
	}
	return jsonResult(server.SessionsResponse{Sessions: sessions, Count: len(sessions)})
}

func (s *Server) sessionStats(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, any, error) {
	stats, err := s.backend.Stats(ctx)
	if err != nil {
		return s.fail("session_stats", err)
	}
	return jsonResult(stats)
}

func (s *Server) deleteSession(ctx context.Context, _ *mcp.CallToolRequest, in IDInput) (*mcp.CallToolResult, any, error) {
	if err := s.backend.Delete(ctx, in.ID); err != nil {
		return s.fail("delete_session", err)
	}
	return jsonResult(server.DeleteResponse{Deleted: 1})
}

// fail reports a backend error to the model as a tool error result
func (s *Server) fail(tool string, err error) (*mcp.CallToolResult, any, error) {
	s.logger.Warn("tool call failed", zap.String("tool", tool), zap.Error(err))
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("%s: %v", tool, err)}},
	}, nil, nil
}

func jsonResult(v interface{}) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encode result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
