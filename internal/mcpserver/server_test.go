package mcpserver

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iksnae/session-vault/internal"
	"github.com/iksnae/session-vault/internal/client"
	"github.com/iksnae/session-vault/internal/server"
	"github.com/iksnae/session-vault/internal/store"
	"github.com/iksnae/session-vault/testutil"
)

func connect(t *testing.T) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, store.Options{Path: store.MemoryPath, ForceFallback: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	ts := httptest.NewServer(server.New(st).Handler())
	t.Cleanup(ts.Close)

	srv := New(client.New(ts.URL), "test", nil)
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ss, err := srv.MCP().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	c := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	cs, err := c.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func call(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text, res.IsError
}

func TestTools_Listed(t *testing.T) {
	cs := connect(t)

	var names []string
	for tool, err := range cs.Tools(context.Background(), nil) {
		require.NoError(t, err)
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"save_session", "search_sessions", "get_session", "find_similar",
		"list_recent", "session_stats", "delete_session",
	}, names)
}

func TestTools_RoundTrip(t *testing.T) {
	cs := connect(t)
	example := testutil.ExampleSession()

	out, isErr := call(t, cs, "save_session", map[string]any{
		"content":    example.OriginalContent,
		"agent_id":   example.AgentID,
		"agent_type": string(example.AgentType),
		"tags":       example.Tags,
	})
	require.False(t, isErr, out)
	var created server.CreateSessionResponse
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	require.NotEmpty(t, created.ID)
	assert.NotEmpty(t, created.Title, "title is generated")

	out, isErr = call(t, cs, "search_sessions", map[string]any{"query": "postgresql"})
	require.False(t, isErr, out)
	var found server.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &found))
	require.Equal(t, 1, found.Count)
	assert.Equal(t, created.ID, found.Results[0].ID)

	out, isErr = call(t, cs, "get_session", map[string]any{"id": created.ID})
	require.False(t, isErr, out)
	var session internal.Session
	require.NoError(t, json.Unmarshal([]byte(out), &session))
	assert.Equal(t, testutil.ExampleContent, session.OriginalContent)

	out, isErr = call(t, cs, "find_similar", map[string]any{"text": "postgresql databases"})
	require.False(t, isErr, out)
	require.NoError(t, json.Unmarshal([]byte(out), &found))
	assert.Equal(t, 1, found.Count)

	out, isErr = call(t, cs, "list_recent", map[string]any{})
	require.False(t, isErr, out)
	var recent server.SessionsResponse
	require.NoError(t, json.Unmarshal([]byte(out), &recent))
	assert.Equal(t, 1, recent.Count)

	out, isErr = call(t, cs, "session_stats", map[string]any{})
	require.False(t, isErr, out)
	var stats server.StatsResponse
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 1, stats.Total)

	out, isErr = call(t, cs, "delete_session", map[string]any{"id": created.ID})
	require.False(t, isErr, out)

	out, isErr = call(t, cs, "get_session", map[string]any{"id": created.ID})
	assert.True(t, isErr)
	assert.Contains(t, out, "404")
}

func TestTools_BackendValidationSurfaces(t *testing.T) {
	cs := connect(t)

	out, isErr := call(t, cs, "save_session", map[string]any{
		"content":    "hello",
		"agent_id":   "a",
		"agent_type": "robot",
	})
	assert.True(t, isErr)
	assert.Contains(t, out, "agent_type")
}
