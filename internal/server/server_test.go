package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iksnae/session-vault/internal"
	"github.com/iksnae/session-vault/internal/content"
	"github.com/iksnae/session-vault/internal/store"
	"github.com/iksnae/session-vault/testutil"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store   *store.Store
	clock   *testutil.Clock
	handler http.Handler
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	clock := testutil.NewClock(t0)
	st, err := store.Open(context.Background(), store.Options{
		Path:          store.MemoryPath,
		ForceFallback: true,
		Clock:         clock.Now,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	return &fixture{store: st, clock: clock, handler: New(st, opts...).Handler()}
}

func (f *fixture) do(t *testing.T, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) seed(t *testing.T, fields ...internal.SessionFields) []string {
	t.Helper()
	var ids []string
	for _, fl := range fields {
		id, err := f.store.Create(context.Background(), fl)
		require.NoError(t, err)
		ids = append(ids, id)
		f.clock.Advance(24 * time.Hour)
	}
	return ids
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, string(store.CapabilityFallback), resp.Capability)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestRequestID_Propagated(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestCreate(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/sessions", CreateSessionRequest{
		Title:           "Database choice",
		AgentID:         "agent-1",
		AgentType:       internal.AgentOther,
		OriginalContent: testutil.ExampleContent,
		Tags:            []string{"db"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[CreateSessionResponse](t, rec)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "Database choice", resp.Title)
	assert.Equal(t, content.Hash(testutil.ExampleContent), resp.ContentHash)

	got, err := f.store.Get(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"db"}, got.Tags)
}

func TestCreate_GeneratesTitle(t *testing.T) {
	f := newFixture(t)

	text := "User: the docker build is slow\nAssistant: enable layer caching in the docker daemon"
	rec := f.do(t, http.MethodPost, "/api/sessions", CreateSessionRequest{
		AgentID:         "agent-1",
		AgentType:       internal.AgentClaude,
		OriginalContent: text,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[CreateSessionResponse](t, rec)
	want := content.Default().Process(text).GeneratedTitle
	assert.Equal(t, want, resp.Title)

	got, err := f.store.Get(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, want, got.Title)
}

type countingProcessor struct {
	calls int
}

func (p *countingProcessor) Process(text string) *content.Result {
	p.calls++
	return content.Default().Process(text)
}

func TestCreate_ProcessesOnlyWithoutTitle(t *testing.T) {
	proc := &countingProcessor{}
	f := newFixture(t, WithProcessor(proc))

	req := CreateSessionRequest{
		Title:           "Given",
		AgentID:         "agent-1",
		AgentType:       internal.AgentOther,
		OriginalContent: strings.Repeat("docker compose up ", 50_000),
	}
	rec := f.do(t, http.MethodPost, "/api/sessions", req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 0, proc.calls)
	assert.Equal(t, content.Hash(req.OriginalContent), decode[CreateSessionResponse](t, rec).ContentHash)

	req.Title = "   "
	rec = f.do(t, http.MethodPost, "/api/sessions", req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 1, proc.calls)
}

func TestCreate_Validation(t *testing.T) {
	valid := func() CreateSessionRequest {
		return CreateSessionRequest{AgentID: "a", AgentType: internal.AgentCursor, OriginalContent: "hello there"}
	}

	tests := []struct {
		name   string
		mutate func(*CreateSessionRequest)
		field  string
	}{
		{"bad agent type", func(r *CreateSessionRequest) { r.AgentType = "gpt" }, "agent_type"},
		{"missing agent type", func(r *CreateSessionRequest) { r.AgentType = "" }, "agent_type"},
		{"missing agent id", func(r *CreateSessionRequest) { r.AgentID = " " }, "agent_id"},
		{"empty content", func(r *CreateSessionRequest) { r.OriginalContent = "" }, "original_content"},
		{"content too large", func(r *CreateSessionRequest) { r.OriginalContent = strings.Repeat("x", 101) }, "original_content"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, WithMaxContentBytes(100))
			req := valid()
			tt.mutate(&req)

			rec := f.do(t, http.MethodPost, "/api/sessions", req)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decode[ErrorResponse](t, rec)
			assert.Equal(t, "validation_error", resp.Error)
			assert.Contains(t, resp.Message, tt.field)
		})
	}
}

func TestCreate_BadBodies(t *testing.T) {
	f := newFixture(t, WithMaxContentBytes(10))

	rec := f.do(t, http.MethodPost, "/api/sessions", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/sessions", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	huge := `{"original_content":"` + strings.Repeat("x", jsonOverhead+100) + `"}`
	rec = f.do(t, http.MethodPost, "/api/sessions", huge)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	ids := f.seed(t, testutil.SampleSessions()...)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"all newest first", "", []string{ids[3], ids[2], ids[1], ids[0]}},
		{"text", "?q=redis", []string{ids[2]}},
		{"agent type", "?agent_type=claude", []string{ids[2], ids[0]}},
		{"project", "?project=webapp", []string{ids[2], ids[1]}},
		{"tags comma list", "?tags=docker,react", []string{ids[1], ids[0]}},
		{"plain date from", "?date_from=2024-03-03", []string{ids[3], ids[2]}},
		{"rfc3339 date to", "?date_to=2024-03-02T12:00:00Z", []string{ids[0]}},
		{"pagination", "?limit=1&offset=1", []string{ids[2]}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, "/api/sessions"+tt.query, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			resp := decode[SearchResponse](t, rec)
			got := make([]string, len(resp.Results))
			for i, r := range resp.Results {
				got[i] = r.ID
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, len(tt.want), resp.Count)
			assert.Equal(t, string(store.CapabilityFallback), resp.Capability)
		})
	}
}

func TestSearch_EmptyResultIsArray(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/sessions?q=nothing", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"results":[]`)
}

func TestSearch_InvalidParams(t *testing.T) {
	f := newFixture(t)
	for _, q := range []string{
		"?agent_type=robot",
		"?limit=abc",
		"?limit=-1",
		"?offset=x",
		"?date_from=yesterday",
		"?date_to=03/01/2024",
	} {
		rec := f.do(t, http.MethodGet, "/api/sessions"+q, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestGetUpdateDelete(t *testing.T) {
	f := newFixture(t)
	ids := f.seed(t, testutil.ExampleSession())
	id := ids[0]

	rec := f.do(t, http.MethodGet, "/api/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[internal.Session](t, rec)
	assert.Equal(t, "Database choice", got.Title)

	rec = f.do(t, http.MethodPut, "/api/sessions/"+id, map[string]interface{}{
		"title": "Renamed",
		"tags":  []string{"db", "sql"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[UpdateResponse](t, rec).Updated)

	updated, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, []string{"db", "sql"}, updated.Tags)
	assert.Equal(t, testutil.ExampleContent, updated.OriginalContent)

	rec = f.do(t, http.MethodDelete, "/api/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[DeleteResponse](t, rec).Deleted)

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rec = f.do(t, method, "/api/sessions/"+id, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, method)
	}
	rec = f.do(t, http.MethodPut, "/api/sessions/"+id, map[string]string{"title": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdate_Validation(t *testing.T) {
	f := newFixture(t)
	id := f.seed(t, testutil.ExampleSession())[0]

	for _, body := range []string{
		`{}`,
		`{"agent_type":"robot"}`,
		`{"agent_id":""}`,
		`{"original_content":"  "}`,
	} {
		rec := f.do(t, http.MethodPut, "/api/sessions/"+id, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestRecentAndAgentRoutes(t *testing.T) {
	f := newFixture(t)
	ids := f.seed(t, testutil.SampleSessions()...)

	rec := f.do(t, http.MethodGet, "/api/sessions/recent?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[SessionsResponse](t, rec)
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, ids[3], resp.Sessions[0].ID)

	rec = f.do(t, http.MethodGet, "/api/sessions/recent?agent_type=cursor", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[SessionsResponse](t, rec)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, ids[1], resp.Sessions[0].ID)

	rec = f.do(t, http.MethodGet, "/api/agents/claude-desktop/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[SessionsResponse](t, rec)
	assert.Equal(t, 2, resp.Count)

	rec = f.do(t, http.MethodDelete, "/api/agents/claude-desktop/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(2), decode[DeleteResponse](t, rec).Deleted)

	rec = f.do(t, http.MethodDelete, "/api/projects/webapp/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[DeleteResponse](t, rec).Deleted)

	stats, err := f.store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
}

func TestBulkDelete(t *testing.T) {
	f := newFixture(t)
	ids := f.seed(t, testutil.SampleSessions()...)

	rec := f.do(t, http.MethodPost, "/api/sessions/bulk-delete", BulkDeleteRequest{IDs: []string{ids[0], ids[1], "missing"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(2), decode[DeleteResponse](t, rec).Deleted)

	rec = f.do(t, http.MethodPost, "/api/sessions/bulk-delete", BulkDeleteRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	tooMany := make([]string, maxBulkDelete+1)
	for i := range tooMany {
		tooMany[i] = "id"
	}
	rec = f.do(t, http.MethodPost, "/api/sessions/bulk-delete", BulkDeleteRequest{IDs: tooMany})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteOlderThan(t *testing.T) {
	f := newFixture(t)
	f.seed(t, testutil.SampleSessions()...)
	// sessions were created on days 0..3; the clock now reads day 4

	rec := f.do(t, http.MethodDelete, "/api/sessions/older-than/1?agent_type=claude", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(2), decode[DeleteResponse](t, rec).Deleted)

	rec = f.do(t, http.MethodDelete, "/api/sessions/older-than/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[DeleteResponse](t, rec).Deleted)

	for _, path := range []string{"/api/sessions/older-than/-1", "/api/sessions/older-than/soon"} {
		rec = f.do(t, http.MethodDelete, path, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestDeleteAll_RequiresConfirm(t *testing.T) {
	f := newFixture(t)
	f.seed(t, testutil.SampleSessions()...)

	rec := f.do(t, http.MethodDelete, "/api/sessions", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/sessions?confirm=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(4), decode[DeleteResponse](t, rec).Deleted)
}

func TestSimilar(t *testing.T) {
	f := newFixture(t)
	ids := f.seed(t, testutil.SampleSessions()...)

	rec := f.do(t, http.MethodPost, "/api/sessions/similar", SimilarRequest{Text: "redis expiry for session lookups"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[SearchResponse](t, rec)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, ids[2], resp.Results[0].ID)

	rec = f.do(t, http.MethodPost, "/api/sessions/similar", SimilarRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	f.seed(t, testutil.SampleSessions()...)

	rec := f.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[StatsResponse](t, rec)
	assert.Equal(t, 4, resp.Total)
	assert.Equal(t, 2, resp.ByAgentType["claude"])
	assert.Equal(t, 1, resp.ByProject[internal.NoProject])
	assert.Contains(t, rec.Body.String(), `"total_sessions":4`)
}

func TestProcess(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/process", ProcessRequest{Content: testutil.ExampleContent})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[content.Result](t, rec)
	assert.Equal(t, content.Hash(testutil.ExampleContent), resp.ContentHash)
	assert.Contains(t, resp.KeyTopics, "postgresql")
	assert.Equal(t, []string{"use PostgreSQL for the database"}, resp.Decisions)

	rec = f.do(t, http.MethodPost, "/api/process", ProcessRequest{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Message, "content")
}

func TestUnknownRouteAndMethod(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/nothing", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(t, http.MethodPatch, "/api/sessions/x", nil).Code)
}

func TestClosedStore(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Close())

	rec := f.do(t, http.MethodGet, "/api/stats", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type failingStore struct {
	SessionStore
}

func (failingStore) Stats(context.Context) (*internal.Stats, error) {
	return nil, &internal.StorageError{Op: "query", Err: errors.New("disk I/O error")}
}

func (failingStore) Get(context.Context, string) (*internal.Session, error) {
	panic("boom")
}

func TestStorageErrorsAndPanics(t *testing.T) {
	h := New(failingStore{}).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk I/O", "storage details stay in the log")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/x", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServeAndShutdown(t *testing.T) {
	f := newFixture(t)
	srv := New(f.store)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.NoError(t, <-done)
}
