package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iksnae/session-vault/internal"
	"github.com/iksnae/session-vault/internal/content"
)

// jsonOverhead leaves room for the envelope around original_content
const jsonOverhead = 64 * 1024

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:     "ok",
		Capability: string(s.store.Capability()),
		Uptime:     time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if !req.AgentType.Valid() {
		writeValidation(w, &internal.ValidationError{Field: "agent_type", Message: agentTypeMessage()})
		return
	}
	if strings.TrimSpace(req.AgentID) == "" {
		writeValidation(w, &internal.ValidationError{Field: "agent_id", Message: "is required"})
		return
	}
	if err := s.checkContent(req.OriginalContent); err != nil {
		writeValidation(w, err)
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = s.processor.Process(req.OriginalContent).GeneratedTitle
	}

	id, err := s.store.Create(r.Context(), internal.SessionFields{
		Title:           title,
		AgentID:         req.AgentID,
		AgentType:       req.AgentType,
		ProjectContext:  req.ProjectContext,
		OriginalContent: req.OriginalContent,
		Tags:            req.Tags,
	})
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateSessionResponse{
		ID:          id,
		Title:       title,
		ContentHash: content.Hash(req.OriginalContent),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	filters, err := parseSearchFilters(r)
	if err != nil {
		writeValidation(w, err)
		return
	}

	results, err := s.store.Search(r.Context(), filters)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeResults(w, results)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), "limit", internal.DefaultSearchLimit)
	if err != nil {
		writeValidation(w, err)
		return
	}
	agentType, err := agentTypeParam(q.Get("agent_type"))
	if err != nil {
		writeValidation(w, err)
		return
	}

	sessions, err := s.store.ListRecent(r.Context(), limit, agentType)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionsResponse{Sessions: sessions, Count: len(sessions)})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	session, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var update internal.SessionUpdate
	if !s.decodeBody(w, r, &update) {
		return
	}

	if update.Empty() {
		writeValidation(w, &internal.ValidationError{Field: "body", Message: "no fields to update"})
		return
	}
	if update.AgentType != nil && !update.AgentType.Valid() {
		writeValidation(w, &internal.ValidationError{Field: "agent_type", Message: agentTypeMessage()})
		return
	}
	if update.AgentID != nil && strings.TrimSpace(*update.AgentID) == "" {
		writeValidation(w, &internal.ValidationError{Field: "agent_id", Message: "must not be empty"})
		return
	}
	if update.OriginalContent != nil {
		if err := s.checkContent(*update.OriginalContent); err != nil {
			writeValidation(w, err)
			return
		}
	}

	found, err := s.store.Update(r.Context(), r.PathValue("id"), update)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "not_found", internal.ErrNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, UpdateResponse{Updated: true})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	found, err := s.store.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "not_found", internal.ErrNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Deleted: 1})
}

func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req BulkDeleteRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if len(req.IDs) == 0 {
		writeValidation(w, &internal.ValidationError{Field: "ids", Message: "must not be empty"})
		return
	}
	if len(req.IDs) > maxBulkDelete {
		writeValidation(w, &internal.ValidationError{Field: "ids", Message: fmt.Sprintf("at most %d per request", maxBulkDelete)})
		return
	}

	n, err := s.store.DeleteMany(r.Context(), req.IDs)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Deleted: n})
}

func (s *Server) handleDeleteOlderThan(w http.ResponseWriter, r *http.Request) {
	days, err := strconv.Atoi(r.PathValue("days"))
	if err != nil || days < 0 {
		writeValidation(w, &internal.ValidationError{Field: "days", Message: "must be a non-negative integer"})
		return
	}
	q := r.URL.Query()
	agentType, err := agentTypeParam(q.Get("agent_type"))
	if err != nil {
		writeValidation(w, err)
		return
	}

	n, err := s.store.DeleteOlderThan(r.Context(), days, agentType, q.Get("project"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Deleted: n})
}

func (s *Server) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		writeValidation(w, &internal.ValidationError{Field: "confirm", Message: "deleting every session requires confirm=true"})
		return
	}

	n, err := s.store.DeleteAll(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.logger.Warn("all sessions deleted", zap.Int64("count", n), zap.String("request_id", RequestIDFrom(r.Context())))
	writeJSON(w, http.StatusOK, DeleteResponse{Deleted: n})
}

func (s *Server) handleListByAgent(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), "limit", internal.DefaultSearchLimit)
	if err != nil {
		writeValidation(w, err)
		return
	}

	sessions, err := s.store.ListByAgent(r.Context(), r.PathValue("agentID"), limit)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionsResponse{Sessions: sessions, Count: len(sessions)})
}

func (s *Server) handleDeleteByAgent(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.DeleteByAgent(r.Context(), r.PathValue("agentID"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Deleted: n})
}

func (s *Server) handleDeleteByProject(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.DeleteByProject(r.Context(), r.PathValue("project"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Deleted: n})
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	var req SimilarRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeValidation(w, &internal.ValidationError{Field: "text", Message: "is required"})
		return
	}
	if req.Limit < 0 {
		writeValidation(w, &internal.ValidationError{Field: "limit", Message: "must not be negative"})
		return
	}

	results, err := s.store.FindSimilar(r.Context(), req.Text, req.Limit)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeResults(w, results)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{Stats: *stats, Capability: string(s.store.Capability())})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if err := s.checkContent(req.Content); err != nil {
		var ve *internal.ValidationError
		if errors.As(err, &ve) {
			ve.Field = "content"
		}
		writeValidation(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.processor.Process(req.Content))
}

// --- helpers ---

func (s *Server) writeResults(w http.ResponseWriter, results []internal.SearchResult) {
	if results == nil {
		results = []internal.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{
		Results:    results,
		Count:      len(results),
		Capability: string(s.store.Capability()),
	})
}

// decodeBody reads a JSON body bounded by the content limit. It writes the
// error response itself and reports whether decoding succeeded.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, int64(s.maxContentBytes)+jsonOverhead)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", "request body too large")
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, "validation_error", "request body is empty")
		default:
			writeError(w, http.StatusBadRequest, "validation_error", "invalid JSON: "+err.Error())
		}
		return false
	}
	return true
}

func (s *Server) checkContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return &internal.ValidationError{Field: "original_content", Message: "is required"}
	}
	if len(content) > s.maxContentBytes {
		return &internal.ValidationError{
			Field:   "original_content",
			Message: fmt.Sprintf("exceeds %d bytes", s.maxContentBytes),
		}
	}
	return nil
}

// writeStoreError maps store errors onto HTTP statuses
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case internal.IsValidation(err):
		writeValidation(w, err)
	case internal.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, internal.ErrStoreClosed):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err.Error())
	default:
		s.logger.Error("store operation failed",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestIDFrom(r.Context())))
		writeError(w, http.StatusInternalServerError, "storage_error", "internal storage error")
	}
}

func writeValidation(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, "validation_error", err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// --- query parsing ---

func parseSearchFilters(r *http.Request) (internal.SearchFilters, error) {
	q := r.URL.Query()
	var f internal.SearchFilters
	var err error

	f.Query = strings.TrimSpace(q.Get("q"))
	if f.AgentType, err = agentTypeParam(q.Get("agent_type")); err != nil {
		return f, err
	}
	f.ProjectContext = q.Get("project")
	for _, raw := range q["tags"] {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				f.Tags = append(f.Tags, tag)
			}
		}
	}
	if f.DateFrom, err = dateParam(q.Get("date_from"), "date_from"); err != nil {
		return f, err
	}
	if f.DateTo, err = dateParam(q.Get("date_to"), "date_to"); err != nil {
		return f, err
	}
	if f.Limit, err = intParam(q.Get("limit"), "limit", 0); err != nil {
		return f, err
	}
	if f.Offset, err = intParam(q.Get("offset"), "offset", 0); err != nil {
		return f, err
	}
	return f, nil
}

func agentTypeParam(raw string) (internal.AgentType, error) {
	if raw == "" {
		return "", nil
	}
	at := internal.AgentType(raw)
	if !at.Valid() {
		return "", &internal.ValidationError{Field: "agent_type", Message: agentTypeMessage()}
	}
	return at, nil
}

func intParam(raw, field string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &internal.ValidationError{Field: field, Message: "must be a non-negative integer"}
	}
	return n, nil
}

// dateParam accepts RFC3339 timestamps or plain dates (midnight UTC)
func dateParam(raw, field string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, &internal.ValidationError{Field: field, Message: "must be RFC3339 or YYYY-MM-DD"}
}

func agentTypeMessage() string {
	names := make([]string, len(internal.AgentTypes))
	for i, at := range internal.AgentTypes {
		names[i] = string(at)
	}
	return "must be one of " + strings.Join(names, ", ")
}
