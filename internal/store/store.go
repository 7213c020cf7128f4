// Package store persists chat sessions in SQLite and answers searches over
// them, through the FTS5 index when the engine provides it and through
// substring scans otherwise.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iksnae/session-vault/internal"
	"github.com/iksnae/session-vault/internal/content"
)

// TermExtractor picks the salient search terms out of free text
type TermExtractor interface {
	Terms(text string) []string
}

// Options configures Open
type Options struct {
	// Path is the database file, or MemoryPath
	Path string
	// ForceFallback skips the capability probe and disables the FTS index
	ForceFallback bool
	Logger        *zap.Logger
	// Terms defaults to the content package's extractor with default rules
	Terms TermExtractor
	// Clock defaults to time.Now
	Clock func() time.Time
}

// Store is the session store. One Store owns one database handle for the
// lifetime of the process.
type Store struct {
	db         *sql.DB
	capability Capability
	terms      TermExtractor
	logger     *zap.Logger
	clock      func() time.Time
	closed     atomic.Bool
}

// Open opens the database, probes for FTS5 and initializes the schema.
// Any failure is returned and the store must not be used.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, &internal.StorageError{Op: "open", Err: errors.New("database path is empty")}
	}

	db, err := OpenDatabase(ctx, opts.Path)
	if err != nil {
		return nil, &internal.StorageError{Op: "open", Err: err}
	}

	s := &Store{
		db:     db,
		terms:  opts.Terms,
		logger: opts.Logger,
		clock:  opts.Clock,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.terms == nil {
		s.terms = content.Default()
	}
	if s.clock == nil {
		s.clock = time.Now
	}

	if opts.ForceFallback {
		s.capability = CapabilityFallback
		s.logger.Warn("full-text search disabled by configuration, using substring search")
	} else {
		capability, probeErr := ProbeCapability(ctx, db)
		s.capability = capability
		if probeErr != nil {
			s.logger.Warn("FTS5 unavailable, using substring search", zap.Error(probeErr))
		}
	}

	if err := s.Initialize(ctx); err != nil {
		db.Close()
		return nil, &internal.StorageError{Op: "init", Err: err}
	}

	s.logger.Info("session store ready",
		zap.String("path", opts.Path),
		zap.String("capability", string(s.capability)))
	return s, nil
}

// Capability returns the search path chosen at startup
func (s *Store) Capability() Capability {
	return s.capability
}

// Close releases the database handle
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

func (s *Store) indexed() bool {
	return s.capability == CapabilityIndexed
}

func (s *Store) checkOpen() error {
	if s == nil || s.closed.Load() {
		return internal.ErrStoreClosed
	}
	return nil
}

// withTx runs fn in a transaction and commits it. Errors are wrapped in a
// StorageError and the transaction is rolled back.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &internal.StorageError{Op: op, Err: err}
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return &internal.StorageError{Op: op, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &internal.StorageError{Op: op, Err: err}
	}
	return nil
}

// --- Write path ---

// Create stores a new session and returns its id
func (s *Store) Create(ctx context.Context, fields internal.SessionFields) (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", &internal.StorageError{Op: "create", Err: fmt.Errorf("generate id: %w", err)}
	}
	tags, err := encodeTags(fields.Tags)
	if err != nil {
		return "", &internal.StorageError{Op: "create", Err: err}
	}
	now := formatTime(s.clock())

	err = s.withTx(ctx, "create", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chat_sessions (
				id, title, agent_id, agent_type, project_context,
				original_content, tags, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id.String(), fields.Title, fields.AgentID, string(fields.AgentType), nullStr(fields.ProjectContext),
			fields.OriginalContent, tags, now, now,
		); err != nil {
			return err
		}
		return s.indexSession(ctx, tx, id.String(), false)
	})
	if err != nil {
		return "", err
	}

	s.logger.Debug("session created", zap.String("id", id.String()), zap.String("agent_id", fields.AgentID))
	return id.String(), nil
}

// Update applies a partial update. It returns false when the id does not exist.
func (s *Store) Update(ctx context.Context, id string, update internal.SessionUpdate) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}

	var sets []string
	var args []interface{}
	if update.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *update.Title)
	}
	if update.AgentID != nil {
		sets = append(sets, "agent_id = ?")
		args = append(args, *update.AgentID)
	}
	if update.AgentType != nil {
		sets = append(sets, "agent_type = ?")
		args = append(args, string(*update.AgentType))
	}
	if update.ProjectContext != nil {
		sets = append(sets, "project_context = ?")
		args = append(args, nullStr(*update.ProjectContext))
	}
	if update.OriginalContent != nil {
		sets = append(sets, "original_content = ?")
		args = append(args, *update.OriginalContent)
	}
	if update.Tags != nil {
		tags, err := encodeTags(*update.Tags)
		if err != nil {
			return false, &internal.StorageError{Op: "update", Err: err}
		}
		sets = append(sets, "tags = ?")
		args = append(args, tags)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, formatTime(s.clock()), id)

	var found bool
	err := s.withTx(ctx, "update", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE chat_sessions SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		found = true
		return s.indexSession(ctx, tx, id, true)
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// Delete removes one session. It returns false when the id does not exist.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	n, err := s.deleteWhere(ctx, "delete", "id = ?", id)
	return n > 0, err
}

// deleteBatchSize keeps IN lists well below SQLite's bound-parameter limit
const deleteBatchSize = 500

// DeleteMany removes the listed sessions and returns how many existed
func (s *Store) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	var total int64
	err := s.withTx(ctx, "delete many", func(tx *sql.Tx) error {
		for start := 0; start < len(ids); start += deleteBatchSize {
			end := start + deleteBatchSize
			if end > len(ids) {
				end = len(ids)
			}
			batch := ids[start:end]
			args := make([]interface{}, len(batch))
			for i, id := range batch {
				args[i] = id
			}
			n, err := s.deleteWhereTx(ctx, tx, "id IN ("+placeholders(len(batch))+")", args...)
			if err != nil {
				return err
			}
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// DeleteOlderThan removes sessions created more than days days ago,
// optionally restricted to an agent type and a project
func (s *Store) DeleteOlderThan(ctx context.Context, days int, agentType internal.AgentType, project string) (int64, error) {
	if days < 0 {
		return 0, &internal.ValidationError{Field: "days", Message: "must not be negative"}
	}
	cutoff := s.clock().Add(-time.Duration(days) * 24 * time.Hour)

	where := []string{"created_at < ?"}
	args := []interface{}{formatTime(cutoff)}
	if agentType != "" {
		where = append(where, "agent_type = ?")
		args = append(args, string(agentType))
	}
	if project != "" {
		where = append(where, "project_context = ?")
		args = append(args, project)
	}
	return s.deleteWhere(ctx, "delete older than", strings.Join(where, " AND "), args...)
}

// DeleteByAgent removes every session produced by agentID
func (s *Store) DeleteByAgent(ctx context.Context, agentID string) (int64, error) {
	return s.deleteWhere(ctx, "delete by agent", "agent_id = ?", agentID)
}

// DeleteByProject removes every session tagged with the project context
func (s *Store) DeleteByProject(ctx context.Context, project string) (int64, error) {
	return s.deleteWhere(ctx, "delete by project", "project_context = ?", project)
}

// DeleteAll removes every session
func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	return s.deleteWhere(ctx, "delete all", "1 = 1")
}

func (s *Store) deleteWhere(ctx context.Context, op, where string, args ...interface{}) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	var n int64
	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		var err error
		n, err = s.deleteWhereTx(ctx, tx, where, args...)
		return err
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Debug("sessions deleted", zap.String("op", op), zap.Int64("count", n))
	}
	return n, nil
}

// deleteWhereTx removes the index entries, then the rows, matching where
func (s *Store) deleteWhereTx(ctx context.Context, tx *sql.Tx, where string, args ...interface{}) (int64, error) {
	if s.indexed() {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM chat_sessions_fts WHERE session_id IN (SELECT id FROM chat_sessions WHERE "+where+")",
			args...); err != nil {
			return 0, err
		}
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM chat_sessions WHERE "+where, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// indexSession copies the session's current row into the search index
func (s *Store) indexSession(ctx context.Context, tx *sql.Tx, id string, replace bool) error {
	if !s.indexed() {
		return nil
	}
	if replace {
		if _, err := tx.ExecContext(ctx, "DELETE FROM chat_sessions_fts WHERE session_id = ?", id); err != nil {
			return err
		}
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO chat_sessions_fts (session_id, title, original_content, tags)
		SELECT id, title, original_content, tags FROM chat_sessions WHERE id = ?`, id)
	return err
}

// --- Read path ---

// Get returns the session with the given id, or internal.ErrNotFound
func (s *Store) Get(ctx context.Context, id string) (*internal.Session, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM chat_sessions s WHERE s.id = ?", id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s: %w", id, internal.ErrNotFound)
	}
	if err != nil {
		return nil, &internal.StorageError{Op: "get", Err: err}
	}
	return session, nil
}

// ListRecent returns the newest sessions, optionally for one agent type
func (s *Store) ListRecent(ctx context.Context, limit int, agentType internal.AgentType) ([]*internal.Session, error) {
	query := "SELECT " + sessionColumns + " FROM chat_sessions s"
	var args []interface{}
	if agentType != "" {
		query += " WHERE s.agent_type = ?"
		args = append(args, string(agentType))
	}
	query += " ORDER BY s.created_at DESC, s.id DESC LIMIT ?"
	args = append(args, clampLimit(limit))
	return s.listSessions(ctx, "list recent", query, args...)
}

// ListByAgent returns the newest sessions produced by agentID
func (s *Store) ListByAgent(ctx context.Context, agentID string, limit int) ([]*internal.Session, error) {
	query := "SELECT " + sessionColumns + ` FROM chat_sessions s
		WHERE s.agent_id = ?
		ORDER BY s.created_at DESC, s.id DESC LIMIT ?`
	return s.listSessions(ctx, "list by agent", query, agentID, clampLimit(limit))
}

func (s *Store) listSessions(ctx context.Context, op, query string, args ...interface{}) ([]*internal.Session, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &internal.StorageError{Op: op, Err: err}
	}
	defer rows.Close()

	out := make([]*internal.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, &internal.StorageError{Op: op, Err: err}
		}
		out = append(out, session)
	}
	if err := rows.Err(); err != nil {
		return nil, &internal.StorageError{Op: op, Err: err}
	}
	return out, nil
}

// Stats counts sessions in total, per agent type and per project
func (s *Store) Stats(ctx context.Context) (*internal.Stats, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	stats := &internal.Stats{
		ByAgentType: make(map[string]int),
		ByProject:   make(map[string]int),
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chat_sessions").Scan(&stats.Total); err != nil {
		return nil, &internal.StorageError{Op: "stats", Err: err}
	}
	if err := s.groupCount(ctx, "SELECT agent_type, COUNT(*) FROM chat_sessions GROUP BY agent_type", stats.ByAgentType); err != nil {
		return nil, err
	}
	groupByProject := "SELECT COALESCE(project_context, '" + internal.NoProject + "'), COUNT(*) FROM chat_sessions GROUP BY 1"
	if err := s.groupCount(ctx, groupByProject, stats.ByProject); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Store) groupCount(ctx context.Context, query string, into map[string]int) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return &internal.StorageError{Op: "stats", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return &internal.StorageError{Op: "stats", Err: err}
		}
		into[key] = n
	}
	if err := rows.Err(); err != nil {
		return &internal.StorageError{Op: "stats", Err: err}
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return internal.DefaultSearchLimit
	}
	if limit > internal.MaxSearchLimit {
		return internal.MaxSearchLimit
	}
	return limit
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
