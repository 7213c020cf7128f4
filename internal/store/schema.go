package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

const sessionsSchema = `
CREATE TABLE IF NOT EXISTS chat_sessions (
    id               TEXT PRIMARY KEY,
    title            TEXT NOT NULL DEFAULT '',
    agent_id         TEXT NOT NULL,
    agent_type       TEXT NOT NULL CHECK (agent_type IN ('claude', 'cursor', 'other')),
    project_context  TEXT,
    original_content TEXT NOT NULL CHECK (length(original_content) > 0),
    tags             TEXT NOT NULL DEFAULT '[]',
    created_at       TEXT NOT NULL,
    updated_at       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_sessions_agent_id   ON chat_sessions(agent_id);
CREATE INDEX IF NOT EXISTS idx_chat_sessions_agent_type ON chat_sessions(agent_type);
CREATE INDEX IF NOT EXISTS idx_chat_sessions_project    ON chat_sessions(project_context);
CREATE INDEX IF NOT EXISTS idx_chat_sessions_created    ON chat_sessions(created_at);

CREATE TABLE IF NOT EXISTS store_meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

const ftsSchema = `
CREATE VIRTUAL TABLE IF NOT EXISTS chat_sessions_fts USING fts5(
    session_id UNINDEXED,
    title,
    original_content,
    tags,
    tokenize = 'unicode61'
);
`

// metaIndexSynced records whether the last process to write the store kept
// chat_sessions_fts up to date. A fallback-mode writer clears it.
const metaIndexSynced = "fts_synced"

// Initialize creates the session table, its indexes and, when the
// full-text capability is available, the search index. It is safe to call
// on an existing store and never drops or truncates data.
func (s *Store) Initialize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sessionsSchema); err != nil {
		return fmt.Errorf("init session schema: %w", err)
	}

	if s.capability != CapabilityIndexed {
		return s.setMeta(ctx, metaIndexSynced, "0")
	}

	if _, err := s.db.ExecContext(ctx, ftsSchema); err != nil {
		return fmt.Errorf("init search index: %w", err)
	}

	stale, err := s.indexStale(ctx)
	if err != nil {
		return err
	}
	if stale {
		if err := s.rebuildIndex(ctx); err != nil {
			return err
		}
	}
	return s.setMeta(ctx, metaIndexSynced, "1")
}

// indexStale reports whether the search index may disagree with the table
func (s *Store) indexStale(ctx context.Context) (bool, error) {
	synced, err := s.getMeta(ctx, metaIndexSynced)
	if err != nil {
		return false, err
	}

	var rows, indexed int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chat_sessions").Scan(&rows); err != nil {
		return false, fmt.Errorf("count sessions: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chat_sessions_fts").Scan(&indexed); err != nil {
		return false, fmt.Errorf("count index entries: %w", err)
	}

	return rows != indexed || (synced != "" && synced != "1"), nil
}

// rebuildIndex repopulates the search index from the session table in one transaction
func (s *Store) rebuildIndex(ctx context.Context) error {
	s.logger.Info("rebuilding search index from session table")
	return s.withTx(ctx, "rebuild index", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM chat_sessions_fts"); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO chat_sessions_fts (session_id, title, original_content, tags)
			SELECT id, title, original_content, tags FROM chat_sessions`)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		s.logger.Info("search index rebuilt", zap.Int64("sessions", n))
		return nil
	})
}

func (s *Store) getMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM store_meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read store meta %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) setMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO store_meta (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("write store meta %s: %w", key, err)
	}
	return nil
}
