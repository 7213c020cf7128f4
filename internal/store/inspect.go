package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/iksnae/session-vault/internal"
)

// ColumnInfo describes one column of a table
type ColumnInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	NotNull    bool   `json:"not_null"`
	PrimaryKey bool   `json:"primary_key"`
}

// TableInfo describes one table of the session database
type TableInfo struct {
	Name    string       `json:"name"`
	Rows    int64        `json:"rows"`
	Columns []ColumnInfo `json:"columns"`
}

// Inspection is a snapshot of the database layout
type Inspection struct {
	Capability  Capability  `json:"capability"`
	IndexSynced bool        `json:"index_synced"`
	Tables      []TableInfo `json:"tables"`
}

// Inspect lists the user tables with their row counts and columns. FTS5
// shadow tables are skipped.
func (s *Store) Inspect(ctx context.Context) (*Inspection, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	names, err := s.tableNames(ctx)
	if err != nil {
		return nil, &internal.StorageError{Op: "inspect", Err: err}
	}

	synced, err := s.getMeta(ctx, metaIndexSynced)
	if err != nil {
		return nil, &internal.StorageError{Op: "inspect", Err: err}
	}
	out := &Inspection{Capability: s.capability, IndexSynced: synced == "1", Tables: []TableInfo{}}

	for _, name := range names {
		table := TableInfo{Name: name}
		// name comes from sqlite_master, never from the caller
		quoted := `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoted).Scan(&table.Rows); err != nil {
			return nil, &internal.StorageError{Op: "inspect", Err: fmt.Errorf("count %s: %w", name, err)}
		}
		if table.Columns, err = s.columns(ctx, quoted); err != nil {
			return nil, &internal.StorageError{Op: "inspect", Err: fmt.Errorf("columns of %s: %w", name, err)}
		}
		out.Tables = append(out.Tables, table)
	}
	return out, nil
}

func (s *Store) tableNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table'
		  AND name NOT LIKE 'sqlite_%'
		  AND name NOT LIKE 'chat_sessions_fts_%'
		ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *Store) columns(ctx context.Context, quotedTable string) ([]ColumnInfo, error) {
	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info("+quotedTable+")")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []ColumnInfo
	for rows.Next() {
		var (
			col          ColumnInfo
			cid          int
			notNull, pk  int
			defaultValue interface{}
		)
		if err := rows.Scan(&cid, &col.Name, &col.Type, &notNull, &defaultValue, &pk); err != nil {
			return nil, err
		}
		col.NotNull = notNull == 1
		col.PrimaryKey = pk > 0
		columns = append(columns, col)
	}
	return columns, rows.Err()
}
