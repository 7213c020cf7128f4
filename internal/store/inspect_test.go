package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iksnae/session-vault/testutil"
)

func TestInspect(t *testing.T) {
	for _, mode := range modes {
		t.Run(mode.name, func(t *testing.T) {
			s, _ := memStore(t, mode.fallback)
			mustCreate(t, s, testutil.ExampleSession())

			info, err := s.Inspect(context.Background())
			require.NoError(t, err)
			assert.Equal(t, s.Capability(), info.Capability)
			assert.Equal(t, !mode.fallback, info.IndexSynced)

			tables := map[string]TableInfo{}
			for _, tbl := range info.Tables {
				tables[tbl.Name] = tbl
			}
			require.Contains(t, tables, "chat_sessions")
			require.Contains(t, tables, "store_meta")
			assert.Equal(t, int64(1), tables["chat_sessions"].Rows)

			var pk string
			for _, col := range tables["chat_sessions"].Columns {
				if col.PrimaryKey {
					pk = col.Name
				}
			}
			assert.Equal(t, "id", pk)

			if mode.fallback {
				assert.NotContains(t, tables, "chat_sessions_fts")
			} else {
				require.Contains(t, tables, "chat_sessions_fts")
				assert.Equal(t, int64(1), tables["chat_sessions_fts"].Rows)
			}
			for name := range tables {
				assert.NotContains(t, name, "chat_sessions_fts_", "shadow tables are hidden")
			}
		})
	}
}

func TestInspect_Closed(t *testing.T) {
	s, _ := memStore(t, true)
	require.NoError(t, s.Close())
	_, err := s.Inspect(context.Background())
	assert.Error(t, err)
}
