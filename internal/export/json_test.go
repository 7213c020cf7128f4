package export

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iksnae/session-vault/internal"
	"github.com/iksnae/session-vault/internal/content"
)

func TestJSONExporter_Export(t *testing.T) {
	session := internal.CreateTestSessionWithContent("s1",
		"Preamble line\nUser: Should we use Postgres?\nAssistant: Yes, with docker compose.")
	session.Tags = []string{"db", "infra"}

	var buf bytes.Buffer
	exporter := &JSONExporter{turns: content.Default()}
	require.NoError(t, exporter.Export(session, &buf))

	var doc document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc), buf.String())
	assert.Equal(t, "s1", doc.ID)
	assert.Equal(t, session.OriginalContent, doc.OriginalContent)
	assert.Equal(t, []string{"db", "infra"}, doc.Tags)
	assert.True(t, doc.CreatedAt.Equal(session.CreatedAt))
	assert.Equal(t, content.Hash(session.OriginalContent), doc.ContentHash)
	assert.Equal(t, []content.Turn{
		{Text: "Preamble line"},
		{Speaker: "User", Text: "Should we use Postgres?"},
		{Speaker: "Assistant", Text: "Yes, with docker compose."},
	}, doc.Turns)

	out := buf.String()
	assert.Contains(t, out, "\n  \"agent_type\": \"claude\"", "indented with snake_case keys")
	assert.NotContains(t, out, "\"Session\"", "session fields are flattened")
}

func TestJSONExporter_EmptyTranscript(t *testing.T) {
	session := internal.CreateTestSessionWithContent("s2", "")
	session.Tags = []string{}

	var buf bytes.Buffer
	require.NoError(t, (&JSONExporter{turns: content.Default()}).Export(session, &buf))

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	assert.Equal(t, []interface{}{}, raw["turns"])
	assert.Equal(t, []interface{}{}, raw["tags"])
}

func TestJSONExporter_WriteError(t *testing.T) {
	err := (&JSONExporter{turns: content.Default()}).Export(internal.CreateTestSession("s3"), failingWriter{})
	var exportErr *internal.ExportError
	require.ErrorAs(t, err, &exportErr)
	assert.Equal(t, "json", exportErr.Format)
}
