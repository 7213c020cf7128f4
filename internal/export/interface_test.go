package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iksnae/session-vault/internal"
)

func TestNewExporter(t *testing.T) {
	tests := []struct {
		format  string
		want    Exporter
		wantExt string
	}{
		{"jsonl", &JSONLExporter{}, "jsonl"},
		{"md", &MarkdownExporter{}, "md"},
		{"markdown", &MarkdownExporter{}, "md"},
		{"yaml", &YAMLExporter{}, "yaml"},
		{"json", &JSONExporter{}, "json"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			exporter, err := NewExporter(tt.format)
			require.NoError(t, err)
			assert.IsType(t, tt.want, exporter)
			assert.Equal(t, tt.wantExt, exporter.Extension())
		})
	}
}

func TestNewExporter_Unsupported(t *testing.T) {
	for _, format := range []string{"xml", "", "JSON"} {
		exporter, err := NewExporter(format)
		assert.Nil(t, exporter, format)
		assert.True(t, internal.IsValidation(err), "%q: %v", format, err)
	}
}

// Every listed format must produce output for a tagged multi-turn session
func TestFormats_ExportTranscript(t *testing.T) {
	session := internal.CreateTestSessionWithContent("s1",
		"User: how do I rotate logs?\nAssistant: use logrotate with a daily rule")
	session.Tags = []string{"ops", "logging"}

	for _, format := range Formats {
		t.Run(format, func(t *testing.T) {
			exporter, err := NewExporter(format)
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, exporter.Export(session, &buf))
			out := buf.String()
			assert.Contains(t, out, "how do I rotate logs?")
			assert.Contains(t, out, "use logrotate with a daily rule")
		})
	}
}
