package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/iksnae/session-vault/internal"
)

func TestJSONLExporter_Export(t *testing.T) {
	tests := []struct {
		name      string
		session   *internal.Session
		wantLines int
		want      []string
		wantErr   bool
	}{
		{
			name:      "two turns",
			session:   internal.CreateTestSession("test1"),
			wantLines: 2,
			want: []string{
				`"speaker":"User"`,
				`"speaker":"Assistant"`,
				`"session_id":"test1"`,
				`"content":"Hello, how are you?"`,
			},
			wantErr: false,
		},
		{
			name:      "transcript without speakers",
			session:   internal.CreateTestSessionWithContent("test2", "plain notes"),
			wantLines: 1,
			want: []string{
				`"content":"plain notes"`,
				`"turn":0`,
			},
			wantErr: false,
		},
		{
			name:      "whitespace content",
			session:   internal.CreateTestSessionWithContent("test3", "   "),
			wantLines: 0,
			wantErr:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			exporter, _ := NewExporter("jsonl")

			err := exporter.Export(tt.session, &buf)
			if (err != nil) != tt.wantErr {
				t.Errorf("JSONLExporter.Export() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			output := buf.String()
			if tt.wantLines == 0 {
				if output != "" {
					t.Errorf("Empty transcript should produce empty output, got: %q", output)
				}
				return
			}

			// Verify each line is valid JSON
			lines := strings.Split(strings.TrimSpace(output), "\n")
			if len(lines) != tt.wantLines {
				t.Errorf("got %d lines, want %d:\n%s", len(lines), tt.wantLines, output)
			}
			for i, line := range lines {
				var turn map[string]interface{}
				if err := json.Unmarshal([]byte(line), &turn); err != nil {
					t.Errorf("Line %d is not valid JSON: %v", i, err)
				}
				if _, ok := turn["content"]; !ok {
					t.Errorf("Line %d missing 'content' field", i)
				}
			}

			for _, wantStr := range tt.want {
				if !strings.Contains(output, wantStr) {
					t.Errorf("Output should contain %q, got:\n%s", wantStr, output)
				}
			}
		})
	}
}

func TestJSONLExporter_Extension(t *testing.T) {
	exporter := &JSONLExporter{}
	if got := exporter.Extension(); got != "jsonl" {
		t.Errorf("JSONLExporter.Extension() = %v, want jsonl", got)
	}
}
