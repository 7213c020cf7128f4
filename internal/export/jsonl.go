package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/iksnae/session-vault/internal"
)

// JSONLExporter exports sessions in JSONL format (one turn per line)
type JSONLExporter struct {
	turns turnSplitter
}

// Export exports a session to JSONL format
func (e *JSONLExporter) Export(session *internal.Session, w io.Writer) error {
	enc := json.NewEncoder(w)

	for i, turn := range e.turns.Turns(session.OriginalContent) {
		obj := map[string]interface{}{
			"session_id": session.ID,
			"turn":       i,
			"content":    turn.Text,
		}

		if turn.Speaker != "" {
			obj["speaker"] = turn.Speaker
		}

		// Encode to single line
		if err := enc.Encode(obj); err != nil {
			return &internal.ExportError{Format: "jsonl", Err: fmt.Errorf("failed to encode turn %d: %w", i, err)}
		}
	}

	return nil
}

// Extension returns the file extension for this format
func (e *JSONLExporter) Extension() string {
	return "jsonl"
}
