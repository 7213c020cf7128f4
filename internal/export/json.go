package export

import (
	"encoding/json"
	"io"

	"github.com/iksnae/session-vault/internal"
)

// JSONExporter writes one indented JSON document per session, with the
// transcript repeated as speaker turns
type JSONExporter struct {
	turns turnSplitter
}

func (e *JSONExporter) Export(session *internal.Session, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(newDocument(session, e.turns)); err != nil {
		return &internal.ExportError{Format: "json", Err: err}
	}
	return nil
}

func (e *JSONExporter) Extension() string {
	return "json"
}
