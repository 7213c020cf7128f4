package export

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/iksnae/session-vault/internal"
)

// YAMLExporter writes the same document as JSONExporter in YAML
type YAMLExporter struct {
	turns turnSplitter
}

func (e *YAMLExporter) Export(session *internal.Session, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(newDocument(session, e.turns)); err != nil {
		_ = enc.Close()
		return &internal.ExportError{Format: "yaml", Err: err}
	}
	if err := enc.Close(); err != nil {
		return &internal.ExportError{Format: "yaml", Err: err}
	}
	return nil
}

func (e *YAMLExporter) Extension() string {
	return "yaml"
}
