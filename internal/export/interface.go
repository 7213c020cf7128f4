// Package export writes stored sessions to files in several formats
package export

import (
	"fmt"
	"io"

	"github.com/iksnae/session-vault/internal"
	"github.com/iksnae/session-vault/internal/content"
)

// Exporter defines the interface for all export formats
type Exporter interface {
	Export(session *internal.Session, w io.Writer) error
	Extension() string
}

// Formats lists the accepted format names
var Formats = []string{"jsonl", "md", "markdown", "yaml", "json"}

// NewExporter creates a new exporter based on format
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "jsonl":
		return &JSONLExporter{turns: content.Default()}, nil
	case "md", "markdown":
		return &MarkdownExporter{turns: content.Default()}, nil
	case "yaml":
		return &YAMLExporter{turns: content.Default()}, nil
	case "json":
		return &JSONExporter{turns: content.Default()}, nil
	default:
		return nil, &internal.ValidationError{
			Field:   "format",
			Message: fmt.Sprintf("unsupported format %q (supported: jsonl, md, yaml, json)", format),
		}
	}
}

// turnSplitter splits a transcript into speaker turns
type turnSplitter interface {
	Turns(text string) []content.Turn
}

// document is the shape written by the structured exporters: the stored
// session plus its digest and the transcript split into turns
type document struct {
	internal.Session `yaml:",inline"`
	ContentHash      string         `json:"content_hash" yaml:"content_hash"`
	Turns            []content.Turn `json:"turns" yaml:"turns"`
}

func newDocument(session *internal.Session, turns turnSplitter) document {
	return document{
		Session:     *session,
		ContentHash: content.Hash(session.OriginalContent),
		Turns:       turns.Turns(session.OriginalContent),
	}
}
