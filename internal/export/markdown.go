package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/iksnae/session-vault/internal"
)

const markdownTime = "2006-01-02 15:04 MST"

// MarkdownExporter exports sessions in Markdown format
type MarkdownExporter struct {
	turns turnSplitter
}

// Export exports a session to Markdown format
func (e *MarkdownExporter) Export(session *internal.Session, w io.Writer) error {
	title := session.Title
	if title == "" {
		title = "Session " + session.ID
	}

	ew := &errWriter{w: w}
	ew.printf("# %s\n\n", title)
	ew.printf("**ID:** %s  \n", session.ID)
	ew.printf("**Agent:** %s (%s)  \n", session.AgentID, session.AgentType)
	if session.ProjectContext != "" {
		ew.printf("**Project:** %s  \n", session.ProjectContext)
	}
	if len(session.Tags) > 0 {
		ew.printf("**Tags:** %s  \n", strings.Join(session.Tags, ", "))
	}
	ew.printf("**Created:** %s  \n", session.CreatedAt.UTC().Format(markdownTime))
	ew.printf("**Updated:** %s\n\n", session.UpdatedAt.UTC().Format(markdownTime))

	ew.printf("---\n\n")
	ew.printf("## Conversation\n\n")

	turns := e.turns.Turns(session.OriginalContent)
	for i, turn := range turns {
		text := escapeMarkdown(turn.Text)
		if turn.Speaker != "" {
			ew.printf("**%s:**\n\n%s\n\n", turn.Speaker, text)
		} else {
			ew.printf("%s\n\n", text)
		}

		// Add horizontal rule after each turn (except the last one)
		if i < len(turns)-1 {
			ew.printf("---\n\n")
		}
	}

	if ew.err != nil {
		return &internal.ExportError{Format: "markdown", Err: ew.err}
	}
	return nil
}

// errWriter keeps the first write error so formatting code stays linear
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

// escapeMarkdown escapes markdown special characters
func escapeMarkdown(text string) string {
	// Basic escaping - preserve code blocks
	lines := strings.Split(text, "\n")
	var result []string
	inCodeBlock := false

	for _, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCodeBlock = !inCodeBlock
			result = append(result, line)
		} else if inCodeBlock {
			result = append(result, line)
		} else {
			// Escape markdown syntax outside code blocks
			line = strings.ReplaceAll(line, "**", "\\*\\*")
			line = strings.ReplaceAll(line, "__", "\\_\\_")
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}

// Extension returns the file extension for this format
func (e *MarkdownExporter) Extension() string {
	return "md"
}
