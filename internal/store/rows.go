package store

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/iksnae/session-vault/internal"
)

// timeLayout is fixed-width so that text order equals chronological order
const timeLayout = "2006-01-02T15:04:05.000Z"

const sessionColumns = `s.id, s.title, s.agent_id, s.agent_type, s.project_context,
	s.original_content, s.tags, s.created_at, s.updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanSession reads sessionColumns followed by any extra destinations
func scanSession(row scanner, extra ...interface{}) (*internal.Session, error) {
	var (
		session              internal.Session
		agentType            string
		project              sql.NullString
		tags                 string
		createdAt, updatedAt string
	)
	dest := []interface{}{
		&session.ID, &session.Title, &session.AgentID, &agentType, &project,
		&session.OriginalContent, &tags, &createdAt, &updatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	session.AgentType = internal.AgentType(agentType)
	session.ProjectContext = project.String

	var err error
	if session.Tags, err = decodeTags(tags); err != nil {
		return nil, fmt.Errorf("session %s: %w", session.ID, err)
	}
	if session.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("session %s created_at: %w", session.ID, err)
	}
	if session.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("session %s updated_at: %w", session.ID, err)
	}
	return &session, nil
}

// encodeTags serializes tags as a JSON array. HTML escaping is disabled so
// that substring searches see the tag text as written.
func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(tags); err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

func decodeTags(raw string) ([]string, error) {
	tags := []string{}
	if raw == "" {
		return tags, nil
	}
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Parse(time.RFC3339Nano, s)
	}
	return t, nil
}

func nullStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
