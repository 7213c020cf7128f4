package internal

import (
	"time"
)

// AgentType identifies the kind of agent that produced a session
type AgentType string

const (
	AgentClaude AgentType = "claude"
	AgentCursor AgentType = "cursor"
	AgentOther  AgentType = "other"
)

// AgentTypes lists every accepted agent type
var AgentTypes = []AgentType{AgentClaude, AgentCursor, AgentOther}

// Valid reports whether the agent type belongs to the closed set
func (a AgentType) Valid() bool {
	switch a {
	case AgentClaude, AgentCursor, AgentOther:
		return true
	}
	return false
}

// Session represents a stored chat transcript plus its metadata
type Session struct {
	ID              string    `json:"id" yaml:"id"`
	Title           string    `json:"title" yaml:"title"`
	AgentID         string    `json:"agent_id" yaml:"agent_id"`
	AgentType       AgentType `json:"agent_type" yaml:"agent_type"`
	ProjectContext  string    `json:"project_context,omitempty" yaml:"project_context,omitempty"`
	OriginalContent string    `json:"original_content" yaml:"original_content"`
	Tags            []string  `json:"tags" yaml:"tags"`
	CreatedAt       time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" yaml:"updated_at"`
}

// SessionFields holds the caller-supplied values for a new session
type SessionFields struct {
	Title           string    `json:"title"`
	AgentID         string    `json:"agent_id"`
	AgentType       AgentType `json:"agent_type"`
	ProjectContext  string    `json:"project_context,omitempty"`
	OriginalContent string    `json:"original_content"`
	Tags            []string  `json:"tags,omitempty"`
}

// SessionUpdate is a partial update. Nil fields are left unchanged.
type SessionUpdate struct {
	Title           *string    `json:"title,omitempty"`
	AgentID         *string    `json:"agent_id,omitempty"`
	AgentType       *AgentType `json:"agent_type,omitempty"`
	ProjectContext  *string    `json:"project_context,omitempty"`
	OriginalContent *string    `json:"original_content,omitempty"`
	Tags            *[]string  `json:"tags,omitempty"` // replaces the whole array
}

// Empty reports whether the update carries no field changes
func (u SessionUpdate) Empty() bool {
	return u.Title == nil && u.AgentID == nil && u.AgentType == nil &&
		u.ProjectContext == nil && u.OriginalContent == nil && u.Tags == nil
}

// Stats summarizes the stored sessions
type Stats struct {
	Total       int            `json:"total_sessions" yaml:"total_sessions"`
	ByAgentType map[string]int `json:"by_agent_type" yaml:"by_agent_type"`
	ByProject   map[string]int `json:"by_project" yaml:"by_project"`
}

// NoProject is the Stats.ByProject key for sessions without a project context
const NoProject = "(none)"
