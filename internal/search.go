package internal

import "time"

const (
	// DefaultSearchLimit is used when a query does not ask for a page size
	DefaultSearchLimit = 20
	// MaxSearchLimit caps every page regardless of the requested limit
	MaxSearchLimit = 100
	// DefaultSimilarLimit is the page size for related-session lookups
	DefaultSimilarLimit = 5
)

// SearchFilters describes a session query. All set fields are AND-ed.
type SearchFilters struct {
	Query          string     `json:"query,omitempty"`
	AgentType      AgentType  `json:"agent_type,omitempty"`
	ProjectContext string     `json:"project_context,omitempty"`
	Tags           []string   `json:"tags,omitempty"` // any of
	DateFrom       *time.Time `json:"date_from,omitempty"`
	DateTo         *time.Time `json:"date_to,omitempty"` // exclusive
	Limit          int        `json:"limit"`
	Offset         int        `json:"offset"`
}

// Normalize returns a copy with pagination defaults and caps applied
func (f SearchFilters) Normalize() SearchFilters {
	out := f
	if out.Limit <= 0 {
		out.Limit = DefaultSearchLimit
	}
	if out.Limit > MaxSearchLimit {
		out.Limit = MaxSearchLimit
	}
	if out.Offset < 0 {
		out.Offset = 0
	}
	if len(f.Tags) > 0 {
		out.Tags = append([]string(nil), f.Tags...)
	}
	return out
}

// SearchResult is a matched session. Rank and MatchedContent are only set
// when the full-text index evaluated the query.
type SearchResult struct {
	Session
	Rank           *float64 `json:"rank,omitempty" yaml:"rank,omitempty"`
	MatchedContent string   `json:"matched_content,omitempty" yaml:"matched_content,omitempty"`
}
