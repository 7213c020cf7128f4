package testutil

import (
	"github.com/iksnae/session-vault/internal"
)

// ExampleContent is a short chat mentioning PostgreSQL with inline SQL
const ExampleContent = "We decided to use PostgreSQL for the database. `SELECT * FROM users`"

// ExampleSession returns the fields of a small session about PostgreSQL
func ExampleSession() internal.SessionFields {
	return internal.SessionFields{
		Title:           "Database choice",
		AgentID:         "agent-1",
		AgentType:       internal.AgentOther,
		OriginalContent: ExampleContent,
		Tags:            []string{"db"},
	}
}

// SampleSessions returns a varied set of sessions across agents, projects and tags
func SampleSessions() []internal.SessionFields {
	return []internal.SessionFields{
		{
			Title:           "Docker compose networking",
			AgentID:         "claude-desktop",
			AgentType:       internal.AgentClaude,
			ProjectContext:  "infra",
			OriginalContent: "User: containers cannot reach each other.\nAssistant: put them on the same docker network in compose.",
			Tags:            []string{"docker", "networking"},
		},
		{
			Title:           "React state bug",
			AgentID:         "cursor-main",
			AgentType:       internal.AgentCursor,
			ProjectContext:  "webapp",
			OriginalContent: "The react component re-renders forever because useEffect has no dependency array.",
			Tags:            []string{"react", "frontend"},
		},
		{
			Title:           "Redis caching layer",
			AgentID:         "claude-desktop",
			AgentType:       internal.AgentClaude,
			ProjectContext:  "webapp",
			OriginalContent: "We should cache the session lookups in redis with a five minute expiry.",
			Tags:            []string{"redis", "caching"},
		},
		{
			Title:           "Quarterly planning notes",
			AgentID:         "notes-bot",
			AgentType:       internal.AgentOther,
			OriginalContent: "Roadmap review: hiring, budget and office move.",
			Tags:            []string{},
		},
	}
}
