package internal

import (
	"time"
)

// CreateTestSession creates a test session with a two-turn transcript
func CreateTestSession(id string) *Session {
	return CreateTestSessionWithContent(id, "User: Hello, how are you?\nAssistant: I'm doing well, thank you!")
}

// CreateTestSessionWithContent creates a test session around the given transcript
func CreateTestSessionWithContent(id, content string) *Session {
	created := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)
	return &Session{
		ID:              id,
		Title:           "Test Conversation",
		AgentID:         "agent-" + id,
		AgentType:       AgentClaude,
		ProjectContext:  "test-project",
		OriginalContent: content,
		Tags:            []string{"test", "greeting"},
		CreatedAt:       created,
		UpdatedAt:       created,
	}
}
