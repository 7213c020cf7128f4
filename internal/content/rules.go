package content

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rules is the data the extractor matches against. Every list can be
// replaced from a YAML file without touching the matching code.
type Rules struct {
	// Vocabulary lists technology and process terms recognized as topics
	Vocabulary []string `yaml:"vocabulary"`
	// PrimaryTopics are preferred over other topics when building titles
	PrimaryTopics []string `yaml:"primary_topics"`
	// Acronyms are upper-cased in generated titles
	Acronyms []string `yaml:"acronyms"`
	// DecisionPatterns are regular expressions with one capture group
	DecisionPatterns []string `yaml:"decision_patterns"`
	// SummaryCues mark sentences that describe a problem or its solution
	SummaryCues []string `yaml:"summary_cues"`
	// StopWords are ignored when extracting similarity terms
	StopWords []string `yaml:"stop_words"`
	// FileExtensions are recognized in file-name tokens
	FileExtensions []string `yaml:"file_extensions"`
	// Speakers are the role labels counted as chat participants
	Speakers []string `yaml:"speakers"`
}

// DefaultRules returns the built-in rule set
func DefaultRules() Rules {
	return Rules{
		Vocabulary: []string{
			"javascript", "typescript", "python", "golang", "rust", "java", "kotlin", "swift", "ruby", "php",
			"react", "vue", "angular", "svelte", "next.js", "node.js", "nodejs", "express", "django", "flask",
			"fastapi", "spring", "rails", "graphql", "rest", "api", "grpc", "websocket", "http",
			"database", "sql", "postgresql", "postgres", "mysql", "sqlite", "mongodb", "redis", "elasticsearch",
			"docker", "kubernetes", "terraform", "aws", "gcp", "azure", "serverless", "lambda", "nginx",
			"git", "github", "ci/cd", "jwt", "oauth", "authentication", "authorization", "security",
			"testing", "unit test", "debugging", "deployment", "refactoring", "performance", "optimization",
			"architecture", "migration", "caching", "logging", "monitoring", "microservices", "frontend",
			"backend", "css", "html", "tailwind", "webpack", "vite", "llm", "machine learning",
		},
		PrimaryTopics: []string{
			"react", "vue", "angular", "python", "javascript", "typescript", "golang", "rust", "java",
			"node.js", "nodejs", "django", "fastapi", "docker", "kubernetes", "postgresql", "mongodb",
			"redis", "graphql", "aws", "database", "api", "authentication",
		},
		Acronyms: []string{
			"api", "sql", "aws", "gcp", "css", "html", "jwt", "http", "rest", "grpc", "llm", "ci/cd",
		},
		DecisionPatterns: []string{
			`(?i)\bdecided to ([^.!?\n]+)`,
			`(?i)\bwe should ([^.!?\n]+)`,
			`(?i)\bsolution:\s*([^.!?\n]+)`,
			`(?i)\bdecision:\s*([^.!?\n]+)`,
			`(?i)\blet'?s (?:go with|use) ([^.!?\n]+)`,
			`(?i)\bwe(?:'ll| will) (?:use|go with|implement) ([^.!?\n]+)`,
			`(?i)\bthe (?:best|right) approach is ([^.!?\n]+)`,
			`(?i)\b(?:agreed|settled) on ([^.!?\n]+)`,
			`(?i)\bconclusion:\s*([^.!?\n]+)`,
		},
		SummaryCues: []string{
			"problem", "issue", "error", "bug", "fix", "fixed", "solution", "solved", "resolve",
			"resolved", "implement", "implemented", "decided", "fails", "failing",
		},
		StopWords: []string{
			"about", "above", "after", "again", "also", "because", "been", "before", "being", "below",
			"between", "both", "could", "does", "doing", "down", "during", "each", "even", "every",
			"from", "further", "have", "having", "here", "into", "just", "like", "make", "many", "more",
			"most", "much", "must", "need", "only", "other", "over", "same", "should", "some", "such",
			"than", "that", "their", "theirs", "them", "then", "there", "these", "they", "this",
			"those", "through", "under", "until", "very", "want", "were", "what", "when", "where",
			"which", "while", "will", "with", "would", "your", "yours", "yourself", "know", "think",
			"thanks", "thank", "please", "sure", "really", "something", "anything", "discussing",
		},
		FileExtensions: []string{
			"go", "js", "jsx", "ts", "tsx", "py", "rb", "rs", "java", "kt", "swift", "php", "c", "h",
			"cpp", "cs", "css", "scss", "html", "json", "yaml", "yml", "toml", "md", "sql", "sh", "env",
		},
		Speakers: []string{
			"user", "human", "assistant", "ai", "claude", "cursor", "system", "me", "you",
		},
	}
}

// LoadRules reads a YAML rules file. Lists present in the file replace the
// built-in defaults; absent lists keep them.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("failed to read rules file: %w", err)
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return rules, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}
	return rules, nil
}
