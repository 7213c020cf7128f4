package store

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/iksnae/session-vault/internal"
)

const (
	snippetOpen   = "<mark>"
	snippetClose  = "</mark>"
	snippetTokens = 32
)

// Search returns the sessions matching filters. A free-text query goes
// through the FTS5 index when the store has one; otherwise, or when there
// is no query, rows are scanned and returned newest first.
func (s *Store) Search(ctx context.Context, filters internal.SearchFilters) ([]internal.SearchResult, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	f := filters.Normalize()
	query := strings.TrimSpace(f.Query)

	if query != "" && s.indexed() {
		if match := matchExpression(strings.Fields(query), " "); match != "" {
			return s.searchIndexed(ctx, match, f)
		}
	}

	var terms []string
	if query != "" {
		terms = []string{query}
	}
	return s.searchFallback(ctx, terms, f)
}

// FindSimilar extracts the salient terms of text and returns sessions
// matching any of them. No qualifying term means no results.
func (s *Store) FindSimilar(ctx context.Context, text string, limit int) ([]internal.SearchResult, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = internal.DefaultSimilarLimit
	}
	f := internal.SearchFilters{Limit: limit}.Normalize()

	terms := s.terms.Terms(text)
	if len(terms) == 0 {
		return []internal.SearchResult{}, nil
	}
	s.logger.Debug("similarity terms", zap.Strings("terms", terms))

	if s.indexed() {
		if match := matchExpression(terms, " OR "); match != "" {
			return s.searchIndexed(ctx, match, f)
		}
	}
	return s.searchFallback(ctx, terms, f)
}

// searchIndexed evaluates an FTS5 MATCH expression, best rank first
func (s *Store) searchIndexed(ctx context.Context, match string, f internal.SearchFilters) ([]internal.SearchResult, error) {
	clauses, args := filterClauses(f)

	query := "SELECT " + sessionColumns + `,
		       bm25(chat_sessions_fts) AS score,
		       snippet(chat_sessions_fts, -1, ?, ?, '...', ?) AS excerpt
		FROM chat_sessions_fts
		JOIN chat_sessions s ON s.id = chat_sessions_fts.session_id
		WHERE chat_sessions_fts MATCH ?`
	params := []interface{}{snippetOpen, snippetClose, snippetTokens, match}
	for _, c := range clauses {
		query += " AND " + c
	}
	params = append(params, args...)
	query += " ORDER BY score ASC, s.created_at DESC, s.id DESC LIMIT ? OFFSET ?"
	params = append(params, f.Limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, &internal.StorageError{Op: "search", Err: fmt.Errorf("indexed query %q: %w", match, err)}
	}
	defer rows.Close()

	results := make([]internal.SearchResult, 0)
	for rows.Next() {
		var score float64
		var excerpt string
		session, err := scanSession(rows, &score, &excerpt)
		if err != nil {
			return nil, &internal.StorageError{Op: "search", Err: err}
		}
		rank := score
		results = append(results, internal.SearchResult{
			Session:        *session,
			Rank:           &rank,
			MatchedContent: excerpt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, &internal.StorageError{Op: "search", Err: err}
	}
	return results, nil
}

// searchFallback matches each term as a substring of the title, content or
// serialized tags after Unicode case folding on both sides. Terms are OR-ed;
// no terms selects all rows.
func (s *Store) searchFallback(ctx context.Context, terms []string, f internal.SearchFilters) ([]internal.SearchResult, error) {
	var where []string
	var params []interface{}

	if len(terms) > 0 {
		ors := make([]string, 0, len(terms))
		for _, term := range terms {
			pattern := "%" + escapeLike(foldCase(term)) + "%"
			ors = append(ors, `(`+foldFunc+`(s.title) LIKE ? ESCAPE '\' OR `+
				foldFunc+`(s.original_content) LIKE ? ESCAPE '\' OR `+
				foldFunc+`(s.tags) LIKE ? ESCAPE '\')`)
			params = append(params, pattern, pattern, pattern)
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}

	clauses, args := filterClauses(f)
	where = append(where, clauses...)
	params = append(params, args...)

	query := "SELECT " + sessionColumns + " FROM chat_sessions s"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY s.created_at DESC, s.id DESC LIMIT ? OFFSET ?"
	params = append(params, f.Limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, &internal.StorageError{Op: "search", Err: err}
	}
	defer rows.Close()

	results := make([]internal.SearchResult, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, &internal.StorageError{Op: "search", Err: err}
		}
		results = append(results, internal.SearchResult{Session: *session})
	}
	if err := rows.Err(); err != nil {
		return nil, &internal.StorageError{Op: "search", Err: err}
	}
	return results, nil
}

// filterClauses builds the equality, date-range and tag restrictions.
// Tags match by exact element membership in the stored array.
func filterClauses(f internal.SearchFilters) ([]string, []interface{}) {
	var clauses []string
	var args []interface{}

	if f.AgentType != "" {
		clauses = append(clauses, "s.agent_type = ?")
		args = append(args, string(f.AgentType))
	}
	if f.ProjectContext != "" {
		clauses = append(clauses, "s.project_context = ?")
		args = append(args, f.ProjectContext)
	}
	if f.DateFrom != nil {
		clauses = append(clauses, "s.created_at >= ?")
		args = append(args, formatTime(*f.DateFrom))
	}
	if f.DateTo != nil {
		clauses = append(clauses, "s.created_at < ?")
		args = append(args, formatTime(*f.DateTo))
	}
	if len(f.Tags) > 0 {
		clauses = append(clauses,
			"EXISTS (SELECT 1 FROM json_each(s.tags) AS t WHERE t.value IN ("+placeholders(len(f.Tags))+"))")
		for _, tag := range f.Tags {
			args = append(args, tag)
		}
	}
	return clauses, args
}

// matchExpression quotes each term as an FTS5 string so user input can
// never be parsed as query syntax, then joins them with sep (" " for AND,
// " OR " for OR). Terms without letters or digits are dropped.
func matchExpression(terms []string, sep string) string {
	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		if !strings.ContainsFunc(term, isWordRune) {
			continue
		}
		quoted = append(quoted, `"`+strings.ReplaceAll(term, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, sep)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// escapeLike escapes LIKE wildcards so the term matches literally
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
