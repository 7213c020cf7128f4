package content

import (
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"
)

const (
	// LanguagePlain marks a fenced block whose language could not be inferred
	LanguagePlain = "plain"
	// LanguageInline marks a backtick span found in prose
	LanguageInline = "inline"

	minInlineLen  = 10
	minFencedBody = 10
)

// languageHints are tried in order when chroma has no opinion
var languageHints = []struct {
	language string
	re       *regexp.Regexp
}{
	{"go", regexp.MustCompile(`(?m)^\s*(package \w+|func (\(\w+ \*?\w+\) )?\w+\(|import \()`)},
	{"python", regexp.MustCompile(`(?m)^\s*(def \w+\(.*\):|from [\w.]+ import |import \w+$|class \w+(\(.*\))?:)`)},
	{"typescript", regexp.MustCompile(`(?m)(interface \w+ \{|: (string|number|boolean)\b|^\s*export type )`)},
	{"javascript", regexp.MustCompile(`(?m)(\bconst \w+ = |\blet \w+ = |=> |\bfunction \w*\(|console\.log\(|require\()`)},
	{"sql", regexp.MustCompile(`(?i)\b(select .+ from|insert into|create table|update \w+ set|delete from)\b`)},
	{"rust", regexp.MustCompile(`(?m)(\bfn \w+\(|\blet mut |\bimpl \w+|println!\()`)},
	{"java", regexp.MustCompile(`(?m)(public (static )?(class|void)|System\.out\.println)`)},
	{"html", regexp.MustCompile(`(?i)<(!doctype|html|div|span|body|head)\b`)},
	{"css", regexp.MustCompile(`(?m)^[.#]?[\w-]+\s*\{\s*$|^\s*[\w-]+:\s*[^;]+;\s*$`)},
	{"bash", regexp.MustCompile(`(?m)^\s*(\$ |#!/bin/(ba)?sh|npm |yarn |go (build|test|run) |git |pip |docker |kubectl |curl )`)},
	{"json", regexp.MustCompile(`^\s*[\[{]\s*"`)},
}

// InferLanguage names the language of an undeclared code block. chroma's
// analysers go first, then keyword hints; LanguagePlain when neither matches.
func InferLanguage(code string) string {
	if lexer := lexers.Analyse(code); lexer != nil {
		return normalizeLanguage(lexer.Config().Name)
	}
	for _, hint := range languageHints {
		if hint.re.MatchString(code) {
			return hint.language
		}
	}
	return LanguagePlain
}

// normalizeLanguage maps declared tags and lexer names onto one spelling
func normalizeLanguage(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "golang":
		return "go"
	case "js", "jsx", "node":
		return "javascript"
	case "ts", "tsx":
		return "typescript"
	case "py", "python3", "python 3":
		return "python"
	case "sh", "shell", "zsh", "console", "shell session":
		return "bash"
	case "yml":
		return "yaml"
	case "rs":
		return "rust"
	case "text", "txt", "plaintext":
		return LanguagePlain
	}
	return name
}

// CodeSnippets returns fenced blocks, each with its declared or inferred
// language and the sentence that introduces it, followed by inline spans
// that look like code.
func (e *Extractor) CodeSnippets(text string) []Snippet {
	snippets := make([]Snippet, 0)

	for _, loc := range fencedRe.FindAllStringSubmatchIndex(text, -1) {
		body := strings.TrimSpace(text[loc[4]:loc[5]])
		if len(body) <= minFencedBody {
			continue
		}
		lang := normalizeLanguage(text[loc[2]:loc[3]])
		if lang == "" {
			lang = InferLanguage(body)
		}
		snippets = append(snippets, Snippet{
			Language: lang,
			Code:     body,
			Context:  precedingSentence(text[:loc[0]]),
		})
		if len(snippets) == maxSnippets {
			return snippets
		}
	}

	prose := fencedRe.ReplaceAllString(text, " ")
	for _, m := range inlineRe.FindAllStringSubmatch(prose, -1) {
		code := strings.TrimSpace(m[1])
		if len(code) < minInlineLen || !strings.ContainsAny(code, "({=") {
			continue
		}
		snippets = append(snippets, Snippet{
			Language: LanguageInline,
			Code:     code,
			Inline:   true,
		})
		if len(snippets) == maxSnippets {
			break
		}
	}
	return snippets
}

// precedingSentence returns the last sentence of before, which is usually
// the line that introduces a code block.
func precedingSentence(before string) string {
	before = strings.TrimSpace(before)
	if i := strings.LastIndex(before, "\n"); i >= 0 {
		before = before[i+1:]
	}
	if i := strings.LastIndexAny(strings.TrimRight(before, ".!?:"), ".!?"); i >= 0 {
		before = before[i+1:]
	}
	before = strings.TrimSpace(before)
	if strings.HasPrefix(before, "```") {
		return ""
	}
	return truncate(before, maxContextLen)
}
