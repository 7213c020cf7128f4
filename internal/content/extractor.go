// Package content derives metadata from raw chat text: summary, topics,
// decisions, code fragments, a generated title and a content hash. Every
// function here is pure; nothing is persisted.
package content

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	maxTopics       = 20
	maxDecisions    = 10
	minDecisionLen  = 10
	maxDecisionLen  = 200
	maxSummaryLen   = 500
	maxTitleLen     = 50
	maxSnippets     = 50
	summarySentence = 3
	summaryTopics   = 5
	titleTopics     = 2
	maxContextLen   = 150
	minQuotedLen    = 3
	maxQuotedLen    = 30
	similarTerms    = 8
	minTermLen      = 4

	// analysisWindow bounds the prefix read by the pattern based extractors.
	// The hash and word count always cover the whole text.
	analysisWindow = 1 << 20

	// FallbackTitle is used when no language or topic was detected
	FallbackTitle = "Development"
)

// Processor derives metadata from raw chat text
type Processor interface {
	Process(text string) *Result
}

// Snippet is a code fragment found in chat text
type Snippet struct {
	Language string `json:"language" yaml:"language"`
	Code     string `json:"code" yaml:"code"`
	Context  string `json:"context,omitempty" yaml:"context,omitempty"`
	Inline   bool   `json:"inline,omitempty" yaml:"inline,omitempty"`
}

// Result is the metadata derived from one text
type Result struct {
	Summary          string    `json:"summary" yaml:"summary"`
	KeyTopics        []string  `json:"key_topics" yaml:"key_topics"`
	Decisions        []string  `json:"decisions" yaml:"decisions"`
	CodeSnippets     []Snippet `json:"code_snippets" yaml:"code_snippets"`
	GeneratedTitle   string    `json:"generated_title" yaml:"generated_title"`
	ContentHash      string    `json:"content_hash" yaml:"content_hash"`
	WordCount        int       `json:"word_count" yaml:"word_count"`
	ParticipantCount int       `json:"participant_count" yaml:"participant_count"`
}

// Extractor implements Processor over a compiled rule set. It is safe for
// concurrent use.
type Extractor struct {
	// vocabulary keeps rule order; words holds the single-word terms and
	// phrases the terms that span punctuation or spaces
	vocabulary []string
	words      map[string]bool
	phrases    []string
	primary    map[string]bool
	acronyms   map[string]bool
	decisions  []*regexp.Regexp
	cues       *regexp.Regexp
	stopWords  map[string]bool
	fileToken  *regexp.Regexp
	speakers   *regexp.Regexp
}

var (
	quotedRe   = regexp.MustCompile(`"([^"\n]+)"`)
	fencedRe   = regexp.MustCompile("(?s)```([\\w+#.-]*)[^\\n]*\\n(.*?)```")
	inlineRe   = regexp.MustCompile("`([^`\\n]+)`")
	sentenceRe = regexp.MustCompile(`[^.!?\n]+[.!?]*`)
)

// NewExtractor compiles rules. It fails when a decision pattern is not a
// valid regular expression.
func NewExtractor(rules Rules) (*Extractor, error) {
	e := &Extractor{
		words:     make(map[string]bool),
		primary:   toSet(rules.PrimaryTopics),
		acronyms:  toSet(rules.Acronyms),
		stopWords: toSet(rules.StopWords),
	}

	for _, term := range rules.Vocabulary {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		if e.words[term] || contains(e.phrases, term) {
			continue
		}
		e.vocabulary = append(e.vocabulary, term)
		if strings.IndexFunc(term, func(r rune) bool { return !isWordRune(r) }) < 0 {
			e.words[term] = true
		} else {
			e.phrases = append(e.phrases, term)
		}
	}

	for _, pattern := range rules.DecisionPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid decision pattern %q: %w", pattern, err)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("decision pattern %q has no capture group", pattern)
		}
		e.decisions = append(e.decisions, re)
	}

	if len(rules.SummaryCues) > 0 {
		e.cues = regexp.MustCompile(`(?i)\b(?:` + alternation(rules.SummaryCues) + `)\b`)
	}
	if len(rules.FileExtensions) > 0 {
		e.fileToken = regexp.MustCompile(`(?i)\b[\w./-]*\w\.(?:` + alternation(rules.FileExtensions) + `)\b`)
	}
	if len(rules.Speakers) > 0 {
		e.speakers = regexp.MustCompile(`(?im)^[ \t>*_-]*(` + alternation(rules.Speakers) + `)[*_]*[ \t]*:`)
	}
	return e, nil
}

var defaultExtractor = sync.OnceValue(func() *Extractor {
	e, err := NewExtractor(DefaultRules())
	if err != nil {
		panic(err)
	}
	return e
})

// Default returns a shared extractor built from DefaultRules
func Default() *Extractor {
	return defaultExtractor()
}

// Process derives every metadata field from text. Topics, decisions, code,
// summary and participants come from the first MiB; the hash and word count
// cover all of it.
func (e *Extractor) Process(text string) *Result {
	sample := head(text, analysisWindow)
	topics := e.KeyTopics(sample)
	snippets := e.CodeSnippets(sample)
	return &Result{
		Summary:          e.Summary(sample, topics),
		KeyTopics:        topics,
		Decisions:        e.Decisions(sample),
		CodeSnippets:     snippets,
		GeneratedTitle:   e.Title(topics, snippets),
		ContentHash:      Hash(text),
		WordCount:        countWords(text),
		ParticipantCount: e.Participants(sample),
	}
}

// head returns at most n bytes of s without splitting a rune
func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// countWords matches len(strings.Fields(s)) without building the slice
func countWords(s string) int {
	n := 0
	inWord := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inWord = false
		} else if !inWord {
			inWord = true
			n++
		}
	}
	return n
}

// Hash returns the hex SHA-256 digest of text
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// KeyTopics returns vocabulary terms found as whole words, then quoted
// phrases, then file names. Entries are unique case-insensitively.
func (e *Extractor) KeyTopics(text string) []string {
	topics := make([]string, 0)
	seen := make(map[string]bool)
	add := func(topic string) bool {
		key := strings.ToLower(topic)
		if seen[key] {
			return true
		}
		seen[key] = true
		topics = append(topics, topic)
		return len(topics) < maxTopics
	}

	found := e.vocabularyHits(text)
	for _, term := range e.vocabulary {
		if found[term] && !add(term) {
			return topics
		}
	}
	for _, m := range quotedRe.FindAllStringSubmatch(text, -1) {
		quoted := strings.TrimSpace(m[1])
		if n := len([]rune(quoted)); n < minQuotedLen || n > maxQuotedLen {
			continue
		}
		if !add(quoted) {
			return topics
		}
	}
	if e.fileToken != nil {
		for _, name := range e.fileToken.FindAllString(text, -1) {
			if !add(name) {
				return topics
			}
		}
	}
	return topics
}

// vocabularyHits finds every vocabulary term present as a whole word in one
// scan of the text plus one substring search per phrase term
func (e *Extractor) vocabularyHits(text string) map[string]bool {
	lower := strings.ToLower(text)
	hits := make(map[string]bool)
	if len(e.words) > 0 {
		eachWord(lower, func(w string) {
			if e.words[w] {
				hits[w] = true
			}
		})
	}
	for _, phrase := range e.phrases {
		if containsWord(lower, phrase) {
			hits[phrase] = true
		}
	}
	return hits
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// eachWord calls fn for every maximal run of word runes in s
func eachWord(s string, fn func(string)) {
	start := -1
	for i, r := range s {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
		} else if start >= 0 {
			fn(s[start:i])
			start = -1
		}
	}
	if start >= 0 {
		fn(s[start:])
	}
}

// containsWord reports whether term occurs in s with no word rune directly
// before or after it
func containsWord(s, term string) bool {
	for from := 0; from < len(s); {
		i := strings.Index(s[from:], term)
		if i < 0 {
			return false
		}
		i += from
		end := i + len(term)
		before, _ := utf8.DecodeLastRuneInString(s[:i])
		after, _ := utf8.DecodeRuneInString(s[end:])
		if (i == 0 || !isWordRune(before)) && (end == len(s) || !isWordRune(after)) {
			return true
		}
		from = i + 1
	}
	return false
}

// Decisions returns the phrases captured by the decision patterns
func (e *Extractor) Decisions(text string) []string {
	decisions := make([]string, 0)
	seen := make(map[string]bool)
	for _, re := range e.decisions {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			phrase := strings.TrimSpace(m[1])
			if n := len([]rune(phrase)); n < minDecisionLen || n > maxDecisionLen {
				continue
			}
			if seen[phrase] {
				continue
			}
			seen[phrase] = true
			decisions = append(decisions, phrase)
			if len(decisions) == maxDecisions {
				return decisions
			}
		}
	}
	return decisions
}

// Participants counts the distinct speaker labels that open a line. Text
// without labels counts as a single participant.
func (e *Extractor) Participants(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	if e.speakers == nil {
		return 1
	}
	speakers := make(map[string]bool)
	for _, m := range e.speakers.FindAllStringSubmatch(text, -1) {
		speakers[strings.ToLower(m[1])] = true
	}
	if len(speakers) == 0 {
		return 1
	}
	return len(speakers)
}

// Turn is one speaker's contribution to a transcript
type Turn struct {
	Speaker string `json:"speaker,omitempty" yaml:"speaker,omitempty"`
	Text    string `json:"text" yaml:"text"`
}

// Turns splits text at speaker labels. Text before the first label, or a
// transcript without labels, becomes a turn with no speaker.
func (e *Extractor) Turns(text string) []Turn {
	turns := make([]Turn, 0)
	add := func(speaker, body string) {
		body = strings.TrimSpace(body)
		if speaker == "" && body == "" {
			return
		}
		turns = append(turns, Turn{Speaker: speaker, Text: body})
	}
	if e.speakers == nil {
		add("", text)
		return turns
	}

	prev, speaker := 0, ""
	for _, loc := range e.speakers.FindAllStringSubmatchIndex(text, -1) {
		add(speaker, text[prev:loc[0]])
		speaker = text[loc[2]:loc[3]]
		prev = loc[1]
	}
	add(speaker, text[prev:])
	return turns
}

// Summary picks up to three sentences that mention a topic or a
// problem/solution cue, or the first three sentences when none do, and
// appends the leading topics.
func (e *Extractor) Summary(text string, topics []string) string {
	prose := fencedRe.ReplaceAllString(text, " ")
	var sentences []string
	for _, s := range sentenceRe.FindAllString(prose, -1) {
		s = strings.Join(strings.Fields(s), " ")
		if len(s) > 1 {
			sentences = append(sentences, s)
		}
	}

	var picked []string
	for _, s := range sentences {
		if e.important(s, topics) {
			picked = append(picked, s)
			if len(picked) == summarySentence {
				break
			}
		}
	}
	if len(picked) == 0 {
		picked = sentences
		if len(picked) > summarySentence {
			picked = picked[:summarySentence]
		}
	}

	summary := strings.Join(picked, " ")
	if len(topics) > 0 {
		lead := topics
		if len(lead) > summaryTopics {
			lead = lead[:summaryTopics]
		}
		if summary != "" {
			summary += " "
		}
		summary += "Key topics: " + strings.Join(lead, ", ") + "."
	}
	return truncate(summary, maxSummaryLen)
}

func (e *Extractor) important(sentence string, topics []string) bool {
	if e.cues != nil && e.cues.MatchString(sentence) {
		return true
	}
	lower := strings.ToLower(sentence)
	for _, topic := range topics {
		if strings.Contains(lower, strings.ToLower(topic)) {
			return true
		}
	}
	return false
}

// Title combines the first detected code language with up to two topics,
// primary technology terms first.
func (e *Extractor) Title(topics []string, snippets []Snippet) string {
	lang := ""
	for _, s := range snippets {
		if s.Language != LanguagePlain && s.Language != LanguageInline && s.Language != "" {
			lang = s.Language
			break
		}
	}

	var chosen []string
	pick := func(primaryOnly bool) {
		for _, topic := range topics {
			if len(chosen) == titleTopics {
				return
			}
			key := strings.ToLower(topic)
			if primaryOnly != e.primary[key] || key == lang || contains(chosen, topic) {
				continue
			}
			chosen = append(chosen, topic)
		}
	}
	pick(true)
	pick(false)

	parts := make([]string, 0, len(chosen))
	for _, topic := range chosen {
		parts = append(parts, e.display(topic))
	}
	head := ""
	if lang != "" {
		head = e.display(lang)
	}
	tail := strings.Join(parts, " & ")

	var title string
	switch {
	case head != "" && tail != "":
		title = head + ": " + tail
	case head != "":
		title = head + " " + FallbackTitle
	case tail != "":
		title = tail
	default:
		title = FallbackTitle
	}
	return truncate(title, maxTitleLen)
}

func (e *Extractor) display(term string) string {
	if e.acronyms[strings.ToLower(term)] {
		return strings.ToUpper(term)
	}
	// Casers hold state and are not shared between goroutines
	return cases.Title(language.English).String(term)
}

// Terms returns up to eight salient words of text: lowercase tokens longer
// than three characters, stop words removed, most frequent first. Ties keep
// first-occurrence order.
func (e *Extractor) Terms(text string) []string {
	counts := make(map[string]int)
	var order []string
	eachWord(strings.ToLower(text), func(word string) {
		if utf8.RuneCountInString(word) < minTermLen || e.stopWords[word] {
			return
		}
		if counts[word] == 0 {
			order = append(order, word)
		}
		counts[word]++
	})

	ranked := order
	sort.SliceStable(ranked, func(i, j int) bool {
		return counts[ranked[i]] > counts[ranked[j]]
	})
	if len(ranked) > similarTerms {
		ranked = ranked[:similarTerms]
	}
	return ranked
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[strings.ToLower(strings.TrimSpace(item))] = true
	}
	return set
}

func alternation(words []string) string {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			quoted = append(quoted, regexp.QuoteMeta(w))
		}
	}
	return strings.Join(quoted, "|")
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
