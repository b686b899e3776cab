// Package content infers the title/body/visual layout of a single slide's
// text, either from explicit "Title:", "Body:" and "Visual:" labels or, when
// none are present, from lightweight heuristics.
package content

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Fixed visual descriptions produced by the heuristic phase.
const (
	SnippetDetected    = "Code/JSON snippet detected"
	SensitiveAPIVisual = "API response JSON with red highlights on sensitive fields"
)

// Structured is the layout decomposition of one slide. Empty fields are absent.
type Structured struct {
	Title         string   `json:"title,omitempty" yaml:"title,omitempty"`
	Body          string   `json:"body,omitempty" yaml:"body,omitempty"`
	Visual        string   `json:"visual,omitempty" yaml:"visual,omitempty"`
	VisualSnippet string   `json:"visualSnippet,omitempty" yaml:"visualSnippet,omitempty"`
	Tags          []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Analyzer decomposes slide text into a Structured layout.
type Analyzer interface {
	Analyze(text string) Structured
}

// AnalyzerFunc adapts a plain function to the Analyzer interface.
type AnalyzerFunc func(text string) Structured

func (f AnalyzerFunc) Analyze(text string) Structured { return f(text) }

// Default is the pure package-level analyzer.
var Default Analyzer = AnalyzerFunc(Analyze)

var (
	labelPattern = regexp.MustCompile(`(?i)\b(title|body|visual)\s*:`)
	fenced       = regexp.MustCompile("(?s)```(.*?)```")
	braced       = regexp.MustCompile(`(?s)\{.*\}`)
	hashtag      = regexp.MustCompile(`#[A-Za-z0-9_]+`)
	sentenceEnd  = regexp.MustCompile(`[.!?]\s`)
	blankLines   = regexp.MustCompile(`\n(?:[ \t]*\n)+`)
)

var visualKeywords = []string{
	"api", "endpoint", "response", "json", "payload",
	"leak", "secret", "pii", "ssn", "token", "password",
}

// Analyze returns the layout for text. Labeled extraction wins outright when
// any label yields a value; otherwise every field comes from heuristics.
// It never fails and is safe for concurrent use.
func Analyze(text string) Structured {
	if s, ok := analyzeLabeled(text); ok {
		return s
	}
	return analyzeHeuristic(text)
}

func analyzeLabeled(text string) (Structured, bool) {
	s := Structured{
		Title:  extractTitle(text),
		Body:   extractBody(text),
		Visual: extractVisual(text),
	}
	if s.Title == "" && s.Body == "" && s.Visual == "" {
		return Structured{}, false
	}
	if s.Visual != "" {
		s.VisualSnippet, _ = findSnippet(s.Visual)
	}
	return s, true
}

func extractTitle(text string) string  { return labeledValue(text, "title") }
func extractBody(text string) string   { return labeledValue(text, "body") }
func extractVisual(text string) string { return labeledValue(text, "visual") }

// labeledValue returns the value after the first occurrence of label. The
// value runs to the next label of any kind or the end of text, and may be
// wrapped in straight or curly double quotes.
func labeledValue(text, label string) string {
	matches := labelPattern.FindAllStringSubmatchIndex(text, -1)
	for i, m := range matches {
		if !strings.EqualFold(text[m[2]:m[3]], label) {
			continue
		}
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		return unquote(strings.TrimSpace(text[m[1]:end]))
	}
	return ""
}

// unquote strips an opening quote and everything from the last closing quote.
func unquote(v string) string {
	r, size := utf8.DecodeRuneInString(v)
	if !isDoubleQuote(r) {
		return v
	}
	v = v[size:]
	if i := strings.LastIndexAny(v, "\"“”"); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}

// findSnippet looks for a fenced block, then for a brace-delimited block
// spanning to the last closing brace. It returns the trimmed inner text and
// the full matched block.
func findSnippet(text string) (snippet, block string) {
	if m := fenced.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), m[0]
	}
	if m := braced.FindString(text); m != "" {
		return strings.TrimSpace(m), m
	}
	return "", ""
}

func analyzeHeuristic(text string) Structured {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	normalized = strings.TrimSpace(strings.ReplaceAll(normalized, "\r", "\n"))

	var s Structured
	s.Title = inferTitle(normalized)

	snippet, block := findSnippet(normalized)
	s.Visual, s.VisualSnippet = inferVisual(normalized, snippet)
	s.Body = inferBody(normalized, s.Title, block)
	s.Tags = extractTags(normalized)
	return s
}

// inferTitle picks the first short line that looks like a heading: it quotes
// something, carries an emoji, or ends with a colon. Failing that, a short
// first sentence is used. A trailing colon is not part of the title.
func inferTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || utf8.RuneCountInString(line) > 80 {
			continue
		}
		if strings.HasSuffix(line, ":") || strings.IndexFunc(line, isHeadingMark) >= 0 {
			if t := strings.TrimSpace(strings.TrimSuffix(line, ":")); t != "" {
				return t
			}
		}
	}

	first := text
	if loc := sentenceEnd.FindStringIndex(text); loc != nil {
		first = text[:loc[0]+1]
	}
	first = strings.TrimSpace(first)
	if utf8.RuneCountInString(first) <= 120 {
		return first
	}
	return ""
}

func inferVisual(text, snippet string) (visual, visualSnippet string) {
	if snippet != "" {
		return SnippetDetected, snippet
	}
	lower := strings.ToLower(text)
	for _, kw := range visualKeywords {
		if strings.Contains(lower, kw) {
			return SensitiveAPIVisual, ""
		}
	}
	return "", ""
}

// inferBody cuts the first occurrence of title and of the snippet block.
// A colon that followed the title stays in the body.
func inferBody(text, title, block string) string {
	body := text
	if title != "" {
		body = strings.Replace(body, title, "", 1)
	}
	if block != "" {
		body = strings.Replace(body, block, "", 1)
	}
	return strings.TrimSpace(blankLines.ReplaceAllString(body, "\n"))
}

// extractTags returns lower-cased hashtags in first-occurrence order.
func extractTags(text string) []string {
	var tags []string
	seen := make(map[string]bool)
	for _, m := range hashtag.FindAllString(text, -1) {
		tag := strings.ToLower(m)
		if seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}

func isDoubleQuote(r rune) bool {
	return r == '"' || r == '“' || r == '”'
}

func isHeadingMark(r rune) bool {
	return isDoubleQuote(r) ||
		(r >= 0x1F300 && r <= 0x1FAFF) || // pictographs, emoticons, transport, supplemental symbols
		(r >= 0x2600 && r <= 0x27BF) // miscellaneous symbols and dingbats
}
