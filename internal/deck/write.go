package deck

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/olehluchkiv/carousel/internal/export"
)

// Format selects the file representation of a deck.
type Format string

const (
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts a format name or a common file extension alias.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown format: %s (valid: json, yaml, markdown)", s)
	}
}

// Document is the serialized form of a laid-out deck.
type Document struct {
	Title       string     `json:"title" yaml:"title"`
	Template    string     `json:"template" yaml:"template"`
	ReadingTime int        `json:"readingTimeSeconds" yaml:"readingTimeSeconds"`
	Filename    string     `json:"filename" yaml:"filename"`
	Slides      []Rendered `json:"slides" yaml:"slides"`
}

// NewDocument pairs deck metadata with its rendered slides.
func NewDocument(d Deck, rendered []Rendered) Document {
	return Document{
		Title:       d.Title,
		Template:    d.Template,
		ReadingTime: d.ReadingTime,
		Filename:    export.Filename(d.Title),
		Slides:      rendered,
	}
}

// Write encodes doc to w in the given format.
func Write(w io.Writer, format Format, doc Document) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, doc)
	case FormatYAML:
		return WriteYAML(w, doc)
	case FormatMarkdown:
		return WriteMarkdown(w, doc)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteJSON writes doc as indented JSON.
func WriteJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// WriteYAML writes doc as YAML.
func WriteYAML(w io.Writer, doc Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return nil
}

// WriteMarkdown writes doc as a human-readable outline, one section per slide.
func WriteMarkdown(w io.Writer, doc Document) error {
	_, err := io.WriteString(w, Markdown(doc))
	return err
}

// Markdown renders doc as a Markdown outline.
func Markdown(doc Document) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("# %s\n\n", doc.Title))
	b.WriteString(fmt.Sprintf("_%d slides, template %s, about %ds to read_\n",
		len(doc.Slides), doc.Template, doc.ReadingTime))

	for _, r := range doc.Slides {
		heading := r.Content.Title
		if heading == "" {
			heading = "Slide"
		}
		b.WriteString(fmt.Sprintf("\n## %d/%d: %s\n", r.Slide.SlideNumber, r.Slide.TotalSlides, heading))

		if r.Content.Body != "" {
			b.WriteString("\n")
			b.WriteString(r.Content.Body)
			b.WriteString("\n")
		}
		if r.Snippet != "" {
			lang := ""
			if r.SnippetIsJSON {
				lang = "json"
			}
			fence := codeFence(r.Snippet)
			b.WriteString(fmt.Sprintf("\n%s%s\n%s\n%s\n", fence, lang, r.Snippet, fence))
		}
		if r.Content.Visual != "" {
			b.WriteString(fmt.Sprintf("\n> Visual: %s\n", r.Content.Visual))
		}
		if len(r.Content.Tags) > 0 {
			b.WriteString(fmt.Sprintf("\n%s\n", strings.Join(r.Content.Tags, " ")))
		}
	}

	return b.String()
}

// codeFence returns a backtick fence longer than any backtick run in s.
func codeFence(s string) string {
	longest, run := 0, 0
	for _, r := range s {
		if r != '`' {
			run = 0
			continue
		}
		run++
		longest = max(longest, run)
	}
	return strings.Repeat("`", max(3, longest+1))
}
