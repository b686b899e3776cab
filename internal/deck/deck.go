package deck

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/olehluchkiv/carousel/internal/content"
	"github.com/olehluchkiv/carousel/internal/textsplit"
)

// ErrUnknownTemplate is returned when a template reference is not in the catalog.
var ErrUnknownTemplate = errors.New("unknown template")

// Template is a named visual template a slide refers to. Styling itself lives
// in the renderer; the deck only carries the reference.
type Template struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// DefaultTemplate is used when no template is requested.
const DefaultTemplate = "minimal"

var templates = []Template{
	{ID: "minimal", Name: "Minimal"},
	{ID: "bold", Name: "Bold Statement"},
	{ID: "gradient", Name: "Gradient"},
	{ID: "quote", Name: "Quote Card"},
	{ID: "code", Name: "Code Snippet"},
}

// Templates returns the template catalog in display order.
func Templates() []Template {
	return slices.Clone(templates)
}

// LookupTemplate finds a template by ID. An empty ID selects DefaultTemplate.
func LookupTemplate(id string) (Template, error) {
	if id == "" {
		id = DefaultTemplate
	}
	for _, t := range templates {
		if t.ID == id {
			return t, nil
		}
	}
	return Template{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, id)
}

// Slide is one chunk of text placed on one carousel page.
type Slide struct {
	ID          string `json:"id" yaml:"id"`
	Content     string `json:"content" yaml:"content"`
	TemplateRef string `json:"templateRef" yaml:"templateRef"`
	SlideNumber int    `json:"slideNumber" yaml:"slideNumber"`
	TotalSlides int    `json:"totalSlides" yaml:"totalSlides"`
}

// Deck is an ordered set of slides built from one piece of text.
type Deck struct {
	Title       string  `json:"title" yaml:"title"`
	Template    string  `json:"template" yaml:"template"`
	ReadingTime int     `json:"readingTimeSeconds" yaml:"readingTimeSeconds"`
	Slides      []Slide `json:"slides" yaml:"slides"`
}

// UntitledDeck is the title used when the first slide has none.
const UntitledDeck = "Untitled carousel"

// Build splits text and wraps every chunk into a slide record. Slide order is
// the splitter's output order; numbering is 1-based.
func Build(text string, opts textsplit.Options, templateID string) (Deck, error) {
	tmpl, err := LookupTemplate(templateID)
	if err != nil {
		return Deck{}, err
	}

	chunks := textsplit.Split(text, opts)
	slides := make([]Slide, len(chunks))
	for i, chunk := range chunks {
		slides[i] = Slide{
			ID:          uuid.NewString(),
			Content:     chunk,
			TemplateRef: tmpl.ID,
			SlideNumber: i + 1,
			TotalSlides: len(chunks),
		}
	}

	title := UntitledDeck
	if len(slides) > 0 {
		if t := content.Analyze(slides[0].Content).Title; t != "" {
			title = t
		}
	}

	return Deck{
		Title:       title,
		Template:    tmpl.ID,
		ReadingTime: textsplit.EstimateReadingTime(text),
		Slides:      slides,
	}, nil
}
