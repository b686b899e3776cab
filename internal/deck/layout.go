package deck

import (
	"context"
	"runtime"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"golang.org/x/sync/errgroup"

	"github.com/olehluchkiv/carousel/internal/content"
)

// Rendered is a slide together with the layout its text analyzes to.
type Rendered struct {
	Slide   Slide              `json:"slide" yaml:"slide"`
	Content content.Structured `json:"content" yaml:"content"`
	// Snippet is the visual snippet as it should be displayed: JSON is
	// re-indented, anything else is passed through verbatim.
	Snippet       string `json:"snippet,omitempty" yaml:"snippet,omitempty"`
	SnippetIsJSON bool   `json:"snippetIsJson,omitempty" yaml:"snippetIsJson,omitempty"`
}

// Layout analyzes every slide independently and returns the results in slide
// order. Slides are analyzed concurrently; a is shared across goroutines and
// must be safe for concurrent use.
func Layout(ctx context.Context, slides []Slide, a content.Analyzer) ([]Rendered, error) {
	out := make([]Rendered, len(slides))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, s := range slides {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = render(s, a.Analyze(s.Content))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func render(s Slide, sc content.Structured) Rendered {
	r := Rendered{Slide: s, Content: sc}
	r.Snippet, r.SnippetIsJSON = formatSnippet(sc.VisualSnippet)
	return r
}

func formatSnippet(snippet string) (string, bool) {
	if snippet == "" || !gjson.Valid(snippet) {
		return snippet, false
	}
	return strings.TrimRight(string(pretty.Pretty([]byte(snippet))), "\n"), true
}
