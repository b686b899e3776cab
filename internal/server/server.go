package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/olehluchkiv/carousel/internal/content"
	"github.com/olehluchkiv/carousel/internal/deck"
	"github.com/olehluchkiv/carousel/internal/resolver"
	"github.com/olehluchkiv/carousel/internal/textsplit"
)

const previewHTMLTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.Title}} · carousel</title>
  <style>
    *, *::before, *::after { box-sizing: border-box; margin: 0; padding: 0; }

    body {
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
      display: flex;
      flex-direction: column;
      align-items: center;
      min-height: 100vh;
      padding: 1rem;
      background-color: #f8f9fa;
      color: #212529;
    }

    @media (prefers-color-scheme: dark) {
      body { background-color: #1a1a2e; color: #e0e0e0; }
      .controls button { background-color: #2d2d44; color: #e0e0e0; border-color: #444; }
    }

    h1 { margin: 1rem 0 0.25rem; font-size: 1.4rem; font-weight: 600; }
    .meta { font-size: 0.85rem; opacity: 0.7; margin-bottom: 1rem; }

    .controls {
      display: flex;
      gap: 0.5rem;
      margin-bottom: 1rem;
      align-items: center;
    }
    .controls button {
      padding: 0.4rem 0.9rem;
      font-size: 0.9rem;
      border: 1px solid #ccc;
      border-radius: 6px;
      background-color: #ffffff;
      cursor: pointer;
    }

    .slide {
      display: none;
      flex-direction: column;
      justify-content: space-between;
      width: min(90vw, 540px);
      aspect-ratio: 1 / 1;
      padding: 2.5rem;
      border-radius: 12px;
      box-shadow: 0 4px 24px rgba(0, 0, 0, 0.15);
      background: #ffffff;
      color: #111;
      overflow: hidden;
    }
    .slide.active { display: flex; }
    .slide h2 { font-size: 1.6rem; margin-bottom: 1rem; }
    .slide .body { font-size: 1.1rem; line-height: 1.5; }
    .slide pre { font-size: 0.8rem; background: #f1f3f5; padding: 0.75rem; border-radius: 6px; overflow: auto; }
    .slide .visual { font-size: 0.8rem; font-style: italic; opacity: 0.7; }
    .slide .tags { font-size: 0.85rem; color: #2374ab; }
    .slide .number { font-size: 0.8rem; opacity: 0.5; text-align: right; }

    .tpl-bold { background: #111; color: #fff; }
    .tpl-bold h2 { font-size: 2rem; text-transform: uppercase; }
    .tpl-gradient { background: linear-gradient(135deg, #667eea, #764ba2); color: #fff; }
    .tpl-quote .body { font-family: Georgia, serif; font-size: 1.4rem; font-style: italic; }
    .tpl-code { background: #0d1117; color: #c9d1d9; }
    .tpl-code pre { background: #161b22; color: #c9d1d9; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">{{.SlideCount}} slides · template {{.Template}} · about {{.ReadingTime}}s to read</div>

  <div class="controls">
    <button id="prev-btn" title="Previous Slide">Prev</button>
    <span id="slide-counter">1 / {{.SlideCount}}</span>
    <button id="next-btn" title="Next Slide">Next</button>
    <a href="/deck.json" download="{{.Filename}}.json">JSON</a>
    <a href="/deck.md" download="{{.Filename}}.md">Markdown</a>
  </div>

  {{range .Slides}}<section class="slide tpl-{{.Template}}" id="slide-{{.Index}}">
    <div>
      {{if .Title}}<h2>{{.Title}}</h2>{{end}}
      {{if .Body}}<div class="body">{{.Body}}</div>{{end}}
      {{if .Snippet}}<pre><code>{{.Snippet}}</code></pre>{{end}}
    </div>
    <div>
      {{if .Visual}}<div class="visual">Visual: {{.Visual}}</div>{{end}}
      {{if .Tags}}<div class="tags">{{range .Tags}}{{.}} {{end}}</div>{{end}}
      <div class="number">{{.Number}} / {{.Total}}</div>
    </div>
  </section>
  {{end}}

  <script>
    (function() {
      var current = 0;
      var total = {{.SlideCount}};
      function showSlide(idx) {
        if (total === 0) { return; }
        if (idx < 0) { idx = 0; }
        if (idx >= total) { idx = total - 1; }
        var prev = document.getElementById('slide-' + current);
        if (prev) { prev.classList.remove('active'); }
        current = idx;
        document.getElementById('slide-' + current).classList.add('active');
        document.getElementById('slide-counter').textContent = (current + 1) + ' / ' + total;
      }
      showSlide(0);
      document.getElementById('prev-btn').addEventListener('click', function() { showSlide(current - 1); });
      document.getElementById('next-btn').addEventListener('click', function() { showSlide(current + 1); });
      document.addEventListener('keydown', function(e) {
        if (e.key === 'ArrowLeft') { showSlide(current - 1); }
        if (e.key === 'ArrowRight') { showSlide(current + 1); }
      });
    })();
  </script>
</body>
</html>
`

var previewTmpl = template.Must(template.New("preview").Parse(previewHTMLTemplate))

var markdown = goldmark.New(goldmark.WithExtensions(extension.Linkify, extension.Strikethrough))

type slideView struct {
	Index    int
	Number   int
	Total    int
	Template string
	Title    string
	Body     template.HTML
	Snippet  string
	Visual   string
	Tags     []string
}

type pageData struct {
	Title       string
	Template    string
	Filename    string
	ReadingTime int
	SlideCount  int
	Slides      []slideView
}

// bodyHTML renders slide body text as HTML. Raw HTML in the input is not
// passed through.
func bodyHTML(body string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(body), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

func newPageData(doc deck.Document) (pageData, error) {
	data := pageData{
		Title:       doc.Title,
		Template:    doc.Template,
		Filename:    doc.Filename,
		ReadingTime: doc.ReadingTime,
		SlideCount:  len(doc.Slides),
		Slides:      make([]slideView, 0, len(doc.Slides)),
	}
	for i, r := range doc.Slides {
		body, err := bodyHTML(r.Content.Body)
		if err != nil {
			return pageData{}, fmt.Errorf("rendering slide %d body: %w", r.Slide.SlideNumber, err)
		}
		data.Slides = append(data.Slides, slideView{
			Index:    i,
			Number:   r.Slide.SlideNumber,
			Total:    r.Slide.TotalSlides,
			Template: r.Slide.TemplateRef,
			Title:    r.Content.Title,
			Body:     body,
			Snippet:  r.Snippet,
			Visual:   r.Content.Visual,
			Tags:     r.Content.Tags,
		})
	}
	return data, nil
}

// slidesRequest is the body of POST /api/slides. Absent numeric fields fall
// back to the options the preview was built with.
type slidesRequest struct {
	Text             string `json:"text"`
	MaxCharacters    *int   `json:"maxCharacters,omitempty"`
	MinWordsPerSlide *int   `json:"minWordsPerSlide,omitempty"`
	Template         string `json:"template,omitempty"`
}

type slidesResponse struct {
	Deck     deck.Document `json:"deck"`
	Warnings []string      `json:"warnings,omitempty"`
}

type analyzeRequest struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings,omitempty"`
}

// NewHandler returns the preview and API routes for p. a analyzes text
// submitted to the API and must be safe for concurrent use.
func NewHandler(p Preview, a content.Analyzer, logger *slog.Logger) http.Handler {
	logger = logger.With("component", "server")
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("request received", "method", r.Method, "path", r.URL.Path)
		data, err := newPageData(p.Document)
		if err != nil {
			logger.Error("failed to prepare preview", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		var buf bytes.Buffer
		if err := previewTmpl.Execute(&buf, data); err != nil {
			logger.Error("failed to render preview template", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = buf.WriteTo(w)
	})

	mux.HandleFunc("GET /deck.json", func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("request received", "method", r.Method, "path", r.URL.Path)
		writeJSON(w, http.StatusOK, p.Document, logger)
	})

	mux.HandleFunc("GET /deck.md", func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("request received", "method", r.Method, "path", r.URL.Path)
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = w.Write([]byte(deck.Markdown(p.Document)))
	})

	mux.HandleFunc("GET /api/templates", func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("request received", "method", r.Method, "path", r.URL.Path)
		writeJSON(w, http.StatusOK, deck.Templates(), logger)
	})

	mux.HandleFunc("POST /api/slides", func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("request received", "method", r.Method, "path", r.URL.Path)

		var req slidesRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Errors: []string{err.Error()}}, logger)
			return
		}

		v := textsplit.Validate(req.Text)
		if !v.IsValid {
			writeJSON(w, http.StatusBadRequest, errorResponse{Errors: v.Errors, Warnings: v.Warnings}, logger)
			return
		}

		opts := p.Options.Merge(textsplit.Overrides{
			MaxCharacters:    req.MaxCharacters,
			MinWordsPerSlide: req.MinWordsPerSlide,
		})
		if errs := optionErrors(opts); len(errs) > 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Errors: errs}, logger)
			return
		}

		tmpl := req.Template
		if tmpl == "" {
			tmpl = p.Deck.Template
		}
		d, err := deck.Build(req.Text, opts, tmpl)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Errors: []string{err.Error()}}, logger)
			return
		}

		rendered, err := deck.Layout(r.Context(), d.Slides, a)
		if err != nil {
			logger.Warn("layout aborted", "error", err)
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
			return
		}

		logger.Info("deck generated", "slides", len(d.Slides), "template", d.Template)
		writeJSON(w, http.StatusOK, slidesResponse{
			Deck:     deck.NewDocument(d, rendered),
			Warnings: v.Warnings,
		}, logger)
	})

	mux.HandleFunc("POST /api/analyze", func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("request received", "method", r.Method, "path", r.URL.Path)

		var req analyzeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Errors: []string{err.Error()}}, logger)
			return
		}
		writeJSON(w, http.StatusOK, a.Analyze(req.Text), logger)
	})

	return mux
}

func optionErrors(opts textsplit.Options) []string {
	var errs []string
	if opts.MaxCharacters <= 0 {
		errs = append(errs, "maxCharacters must be positive")
	}
	if opts.MinWordsPerSlide <= 0 {
		errs = append(errs, "minWordsPerSlide must be positive")
	}
	return errs
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, resolver.MaxInputBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("invalid request body: unexpected data after JSON value")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to write response", "error", err)
	}
}

// ServeDeck starts the HTTP server for the preview and API.
// It blocks until the context is cancelled.
func ServeDeck(ctx context.Context, p Preview, port int, openBrowser bool, logger *slog.Logger) error {
	a, err := content.NewCache(AnalyzerCacheSize, content.Default)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewHandler(p, a, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	url := fmt.Sprintf("http://localhost:%d", port)
	logger.Info("starting HTTP server", "addr", url, "slides", len(p.Document.Slides))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
		close(errCh)
	}()

	if openBrowser {
		openInBrowser(url, logger)
	}

	// Block until the context is cancelled or the server fails.
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}
		return nil
	}
}

// openInBrowser opens the given URL in the default system browser.
func openInBrowser(url string, logger *slog.Logger) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	default:
		logger.Warn("unsupported platform for opening browser", "os", runtime.GOOS)
		return
	}
	if err := cmd.Start(); err != nil {
		logger.Warn("failed to open browser", "error", err)
	}
}
