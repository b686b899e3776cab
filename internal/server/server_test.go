package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/olehluchkiv/carousel/internal/content"
	"github.com/olehluchkiv/carousel/internal/deck"
	"github.com/olehluchkiv/carousel/internal/resolver"
	"github.com/olehluchkiv/carousel/internal/textsplit"
)

const sampleText = "Short one. This is sentence two, which is also fairly short. Sentence three is here too."

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func sampleConfig(t *testing.T, text string) PipelineConfig {
	t.Helper()
	path := filepath.Join(t.TempDir(), "post.txt")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return PipelineConfig{
		Input:    path,
		Split:    textsplit.Options{MaxCharacters: 40, RespectSentenceBoundaries: true, MinWordsPerSlide: 3},
		Template: "bold",
	}
}

func samplePreview(t *testing.T) Preview {
	t.Helper()
	p, err := RunPipeline(context.Background(), sampleConfig(t, sampleText), testLogger())
	require.NoError(t, err)
	return p
}

// ---------------------------------------------------------------------------
// RunPipeline
// ---------------------------------------------------------------------------

func TestRunPipeline(t *testing.T) {
	p := samplePreview(t)

	require.Len(t, p.Deck.Slides, 3)
	require.Len(t, p.Document.Slides, 3)
	assert.Equal(t, "bold", p.Document.Template)
	assert.Equal(t, "Short one.", p.Document.Title)
	assert.Equal(t, "short-one", p.Document.Filename)
	assert.Equal(t, 40, p.Options.MaxCharacters)
	assert.Empty(t, p.Warnings)

	for i, r := range p.Document.Slides {
		assert.Equal(t, p.Deck.Slides[i], r.Slide)
		assert.Equal(t, content.Analyze(r.Slide.Content), r.Content)
	}
}

func TestRunPipeline_Stdin(t *testing.T) {
	cfg := PipelineConfig{
		Input: "-",
		Stdin: strings.NewReader(sampleText),
		Split: textsplit.DefaultOptions(),
	}
	p, err := RunPipeline(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	require.Len(t, p.Deck.Slides, 1)
	assert.Equal(t, deck.DefaultTemplate, p.Deck.Template)
}

func TestRunPipeline_InvalidText(t *testing.T) {
	_, err := RunPipeline(context.Background(), sampleConfig(t, "Hi there"), testLogger())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidText))
	assert.Contains(t, err.Error(), "at least 10 characters")
	assert.Contains(t, err.Error(), "at least 3 words")
}

func TestRunPipeline_WarningsKept(t *testing.T) {
	long := strings.Repeat("Carousels keep readers swiping. ", 400)
	cfg := sampleConfig(t, long)
	cfg.Split = textsplit.DefaultOptions()

	p, err := RunPipeline(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	assert.NotEmpty(t, p.Warnings)
}

func TestRunPipeline_EmptyInput(t *testing.T) {
	_, err := RunPipeline(context.Background(), PipelineConfig{}, testLogger())
	require.Error(t, err)
	assert.True(t, errors.Is(err, resolver.ErrEmptyInput))
}

func TestRunPipeline_UnknownTemplate(t *testing.T) {
	cfg := sampleConfig(t, sampleText)
	cfg.Template = "neon"

	_, err := RunPipeline(context.Background(), cfg, testLogger())
	require.Error(t, err)
	assert.True(t, errors.Is(err, deck.ErrUnknownTemplate))
}

func TestRunPipeline_CustomAnalyzer(t *testing.T) {
	cfg := sampleConfig(t, sampleText)
	cfg.Analyzer = content.AnalyzerFunc(func(string) content.Structured {
		return content.Structured{Title: "fixed"}
	})

	p, err := RunPipeline(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	for _, r := range p.Document.Slides {
		assert.Equal(t, "fixed", r.Content.Title)
	}
}

// ---------------------------------------------------------------------------
// Handler
// ---------------------------------------------------------------------------

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewHandler(samplePreview(t), content.Default, testLogger()))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func post(t *testing.T, url, body string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(out)
}

func TestHandler_Preview(t *testing.T) {
	srv := newTestServer(t)

	resp, body := get(t, srv.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, body, "<h1>Short one.</h1>")
	assert.Contains(t, body, `class="slide tpl-bold" id="slide-0"`)
	assert.Contains(t, body, `id="slide-2"`)
	assert.NotContains(t, body, `id="slide-3"`)
	assert.Contains(t, body, "3 / 3")
}

func TestHandler_UnknownPath(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := get(t, srv.URL+"/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = post(t, srv.URL+"/", "{}")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandler_DeckJSON(t *testing.T) {
	srv := newTestServer(t)

	resp, body := get(t, srv.URL+"/deck.json")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, int64(3), gjson.Get(body, "slides.#").Int())
	assert.Equal(t, "bold", gjson.Get(body, "template").String())
	assert.Equal(t, int64(3), gjson.Get(body, "slides.2.slide.slideNumber").Int())
}

func TestHandler_DeckMarkdown(t *testing.T) {
	srv := newTestServer(t)

	resp, body := get(t, srv.URL+"/deck.md")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/markdown")
	assert.True(t, strings.HasPrefix(body, "# Short one.\n"))
	assert.Contains(t, body, "## 2/3: ")
}

func TestHandler_Templates(t *testing.T) {
	srv := newTestServer(t)

	_, body := get(t, srv.URL+"/api/templates")
	assert.Equal(t, int64(len(deck.Templates())), gjson.Get(body, "#").Int())
	assert.Equal(t, deck.DefaultTemplate, gjson.Get(body, "0.id").String())
}

func TestHandler_Slides(t *testing.T) {
	srv := newTestServer(t)

	resp, body := post(t, srv.URL+"/api/slides", `{"text":"`+sampleText+`","maxCharacters":40,"minWordsPerSlide":3,"template":"quote"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	assert.Equal(t, int64(3), gjson.Get(body, "deck.slides.#").Int())
	assert.Equal(t, "quote", gjson.Get(body, "deck.template").String())
	assert.Equal(t, "quote", gjson.Get(body, "deck.slides.0.slide.templateRef").String())
	assert.False(t, gjson.Get(body, "warnings").Exists())
}

func TestHandler_SlidesUsesPreviewDefaults(t *testing.T) {
	srv := newTestServer(t)

	// The preview was built with 40 characters per slide and the bold template.
	resp, body := post(t, srv.URL+"/api/slides", `{"text":"`+sampleText+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, int64(3), gjson.Get(body, "deck.slides.#").Int())
	assert.Equal(t, "bold", gjson.Get(body, "deck.template").String())
}

func TestHandler_SlidesRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty text", `{"text":"   "}`, "Text cannot be empty"},
		{"short text", `{"text":"Hi there"}`, "Text must be at least 10 characters long"},
		{"bad json", `{"text":`, "invalid request body"},
		{"unknown field", `{"text":"` + sampleText + `","colour":"red"}`, "invalid request body"},
		{"trailing data", `{"text":"` + sampleText + `"} garbage`, "invalid request body"},
		{"second object", `{"text":"` + sampleText + `"}{"text":"again"}`, "invalid request body"},
		{"unknown template", `{"text":"` + sampleText + `","template":"neon"}`, "unknown template"},
		{"zero budget", `{"text":"` + sampleText + `","maxCharacters":0}`, "maxCharacters must be positive"},
		{"negative min words", `{"text":"` + sampleText + `","minWordsPerSlide":-1}`, "minWordsPerSlide must be positive"},
	}

	srv := newTestServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := post(t, srv.URL+"/api/slides", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Contains(t, gjson.Get(body, "errors").String(), tt.want)
		})
	}
}

func TestHandler_Analyze(t *testing.T) {
	srv := newTestServer(t)

	resp, body := post(t, srv.URL+"/api/analyze", `{"text":"Title: \"Ship it\"\nBody: Small releases win.\nVisual: rocket"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "Ship it", gjson.Get(body, "title").String())
	assert.Equal(t, "Small releases win.", gjson.Get(body, "body").String())
	assert.Equal(t, "rocket", gjson.Get(body, "visual").String())
}

func TestHandler_AnalyzeBadBody(t *testing.T) {
	srv := newTestServer(t)

	for _, body := range []string{"not json", `{"text":"Agenda:\nItem one."} trailing`} {
		resp, _ := post(t, srv.URL+"/api/analyze", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

// ---------------------------------------------------------------------------
// Rendering
// ---------------------------------------------------------------------------

func TestBodyHTML(t *testing.T) {
	got, err := bodyHTML("Ship **small** changes")
	require.NoError(t, err)
	assert.Contains(t, string(got), "<strong>small</strong>")
}

func TestBodyHTML_DropsRawHTML(t *testing.T) {
	got, err := bodyHTML("<script>alert(1)</script>")
	require.NoError(t, err)
	assert.NotContains(t, string(got), "<script>")
}

func TestBodyHTML_Linkify(t *testing.T) {
	got, err := bodyHTML("Docs at https://example.com today")
	require.NoError(t, err)
	assert.Contains(t, string(got), `<a href="https://example.com">`)
}

func TestNewPageData(t *testing.T) {
	p := samplePreview(t)

	data, err := newPageData(p.Document)
	require.NoError(t, err)
	assert.Equal(t, 3, data.SlideCount)
	require.Len(t, data.Slides, 3)
	for i, s := range data.Slides {
		assert.Equal(t, i, s.Index)
		assert.Equal(t, i+1, s.Number)
		assert.Equal(t, "bold", s.Template)
	}
}

// ---------------------------------------------------------------------------
// ServeDeck
// ---------------------------------------------------------------------------

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestServeDeck_ShutsDownOnCancel(t *testing.T) {
	p := samplePreview(t)
	port := freePort(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ServeDeck(ctx, p, port, false, testLogger())
	}()

	url := "http://127.0.0.1:" + strconv.Itoa(port) + "/deck.json"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("ServeDeck did not return after cancel")
	}
}

func TestServeDeck_PortInUse(t *testing.T) {
	l, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer l.Close()

	err = ServeDeck(context.Background(), samplePreview(t), l.Addr().(*net.TCPAddr).Port, false, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP server error")
}
