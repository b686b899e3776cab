package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/olehluchkiv/carousel/internal/content"
	"github.com/olehluchkiv/carousel/internal/deck"
	"github.com/olehluchkiv/carousel/internal/resolver"
	"github.com/olehluchkiv/carousel/internal/textsplit"
)

// AnalyzerCacheSize bounds the memoized analyzer shared by the pipeline and
// the HTTP API.
const AnalyzerCacheSize = 512

// ErrInvalidText is wrapped by RunPipeline when the input fails validation.
var ErrInvalidText = errors.New("invalid text")

// PipelineConfig holds parameters for the deck pipeline.
type PipelineConfig struct {
	Input    string
	Stdin    io.Reader
	Split    textsplit.Options
	Template string
	// Analyzer defaults to a cached content.Default.
	Analyzer content.Analyzer
}

// Preview is a laid-out deck ready to be served or written out.
type Preview struct {
	Deck     deck.Deck
	Document deck.Document
	Options  textsplit.Options
	Warnings []string
}

// RunPipeline executes the resolve → validate → split → layout pipeline.
func RunPipeline(ctx context.Context, cfg PipelineConfig, logger *slog.Logger) (Preview, error) {
	logger = logger.With("component", "pipeline")

	// Step 1: Resolve input to text.
	logger.Info("resolving input", "input", cfg.Input)
	text, err := resolver.Resolve(ctx, cfg.Input, cfg.Stdin, logger)
	if err != nil {
		return Preview{}, fmt.Errorf("resolve: %w", err)
	}

	// Step 2: Validate.
	v := textsplit.Validate(text)
	for _, w := range v.Warnings {
		logger.Warn("text validation warning", "warning", w)
	}
	if !v.IsValid {
		return Preview{}, fmt.Errorf("%w: %s", ErrInvalidText, strings.Join(v.Errors, "; "))
	}

	// Step 3: Split into slides.
	d, err := deck.Build(text, cfg.Split, cfg.Template)
	if err != nil {
		return Preview{}, fmt.Errorf("build deck: %w", err)
	}
	logger.Info("deck built",
		"slides", len(d.Slides),
		"template", d.Template,
		"readingTimeSeconds", d.ReadingTime)

	// Step 4: Analyze each slide.
	a := cfg.Analyzer
	if a == nil {
		if a, err = content.NewCache(AnalyzerCacheSize, content.Default); err != nil {
			return Preview{}, err
		}
	}
	rendered, err := deck.Layout(ctx, d.Slides, a)
	if err != nil {
		return Preview{}, fmt.Errorf("layout: %w", err)
	}

	return Preview{
		Deck:     d,
		Document: deck.NewDocument(d, rendered),
		Options:  cfg.Split,
		Warnings: v.Warnings,
	}, nil
}
