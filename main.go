package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/olehluchkiv/carousel/internal/config"
	"github.com/olehluchkiv/carousel/internal/deck"
	"github.com/olehluchkiv/carousel/internal/logging"
	"github.com/olehluchkiv/carousel/internal/server"
	"github.com/olehluchkiv/carousel/internal/textsplit"
)

const defaultPort = 8080

func main() {
	// Use a custom FlagSet so we can parse all args regardless of position.
	// Go's default flag.Parse stops at the first non-flag argument, which
	// breaks "carousel post.txt -output deck.json". We reorder args so flags
	// come first, then positional args.
	flags, positional := reorderArgs(os.Args[1:])

	fs := flag.NewFlagSet("carousel", flag.ExitOnError)
	pathFlag := fs.String("path", "", "text file, URL or - for stdin (alternative to positional argument)")
	port := fs.Int("port", defaultPort, "HTTP server port (env "+config.EnvPort+")")
	maxChars := fs.Int("max-chars", 0, "maximum characters per slide (default 130, env "+config.EnvMaxCharacters+")")
	minWords := fs.Int("min-words", 0, "minimum words per slide (default 3, env "+config.EnvMinWords+")")
	tmplFlag := fs.String("template", "", "slide template: "+templateIDs()+" (env "+config.EnvTemplate+")")
	output := fs.String("output", "", "write the deck to file instead of serving")
	formatFlag := fs.String("format", "", "output format: json, yaml, markdown (default from -output extension)")
	noBrowser := fs.Bool("no-browser", false, "skip auto-opening browser")
	envFile := fs.String("env-file", ".env", "dotenv file with CAROUSEL_* settings")
	logFile := fs.String("log-file", "logs/carousel.log", "log file path (empty for stderr only)")
	logLevel := fs.String("log-level", "info", "log level (debug, info, warn, error)")

	if err := fs.Parse(flags); err != nil {
		os.Exit(1)
	}
	// Collect any remaining args from flag parsing + our positional args
	positional = append(positional, fs.Args()...)

	// Determine input: positional argument takes precedence, then -path flag
	input := ""
	if len(positional) > 0 {
		input = positional[0]
	}
	if input == "" {
		input = *pathFlag
	}
	if input == "" {
		fmt.Fprintln(os.Stderr, "Usage: carousel [flags] <file|url|->")
		fs.PrintDefaults()
		os.Exit(1)
	}

	// Parse log level
	level, err := parseLogLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level %q: %v\n", *logLevel, err)
		os.Exit(1)
	}

	// Setup logging
	logger, logCleanup, err := logging.Setup(*logFile, level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup logging: %v\n", err)
		os.Exit(1)
	}
	defer logCleanup()

	// Environment settings sit between flag values and defaults.
	cfg, err := config.Load(*envFile)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("configuration loaded", "config", cfg)

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	s, err := resolveSettings(set, cliValues{
		MaxChars: *maxChars,
		MinWords: *minWords,
		Template: *tmplFlag,
		Port:     *port,
	}, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var format deck.Format
	if *output != "" {
		if format, err = outputFormat(*formatFlag, *output); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	// Setup signal handling with context cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	// Step 1: Resolve, split and lay out
	fmt.Println("Building carousel...")
	preview, err := server.RunPipeline(ctx, server.PipelineConfig{
		Input:    input,
		Stdin:    os.Stdin,
		Split:    s.Split,
		Template: s.Template,
	}, logger)
	if err != nil {
		logger.Error("pipeline failed", "error", err)
		if errors.Is(err, server.ErrInvalidText) {
			fmt.Fprintf(os.Stderr, "Input rejected: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Error building carousel: %v\n", err)
		}
		os.Exit(1)
	}
	for _, w := range preview.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}

	fmt.Printf("Built %d slides (template %s, about %ds to read)\n",
		len(preview.Document.Slides), preview.Document.Template, preview.Document.ReadingTime)

	if len(preview.Document.Slides) == 0 {
		fmt.Println("No slides produced, nothing to show.")
		os.Exit(0)
	}

	// Step 2: Output or serve
	if *output != "" {
		if err := writeDeck(*output, format, preview.Document); err != nil {
			logger.Error("failed to write output file", "error", err)
			fmt.Fprintf(os.Stderr, "Error writing to %s: %v\n", *output, err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s deck to %s\n", format, *output)
		return
	}

	openBrowser := !*noBrowser
	fmt.Printf("Starting server on http://localhost:%d\n", s.Port)
	if err := server.ServeDeck(ctx, preview, s.Port, openBrowser, logger); err != nil {
		logger.Error("server error", "error", err)
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

// reorderArgs separates flags and positional arguments so flags can appear
// in any position (before or after the positional path argument).
// Flags that take a value (e.g., -output deck.json) consume the next arg.
// A lone "-" is the stdin input, not a flag.
func reorderArgs(args []string) (flags, positional []string) {
	// Set of flags that take a value argument
	valueFlagSet := map[string]bool{
		"-path": true, "-port": true, "-max-chars": true, "-min-words": true,
		"-template": true, "-output": true, "-format": true, "-env-file": true,
		"-log-file": true, "-log-level": true,
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if strings.HasPrefix(arg, "-") && arg != "-" {
			flags = append(flags, arg)
			// Check if this flag takes a value (and it's not using = syntax)
			if !strings.Contains(arg, "=") && valueFlagSet[arg] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, arg)
		}
	}
	return flags, positional
}

// cliValues are the raw flag values that have environment fallbacks.
type cliValues struct {
	MaxChars int
	MinWords int
	Template string
	Port     int
}

type settings struct {
	Split    textsplit.Options
	Template string
	Port     int
}

// resolveSettings applies defaults, then environment values, then flags that
// were explicitly set on the command line.
func resolveSettings(set map[string]bool, f cliValues, cfg config.Config) (settings, error) {
	s := settings{
		Split:    textsplit.DefaultOptions().Merge(cfg.Split),
		Template: deck.DefaultTemplate,
		Port:     defaultPort,
	}
	if cfg.Template != "" {
		s.Template = cfg.Template
	}
	if cfg.Port != 0 {
		s.Port = cfg.Port
	}

	if set["max-chars"] {
		s.Split.MaxCharacters = f.MaxChars
	}
	if set["min-words"] {
		s.Split.MinWordsPerSlide = f.MinWords
	}
	if set["template"] {
		s.Template = f.Template
	}
	if set["port"] {
		s.Port = f.Port
	}

	if s.Split.MaxCharacters <= 0 {
		return settings{}, fmt.Errorf("max characters per slide must be positive, got %d", s.Split.MaxCharacters)
	}
	if s.Split.MinWordsPerSlide <= 0 {
		return settings{}, fmt.Errorf("minimum words per slide must be positive, got %d", s.Split.MinWordsPerSlide)
	}
	if _, err := deck.LookupTemplate(s.Template); err != nil {
		return settings{}, fmt.Errorf("%w (valid: %s)", err, templateIDs())
	}
	return s, nil
}

// outputFormat picks the format from -format, falling back to the output
// file extension and then JSON.
func outputFormat(formatFlag, output string) (deck.Format, error) {
	if formatFlag != "" {
		return deck.ParseFormat(formatFlag)
	}
	if f, err := deck.ParseFormat(filepath.Ext(output)); err == nil {
		return f, nil
	}
	return deck.FormatJSON, nil
}

func writeDeck(path string, format deck.Format, doc deck.Document) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := deck.Write(f, format, doc); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func templateIDs() string {
	var ids []string
	for _, t := range deck.Templates() {
		ids = append(ids, t.ID)
	}
	return strings.Join(ids, ", ")
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s (valid: debug, info, warn, error)", s)
	}
}
