package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MaxInputBytes caps how much text is read from any source.
const MaxInputBytes = 1 << 20

// ErrEmptyInput is returned when no input source was given.
var ErrEmptyInput = errors.New("no input given")

// Resolve takes an input (a file path, "-" for stdin, or an http(s) URL) and
// returns the text it refers to.
func Resolve(ctx context.Context, input string, stdin io.Reader, logger *slog.Logger) (string, error) {
	logger = logger.With("component", "resolver")

	switch {
	case input == "":
		return "", ErrEmptyInput
	case input == "-":
		logger.Info("reading text from stdin")
		return readLimited(stdin, "stdin")
	case isURL(input):
		return fetchText(ctx, input, logger)
	}

	absPath, err := filepath.Abs(input)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", absPath, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory, expected a text file", absPath)
	}
	if info.Size() > MaxInputBytes {
		return "", fmt.Errorf("%s is %d bytes, larger than the %d byte limit", absPath, info.Size(), MaxInputBytes)
	}

	f, err := os.Open(absPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", absPath, err)
	}
	defer f.Close()

	logger.Info("resolved local file", "input", input, "path", absPath, "bytes", info.Size())
	return readLimited(f, absPath)
}

func isURL(input string) bool {
	return strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://")
}

// fetchText downloads a plain-text document.
func fetchText(ctx context.Context, url string, logger *slog.Logger) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/plain, text/markdown;q=0.9, */*;q=0.1")

	logger.Info("fetching remote text", "url", url)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	return readLimited(resp.Body, url)
}

func readLimited(r io.Reader, name string) (string, error) {
	if r == nil {
		return "", fmt.Errorf("read %s: no reader", name)
	}
	data, err := io.ReadAll(io.LimitReader(r, MaxInputBytes+1))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	if len(data) > MaxInputBytes {
		return "", fmt.Errorf("read %s: input exceeds the %d byte limit", name, MaxInputBytes)
	}
	return string(data), nil
}
