package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/olehluchkiv/carousel/internal/textsplit"
)

// Environment variables read by Load.
const (
	EnvMaxCharacters    = "CAROUSEL_MAX_CHARACTERS"
	EnvMinWords         = "CAROUSEL_MIN_WORDS"
	EnvRespectSentences = "CAROUSEL_RESPECT_SENTENCES"
	EnvTemplate         = "CAROUSEL_TEMPLATE"
	EnvPort             = "CAROUSEL_PORT"
)

// Config holds settings taken from the environment. Zero values and nil
// pointers mean the variable was not set.
type Config struct {
	Split    textsplit.Overrides
	Template string
	Port     int
}

// LogValue implements slog.LogValuer.
func (c Config) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("template", c.Template),
		slog.Int("port", c.Port),
	}
	if c.Split.MaxCharacters != nil {
		attrs = append(attrs, slog.Int("maxCharacters", *c.Split.MaxCharacters))
	}
	if c.Split.MinWordsPerSlide != nil {
		attrs = append(attrs, slog.Int("minWordsPerSlide", *c.Split.MinWordsPerSlide))
	}
	if c.Split.RespectSentenceBoundaries != nil {
		attrs = append(attrs, slog.Bool("respectSentenceBoundaries", *c.Split.RespectSentenceBoundaries))
	}
	return slog.GroupValue(attrs...)
}

// Load reads envFile (if it exists) and the process environment. Values set
// in the process environment take precedence over the file. An empty envFile
// skips the file.
func Load(envFile string) (Config, error) {
	fileVars := map[string]string{}
	if envFile != "" {
		vars, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			fileVars = vars
		case errors.Is(err, fs.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("reading %s: %w", envFile, err)
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVars[key]
		return v, ok
	}

	var cfg Config
	var err error

	if cfg.Split.MaxCharacters, err = intVar(lookup, EnvMaxCharacters); err != nil {
		return Config{}, err
	}
	if cfg.Split.MinWordsPerSlide, err = intVar(lookup, EnvMinWords); err != nil {
		return Config{}, err
	}
	if v, ok := lookup(EnvRespectSentences); ok && v != "" {
		b, perr := strconv.ParseBool(v)
		if perr != nil {
			return Config{}, fmt.Errorf("%s: invalid boolean %q", EnvRespectSentences, v)
		}
		cfg.Split.RespectSentenceBoundaries = &b
	}
	if v, ok := lookup(EnvTemplate); ok {
		cfg.Template = v
	}
	port, err := intVar(lookup, EnvPort)
	if err != nil {
		return Config{}, err
	}
	if port != nil {
		if *port < 0 || *port > 65535 {
			return Config{}, fmt.Errorf("%s: port %d out of range", EnvPort, *port)
		}
		cfg.Port = *port
	}

	return cfg, nil
}

func intVar(lookup func(string) (string, bool), key string) (*int, error) {
	v, ok := lookup(key)
	if !ok || v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	if n <= 0 && key != EnvPort {
		return nil, fmt.Errorf("%s: must be positive, got %d", key, n)
	}
	return &n, nil
}
