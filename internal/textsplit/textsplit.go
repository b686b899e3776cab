package textsplit

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Options controls how text is partitioned into slide chunks.
type Options struct {
	MaxCharacters int // upper bound on a chunk's length in runes
	// RespectSentenceBoundaries is carried for callers that configure it, but
	// sentence splitting always runs first and word splitting is the fallback.
	RespectSentenceBoundaries bool
	MinWordsPerSlide          int // chunks shorter than this are merged forward
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxCharacters:             130,
		RespectSentenceBoundaries: true,
		MinWordsPerSlide:          3,
	}
}

// Overrides is a partial Options; nil fields keep the base value.
type Overrides struct {
	MaxCharacters             *int
	RespectSentenceBoundaries *bool
	MinWordsPerSlide          *int
}

// Merge returns a copy of o with every non-nil override applied.
func (o Options) Merge(ov Overrides) Options {
	if ov.MaxCharacters != nil {
		o.MaxCharacters = *ov.MaxCharacters
	}
	if ov.RespectSentenceBoundaries != nil {
		o.RespectSentenceBoundaries = *ov.RespectSentenceBoundaries
	}
	if ov.MinWordsPerSlide != nil {
		o.MinWordsPerSlide = *ov.MinWordsPerSlide
	}
	return o
}

// glued marks "end.Start" joins as sentence boundaries. Go's regexp has no
// lookbehind, so the actual break points are found by sentences().
var glued = regexp.MustCompile(`([.!?])([A-Z])`)

// accumulator is the state threaded through the sentence and word folds.
type accumulator struct {
	chunks  []string
	current string
}

// Split partitions text into ordered slide chunks. It never fails: empty or
// whitespace-only input yields no chunks.
func Split(text string, opts Options) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	normalized := strings.Join(strings.Fields(text), " ")
	normalized = glued.ReplaceAllString(normalized, "$1\n$2")

	sents := sentences(normalized)
	if len(sents) == 0 {
		return nil
	}

	var acc accumulator
	for _, s := range sents {
		acc = acc.add(s, opts)
		if runeLen(acc.current) > opts.MaxCharacters {
			long := splitLongSentence(acc.current, opts)
			acc.chunks = append(acc.chunks, long.chunks...)
			acc.current = long.current
		}
	}
	if acc.current != "" {
		acc.chunks = append(acc.chunks, acc.current)
	}

	return postProcess(acc.chunks, opts)
}

// add appends piece to the current chunk, flushing first when the chunk is
// full and already long enough to stand alone. A chunk that is too short is
// force-merged past the character budget.
func (a accumulator) add(piece string, opts Options) accumulator {
	if a.current == "" {
		a.current = piece
		return a
	}
	candidate := a.current + " " + piece
	if runeLen(candidate) > opts.MaxCharacters && WordCount(a.current) >= opts.MinWordsPerSlide {
		a.chunks = append(a.chunks, strings.TrimSpace(a.current))
		a.current = piece
		return a
	}
	a.current = candidate
	return a
}

// splitLongSentence re-folds an oversized buffer word by word. The returned
// accumulator holds the completed chunks and the unconsumed remainder.
// A single word longer than the budget is never broken.
func splitLongSentence(text string, opts Options) accumulator {
	var acc accumulator
	for _, w := range strings.Split(text, " ") {
		if w == "" {
			continue
		}
		acc = acc.add(w, opts)
	}
	return acc
}

// sentences breaks text after '.', '!' or '?' followed by whitespace,
// keeping the terminator with its sentence.
func sentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		if !isTerminator(text[i]) || i+1 >= len(text) || !isSpace(text[i+1]) {
			continue
		}
		if s := strings.TrimSpace(text[start : i+1]); s != "" {
			out = append(out, s)
		}
		j := i + 1
		for j < len(text) && isSpace(text[j]) {
			j++
		}
		start = j
		i = j - 1
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func postProcess(chunks []string, opts Options) []string {
	floor := min(opts.MinWordsPerSlide, 1)
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		words := WordCount(c)
		if words < floor {
			continue
		}
		if runeLen(c) > 10 && !isTerminator(c[len(c)-1]) && words >= 3 {
			c += "."
		}
		out = append(out, c)
	}
	return out
}

// WordCount returns the number of whitespace-separated words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// EstimateReadingTime returns the seconds needed to read text at 200 words
// per minute, never less than 3.
func EstimateReadingTime(text string) int {
	secs := (WordCount(text)*60 + 199) / 200
	return max(3, secs)
}

// Validation reports whether text is usable for slide generation.
type Validation struct {
	IsValid  bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Validate checks text against the minimum and recommended sizes for a deck.
func Validate(text string) Validation {
	v := Validation{Errors: []string{}, Warnings: []string{}}
	trimmed := strings.TrimSpace(text)
	words := WordCount(trimmed)
	chars := runeLen(trimmed)

	if trimmed == "" {
		v.Errors = append(v.Errors, "Text cannot be empty")
	} else {
		if chars < 10 {
			v.Errors = append(v.Errors, "Text must be at least 10 characters long")
		}
		if words < 3 {
			v.Errors = append(v.Errors, "Text must contain at least 3 words")
		}
	}

	if chars > 10000 {
		v.Warnings = append(v.Warnings, "Text is very long (over 10,000 characters) and may produce many slides")
	}
	if words > 2000 {
		v.Warnings = append(v.Warnings, "Text has over 2,000 words; consider splitting it into multiple carousels")
	}

	v.IsValid = len(v.Errors) == 0
	return v
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

func isTerminator(b byte) bool { return b == '.' || b == '!' || b == '?' }

// isSpace covers the only separators left after normalization.
func isSpace(b byte) bool { return b == ' ' || b == '\n' }
