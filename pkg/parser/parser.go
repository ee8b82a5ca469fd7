package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Parser defines how to parse the output of an LLM.
type Parser[T any] interface {
	// Parse converts the output text into a structured object.
	Parse(text string) (T, error)
	// FormatInstructions returns a string describing the expected format.
	FormatInstructions() string
}

// ErrNotJSON is returned when the text is not a single JSON value.
var ErrNotJSON = errors.New("not a JSON value")

// JSONParser parses JSON output into T.
//
// By default the whole text, after trimming whitespace, must be exactly one
// JSON value. WithFences additionally accepts a value wrapped in a markdown
// code block.
type JSONParser[T any] struct {
	fences       bool
	numbers      bool
	instructions string
}

type Option func(*options)

type options struct {
	fences       bool
	numbers      bool
	instructions string
}

// WithFences accepts JSON embedded in ```json fences.
func WithFences() Option {
	return func(o *options) { o.fences = true }
}

// WithNumbers decodes numbers held in interface values as json.Number, so
// integers beyond 2^53 keep their digits.
func WithNumbers() Option {
	return func(o *options) { o.numbers = true }
}

// WithInstructions overrides the text returned by FormatInstructions.
func WithInstructions(text string) Option {
	return func(o *options) { o.instructions = text }
}

// NewJSONParser creates a new JSON parser.
func NewJSONParser[T any](opts ...Option) *JSONParser[T] {
	o := options{instructions: "Return the output as a valid JSON object."}
	for _, opt := range opts {
		opt(&o)
	}
	return &JSONParser[T]{fences: o.fences, numbers: o.numbers, instructions: o.instructions}
}

// Parse decodes text into T.
func (p *JSONParser[T]) Parse(text string) (T, error) {
	var out T

	text = strings.TrimSpace(text)
	if p.fences {
		text = stripFences(text)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	if p.numbers {
		dec.UseNumber()
	}
	if err := dec.Decode(&out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrNotJSON, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return out, fmt.Errorf("%w: trailing data after value", ErrNotJSON)
	}
	return out, nil
}

func (p *JSONParser[T]) FormatInstructions() string {
	return p.instructions
}

var fenceRe = regexp.MustCompile("(?s)^```(?:json)?(.*?)```$")

// stripFences extracts JSON from a markdown code block.
func stripFences(text string) string {
	if m := fenceRe.FindStringSubmatch(text); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return text
}
