package testutils

import (
	"fmt"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/mcuadros/go-defaults"
)

// TestingT is an interface that matches the methods we need from testing.T
type TestingT interface {
	Errorf(format string, args ...interface{})
}

// TranscriptOptions controls how wire transcripts are normalized before
// comparison.
type TranscriptOptions struct {
	IgnoreEmptyLines bool `default:"true"`
	TrimSpace        bool `default:"true"`
	FoldCase         bool `default:"false"`
	EnableColors     bool `default:"false"`
}

// TranscriptOption is a functional option for configuring TranscriptAsserter
type TranscriptOption func(*TranscriptOptions)

// TranscriptAsserter compares the sequence of commands a test double saw
// on the wire against an expected script, reporting mismatches as a
// unified diff.
type TranscriptAsserter struct {
	t       TestingT
	options TranscriptOptions
}

// NewTranscriptAsserter creates a new TranscriptAsserter with default options
func NewTranscriptAsserter(t *testing.T) *TranscriptAsserter {
	return NewTranscriptAsserterWithInterface(t)
}

// NewTranscriptAsserterWithInterface creates a new TranscriptAsserter using
// the TestingT interface
func NewTranscriptAsserterWithInterface(t TestingT) *TranscriptAsserter {
	opts := TranscriptOptions{}
	defaults.SetDefaults(&opts)
	return &TranscriptAsserter{
		t:       t,
		options: opts,
	}
}

// WithOptions applies functional options to the TranscriptAsserter
func (ta *TranscriptAsserter) WithOptions(opts ...TranscriptOption) *TranscriptAsserter {
	for _, opt := range opts {
		opt(&ta.options)
	}
	return ta
}

// Assert compares the recorded command lines against the expected script.
func (ta *TranscriptAsserter) Assert(actual []string, expected string) {
	diff := ta.diff(strings.Join(actual, "\n"), expected)
	if diff != "" {
		ta.t.Errorf("Transcript mismatch:\n%s", diff)
	}
}

func (ta *TranscriptAsserter) diff(actual, expected string) string {
	normalizedActual := ta.normalize(actual)
	normalizedExpected := ta.normalize(expected)

	if normalizedActual == normalizedExpected {
		return ""
	}

	edits := myers.ComputeEdits("", normalizedExpected, normalizedActual)
	unified := gotextdiff.ToUnified("expected", "actual", normalizedExpected, edits)

	return ta.colorizeUnifiedDiff(fmt.Sprint(unified))
}

// colorizeUnifiedDiff applies colors to unified diff output
func (ta *TranscriptAsserter) colorizeUnifiedDiff(diff string) string {
	if !ta.options.EnableColors {
		return diff
	}

	red := color.New(color.FgRed)
	red.EnableColor()
	green := color.New(color.FgGreen)
	green.EnableColor()
	cyan := color.New(color.FgCyan)
	cyan.EnableColor()
	yellow := color.New(color.FgYellow)
	yellow.EnableColor()

	lines := strings.Split(diff, "\n")
	var colorized []string
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "---") || strings.HasPrefix(line, "+++"):
			colorized = append(colorized, yellow.Sprint(line))
		case strings.HasPrefix(line, "@@"):
			colorized = append(colorized, cyan.Sprint(line))
		case strings.HasPrefix(line, "-"):
			colorized = append(colorized, red.Sprint(line))
		case strings.HasPrefix(line, "+"):
			colorized = append(colorized, green.Sprint(line))
		default:
			colorized = append(colorized, line)
		}
	}

	return strings.Join(colorized, "\n")
}

func (ta *TranscriptAsserter) normalize(text string) string {
	lines := strings.Split(text, "\n")

	var result []string
	for _, line := range lines {
		if ta.options.TrimSpace {
			line = strings.TrimSpace(line)
		}
		if ta.options.IgnoreEmptyLines && line == "" {
			continue
		}
		if ta.options.FoldCase {
			line = strings.ToLower(line)
		}
		result = append(result, line)
	}

	return strings.Join(result, "\n")
}

// Functional option constructors

// WithIgnoreEmptyLines sets whether empty lines are dropped before comparison
func WithIgnoreEmptyLines(ignore bool) TranscriptOption {
	return func(opts *TranscriptOptions) {
		opts.IgnoreEmptyLines = ignore
	}
}

// WithTrimSpace sets whether each line is trimmed before comparison
func WithTrimSpace(trim bool) TranscriptOption {
	return func(opts *TranscriptOptions) {
		opts.TrimSpace = trim
	}
}

// WithFoldCase sets whether comparison is case-insensitive. Handy for hex
// dumps, which gatttool prints lowercase but tests often write uppercase.
func WithFoldCase(fold bool) TranscriptOption {
	return func(opts *TranscriptOptions) {
		opts.FoldCase = fold
	}
}

// WithEnableColors sets whether to enable colored diff output
func WithEnableColors(enable bool) TranscriptOption {
	return func(opts *TranscriptOptions) {
		opts.EnableColors = enable
	}
}
