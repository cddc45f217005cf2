// Package sanitize cleans chat turn text before it is stored.
package sanitize

import (
	"fmt"
	"regexp"
	"strings"
)

// Placeholder replaces content whose sanitization failed.
const Placeholder = "Chat turn content could not be sanitized for storage."

// Step is one named transformation in the pipeline.
type Step struct {
	Name  string
	Apply func(string) (string, error)
}

// StepError reports which step failed.
type StepError struct {
	Step string
	Err  error
}

// Error implements error.
func (e *StepError) Error() string {
	return fmt.Sprintf("sanitize: step %s: %v", e.Step, e.Err)
}

// Unwrap returns the underlying error.
func (e *StepError) Unwrap() error { return e.Err }

var (
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`[\s\v\p{Z}\x{85}]+`)
)

// Sanitizer runs steps in order.
type Sanitizer struct {
	steps []Step
}

// New returns a Sanitizer with the given steps, or DefaultSteps when
// none are passed.
func New(steps ...Step) *Sanitizer {
	if len(steps) == 0 {
		steps = DefaultSteps()
	}
	return &Sanitizer{steps: steps}
}

// DefaultSteps returns the standard pipeline.
func DefaultSteps() []Step {
	return []Step{
		{Name: "strip_tags", Apply: pure(StripTags)},
		{Name: "drop_control", Apply: pure(DropControl)},
		{Name: "collapse_whitespace", Apply: pure(CollapseWhitespace)},
		{Name: "remove_nul", Apply: pure(func(s string) string { return strings.ReplaceAll(s, "\x00", "") })},
		{Name: "valid_utf8", Apply: pure(func(s string) string { return strings.ToValidUTF8(s, "") })},
		{Name: "trim", Apply: pure(strings.TrimSpace)},
	}
}

func pure(f func(string) string) func(string) (string, error) {
	return func(s string) (string, error) { return f(s), nil }
}

// Sanitize runs every step. When a step fails the result is Placeholder
// together with a *StepError.
func (s *Sanitizer) Sanitize(text string) (string, error) {
	for _, step := range s.steps {
		out, err := step.Apply(text)
		if err != nil {
			return Placeholder, &StepError{Step: step.Name, Err: err}
		}
		text = out
	}
	return text, nil
}

// Text sanitizes with the default pipeline.
func Text(text string) (string, error) {
	return New().Sanitize(text)
}

// StripTags removes anything shaped like an HTML or XML tag.
func StripTags(s string) string {
	return tagPattern.ReplaceAllString(s, "")
}

// DropControl removes C0 control characters other than newline, carriage
// return and tab. DEL and the C1 range are kept.
func DropControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)
}

// CollapseWhitespace replaces every run of Unicode whitespace, including
// no-break and ideographic spaces, with a single space.
func CollapseWhitespace(s string) string {
	return whitespacePattern.ReplaceAllString(s, " ")
}
