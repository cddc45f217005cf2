package ctxengine

import "unicode/utf8"

// DefaultCharsPerToken is the characters-per-token ratio used for every
// packing decision unless configured otherwise.
const DefaultCharsPerToken = 4

// TokenEstimator estimates the token count of a string.
type TokenEstimator interface {
	Estimate(text string) int
}

// CharEstimator estimates tokens as characters divided by a fixed ratio,
// rounded down. Characters are Unicode code points.
type CharEstimator struct {
	CharsPerToken int
}

// NewCharEstimator creates a CharEstimator with the given ratio.
// If charsPerToken is <= 0, defaults to DefaultCharsPerToken.
func NewCharEstimator(charsPerToken int) *CharEstimator {
	if charsPerToken <= 0 {
		charsPerToken = DefaultCharsPerToken
	}
	return &CharEstimator{CharsPerToken: charsPerToken}
}

// Estimate returns the estimated token count for the given text.
func (e *CharEstimator) Estimate(text string) int {
	return utf8.RuneCountInString(text) / e.ratio()
}

// Chars returns the number of characters that fit in the given token count.
func (e *CharEstimator) Chars(tokens int) int {
	return tokens * e.ratio()
}

func (e *CharEstimator) ratio() int {
	if e == nil || e.CharsPerToken <= 0 {
		return DefaultCharsPerToken
	}
	return e.CharsPerToken
}
