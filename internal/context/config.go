// Package ctxengine implements token budgeting for context windows:
// token estimation, budget packing of ordered candidates, and recency
// ordering of stored documents.
package ctxengine

// DefaultTruncationMarker is appended to a candidate cut down to fit the budget.
const DefaultTruncationMarker = "\n[... conversation truncated due to length ...]"

// ContextConfig holds the tuning knobs for packing.
type ContextConfig struct {
	// CharsPerToken is the estimator ratio. 0 means DefaultCharsPerToken.
	CharsPerToken int

	// TruncationMarker is appended to a truncated candidate.
	TruncationMarker string
}

// withDefaults returns a copy of cfg with zero-valued fields replaced by
// sensible defaults.
func (cfg ContextConfig) withDefaults() ContextConfig {
	if cfg.CharsPerToken <= 0 {
		cfg.CharsPerToken = DefaultCharsPerToken
	}
	if cfg.TruncationMarker == "" {
		cfg.TruncationMarker = DefaultTruncationMarker
	}
	return cfg
}
