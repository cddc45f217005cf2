package ctxengine

// Candidate is one chunk of text offered to the packer, with its
// pre-computed token estimate.
type Candidate struct {
	Text   string
	Tokens int
}

// PackResult is the outcome of packing candidates under a budget.
type PackResult struct {
	// Selected is the chosen prefix of candidates, in input order. Never nil.
	Selected []string

	// TotalTokens is the estimated token count of Selected.
	TotalTokens int

	// Truncated is true when a single oversized candidate was cut to fit.
	Truncated bool
}

// Packer selects a budget-bounded prefix of ordered candidates.
type Packer struct {
	estimator *CharEstimator
	marker    string
}

// NewPacker creates a Packer from the given config.
func NewPacker(cfg ContextConfig) *Packer {
	cfg = cfg.withDefaults()
	return &Packer{
		estimator: NewCharEstimator(cfg.CharsPerToken),
		marker:    cfg.TruncationMarker,
	}
}

// Estimator returns the estimator used for every packing decision.
func (p *Packer) Estimator() TokenEstimator { return p.estimator }

// Candidates estimates each text and returns them as candidates.
func (p *Packer) Candidates(texts []string) []Candidate {
	out := make([]Candidate, len(texts))
	for i, t := range texts {
		out[i] = Candidate{Text: t, Tokens: p.estimator.Estimate(t)}
	}
	return out
}

// Pack walks candidates in order, accumulating their token cost, and
// stops at the first candidate that would push the total past budget.
// Empty candidates are skipped.
//
// If that overflowing candidate is the first one kept and allowTruncation
// is set, it is cut to budget*CharsPerToken characters, the truncation
// marker is appended, and it is returned alone. Otherwise everything from
// the overflowing candidate on is dropped.
func (p *Packer) Pack(candidates []Candidate, budget int, allowTruncation bool) PackResult {
	if budget < 0 {
		budget = 0
	}

	res := PackResult{Selected: []string{}}
	for _, c := range candidates {
		if c.Text == "" {
			continue
		}
		if res.TotalTokens+c.Tokens <= budget {
			res.Selected = append(res.Selected, c.Text)
			res.TotalTokens += c.Tokens
			continue
		}
		if len(res.Selected) == 0 && allowTruncation {
			text := truncateRunes(c.Text, p.estimator.Chars(budget)) + p.marker
			res.Selected = append(res.Selected, text)
			res.TotalTokens = p.estimator.Estimate(text)
			res.Truncated = true
		}
		break
	}
	return res
}

// truncateRunes returns the first n runes of s.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
