package assembler

import ctxengine "github.com/applymytech/openElara/internal/context"

const (
	// DefaultKnowledgeResults is the fixed candidate count for
	// knowledge_base searches, whatever the caller asks for.
	DefaultKnowledgeResults = 20

	// DefaultResults is used when a search asks for no explicit count.
	DefaultResults = 15
)

// Config holds the assembler tuning knobs.
type Config struct {
	// Context configures token estimation and truncation.
	Context ctxengine.ContextConfig

	// KnowledgeResults replaces the requested result count for
	// knowledge_base searches.
	KnowledgeResults int

	// DefaultResults is the result count when the caller passes none.
	DefaultResults int
}

func (c Config) withDefaults() Config {
	if c.KnowledgeResults <= 0 {
		c.KnowledgeResults = DefaultKnowledgeResults
	}
	if c.DefaultResults <= 0 {
		c.DefaultResults = DefaultResults
	}
	return c
}
