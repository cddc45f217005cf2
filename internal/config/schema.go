// Package config handles YAML configuration loading, environment variable
// expansion, defaults, and structural validation for elara-rag.
package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/applymytech/openElara/internal/assembler"
	ctxengine "github.com/applymytech/openElara/internal/context"
	"github.com/applymytech/openElara/internal/gateway"
	"github.com/applymytech/openElara/internal/ingest"
	"github.com/applymytech/openElara/internal/telemetry"
	"github.com/applymytech/openElara/modules/docstore/sqlite"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// FileName is the config file looked up in the storage root when no
// explicit path is given.
const FileName = "elara-rag.yaml"

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	Store     StoreConfig     `yaml:"store"`
	Context   ContextConfig   `yaml:"context"`
	Ingest    ingest.Config   `yaml:"ingest"`
	Serve     ServeConfig     `yaml:"serve"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

// StoreConfig selects and tunes the document store.
type StoreConfig struct {
	// Driver is "sqlite" (default) or "memory".
	Driver string `yaml:"driver"`

	// Path overrides the database file. Defaults to <root>/db/elara.db.
	Path string `yaml:"path"`

	WAL         *bool `yaml:"wal"`
	BusyTimeout int   `yaml:"busy_timeout"`
}

// ContextConfig tunes estimation and result counts.
type ContextConfig struct {
	CharsPerToken    int    `yaml:"chars_per_token"`
	KnowledgeResults int    `yaml:"knowledge_results"`
	DefaultResults   int    `yaml:"default_results"`
	TruncationMarker string `yaml:"truncation_marker"`
}

// ServeConfig configures the long-running HTTP surface.
type ServeConfig struct {
	gateway.Config `yaml:",inline"`

	// KnowledgeDir is re-ingested on RefreshSchedule.
	KnowledgeDir string `yaml:"knowledge_dir"`

	// RefreshSchedule is a standard cron expression. Empty disables refresh.
	RefreshSchedule string `yaml:"refresh_schedule"`

	// WatchInterval polls KnowledgeDir and re-ingests on change. Zero
	// disables watching.
	WatchInterval time.Duration `yaml:"watch_interval"`
}

// TelemetryConfig configures tracing and metrics output.
type TelemetryConfig struct {
	Tracing telemetry.TracingConfig `yaml:"tracing"`

	// MetricsTextfile receives a Prometheus text dump after each one-shot
	// command. Empty disables it.
	MetricsTextfile string `yaml:"metrics_textfile"`
}

// LogConfig configures the stderr logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SlogLevel maps Level to a slog level. Unknown values map to info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default returns a configuration with every default filled in.
func Default() *Config {
	cfg := &Config{Version: "1"}
	cfg.defaults()
	return cfg
}

// defaults fills zero values with sensible defaults.
func (c *Config) defaults() {
	if c.Store.Driver == "" {
		c.Store.Driver = DriverSQLite
	}
	if c.Store.WAL == nil {
		t := true
		c.Store.WAL = &t
	}
	if c.Store.BusyTimeout == 0 {
		c.Store.BusyTimeout = 5000
	}
	if c.Context.CharsPerToken == 0 {
		c.Context.CharsPerToken = ctxengine.DefaultCharsPerToken
	}
	if c.Context.KnowledgeResults == 0 {
		c.Context.KnowledgeResults = assembler.DefaultKnowledgeResults
	}
	if c.Context.DefaultResults == 0 {
		c.Context.DefaultResults = assembler.DefaultResults
	}
	if c.Ingest.ChunkSize == 0 {
		c.Ingest.ChunkSize = ingest.DefaultChunkSize
	}
	if c.Ingest.ChunkOverlap == 0 {
		c.Ingest.ChunkOverlap = ingest.DefaultChunkOverlap
	}
	if len(c.Ingest.Extensions) == 0 {
		c.Ingest.Extensions = []string{".md", ".markdown"}
	}
	if c.Ingest.Workers == 0 {
		c.Ingest.Workers = 4
	}
	if c.Serve.Bind == "" {
		c.Serve.Bind = gateway.DefaultBind
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Assembler returns the assembler settings.
func (c *Config) Assembler() assembler.Config {
	return assembler.Config{
		Context: ctxengine.ContextConfig{
			CharsPerToken:    c.Context.CharsPerToken,
			TruncationMarker: c.Context.TruncationMarker,
		},
		KnowledgeResults: c.Context.KnowledgeResults,
		DefaultResults:   c.Context.DefaultResults,
	}
}

// SQLite returns the SQLite store settings for a resolved storage root.
func (c *Config) SQLite(root string) sqlite.Config {
	path := c.Store.Path
	if path == "" {
		path = DBPath(root)
	}
	return sqlite.Config{
		Path:        path,
		WAL:         c.Store.WAL,
		BusyTimeout: c.Store.BusyTimeout,
	}
}
