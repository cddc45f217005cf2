package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validate checks the structural validity of a Config and reports every
// problem at once.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	errs = append(errs, validateStore(cfg.Store)...)
	errs = append(errs, validateContext(cfg.Context)...)
	errs = append(errs, validateIngest(cfg)...)
	errs = append(errs, validateServe(cfg.Serve)...)
	errs = append(errs, validateLog(cfg.Log)...)

	return errors.Join(errs...)
}

func validateStore(s StoreConfig) []error {
	var errs []error
	switch s.Driver {
	case DriverSQLite, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("config: store.driver: unknown driver %q (supported: %q, %q)",
			s.Driver, DriverSQLite, DriverMemory))
	}
	if s.BusyTimeout < 0 {
		errs = append(errs, fmt.Errorf("config: store.busy_timeout must be non-negative, got %d", s.BusyTimeout))
	}
	return errs
}

func validateContext(c ContextConfig) []error {
	var errs []error
	if c.CharsPerToken < 0 {
		errs = append(errs, fmt.Errorf("config: context.chars_per_token must be positive, got %d", c.CharsPerToken))
	}
	if c.KnowledgeResults < 0 {
		errs = append(errs, fmt.Errorf("config: context.knowledge_results must be positive, got %d", c.KnowledgeResults))
	}
	if c.DefaultResults < 0 {
		errs = append(errs, fmt.Errorf("config: context.default_results must be positive, got %d", c.DefaultResults))
	}
	return errs
}

func validateIngest(cfg *Config) []error {
	in := cfg.Ingest
	var errs []error
	if in.ChunkSize < 0 {
		errs = append(errs, fmt.Errorf("config: ingest.chunk_size must be positive, got %d", in.ChunkSize))
	}
	if in.ChunkOverlap < 0 {
		errs = append(errs, fmt.Errorf("config: ingest.chunk_overlap must be non-negative, got %d", in.ChunkOverlap))
	} else if in.ChunkSize > 0 && in.ChunkOverlap >= in.ChunkSize {
		errs = append(errs, fmt.Errorf("config: ingest.chunk_overlap (%d) must be smaller than chunk_size (%d)",
			in.ChunkOverlap, in.ChunkSize))
	}
	if in.Workers < 0 {
		errs = append(errs, fmt.Errorf("config: ingest.workers must be positive, got %d", in.Workers))
	}
	for i, ext := range in.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			errs = append(errs, fmt.Errorf("config: ingest.extensions[%d]: %q must start with a dot", i, ext))
		}
	}
	return errs
}

func validateServe(s ServeConfig) []error {
	var errs []error
	if _, err := net.ResolveTCPAddr("tcp", s.Bind); err != nil {
		errs = append(errs, fmt.Errorf("config: serve.bind: invalid address %q: %w", s.Bind, err))
	}
	if s.RefreshSchedule != "" {
		if _, err := cron.ParseStandard(s.RefreshSchedule); err != nil {
			errs = append(errs, fmt.Errorf("config: serve.refresh_schedule: %w", err))
		}
		if s.KnowledgeDir == "" {
			errs = append(errs, errors.New("config: serve.refresh_schedule requires serve.knowledge_dir"))
		}
	}
	if s.WatchInterval < 0 {
		errs = append(errs, fmt.Errorf("config: serve.watch_interval must be non-negative, got %s", s.WatchInterval))
	}
	if s.WatchInterval > 0 && s.KnowledgeDir == "" {
		errs = append(errs, errors.New("config: serve.watch_interval requires serve.knowledge_dir"))
	}
	return errs
}

func validateLog(l LogConfig) []error {
	var errs []error
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("config: log.level: unknown level %q", l.Level))
	}
	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("config: log.format: unknown format %q (supported: \"text\", \"json\")", l.Format))
	}
	return errs
}
