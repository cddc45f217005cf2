package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/applymytech/openElara/internal/assembler"
	"github.com/applymytech/openElara/internal/config"
	"github.com/applymytech/openElara/internal/docstore"
	"github.com/applymytech/openElara/internal/security"
	"github.com/applymytech/openElara/internal/telemetry"
	"github.com/applymytech/openElara/modules/docstore/sqlite"
)

// errInsufficientArgs is reported when a command lacks its collection or
// storage root.
var errInsufficientArgs = errors.New("Insufficient arguments")

// cli carries process streams and global flags.
type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configPath string
	logLevel   string
	logFormat  string
}

// env is everything one command needs: config, logger, an open store and
// the assembler on top of it.
type env struct {
	cfg      *config.Config
	root     string
	logger   *slog.Logger
	redactor *security.Redactor
	client   docstore.Client
	metrics  *telemetry.Metrics
	tracer   trace.Tracer
	asm      *assembler.Assembler

	shutdownTracing telemetry.ShutdownFunc
}

// open resolves the storage root, loads config and opens the store.
// longRunning selects runtime metrics collectors for serve and mcp.
func (c *cli) open(ctx context.Context, rootArg string, longRunning bool) (*env, error) {
	root, err := config.ResolveRoot(rootArg)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(config.Discover(c.configPath, root))
	if err != nil {
		return nil, err
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	if c.logFormat != "" {
		cfg.Log.Format = c.logFormat
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	redactor := security.NewRedactor()
	redactor.AddLiteral(cfg.Serve.Auth.BearerToken)
	redactor.AddLiteral(cfg.Serve.Auth.BasicPass)
	logger := newLogger(c.stderr, cfg.Log, redactor)

	tp, shutdown, err := telemetry.SetupTracing(ctx, cfg.Telemetry.Tracing, version)
	if err != nil {
		return nil, err
	}
	tracer := telemetry.Tracer(tp)
	metrics := telemetry.NewMetrics(longRunning)

	client, err := openStore(ctx, cfg, root, logger)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}

	asm := assembler.New(client,
		assembler.WithLogger(logger),
		assembler.WithConfig(cfg.Assembler()),
		assembler.WithMetrics(metrics),
		assembler.WithTracer(tracer),
	)

	return &env{
		cfg:             cfg,
		root:            root,
		logger:          logger,
		redactor:        redactor,
		client:          client,
		metrics:         metrics,
		tracer:          tracer,
		asm:             asm,
		shutdownTracing: shutdown,
	}, nil
}

// Close releases the store, flushes spans and writes the metrics textfile
// when one is configured.
func (e *env) Close(ctx context.Context) error {
	var errs []error
	if err := e.client.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.metrics.WriteTextfile(e.cfg.Telemetry.MetricsTextfile); err != nil {
		errs = append(errs, err)
	}
	if err := e.shutdownTracing(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// closeEnv closes e and logs failures. Close errors never change a
// command's JSON answer.
func closeEnv(ctx context.Context, e *env) {
	if err := e.Close(ctx); err != nil {
		e.logger.Warn("shutdown incomplete", "error", err)
	}
}

func openStore(ctx context.Context, cfg *config.Config, root string, logger *slog.Logger) (docstore.Client, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		logger.Debug("using in-memory store")
		return docstore.NewInMemoryClient(), nil
	case config.DriverSQLite:
		client, err := sqlite.Open(ctx, cfg.SQLite(root), logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func newLogger(w io.Writer, lc config.LogConfig, r *security.Redactor) *slog.Logger {
	opts := &slog.HandlerOptions{Level: lc.SlogLevel()}
	var h slog.Handler
	if strings.EqualFold(lc.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(security.NewRedactingHandler(h, r))
}

// readStdin returns all of stdin.
func (c *cli) readStdin() ([]byte, error) {
	raw, err := io.ReadAll(c.stdin)
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	return raw, nil
}
