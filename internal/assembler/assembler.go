// Package assembler turns the knowledge_base and chat_history collections
// into token-budgeted context windows and maintains both collections.
//
// Read operations never fail: store errors are logged, counted and
// converted into each operation's degraded result.
package assembler

import (
	"context"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	ctxengine "github.com/applymytech/openElara/internal/context"
	"github.com/applymytech/openElara/internal/docstore"
	"github.com/applymytech/openElara/internal/sanitize"
	"github.com/applymytech/openElara/internal/telemetry"
)

// Operation names used in logs, metrics and spans.
const (
	OpRecentTurns = "get_recent_turns"
	OpSearch      = "search"
	OpList        = "list_items"
	OpCount       = "get_collection_count"
	OpDeleteIDs   = "delete_items"
	OpDeleteSrc   = "delete_source"
	OpClear       = "clear_collection"
	OpSaveTurn    = "save_chat_turn"
)

// Option configures optional Assembler behavior.
type Option func(*Assembler)

// WithLogger injects a structured logger. When nil or omitted, log output
// is discarded.
func WithLogger(l *slog.Logger) Option {
	return func(a *Assembler) { a.logger = l }
}

// WithConfig overrides the default tuning.
func WithConfig(cfg Config) Option {
	return func(a *Assembler) { a.config = cfg }
}

// WithLocation sets the zone chat turn timestamps are rendered in.
// Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(a *Assembler) { a.loc = loc }
}

// WithMetrics records operation metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(a *Assembler) { a.metrics = m }
}

// WithTracer wraps every operation in a span.
func WithTracer(t trace.Tracer) Option {
	return func(a *Assembler) { a.tracer = t }
}

// WithSanitizer replaces the default chat turn sanitizer.
func WithSanitizer(s *sanitize.Sanitizer) Option {
	return func(a *Assembler) { a.sanitizer = s }
}

// Assembler composes the store client, packer, recency resolver and
// sanitizer into the engine's operations. It holds no document state and
// is safe for concurrent use when the client is.
type Assembler struct {
	client    docstore.Client
	config    Config
	packer    *ctxengine.Packer
	sanitizer *sanitize.Sanitizer
	loc       *time.Location
	logger    *slog.Logger
	metrics   *telemetry.Metrics
	tracer    trace.Tracer
}

// New creates an Assembler over client. The caller owns the client and
// closes it when done.
func New(client docstore.Client, opts ...Option) *Assembler {
	a := &Assembler{client: client}
	for _, opt := range opts {
		opt(a)
	}

	a.config = a.config.withDefaults()
	a.packer = ctxengine.NewPacker(a.config.Context)
	if a.sanitizer == nil {
		a.sanitizer = sanitize.New()
	}
	if a.loc == nil {
		a.loc = time.Local
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if a.tracer == nil {
		a.tracer = noop.NewTracerProvider().Tracer(telemetry.TracerName)
	}
	return a
}

// Config returns the effective configuration.
func (a *Assembler) Config() Config { return a.config }

// call tracks one operation for tracing and metrics.
type call struct {
	ctx        context.Context
	a          *Assembler
	op         string
	collection string
	span       trace.Span
	start      time.Time
	outcome    string
}

func (a *Assembler) begin(ctx context.Context, op, collection string) (context.Context, *call) {
	ctx, span := a.tracer.Start(ctx, "assembler."+op,
		trace.WithAttributes(
			attribute.String("elara.operation", op),
			attribute.String("elara.collection", collection),
		),
	)
	return ctx, &call{
		ctx:        ctx,
		a:          a,
		op:         op,
		collection: collection,
		span:       span,
		start:      time.Now(),
		outcome:    telemetry.OutcomeOK,
	}
}

// degrade logs err by kind and marks the call as degraded. Invalid
// arguments and missing collections are warnings; transport failures
// are errors.
func (c *call) degrade(err error) {
	kind := docstore.KindOf(err)
	level := slog.LevelError
	if kind == docstore.KindInvalidArgument || kind == docstore.KindNotFound {
		level = slog.LevelWarn
	}
	c.a.logger.Log(c.ctx, level, "operation degraded",
		"operation", c.op,
		"collection", c.collection,
		"kind", kind.String(),
		"error", err,
	)
	c.a.metrics.RecordDegraded(c.op, kind.String())
	c.span.RecordError(err)
	c.span.SetStatus(codes.Error, err.Error())
	c.outcome = telemetry.OutcomeDegraded
}

// fail marks a mutation that reported success:false.
func (c *call) fail(err error) {
	c.a.logger.Warn("operation failed",
		"operation", c.op,
		"collection", c.collection,
		"error", err,
	)
	c.span.RecordError(err)
	c.span.SetStatus(codes.Error, err.Error())
	c.outcome = telemetry.OutcomeFailed
}

func (c *call) end() {
	c.span.SetAttributes(attribute.String("elara.outcome", c.outcome))
	c.span.End()
	c.a.metrics.ObserveOperation(c.op, c.collection, c.outcome, time.Since(c.start))
}

// timestamps extracts the timestamp of each metadata entry. Missing
// entries yield an unset timestamp.
func timestamps(metas []docstore.Metadata, n int) []docstore.Timestamp {
	ts := make([]docstore.Timestamp, n)
	for i := range min(n, len(metas)) {
		ts[i] = metas[i].Timestamp
	}
	return ts
}
