// Package gateway serves the context assembler over HTTP: health, Prometheus
// metrics, and JSON endpoints for every assembler operation. It binds to
// loopback by default.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/applymytech/openElara/internal/assembler"
	"github.com/applymytech/openElara/internal/ingest"
	"github.com/applymytech/openElara/internal/security"
	"github.com/applymytech/openElara/internal/telemetry"
)

// Pinger is implemented by stores that can report their own health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ingester refreshes a knowledge directory.
type Ingester interface {
	Dir(ctx context.Context, dir string) (ingest.Result, error)
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithMetrics exposes m on /metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(g *Gateway) { g.prom = m }
}

// WithPinger makes /health report store connectivity.
func WithPinger(p Pinger) Option {
	return func(g *Gateway) { g.pinger = p }
}

// WithIngester enables POST /v1/ingest. dir is used when the request names
// no directory.
func WithIngester(in Ingester, dir string) Option {
	return func(g *Gateway) {
		g.ingester = in
		g.knowledgeDir = dir
	}
}

// WithAuditLogger records auth and mutation events.
func WithAuditLogger(a *security.AuditLogger) Option {
	return func(g *Gateway) { g.audit = a }
}

// WithConfigView exposes v, with secrets redacted, on GET /v1/config.
func WithConfigView(v any, r *security.Redactor) Option {
	return func(g *Gateway) {
		g.configView = v
		g.redactor = r
	}
}

// Gateway is the HTTP surface.
type Gateway struct {
	config       Config
	asm          *assembler.Assembler
	logger       *slog.Logger
	server       *http.Server
	listener     net.Listener
	stats        *Metrics
	prom         *telemetry.Metrics
	pinger       Pinger
	ingester     Ingester
	knowledgeDir string
	audit        *security.AuditLogger
	limiter      *security.RateLimiter
	configView   any
	redactor     *security.Redactor
	startedAt    time.Time
}

// New creates a Gateway serving asm.
func New(cfg Config, asm *assembler.Assembler, opts ...Option) *Gateway {
	cfg.defaults()
	g := &Gateway{
		config:    cfg,
		asm:       asm,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		stats:     &Metrics{},
		limiter:   security.NewRateLimiter(cfg.RateLimit),
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.redactor == nil {
		g.redactor = security.NewRedactor()
	}
	return g
}

// Handler returns the routed HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.buildRouter()
}

// Addr returns the bound address once Start has succeeded.
func (g *Gateway) Addr() string {
	if g.listener == nil {
		return g.config.Bind
	}
	return g.listener.Addr().String()
}

// Start listens on the configured address and serves in the background.
func (g *Gateway) Start(ctx context.Context) error {
	if !g.config.Auth.IsConfigured() {
		g.logger.Warn("gateway auth not configured, /v1 endpoints are unauthenticated", "bind", g.config.Bind)
	}

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen failed: %w", err)
	}
	g.listener = ln
	g.startedAt = time.Now()

	go func() {
		g.logger.Info("gateway listening", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop shuts the server down gracefully within the configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
