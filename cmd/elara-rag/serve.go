package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/applymytech/openElara/internal/cron"
	"github.com/applymytech/openElara/internal/gateway"
	"github.com/applymytech/openElara/internal/ingest"
	"github.com/applymytech/openElara/internal/mcpserver"
	"github.com/applymytech/openElara/internal/reload"
	"github.com/applymytech/openElara/internal/security"
)

func storageRootArg(_ *cobra.Command, args []string) error {
	if len(args) != 1 {
		return errInsufficientArgs
	}
	return nil
}

func serveCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve <storage_root>",
		Short: "Serve every operation over HTTP until interrupted",
		Args:  storageRootArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			e, err := c.open(ctx, args[0], true)
			if err != nil {
				return err
			}
			defer closeEnv(context.WithoutCancel(ctx), e)
			return c.serve(ctx, e)
		},
	}
}

func (c *cli) serve(ctx context.Context, e *env) error {
	serveCfg := e.cfg.Serve

	audit, closeAudit, err := openAuditLog(serveCfg.AuditLog, e.redactor)
	if err != nil {
		return err
	}
	defer closeAudit()

	in := ingest.New(e.client, e.cfg.Ingest,
		ingest.WithLogger(e.logger),
		ingest.WithMetrics(e.metrics),
		ingest.WithTracer(e.tracer),
	)

	opts := []gateway.Option{
		gateway.WithLogger(e.logger),
		gateway.WithMetrics(e.metrics),
		gateway.WithIngester(in, serveCfg.KnowledgeDir),
		gateway.WithAuditLogger(audit),
		gateway.WithConfigView(e.cfg, e.redactor),
	}
	if p, ok := e.client.(gateway.Pinger); ok {
		opts = append(opts, gateway.WithPinger(p))
	}
	gw := gateway.New(serveCfg.Config, e.asm, opts...)

	sched := cron.NewScheduler(e.logger)
	if serveCfg.RefreshSchedule != "" {
		if err := sched.RegisterJob(&cron.KnowledgeRefreshJob{
			Ingester:     in,
			Dir:          serveCfg.KnowledgeDir,
			ScheduleExpr: serveCfg.RefreshSchedule,
			Logger:       e.logger,
		}); err != nil {
			return err
		}
	}
	if path := e.cfg.Telemetry.MetricsTextfile; path != "" {
		if err := sched.RegisterJob(&cron.MetricsTextfileJob{
			Metrics: e.metrics,
			Path:    path,
			Logger:  e.logger,
		}); err != nil {
			return err
		}
	}

	if serveCfg.WatchInterval > 0 {
		w := reload.NewWatcher(reload.WatcherConfig{Dir: serveCfg.KnowledgeDir, PollInterval: serveCfg.WatchInterval})
		w.Start(ctx)
		defer w.Stop()
		stopReload := reload.NewHandler(in, e.logger).Start(ctx, w)
		defer stopReload()
	}

	if err := gw.Start(ctx); err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		_ = gw.Stop(context.WithoutCancel(ctx))
		return err
	}
	e.logger.Info("elara-rag serving", "addr", gw.Addr(), "root", e.root, "jobs", len(sched.Jobs()))

	<-ctx.Done()

	shutdownCtx := context.WithoutCancel(ctx)
	if err := sched.Stop(shutdownCtx); err != nil {
		e.logger.Warn("scheduler stop failed", "error", err)
	}
	return gw.Stop(shutdownCtx)
}

// openAuditLog opens path for appending JSONL audit events. An empty path
// returns a nil logger, which discards events.
func openAuditLog(path string, r *security.Redactor) (*security.AuditLogger, func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening audit log: %w", err)
	}
	audit := security.NewAuditLogger(security.AuditLoggerConfig{Writer: f, Redactor: r})
	return audit, func() { _ = f.Close() }, nil
}

func mcpCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp <storage_root>",
		Short: "Expose the context tools over MCP on stdio",
		Args:  storageRootArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			e, err := c.open(ctx, args[0], true)
			if err != nil {
				return err
			}
			defer closeEnv(context.WithoutCancel(ctx), e)

			srv := mcpserver.New(e.asm, version, mcpserver.WithLogger(e.logger))
			if err := srv.ServeStdio(ctx, c.stdin, c.stdout); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
