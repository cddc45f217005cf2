package reload

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/applymytech/openElara/internal/ingest"
)

// Ingester is the subset of *ingest.Ingester the handler needs.
type Ingester interface {
	Dir(ctx context.Context, dir string) (ingest.Result, error)
}

// Handler re-ingests a directory in response to watcher events.
type Handler struct {
	ingester Ingester
	logger   *slog.Logger
}

// NewHandler creates a reload handler.
func NewHandler(in Ingester, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{ingester: in, logger: logger}
}

// HandleEvent ingests evt.Dir.
func (h *Handler) HandleEvent(ctx context.Context, evt Event) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("reload: context cancelled before ingest: %w", err)
	}
	res, err := h.ingester.Dir(ctx, evt.Dir)
	if err != nil {
		return fmt.Errorf("reload: ingesting %s: %w", evt.Dir, err)
	}
	h.logger.Info("knowledge directory reloaded", "dir", evt.Dir, "files", res.Files, "chunks", res.Chunks)
	return nil
}

// Run forwards events from w to HandleEvent until ctx is done. Handler
// errors are logged and do not stop the loop.
func (h *Handler) Run(ctx context.Context, w *Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-w.Events():
			if err := h.HandleEvent(ctx, evt); err != nil {
				h.logger.Error("knowledge reload failed", "error", err)
			}
		}
	}
}

// Start runs Run in the background. The returned stop function cancels
// the loop and blocks until any in-flight ingest has returned.
func (h *Handler) Start(ctx context.Context, w *Watcher) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Go(func() { h.Run(ctx, w) })
	return func() {
		cancel()
		wg.Wait()
	}
}
