package cron

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/applymytech/openElara/internal/ingest"
)

// Ingester is the subset of *ingest.Ingester used by KnowledgeRefreshJob.
type Ingester interface {
	Dir(ctx context.Context, dir string) (ingest.Result, error)
}

// KnowledgeRefreshJob re-ingests a knowledge directory. Files are replaced
// per source, so repeated runs converge on the directory contents.
type KnowledgeRefreshJob struct {
	Ingester     Ingester
	Dir          string
	ScheduleExpr string // empty = default "@hourly"
	Logger       *slog.Logger
}

// Compile-time interface check.
var _ Job = (*KnowledgeRefreshJob)(nil)

// Name implements Job.
func (j *KnowledgeRefreshJob) Name() string { return "knowledge_refresh" }

// Schedule implements Job.
func (j *KnowledgeRefreshJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "@hourly"
}

// Run ingests Dir.
func (j *KnowledgeRefreshJob) Run(ctx context.Context) error {
	res, err := j.Ingester.Dir(ctx, j.Dir)
	if err != nil {
		return fmt.Errorf("cron: knowledge refresh: %w", err)
	}
	logger(j.Logger).Info("cron: knowledge refreshed",
		"dir", j.Dir,
		"files", res.Files,
		"chunks", res.Chunks,
		"skipped", len(res.Skipped),
	)
	return nil
}

// TextfileWriter is implemented by *telemetry.Metrics.
type TextfileWriter interface {
	WriteTextfile(path string) error
}

// MetricsTextfileJob periodically snapshots metrics to a node-exporter
// textfile.
type MetricsTextfileJob struct {
	Metrics      TextfileWriter
	Path         string
	ScheduleExpr string // empty = default "* * * * *"
	Logger       *slog.Logger
}

// Compile-time interface check.
var _ Job = (*MetricsTextfileJob)(nil)

// Name implements Job.
func (j *MetricsTextfileJob) Name() string { return "metrics_textfile" }

// Schedule implements Job.
func (j *MetricsTextfileJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "* * * * *"
}

// Run writes the textfile.
func (j *MetricsTextfileJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("cron: metrics textfile cancelled: %w", err)
	}
	if err := j.Metrics.WriteTextfile(j.Path); err != nil {
		return fmt.Errorf("cron: metrics textfile: %w", err)
	}
	logger(j.Logger).Debug("cron: metrics textfile written", "path", j.Path)
	return nil
}

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return l
}
