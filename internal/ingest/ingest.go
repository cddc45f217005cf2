// Package ingest loads markdown knowledge files into the knowledge_base
// collection.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/applymytech/openElara/internal/docstore"
	"github.com/applymytech/openElara/internal/telemetry"
)

// ErrNotDirectory is returned when the knowledge path is not a directory.
var ErrNotDirectory = errors.New("ingest: knowledge path is not a directory")

// Operation name used for metrics and spans.
const opIngest = "ingest"

// Config controls chunking and file selection.
type Config struct {
	ChunkSize    int      `yaml:"chunk_size"`
	ChunkOverlap int      `yaml:"chunk_overlap"`
	Extensions   []string `yaml:"extensions"`
	Workers      int      `yaml:"workers"`
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.ChunkOverlap <= 0 {
		c.ChunkOverlap = DefaultChunkOverlap
	}
	if len(c.Extensions) == 0 {
		c.Extensions = []string{".md", ".markdown"}
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	return c
}

// Result summarises one ingestion run.
type Result struct {
	Success bool     `json:"success"`
	Files   int      `json:"files"`
	Chunks  int      `json:"chunks"`
	Skipped []string `json:"skipped"`
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(in *Ingester) {
		if l != nil {
			in.logger = l
		}
	}
}

// WithMetrics records ingested chunk counts and run outcomes.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(in *Ingester) { in.metrics = m }
}

// WithTracer sets the tracer used for ingestion spans.
func WithTracer(t trace.Tracer) Option {
	return func(in *Ingester) {
		if t != nil {
			in.tracer = t
		}
	}
}

// Ingester chunks knowledge files and stores them.
type Ingester struct {
	client  docstore.Client
	cfg     Config
	chunker *Chunker
	logger  *slog.Logger
	metrics *telemetry.Metrics
	tracer  trace.Tracer
}

// New creates an Ingester writing into client.
func New(client docstore.Client, cfg Config, opts ...Option) *Ingester {
	cfg = cfg.withDefaults()
	in := &Ingester{
		client:  client,
		cfg:     cfg,
		chunker: NewChunker(WithChunkSize(cfg.ChunkSize), WithOverlap(cfg.ChunkOverlap)),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:  noop.NewTracerProvider().Tracer(telemetry.TracerName),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// parsedFile holds the chunks of one knowledge file.
type parsedFile struct {
	name   string
	chunks []string
	err    error
}

// Dir ingests every matching file directly inside dir into knowledge_base.
// Subdirectories are not visited. Files are read and chunked concurrently,
// then written one at a time: the previous chunks of each file are deleted
// by source before its new chunks are added.
//
// A file that cannot be read is listed in Result.Skipped. A store failure
// aborts the run.
func (in *Ingester) Dir(ctx context.Context, dir string) (res Result, err error) {
	start := time.Now()
	ctx, span := in.tracer.Start(ctx, "ingest.dir", trace.WithAttributes(
		attribute.String("ingest.dir", dir),
	))
	defer func() {
		outcome := telemetry.OutcomeOK
		if err != nil {
			outcome = telemetry.OutcomeFailed
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.Int("ingest.chunks", res.Chunks))
		span.End()
		in.metrics.ObserveOperation(opIngest, docstore.KnowledgeBase, outcome, time.Since(start))
	}()

	names, err := in.listFiles(dir)
	if err != nil {
		return Result{Skipped: []string{}}, err
	}
	in.logger.Info("ingesting knowledge", "dir", dir, "files", len(names))

	files, err := in.parse(ctx, dir, names)
	if err != nil {
		return Result{Skipped: []string{}}, err
	}

	coll, err := in.client.OpenCollection(ctx, docstore.KnowledgeBase)
	if err != nil {
		return Result{Skipped: []string{}}, fmt.Errorf("ingest: open collection: %w", err)
	}

	res = Result{Skipped: []string{}}
	for _, f := range files {
		if f.err != nil {
			in.logger.Warn("skipping unreadable knowledge file", "file", f.name, "error", f.err)
			res.Skipped = append(res.Skipped, f.name)
			continue
		}
		n, err := in.store(ctx, coll, f)
		if err != nil {
			return res, err
		}
		if n > 0 {
			res.Files++
			res.Chunks += n
		}
	}

	in.metrics.AddIngested(docstore.KnowledgeBase, res.Chunks)
	in.logger.Info("ingestion complete", "files", res.Files, "chunks", res.Chunks, "skipped", len(res.Skipped))
	res.Success = true
	return res, nil
}

// listFiles returns the sorted names of regular files in dir whose
// extension is selected.
func (in *Ingester) listFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotDirectory, dir)
		}
		return nil, fmt.Errorf("ingest: stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ingest: read dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !in.selected(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)
	return names, nil
}

func (in *Ingester) selected(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range in.cfg.Extensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}

// parse reads and chunks files with at most Workers in flight.
// Read errors are kept per file; only cancellation fails the whole call.
func (in *Ingester) parse(ctx context.Context, dir string, names []string) ([]parsedFile, error) {
	files := make([]parsedFile, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.cfg.Workers)
	for i, name := range names {
		files[i].name = name
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				files[i].err = err
				return nil
			}
			files[i].chunks = in.chunker.Split(string(data))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ingest: parse: %w", err)
	}
	return files, nil
}

// store replaces the chunks of one file and returns how many were written.
func (in *Ingester) store(ctx context.Context, coll docstore.Collection, f parsedFile) (int, error) {
	if err := coll.Delete(ctx, docstore.DeleteRequest{
		Where: docstore.Where{docstore.KeySource: f.name},
	}); err != nil {
		return 0, fmt.Errorf("ingest: delete stale chunks of %s: %w", f.name, err)
	}
	if len(f.chunks) == 0 {
		return 0, nil
	}

	ids := make([]string, len(f.chunks))
	metas := make([]docstore.Metadata, len(f.chunks))
	for i := range f.chunks {
		ids[i] = f.name + "-" + strconv.Itoa(i)
		metas[i] = docstore.Metadata{Source: f.name}
	}
	if err := coll.Add(ctx, f.chunks, metas, ids); err != nil {
		return 0, fmt.Errorf("ingest: add %s: %w", f.name, err)
	}
	in.logger.Debug("ingested knowledge file", "file", f.name, "chunks", len(f.chunks))
	return len(f.chunks), nil
}
