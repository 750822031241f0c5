// Package batch runs the pipeline over files on disk and writes one JSON
// record per document.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/document"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/extract"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/pipeline"
)

// Processor is the pipeline surface the runner needs.
type Processor interface {
	ProcessInput(ctx context.Context, in pipeline.Input) (*pipeline.Result, error)
	ProcessBatch(ctx context.Context, inputs []pipeline.Input) ([]pipeline.BatchResult, error)
}

// ResultStore persists results.
type ResultStore interface {
	Save(ctx context.Context, res *pipeline.Result) error
}

// Record is one output line. Result is nil when Error is set.
type Record struct {
	Source string           `json:"source"`
	Result *pipeline.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// Summary counts the outcomes of a run.
type Summary struct {
	Files     int `json:"files"`
	Processed int `json:"processed"`
	Degraded  int `json:"degraded"`
	Failed    int `json:"failed"`
}

// Options configures a Runner. Store and Events are optional.
type Options struct {
	Registry *extract.Registry
	Pipeline Processor
	Store    ResultStore
	Events   analytics.Sink
	Redact   bool
	Out      io.Writer
}

type Runner struct {
	registry *extract.Registry
	pipeline Processor
	store    ResultStore
	events   analytics.Sink
	redact   bool
	logger   *slog.Logger

	mu  sync.Mutex
	enc *json.Encoder
}

func New(opts Options) *Runner {
	if opts.Events == nil {
		opts.Events = analytics.Discard{}
	}
	return &Runner{
		registry: opts.Registry,
		pipeline: opts.Pipeline,
		store:    opts.Store,
		events:   opts.Events,
		redact:   opts.Redact,
		logger:   slog.Default().With("component", "batch"),
		enc:      json.NewEncoder(opts.Out),
	}
}

// Run processes every supported file under paths. Extraction and
// processing failures are reported per file; only cancellation or an
// unreadable path fails the run.
func (r *Runner) Run(ctx context.Context, paths []string) (Summary, error) {
	files, err := r.registry.Files(paths)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{Files: len(files)}
	r.logger.Info("batch starting", "files", len(files), "redact", r.redact)

	inputs := make([]pipeline.Input, 0, len(files))
	for _, path := range files {
		text, err := r.extract(ctx, path)
		if err != nil {
			sum.Failed++
			r.extractFailed(path, err)
			continue
		}
		inputs = append(inputs, pipeline.Input{Source: path, Text: text, Redact: r.redact})
	}
	if len(inputs) == 0 {
		return sum, nil
	}

	start := time.Now()
	results, err := r.pipeline.ProcessBatch(ctx, inputs)
	for _, br := range results {
		if br.Err != nil && ctx.Err() != nil {
			continue
		}
		r.record(ctx, &sum, br.Input, br.Result, br.Err, time.Since(start))
	}
	r.logger.Info("batch finished",
		"processed", sum.Processed,
		"degraded", sum.Degraded,
		"failed", sum.Failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return sum, err
}

// ProcessFile handles one file, e.g. from a directory watcher.
func (r *Runner) ProcessFile(ctx context.Context, path string) {
	text, err := r.extract(ctx, path)
	if err != nil {
		r.extractFailed(path, err)
		return
	}
	in := pipeline.Input{Source: path, Text: text, Redact: r.redact}
	start := time.Now()
	res, err := r.pipeline.ProcessInput(ctx, in)
	var sum Summary
	r.record(ctx, &sum, in, res, err, time.Since(start))
}

// extract treats a file that yields only whitespace as a failure.
func (r *Runner) extract(ctx context.Context, path string) (string, error) {
	text, err := r.registry.Extract(ctx, path)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no text extracted")
	}
	return text, nil
}

func (r *Runner) extractFailed(path string, err error) {
	r.events.Emit(analytics.Failed("", analytics.OriginBatch, err))
	r.write(Record{Source: path, Error: err.Error()})
	r.logger.Warn("extraction failed", "source", path, "error", err)
}

func (r *Runner) record(ctx context.Context, sum *Summary, in pipeline.Input, res *pipeline.Result, err error, latency time.Duration) {
	if err != nil {
		sum.Failed++
		r.events.Emit(analytics.Failed("", analytics.OriginBatch, err))
		r.write(Record{Source: in.Source, Error: err.Error()})
		r.logger.Error("processing failed", "source", in.Source, "error", err)
		return
	}
	sum.Processed++
	if res.Degraded() {
		sum.Degraded++
	}
	if r.store != nil {
		if err := r.store.Save(ctx, res); err != nil {
			r.logger.Error("saving result failed", "source", in.Source, "error", err)
		}
	}
	ev := analytics.Processed(res, analytics.OriginBatch)
	ev.Words = document.WordCount(in.Text)
	ev.LatencyMs = latency.Milliseconds()
	r.events.Emit(ev)

	out := *res
	out.OriginalText = ""
	r.write(Record{Source: in.Source, Result: &out})
}

func (r *Runner) write(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enc.Encode(rec); err != nil {
		r.logger.Error("writing record failed", "source", rec.Source, "error", err)
	}
}

// Watch processes files as they are written to dirs until ctx is
// cancelled.
func (r *Runner) Watch(ctx context.Context, debounce time.Duration, dirs ...string) error {
	w := extract.NewWatcher(r.registry, debounce, r.ProcessFile)
	return w.Watch(ctx, dirs...)
}
