// Command batch runs the pipeline over text, HTML and PDF files and writes
// one JSON record per document to stdout or -out.
//
// With -watch it keeps running and processes files as they are written to
// the given directories. With -submit it queues documents for the worker
// instead of processing them locally.
//
// Usage:
//
//	go run ./cmd/batch [-config configs/development.yaml] [-redact=false] [-store] notes/ referral.pdf
//	go run ./cmd/batch -watch inbox/
//	go run ./cmd/batch -submit notes/
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/app"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/batch"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/extract"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/store"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/worker"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	redact := flag.Bool("redact", true, "redact PHI before summarizing")
	outPath := flag.String("out", "", "output file (default stdout)")
	watch := flag.Bool("watch", false, "keep watching directories for new files")
	persist := flag.Bool("store", false, "save results to postgres")
	submit := flag.Bool("submit", false, "queue documents on kafka for the worker")
	flag.Parse()

	paths := flag.Args()
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "usage: batch [flags] <file or dir>...")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	// stdout carries records; logs go to stderr.
	logger.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, err := extract.Default(cfg.Extract.UnidocLicenseKey)
	if err != nil {
		slog.Error("failed to set up extractors", "error", err)
		os.Exit(1)
	}
	slog.Info("extractors ready", "extensions", strings.Join(registry.Extensions(), ","))

	if *submit {
		if err := submitFiles(ctx, cfg, registry, paths, *redact); err != nil {
			slog.Error("submit failed", "error", err)
			os.Exit(1)
		}
		return
	}

	models, err := app.BuildModels(ctx, cfg, nil)
	if err != nil {
		slog.Error("failed to configure models", "error", err)
		os.Exit(1)
	}
	p, err := app.BuildPipeline(cfg, models, nil)
	if err != nil {
		slog.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	var out io.Writer = os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			slog.Error("failed to create output file", "error", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	opts := batch.Options{Registry: registry, Pipeline: p, Redact: *redact, Out: out}
	if *persist {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		st := store.New(db)
		if err := st.Migrate(ctx); err != nil {
			slog.Error("result store migration failed", "error", err)
			os.Exit(1)
		}
		opts.Store = st
	}
	runner := batch.New(opts)

	sum, err := runner.Run(ctx, paths)
	if err != nil {
		slog.Error("batch failed", "error", err)
		os.Exit(1)
	}
	slog.Info("batch complete",
		"files", sum.Files,
		"processed", sum.Processed,
		"degraded", sum.Degraded,
		"failed", sum.Failed,
	)

	if *watch {
		if err := runner.Watch(ctx, cfg.Extract.WatchDebounce, dirsOf(paths)...); err != nil {
			slog.Error("watch failed", "error", err)
			os.Exit(1)
		}
		return
	}
	if sum.Failed > 0 {
		os.Exit(2)
	}
}

func submitFiles(ctx context.Context, cfg *config.Config, registry *extract.Registry, paths []string, redact bool) error {
	files, err := registry.Files(paths)
	if err != nil {
		return err
	}
	evs := make([]worker.DocumentEvent, 0, len(files))
	for _, path := range files {
		text, err := registry.Extract(ctx, path)
		if err != nil || strings.TrimSpace(text) == "" {
			slog.Warn("skipping file", "source", path, "error", err)
			continue
		}
		evs = append(evs, worker.DocumentEvent{Source: path, Text: text, Redact: redact})
	}
	if len(evs) == 0 {
		return fmt.Errorf("no documents to submit")
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentSubmitted)
	defer producer.Close()
	ids, err := worker.NewSubmitter(producer).SubmitBatch(ctx, evs)
	if err != nil {
		return err
	}
	for i, id := range ids {
		fmt.Printf("%s\t%s\n", id, evs[i].Source)
	}
	slog.Info("documents submitted", "count", len(ids), "topic", cfg.Kafka.Topics.DocumentSubmitted)
	return nil
}

// dirsOf keeps the directory arguments.
func dirsOf(paths []string) []string {
	var dirs []string
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			dirs = append(dirs, p)
		}
	}
	return dirs
}
