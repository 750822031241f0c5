// Command worker consumes submitted documents from Kafka, runs them through
// the pipeline, stores the results and publishes a processed event per
// document.
//
// Usage:
//
//	go run ./cmd/worker [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/analytics/collector"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/app"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/store"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/worker"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting worker", "topic", cfg.Kafka.Topics.DocumentSubmitted, "group", cfg.Kafka.ConsumerGroup)

	// A consumer that stopped on an undelivered message exits non-zero, after
	// the deferred closers have flushed, so the supervisor restarts it.
	exitCode := 0
	defer func() {
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Port); err != nil {
				slog.Error("metrics server error", "error", err)
			}
		}()
	}

	models, err := app.BuildModels(ctx, cfg, m)
	if err != nil {
		slog.Error("failed to configure models", "error", err)
		os.Exit(1)
	}
	p, err := app.BuildPipeline(cfg, models, m)
	if err != nil {
		slog.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

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

	results := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentProcessed)
	defer results.Close()

	eventsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.PipelineEvents)
	defer eventsProducer.Close()
	events := collector.NewBatchCollector(eventsProducer, 100, 5*time.Second)
	events.Start(ctx)
	defer events.Close()

	w := worker.New(worker.Options{
		Pipeline: p,
		Store:    st,
		Results:  results,
		Events:   events,
		Metrics:  m,
	})
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentSubmitted, w.HandleMessage())
	defer consumer.Close()

	slog.Info("worker ready, consuming from kafka")
	if err := consumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
		exitCode = 1
		stop()
	}
	slog.Info("worker stopped")
}
