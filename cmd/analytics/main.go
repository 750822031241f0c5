// Command analytics aggregates the pipeline events published by every
// summarizer and worker instance.
//
// It consumes the pipeline-events topic, keeps fleet-wide counters in memory
// (documents, redactions, fallbacks per strategy, entity types, latency
// percentiles), snapshots them to PostgreSQL every minute when available,
// and serves them over HTTP.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml] [-port 8090]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	port := flag.Int("port", 8090, "HTTP port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", *port, "topic", cfg.Kafka.Topics.PipelineEvents)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agg := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.PipelineEvents, analytics.HandleEvent(agg))
	defer consumer.Close()
	go func() {
		if err := agg.Start(ctx, consumer); err != nil {
			slog.Error("aggregator error", "error", err)
		}
	}()

	checker := health.NewChecker()
	mux := http.NewServeMux()
	h := analytics.NewHandler(agg)
	mux.HandleFunc("GET /api/v1/analytics", h.Stats)
	mux.HandleFunc("GET /api/v1/analytics/history", h.History)

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, snapshots disabled", "error", err)
	} else {
		defer db.Close()
		snapshots := aggregator.NewStore(db)
		if err := snapshots.Migrate(ctx); err != nil {
			slog.Error("snapshot migration failed", "error", err)
			os.Exit(1)
		}
		snapshots.StartPeriodicSave(ctx, agg, time.Minute)
		checker.Register("postgres", health.Optional(db.Ping))
		h.WithHistory(snapshots)
	}

	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.RequestID(chain)
	chain = middleware.Recover(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("analytics service stopped")
}
