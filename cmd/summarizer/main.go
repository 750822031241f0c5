// Command summarizer serves the redaction and summarization pipeline over
// HTTP and, when enabled, the internal JSON-over-TCP RPC listener.
//
// Redis caches results and PostgreSQL stores them and the API keys. Both are
// optional unless auth is enabled, which needs PostgreSQL. Processing events
// are aggregated in process and published to Kafka in batches.
//
// Usage:
//
//	go run ./cmd/summarizer [-config configs/development.yaml]
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

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/analytics/collector"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/api"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/app"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/auth/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/cache"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/store"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/worker"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/rpc"
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
	slog.Info("starting summarizer service",
		"port", cfg.Server.Port,
		"redaction_mode", cfg.Redaction.Mode,
		"auth", cfg.Auth.Enabled,
	)

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
	slog.Info("pipeline ready", "strategies", p.Strategies())

	checker := health.NewChecker()
	for name, check := range models.Checks {
		checker.Register(name, check)
	}

	opts := api.Options{
		Pipeline:     p,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}
	defaultRole, err := apikey.ParseRole(cfg.Auth.DefaultRole)
	if err != nil {
		slog.Error("invalid auth.defaultRole", "error", err)
		os.Exit(1)
	}
	opts.DefaultRole = defaultRole

	// PostgreSQL: result store, API keys and analytics snapshots.
	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		if cfg.Auth.Enabled {
			slog.Error("postgres is required when auth is enabled", "error", err)
			os.Exit(1)
		}
		slog.Warn("postgres unavailable, results will not be stored", "error", err)
	} else {
		defer db.Close()
		st := store.New(db)
		if err := st.Migrate(ctx); err != nil {
			slog.Error("result store migration failed", "error", err)
			os.Exit(1)
		}
		opts.Store = st
		checker.Register("postgres", health.Ping(db.Ping))
		slog.Info("result store enabled")
	}

	// Redis: result cache.
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, result caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			opts.Cache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			checker.Register("redis", health.Optional(redisClient.Ping))
			slog.Info("result cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	// Kafka: async submissions and analytics events.
	submitProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentSubmitted)
	defer submitProducer.Close()
	opts.Submitter = worker.NewSubmitter(submitProducer)

	eventsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.PipelineEvents)
	defer eventsProducer.Close()
	events := collector.NewBatchCollector(eventsProducer, 100, 5*time.Second)
	events.Start(ctx)
	defer events.Close()

	agg := analytics.NewAggregator()
	opts.Events = analytics.Fanout{agg, events}
	stats := analytics.NewHandler(agg)
	if db != nil {
		snapshots := aggregator.NewStore(db)
		if err := snapshots.Migrate(ctx); err != nil {
			slog.Warn("analytics snapshot migration failed", "error", err)
		} else {
			snapshots.StartPeriodicSave(ctx, agg, time.Minute)
			stats.WithHistory(snapshots)
		}
	}

	h := api.NewHandler(opts)
	routerOpts := api.RouterOptions{
		Analytics:      stats,
		Health:         checker,
		Metrics:        m,
		CORS:           api.DefaultCORSConfig(),
		RequestTimeout: cfg.Server.WriteTimeout,
	}
	if cfg.Auth.Enabled {
		validator := apikey.NewValidator(db)
		if err := validator.Migrate(ctx); err != nil {
			slog.Error("api key migration failed", "error", err)
			os.Exit(1)
		}
		limiter := ratelimit.New(cfg.Auth.RateWindow)
		defer limiter.Stop()
		routerOpts.Validator = validator
		routerOpts.Limiter = limiter
	}

	if cfg.RPC.Enabled {
		rpcServer := rpc.NewServer(cfg.Server.WriteTimeout)
		h.RegisterRPC(rpcServer)
		go func() {
			if err := rpcServer.Serve(cfg.RPC.Addr); err != nil {
				slog.Error("rpc server error", "error", err)
			}
		}()
		defer rpcServer.Stop()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(h, routerOpts),
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

	slog.Info("summarizer service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("summarizer service stopped")
}
