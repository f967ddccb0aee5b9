package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"procverify/internal/analytics"
	analyticshandler "procverify/internal/analytics/handler"
	"procverify/internal/decision"
	"procverify/internal/history"
	"procverify/internal/history/publisher"
	historystore "procverify/internal/history/store"
	"procverify/internal/platform/config"
	"procverify/internal/platform/httpserver"
	"procverify/internal/platform/logger"
	"procverify/internal/platform/metrics"
	"procverify/internal/platform/middleware"
	"procverify/internal/platform/postgres"
	platformredis "procverify/internal/platform/redis"
	"procverify/internal/policy"
	"procverify/internal/verification/cache"
	verificationhandler "procverify/internal/verification/handler"
	verificationmetrics "procverify/internal/verification/metrics"
	"procverify/internal/verification/service"
	"procverify/pkg/platform/middleware/admin"
	"procverify/pkg/platform/middleware/metadata"
	"procverify/pkg/platform/middleware/requesttime"
)

const topicBootstrapTimeout = 10 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

type infra struct {
	redis *platformredis.Client
	db    *sql.DB
	kafka *kgo.Client
}

func (i *infra) close(ctx context.Context, log *slog.Logger) {
	if i.kafka != nil {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := i.kafka.Flush(ctx); err != nil {
			log.WarnContext(ctx, "kafka flush on shutdown failed", "error", err)
		}
		i.kafka.Close()
	}
	if i.redis != nil {
		_ = i.redis.Close()
	}
	if i.db != nil {
		_ = i.db.Close()
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	rules := policy.DefaultRules()
	if cfg.Verification.RulesPath != "" {
		loaded, err := policy.LoadRules(cfg.Verification.RulesPath)
		if err != nil {
			return fmt.Errorf("load policy rules: %w", err)
		}
		rules = loaded
	}
	catalog := policy.DefaultCatalog(rules)

	deps := &infra{}
	defer deps.close(context.WithoutCancel(ctx), log)

	decisionCache, err := buildCache(ctx, cfg, log, deps)
	if err != nil {
		return err
	}
	store, err := buildHistory(ctx, cfg, log, deps)
	if err != nil {
		return err
	}

	verificationMetrics := verificationmetrics.New()
	opts := []service.Option{
		service.WithHistory(store),
		service.WithLogger(log),
		service.WithMetrics(verificationMetrics),
		service.WithMaxBatchSize(cfg.Verification.MaxBatchSize),
		service.WithBatchConcurrency(cfg.Verification.BatchConcurrency),
		service.WithEnrichmentTimeout(cfg.Verification.EnrichmentTimeout),
	}
	if decisionCache != nil {
		opts = append(opts, service.WithCache(decisionCache))
	}
	verifier := service.New(catalog,
		decision.NewSynthesizer(decision.WithCitationLimit(cfg.Verification.CitationLimit)),
		opts...,
	)
	reports := analytics.New(store, catalog, analytics.WithLogger(log))

	router := newRouter(cfg, log, metrics.New(), deps, verifier, reports)
	srv := httpserver.New(cfg.Server.Addr, router)

	log.InfoContext(ctx, "starting procverify",
		"addr", cfg.Server.Addr,
		"catalog_version", catalog.Version(),
		"cache_enabled", decisionCache != nil,
		"cache_backend", cfg.Cache.Backend,
		"history_backend", historyBackend(cfg),
	)

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// buildCache returns nil when caching is disabled, so the service runs uncached.
func buildCache(ctx context.Context, cfg config.Config, log *slog.Logger, deps *infra) (service.DecisionCache, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	if cfg.Cache.Backend != config.CacheBackendRedis {
		return cache.NewInMemoryCache(cache.WithTTL(cfg.Cache.TTL)), nil
	}

	client, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		// An outage at boot is handled like one at runtime: the guard bypasses
		// the backend and probes until it answers.
		log.WarnContext(ctx, "redis unreachable at startup, decision cache bypassed until it recovers", "error", err)
		client, err = platformredis.Open(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("configure redis: %w", err)
		}
	}
	deps.redis = client
	redisCache := cache.NewRedisCache(client.Client, cache.WithRedisTTL(cfg.Cache.TTL))
	return cache.NewGuarded(redisCache, cache.WithGuardLogger(log)), nil
}

func buildHistory(ctx context.Context, cfg config.Config, log *slog.Logger, deps *infra) (history.Store, error) {
	var store history.Store = historystore.NewInMemoryStore()
	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		deps.db = db
		pg := historystore.NewPostgresStore(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		store = pg
	}

	if len(cfg.Kafka.Brokers) == 0 {
		return store, nil
	}
	client, err := publisher.NewClient(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	deps.kafka = client
	topicCtx, cancel := context.WithTimeout(ctx, topicBootstrapTimeout)
	defer cancel()
	if err := publisher.EnsureTopic(topicCtx, kadm.NewClient(client), cfg.Kafka.Topic); err != nil {
		// Publishing is best-effort; a missing topic only costs the fan-out.
		log.WarnContext(ctx, "kafka topic not ensured", "topic", cfg.Kafka.Topic, "error", err)
	}
	return publisher.New(store, client,
		publisher.WithTopic(cfg.Kafka.Topic),
		publisher.WithLogger(log),
		publisher.WithMetrics(publisher.NewMetrics()),
	), nil
}

func historyBackend(cfg config.Config) string {
	if cfg.Database.URL != "" {
		return "postgres"
	}
	return "memory"
}

func newRouter(
	cfg config.Config,
	log *slog.Logger,
	httpMetrics *metrics.Metrics,
	deps *infra,
	verifier *service.Service,
	reports *analytics.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(middleware.Tracing)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.LatencyMiddleware(httpMetrics))

	r.Get("/health", healthHandler(verifier.Catalog().Version(), deps))
	r.Handle("/metrics", promhttp.Handler())

	vh := verificationhandler.New(verifier, log)
	vh.Register(r)
	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(cfg.Server.AdminToken, log))
		vh.RegisterAdmin(r)
	})

	analyticshandler.New(reports, log).Register(r)
	return r
}
