package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"

	"github.com/platinummonkey/folio/pkg/api"
	"github.com/platinummonkey/folio/pkg/assistant"
	"github.com/platinummonkey/folio/pkg/async"
	"github.com/platinummonkey/folio/pkg/audit"
	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/blog"
	"github.com/platinummonkey/folio/pkg/cache"
	"github.com/platinummonkey/folio/pkg/config"
	"github.com/platinummonkey/folio/pkg/database"
	"github.com/platinummonkey/folio/pkg/identity"
	"github.com/platinummonkey/folio/pkg/journals"
	"github.com/platinummonkey/folio/pkg/middleware"
	"github.com/platinummonkey/folio/pkg/observability"
	"github.com/platinummonkey/folio/pkg/storage"
	"github.com/platinummonkey/folio/pkg/tenants"
	"github.com/platinummonkey/folio/pkg/workflow"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).Errorf("Invalid configuration: %v", err)
		os.Exit(1)
	}

	logger := observability.NewLoggerFormat(cfg.Observability.Level(), cfg.Observability.LogFormat, os.Stdout)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("folio exited")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	log := logger.FieldLogger()

	providers, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		return err
	}

	conns, err := database.NewConnectionManager(cfg.Database.Connection(), log)
	if err != nil {
		return err
	}
	db := conns.Primary()
	if err := database.RunMigrations(ctx, db, database.Postgres, log); err != nil {
		conns.Close()
		return err
	}

	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			conns.Close()
			return err
		}
		rdb = redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("Redis unreachable at startup; shared cache and limits degrade until it returns")
		}
	}

	// Metrics
	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
		metrics.RegisterDBStats(db, "primary")
	}
	otelMetrics, err := observability.NewOTelMetrics(otel.Meter("github.com/platinummonkey/folio"))
	if err != nil {
		return err
	}
	workflowRecorders := observability.Recorders{otelMetrics}
	storageRecorders := observability.StorageRecorders{otelMetrics}
	cacheCfg := cache.DefaultConfig()
	cacheCfg.Redis = rdb
	if metrics != nil {
		workflowRecorders = append(workflowRecorders, metrics)
		storageRecorders = append(storageRecorders, metrics)
		cacheCfg.Recorder = metrics
	}

	// Manuscript storage
	backend := cfg.Storage.Backend
	if backend == "" {
		backend = "fs"
	}
	rawStore, err := storage.New(ctx, cfg.Storage.Store())
	if err != nil {
		conns.Close()
		return err
	}
	files := storage.Instrument(rawStore, backend, storageRecorders)

	// Audit events are written by a small pool off the request path.
	dbAudit, err := audit.NewDBLogger(db)
	if err != nil {
		conns.Close()
		return err
	}
	dbAudit.WithReader(conns.Replica)
	auditPool := async.NewPool(ctx, log, "audit", 4, 1024, 5*time.Second)
	auditLog := audit.NewAsyncLogger(audit.NewMultiLogger(dbAudit, audit.NewLogrusLogger(log)), auditPool)

	// Domain services
	var ids *identity.Service
	roles := cache.NewRoleCache(cacheCfg, func(ctx context.Context, userID int64) ([]auth.Role, error) {
		return ids.LoadRoles(ctx, userID)
	}, log)
	ids = identity.NewService(db, nil, identity.WithRoleCache(roles))
	tokens := auth.NewTokenStore(db, nil)

	services := api.Services{
		Tokens:   tokens,
		Identity: ids,
		Tenants:  tenants.NewService(db, nil),
		Journals: journals.NewService(db, nil),
		Workflow: workflow.NewService(db,
			workflow.WithOptions(cfg.Workflow.Options()),
			workflow.WithRecorder(workflowRecorders),
			workflow.WithFileStore(files, cfg.Storage.MaxUploadBytes()),
			workflow.WithLogger(log),
		),
		Blog:      blog.NewService(db, nil),
		Assistant: assistant.NewService(db, assistant.KeywordResponder{}, nil),
	}

	opts := api.Options{
		DB:           db,
		Logger:       log,
		Audit:        auditLog,
		AuditSearch:  dbAudit,
		Metrics:      metrics,
		Health:       observability.NewHealthChecker(db, rdb, files, version),
		RateLimitRPM: cfg.RateLimit.RequestsPerMinute,
		// Manuscript uploads plus room for multipart framing.
		MaxBodyBytes: cfg.Storage.MaxUploadBytes() + 1<<20,
	}
	if metrics != nil {
		opts.Registry = registry
	}
	if rdb != nil {
		opts.RateLimit = middleware.NewDistributedRateLimitMiddleware(rdb, cfg.RateLimit.RequestsPerMinute, log).Handler
	} else {
		limiter := middleware.NewRateLimitMiddleware(cfg.RateLimit.RequestsPerMinute, nil)
		limiter.StartCleanup(ctx)
		opts.RateLimit = limiter.Handler
	}
	handler := api.NewServer(services, opts)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Background jobs
	jobs := cron.New()
	if cfg.Jobs.TokenCleanupSchedule != "" {
		if _, err := jobs.AddFunc(cfg.Jobs.TokenCleanupSchedule, func() {
			defer observability.RecoverPanic(logger, "token cleanup")
			n, err := tokens.DeleteExpired(ctx)
			if err != nil {
				logger.WithError(err).Error("Token cleanup failed")
				return
			}
			logger.WithField("deleted", n).Info("Expired API tokens removed")
		}); err != nil {
			return err
		}
	}
	if cfg.Jobs.AuditRetention > 0 && cfg.Jobs.AuditCleanupSchedule != "" {
		if _, err := jobs.AddFunc(cfg.Jobs.AuditCleanupSchedule, func() {
			defer observability.RecoverPanic(logger, "audit cleanup")
			n, err := dbAudit.Cleanup(ctx, time.Now().Add(-cfg.Jobs.AuditRetention))
			if err != nil {
				logger.WithError(err).Error("Audit cleanup failed")
				return
			}
			logger.WithField("deleted", n).Info("Expired audit events removed")
		}); err != nil {
			return err
		}
	}
	if _, err := jobs.AddFunc("@every 1m", func() {
		defer observability.RecoverPanic(logger, "replica health")
		if removed := conns.RemoveUnhealthyReplicas(ctx); removed > 0 {
			logger.WithField("removed", removed).Warn("Dropped unhealthy read replicas")
		}
	}); err != nil {
		return err
	}
	jobs.Start()

	if path := os.Getenv("FOLIO_CONFIG_FILE"); path != "" {
		err := config.Watch(ctx, path, log, func(next *config.Config) {
			logger.SetLevel(next.Observability.Level())
			logger.WithField("level", next.Observability.Level().String()).Info("Configuration reloaded")
		})
		if err != nil {
			logger.WithError(err).Warn("Config watch disabled")
		}
	}

	shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
	shutdown.Register("database", func(context.Context) error { return conns.Close() })
	if rdb != nil {
		shutdown.Register("redis", func(context.Context) error { return rdb.Close() })
	}
	shutdown.Register("audit", func(context.Context) error { return auditLog.Close() })
	shutdown.Register("otel", providers.Shutdown)
	shutdown.Register("cron", func(ctx context.Context) error {
		select {
		case <-jobs.Stop().Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	observability.SafeGo(logger, "http server", func() {
		logger.WithField("addr", server.Addr).WithField("version", version).Info("Starting folio")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("HTTP server failed")
			cancel()
		}
	})

	return shutdown.WaitForSignal(ctx)
}
