package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"ecoaudit/internal/audit"
	auditcache "ecoaudit/internal/audit/cache"
	audithandler "ecoaudit/internal/audit/handler"
	auditmetrics "ecoaudit/internal/audit/metrics"
	"ecoaudit/internal/audit/mirror"
	auditstore "ecoaudit/internal/audit/store"
	"ecoaudit/internal/audit/store/memory"
	"ecoaudit/internal/audit/store/postgres"
	"ecoaudit/internal/platform/config"
	"ecoaudit/internal/platform/httpserver"
	"ecoaudit/internal/platform/logger"
	platformredis "ecoaudit/internal/platform/redis"
	"ecoaudit/pkg/platform/httputil"
	"ecoaudit/pkg/platform/middleware"
	"ecoaudit/pkg/platform/middleware/metadata"
	"ecoaudit/pkg/platform/middleware/requesttime"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in internal/audit.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	// Storage: postgres when configured, in-memory otherwise.
	var (
		ledger auditstore.Store
		checks []func(context.Context) error
	)
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		pg := postgres.New(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		ledger = pg
		checks = append(checks, pg.Health)
		log.Info("using postgres ledger")
	} else {
		ledger = memory.New()
		log.Warn("no database configured, using in-memory ledger; events are lost on restart")
	}

	m := auditmetrics.New()
	opts := []audit.Option{
		audit.WithMetrics(m),
		audit.WithPageLimits(cfg.DefaultPageSize, cfg.MaxPageSize),
	}

	// Optional recent-page cache.
	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		checks = append(checks, redisClient.Health)
		opts = append(opts, audit.WithRecentCache(auditcache.New(redisClient.Client, 30*time.Second)))
		log.Info("recent-page cache enabled")
	}

	// Optional Kafka mirror.
	var producer *mirror.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = mirror.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			return err
		}
		defer producer.Close()
		opts = append(opts, audit.WithMirror(producer))
		log.Info("kafka mirror enabled", "topic", cfg.Kafka.Topic)
	}

	svc := audit.NewService(ledger, log, opts...)

	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Timeout(cfg.QueryTimeout))

	audithandler.New(svc, log).Register(r)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		for _, check := range checks {
			if err := check(req.Context()); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	srv := httpserver.New(cfg.Addr, r)

	g, ctx := errgroup.WithContext(ctx)

	if producer != nil {
		g.Go(func() error {
			producer.Run(ctx)
			return nil
		})
	}

	g.Go(func() error {
		log.Info("starting audit server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down audit server")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
