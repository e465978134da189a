package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/RnGenius-Gaming/code-push-server/internal/app/migrate"
	"github.com/RnGenius-Gaming/code-push-server/internal/blob"
	httpx "github.com/RnGenius-Gaming/code-push-server/internal/http"
	"github.com/RnGenius-Gaming/code-push-server/internal/repository/postgres"
	"github.com/RnGenius-Gaming/code-push-server/internal/service/audit"
	"github.com/RnGenius-Gaming/code-push-server/internal/service/metrics"
	"github.com/RnGenius-Gaming/code-push-server/internal/service/release"
	"github.com/RnGenius-Gaming/code-push-server/internal/service/report"
	"github.com/RnGenius-Gaming/code-push-server/internal/service/rollout"
	"github.com/RnGenius-Gaming/code-push-server/internal/ws"
	"github.com/RnGenius-Gaming/code-push-server/pkg/config"
	"github.com/RnGenius-Gaming/code-push-server/pkg/logger"
)

func main() {
	cfg := config.LoadAPIConfig()
	log := logger.New("api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	repo := postgres.New(pool)

	blobs, err := blob.NewFSStore(cfg.BlobRoot, cfg.BlobBaseURL)
	if err != nil {
		log.Error("failed to initialize blob store", "error", err)
		os.Exit(1)
	}

	hub := ws.NewHub(cfg.ReportBuffer)

	auditor := audit.NewRecorder(repo, log, prometheus.DefaultRegisterer)
	releaseSvc := release.New(repo, repo, repo, blobs, auditor, log)
	rolloutSvc := rollout.New(repo, repo, log)
	reportSvc := report.New(repo, repo, repo, hub, log)
	metricsSvc := metrics.New(repo, repo, repo, repo, repo, log)

	if cfg.AuditRetentionDays > 0 {
		go pruneAuditLoop(ctx, auditor, time.Duration(cfg.AuditRetentionDays)*24*time.Hour, log)
	}

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter = redisLimiter
		}
	}

	maxUpload := int64(cfg.MaxPackageSizeMB) << 20
	router := httpx.NewRouter(log, releaseSvc, rolloutSvc, reportSvc, metricsSvc, auditor, blobs, hub, limiter, pool.Ping, maxUpload)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}

// pruneAuditLoop trims audit entries past the retention horizon once a day.
func pruneAuditLoop(ctx context.Context, auditor *audit.Recorder, retention time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pruned, err := auditor.Prune(ctx, retention)
			if err != nil {
				log.Warn("audit prune failed", "error", err)
				continue
			}
			if pruned > 0 {
				log.Info("audit entries pruned", "count", pruned)
			}
		}
	}
}
