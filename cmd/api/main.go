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

	"call-insights/internal/audit"
	"call-insights/internal/auth"
	"call-insights/internal/authtoken"
	"call-insights/internal/calls"
	"call-insights/internal/clients"
	"call-insights/internal/config"
	"call-insights/internal/httpapi"
	"call-insights/internal/observability"
	"call-insights/internal/storage"
	"call-insights/internal/validation"
	"call-insights/pkg/logger"
	"call-insights/pkg/utils"

	"github.com/gin-gonic/gin"
)

const tokenCachePrefix = "call-insights:auth-token:"

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTracing, err := observability.Setup(rootCtx, cfg.OTel, cfg.App.Env, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}

	// Schemas compile once here; a malformed schema must stop the process.
	engine, err := validation.New()
	if err != nil {
		log.Error("validation init failed", "err", err)
		os.Exit(1)
	}
	engine.MustCompile(calls.Schemas()...)
	engine.MustCompile(clients.Schemas()...)
	engine.MustCompile(authtoken.Schemas()...)

	links, err := auth.NewLinkSigner(cfg.Auth)
	if err != nil {
		log.Error("link signer init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, cfg.PostgresDSN(), utils.PostgresPoolConfig{MaxConns: int32(cfg.DB.MaxConns)})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	objects, closeObjects, err := openObjectStore(rootCtx, cfg.Storage, log)
	if err != nil {
		log.Error("object store init failed", "err", err)
		os.Exit(1)
	}
	defer closeObjects()

	auditSvc := audit.NewService(audit.NewPostgresRepo(db))
	tokens := authtoken.NewService(
		authtoken.NewPostgresStore(db),
		utils.NewRedisCache(rdb, tokenCachePrefix),
		cfg.Redis.TokenCacheTTL,
		auditSvc,
	)

	h := httpapi.Handlers{
		Validator:   engine,
		Calls:       calls.NewService(calls.NewPostgresStore(db, cfg.App.AggregationTimeout), objects, links, auditSvc),
		Clients:     clients.NewService(clients.NewPostgresStore(db)),
		Tokens:      tokens,
		Objects:     objects,
		Links:       links,
		DB:          db,
		MasterToken: cfg.Auth.MasterToken,
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           newRouter(cfg, log, h),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "prefix", cfg.App.GlobalPrefix)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("otel shutdown failed", "err", err)
	}
}

// openObjectStore picks GCS when a bucket is configured and falls back to process memory.
func openObjectStore(ctx context.Context, cfg config.StorageConfig, log *slog.Logger) (storage.ObjectStore, func(), error) {
	if cfg.GCSBucket == "" {
		log.Warn("GCS_BUCKET not set; transcriptions are kept in memory")
		return storage.NewMemory(cfg.QuotaBytes), func() {}, nil
	}
	g, err := storage.NewGCS(ctx, storage.GCSConfig{
		Bucket:          cfg.GCSBucket,
		CredentialsFile: cfg.CredentialsFile,
		Endpoint:        cfg.Endpoint,
		QuotaBytes:      cfg.QuotaBytes,
	})
	if err != nil {
		return nil, nil, err
	}
	return g, func() {
		if err := g.Close(); err != nil {
			log.Warn("gcs close failed", "err", err)
		}
	}, nil
}
