package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-hq/meridian/internal/app"
	"github.com/meridian-hq/meridian/internal/auth"
	"github.com/meridian-hq/meridian/internal/notifications"
	"github.com/meridian-hq/meridian/internal/observability"
	"github.com/meridian-hq/meridian/internal/pages"
	"github.com/meridian-hq/meridian/internal/platform/cache"
	"github.com/meridian-hq/meridian/internal/platform/db"
	"github.com/meridian-hq/meridian/internal/ratelimit"
	"github.com/meridian-hq/meridian/internal/rbac"
	"github.com/meridian-hq/meridian/internal/reports"
	"github.com/meridian-hq/meridian/internal/tenants"
	"github.com/meridian-hq/meridian/internal/token"
	"github.com/meridian-hq/meridian/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if err := rbac.ValidateCatalog(); err != nil {
		logger.Error("permission catalog", slog.Any("error", err))
		os.Exit(1)
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	tokenService, err := token.NewService(cfg.AuthTokenSecret)
	if err != nil {
		logger.Error("init token service", slog.Any("error", err))
		os.Exit(1)
	}
	previewSigner, err := pages.NewPreviewSigner(cfg.SiteTokenSecret)
	if err != nil {
		logger.Error("init preview signer", slog.Any("error", err))
		os.Exit(1)
	}
	ipHasher, err := ratelimit.NewIPHasher(cfg.IPHashSecret)
	if err != nil {
		logger.Error("init ip hasher", slog.Any("error", err))
		os.Exit(1)
	}

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	tenantService := tenants.NewService(tenants.NewRepository(dbpool))
	notifier := notifications.NewService(logger, jobClient)

	authService := auth.NewService(
		logger,
		tokenService,
		auth.NewHTTPIdentityClient(cfg.IdentityBackendURL),
		tenantService,
		auth.NewRepository(dbpool),
		auth.NewRedisRevocations(redisClient),
		notifier,
	)
	authMiddleware := auth.Middleware{Service: authService, Logger: logger, Metrics: metrics}

	limiter := ratelimit.NewLimiter(ratelimit.NewRedisStore(redisClient, "meridian"))
	authIPLimiter := ratelimit.Middleware(logger, limiter, cfg.AuthIPLimit, cfg.AuthIPWindow, func(r *http.Request) (string, error) {
		return ratelimit.Key("auth-ip", ipHasher.Hash(r.RemoteAddr)), nil
	}, metrics)

	authHandler := auth.NewHandler(logger, authService, limiter)
	reportsHandler := reports.NewHandler(logger, limiter)
	pagesHandler := pages.NewHandler(logger, previewSigner)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		AuthHandler:    authHandler,
		AuthMiddleware: authMiddleware,
		ReportsHandler: reportsHandler,
		PagesHandler:   pagesHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
		AuthIPLimiter:  authIPLimiter,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
