package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smartsprint/smartsprint/internal/app"
	"github.com/smartsprint/smartsprint/internal/observability"
	"github.com/smartsprint/smartsprint/internal/platform/cache"
	"github.com/smartsprint/smartsprint/internal/platform/db"
	"github.com/smartsprint/smartsprint/internal/rbac"
	"github.com/smartsprint/smartsprint/internal/roles"
	"github.com/smartsprint/smartsprint/internal/shared"
	"github.com/smartsprint/smartsprint/internal/users"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient, err = cache.New(ctx, cache.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			logger.Warn("redis unavailable, change notifications disabled", slog.Any("error", err))
		} else {
			defer func() {
				if err := redisClient.Close(); err != nil {
					logger.Warn("redis close", slog.Any("error", err))
				}
			}()
		}
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)
	notifier := rbac.NewRedisNotifier(redisClient)
	var changeVersion app.VersionReporter
	if redisClient != nil {
		changeVersion = notifier
	}

	rbacService := rbac.NewService(rbac.NewRepository(dbpool), rbac.ServiceConfig{
		Audit:    auditLogger,
		Notifier: notifier,
		Metrics:  metrics,
		Logger:   logger,
	})
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger, Enforce: cfg.RBACEnforce}

	rolesRepo := roles.NewRepository(dbpool)
	rolesService := roles.NewService(rolesRepo, auditLogger)
	usersService := users.NewService(users.NewRepository(dbpool), rolesRepo, users.ServiceConfig{
		Audit:    auditLogger,
		Notifier: notifier,
		Metrics:  metrics,
		Logger:   logger,
	})

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		PermissionsHandler: rbac.NewHandler(logger, rbacService, rbacMiddleware, cfg.RateLimitPerMinute/4),
		RolesHandler:       roles.NewHandler(logger, rolesService, rbacMiddleware),
		UsersHandler:       users.NewHandler(logger, usersService, rbacMiddleware),
		Database:           dbpool,
		ChangeVersion:      changeVersion,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.Bool("rbac_enforce", cfg.RBACEnforce))
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
