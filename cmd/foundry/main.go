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

	"github.com/foundry-erp/foundry-erp/internal/activity"
	"github.com/foundry-erp/foundry-erp/internal/app"
	"github.com/foundry-erp/foundry-erp/internal/auth"
	"github.com/foundry-erp/foundry-erp/internal/observability"
	"github.com/foundry-erp/foundry-erp/internal/platform/cache"
	"github.com/foundry-erp/foundry-erp/internal/platform/db"
	"github.com/foundry-erp/foundry-erp/internal/rbac"
	"github.com/foundry-erp/foundry-erp/internal/roles"
	"github.com/foundry-erp/foundry-erp/internal/shared"
	"github.com/foundry-erp/foundry-erp/internal/users"
	"github.com/foundry-erp/foundry-erp/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGQueryTimeout)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	rbacRepo := rbac.NewRepository(pool, auditLogger)
	permCache := rbac.NewCache(cfg.PermissionCacheTTL)
	checker := rbac.NewChecker(rbacRepo, permCache)
	rbacService := rbac.NewService(rbacRepo, permCache, logger)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	recorder := activity.NewRecorder(jobClient, logger)

	authz := rbac.Middleware{Checker: checker, Logger: logger, Activity: recorder, Metrics: metrics}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	denylist := auth.NewDenylist(redisClient)
	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, tokens, denylist, checker)
	authGuard := auth.Middleware{Tokens: tokens, Denylist: denylist, Repo: authRepo, Logger: logger}
	authHandler := auth.NewHandler(logger, authService, authGuard)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo)
	usersHandler := users.NewHandler(logger, usersService, rbacService, authz)

	rolesHandler := roles.NewHandler(logger, rbacService, authz)
	permissionsHandler := rbac.NewPermissionsHandler(logger, rbacService, checker, authz)

	activityRepo := activity.NewRepository(pool)
	activityHandler := activity.NewHandler(logger, activityRepo, authz)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		AuthHandler:        authHandler,
		AuthMiddleware:     authGuard,
		RolesHandler:       rolesHandler,
		UsersHandler:       usersHandler,
		ActivityHandler:    activityHandler,
		PermissionsHandler: permissionsHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
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
