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

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/classward/classward/internal/app"
	"github.com/classward/classward/internal/audit"
	"github.com/classward/classward/internal/authz"
	"github.com/classward/classward/internal/groups"
	"github.com/classward/classward/internal/identity"
	"github.com/classward/classward/internal/ownership"
	"github.com/classward/classward/internal/platform/cache"
	"github.com/classward/classward/internal/platform/db"
	"github.com/classward/classward/internal/roles"
	"github.com/classward/classward/internal/transfer"
	"github.com/classward/classward/internal/users"
	"github.com/classward/classward/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

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

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()
	recorder := audit.NewRecorder(asynqClient, logger)
	notifier := jobs.NewTransferNotifier(asynqClient, logger)

	rolesRepo := roles.NewRepository(pool)
	rolesService := roles.NewService(rolesRepo)
	rolesHandler := roles.NewHandler(logger, rolesService)

	tokens := identity.NewTokenService(cfg.TokenSecret, cfg.TokenTTL)
	denylist := identity.NewRedisDenylist(redisClient)
	identityRepo := identity.NewRepository(pool)
	identityService := identity.NewService(identityRepo, rolesService, tokens, denylist, logger)
	identityHandler := identity.NewHandler(logger, identityService)

	groupsRepo := groups.NewRepository(pool)
	groupsService := groups.NewService(groupsRepo)
	resolver := ownership.NewResolver(groupsRepo)
	gate := authz.NewGate(resolver)
	authzMiddleware := authz.Middleware{Validator: identityService, Gate: gate, Logger: logger}
	groupsHandler := groups.NewHandler(logger, groupsService, gate, resolver)

	transferRepo := transfer.NewRepository(pool)
	transferService := transfer.NewService(transferRepo, groupsService, resolver, recorder, notifier, logger)
	transferHandler := transfer.NewHandler(logger, transferService)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, rolesService, identityRepo)
	usersHandler := users.NewHandler(logger, usersService)

	auditWriter := audit.NewWriter(pool, logger, cfg.AuditRetention)
	auditHandler := audit.NewHandler(logger, auditWriter)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Authz:           authzMiddleware,
		IdentityHandler: identityHandler,
		RolesHandler:    rolesHandler,
		UsersHandler:    usersHandler,
		GroupsHandler:   groupsHandler,
		TransferHandler: transferHandler,
		AuditHandler:    auditHandler,
		JobHandler:      jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("http server", slog.Any("error", err))
		os.Exit(1)
	}
}
