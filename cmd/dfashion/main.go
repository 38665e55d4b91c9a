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

	"github.com/dfashion/dfashion-api/internal/app"
	"github.com/dfashion/dfashion-api/internal/audit"
	audithttp "github.com/dfashion/dfashion-api/internal/audit/http"
	"github.com/dfashion/dfashion-api/internal/auth"
	"github.com/dfashion/dfashion-api/internal/observability"
	"github.com/dfashion/dfashion-api/internal/platform/cache"
	"github.com/dfashion/dfashion-api/internal/platform/db"
	"github.com/dfashion/dfashion-api/internal/products"
	"github.com/dfashion/dfashion-api/internal/rbac"
	"github.com/dfashion/dfashion-api/internal/users"
	"github.com/dfashion/dfashion-api/jobs"
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

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func loadPolicy(cfg *app.Config) (*rbac.Policy, error) {
	if cfg.RBACPolicyFile != "" {
		return rbac.LoadPolicyFile(cfg.RBACPolicyFile)
	}
	return rbac.DefaultPolicy()
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	// A broken policy must stop startup before any route is served.
	policy, err := loadPolicy(cfg)
	if err != nil {
		return err
	}
	authn, err := auth.NewAuthenticator(cfg.JWTSecret, policy.Hierarchy,
		auth.WithIssuer(cfg.JWTIssuer),
		auth.WithTTL(cfg.JWTTTL),
	)
	if err != nil {
		return err
	}

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	rbacMiddleware := rbac.Middleware{Policy: policy, Logger: logger, Metrics: metrics}
	denylist := cache.NewDenylist(redisClient)
	authMiddleware := auth.Middleware{Authenticator: authn, Revocations: denylist, Logger: logger}

	auditStore := audit.NewPGStore(pool)
	sink, err := audit.SinkForMode(cfg.AuditMode, auditStore, jobClient)
	if err != nil {
		return err
	}
	if sink == nil {
		logger.Warn("audit trail disabled", slog.String("mode", cfg.AuditMode))
	}

	authService := auth.NewService(auth.NewRepository(pool), authn, denylist)
	usersService := users.NewService(users.NewRepository(pool), policy)
	productsService := products.NewService(products.NewRepository(pool), policy)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Auth:            authMiddleware,
		RBACMiddleware:  rbacMiddleware,
		AuditRecorder:   &audit.Recorder{Sink: sink, Logger: logger},
		Metrics:         metrics,
		RequestLogging:  !cfg.IsProduction(),
		AuthHandler:     auth.NewHandler(logger, authService, policy, authMiddleware),
		UsersHandler:    users.NewHandler(logger, usersService, rbacMiddleware),
		ProductsHandler: products.NewHandler(logger, productsService, rbacMiddleware),
		AuditHandler:    audithttp.NewHandler(logger, audit.NewService(auditStore), rbacMiddleware),
		PolicyHandler:   rbac.NewHandler(logger, policy, rbacMiddleware),
		JobHandler:      jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.Int("roles", len(policy.Hierarchy.Roles())))
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
	return g.Wait()
}
