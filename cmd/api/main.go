package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"tallyhq.org/internal/audit"
	"tallyhq.org/internal/auth"
	"tallyhq.org/internal/config"
	"tallyhq.org/internal/httpapi"
	"tallyhq.org/internal/obs"
	"tallyhq.org/internal/tenant"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := obs.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	secret, fallback := cfg.SigningSecret()
	if fallback {
		logger.Warn("TALLY_AUTH_SECRET unset, using insecure dev fallback secret")
	}

	if cfg.PostgresDSN == "" {
		logger.Fatal("TALLY_PG_DSN is required")
	}
	db, err := sql.Open("pgx", cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("open db", zap.Error(err))
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	tokens, err := auth.NewTokenService(secret, auth.WithTokenTTL(cfg.TokenTTL))
	if err != nil {
		logger.Fatal("token service", zap.Error(err))
	}

	authSvc, err := auth.NewService(auth.NewPGStore(db), tokens, auth.WithLogger(logger))
	if err != nil {
		logger.Fatal("auth service", zap.Error(err))
	}

	resolver, err := tenant.NewResolver(db,
		tenant.NewPGProvisioner(db),
		tenant.NewPGMappingStore(db),
		tenant.WithResolverLogger(logger),
	)
	if err != nil {
		logger.Fatal("tenant resolver", zap.Error(err))
	}

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	for _, kind := range []auth.AccountKind{auth.AccountPlatformAdmin, auth.AccountSuperAdmin} {
		if _, err := authSvc.EnsurePrivilegedAccount(bootCtx, kind); err != nil {
			bootCancel()
			logger.Fatal("bootstrap account", zap.String("kind", string(kind)), zap.Error(err))
		}
	}
	bootCancel()

	api := httpapi.New(httpapi.Deps{
		Auth:       authSvc,
		Tenants:    resolver,
		ReadyProbe: httpapi.ReadyProbe{DB: db},
		Audit:      audit.New(logger),
		Log:        logger,
		Version:    version,

		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting tally-api",
		zap.String("version", version),
		zap.String("addr", srv.Addr),
		zap.String("environment", cfg.Environment),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = db.Close()
	logger.Info("stopped")
}
