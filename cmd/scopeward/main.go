package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/scopeward/scopeward/internal/audit"
	"github.com/scopeward/scopeward/internal/auth"
	"github.com/scopeward/scopeward/internal/authz"
	"github.com/scopeward/scopeward/internal/platform/config"
	"github.com/scopeward/scopeward/internal/platform/database"
	"github.com/scopeward/scopeward/internal/platform/server"
	"github.com/scopeward/scopeward/internal/platform/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := telemetry.NewLogger(cfg.Log.Level, cfg.Log.Format)
	telemetry.SetDefault(logger)

	logger.Info("scopeward starting", "port", cfg.Server.Port)

	// Connect to database (optional — principals can come from JWT claims)
	ctx := context.Background()
	var pool *database.Pool

	if cfg.Database.URL != "" {
		logger.Info("connecting to database")
		p, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			logger.Warn("database connection failed, starting without DB", "error", err)
		} else {
			pool = p
			defer pool.Close()

			migrationsURL := fmt.Sprintf("file://%s", cfg.Database.MigrationsPath)
			if err := database.RunMigrations(cfg.Database.URL, migrationsURL); err != nil {
				return fmt.Errorf("running migrations: %w", err)
			}
			logger.Info("migrations complete")
		}
	}

	tokenSvc := auth.NewTokenService(
		cfg.Auth.JWT.SigningKey,
		cfg.Auth.JWT.Issuer,
		cfg.Auth.JWT.ExpiryHours,
		cfg.Auth.JWT.RefreshExpiryHours,
	)

	// Default controller: dispatch by rule type. Deployments register their
	// own handlers here; OWNER scopes rows to the principal's own user ID.
	defaultController := authz.NewTypedController(logger)
	defaultController.Handle("OWNER", authz.ControllerFunc(ownerHandler))

	registry := authz.NewNamedRegistry()
	resolver := authz.NewResolver(defaultController, registry)
	engine := authz.NewEngine(resolver, authz.WithLogger(logger))

	defaultLogical := authz.LogicalAll
	if cfg.Authz.DefaultLogical == "any" {
		defaultLogical = authz.LogicalAny
	}

	var auditLogger audit.Logger = audit.NopLogger{}
	if cfg.Authz.Audit && pool != nil {
		async := audit.NewAsyncLogger(pool, audit.NewStore(), audit.LoggerConfig{})
		defer func() {
			_ = async.Close()
		}()
		auditLogger = async
	}

	var auditHandler *audit.Handler
	var authHandler *auth.Handler
	if pool != nil {
		auditHandler = audit.NewHandler(pool, audit.NewStore())
		authHandler = auth.NewHandler(auth.NewStore(pool), tokenSvc)
	}

	var devAuthn *auth.Authentication
	if cfg.Auth.DevMode {
		devAuthn = &auth.Authentication{
			UserID:   "dev",
			Username: "dev",
			Roles:    []string{"admin"},
			Permissions: []auth.Permission{
				{ID: "audit", Actions: []string{"read"}},
				{ID: "user", Actions: []string{"create", "grant"}},
				{ID: "token", Actions: []string{"issue"}},
			},
		}
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := server.New(addr, server.Dependencies{
		Pool:             pool,
		Auth:             tokenSvc,
		AuthHandler:      authHandler,
		Engine:           engine,
		AuthzHandler:     authz.NewHandler(engine, authz.WithDefaultLogical(defaultLogical)),
		AuditHandler:     auditHandler,
		AuthzAuditLogger: auditBridge{auditLogger},
		DevMode:          cfg.Auth.DevMode,
		DevAuthn:         devAuthn,
		Logger:           logger,
	})

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Start(runCtx)
}
