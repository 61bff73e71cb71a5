package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/crickql/crickql/internal/api"
	"github.com/crickql/crickql/internal/auth"
	"github.com/crickql/crickql/internal/config"
	"github.com/crickql/crickql/internal/grounding"
	"github.com/crickql/crickql/internal/llm"
	"github.com/crickql/crickql/internal/observability"
	"github.com/crickql/crickql/internal/orchestrator"
	"github.com/crickql/crickql/internal/pipeline"
	"github.com/crickql/crickql/internal/schema"
	schemapostgres "github.com/crickql/crickql/internal/schema/postgres"
	"github.com/crickql/crickql/internal/store"
	storeduckdb "github.com/crickql/crickql/internal/store/duckdb"
	storepostgres "github.com/crickql/crickql/internal/store/postgres"
)

func main() {
	cfg, err := config.LoadFromEnv("crickql-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	db, err := openStore(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to open store db", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	schemaName := "public"
	if cfg.Store.Driver == "duckdb" {
		schemaName = "main"
	}
	schemaCache := schema.NewCache(schemapostgres.NewProvider(db, schemapostgres.Config{
		Dialect:    cfg.Store.Dialect,
		SchemaName: schemaName,
		SampleRows: cfg.Store.SchemaSampleRows,
	}))

	policy, err := grounding.NewPolicy(cfg.Grounding.MinSampleBalls)
	if err != nil {
		logger.Error("failed to build grounding policy", slog.Any("error", err))
		os.Exit(1)
	}

	registry, err := llm.NewRegistry(cfg.AI)
	if err != nil {
		logger.Error("failed to build model registry", slog.Any("error", err))
		os.Exit(1)
	}

	executor := store.NewSQLExecutor(db, cfg.Store.StatementTimeout)
	questionPipeline := pipeline.New(schemaCache, policy, executor, logger, pipeline.Config{
		RowCeiling:    cfg.Pipeline.RowCeiling,
		MaxResultRows: cfg.Store.MaxResultRows,
	})

	resolver, err := orchestrator.New(questionPipeline, registry, logger, cfg.AI.DefaultModel)
	if err != nil {
		logger.Error("failed to build orchestrator", slog.Any("error", err))
		os.Exit(1)
	}

	deps := api.Dependencies{
		Logger:   logger,
		Resolver: resolver,
		Schema:   schemaCache,
		Readiness: api.CombineReadinessChecks(
			api.CheckStoreDSN(cfg),
			api.CheckSchemaSource(schemaCache),
		),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	switch cfg.Store.Driver {
	case "duckdb":
		return storeduckdb.Open(ctx, storeduckdb.DBConfig{
			DSN:          cfg.Store.DSN,
			MaxOpenConns: cfg.Store.MaxOpenConns,
			MaxIdleConns: cfg.Store.MaxIdleConns,
		})
	default:
		return storepostgres.Open(ctx, storepostgres.DBConfig{
			DSN:             cfg.Store.DSN,
			MaxOpenConns:    cfg.Store.MaxOpenConns,
			MaxIdleConns:    cfg.Store.MaxIdleConns,
			ConnMaxIdleTime: cfg.Store.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
		})
	}
}
