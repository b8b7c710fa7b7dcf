package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	v1 "github.com/aevon-lab/indexer-metrics-collector/internal/api/v1"
	"github.com/aevon-lab/indexer-metrics-collector/internal/auth"
	"github.com/aevon-lab/indexer-metrics-collector/internal/collector"
	corecfg "github.com/aevon-lab/indexer-metrics-collector/internal/core/config"
	"github.com/aevon-lab/indexer-metrics-collector/internal/core/metrics"
	"github.com/aevon-lab/indexer-metrics-collector/internal/core/storage"
	"github.com/aevon-lab/indexer-metrics-collector/internal/core/storage/memory"
	"github.com/aevon-lab/indexer-metrics-collector/internal/core/storage/postgres"
	redisstore "github.com/aevon-lab/indexer-metrics-collector/internal/core/storage/redis"
	"github.com/aevon-lab/indexer-metrics-collector/internal/core/storage/sqlite"
	"github.com/aevon-lab/indexer-metrics-collector/internal/ingestion"
	"github.com/aevon-lab/indexer-metrics-collector/internal/migrations"
	"github.com/aevon-lab/indexer-metrics-collector/internal/schema"
	schemaapi "github.com/aevon-lab/indexer-metrics-collector/internal/schema/api"
	"github.com/aevon-lab/indexer-metrics-collector/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the collector HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// loadConfig loads the dotenv file and configuration, then installs the configured logger.
func loadConfig() (*corecfg.Config, error) {
	// 0. Initialize Logger with defaults for early startup logs
	slog.SetDefault(newLogger(os.Stdout, corecfg.LogConfig{Level: "info", Format: "text"}))

	if err := corecfg.LoadDotEnv(envFilePath); err != nil {
		return nil, err
	}

	// 1. Load Configuration
	cfg, err := corecfg.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	slog.SetDefault(newLogger(os.Stdout, cfg.Log))
	slog.Info("Loaded config",
		"addr", cfg.Server.Addr(),
		"storage", cfg.Storage.Type,
		"default_labels", cfg.Metrics.DefaultLabels,
		"clients", cfg.Policy.Clients())
	return cfg, nil
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// 2. Initialize Storage
	store, err := openStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	// 3. Initialize Schema Registry and the collector
	registry := schema.NewBuiltinRegistry()

	coll, err := collector.New(ctx, store, metrics.IndexerDefinitions(), cfg.Metrics.DefaultLabels)
	if err != nil {
		return fmt.Errorf("failed to rehydrate metrics: %w", err)
	}

	authorizer := auth.NewAuthorizer(cfg.Policy)

	// 4. Initialize Ingestion and schema discovery
	ingestionSvc := ingestion.NewService(v1.NewParser(registry), coll, authorizer, cfg.Server.MaxBodySizeMB)
	schemaSvc := schemaapi.NewService(registry)

	// 5. Initialize Server
	srv := server.New(cfg.Server.Addr(), cfg.Server.OpsAddr, store, cfg.Server.Mode)
	ingestionSvc.RegisterRoutes(srv.Engine)
	schemaSvc.RegisterRoutes(srv.Engine, auth.RequireCapability(authorizer, auth.CapabilitySubmitEvent))

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		select {
		case <-quit:
			slog.Info("Signal received, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}

	slog.Info("Shutdown complete")
	return nil
}

// openStore builds the configured storage backend. Postgres is migrated before use.
func openStore(cfg corecfg.StorageConfig) (storage.KVStore, error) {
	switch cfg.Type {
	case storage.BackendMemory:
		slog.Warn("[Storage] Using in-memory storage, state is lost on restart")
		return memory.NewStore(), nil

	case storage.BackendPostgres:
		db, err := postgres.Open(cfg.DSN, cfg.MaxOpenConns, cfg.MaxIdleConns)
		if err != nil {
			return nil, err
		}
		if err := migrations.RunMigrations(db, cfg.AutoMigrate); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run database migrations: %w", err)
		}
		adapter, err := postgres.NewAdapter(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return adapter, nil

	case storage.BackendSQLite:
		store, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		return store, nil

	case storage.BackendRedis:
		store, err := redisstore.Open(redisstore.Options{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unsupported storage type %q", cfg.Type)
}
