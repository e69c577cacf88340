package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"time"

	crmsync "github.com/goliatone/go-crmsync"
	"github.com/goliatone/go-crmsync/adapters/gologger"
	"github.com/goliatone/go-crmsync/core"
	"github.com/goliatone/go-crmsync/migrations"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
	"golang.org/x/sync/errgroup"
)

// Run assembles the app from cfg and serves until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	logger, err := gologger.NewFromOptions(os.Stderr, gologger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return err
	}
	log := logger.Named("crmsync.cmd")

	opts := []crmsync.Option{
		crmsync.WithLoggerProvider(gologger.NewProvider(logger)),
		crmsync.WithConfigProvider(core.NewCfgxConfigProvider(core.FileConfigLoader{Path: cfg.ConfigFile})),
	}
	if cfg.DBDriver != DriverMemory {
		client, err := openPersistence(ctx, cfg)
		if err != nil {
			return err
		}
		defer client.Close()
		opts = append(opts, crmsync.WithPersistenceClient(client))

		tagCache, err := newTagCache(cfg.TagCacheTTL)
		if err != nil {
			return err
		}
		if tagCache != nil {
			opts = append(opts, crmsync.WithTagCache(tagCache))
		}
	}

	app, err := crmsync.New(crmsync.Config{}, opts...)
	if err != nil {
		return err
	}
	if err := seedKeys(ctx, app, cfg.APIKeys, log); err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		core.LogWithLevel(groupCtx, log, "info", "http server listening", map[string]any{
			"addr":      cfg.Addr,
			"base_path": app.BasePath(),
			"driver":    cfg.DBDriver,
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		return app.Run(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		core.LogWithLevel(shutdownCtx, log, "info", "http server shutting down", nil)
		return server.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

func openPersistence(ctx context.Context, cfg Config) (*persistence.Client, error) {
	var (
		driverName string
		dialect    schema.Dialect
		target     string
	)
	switch cfg.DBDriver {
	case DriverSQLite:
		driverName, dialect, target = "sqlite3", sqlitedialect.New(), migrations.DialectSQLite
	case DriverPostgres:
		driverName, dialect, target = "postgres", pgdialect.New(), migrations.DialectPostgres
	default:
		return nil, fmt.Errorf("persistence: unsupported driver %q", cfg.DBDriver)
	}

	sqlDB, err := sql.Open(driverName, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("persistence: open %s: %w", cfg.DBDriver, err)
	}
	if cfg.DBDriver == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}
	client, err := persistence.New(persistenceConfig{driver: driverName, dsn: cfg.DBDSN, debug: cfg.Debug}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("persistence: new client: %w", err)
	}

	_, err = migrations.Register(ctx, func(_ context.Context, _ string, _ string, fsys fs.FS) error {
		client.RegisterSQLMigrations(fsys)
		return nil
	}, migrations.WithDialects(target))
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("persistence: migrate: %w", err)
	}
	return client, nil
}

func newTagCache(ttl time.Duration) (repositorycache.CacheService, error) {
	if ttl <= 0 {
		return nil, nil
	}
	config := repositorycache.DefaultConfig()
	config.TTL = ttl
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		return nil, fmt.Errorf("tag cache: %w", err)
	}
	return service, nil
}

func seedKeys(ctx context.Context, app *crmsync.App, keys []string, log core.Logger) error {
	registered := 0
	for _, key := range keys {
		created, err := app.Keys().Register(ctx, key)
		if err != nil {
			if core.IsErrorCode(err, core.ErrorValidation) {
				continue
			}
			return err
		}
		if created {
			registered++
		}
	}
	if registered > 0 {
		core.LogWithLevel(ctx, log, "info", "api keys registered", map[string]any{"count": registered})
	}
	return nil
}
