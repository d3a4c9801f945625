// Package app assembles backends, repositories and use cases from config.
// It is shared by the server, the CLI and the public Go client.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/backsync/internal/config"
	"github.com/kailas-cloud/backsync/internal/db"
	"github.com/kailas-cloud/backsync/internal/db/couch"
	"github.com/kailas-cloud/backsync/internal/db/memory"
	dbMongo "github.com/kailas-cloud/backsync/internal/db/mongodb"
	dbRedis "github.com/kailas-cloud/backsync/internal/db/redis"
	"github.com/kailas-cloud/backsync/internal/db/sqlite"
	documentrepo "github.com/kailas-cloud/backsync/internal/repository/document"
	batchuc "github.com/kailas-cloud/backsync/internal/usecase/batch"
	documentuc "github.com/kailas-cloud/backsync/internal/usecase/document"
	healthuc "github.com/kailas-cloud/backsync/internal/usecase/health"
	searchuc "github.com/kailas-cloud/backsync/internal/usecase/search"
)

// App is the assembled object graph.
type App struct {
	Store     db.Store
	Documents *documentuc.Service
	Batch     *batchuc.Service
	Search    searchuc.Searcher
	Health    *healthuc.Service
}

// OpenStore creates the backend selected by cfg.Driver.
func OpenStore(cfg config.BackendConfig) (db.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		return memory.NewStore(), nil
	case config.DriverCouchDB:
		s, err := couch.NewStore(couch.Config{
			URL:               cfg.CouchDB.URL,
			Username:          cfg.CouchDB.Username,
			Password:          cfg.CouchDB.Password,
			RequestsPerSecond: cfg.CouchDB.RequestsPerSecond,
			Burst:             cfg.CouchDB.Burst,
			Timeout:           time.Duration(cfg.CouchDB.TimeoutSec) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("couchdb: %w", err)
		}
		return s, nil
	case config.DriverRedis:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:     cfg.Redis.Addrs,
			Username:  cfg.Redis.Username,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		return s, nil
	case config.DriverSQLite:
		s, err := sqlite.NewStore(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		return s, nil
	case config.DriverMongoDB:
		s, err := dbMongo.NewStore(dbMongo.Config{
			URI:      cfg.MongoDB.URI,
			Database: cfg.MongoDB.Database,
			Timeout:  time.Duration(cfg.MongoDB.TimeoutSec) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("mongodb: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown backend driver %q", cfg.Driver)
}

// New opens the configured backend, waits for it and wires the use cases.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	store, err := OpenStore(cfg.Backend)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(cfg.Backend.ReadinessTimeout) * time.Second
	if err := store.WaitForReady(ctx, timeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("backend not ready: %w", err)
	}

	return Wire(store, cfg, logger), nil
}

// Wire builds the use cases on top of an open store.
func Wire(store db.Store, cfg config.Config, logger *zap.Logger) *App {
	repoOpts := []documentrepo.Option{documentrepo.WithCreateDB(cfg.Backend.CouchDB.CreateDB)}
	if cfg.Backend.Driver == config.DriverMongoDB && !cfg.Backend.MongoDB.UseUUID {
		repoOpts = append(repoOpts, documentrepo.WithIDGenerator(dbMongo.NewObjectID))
	}
	repo := documentrepo.New(store, repoOpts...)

	search := searchuc.New(repo,
		searchuc.WithHardLimit(cfg.Search.HardLimit),
		searchuc.WithMaxRequests(cfg.Search.MaxRequests),
		searchuc.WithPageSize(cfg.Search.RequestLimit),
		searchuc.WithObserver(searchuc.Observers{
			searchuc.LogObserver{Logger: logger},
			searchuc.MetricsObserver{},
		}),
	)

	var docOpts []documentuc.Option
	if r := cfg.Documents.MaxConflictRetries; r != nil {
		docOpts = append(docOpts, documentuc.WithMaxConflictRetries(*r))
	}

	documents := documentuc.New(repo, docOpts...)

	return &App{
		Store:     store,
		Documents: documents,
		Batch:     batchuc.New(documents).WithMaxBatchSize(cfg.Documents.MaxBatchSize),
		Search:    searchuc.NewInstrumented(search, logger),
		Health:    healthuc.New(store),
	}
}

// Close releases the backend.
func (a *App) Close() {
	a.Store.Close()
}
