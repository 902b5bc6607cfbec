package app

import (
	"bytes"
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/digigoods/db"
	"github.com/xenking/digigoods/internal/domain/checkout"
	"github.com/xenking/digigoods/internal/seed"
	"github.com/xenking/digigoods/internal/storage/memory"
	"github.com/xenking/digigoods/internal/storage/postgres"
	"github.com/xenking/digigoods/pkg/health"
)

// storage is an opened backend.
type storage struct {
	repos  checkout.Repositories
	uow    checkout.UnitOfWork
	pinger health.Pinger
	close  func()
}

func openStorage(ctx context.Context, lg *zap.Logger, cfg *Config) (*storage, error) {
	switch cfg.Storage {
	case StorageMemory:
		return openMemory(ctx, lg, cfg.SeedFile)
	default:
		return openPostgres(ctx, cfg.DatabaseURL)
	}
}

func openPostgres(ctx context.Context, databaseURL string) (*storage, error) {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	return &storage{
		repos:  postgres.NewRepositories(pool),
		uow:    postgres.NewUnitOfWork(pool),
		pinger: pool,
		close:  pool.Close,
	}, nil
}

// openMemory creates a process-local store filled from seedFile, or from the
// built-in demo catalog when seedFile is empty.
func openMemory(ctx context.Context, lg *zap.Logger, seedFile string) (*storage, error) {
	var (
		catalog *seed.Catalog
		err     error
	)
	if seedFile != "" {
		catalog, err = seed.LoadFile(seedFile)
	} else {
		catalog, err = seed.Decode(bytes.NewReader(db.SeedCatalog))
	}
	if err != nil {
		return nil, errors.Wrap(err, "load seed catalog")
	}

	store := memory.NewStore()
	if err := seed.Apply(ctx, store, catalog, seed.Options{}); err != nil {
		return nil, errors.Wrap(err, "seed memory store")
	}
	lg.Warn("Using in-memory storage, data is lost on restart",
		zap.Int("users", len(catalog.Users)),
		zap.Int("products", len(catalog.Products)),
		zap.Int("discounts", len(catalog.Discounts)),
	)
	return &storage{
		repos: store.Repositories(),
		uow:   store,
		close: func() {},
	}, nil
}
