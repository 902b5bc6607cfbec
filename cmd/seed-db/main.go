// Command seed-db creates the schema and loads a catalog of users, products
// and discounts into PostgreSQL. Loading is idempotent: records are matched by
// username, product id and discount code.
package main

import (
	"bytes"
	"context"
	"flag"
	"os"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/xenking/digigoods/db"
	"github.com/xenking/digigoods/internal/seed"
	"github.com/xenking/digigoods/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		seedFile    string
		bcryptCost  int
	)
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedFile, "file", "", "catalog JSON file, optionally gzip-compressed; the built-in demo catalog when empty")
	flag.IntVar(&bcryptCost, "bcrypt-cost", 0, "bcrypt cost for plain seed passwords; 0 selects the default")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}

	app.Run(func(ctx context.Context, lg *zap.Logger, _ *app.Telemetry) error {
		if databaseURL == "" {
			return errors.New("database URL is required: set --database-url or DATABASE_URL")
		}
		return run(ctx, lg, databaseURL, seedFile, seed.Options{BcryptCost: bcryptCost})
	})
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, seedFile string, opts seed.Options) error {
	catalog, err := loadCatalog(seedFile)
	if err != nil {
		return err
	}

	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	err = postgres.InTx(ctx, pool, func(ctx context.Context, tx pgx.Tx) error {
		return seed.Apply(ctx, postgres.NewSeeder(tx), catalog, opts)
	})
	if err != nil {
		return errors.Wrap(err, "seed")
	}

	lg.Info("Seed completed",
		zap.Int("users", len(catalog.Users)),
		zap.Int("products", len(catalog.Products)),
		zap.Int("discounts", len(catalog.Discounts)),
	)
	return nil
}

func loadCatalog(path string) (*seed.Catalog, error) {
	if path == "" {
		c, err := seed.Decode(bytes.NewReader(db.SeedCatalog))
		if err != nil {
			return nil, errors.Wrap(err, "decode built-in catalog")
		}
		return c, nil
	}
	c, err := seed.LoadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return c, nil
}
