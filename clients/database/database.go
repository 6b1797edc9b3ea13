package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/kava-labs/evm-rpc-middleware/logging"
)

// Migrate applies every registered migration not yet applied to db under the
// migration lock and returns the status of all of them.
// A group that fails part way is rolled back so the next start retries it whole.
func Migrate(ctx context.Context, db *bun.DB, migrations migrate.Migrations, logger *logging.ServiceLogger) (*migrate.MigrationSlice, error) {
	if db == nil {
		return &migrate.MigrationSlice{}, nil
	}

	migrator := migrate.NewMigrator(db, &migrations)

	if err := migrator.Init(ctx); err != nil {
		return nil, fmt.Errorf("error creating migration tables: %w", err)
	}

	// replicas starting together must not apply the same group twice
	if err := migrator.Lock(ctx); err != nil {
		return nil, fmt.Errorf("error acquiring migration lock: %w", err)
	}
	defer func() {
		if err := migrator.Unlock(ctx); err != nil {
			logger.Error().Err(err).Msg("error releasing migration lock")
		}
	}()

	group, err := migrator.Migrate(ctx)
	if err != nil {
		migrateErr := fmt.Errorf("error applying migrations: %w", err)

		rolledBack, rollbackErr := migrator.Rollback(ctx)
		if rollbackErr != nil {
			return nil, errors.Join(migrateErr, fmt.Errorf("error rolling back: %w", rollbackErr))
		}

		logger.Error().
			Err(err).
			Str("group", rolledBack.String()).
			Msg("rolled back failed migration group")

		return nil, migrateErr
	}

	if group.IsZero() {
		logger.Debug().Msg("database schema is up to date")
	} else {
		logger.Info().
			Str("group", group.String()).
			Msg("applied database migrations")
	}

	status, err := migrator.MigrationsWithStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("error reading migration status: %w", err)
	}

	return &status, nil
}
