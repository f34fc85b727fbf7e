// Package migrations holds the local store schema. Every file registers one
// step with Migrations from its init function.
package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

var Migrations = migrate.NewMigrations()

// NewMigrator returns a migrator over db whose bookkeeping tables are
// prefixed so they sort apart from the book tables.
func NewMigrator(db *bun.DB) *migrate.Migrator {
	return migrate.NewMigrator(db, Migrations,
		migrate.WithTableName("folio_migrations"),
		migrate.WithLocksTableName("folio_migration_locks"),
		migrate.WithMarkAppliedOnSuccess(true),
	)
}

// Apply creates the bookkeeping tables when needed and runs every pending
// migration. The returned group is empty when nothing was pending.
func Apply(ctx context.Context, db *bun.DB) (*migrate.MigrationGroup, error) {
	migrator := NewMigrator(db)
	if err := migrator.Init(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to create migration tables")
	}
	if err := migrator.Lock(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to lock migrations")
	}
	defer migrator.Unlock(ctx) //nolint:errcheck

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to migrate")
	}
	return group, nil
}
