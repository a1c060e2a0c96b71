package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	_ "github.com/cardbox/cardbox/internal/db/migrations"
)

// Migrate brings the embedded store schema up to version. Version 0 means
// latest. Upgrades are additive (indexes only), so an existing store is
// never destroyed by a version bump.
func Migrate(db *sqlx.DB, version int64) error {
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	// Go migrations are registered via the migrations package init; there is
	// no SQL directory to scan.
	goose.SetBaseFS(nil)

	if version > 0 {
		if err := goose.UpTo(db.DB, ".", version); err != nil {
			return fmt.Errorf("migrate to version %d: %w", version, err)
		}
		return nil
	}
	if err := goose.Up(db.DB, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
