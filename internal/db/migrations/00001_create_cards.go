// Package migrations holds the versioned schema for the embedded card
// store. Migrations are registered Go migrations so the schema ships inside
// the binary and is applied on open.
package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateCards, downCreateCards)
}

// Version 1: the cards object store keyed by id, with secondary indexes on
// title and created_at. Tags are stored as a JSON array; timestamps as
// RFC3339 text so lexicographic order matches chronological order.
func upCreateCards(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS cards (
    id         INTEGER PRIMARY KEY,
    title      TEXT NOT NULL,
    cover_url  TEXT,
    link       TEXT,
    content    TEXT,
    tags       TEXT NOT NULL DEFAULT '[]',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
)`)
	if err != nil {
		return fmt.Errorf("create cards table: %w", err)
	}
	for _, ddl := range []string{
		`CREATE INDEX IF NOT EXISTS idx_cards_title ON cards (title)`,
		`CREATE INDEX IF NOT EXISTS idx_cards_created ON cards (created_at)`,
	} {
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func downCreateCards(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS cards`)
	return err
}
