package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upReworkCardIndexes, downReworkCardIndexes)
}

// Version 2: index upgrade without data loss. The created_at index is
// renamed and an updated_at index added to serve the default sort, plus a
// card_tags mirror table for tag lookups (multi-valued index equivalent).
func upReworkCardIndexes(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`DROP INDEX IF EXISTS idx_cards_created`,
		`CREATE INDEX IF NOT EXISTS idx_cards_created_at ON cards (created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_cards_updated_at ON cards (updated_at)`,
		`CREATE TABLE IF NOT EXISTS card_tags (
    card_id INTEGER NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
    tag     TEXT NOT NULL,
    PRIMARY KEY (card_id, tag)
)`,
		`CREATE INDEX IF NOT EXISTS idx_card_tags_tag ON card_tags (tag)`,
	}
	for _, ddl := range stmts {
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("rework card indexes: %w", err)
		}
	}
	return nil
}

func downReworkCardIndexes(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`DROP TABLE IF EXISTS card_tags`,
		`DROP INDEX IF EXISTS idx_cards_updated_at`,
		`DROP INDEX IF EXISTS idx_cards_created_at`,
		`CREATE INDEX IF NOT EXISTS idx_cards_created ON cards (created_at)`,
	}
	for _, ddl := range stmts {
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("revert card indexes: %w", err)
		}
	}
	return nil
}
