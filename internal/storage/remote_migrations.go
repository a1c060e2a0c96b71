package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// The remote adapter runs with row-level privileges only: it never executes
// DDL. Migrations here are advisory — each one verifies that the schema it
// needs is in place and records itself in schema_migrations. The actual DDL
// is applied out-of-band by the operator; BootstrapDDL is surfaced in the
// initialization error when the bookkeeping table is missing.

// BootstrapDDL is the exact schema-creation script for a fresh deployment.
// Column names and types are part of the wire contract: camelCase card
// fields map to snake_case columns and tags is a native text[] column.
// updated_at is refreshed by a trigger — the server, not the adapter, owns
// that timestamp.
const BootstrapDDL = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version    BIGINT PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS cards (
    id         BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
    title      TEXT NOT NULL,
    cover_url  TEXT,
    link       TEXT,
    content    TEXT,
    tags       TEXT[] NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_cards_tags ON cards USING GIN (tags);
CREATE INDEX IF NOT EXISTS idx_cards_updated_at ON cards (updated_at DESC);

CREATE OR REPLACE FUNCTION cards_touch_updated_at() RETURNS trigger AS $$
BEGIN
    NEW.updated_at = now();
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_cards_updated_at ON cards;
CREATE TRIGGER trg_cards_updated_at
    BEFORE UPDATE ON cards
    FOR EACH ROW EXECUTE FUNCTION cards_touch_updated_at();`

// remoteMigration is one versioned readiness check.
type remoteMigration struct {
	Version int64
	Name    string
	// Check verifies the migration's effect is in place (e.g. the target
	// table is queryable). It must not execute DDL.
	Check func(ctx context.Context, conn *sqlx.DB) error
}

var remoteMigrations = []remoteMigration{
	{
		Version: 1,
		Name:    "cards table",
		Check: func(ctx context.Context, conn *sqlx.DB) error {
			var one int
			err := conn.GetContext(ctx, &one, `SELECT 1 FROM cards LIMIT 1`)
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return err
		},
	},
	{
		Version: 2,
		Name:    "tags array column",
		Check: func(ctx context.Context, conn *sqlx.DB) error {
			var one int
			err := conn.GetContext(ctx, &one, `SELECT 1 FROM cards WHERE tags && ARRAY[''] LIMIT 1`)
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return err
		},
	},
}

// runRemoteMigrations applies the advisory migration protocol: verify the
// bookkeeping table is reachable, then for each defined migration in
// version order, skip it if recorded, otherwise run its effect-check and
// record it. A failed check halts further migrations.
func runRemoteMigrations(ctx context.Context, conn *sqlx.DB) error {
	applied := map[int64]bool{}
	var versions []int64
	if err := conn.SelectContext(ctx, &versions, `SELECT version FROM schema_migrations`); err != nil {
		return fmt.Errorf(
			"schema_migrations table is not reachable (%v); apply the bootstrap schema out-of-band:\n\n%s",
			err, BootstrapDDL)
	}
	for _, v := range versions {
		applied[v] = true
	}

	for _, m := range remoteMigrations {
		if applied[m.Version] {
			continue
		}
		if err := m.Check(ctx, conn); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
		}
		if _, err := conn.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`,
			m.Version, m.Name); err != nil {
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
	}
	return nil
}
