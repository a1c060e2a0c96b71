package testutil

import (
	"testing"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/cardbox/cardbox/internal/db"
)

// TestDSN returns a DSN for a private in-memory SQLite database. A file URI
// with shared cache so all pool connections see the same database; unique
// per test to avoid cross-test interference.
func TestDSN(t *testing.T) string {
	t.Helper()
	return "file:" + t.Name() + "?mode=memory&cache=shared&_busy_timeout=5000"
}

// NewTestDB opens an in-memory SQLite DB and applies all card-store
// migrations.
func NewTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	conn, err := db.Open("sqlite3", TestDSN(t))
	if err != nil {
		t.Fatalf("open in-memory sqlite: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	if err := db.Migrate(conn, 0); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return conn
}
