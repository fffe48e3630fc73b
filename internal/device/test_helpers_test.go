package device

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/osier-labs/beacontrack-core/internal/owner"
)

// testDB creates a temporary SQLite database with the owners, devices, and
// device_pings schema applied. The file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use a temp file so WAL mode works (in-memory doesn't support it)
	f, err := os.CreateTemp("", "device-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	migrationSQL := `
		CREATE TABLE owners (
			identity   INTEGER PRIMARY KEY AUTOINCREMENT,
			token      TEXT NOT NULL UNIQUE,
			created_at TEXT NOT NULL
		);

		CREATE TABLE devices (
			token           TEXT PRIMARY KEY,
			name            TEXT NOT NULL DEFAULT '',
			owner_token     TEXT NOT NULL,
			owner_identity  INTEGER NOT NULL,
			sub_identity    INTEGER NOT NULL,
			active          INTEGER NOT NULL DEFAULT 1,
			paired_at       TEXT NOT NULL,
			last_seen_at    TEXT,
			last_signal     INTEGER,
			battery_percent INTEGER,
			lat             REAL,
			lng             REAL
		);
		CREATE UNIQUE INDEX idx_devices_owner_sub ON devices(owner_identity, sub_identity);
		CREATE INDEX idx_devices_paired_at ON devices(paired_at);

		CREATE TABLE device_pings (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			device_token TEXT NOT NULL,
			lat          REAL,
			lng          REAL,
			signal       INTEGER,
			recorded_at  TEXT NOT NULL
		);
		CREATE INDEX idx_device_pings_token_time ON device_pings(device_token, recorded_at);
	`
	if _, err := db.Exec(migrationSQL); err != nil {
		t.Fatalf("applying device schema: %v", err)
	}

	return db
}

// testRegistry assembles a Registry over a fresh test database and links
// the given owner tokens, returning the registry and owner repository.
func testRegistry(t *testing.T, ownerTokens ...string) (*Registry, owner.Repository) {
	t.Helper()

	db := testDB(t)
	owners := owner.NewSQLiteRepository(db)
	repo := NewSQLiteRepository(db)
	history := NewSQLitePingHistoryRepository(db)
	registry := NewRegistry(repo, owners, history)

	ctx := context.Background()
	for _, token := range ownerTokens {
		if _, err := owners.RegisterOrGet(ctx, token); err != nil {
			t.Fatalf("RegisterOrGet(%q) error = %v", token, err)
		}
	}

	return registry, owners
}
