package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/cadence/internal/config"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 2

// FileName is the database file inside the base directory.
const FileName = "cadence.db"

// Init initializes the SQLite database at baseDir/cadence.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.cadence.
func Init(baseDir string) (*sql.DB, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	// Pragmas in the DSN apply to every pooled connection
	dbPath := filepath.Join(baseDir, FileName)
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: posts
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS posts (
		  id             TEXT PRIMARY KEY,
		  title          TEXT NOT NULL,
		  content        TEXT NOT NULL,
		  platforms_json TEXT NOT NULL,
		  scheduled_at   INTEGER NOT NULL,
		  status         TEXT NOT NULL,
		  tags_json      TEXT,
		  all_day        INTEGER NOT NULL DEFAULT 0,
		  created_at     INTEGER NOT NULL,
		  updated_at     INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_posts_scheduled
		ON posts(scheduled_at, id);

		CREATE INDEX IF NOT EXISTS idx_posts_status
		ON posts(status, scheduled_at);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Migration 1 -> 2: recommendations and time slots
	if version < 2 {
		schema := `
		CREATE TABLE IF NOT EXISTS recommendations (
		  seq              INTEGER PRIMARY KEY AUTOINCREMENT,
		  platform         TEXT NOT NULL,
		  day_of_week      INTEGER NOT NULL,
		  time_of_day      TEXT NOT NULL,
		  engagement_score REAL NOT NULL,
		  confidence       TEXT NOT NULL,
		  sample_size      INTEGER NOT NULL DEFAULT 0,
		  imported_at      INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_recommendations_platform
		ON recommendations(platform, seq);

		CREATE TABLE IF NOT EXISTS time_slots (
		  id          TEXT PRIMARY KEY,
		  platform    TEXT NOT NULL,
		  day_of_week INTEGER NOT NULL,
		  start_time  TEXT NOT NULL,
		  end_time    TEXT NOT NULL,
		  is_active   INTEGER NOT NULL DEFAULT 1
		);

		CREATE INDEX IF NOT EXISTS idx_time_slots_platform
		ON time_slots(platform, day_of_week, start_time);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 2 failed: %w", err)
		}
		if err := SetUserVersion(db, 2); err != nil {
			return err
		}
	}

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
