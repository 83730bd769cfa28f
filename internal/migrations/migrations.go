package migrations

import (
	"database/sql"
	"fmt"
)

// Migration represents a single database migration
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: 1,
		Name:    "Add status and target indices to load_test_runs",
		Up: `
			CREATE INDEX IF NOT EXISTS idx_load_test_runs_status ON load_test_runs(status);
			CREATE INDEX IF NOT EXISTS idx_load_test_runs_target_url ON load_test_runs(target_url);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_load_test_runs_status;
			DROP INDEX IF EXISTS idx_load_test_runs_target_url;
		`,
	},
	{
		Version: 2,
		Name:    "Add exit_code and duration_ms columns to load_test_runs",
		Up: `
			ALTER TABLE load_test_runs ADD COLUMN exit_code INTEGER;
			ALTER TABLE load_test_runs ADD COLUMN duration_ms INTEGER NOT NULL DEFAULT 0;
		`,
		Down: `
			-- SQLite does not support DROP COLUMN easily
			-- Leaving columns in place for backward compatibility
		`,
	},
}

// InitSchema creates the base tables
// This must be called before running migrations to ensure all tables exist
func InitSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS load_test_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		status TEXT NOT NULL,
		target_url TEXT NOT NULL,
		method TEXT NOT NULL,
		call_type TEXT NOT NULL,
		virtual_users INTEGER NOT NULL,
		duration TEXT NOT NULL,
		ramp_up TEXT,
		headers TEXT,
		body TEXT,
		k6_binary TEXT,
		script TEXT NOT NULL,
		summary TEXT,
		metrics TEXT,
		raw_output TEXT,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_load_test_runs_started_at ON load_test_runs(started_at DESC);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// Run executes all pending migrations on the database
func Run(db *sql.DB) error {
	if err := InitSchema(db); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := GetCurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	for _, migration := range AllMigrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec(migration.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply migration %d (%s): %w", migration.Version, migration.Name, err)
		}

		_, err = tx.Exec(
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
			migration.Version,
			migration.Name,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// GetCurrentVersion returns the current database schema version
func GetCurrentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow(`
		SELECT COALESCE(MAX(version), 0)
		FROM schema_migrations
	`).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return 0, err
	}
	return version, nil
}
