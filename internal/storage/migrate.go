package storage

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is the current schema version of the vote cache
const SchemaVersion = 1

// Migrate ensures the schema exists and is at SchemaVersion
func Migrate(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("migrate: db is nil")
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY);`); err != nil {
		return fmt.Errorf("migrate: create schema_migrations: %w", err)
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations;`).Scan(&current); err != nil {
		return fmt.Errorf("migrate: read current version: %w", err)
	}
	if current >= SchemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migrate: begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	statements := []struct {
		name string
		sql  string
	}{
		{"threads table", `
			CREATE TABLE IF NOT EXISTS threads (
				slug TEXT PRIMARY KEY,
				pages INTEGER NOT NULL,
				loaded_at TEXT NOT NULL
			);`},
		{"votes table", `
			CREATE TABLE IF NOT EXISTS votes (
				slug TEXT NOT NULL,
				seq INTEGER NOT NULL,
				voter TEXT NOT NULL,
				target TEXT NOT NULL,
				post_id TEXT NOT NULL,
				ts_raw TEXT NOT NULL,
				PRIMARY KEY (slug, seq),
				FOREIGN KEY (slug) REFERENCES threads(slug) ON DELETE CASCADE
			);`},
	}
	for _, st := range statements {
		if _, err := tx.Exec(st.sql); err != nil {
			return fmt.Errorf("migrate: create %s: %w", st.name, err)
		}
	}

	if _, err := tx.Exec(`INSERT INTO schema_migrations(version) VALUES (?);`, SchemaVersion); err != nil {
		return fmt.Errorf("migrate: record schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit transaction: %w", err)
	}
	return nil
}
