package store

import (
	"database/sql"
	"fmt"
)

const schemaVersion = 1

func initSchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}
	if version == schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := createTables(tx); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}
	return tx.Commit()
}

func createTables(tx *sql.Tx) error {
	queries := []string{
		// Last source text of each document that compiled without errors.
		`CREATE TABLE IF NOT EXISTS known_good (
            uri TEXT PRIMARY KEY,
            source TEXT NOT NULL,
            saved_at INTEGER NOT NULL
        )`,

		// Modules seen in the workspace, either compiled or found by a scan.
		// compiled_at is 0 until the module compiles.
		`CREATE TABLE IF NOT EXISTS modules (
            name TEXT PRIMARY KEY,
            source_path TEXT NOT NULL,
            compiled_at INTEGER NOT NULL DEFAULT 0
        )`,

		// Import edges of compiled modules.
		`CREATE TABLE IF NOT EXISTS imports (
            module TEXT NOT NULL,
            imported TEXT NOT NULL,
            FOREIGN KEY (module) REFERENCES modules(name) ON DELETE CASCADE,
            PRIMARY KEY (module, imported)
        )`,

		`CREATE INDEX IF NOT EXISTS idx_imports_imported
            ON imports(imported)`,
	}
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query %q: %w", query, err)
		}
	}
	return nil
}
