// Package store persists session state that should outlive the server
// process: the last-known-good source of each document and an index of
// workspace modules with their imports.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when a requested record doesn't exist
	ErrNotFound = errors.New("record not found")

	// ErrClosed is returned when using a closed store
	ErrClosed = errors.New("store is closed")
)

type ModuleRecord struct {
	Name       string
	SourcePath string
	CompiledAt time.Time
	Imports    []string
}

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path, enables WAL mode and
// brings the schema up to date.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return ErrClosed
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) withTx(fn func(tx *sql.Tx) error) error {
	if s.db == nil {
		return ErrClosed
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) SaveKnownGood(uri, source string) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
            INSERT INTO known_good (uri, source, saved_at) VALUES (?, ?, ?)
            ON CONFLICT(uri) DO UPDATE SET source = excluded.source, saved_at = excluded.saved_at
        `, uri, source, time.Now().Unix())
		if err != nil {
			return fmt.Errorf("failed to save known-good source: %w", err)
		}
		return nil
	})
}

func (s *Store) KnownGood(uri string) (string, error) {
	if s.db == nil {
		return "", ErrClosed
	}
	var source string
	err := s.db.QueryRow(`SELECT source FROM known_good WHERE uri = ?`, uri).Scan(&source)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load known-good source: %w", err)
	}
	return source, nil
}

// IndexModule records a module found on disk without touching its compile
// state.
func (s *Store) IndexModule(name, sourcePath string) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
            INSERT INTO modules (name, source_path) VALUES (?, ?)
            ON CONFLICT(name) DO UPDATE SET source_path = excluded.source_path
        `, name, sourcePath)
		if err != nil {
			return fmt.Errorf("failed to index module: %w", err)
		}
		return nil
	})
}

// RecordCompile marks a module compiled and replaces its import edges.
func (s *Store) RecordCompile(name, sourcePath string, imports []string) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
            INSERT INTO modules (name, source_path, compiled_at) VALUES (?, ?, ?)
            ON CONFLICT(name) DO UPDATE SET
                source_path = excluded.source_path,
                compiled_at = excluded.compiled_at
        `, name, sourcePath, time.Now().Unix())
		if err != nil {
			return fmt.Errorf("failed to upsert module: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM imports WHERE module = ?`, name); err != nil {
			return fmt.Errorf("failed to delete imports: %w", err)
		}
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO imports (module, imported) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare import insert statement: %w", err)
		}
		defer stmt.Close()
		for _, imported := range imports {
			if _, err := stmt.Exec(name, imported); err != nil {
				return fmt.Errorf("failed to insert import: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) Module(name string) (ModuleRecord, error) {
	if s.db == nil {
		return ModuleRecord{}, ErrClosed
	}
	rec := ModuleRecord{Name: name}
	var compiled int64
	err := s.db.QueryRow(`SELECT source_path, compiled_at FROM modules WHERE name = ?`, name).
		Scan(&rec.SourcePath, &compiled)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, ErrNotFound
	}
	if err != nil {
		return rec, fmt.Errorf("failed to load module: %w", err)
	}
	if compiled > 0 {
		rec.CompiledAt = time.Unix(compiled, 0)
	}
	rec.Imports, err = s.imports(name)
	return rec, err
}

func (s *Store) imports(name string) ([]string, error) {
	rows, err := s.db.Query(`SELECT imported FROM imports WHERE module = ? ORDER BY imported`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query imports: %w", err)
	}
	defer rows.Close()
	var imports []string
	for rows.Next() {
		var imported string
		if err := rows.Scan(&imported); err != nil {
			return nil, err
		}
		imports = append(imports, imported)
	}
	return imports, rows.Err()
}

// Modules lists every indexed module ordered by name.
func (s *Store) Modules() ([]ModuleRecord, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.Query(`SELECT name, source_path, compiled_at FROM modules ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query modules: %w", err)
	}
	var records []ModuleRecord
	for rows.Next() {
		var rec ModuleRecord
		var compiled int64
		if err := rows.Scan(&rec.Name, &rec.SourcePath, &compiled); err != nil {
			rows.Close()
			return nil, err
		}
		if compiled > 0 {
			rec.CompiledAt = time.Unix(compiled, 0)
		}
		records = append(records, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].Imports, err = s.imports(records[i].Name); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// Importers lists the modules importing name.
func (s *Store) Importers(name string) ([]string, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.Query(`SELECT module FROM imports WHERE imported = ? ORDER BY module`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query importers: %w", err)
	}
	defer rows.Close()
	var modules []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	return modules, rows.Err()
}
