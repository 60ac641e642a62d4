// Package storage persists the crawl caches, either as two JSON files or
// in one SQLite database.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	db *sql.DB
}

// OpenDB opens or creates a SQLite database at the given path.
func OpenDB(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// createSchema creates the database schema if it doesn't exist.
func createSchema(db *sql.DB) error {
	schema := `
		-- Raw metadata responses keyed by document id
		CREATE TABLE IF NOT EXISTS metadata_cache (
			id TEXT PRIMARY KEY,
			response TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);

		-- Citing document ids keyed by cited document id
		CREATE TABLE IF NOT EXISTS citation_cache (
			id TEXT PRIMARY KEY,
			citing_json TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`

	_, err := db.Exec(schema)
	return err
}

// SaveMetadata upserts every entry in one transaction and returns the
// number written.
func (d *DB) SaveMetadata(entries map[string]json.RawMessage) (int, error) {
	return d.upsert("metadata_cache", "response", len(entries), func(put func(id, value string) error) error {
		for id, raw := range entries {
			if err := put(id, string(raw)); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveCitations upserts every entry in one transaction and returns the
// number written.
func (d *DB) SaveCitations(entries map[string][]string) (int, error) {
	return d.upsert("citation_cache", "citing_json", len(entries), func(put func(id, value string) error) error {
		for id, citing := range entries {
			if citing == nil {
				citing = []string{}
			}
			data, err := json.Marshal(citing)
			if err != nil {
				return fmt.Errorf("encoding citations for %s: %w", id, err)
			}
			if err := put(id, string(data)); err != nil {
				return err
			}
		}
		return nil
	})
}

// upsert runs fill inside a transaction with a prepared insert-or-replace
// statement for table.
func (d *DB) upsert(table, column string, n int, fill func(put func(id, value string) error) error) (int, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(fmt.Sprintf(
		`INSERT INTO %s (id, %s, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET %s = excluded.%s, updated_at = excluded.updated_at`,
		table, column, column, column))
	if err != nil {
		return 0, fmt.Errorf("preparing %s insert: %w", table, err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	put := func(id, value string) error {
		if _, err := stmt.Exec(id, value, now); err != nil {
			return fmt.Errorf("inserting %s into %s: %w", id, table, err)
		}
		return nil
	}
	if err := fill(put); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing %s: %w", table, err)
	}
	return n, nil
}

// LoadMetadata returns every cached metadata response.
func (d *DB) LoadMetadata() (map[string]json.RawMessage, error) {
	rows, err := d.db.Query("SELECT id, response FROM metadata_cache")
	if err != nil {
		return nil, fmt.Errorf("querying metadata cache: %w", err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var id, response string
		if err := rows.Scan(&id, &response); err != nil {
			return nil, fmt.Errorf("scanning metadata cache: %w", err)
		}
		out[id] = json.RawMessage(response)
	}
	return out, rows.Err()
}

// LoadCitations returns every cached citation list.
func (d *DB) LoadCitations() (map[string][]string, error) {
	rows, err := d.db.Query("SELECT id, citing_json FROM citation_cache")
	if err != nil {
		return nil, fmt.Errorf("querying citation cache: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var id, citingJSON string
		if err := rows.Scan(&id, &citingJSON); err != nil {
			return nil, fmt.Errorf("scanning citation cache: %w", err)
		}
		var citing []string
		if err := json.Unmarshal([]byte(citingJSON), &citing); err != nil {
			return nil, fmt.Errorf("parsing citations for %s: %w", id, err)
		}
		out[id] = citing
	}
	return out, rows.Err()
}

// Counts returns the number of metadata and citation entries.
func (d *DB) Counts() (metadata, citations int, err error) {
	if err := d.db.QueryRow("SELECT COUNT(*) FROM metadata_cache").Scan(&metadata); err != nil {
		return 0, 0, fmt.Errorf("counting metadata cache: %w", err)
	}
	if err := d.db.QueryRow("SELECT COUNT(*) FROM citation_cache").Scan(&citations); err != nil {
		return 0, 0, fmt.Errorf("counting citation cache: %w", err)
	}
	return metadata, citations, nil
}
