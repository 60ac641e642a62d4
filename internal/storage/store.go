package storage

import (
	"encoding/json"
	"fmt"

	"github.com/matsen/papernet/internal/cache"
)

// Caches groups the two crawl caches.
type Caches struct {
	Metadata  *cache.Cache[json.RawMessage]
	Citations *cache.Cache[[]string]
}

// Store loads caches before a crawl and saves them after.
type Store interface {
	Load(c Caches) error
	Save(c Caches) error
	Close() error
}

// JSONStore keeps each cache in its own indented JSON file.
type JSONStore struct {
	MetaPath string
	CitePath string
}

// Load merges both files into c. Missing files are skipped.
func (s *JSONStore) Load(c Caches) error {
	if err := c.Metadata.Reload(s.MetaPath); err != nil {
		return err
	}
	return c.Citations.Reload(s.CitePath)
}

// Save writes both caches.
func (s *JSONStore) Save(c Caches) error {
	if err := c.Metadata.Persist(s.MetaPath); err != nil {
		return err
	}
	return c.Citations.Persist(s.CitePath)
}

// Close is a no-op.
func (s *JSONStore) Close() error {
	return nil
}

// SQLiteStore keeps both caches in one database.
type SQLiteStore struct {
	db *DB
}

// OpenSQLiteStore opens or creates the database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// DB returns the underlying database.
func (s *SQLiteStore) DB() *DB {
	return s.db
}

// Load merges every stored entry into c.
func (s *SQLiteStore) Load(c Caches) error {
	meta, err := s.db.LoadMetadata()
	if err != nil {
		return fmt.Errorf("loading metadata cache: %w", err)
	}
	cites, err := s.db.LoadCitations()
	if err != nil {
		return fmt.Errorf("loading citation cache: %w", err)
	}
	c.Metadata.Merge(meta)
	c.Citations.Merge(cites)
	return nil
}

// Save upserts every entry of c.
func (s *SQLiteStore) Save(c Caches) error {
	if _, err := s.db.SaveMetadata(c.Metadata.Snapshot()); err != nil {
		return fmt.Errorf("saving metadata cache: %w", err)
	}
	if _, err := s.db.SaveCitations(c.Citations.Snapshot()); err != nil {
		return fmt.Errorf("saving citation cache: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
