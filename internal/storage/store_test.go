package storage

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/matsen/papernet/internal/cache"
)

func newCaches() Caches {
	return Caches{
		Metadata:  cache.New[json.RawMessage](cache.NameMetadata, nil),
		Citations: cache.New[[]string](cache.NameCitations, nil),
	}
}

func fill(c Caches) {
	c.Metadata.Put("10.1/a", json.RawMessage(`{"message":{}}`))
	c.Metadata.Put("10.1/b", json.RawMessage(`{"message":{}}`))
	c.Citations.Put("10.1/a", []string{"10.1/c"})
}

func TestStores_SaveLoad(t *testing.T) {
	dir := t.TempDir()

	sqliteStore, err := OpenSQLiteStore(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		store Store
	}{
		{"json", &JSONStore{MetaPath: filepath.Join(dir, "meta.json"), CitePath: filepath.Join(dir, "cites.json")}},
		{"sqlite", sqliteStore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer tt.store.Close()

			src := newCaches()
			fill(src)
			if err := tt.store.Save(src); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			dst := newCaches()
			if err := tt.store.Load(dst); err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if dst.Metadata.Len() != 2 || dst.Citations.Len() != 1 {
				t.Errorf("loaded %d metadata, %d citation entries; want 2, 1", dst.Metadata.Len(), dst.Citations.Len())
			}
			if got, _ := dst.Citations.Get("10.1/a"); len(got) != 1 || got[0] != "10.1/c" {
				t.Errorf("citations = %v", got)
			}
		})
	}
}

func TestJSONStore_LoadMissing(t *testing.T) {
	dir := t.TempDir()
	s := &JSONStore{MetaPath: filepath.Join(dir, "meta.json"), CitePath: filepath.Join(dir, "cites.json")}
	c := newCaches()
	if err := s.Load(c); err != nil {
		t.Errorf("Load() of missing files error = %v", err)
	}
	if c.Metadata.Len() != 0 {
		t.Error("caches should stay empty")
	}
}
