package config

import (
	"os"
	"path/filepath"
)

// Cache backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Default file layout under the working directory.
const (
	DataDir       = ".papernet"
	MetaCacheFile = "meta.json"
	CiteCacheFile = "cites.json"
	DBFile        = "cache.db"
)

// Paths locates the cache files of one cache directory.
type Paths struct {
	Dir string
}

// PathsFor returns the cache paths for dir, or for .papernet under root
// when dir is empty.
func PathsFor(root, dir string) Paths {
	if dir == "" {
		dir = filepath.Join(root, DataDir)
	}
	return Paths{Dir: dir}
}

// MetaCache returns the path of the metadata cache file.
func (p Paths) MetaCache() string {
	return filepath.Join(p.Dir, MetaCacheFile)
}

// CiteCache returns the path of the citation cache file.
func (p Paths) CiteCache() string {
	return filepath.Join(p.Dir, CiteCacheFile)
}

// DB returns the path of the SQLite cache database.
func (p Paths) DB() string {
	return filepath.Join(p.Dir, DBFile)
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path // Return original if we can't get home directory
	}

	return filepath.Join(home, path[1:])
}
