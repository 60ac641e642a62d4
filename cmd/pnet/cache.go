package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matsen/papernet/internal/cache"
	"github.com/matsen/papernet/internal/config"
	"github.com/matsen/papernet/internal/metrics"
	"github.com/matsen/papernet/internal/storage"
)

var (
	cacheDirFlag     string
	cacheBackendFlag string
	cacheListIDs     bool
)

func init() {
	cacheCmd.PersistentFlags().StringVar(&cacheDirFlag, "cache-dir", "", "Cache directory (default: ./.papernet)")
	cacheCmd.PersistentFlags().StringVar(&cacheBackendFlag, "backend", "", "Cache backend: json or sqlite")
	cacheInfoCmd.Flags().BoolVar(&cacheListIDs, "list", false, "Also list the cached document ids")
	cacheCmd.AddCommand(cacheInfoCmd)
	cacheCmd.AddCommand(cacheMigrateCmd)
	rootCmd.AddCommand(cacheCmd)
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the fetch cache",
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show cache entry counts",
	Args:  cobra.NoArgs,
	RunE:  runCacheInfo,
}

var cacheMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy the JSON cache files into the SQLite cache",
	Long: `Copy meta.json and cites.json into cache.db in the same cache directory.

Existing SQLite entries with the same id are overwritten. The JSON files
are left in place.`,
	Args: cobra.NoArgs,
	RunE: runCacheMigrate,
}

// cacheLocation resolves the cache directory and backend: flag, then
// config (which already carries env overrides), then the default.
func cacheLocation(cfg *config.GlobalConfig, dir, backend string) (config.Paths, string, error) {
	if dir == "" {
		dir = cfg.CacheDir
	}
	if backend == "" {
		backend = cfg.Backend()
	}
	switch backend {
	case config.BackendJSON, config.BackendSQLite:
	default:
		return config.Paths{}, "", fmt.Errorf("invalid backend %q (valid: %s, %s)", backend, config.BackendJSON, config.BackendSQLite)
	}
	root, err := os.Getwd()
	if err != nil {
		return config.Paths{}, "", fmt.Errorf("getting working directory: %w", err)
	}
	return config.PathsFor(root, config.ExpandPath(dir)), backend, nil
}

// openStore opens the cache store for backend.
func openStore(paths config.Paths, backend string) (storage.Store, error) {
	if backend == config.BackendSQLite {
		return storage.OpenSQLiteStore(paths.DB())
	}
	return &storage.JSONStore{MetaPath: paths.MetaCache(), CitePath: paths.CiteCache()}, nil
}

// newCaches creates empty crawl caches reporting to m.
func newCaches(m *metrics.Collector) storage.Caches {
	return storage.Caches{
		Metadata:  cache.New[json.RawMessage](cache.NameMetadata, m),
		Citations: cache.New[[]string](cache.NameCitations, m),
	}
}

func runCacheInfo(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadGlobalConfig()
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	paths, backend, err := cacheLocation(cfg, cacheDirFlag, cacheBackendFlag)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	resp, err := cacheInfo(paths, backend, cacheListIDs)
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}

	if humanOutput {
		outputHuman("Cache: %s (%s)\n", resp.Dir, resp.Backend)
		outputHuman("  Metadata:  %d\n", resp.Metadata)
		outputHuman("  Citations: %d\n", resp.Citations)
		for _, id := range resp.MetadataIDs {
			outputHuman("  meta  %s\n", id)
		}
		for _, id := range resp.CitationIDs {
			outputHuman("  cites %s\n", id)
		}
		return nil
	}
	return outputJSON(resp)
}

// cacheInfo counts the entries of the cache at paths. SQLite caches are
// counted in the database unless ids are requested.
func cacheInfo(paths config.Paths, backend string, listIDs bool) (CacheInfoResponse, error) {
	resp := CacheInfoResponse{Backend: backend, Dir: paths.Dir}
	if backend == config.BackendSQLite && !listIDs {
		store, err := storage.OpenSQLiteStore(paths.DB())
		if err != nil {
			return resp, fmt.Errorf("opening cache: %w", err)
		}
		defer store.Close()
		resp.Metadata, resp.Citations, err = store.DB().Counts()
		if err != nil {
			return resp, fmt.Errorf("counting cache entries: %w", err)
		}
		return resp, nil
	}

	store, err := openStore(paths, backend)
	if err != nil {
		return resp, fmt.Errorf("opening cache: %w", err)
	}
	defer store.Close()
	caches := newCaches(nil)
	if err := store.Load(caches); err != nil {
		return resp, fmt.Errorf("loading cache: %w", err)
	}
	resp.Metadata = caches.Metadata.Len()
	resp.Citations = caches.Citations.Len()
	if listIDs {
		resp.MetadataIDs = caches.Metadata.Keys()
		resp.CitationIDs = caches.Citations.Keys()
	}
	return resp, nil
}

func runCacheMigrate(cmd *cobra.Command, args []string) error {
	logger := mustLogger()
	defer logger.Sync()

	cfg, err := config.LoadGlobalConfig()
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	paths, _, err := cacheLocation(cfg, cacheDirFlag, config.BackendJSON)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	caches := newCaches(nil)
	src, _ := openStore(paths, config.BackendJSON)
	if err := src.Load(caches); err != nil {
		exitWithError(ExitDataError, "loading JSON cache: %v", err)
	}

	dst, err := openStore(paths, config.BackendSQLite)
	if err != nil {
		exitWithError(ExitDataError, "opening SQLite cache: %v", err)
	}
	defer dst.Close()
	if err := dst.Save(caches); err != nil {
		exitWithError(ExitError, "writing SQLite cache: %v", err)
	}

	logger.Info("cache migrated",
		zap.String("path", paths.DB()),
		zap.Int("metadata", caches.Metadata.Len()),
		zap.Int("citations", caches.Citations.Len()))

	resp := MigrateResponse{
		Status:    "migrated",
		Path:      paths.DB(),
		Metadata:  caches.Metadata.Len(),
		Citations: caches.Citations.Len(),
	}
	if humanOutput {
		outputHuman("Migrated %d metadata and %d citation entries to %s\n", resp.Metadata, resp.Citations, resp.Path)
		return nil
	}
	return outputJSON(resp)
}
