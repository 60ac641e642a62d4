// Package config handles global configuration and the default file layout.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/matsen/papernet/internal/crawl"
	"github.com/matsen/papernet/internal/remote"
)

// Environment variables that override the config file.
const (
	EnvMailto             = "PNET_MAILTO"
	EnvOpenCitationsToken = "OPENCITATIONS_TOKEN"
	EnvCacheDir           = "PNET_CACHE_DIR"
)

// GlobalConfig represents configuration stored in ~/.config/pnet/config.yml.
type GlobalConfig struct {
	Mailto             string        `yaml:"mailto,omitempty"`
	CrossrefURL        string        `yaml:"crossref_url,omitempty"`
	OpenCitationsURL   string        `yaml:"opencitations_url,omitempty"`
	OpenCitationsToken string        `yaml:"opencitations_token,omitempty"`
	RequestsPerSecond  float64       `yaml:"requests_per_second,omitempty"`
	BreakerThreshold   uint32        `yaml:"breaker_threshold,omitempty"`
	CacheDir           string        `yaml:"cache_dir,omitempty"`
	CacheBackend       string        `yaml:"cache_backend,omitempty"` // "json" or "sqlite"
	Crawl              CrawlDefaults `yaml:"crawl,omitempty"`
}

// CrawlDefaults overrides built-in crawl budgets. Unset fields keep the
// built-in value.
type CrawlDefaults struct {
	Depth       *int   `yaml:"depth,omitempty"`
	Concurrency *int   `yaml:"concurrency,omitempty"`
	MaxRefs     *int   `yaml:"max_refs,omitempty"`
	MaxCites    *int   `yaml:"max_cites,omitempty"`
	MaxNodes    *int   `yaml:"max_nodes,omitempty"`
	Timeout     string `yaml:"timeout,omitempty"` // Go duration, e.g. "15s"
	Retries     *int   `yaml:"retries,omitempty"`
}

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "pnet"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"
)

// globalConfigCache caches the loaded global config.
var globalConfigCache *GlobalConfig

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/pnet/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// LoadGlobalConfig loads the global configuration file and applies
// environment overrides. Returns an empty config (not an error) if the
// file doesn't exist.
func LoadGlobalConfig() (*GlobalConfig, error) {
	if globalConfigCache != nil {
		return globalConfigCache, nil
	}

	cfg, err := LoadGlobalConfigFile(GlobalConfigPath())
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()

	globalConfigCache = cfg
	return cfg, nil
}

// LoadGlobalConfigFile parses the config file at path without env overrides.
func LoadGlobalConfigFile(path string) (*GlobalConfig, error) {
	if path == "" {
		return &GlobalConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &GlobalConfig{}, nil
		}
		return nil, fmt.Errorf("reading global config: %w", err)
	}

	var cfg GlobalConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing global config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.CacheDir = ExpandPath(cfg.CacheDir)
	return &cfg, nil
}

func (c *GlobalConfig) applyEnv() {
	c.Mailto = GetConfigValue(EnvMailto, c.Mailto)
	c.OpenCitationsToken = GetConfigValue(EnvOpenCitationsToken, c.OpenCitationsToken)
	c.CacheDir = ExpandPath(GetConfigValue(EnvCacheDir, c.CacheDir))
}

// ResetGlobalConfigCache clears the cached global config.
// Useful for testing.
func ResetGlobalConfigCache() {
	globalConfigCache = nil
}

// GetConfigValue returns the environment variable if set, else fallback.
func GetConfigValue(envKey, fallback string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return fallback
}

// Validate checks values the YAML decoder cannot.
func (c *GlobalConfig) Validate() error {
	switch c.CacheBackend {
	case "", BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("invalid cache_backend %q (valid: %s, %s)", c.CacheBackend, BackendJSON, BackendSQLite)
	}
	if c.Crawl.Timeout != "" {
		if _, err := time.ParseDuration(c.Crawl.Timeout); err != nil {
			return fmt.Errorf("invalid crawl.timeout %q: %w", c.Crawl.Timeout, err)
		}
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative")
	}
	return nil
}

// CrawlOptions returns the crawl budgets for startID: built-in defaults
// with any configured values applied.
func (c *GlobalConfig) CrawlOptions(startID string) crawl.Options {
	opts := crawl.DefaultOptions(startID)
	d := c.Crawl
	setInt(&opts.MaxDepth, d.Depth)
	setInt(&opts.ConcurrencyLimit, d.Concurrency)
	setInt(&opts.MaxPerNodeRefs, d.MaxRefs)
	setInt(&opts.MaxPerNodeCites, d.MaxCites)
	setInt(&opts.MaxTotalNodes, d.MaxNodes)
	return opts
}

// Policy returns the fetch retry policy with any configured values applied.
func (c *GlobalConfig) Policy() remote.Policy {
	p := remote.DefaultPolicy()
	if c.Crawl.Timeout != "" {
		if d, err := time.ParseDuration(c.Crawl.Timeout); err == nil && d > 0 {
			p.Timeout = d
		}
	}
	setInt(&p.MaxRetries, c.Crawl.Retries)
	return p
}

// Backend returns the configured cache backend, defaulting to JSON files.
func (c *GlobalConfig) Backend() string {
	if c.CacheBackend == "" {
		return BackendJSON
	}
	return c.CacheBackend
}

// UserAgent builds the User-Agent sent to remote services.
func UserAgent(version, mailto string) string {
	if version == "" {
		version = "dev"
	}
	if mailto == "" {
		return fmt.Sprintf("papernet/%s", version)
	}
	return fmt.Sprintf("papernet/%s (mailto:%s)", version, mailto)
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
