package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matsen/papernet/internal/crawl"
	"github.com/matsen/papernet/internal/remote"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configDir := filepath.Join(tmpDir, GlobalConfigDir)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(configDir, GlobalConfigFile), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return tmpDir
}

func TestGlobalConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got, want := GlobalConfigPath(), "/custom/config/pnet/config.yml"; got != want {
		t.Errorf("GlobalConfigPath() = %q, want %q", got, want)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}
	if got, want := GlobalConfigPath(), filepath.Join(home, ".config", "pnet", "config.yml"); got != want {
		t.Errorf("GlobalConfigPath() = %q, want %q", got, want)
	}
}

func TestLoadGlobalConfig_NotFound(t *testing.T) {
	ResetGlobalConfigCache()
	defer ResetGlobalConfigCache()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(EnvMailto, "")
	t.Setenv(EnvOpenCitationsToken, "")
	t.Setenv(EnvCacheDir, "")

	cfg, err := LoadGlobalConfig()
	if err != nil {
		t.Fatalf("LoadGlobalConfig() error = %v", err)
	}
	if cfg.Mailto != "" || cfg.Backend() != BackendJSON {
		t.Errorf("expected empty config, got %+v", cfg)
	}
}

func TestLoadGlobalConfig_Valid(t *testing.T) {
	ResetGlobalConfigCache()
	defer ResetGlobalConfigCache()

	dir := writeConfig(t, `
mailto: me@example.org
opencitations_token: file-token
requests_per_second: 2.5
cache_backend: sqlite
cache_dir: ~/pnet-cache
crawl:
  depth: 0
  concurrency: 3
  max_nodes: 200
  timeout: 5s
  retries: 4
`)
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv(EnvMailto, "")
	t.Setenv(EnvOpenCitationsToken, "env-token")
	t.Setenv(EnvCacheDir, "")

	cfg, err := LoadGlobalConfig()
	if err != nil {
		t.Fatalf("LoadGlobalConfig() error = %v", err)
	}
	if cfg.Mailto != "me@example.org" {
		t.Errorf("Mailto = %q", cfg.Mailto)
	}
	if cfg.OpenCitationsToken != "env-token" {
		t.Errorf("OpenCitationsToken = %q, want env override", cfg.OpenCitationsToken)
	}
	if cfg.RequestsPerSecond != 2.5 || cfg.Backend() != BackendSQLite {
		t.Errorf("cfg = %+v", cfg)
	}
	if strings.HasPrefix(cfg.CacheDir, "~") {
		t.Errorf("CacheDir not expanded: %q", cfg.CacheDir)
	}

	opts := cfg.CrawlOptions("10.1/x")
	want := crawl.DefaultOptions("10.1/x")
	want.MaxDepth = 0
	want.ConcurrencyLimit = 3
	want.MaxTotalNodes = 200
	if opts != want {
		t.Errorf("CrawlOptions() = %+v, want %+v", opts, want)
	}

	p := cfg.Policy()
	if p.Timeout != 5*time.Second || p.MaxRetries != 4 || p.Factor != remote.DefaultFactor {
		t.Errorf("Policy() = %+v", p)
	}
}

func TestLoadGlobalConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not yaml", "mailto: [unclosed"},
		{"bad backend", "cache_backend: redis"},
		{"bad timeout", "crawl:\n  timeout: soon"},
		{"negative rate", "requests_per_second: -1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetGlobalConfigCache()
			defer ResetGlobalConfigCache()
			t.Setenv("XDG_CONFIG_HOME", writeConfig(t, tt.content))

			if _, err := LoadGlobalConfig(); err == nil {
				t.Error("LoadGlobalConfig() should return an error")
			}
		})
	}
}

func TestGlobalConfigCache(t *testing.T) {
	ResetGlobalConfigCache()
	defer ResetGlobalConfigCache()
	t.Setenv("XDG_CONFIG_HOME", writeConfig(t, "mailto: first@example.org"))
	t.Setenv(EnvMailto, "")

	first, err := LoadGlobalConfig()
	if err != nil {
		t.Fatal(err)
	}
	t.Setenv("XDG_CONFIG_HOME", writeConfig(t, "mailto: second@example.org"))
	second, _ := LoadGlobalConfig()
	if first != second || second.Mailto != "first@example.org" {
		t.Error("LoadGlobalConfig() should return the cached config")
	}
}

func TestGetConfigValue(t *testing.T) {
	t.Setenv("PNET_TEST_KEY", "from-env")
	if got := GetConfigValue("PNET_TEST_KEY", "from-config"); got != "from-env" {
		t.Errorf("GetConfigValue() = %q, want from-env", got)
	}

	t.Setenv("PNET_TEST_KEY", "")
	if got := GetConfigValue("PNET_TEST_KEY", "from-config"); got != "from-config" {
		t.Errorf("GetConfigValue() = %q, want from-config", got)
	}
}

func TestUserAgent(t *testing.T) {
	tests := []struct {
		version, mailto, want string
	}{
		{"1.2.0", "me@example.org", "papernet/1.2.0 (mailto:me@example.org)"},
		{"1.2.0", "", "papernet/1.2.0"},
		{"", "", "papernet/dev"},
	}
	for _, tt := range tests {
		if got := UserAgent(tt.version, tt.mailto); got != tt.want {
			t.Errorf("UserAgent(%q, %q) = %q, want %q", tt.version, tt.mailto, got, tt.want)
		}
	}
}
