package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matsen/papernet/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestGetOrFetch_CachedValueSkipsFetch(t *testing.T) {
	c := New[string](NameMetadata, nil)
	c.Put("10.1/a", "stored")

	got, ok := c.GetOrFetch(context.Background(), "10.1/a", func(ctx context.Context) (string, bool) {
		t.Fatal("fetch called for cached id")
		return "", false
	})
	if !ok || got != "stored" {
		t.Errorf("GetOrFetch = (%q, %v), want (stored, true)", got, ok)
	}
}

func TestGetOrFetch_Coalesces(t *testing.T) {
	const callers = 25
	m := metrics.NewCollector()
	c := New[[]string](NameCitations, m)

	var fetches atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(ctx context.Context) ([]string, bool) {
		if fetches.Add(1) == 1 {
			close(started)
		}
		<-release
		return []string{"10.1/x", "10.1/y"}, true
	}

	var wg sync.WaitGroup
	results := make([][]string, callers)
	oks := make([]bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], oks[i] = c.GetOrFetch(context.Background(), "10.1/a", fetch)
		}(i)
	}

	<-started
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := fetches.Load(); n != 1 {
		t.Fatalf("fetch ran %d times, want 1", n)
	}
	for i := range results {
		if !oks[i] || strings.Join(results[i], ",") != "10.1/x,10.1/y" {
			t.Errorf("caller %d got (%v, %v)", i, results[i], oks[i])
		}
	}

	total := testutil.ToFloat64(m.CacheRequests.WithLabelValues(NameCitations, metrics.CacheMiss)) +
		testutil.ToFloat64(m.CacheRequests.WithLabelValues(NameCitations, metrics.CacheCoalesced)) +
		testutil.ToFloat64(m.CacheRequests.WithLabelValues(NameCitations, metrics.CacheHit))
	if total != callers {
		t.Errorf("cache request metrics total = %v, want %d", total, callers)
	}
}

func TestGetOrFetch_FailureNotStored(t *testing.T) {
	c := New[json.RawMessage](NameMetadata, nil)
	var fetches int
	fetch := func(ctx context.Context) (json.RawMessage, bool) {
		fetches++
		return nil, false
	}

	if _, ok := c.GetOrFetch(context.Background(), "10.1/a", fetch); ok {
		t.Error("GetOrFetch reported success for failed fetch")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after failed fetch, want 0", c.Len())
	}
	c.GetOrFetch(context.Background(), "10.1/a", fetch)
	if fetches != 2 {
		t.Errorf("fetch ran %d times, want 2 (failures are retried on next request)", fetches)
	}
}

func TestGetOrFetch_DistinctKeysFetchIndependently(t *testing.T) {
	c := New[int](NameMetadata, nil)
	var fetches atomic.Int32
	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			c.GetOrFetch(context.Background(), id, func(ctx context.Context) (int, bool) {
				fetches.Add(1)
				return len(id), true
			})
		}(id)
	}
	wg.Wait()
	if fetches.Load() != 3 || c.Len() != 3 {
		t.Errorf("fetches = %d, Len = %d, want 3 and 3", fetches.Load(), c.Len())
	}
}

func TestPutIfAbsent(t *testing.T) {
	c := New[string](NameMetadata, nil)
	if !c.PutIfAbsent("a", "first") {
		t.Error("PutIfAbsent on empty cache should store")
	}
	if c.PutIfAbsent("a", "second") {
		t.Error("PutIfAbsent should not overwrite")
	}
	if v, _ := c.Get("a"); v != "first" {
		t.Errorf("Get(a) = %q, want first", v)
	}
}

func TestPersistReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "meta.json")

	c := New[json.RawMessage](NameMetadata, nil)
	c.Put("10.1/b", json.RawMessage(`{"message":{"title":["B"]}}`))
	c.Put("10.1/a", json.RawMessage(`{"message":{"title":["A"]}}`))
	if err := c.Persist(path); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "\n  \"10.1/a\"") {
		t.Errorf("persisted file is not indented:\n%s", data)
	}
	if strings.Index(string(data), "10.1/a") > strings.Index(string(data), "10.1/b") {
		t.Error("persisted keys are not sorted")
	}

	reloaded := New[json.RawMessage](NameMetadata, nil)
	reloaded.Put("10.1/c", json.RawMessage(`{}`))
	if err := reloaded.Reload(path); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if reloaded.Len() != 3 {
		t.Errorf("Len() = %d, want 3", reloaded.Len())
	}
	got, ok := reloaded.Get("10.1/a")
	if !ok || !strings.Contains(string(got), `"A"`) {
		t.Errorf("Get(10.1/a) = (%s, %v)", got, ok)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
}

func TestReload_MissingFile(t *testing.T) {
	c := New[[]string](NameCitations, nil)
	if err := c.Reload(filepath.Join(t.TempDir(), "absent.json")); err != nil {
		t.Errorf("Reload of missing file returned %v, want nil", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestReload_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cites.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := New[[]string](NameCitations, nil).Reload(path); err == nil {
		t.Error("Reload of corrupt file should fail")
	}
}

func TestPersist_UnwritablePath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}
	c := New[[]string](NameCitations, nil)
	if err := c.Persist(filepath.Join(blocker, "cites.json")); err == nil {
		t.Error("Persist under a regular file should fail")
	}
}
