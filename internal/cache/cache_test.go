package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUCache(t *testing.T) {
	cache := NewLRUCache(2, time.Hour)

	require.NoError(t, cache.Set("key1", []byte("test")))

	got, found, err := cache.Get("key1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "test", string(got))

	_, found, err = cache.Get("nonexistent")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLRUEviction(t *testing.T) {
	cache := NewLRUCache(2, time.Hour)

	_ = cache.Set("key1", []byte("1"))
	_ = cache.Set("key2", []byte("2"))
	_ = cache.Set("key3", []byte("3")) // Evicts key1

	_, found, _ := cache.Get("key1")
	assert.False(t, found, "key1 should be evicted")

	_, found, _ = cache.Get("key2")
	assert.True(t, found)
}

func TestLRUExpiration(t *testing.T) {
	cache := NewLRUCache(10, 10*time.Millisecond)

	_ = cache.Set("key1", []byte("test"))
	time.Sleep(20 * time.Millisecond)

	_, found, _ := cache.Get("key1")
	assert.False(t, found)
	assert.Equal(t, 0, cache.Stats().Entries)
}

func TestLRUStats(t *testing.T) {
	cache := NewLRUCache(10, time.Hour)

	_ = cache.Set("key1", []byte("test"))
	_, _, _ = cache.Get("key1")        // hit
	_, _, _ = cache.Get("key1")        // hit
	_, _, _ = cache.Get("nonexistent") // miss

	stats := cache.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate(), 0.001)

	require.NoError(t, cache.Clear())
	assert.Equal(t, 0, cache.Stats().Entries)
}

func TestLRUBytes(t *testing.T) {
	cache := NewLRUCache(2, time.Hour)

	_ = cache.Set("key1", []byte("12345"))
	_ = cache.Set("key2", []byte("123"))
	assert.Equal(t, int64(8), cache.Stats().Bytes)

	_ = cache.Set("key1", []byte("1"))
	assert.Equal(t, int64(4), cache.Stats().Bytes)

	_ = cache.Set("key3", []byte("12")) // Evicts key2
	assert.Equal(t, int64(3), cache.Stats().Bytes)

	require.NoError(t, cache.Delete("key1"))
	assert.Equal(t, int64(2), cache.Stats().Bytes)
}

func TestLRUNoTTL(t *testing.T) {
	cache := NewLRUCache(2, 0)
	now := time.Now()
	cache.now = func() time.Time { return now }

	_ = cache.Set("key1", []byte("test"))
	now = now.Add(24 * time.Hour)

	_, found, _ := cache.Get("key1")
	assert.True(t, found)
}

func TestFileCache(t *testing.T) {
	cache, err := NewFileCache(t.TempDir(), time.Hour)
	require.NoError(t, err)

	require.NoError(t, cache.Set("key1", []byte(`{"rule":"go:S1"}`)))

	got, found, err := cache.Get("key1")
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"rule":"go:S1"}`, string(got))

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(len(`{"rule":"go:S1"}`)), stats.Bytes)

	require.NoError(t, cache.Delete("key1"))
	require.NoError(t, cache.Delete("key1"))
	_, found, _ = cache.Get("key1")
	assert.False(t, found)
}

func TestFileCacheIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewFileCache(dir, time.Hour)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("keep"), 0o600))
	_ = cache.Set("key1", []byte("1"))
	assert.Equal(t, 1, cache.Stats().Entries)

	require.NoError(t, cache.Clear())
	assert.FileExists(t, filepath.Join(dir, "README"))
}

func TestFileCacheExpiration(t *testing.T) {
	cache, err := NewFileCache(t.TempDir(), 10*time.Millisecond)
	require.NoError(t, err)

	_ = cache.Set("key1", []byte("test"))
	_ = cache.Set("key2", []byte("test"))
	time.Sleep(20 * time.Millisecond)

	_, found, _ := cache.Get("key1")
	assert.False(t, found)

	require.NoError(t, cache.Cleanup())
	assert.Equal(t, 0, cache.Stats().Entries)
}

func TestFileCacheClear(t *testing.T) {
	cache, err := NewFileCache(t.TempDir(), time.Hour)
	require.NoError(t, err)

	_ = cache.Set("key1", []byte("1"))
	_ = cache.Set("key2", []byte("2"))
	require.NoError(t, cache.Clear())

	assert.Equal(t, 0, cache.Stats().Entries)
}

func TestBadgerCache(t *testing.T) {
	cache, err := NewBadgerCache(filepath.Join(t.TempDir(), "badger"), time.Hour)
	require.NoError(t, err)
	defer cache.Close()

	require.NoError(t, cache.Set("key1", []byte("one")))
	require.NoError(t, cache.Set("key2", []byte("two")))

	got, found, err := cache.Get("key1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "one", string(got))

	_, found, err = cache.Get("missing")
	require.NoError(t, err)
	assert.False(t, found)

	stats := cache.Stats()
	assert.Equal(t, BackendBadger, stats.Backend)
	assert.Equal(t, 2, stats.Entries)
	assert.Positive(t, stats.Bytes)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)

	require.NoError(t, cache.Delete("key2"))
	assert.Equal(t, 1, cache.Stats().Entries)

	require.NoError(t, cache.Clear())
	assert.Equal(t, 0, cache.Stats().Entries)
}

func TestNew(t *testing.T) {
	dir := t.TempDir()

	c, err := New(Options{Backend: "memory", MaxEntries: 5, TTL: time.Minute})
	require.NoError(t, err)
	assert.IsType(t, &LRUCache{}, c)

	c, err = New(Options{Backend: "file", Dir: filepath.Join(dir, "files"), TTL: time.Minute})
	require.NoError(t, err)
	assert.IsType(t, &FileCache{}, c)

	_, err = New(Options{Backend: "redis"})
	assert.Error(t, err)
}

func TestComputeKey(t *testing.T) {
	key1 := ComputeKey("/api/rules/show", "key=go:S1")
	key2 := ComputeKey("/api/rules/show", "key=go:S1")
	key3 := ComputeKey("/api/rules/show", "key=go:S2")
	key4 := ComputeKey("/api/rules/showkey=go:S1")

	assert.Equal(t, key1, key2)
	assert.NotEqual(t, key1, key3)
	assert.NotEqual(t, key1, key4)
	assert.Len(t, key1, 64)
}
