package cache

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
)

const bodySuffix = ".body"

// FileCache stores each response body in its own file under dir. An entry
// expires ttl after its file was last written.
type FileCache struct {
	dir string
	ttl time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// NewFileCache creates dir if needed and returns a cache rooted there.
func NewFileCache(dir string, ttl time.Duration) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileCache{dir: dir, ttl: ttl}, nil
}

func (c *FileCache) Get(key string) ([]byte, bool, error) {
	path := c.keyPath(key)

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		c.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if c.expired(info) {
		_ = os.Remove(path)
		c.misses.Add(1)
		return nil, false, nil
	}

	body, err := os.ReadFile(path) //nolint:gosec // Path is derived from a hashed key
	if err != nil {
		return nil, false, err
	}
	c.hits.Add(1)
	return body, true, nil
}

// Set writes the body to a temporary file first so readers never see a
// partial body.
func (c *FileCache) Set(key string, value []byte) error {
	tmp, err := os.CreateTemp(c.dir, "tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.keyPath(key))
}

func (c *FileCache) Delete(key string) error {
	err := os.Remove(c.keyPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (c *FileCache) Clear() error {
	return c.walk(func(path string, _ fs.FileInfo) error {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	})
}

// Cleanup removes expired entries.
func (c *FileCache) Cleanup() error {
	return c.walk(func(path string, info fs.FileInfo) error {
		if c.expired(info) {
			return os.Remove(path)
		}
		return nil
	})
}

func (c *FileCache) Stats() Stats {
	stats := Stats{Backend: BackendFile, Hits: c.hits.Load(), Misses: c.misses.Load()}
	_ = c.walk(func(_ string, info fs.FileInfo) error {
		stats.Entries++
		stats.Bytes += info.Size()
		return nil
	})
	return stats
}

func (c *FileCache) Close() error {
	return nil
}

func (c *FileCache) keyPath(key string) string {
	return filepath.Join(c.dir, key+bodySuffix)
}

func (c *FileCache) expired(info fs.FileInfo) bool {
	return c.ttl > 0 && time.Since(info.ModTime()) > c.ttl
}

// walk calls fn for every body file, stopping at the first error.
func (c *FileCache) walk(fn func(path string, info fs.FileInfo) error) error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), bodySuffix) {
			continue
		}
		info, err := entry.Info()
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
		if err := fn(filepath.Join(c.dir, entry.Name()), info); err != nil {
			return err
		}
	}
	return nil
}
