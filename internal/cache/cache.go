// Package cache stores raw API responses between runs.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Cache stores response bodies by key.
type Cache interface {
	// Get returns the cached value and whether it was found.
	Get(key string) ([]byte, bool, error)

	// Set stores a value until the cache TTL expires.
	Set(key string, value []byte) error

	// Delete removes a single entry.
	Delete(key string) error

	// Clear removes all cached entries.
	Clear() error

	// Stats reports hit and miss counters.
	Stats() Stats

	// Close releases cache resources.
	Close() error
}

// Stats holds cache counters.
type Stats struct {
	Backend string `json:"backend"`
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
	Entries int    `json:"entries"`
	Bytes   int64  `json:"bytes"`
}

// HitRate returns hits over lookups, 0 when nothing was looked up.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Backend names.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendBadger = "badger"
)

// Options selects and sizes a backend.
type Options struct {
	Backend    string
	Dir        string
	TTL        time.Duration
	MaxEntries int
}

// New opens the backend named in opts.
func New(opts Options) (Cache, error) {
	switch strings.ToLower(opts.Backend) {
	case "", BackendMemory:
		return NewLRUCache(opts.MaxEntries, opts.TTL), nil
	case BackendFile:
		return NewFileCache(opts.Dir, opts.TTL)
	case BackendBadger:
		return NewBadgerCache(opts.Dir, opts.TTL)
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", opts.Backend)
	}
}

// ComputeKey hashes the parts into a stable hex key.
func ComputeKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

var (
	_ Cache = (*LRUCache)(nil)
	_ Cache = (*FileCache)(nil)
	_ Cache = (*BadgerCache)(nil)
)
