package cache

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// BadgerCache stores entries in an embedded BadgerDB with native TTLs.
type BadgerCache struct {
	db  *badger.DB
	ttl time.Duration

	hits   int64
	misses int64
}

// NewBadgerCache opens (or creates) a BadgerDB in dir.
func NewBadgerCache(dir string, ttl time.Duration) (*BadgerCache, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger db: %w", err)
	}

	return &BadgerCache{db: db, ttl: ttl}, nil
}

func (c *BadgerCache) Get(key string) ([]byte, bool, error) {
	var value []byte

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		atomic.AddInt64(&c.misses, 1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache entry: %w", err)
	}

	atomic.AddInt64(&c.hits, 1)
	return value, true, nil
}

func (c *BadgerCache) Set(key string, value []byte) error {
	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value)
		if c.ttl > 0 {
			entry = entry.WithTTL(c.ttl)
		}
		return txn.SetEntry(entry)
	})
}

func (c *BadgerCache) Delete(key string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (c *BadgerCache) Clear() error {
	return c.db.DropAll()
}

func (c *BadgerCache) Stats() Stats {
	stats := Stats{Backend: BackendBadger, Hits: atomic.LoadInt64(&c.hits), Misses: atomic.LoadInt64(&c.misses)}
	_ = c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			stats.Entries++
			stats.Bytes += it.Item().ValueSize()
		}
		return nil
	})
	return stats
}

func (c *BadgerCache) Close() error {
	return c.db.Close()
}
