package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
)

const gcInterval = 5 * time.Minute

var _ domain.Cache = (*BadgerCache)(nil)

// BadgerOptions selects where the cache lives
type BadgerOptions struct {
	Dir      string
	InMemory bool // for tests; nothing survives Close
	Verbose  bool // forward badger's own logging
}

// BadgerCache is a cache implementation using BadgerDB. Keys are stored
// as given; use PageKey or EmbeddingKey to build them.
type BadgerCache struct {
	db        *badger.DB
	stop      chan struct{}
	closeOnce sync.Once
}

// NewBadgerCache opens a BadgerDB cache
func NewBadgerCache(opts BadgerOptions) (*BadgerCache, error) {
	var badgerOpts badger.Options
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Dir == "" {
			return nil, fmt.Errorf("cache directory is required")
		}
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
		badgerOpts = badger.DefaultOptions(opts.Dir)
	}
	if !opts.Verbose {
		badgerOpts = badgerOpts.WithLogger(nil)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	c := &BadgerCache{db: db, stop: make(chan struct{})}
	if !opts.InMemory {
		go c.gcLoop()
	}
	return c, nil
}

func (c *BadgerCache) gcLoop() {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			_ = c.db.RunValueLogGC(0.5)
		}
	}
}

// Get retrieves a value from cache
func (c *BadgerCache) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return domain.ErrCacheMiss
			}
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set stores a value. A zero ttl never expires.
func (c *BadgerCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

// Has checks if a key exists in cache
func (c *BadgerCache) Has(_ context.Context, key string) bool {
	err := c.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		return err
	})
	return err == nil
}

// Delete removes a key from cache
func (c *BadgerCache) Delete(_ context.Context, key string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Close stops garbage collection and closes the database
func (c *BadgerCache) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stop)
		err = c.db.Close()
	})
	return err
}

// Clear removes all entries from the cache
func (c *BadgerCache) Clear() error {
	return c.db.DropAll()
}

// ClearPrefix removes the entries whose keys start with prefix + ":"
func (c *BadgerCache) ClearPrefix(prefix string) error {
	return c.db.DropPrefix([]byte(prefix + ":"))
}

// Size returns the number of entries in the cache
func (c *BadgerCache) Size() int64 {
	return c.count(nil)
}

func (c *BadgerCache) count(prefix []byte) int64 {
	var n int64
	_ = c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n
}

// Stats returns entry counts per key prefix and on-disk sizes
func (c *BadgerCache) Stats() map[string]interface{} {
	lsm, vlog := c.db.Size()
	return map[string]interface{}{
		"entries":       c.Size(),
		"page_entries":  c.count([]byte(PrefixPage + ":")),
		"embed_entries": c.count([]byte(PrefixEmbed + ":")),
		"lsm_size":      lsm,
		"vlog_size":     vlog,
	}
}
