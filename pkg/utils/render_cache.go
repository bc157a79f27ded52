package utils

import (
	"bytes"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/jellydator/ttlcache/v3"
)

// frontCapacity bounds the in-memory copies kept in front of badger.
const frontCapacity = 512

// RenderCache stores rendered chart documents keyed by a canonical request
// key. Renders are pure functions of their key, so a value never goes stale
// while its namespace (dataset and chart options) is current. Recently used
// values are also held in a small in-memory cache that honours the same TTL.
type RenderCache struct {
	db    *badger.DB
	ttl   time.Duration
	front *ttlcache.Cache[string, []byte]
}

// OpenRenderCache opens a badger-backed cache at path. An empty path keeps
// everything in memory. A zero ttl keeps entries until pruned.
func OpenRenderCache(path string, ttl time.Duration) (*RenderCache, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	// Decrease logging verbosity
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	front := ttlcache.New(
		ttlcache.WithTTL[string, []byte](ttl),
		ttlcache.WithCapacity[string, []byte](frontCapacity),
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)
	return &RenderCache{db: db, ttl: ttl, front: front}, nil
}

func (c *RenderCache) Close() error {
	c.front.DeleteAll()
	return c.db.Close()
}

// Get returns the cached value for key, or nil on a miss.
func (c *RenderCache) Get(key string) ([]byte, error) {
	if item := c.front.Get(key); item != nil {
		return item.Value(), nil
	}
	var (
		val       []byte
		expiresAt uint64
	)
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		expiresAt = item.ExpiresAt()
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ttl := ttlcache.DefaultTTL
	if expiresAt > 0 {
		ttl = time.Until(time.Unix(int64(expiresAt), 0))
		if ttl <= 0 {
			return val, nil
		}
	}
	c.front.Set(key, val, ttl)
	return val, nil
}

func (c *RenderCache) Put(key string, value []byte) error {
	ttl := ttlcache.NoTTL
	err := c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if c.ttl > 0 {
			e = e.WithTTL(c.ttl)
			// badger keeps whole seconds.
			ttl = time.Until(time.Unix(int64(e.ExpiresAt), 0))
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return err
	}
	if c.ttl <= 0 || ttl > 0 {
		c.front.Set(key, value, ttl)
	}
	return nil
}

// GetOrRender returns the cached value for key or stores the result of render.
// hit reports whether the value came from the cache.
func (c *RenderCache) GetOrRender(key string, render func() ([]byte, error)) (val []byte, hit bool, err error) {
	val, err = c.Get(key)
	if err != nil {
		return nil, false, err
	}
	if val != nil {
		return val, true, nil
	}
	val, err = render()
	if err != nil {
		return nil, false, err
	}
	if err := c.Put(key, val); err != nil {
		return nil, false, err
	}
	return val, false, nil
}

// Prune deletes every key that does not start with keep and returns how many
// were removed. It drops renders of a previously loaded dataset.
func (c *RenderCache) Prune(keep string) (int, error) {
	var stale [][]byte
	err := c.ForEach(func(k, _ []byte) error {
		if !bytes.HasPrefix(k, []byte(keep)) {
			stale = append(stale, bytes.Clone(k))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	wb := c.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range stale {
		if err := wb.Delete(k); err != nil {
			return 0, err
		}
		c.front.Delete(string(k))
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	return len(stale), nil
}

func (c *RenderCache) ForEach(fn func(k []byte, v []byte) error) error {
	return c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			k := item.Key()
			err := item.Value(func(v []byte) error {
				return fn(k, v)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}
