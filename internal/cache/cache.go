// Package cache implements the bounded fingerprint-keyed result cache
// from spec.md §4.7: LRU eviction with an independent TTL, single-flight
// deduplication of concurrent builds for the same fingerprint, and bulk
// invalidation when the dataset reloads. Sized eviction and TTL sweeping
// are delegated to hashicorp/golang-lru/v2/expirable rather than
// reimplemented by hand the way the teacher's PositionCache
// (internal/store/cache.go) shards and evicts FIFO — that hand-rolled
// shape is kept and adapted for the session ring buffer in
// internal/broadcast instead, where no off-the-shelf structure fits.
package cache

import (
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/ironinsights/iron-insights/internal/vector"
)

// Entry is a cached, already-encoded response and the scalar metadata
// that travels alongside it (spec.md §3 "Response payload"). The scalar
// fields are cached separately from Encoded because they are not part
// of the fixed columnar IPC schema (spec.md §4.8) and would otherwise be
// lost on decode.
type Entry struct {
	Encoded            []byte
	UserPercentileRaw  *float64
	UserPercentileDots *float64
	UserLiftSplit      *vector.UserLiftSplit
	RecordCount        int
	ProcessingTime     time.Duration
}

// Cache is the fingerprint-to-Entry mapping described in spec.md §4.7.
type Cache struct {
	lru   *lru.LRU[uint64, Entry]
	flght singleflight.Group

	mu          sync.RWMutex
	datasetFp   uint64
	initialized atomic.Bool

	hits   atomic.Uint64
	misses atomic.Uint64
}

// New builds a Cache bounded to capacity entries, each expiring ttl
// after insertion.
func New(capacity uint64, ttl time.Duration) *Cache {
	return &Cache{
		lru: lru.NewLRU[uint64, Entry](int(capacity), nil, ttl),
	}
}

// Get returns the cached entry for fingerprint, if present and unexpired.
func (c *Cache) Get(fingerprint uint64) (Entry, bool) {
	e, ok := c.lru.Get(fingerprint)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return e, ok
}

// GetOrBuild returns the cached entry for fingerprint, or invokes build
// exactly once across all concurrent callers sharing that fingerprint
// (spec.md §4.7 "single-flight... concurrent callers observe the same
// result and processing-time value"). The returned bool reports whether
// the entry came from cache.
func (c *Cache) GetOrBuild(fingerprint uint64, build func() (Entry, error)) (Entry, bool, error) {
	if e, ok := c.Get(fingerprint); ok {
		return e, true, nil
	}

	key := keyString(fingerprint)
	v, err, shared := c.flght.Do(key, func() (any, error) {
		if e, ok := c.Get(fingerprint); ok {
			return e, nil
		}
		e, err := build()
		if err != nil {
			return Entry{}, err
		}
		c.lru.Add(fingerprint, e)
		return e, nil
	})
	if err != nil {
		return Entry{}, false, err
	}
	_ = shared
	return v.(Entry), false, nil
}

// SetDatasetFingerprint records the dataset generation this cache's
// entries were built against, clearing the cache when it changes
// (spec.md §4.7 "a change in dataset fingerprint clears the cache
// atomically").
func (c *Cache) SetDatasetFingerprint(fp uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized.Load() && fp == c.datasetFp {
		return
	}
	c.datasetFp = fp
	c.initialized.Store(true)
	c.lru.Purge()
}

// DatasetFingerprint returns the dataset generation currently reflected
// by cache entries.
func (c *Cache) DatasetFingerprint() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.datasetFp
}

// Stats reports cumulative hit/miss counters and the current entry count.
func (c *Cache) Stats() (hits, misses uint64, size int) {
	return c.hits.Load(), c.misses.Load(), c.lru.Len()
}

func keyString(fp uint64) string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		buf[i] = hexDigits[fp&0xF]
		fp >>= 4
	}
	return string(buf)
}
