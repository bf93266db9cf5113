package indexer

import (
	"fmt"
	"sync"

	"github.com/metaid/utxo_indexer/keyspace"
	"github.com/metaid/utxo_indexer/storage"
)

// OrdinalCache hands out the next ordinal for a given row-prefix
// (an address's "-txo-" rows, a block's "-txo-"/"-txospent-" pointer
// rows, an output's "-address-" rows). It is seeded lazily, once per
// prefix, by counting the existing rows in [prefix-00000001,
// prefix-99999999]; after that a plain in-memory counter answers every
// further Next() call for that prefix. The cache is process-local and
// is never written to the store — on restart it reseeds from a scan,
// exactly as the original indexer's nextTxoIndex map does.
type OrdinalCache struct {
	store *storage.Store

	mu      sync.Mutex
	counts  map[string]uint64
}

// NewOrdinalCache creates an empty cache over store.
func NewOrdinalCache(store *storage.Store) *OrdinalCache {
	return &OrdinalCache{store: store, counts: make(map[string]uint64)}
}

// Next returns the next free ordinal for prefix, seeding the cache from
// a bounded range scan on first use.
func (c *OrdinalCache) Next(prefix string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.counts[prefix]
	if !ok {
		seeded, err := c.seed(prefix)
		if err != nil {
			return 0, fmt.Errorf("seed ordinal cache for %q: %w", prefix, err)
		}
		n = seeded
	}
	n++
	c.counts[prefix] = n
	return n, nil
}

// seed counts existing rows under prefix by scanning the bounded
// ordinal range, exactly as the original indexer's getNextTxoIndex does.
func (c *OrdinalCache) seed(prefix string) (uint64, error) {
	start, end := keyspace.PrefixRange(prefix)
	iter, err := c.store.NewIter([]byte(start), []byte(end))
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	var count uint64
	for iter.First(); iter.Valid(); iter.Next() {
		count++
	}
	return count, nil
}

// Forget drops the cached counter for prefix, forcing the next Next()
// call to reseed from a scan. Used after reorg cleanup deletes rows out
// from under a cached counter.
func (c *OrdinalCache) Forget(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counts, prefix)
}
