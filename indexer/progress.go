package indexer

import (
	"fmt"

	"github.com/metaid/utxo_indexer/keyspace"
	"github.com/metaid/utxo_indexer/storage"
)

// Progress tracks the indexer's tip height in the meta store, under the
// plain "highestblock" key the original indexer uses on disk. It's a
// thin read/write seam over MetaStore so the sync loop and query
// engine's Sync() read path share one place that knows how the key is
// encoded.
type Progress struct {
	meta *storage.MetaStore
}

// NewProgress wraps meta.
func NewProgress(meta *storage.MetaStore) *Progress {
	return &Progress{meta: meta}
}

// Height returns the current tip height. ok is false on cold start, when
// no block has been indexed yet.
func (p *Progress) Height() (height uint64, ok bool) {
	v, err := p.meta.Get([]byte(keyspace.HighestBlock()))
	if err != nil {
		return 0, false
	}
	if _, scanErr := fmt.Sscanf(string(v), "%d", &height); scanErr != nil {
		return 0, false
	}
	return height, true
}

// Advance conditionally raises the tip height: it is a no-op if height
// does not exceed the currently recorded one, matching the block
// indexer's own monotone-update rule in step 2 of IndexBlock.
func (p *Progress) Advance(height uint64) error {
	current, ok := p.Height()
	if ok && height <= current {
		return nil
	}
	return p.meta.Set([]byte(keyspace.HighestBlock()), []byte(keyspace.Ord(height)))
}
