package storage

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/cockroachdb/pebble"
)

// MetaStore is a small separate pebble instance holding process
// metadata that is not part of the indexed keyspace proper: the tip
// height (highestblock) is the only key the indexer writes here. Kept
// separate from the main Store so a full reindex or
// restore of the primary keyspace never has to reason about metadata
// rows mixed into block-data scans.
type MetaStore struct {
	db *pebble.DB
}

// NewMetaStore opens (or creates) the meta store under dataDir/meta.
func NewMetaStore(dataDir string) (*MetaStore, error) {
	dir := filepath.Join(dataDir, "meta")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := pebble.Open(dir, &pebble.Options{Logger: noopLogger{}})
	if err != nil {
		return nil, err
	}
	return &MetaStore{db: db}, nil
}

func (m *MetaStore) Get(key []byte) ([]byte, error) {
	v, closer, err := m.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	out := append([]byte(nil), v...)
	_ = closer.Close()
	return out, nil
}

func (m *MetaStore) Set(key, value []byte) error {
	return m.db.Set(key, value, pebble.Sync)
}

func (m *MetaStore) Delete(key []byte) error {
	return m.db.Delete(key, pebble.Sync)
}

func (m *MetaStore) Sync() error {
	return m.db.Flush()
}

func (m *MetaStore) Close() error {
	return m.db.Close()
}
