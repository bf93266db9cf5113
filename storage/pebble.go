// Package storage wraps a single cockroachdb/pebble instance as the
// ordered key-value store spec'd for this indexer: one logical keyspace,
// lexical prefix scans standing in for range queries, and atomic batch
// writes for the single-writer ingestion path.
//
// This is a deliberate simplification of the multi-shard, multi-store
// design the teacher project uses for its FT/NFT product lines (one
// pebble.DB per shard per token type) — this indexer has exactly one
// kind of row, so sharding only adds iterator-merging complexity for no
// benefit. See DESIGN.md for the reasoning.
package storage

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/cockroachdb/pebble"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("not found")

// noopLogger silences pebble's internal logging; we log ingestion events
// ourselves at a coarser grain (see indexer and syslogs packages).
type noopLogger struct{}

func (noopLogger) Infof(string, ...interface{})  {}
func (noopLogger) Errorf(string, ...interface{}) {}
func (noopLogger) Fatalf(format string, args ...interface{}) {
	log.Fatalf(format, args...)
}

// DefaultOptions mirrors the tuning the teacher project uses for its
// pebble instances: a large enough memtable to absorb a batch of a full
// block's rows, a modest block cache, and a raised L0 compaction
// threshold so ingestion bursts don't stall on compaction.
func DefaultOptions() *pebble.Options {
	return &pebble.Options{
		Logger:                      noopLogger{},
		MemTableSize:                128 << 20,
		MemTableStopWritesThreshold: 6,
		Cache:                       pebble.NewCache(64 << 20),
		L0CompactionThreshold:       10,
		L0StopWritesThreshold:       32,
		MaxConcurrentCompactions:    func() int { return 4 },
		MaxOpenFiles:                10000,
	}
}

// Store is the single ordered key-value store the whole indexer shares.
type Store struct {
	db *pebble.DB
}

// Open creates or reopens the pebble store rooted at dataDir.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := pebble.Open(dataDir, DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("open pebble store at %s: %w", dataDir, err)
	}
	return &Store{db: db}, nil
}

// Close flushes and closes the underlying pebble database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Sync flushes the memtable to on-disk tables; periodic sync is an ingestion durability
// optimization, not a correctness requirement, since pebble's WAL
// already guarantees crash recovery of committed batches.
func (s *Store) Sync() error {
	return s.db.Flush()
}

// Get reads a single value. Returns ErrNotFound if the key is absent.
func (s *Store) Get(key string) ([]byte, error) {
	v, closer, err := s.db.Get([]byte(key))
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

// Has reports whether key exists.
func (s *Store) Has(key string) (bool, error) {
	_, err := s.Get(key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

// Set writes a single key/value pair outside of a batch, synchronously.
func (s *Store) Set(key string, value []byte) error {
	return s.db.Set([]byte(key), value, pebble.Sync)
}

// Delete removes a single key outside of a batch.
func (s *Store) Delete(key string) error {
	return s.db.Delete([]byte(key), pebble.Sync)
}

// NewBatch starts an atomic write batch.
func (s *Store) NewBatch() *Batch {
	return &Batch{b: s.db.NewBatch()}
}

// NewIter opens a forward iterator bounded to [lower, upper).
func (s *Store) NewIter(lower, upper []byte) (*pebble.Iterator, error) {
	return s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
}

// Batch batches up writes for one atomic commit, mirroring the teacher's
// leveldb::WriteBatch / pebble Batch usage in the block indexer.
type Batch struct {
	b *pebble.Batch
}

func (t *Batch) Set(key string, value []byte) error {
	return t.b.Set([]byte(key), value, nil)
}

func (t *Batch) Delete(key string) error {
	return t.b.Delete([]byte(key), nil)
}

// Commit applies every staged write atomically and durably.
func (t *Batch) Commit() error {
	return t.b.Commit(pebble.Sync)
}

// Close releases batch resources without committing.
func (t *Batch) Close() error {
	return t.b.Close()
}
