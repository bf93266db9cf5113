package indexer

import (
	"testing"

	"github.com/metaid/utxo_indexer/keyspace"
	"github.com/metaid/utxo_indexer/storage"
)

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOrdinalCacheStartsAtOneOnEmptyPrefix(t *testing.T) {
	store := openTestStore(t)
	cache := NewOrdinalCache(store)

	n, err := cache.Next(keyspace.AddressTxoPrefix("addr1"))
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if n != 1 {
		t.Errorf("Next on empty prefix = %d, want 1", n)
	}
}

func TestOrdinalCacheSeedsFromExistingRows(t *testing.T) {
	store := openTestStore(t)
	prefix := keyspace.AddressTxoPrefix("addr1")
	if err := store.Set(keyspace.AddressTxo("addr1", 1), []byte("x")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(keyspace.AddressTxo("addr1", 2), []byte("x")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	cache := NewOrdinalCache(store)
	n, err := cache.Next(prefix)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if n != 3 {
		t.Errorf("Next after seeding with 2 existing rows = %d, want 3", n)
	}
}

func TestOrdinalCacheIncrementsWithoutRescanning(t *testing.T) {
	store := openTestStore(t)
	cache := NewOrdinalCache(store)
	prefix := keyspace.AddressTxoPrefix("addr1")

	first, err := cache.Next(prefix)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	second, err := cache.Next(prefix)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if second != first+1 {
		t.Errorf("second Next = %d, want %d", second, first+1)
	}
}

func TestOrdinalCacheForgetForcesReseed(t *testing.T) {
	store := openTestStore(t)
	prefix := keyspace.AddressTxoPrefix("addr1")
	cache := NewOrdinalCache(store)

	if _, err := cache.Next(prefix); err != nil {
		t.Fatalf("Next: %v", err)
	}
	cache.Forget(prefix)

	if err := store.Set(keyspace.AddressTxo("addr1", 1), []byte("x")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	n, err := cache.Next(prefix)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if n != 2 {
		t.Errorf("Next after Forget+reseed = %d, want 2", n)
	}
}

func TestOrdinalCacheTracksPrefixesIndependently(t *testing.T) {
	store := openTestStore(t)
	cache := NewOrdinalCache(store)

	a, err := cache.Next(keyspace.AddressTxoPrefix("addrA"))
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	b, err := cache.Next(keyspace.AddressTxoPrefix("addrB"))
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if a != 1 || b != 1 {
		t.Errorf("independent prefixes got (%d, %d), want (1, 1)", a, b)
	}
}
