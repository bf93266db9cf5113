package indexer

import (
	"testing"

	"github.com/metaid/utxo_indexer/blockchain"
	"github.com/metaid/utxo_indexer/keyspace"
)

// fakeSolver resolves a script to the address held directly in it as a
// string, so tests can build outputs without touching real script parsing.
type fakeSolver struct{}

func (fakeSolver) AddressesFromScript(script []byte) ([]string, error) {
	if len(script) == 0 {
		return nil, nil
	}
	return []string{string(script)}, nil
}
func (fakeSolver) IsMultisig(script []byte) bool            { return false }
func (fakeSolver) RequiredSignatures(script []byte) (int, error) { return 0, nil }
func (fakeSolver) ScriptTypeName(script []byte) string      { return "pubkeyhash" }

func newTestIndexer(t *testing.T) (*BlockIndexer, *OrdinalCache) {
	t.Helper()
	store := openTestStore(t)
	meta := openTestMetaStore(t)
	ordinals := NewOrdinalCache(store)
	bi := NewBlockIndexer(store, meta, ordinals, fakeSolver{}, nil, 0)
	return bi, ordinals
}

func makeBlock(height uint64, hash string, txid string, addr string, value int64) *blockchain.Block {
	return &blockchain.Block{
		Height: height,
		Hash:   hash,
		Time:   1600000000,
		Transactions: []*blockchain.Transaction{
			{
				ID: txid,
				Outputs: []*blockchain.Output{
					{Value: value, ScriptPubKey: []byte(addr)},
				},
			},
		},
	}
}

func TestIndexBlockWritesAddressTxoRow(t *testing.T) {
	bi, _ := newTestIndexer(t)
	block := makeBlock(1, "hash1", "tx1", "addrA", 5000)

	if err := bi.IndexBlock(block); err != nil {
		t.Fatalf("IndexBlock: %v", err)
	}

	got, err := bi.store.Get(keyspace.AddressTxo("addrA", 1))
	if err != nil {
		t.Fatalf("expected address-txo row to exist: %v", err)
	}
	if len(got) == 0 {
		t.Errorf("address-txo row value is empty")
	}
}

func TestIndexBlockReplayIsIdempotent(t *testing.T) {
	bi, _ := newTestIndexer(t)
	block := makeBlock(1, "hash1", "tx1", "addrA", 5000)

	if err := bi.IndexBlock(block); err != nil {
		t.Fatalf("IndexBlock (first): %v", err)
	}
	if err := bi.IndexBlock(block); err != nil {
		t.Fatalf("IndexBlock (replay): %v", err)
	}

	// A replay must not produce a second address-txo ordinal row.
	if _, err := bi.store.Get(keyspace.AddressTxo("addrA", 2)); err == nil {
		t.Errorf("replay of the same block produced a duplicate address-txo row")
	}
}

func TestIndexBlockDisplacedHashTriggersCleanup(t *testing.T) {
	bi, _ := newTestIndexer(t)
	first := makeBlock(1, "hashOld", "tx1", "addrA", 5000)
	if err := bi.IndexBlock(first); err != nil {
		t.Fatalf("IndexBlock (first): %v", err)
	}

	second := makeBlock(1, "hashNew", "tx2", "addrB", 7000)
	if err := bi.IndexBlock(second); err != nil {
		t.Fatalf("IndexBlock (displacing): %v", err)
	}

	storedHash, err := bi.store.Get(keyspace.Block(1))
	if err != nil || string(storedHash) != "hashNew" {
		t.Errorf("Block(1) = (%q, %v), want hashNew", storedHash, err)
	}
	// The old block's txo pointer rows should be gone after cleanup.
	start, end := keyspace.PrefixRange(keyspace.BlockTxoPrefix("hashOld"))
	iter, err := bi.store.NewIter([]byte(start), []byte(end))
	if err != nil {
		t.Fatalf("NewIter: %v", err)
	}
	defer iter.Close()
	if iter.First(); iter.Valid() {
		t.Errorf("displaced block hashOld still has txo pointer rows")
	}
}

func TestStageInputsWritesSpendMarkerForNonCoinbaseInput(t *testing.T) {
	bi, _ := newTestIndexer(t)
	block := &blockchain.Block{
		Height: 2,
		Hash:   "hash2",
		Transactions: []*blockchain.Transaction{
			{
				ID: "tx2",
				Inputs: []*blockchain.Input{
					{PrevTxID: "tx1", PrevOutIndex: 0},
				},
				Outputs: []*blockchain.Output{
					{Value: 1000, ScriptPubKey: []byte("addrC")},
				},
			},
		},
	}
	if err := bi.IndexBlock(block); err != nil {
		t.Fatalf("IndexBlock: %v", err)
	}

	got, err := bi.store.Get(keyspace.OutpointSpent("tx1", 0))
	if err != nil {
		t.Fatalf("expected spend marker for tx1:0: %v", err)
	}
	if len(got) == 0 {
		t.Errorf("spend marker value is empty")
	}
}

func TestCoinbaseInputWritesNoSpendMarker(t *testing.T) {
	bi, _ := newTestIndexer(t)
	block := &blockchain.Block{
		Height: 0,
		Hash:   "hash0",
		Transactions: []*blockchain.Transaction{
			{
				ID: "coinbaseTx",
				Inputs: []*blockchain.Input{
					{PrevTxID: ""},
				},
				Outputs: []*blockchain.Output{
					{Value: 5000000000, ScriptPubKey: []byte("minerAddr")},
				},
			},
		},
	}
	if err := bi.IndexBlock(block); err != nil {
		t.Fatalf("IndexBlock: %v", err)
	}
	if _, err := bi.store.Get(keyspace.OutpointSpent("", 0)); err == nil {
		t.Errorf("coinbase input should not produce a spend marker")
	}
}

func TestMultipleOutputsGetSequentialOrdinals(t *testing.T) {
	bi, _ := newTestIndexer(t)
	block := &blockchain.Block{
		Height: 1,
		Hash:   "hash1",
		Transactions: []*blockchain.Transaction{
			{
				ID: "tx1",
				Outputs: []*blockchain.Output{
					{Value: 100, ScriptPubKey: []byte("addrA")},
					{Value: 200, ScriptPubKey: []byte("addrA")},
				},
			},
		},
	}
	if err := bi.IndexBlock(block); err != nil {
		t.Fatalf("IndexBlock: %v", err)
	}
	for _, ord := range []uint64{1, 2} {
		if _, err := bi.store.Get(keyspace.AddressTxo("addrA", ord)); err != nil {
			t.Errorf("expected address-txo ordinal %d for addrA: %v", ord, err)
		}
	}
}
