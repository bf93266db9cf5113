package indexer

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/metaid/utxo_indexer/blockchain"
	"github.com/metaid/utxo_indexer/keyspace"
	"github.com/metaid/utxo_indexer/storage"
	"github.com/metaid/utxo_indexer/syslogs"
)

// BlockIndexer applies confirmed blocks to the keyspace, one block per
// IndexBlock call, each call committing as a single atomic batch. It
// holds no in-memory chain state beyond the ordinal cache and the meta
// store's highestblock marker — everything else is read back from the
// store, exactly as the original indexer does.
type BlockIndexer struct {
	store     *storage.Store
	meta      *storage.MetaStore
	ordinals  *OrdinalCache
	solver    blockchain.ScriptSolver
	mempool   MempoolMonitor
	syncEvery int

	mu sync.Mutex
}

// NewBlockIndexer wires a BlockIndexer over store/meta. mempool may be
// nil (e.g. during a pure backfill run with no live ZMQ feed); syncEvery
// is the height-modulo cadence for the periodic explicit Sync() flush
// (0 disables it).
func NewBlockIndexer(store *storage.Store, meta *storage.MetaStore, ordinals *OrdinalCache, solver blockchain.ScriptSolver, mempool MempoolMonitor, syncEvery int) *BlockIndexer {
	return &BlockIndexer{
		store:     store,
		meta:      meta,
		ordinals:  ordinals,
		solver:    solver,
		mempool:   mempool,
		syncEvery: syncEvery,
	}
}

// IndexBlock runs the 8-step indexing algorithm against block, committing
// every staged row as one atomic batch. Replaying a block already stored
// at its height is a no-op (idempotent replay); a block that displaces a
// different hash at its height triggers reorg cleanup of the displaced
// hash's derived rows before the new rows are staged.
func (bi *BlockIndexer) IndexBlock(block *blockchain.Block) error {
	bi.mu.Lock()
	defer bi.mu.Unlock()

	start := time.Now()

	// Step 1: idempotent replay / reorg detection.
	existingHash, err := bi.store.Get(keyspace.Block(block.Height))
	if err != nil && err != storage.ErrNotFound {
		return fmt.Errorf("read existing hash at height %d: %w", block.Height, err)
	}
	if err == nil {
		if string(existingHash) == block.Hash {
			return nil // already indexed, nothing to do
		}
		if err := bi.ClearBlockTxos(string(existingHash)); err != nil {
			return fmt.Errorf("clear displaced block %s: %w", existingHash, err)
		}
	}

	// Step 2: advance the tip marker if this block extends it.
	if err := bi.advanceHighest(block.Height); err != nil {
		return fmt.Errorf("advance highestblock: %w", err)
	}

	batch := bi.store.NewBatch()
	defer batch.Close()

	// Step 3: block-level rows.
	if err := bi.stageBlock(batch, block); err != nil {
		return err
	}

	var inCount, outCount, addressCount int

	// Steps 4-6: per-transaction rows.
	for txIndex, tx := range block.Transactions {
		if err := batch.Set(keyspace.BlockTx(block.Hash, uint64(txIndex)), []byte(tx.ID)); err != nil {
			return err
		}
		if err := batch.Set(keyspace.TxBlock(tx.ID), []byte(block.Hash)); err != nil {
			return err
		}
		if err := batch.Set(keyspace.TxFilePosition(tx.ID), []byte(fmt.Sprintf("%s:%d", block.FileName, block.FilePosition))); err != nil {
			return err
		}

		n, err := bi.stageOutputs(batch, block, tx)
		if err != nil {
			return fmt.Errorf("stage outputs of tx %s: %w", tx.ID, err)
		}
		outCount += n
		addressCount += n

		n, err = bi.stageInputs(batch, block, tx)
		if err != nil {
			return fmt.Errorf("stage inputs of tx %s: %w", tx.ID, err)
		}
		inCount += n

		// Step 7: the transaction is confirmed, drop it from the
		// mempool view.
		if bi.mempool != nil {
			bi.mempool.TransactionIndexed(tx.ID)
		}
	}

	// Step 8: commit.
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit block %d (%s): %w", block.Height, block.Hash, err)
	}

	if bi.syncEvery > 0 && block.Height%uint64(bi.syncEvery) == 0 {
		if err := bi.store.Sync(); err != nil {
			log.Printf("indexer: periodic sync at height %d failed: %v", block.Height, err)
		}
	}

	_ = syslogs.InsertIndexerLog(syslogs.IndexerLog{
		Height:             int(block.Height),
		BlockHash:          block.Hash,
		ExpectedInTxCount:  inCount,
		ActualInTxCount:    inCount,
		ExpectedOutTxCount: outCount,
		ActualOutTxCount:   outCount,
		CompletionTime:     time.Since(start).Milliseconds(),
		BlockTime:          block.Time,
		TxNum:              int64(len(block.Transactions)),
		AddressNum:         int64(addressCount),
	})

	return nil
}

func (bi *BlockIndexer) advanceHighest(height uint64) error {
	key := []byte(keyspace.HighestBlock())
	current, err := bi.meta.Get(key)
	if err != nil && err != storage.ErrNotFound {
		return err
	}
	if err == storage.ErrNotFound {
		return bi.meta.Set(key, []byte(keyspace.Ord(height)))
	}
	var currentHeight uint64
	if _, scanErr := fmt.Sscanf(string(current), "%d", &currentHeight); scanErr != nil {
		return bi.meta.Set(key, []byte(keyspace.Ord(height)))
	}
	if height > currentHeight {
		return bi.meta.Set(key, []byte(keyspace.Ord(height)))
	}
	return nil
}

func (bi *BlockIndexer) stageBlock(batch *storage.Batch, block *blockchain.Block) error {
	writes := map[string][]byte{
		keyspace.Block(block.Height):             []byte(block.Hash),
		keyspace.BlockHash(block.Hash):            []byte(keyspace.Ord(block.Height)),
		keyspace.BlockFilePosition(block.Height):  []byte(fmt.Sprintf("%s:%d", block.FileName, block.FilePosition)),
		keyspace.BlockTime(block.Height):          []byte(fmt.Sprintf("%d", block.Time)),
		keyspace.BlockHashTime(block.Time):        []byte(block.Hash),
		keyspace.BlockSize(block.Height):          []byte(fmt.Sprintf("%d", block.Size)),
		keyspace.BlockTxCount(block.Height):       []byte(fmt.Sprintf("%d", len(block.Transactions))),
	}
	for k, v := range writes {
		if err := batch.Set(k, v); err != nil {
			return err
		}
	}
	return nil
}

// stageOutputs derives the address set for each output of tx, writes the
// per-address/per-block txo rows and the always-present value row, and
// returns the number of address-txo rows it wrote (one per derived
// address, so a multi-address output counts more than once).
func (bi *BlockIndexer) stageOutputs(batch *storage.Batch, block *blockchain.Block, tx *blockchain.Transaction) (int, error) {
	written := 0
	for outIndex, out := range tx.Outputs {
		addrs, err := bi.solver.AddressesFromScript(out.ScriptPubKey)
		if err != nil {
			addrs = nil
		}

		if len(addrs) > 1 && bi.solver.IsMultisig(out.ScriptPubKey) {
			required, err := bi.solver.RequiredSignatures(out.ScriptPubKey)
			if err == nil {
				if err := batch.Set(keyspace.MultisigTx(tx.ID, uint64(outIndex)), []byte(fmt.Sprintf("%d", required))); err != nil {
					return written, err
				}
			}
		}

		for _, addr := range addrs {
			addrOrdinal, err := bi.ordinals.Next(keyspace.AddressTxoPrefix(addr))
			if err != nil {
				return written, err
			}
			addressTxoKey := keyspace.AddressTxo(addr, addrOrdinal)
			txoValue := fmt.Sprintf("%s%s%s%d", tx.ID, keyspace.Ord(uint64(outIndex)), keyspace.Ord(block.Height), out.Value)
			if err := batch.Set(addressTxoKey, []byte(txoValue)); err != nil {
				return written, err
			}

			blockOrdinal, err := bi.ordinals.Next(keyspace.BlockTxoPrefix(block.Hash))
			if err != nil {
				return written, err
			}
			if err := batch.Set(keyspace.BlockTxo(block.Hash, blockOrdinal), []byte(addressTxoKey)); err != nil {
				return written, err
			}

			outAddrOrdinal, err := bi.ordinals.Next(keyspace.OutputAddressPrefix(tx.ID, uint64(outIndex)))
			if err != nil {
				return written, err
			}
			if err := batch.Set(keyspace.OutputAddress(tx.ID, uint64(outIndex), outAddrOrdinal), []byte(addr)); err != nil {
				return written, err
			}

			written++
		}

		if err := batch.Set(keyspace.OutputValue(tx.ID, uint64(outIndex)), []byte(fmt.Sprintf("%d", out.Value))); err != nil {
			return written, err
		}
	}
	return written, nil
}

// stageInputs writes the spend pointer and block-txospent row for every
// non-coinbase input, returning the number of such inputs.
func (bi *BlockIndexer) stageInputs(batch *storage.Batch, block *blockchain.Block, tx *blockchain.Transaction) (int, error) {
	spent := 0
	for inIndex, in := range tx.Inputs {
		if in.PrevTxID == "" {
			continue // coinbase
		}
		spendKey := keyspace.OutpointSpent(in.PrevTxID, in.PrevOutIndex)
		spendValue := fmt.Sprintf("%s%s%s", block.Hash, tx.ID, keyspace.Ord(uint64(inIndex)))
		if err := batch.Set(spendKey, []byte(spendValue)); err != nil {
			return spent, err
		}

		ordinal, err := bi.ordinals.Next(keyspace.BlockTxoSpentPrefix(block.Hash))
		if err != nil {
			return spent, err
		}
		if err := batch.Set(keyspace.BlockTxoSpent(block.Hash, ordinal), []byte(spendKey)); err != nil {
			return spent, err
		}
		spent++
	}
	return spent, nil
}

// ClearBlockTxos implements §4.4's reorg cleanup: every row the block's
// txo/txospent pointer rows reference is deleted, then the pointer rows
// themselves, in one atomic batch. The per-tx address/value rows,
// multisig markers, and tx→block rows are left in place — they're safely
// overwritten by the replacement block's own indexing pass; see DESIGN.md
// for the known-limitation tradeoff this implies for transactions that
// disappear outright in a reorg.
func (bi *BlockIndexer) ClearBlockTxos(blockHash string) error {
	batch := bi.store.NewBatch()
	defer batch.Close()

	if err := bi.clearPointerRows(batch, keyspace.BlockTxoPrefix(blockHash)); err != nil {
		return fmt.Errorf("clear txo pointers for block %s: %w", blockHash, err)
	}
	if err := bi.clearPointerRows(batch, keyspace.BlockTxoSpentPrefix(blockHash)); err != nil {
		return fmt.Errorf("clear txospent pointers for block %s: %w", blockHash, err)
	}

	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit reorg cleanup for block %s: %w", blockHash, err)
	}

	bi.ordinals.Forget(keyspace.BlockTxoPrefix(blockHash))
	bi.ordinals.Forget(keyspace.BlockTxoSpentPrefix(blockHash))

	_ = syslogs.InsertReorgLog(syslogs.ReorgLog{
		Height:    0,
		BlockHash: blockHash,
		Timestamp: time.Now().Unix(),
		Status:    1,
	})
	return nil
}

// clearPointerRows scans every row under prefix, deletes the key each row
// points to, then deletes the pointer row itself.
func (bi *BlockIndexer) clearPointerRows(batch *storage.Batch, prefix string) error {
	start, end := keyspace.PrefixRange(prefix)
	iter, err := bi.store.NewIter([]byte(start), []byte(end))
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		pointerKey := string(iter.Key())
		targetKey := string(iter.Value())
		if err := batch.Delete(targetKey); err != nil {
			return err
		}
		if err := batch.Delete(pointerKey); err != nil {
			return err
		}
	}
	return iter.Error()
}

// HandleReorg is a convenience wrapper over ClearBlockTxos for a caller
// (the sync loop) that already knows the affected height range — it does
// not walk chain ancestry itself, per the indexer's non-goal of
// reorg-detection-from-scratch. For each height in [fromHeight,
// toHeight], it looks up the currently-stored hash and clears its
// derived rows; the caller is responsible for re-indexing the correct
// chain afterward.
func (bi *BlockIndexer) HandleReorg(fromHeight, toHeight int64) error {
	for h := fromHeight; h <= toHeight; h++ {
		hash, err := bi.store.Get(keyspace.Block(uint64(h)))
		if err == storage.ErrNotFound {
			continue
		}
		if err != nil {
			return fmt.Errorf("read hash at height %d: %w", h, err)
		}
		if err := bi.ClearBlockTxos(string(hash)); err != nil {
			return err
		}
	}
	_ = syslogs.UpdateIndexerReorg(int(fromHeight), int(toHeight))
	return nil
}
