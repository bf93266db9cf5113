// Package mempool mirrors the node's unconfirmed transaction pool in
// memory, so the query engine can answer address-balance and
// outpoint-spend questions for transactions that haven't been mined
// yet. It is fed by a ZMQ "rawtx" subscription (zmq.go) and is the
// concrete implementation of the indexer.MempoolMonitor interface.
package mempool

import (
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/metaid/utxo_indexer/blockchain"
	"github.com/metaid/utxo_indexer/indexer"
)

var _ indexer.MempoolMonitor = (*Monitor)(nil)

// txo is one unconfirmed output, keyed by address.
type txo struct {
	TxID   string
	Vout   uint64
	Value  int64
	Script []byte
}

// Monitor holds the full unconfirmed-transaction state the query engine
// needs. All maps are guarded by mu; entries are removed once
// TransactionIndexed reports the transaction has been mined.
type Monitor struct {
	solver blockchain.ScriptSolver

	mu        sync.RWMutex
	txs       map[string]*blockchain.Transaction // txid -> tx
	byAddress map[string][]txo                   // address -> unconfirmed outputs
	spentBy   map[uint64]string                  // hash(prevTxid:vout) -> spending txid
}

// New creates an empty mempool monitor. solver resolves addresses from
// scriptPubKeys the same way the block indexer does, so mempool and
// confirmed views stay consistent.
func New(solver blockchain.ScriptSolver) *Monitor {
	return &Monitor{
		solver:    solver,
		txs:       make(map[string]*blockchain.Transaction),
		byAddress: make(map[string][]txo),
		spentBy:   make(map[uint64]string),
	}
}

// outpointKey hashes a prevTxid:vout pair into a cheap map key — the
// same "hash the lookup string" role xxhash plays for store sharding
// in the teacher project, just on this in-process index instead.
func outpointKey(txid string, vout uint64) uint64 {
	return xxhash.Sum64String(txid + ":" + strconv.FormatUint(vout, 10))
}

// Ingest records a newly-seen unconfirmed transaction: its outputs
// become candidate mempool UTXOs per address, its inputs mark the
// outpoints they spend.
func (m *Monitor) Ingest(tx *blockchain.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, seen := m.txs[tx.ID]; seen {
		return
	}
	m.txs[tx.ID] = tx

	for i, out := range tx.Outputs {
		addrs, err := m.solver.AddressesFromScript(out.ScriptPubKey)
		if err != nil || len(addrs) == 0 {
			continue
		}
		for _, addr := range addrs {
			m.byAddress[addr] = append(m.byAddress[addr], txo{
				TxID: tx.ID, Vout: uint64(i), Value: out.Value, Script: out.ScriptPubKey,
			})
		}
	}

	for _, in := range tx.Inputs {
		if in.PrevTxID == "" {
			continue // coinbase
		}
		m.spentBy[outpointKey(in.PrevTxID, in.PrevOutIndex)] = tx.ID
	}
}

// TxIds implements indexer.MempoolMonitor.
func (m *Monitor) TxIds() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.txs))
	for id := range m.txs {
		ids = append(ids, id)
	}
	return ids
}

// TxosForAddress implements indexer.MempoolMonitor, returning the
// unconfirmed outputs paying address.
func (m *Monitor) TxosForAddress(address string) []indexer.MempoolTxo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := m.byAddress[address]
	out := make([]indexer.MempoolTxo, 0, len(rows))
	for _, r := range rows {
		out = append(out, indexer.MempoolTxo{TxID: r.TxID, Vout: r.Vout, Value: r.Value})
	}
	return out
}

// OutpointSpend implements indexer.MempoolMonitor: reports the
// unconfirmed transaction (if any) spending prevTxid:vout.
func (m *Monitor) OutpointSpend(prevTxid string, vout uint64) (spenderTxid string, found bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	spenderTxid, found = m.spentBy[outpointKey(prevTxid, vout)]
	return
}

// TransactionIndexed implements indexer.MempoolMonitor: once a
// transaction is confirmed in a block, its mempool bookkeeping is
// dropped so it doesn't double-count against the confirmed view.
func (m *Monitor) TransactionIndexed(txid string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.txs[txid]
	if !ok {
		return
	}
	delete(m.txs, txid)

	for i, out := range tx.Outputs {
		addrs, err := m.solver.AddressesFromScript(out.ScriptPubKey)
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			rows := m.byAddress[addr]
			for j, r := range rows {
				if r.TxID == txid && r.Vout == uint64(i) {
					m.byAddress[addr] = append(rows[:j], rows[j+1:]...)
					break
				}
			}
			if len(m.byAddress[addr]) == 0 {
				delete(m.byAddress, addr)
			}
		}
	}

	for _, in := range tx.Inputs {
		if in.PrevTxID == "" {
			continue
		}
		delete(m.spentBy, outpointKey(in.PrevTxID, in.PrevOutIndex))
	}
}

// Size reports how many unconfirmed transactions are currently tracked.
func (m *Monitor) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.txs)
}
