package indexer

// MempoolTxo is one unconfirmed output surfaced to the query engine —
// a thin projection of blockchain.Output, shaped for the address-balance
// and address-UTXO-listing responses.
type MempoolTxo struct {
	TxID  string
	Vout  uint64
	Value int64
}

// MempoolMonitor is the unconfirmed-transaction view the block indexer
// and query engine depend on. mempool.Monitor is the only
// implementation; the interface lets the indexer notify mempool state
// without importing the mempool package directly.
type MempoolMonitor interface {
	// TxIds returns the ids of all transactions currently held
	// unconfirmed.
	TxIds() []string

	// TxosForAddress returns the unconfirmed outputs paying address.
	TxosForAddress(address string) []MempoolTxo

	// OutpointSpend reports the unconfirmed transaction, if any,
	// spending prevTxid:vout.
	OutpointSpend(prevTxid string, vout uint64) (spenderTxid string, found bool)

	// TransactionIndexed tells the monitor that txid has just been
	// confirmed in a block, so its mempool bookkeeping can be dropped.
	TransactionIndexed(txid string)
}
