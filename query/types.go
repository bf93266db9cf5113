// Package query implements the indexer's read paths: every lookup the
// HTTP API exposes, resolving secondary-index rows from storage.Store,
// falling back to the mempool monitor for unconfirmed activity, and to
// the remote node for raw transaction bytes. Nothing here mutates the
// keyspace — mutation is BlockIndexer's job.
package query

// AddressBalance is the response to GET /addressBalance/{address}.
type AddressBalance struct {
	Balance            int64 `json:"balance"`
	TxCount            int   `json:"txCount"`
	UnconfirmedBalance int64 `json:"unconfirmedBalance"`
	UnconfirmedTxCount int   `json:"unconfirmedTxCount"`
}

// AddressTxo is one row of the GET /addressTxos/{address} response. Which
// fields are populated depends on the raw/script/txHashOnly query
// parameters the caller passed — see Engine.AddressTxos.
type AddressTxo struct {
	Height  int64   `json:"height,omitempty"`
	Time    int64   `json:"time,omitempty"`
	Block   int64   `json:"block"`
	TxHash  string  `json:"txhash,omitempty"`
	Vout    uint64  `json:"vout,omitempty"`
	Value   int64   `json:"value,omitempty"`
	Spender *string `json:"spender,omitempty"`
	Tx      string  `json:"tx,omitempty"`
	Script  string  `json:"script,omitempty"`
}

// AddressTxoOptions controls which optional fields Engine.AddressTxos
// populates and which rows it includes, mirroring the original's
// raw/script/unspent/unconfirmed/txHashOnly query parameters.
type AddressTxoOptions struct {
	SinceBlock  int64
	Unspent     bool
	Unconfirmed bool
	Raw         bool
	Script      bool
	TxHashOnly  bool
}

// OutpointSpendResult is the response to GET /outpointSpend/{txid}/{vout}
// and one element of the POST /outpointSpends batch response.
type OutpointSpendResult struct {
	TxID             string `json:"txid,omitempty"`
	Vout             uint64 `json:"vout,omitempty"`
	Error            bool   `json:"error"`
	ErrorDescription string `json:"errorDescription,omitempty"`
	Spent            bool   `json:"spent"`
	Spender          string `json:"spender,omitempty"`
	SpenderRaw       string `json:"spenderRaw,omitempty"`
	Height           int64  `json:"height,omitempty"`
}

// Block is the response to GET /block/{hash}.
type Block struct {
	Hash              string   `json:"hash"`
	PreviousBlockHash string   `json:"previousBlockHash"`
	MerkleRoot        string   `json:"merkleRoot"`
	Version           int32    `json:"version"`
	Time              int64    `json:"time"`
	Bits              uint32   `json:"bits"`
	Nonce             uint32   `json:"nonce"`
	Height            uint64   `json:"height"`
	Confirmations     int64    `json:"confirmations"`
	Size              int64    `json:"size"`
	Tx                []string `json:"tx"`
	IsMainChain       bool     `json:"ismainchain"`
}

// BlockSummary is one element of the GET /blocks and GET /blocksbydate
// listings.
type BlockSummary struct {
	Hash     string `json:"hash"`
	Height   uint64 `json:"height"`
	Size     int64  `json:"size"`
	Time     int64  `json:"time"`
	TxLength int64  `json:"txlength"`
	PoolInfo any    `json:"poolInfo"`
}

// BlockTransactionsPage is the response to GET /blocktxs/{hash}/{page}.
type BlockTransactionsPage struct {
	PagesTotal int                  `json:"pagesTotal"`
	Txs        []BlockTransactionTx `json:"txs"`
}

// BlockTransactionTx is one transaction rendered in a BlockTransactionsPage.
type BlockTransactionTx struct {
	TxID          string   `json:"txid"`
	Version       int32    `json:"version"`
	LockTime      uint32   `json:"locktime"`
	Size          int      `json:"size"`
	Confirmations int64    `json:"confirmations"`
	BlockHash     string   `json:"blockhash"`
	BlockHeight   uint64   `json:"blockheight"`
	IsCoinBase    bool     `json:"isCoinBase"`
	Vin           []Vin    `json:"vin"`
	Vout          []Vout   `json:"vout"`
}

// Vin is one rendered transaction input.
type Vin struct {
	Sequence  uint32 `json:"sequence"`
	N         int    `json:"n"`
	TxID      string `json:"txid"`
	Vout      uint64 `json:"vout"`
	ScriptSig struct {
		Hex string `json:"hex"`
	} `json:"scriptSig"`
	Addr     string `json:"addr"`
	ValueSat int64  `json:"valueSat"`
}

// Vout is one rendered transaction output.
type Vout struct {
	ScriptPubKey struct {
		Hex       string   `json:"hex"`
		Addresses []string `json:"addresses"`
		Type      string   `json:"type"`
	} `json:"scriptPubKey"`
	ValueSat    int64  `json:"valueSat"`
	SpentTxID   string `json:"spentTxId,omitempty"`
	SpentIndex  int64  `json:"spentIndex,omitempty"`
	SpentHeight int64  `json:"spentHeight,omitempty"`
}

// TransactionProof is the response to GET /getTransactionProof/{id}.
type TransactionProof struct {
	TxHash      string          `json:"txHash"`
	BlockHash   string          `json:"blockHash"`
	BlockHeight uint64          `json:"blockHeight"`
	Chain       []BlockHeaderJS `json:"chain"`
}

// BlockHeaderJS is one header rendered within a TransactionProof's chain.
type BlockHeaderJS struct {
	BlockHash         string `json:"blockHash"`
	PreviousBlockHash string `json:"previousBlockHash"`
	MerkleRoot        string `json:"merkleRoot"`
	Version           int32  `json:"version"`
	Time              int64  `json:"time"`
	Bits              uint32 `json:"bits"`
	Nonce             uint32 `json:"nonce"`
	Height            uint64 `json:"height"`
}

// SyncStatus is the response to GET /sync.
type SyncStatus struct {
	Error            string  `json:"error,omitempty"`
	Height           int64   `json:"height"`
	BlockChainHeight int64   `json:"blockChainHeight"`
	SyncPercentage   float64 `json:"syncPercentage"`
	Status           string  `json:"status"`
}
