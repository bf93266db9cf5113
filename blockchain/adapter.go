package blockchain

import "github.com/btcsuite/btcd/chaincfg"

// Node is the full surface the indexer's sync loop needs from a chain
// connection: lifecycle, height/hash lookups, block/transaction fetch,
// mempool listing and reorg detection. Client (adapter_btc.go) is the
// only implementation wired up; the interface exists so the sync loop
// and tests can depend on a seam instead of the concrete RPC client.
type Node interface {
	Connect() error
	Shutdown()
	GetChainParams() *chaincfg.Params

	GetBlockCount() (int64, error)
	GetBlockHash(height int64) (string, error)
	ReadBlock(fileName string, offset int64, height uint64, headerOnly bool) (*Block, error)
	GetTransaction(txid string) (*Transaction, error)
	GetRawMempool() ([]string, error)

	FindReorgHeight() (int64, int64)
}

// GetChainParams implements Node.
func (c *Client) GetChainParams() *chaincfg.Params { return c.params }

// BlockHeader is the subset of header fields the query engine needs for
// block-by-hash and transaction-proof responses.
type BlockHeader struct {
	Hash              string
	Height            uint64
	PreviousBlockHash string
	Time              int64
	Bits              uint32
	Nonce             uint32
	Version           int32
	MerkleRoot        string
}
