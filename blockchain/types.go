package blockchain

// Block is the unified in-memory representation of one on-chain block,
// as handed to the indexer by a BlockReader. Fields beyond the bare
// height/hash/transactions (previousHash, merkleRoot, version, bits,
// nonce, byte size, file position) are carried because the query
// engine's BlockByHash/TransactionProof/Blocks responses need them —
// the teacher's own indexer.Block dropped most of these since its
// FT/NFT product never serves a block-explorer API.
type Block struct {
	Height            uint64
	Hash              string
	PreviousHash      string
	MerkleRoot        string
	Version           int32
	Time              int64
	Bits              uint32
	Nonce             uint32
	Size              int64
	FileName          string
	FilePosition      int64
	Transactions      []*Transaction
}

// Transaction is one on-chain transaction.
type Transaction struct {
	ID       string
	Version  int32
	LockTime uint32
	Size     int // serialized byte size
	Inputs   []*Input
	Outputs  []*Output
	RawHex   string // populated lazily by callers that need raw bytes
}

// Input references the output it spends. Coinbase inputs have an empty
// PrevTxID.
type Input struct {
	PrevTxID    string
	PrevOutIndex uint64
	Sequence    uint32
	ScriptSig   []byte
}

// Output is one transaction output.
type Output struct {
	Value        int64 // satoshis
	ScriptPubKey []byte
}
