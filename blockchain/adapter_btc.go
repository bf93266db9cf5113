package blockchain

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/metaid/utxo_indexer/config"
)

// Client wraps a single btcd/bitcoind-compatible RPC connection and
// implements BlockReader, ScriptSolver and RemoteNode against it. One
// Client is shared by the indexer (block/transaction fetch), the query
// engine (raw transaction passthrough, send), and reorg detection.
type Client struct {
	rpcClient *rpcclient.Client
	params    *chaincfg.Params
}

// NewClient dials the node described by cfg.RPC.
func NewClient(cfg *config.Config) (*Client, error) {
	connCfg := &rpcclient.ConnConfig{
		Host:         fmt.Sprintf("%s:%s", cfg.RPC.Host, cfg.RPC.Port),
		User:         cfg.RPC.User,
		Pass:         cfg.RPC.Password,
		HTTPPostMode: true,
		DisableTLS:   true,
	}
	client, err := rpcclient.New(connCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("create RPC client: %w", err)
	}
	params, err := cfg.GetChainParams()
	if err != nil {
		return nil, err
	}
	return &Client{rpcClient: client, params: params}, nil
}

// Connect verifies the RPC connection is reachable.
func (c *Client) Connect() error {
	if _, err := c.rpcClient.GetBlockCount(); err != nil {
		return fmt.Errorf("failed to connect to node: %w", err)
	}
	log.Printf("connected to RPC node")
	return nil
}

// Shutdown releases the RPC client.
func (c *Client) Shutdown() {
	c.rpcClient.Shutdown()
}

// GetBlockCount returns the remote node's best height.
func (c *Client) GetBlockCount() (int64, error) {
	h, err := c.rpcClient.GetBlockCount()
	if err != nil {
		return 0, fmt.Errorf("get block count: %w", err)
	}
	return h, nil
}

// GetBlockHash resolves the hash at height.
func (c *Client) GetBlockHash(height int64) (string, error) {
	hash, err := c.rpcClient.GetBlockHash(height)
	if err != nil {
		return "", fmt.Errorf("get block hash at height %d: %w", height, err)
	}
	return hash.String(), nil
}

// ReadBlock implements BlockReader by fetching and parsing a full block
// by height over RPC. fileName/offset are accepted for interface
// compatibility with a disk-backed reader but unused here — see
// DESIGN.md for why this indexer fetches live rather than parsing
// archived block files directly.
func (c *Client) ReadBlock(fileName string, offset int64, height uint64, headerOnly bool) (*Block, error) {
	hashStr, err := c.GetBlockHash(int64(height))
	if err != nil {
		return nil, err
	}
	hash, err := chainhash.NewHashFromStr(hashStr)
	if err != nil {
		return nil, err
	}

	if headerOnly {
		hdr, err := c.rpcClient.GetBlockHeader(hash)
		if err != nil {
			return nil, fmt.Errorf("get block header: %w", err)
		}
		return &Block{
			Height:       height,
			Hash:         hashStr,
			PreviousHash: hdr.PrevBlock.String(),
			MerkleRoot:   hdr.MerkleRoot.String(),
			Version:      hdr.Version,
			Time:         hdr.Timestamp.Unix(),
			Bits:         hdr.Bits,
			Nonce:        hdr.Nonce,
		}, nil
	}

	resp, err := c.rpcClient.RawRequest("getblock", []json.RawMessage{
		json.RawMessage(fmt.Sprintf("%q", hash.String())),
		json.RawMessage("0"),
	})
	if err != nil {
		return nil, fmt.Errorf("get raw block: %w", err)
	}
	var blockHex string
	if err := json.Unmarshal(resp, &blockHex); err != nil {
		return nil, err
	}
	blockBytes, err := hex.DecodeString(blockHex)
	if err != nil {
		return nil, err
	}

	msgBlock := &wire.MsgBlock{}
	if err := msgBlock.Deserialize(bytes.NewReader(blockBytes)); err != nil {
		return nil, err
	}

	return c.convertBlock(msgBlock, height, hashStr, int64(len(blockBytes)), fileName, offset), nil
}

func (c *Client) convertBlock(msgBlock *wire.MsgBlock, height uint64, hashStr string, size int64, fileName string, offset int64) *Block {
	txs := make([]*Transaction, len(msgBlock.Transactions))
	for i, tx := range msgBlock.Transactions {
		txs[i] = c.convertTx(tx)
	}
	return &Block{
		Height:       height,
		Hash:         hashStr,
		PreviousHash: msgBlock.Header.PrevBlock.String(),
		MerkleRoot:   msgBlock.Header.MerkleRoot.String(),
		Version:      msgBlock.Header.Version,
		Time:         msgBlock.Header.Timestamp.Unix(),
		Bits:         msgBlock.Header.Bits,
		Nonce:        msgBlock.Header.Nonce,
		Size:         size,
		FileName:     fileName,
		FilePosition: offset,
		Transactions: txs,
	}
}

func (c *Client) convertTx(tx *wire.MsgTx) *Transaction {
	inputs := make([]*Input, len(tx.TxIn))
	for i, in := range tx.TxIn {
		prevTxid := in.PreviousOutPoint.Hash.String()
		isCoinbase := in.PreviousOutPoint.Index == 0xffffffff && allZero(in.PreviousOutPoint.Hash[:])
		if isCoinbase {
			prevTxid = ""
		}
		inputs[i] = &Input{
			PrevTxID:     prevTxid,
			PrevOutIndex: uint64(in.PreviousOutPoint.Index),
			Sequence:     in.Sequence,
			ScriptSig:    in.SignatureScript,
		}
	}

	outputs := make([]*Output, len(tx.TxOut))
	for i, out := range tx.TxOut {
		outputs[i] = &Output{
			Value:        out.Value,
			ScriptPubKey: out.PkScript,
		}
	}

	return &Transaction{
		ID:       tx.TxHash().String(),
		Version:  tx.Version,
		LockTime: tx.LockTime,
		Size:     tx.SerializeSize(),
		Inputs:   inputs,
		Outputs:  outputs,
	}
}

// DeserializeRawTx parses a raw wire-format transaction, as delivered by
// the node's ZMQ "rawtx" publisher, into the indexer's Transaction type.
func DeserializeRawTx(raw []byte) (*Transaction, error) {
	var msgTx wire.MsgTx
	if err := msgTx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("parse raw tx: %w", err)
	}
	inputs := make([]*Input, len(msgTx.TxIn))
	for i, in := range msgTx.TxIn {
		prevTxid := in.PreviousOutPoint.Hash.String()
		isCoinbase := in.PreviousOutPoint.Index == 0xffffffff && allZero(in.PreviousOutPoint.Hash[:])
		if isCoinbase {
			prevTxid = ""
		}
		inputs[i] = &Input{
			PrevTxID:     prevTxid,
			PrevOutIndex: uint64(in.PreviousOutPoint.Index),
			Sequence:     in.Sequence,
			ScriptSig:    in.SignatureScript,
		}
	}
	outputs := make([]*Output, len(msgTx.TxOut))
	for i, out := range msgTx.TxOut {
		outputs[i] = &Output{Value: out.Value, ScriptPubKey: out.PkScript}
	}
	return &Transaction{
		ID:       msgTx.TxHash().String(),
		Version:  msgTx.Version,
		LockTime: msgTx.LockTime,
		Size:     msgTx.SerializeSize(),
		Inputs:   inputs,
		Outputs:  outputs,
	}, nil
}

// DeserializeRawTxHex is the hex-encoded convenience wrapper around
// DeserializeRawTx, used by the query engine when it already has a raw
// transaction hex string from the remote node.
func DeserializeRawTxHex(rawHex string) (*Transaction, error) {
	raw, err := hex.DecodeString(rawHex)
	if err != nil {
		return nil, fmt.Errorf("decode raw tx hex: %w", err)
	}
	return DeserializeRawTx(raw)
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// GetTransaction fetches a single transaction by id.
func (c *Client) GetTransaction(txid string) (*Transaction, error) {
	txHash, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return nil, err
	}
	tx, err := c.rpcClient.GetRawTransaction(txHash)
	if err != nil {
		return nil, err
	}
	return c.convertTx(tx.MsgTx()), nil
}

// GetRawTransactionHex implements RemoteNode.
func (c *Client) GetRawTransactionHex(txid string) (string, error) {
	txHash, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return "", err
	}
	resp, err := c.rpcClient.RawRequest("getrawtransaction", []json.RawMessage{
		json.RawMessage(fmt.Sprintf("%q", txHash.String())),
		json.RawMessage("0"),
	})
	if err != nil {
		return "", err
	}
	var rawHex string
	if err := json.Unmarshal(resp, &rawHex); err != nil {
		return "", err
	}
	return rawHex, nil
}

// GetRawTransactionVerbose implements RemoteNode by passing the node's
// verbose getrawtransaction JSON straight through, unmodified — mirroring
// httpserver.cpp's getTransaction handler, which streams whatever the
// node returns rather than re-encoding it.
func (c *Client) GetRawTransactionVerbose(txid string) ([]byte, error) {
	txHash, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return nil, err
	}
	resp, err := c.rpcClient.RawRequest("getrawtransaction", []json.RawMessage{
		json.RawMessage(fmt.Sprintf("%q", txHash.String())),
		json.RawMessage("1"),
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// SendRawTransaction implements RemoteNode.
func (c *Client) SendRawTransaction(rawHex string) (string, error) {
	raw, err := hex.DecodeString(rawHex)
	if err != nil {
		return "", fmt.Errorf("decode raw tx: %w", err)
	}
	var msgTx wire.MsgTx
	if err := msgTx.Deserialize(bytes.NewReader(raw)); err != nil {
		return "", fmt.Errorf("parse raw tx: %w", err)
	}
	hash, err := c.rpcClient.SendRawTransaction(&msgTx, false)
	if err != nil {
		return "", err
	}
	return hash.String(), nil
}

// GetRawMempool lists the node's current mempool transaction ids.
func (c *Client) GetRawMempool() ([]string, error) {
	hashes, err := c.rpcClient.GetRawMempool()
	if err != nil {
		return nil, err
	}
	txids := make([]string, len(hashes))
	for i, h := range hashes {
		txids[i] = h.String()
	}
	return txids, nil
}

// ---- ScriptSolver ----

// AddressesFromScript extracts the addresses a scriptPubKey pays to.
func (c *Client) AddressesFromScript(script []byte) ([]string, error) {
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(script, c.params)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out, nil
}

// IsMultisig reports whether script is a bare multisig scriptPubKey.
func (c *Client) IsMultisig(script []byte) bool {
	class := txscript.GetScriptClass(script)
	return class == txscript.MultiSigTy
}

// RequiredSignatures returns the m in an m-of-n multisig script.
func (c *Client) RequiredSignatures(script []byte) (int, error) {
	class, addrs, m, err := txscript.ExtractPkScriptAddrs(script, c.params)
	if err != nil {
		return 0, err
	}
	if class != txscript.MultiSigTy {
		return 0, fmt.Errorf("not a multisig script")
	}
	_ = addrs
	return m, nil
}

// ScriptTypeName returns a human-readable script class name.
func (c *Client) ScriptTypeName(script []byte) string {
	return txscript.GetScriptClass(script).String()
}
