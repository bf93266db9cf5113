package query

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/metaid/utxo_indexer/blockchain"
	"github.com/metaid/utxo_indexer/indexer"
	"github.com/metaid/utxo_indexer/keyspace"
	"github.com/metaid/utxo_indexer/storage"
)

// Engine answers every read path the HTTP API exposes. It never mutates
// the keyspace; BlockIndexer owns all writes. Grounded function-for-
// function on original_source/src/httpserver.cpp's HttpServer methods.
type Engine struct {
	store   *storage.Store
	meta    *storage.MetaStore
	reader  blockchain.BlockReader
	node    blockchain.RemoteNode
	solver  blockchain.ScriptSolver
	mempool indexer.MempoolMonitor
}

// New wires an Engine over its collaborators. mempool may be nil, in
// which case no mempool lookups are made: no unconfirmed outputs or
// spenders are reported, and AddressBalance's unconfirmed balance equals
// its confirmed unspent balance.
func New(store *storage.Store, meta *storage.MetaStore, reader blockchain.BlockReader, node blockchain.RemoteNode, solver blockchain.ScriptSolver, mempool indexer.MempoolMonitor) *Engine {
	return &Engine{store: store, meta: meta, reader: reader, node: node, solver: solver, mempool: mempool}
}

func (e *Engine) highestBlock() (int64, error) {
	v, err := e.meta.Get([]byte(keyspace.HighestBlock()))
	if err != nil {
		if err == storage.ErrNotFound {
			return 0, nil
		}
		return 0, err
	}
	n, err := strconv.ParseInt(string(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse highestblock: %w", err)
	}
	return n, nil
}

// AddressBalance ← httpserver.cpp's addressBalance.
func (e *Engine) AddressBalance(address string) (*AddressBalance, error) {
	result := &AddressBalance{}

	start, end := keyspace.PrefixRange(keyspace.AddressTxoPrefix(address))
	iter, err := e.store.NewIter([]byte(start), []byte(end))
	if err != nil {
		return nil, err
	}
	for iter.First(); iter.Valid(); iter.Next() {
		txo := string(iter.Value())
		result.TxCount++

		txHash, vout := txo[0:64], txo[64:72]
		value, err := strconv.ParseInt(txo[80:], 10, 64)
		if err != nil {
			continue
		}

		spent, err := e.store.Has(spendKeyFromTxoParts(txHash, vout))
		if err != nil {
			iter.Close()
			return nil, err
		}
		if spent {
			result.TxCount++
			continue
		}

		result.Balance += value
		voutN, _ := strconv.ParseUint(vout, 10, 64)
		if e.mempool != nil {
			if _, found := e.mempool.OutpointSpend(txHash, voutN); found {
				result.UnconfirmedTxCount++
				continue
			}
		}
		result.UnconfirmedBalance += value
	}
	if err := iter.Error(); err != nil {
		iter.Close()
		return nil, err
	}
	iter.Close()

	if e.mempool != nil {
		for _, txo := range e.mempool.TxosForAddress(address) {
			result.UnconfirmedTxCount++
			if _, found := e.mempool.OutpointSpend(txo.TxID, txo.Vout); found {
				result.UnconfirmedTxCount++
				continue
			}
			result.UnconfirmedBalance += txo.Value
		}
	}

	return result, nil
}

// spendKeyFromTxoParts builds the txo-<hash>-<vout>-spent key from the
// already-string-formatted hash/vout substrings of an address-txo row.
func spendKeyFromTxoParts(txHash, voutOrd string) string {
	return "txo-" + txHash + "-" + voutOrd + "-spent"
}

// AddressTxos ← httpserver.cpp's addressTxos.
func (e *Engine) AddressTxos(address string, opts AddressTxoOptions) ([]AddressTxo, error) {
	var rows []AddressTxo

	start, end := keyspace.PrefixRange(keyspace.AddressTxoPrefix(address))
	iter, err := e.store.NewIter([]byte(start), []byte(end))
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		txo := string(iter.Value())
		txHash := txo[0:64]
		voutOrd := txo[64:72]
		heightOrd := txo[72:80]
		value, _ := strconv.ParseInt(txo[80:], 10, 64)
		vout, _ := strconv.ParseUint(voutOrd, 10, 64)
		height, _ := strconv.ParseInt(heightOrd, 10, 64)

		blockTimeRaw, err := e.store.Get(keyspace.BlockTime(uint64(height)))
		if err != nil && err != storage.ErrNotFound {
			return nil, err
		}
		blockTime, _ := strconv.ParseInt(string(blockTimeRaw), 10, 64)

		if opts.SinceBlock >= keyspace.BlockTimeCrossover {
			if blockTime < opts.SinceBlock {
				continue
			}
		} else if height < opts.SinceBlock {
			continue
		}

		spentValue, err := e.store.Get(spendKeyFromTxoParts(txHash, voutOrd))
		spent := err == nil
		if err != nil && err != storage.ErrNotFound {
			return nil, err
		}

		row := AddressTxo{Height: height, Time: blockTime}

		if !spent {
			if opts.Unconfirmed && e.mempool != nil {
				if spenderTxid, found := e.mempool.OutpointSpend(txHash, vout); found {
					if opts.Unspent {
						continue
					}
					row.Spender = &spenderTxid
				}
			}
		} else {
			if opts.Unspent {
				continue
			}
			spenderTxid := string(spentValue)[64:128]
			row.Spender = &spenderTxid
		}

		if opts.Raw {
			rawHex, err := e.node.GetRawTransactionHex(txHash)
			if err != nil {
				return nil, fmt.Errorf("fetch raw tx %s: %w", txHash, err)
			}
			row.Tx = rawHex
		} else if opts.Script {
			script, err := e.outputScriptHex(txHash, vout)
			if err != nil {
				return nil, err
			}
			row.Script = script
		}

		if opts.Raw && row.Spender != nil {
			spenderRaw, err := e.node.GetRawTransactionHex(*row.Spender)
			if err != nil {
				return nil, fmt.Errorf("fetch spender raw tx: %w", err)
			}
			row.Tx = spenderRaw
		}

		if !opts.Raw {
			row.TxHash = txHash
		}
		if !opts.TxHashOnly && !opts.Raw {
			row.Vout = vout
			row.Value = value
		}

		rows = append(rows, row)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}

	if opts.Unconfirmed && e.mempool != nil {
		for _, txo := range e.mempool.TxosForAddress(address) {
			row := AddressTxo{TxHash: txo.TxID, Vout: txo.Vout, Value: txo.Value, Block: 0}
			if spenderTxid, found := e.mempool.OutpointSpend(txo.TxID, txo.Vout); found {
				row.Spender = &spenderTxid
			}
			rows = append(rows, row)
		}
	}

	return rows, nil
}

// outputScriptHex looks up the scriptPubKey for txHash's voutN'th output
// via the remote node, matching the original's "raw=0&script=1" branch.
func (e *Engine) outputScriptHex(txHash string, voutN uint64) (string, error) {
	rawHex, err := e.node.GetRawTransactionHex(txHash)
	if err != nil {
		return "", err
	}
	tx, err := blockchain.DeserializeRawTxHex(rawHex)
	if err != nil {
		return "", err
	}
	if voutN >= uint64(len(tx.Outputs)) {
		return "", fmt.Errorf("vout %d out of range for tx %s", voutN, txHash)
	}
	return fmt.Sprintf("%x", tx.Outputs[voutN].ScriptPubKey), nil
}

// OutpointSpend ← httpserver.cpp's outpointSpend.
func (e *Engine) OutpointSpend(txid string, vout uint64, raw, unconfirmed bool) (*OutpointSpendResult, error) {
	result := &OutpointSpendResult{}

	if _, err := e.store.Get(keyspace.TxBlock(txid)); err != nil {
		if err == storage.ErrNotFound {
			result.Error = true
			result.ErrorDescription = "Transaction ID not found"
			return result, nil
		}
		return nil, err
	}

	spendKey := keyspace.OutpointSpent(txid, vout)
	spentValue, err := e.store.Get(spendKey)
	switch {
	case err == nil:
		result.Spent = true
		result.Spender = string(spentValue)[64:128]
		if heightRaw, hErr := e.store.Get(keyspace.BlockHash(string(spentValue)[0:64])); hErr == nil {
			h, _ := strconv.ParseInt(string(heightRaw), 10, 64)
			result.Height = h
		}
	case err == storage.ErrNotFound:
		if unconfirmed && e.mempool != nil {
			if spenderTxid, found := e.mempool.OutpointSpend(txid, vout); found {
				result.Spent = true
				result.Spender = spenderTxid
				result.Height = 0
			}
		}
	default:
		return nil, err
	}

	if raw && result.Spender != "" {
		spenderRaw, err := e.node.GetRawTransactionHex(result.Spender)
		if err != nil {
			return nil, fmt.Errorf("fetch spender raw tx: %w", err)
		}
		result.SpenderRaw = spenderRaw
		result.Spender = ""
	}

	return result, nil
}

// outpointSpendRequest is one element of the POST /outpointSpends body.
type outpointSpendRequest struct {
	TxID string `json:"txid"`
	Vout uint64 `json:"vout"`
}

// OutpointSpends ← httpserver.cpp's outpointSpends, including the
// SUPPLEMENTED fix: the original builds the unconfirmed-tx spender
// object as a fresh local `j` inside the else-if branch and never
// attaches it to the outer result — so an unconfirmed spend was always
// reported back as "not spent". Here the single result struct is
// populated directly, so the unconfirmed spender IS attached.
func (e *Engine) OutpointSpends(body []byte, raw, unconfirmed bool) ([]OutpointSpendResult, error) {
	var reqs []outpointSpendRequest
	if err := json.Unmarshal(body, &reqs); err != nil {
		return nil, fmt.Errorf("parse outpointSpends body: %w", err)
	}

	results := make([]OutpointSpendResult, 0, len(reqs))
	for _, r := range reqs {
		result := OutpointSpendResult{TxID: r.TxID, Vout: r.Vout}

		if _, err := e.store.Get(keyspace.TxBlock(r.TxID)); err != nil {
			if err != storage.ErrNotFound {
				return nil, err
			}
			result.Error = true
			result.ErrorDescription = "Transaction ID not found"
			results = append(results, result)
			continue
		}

		spendKey := keyspace.OutpointSpent(r.TxID, r.Vout)
		spentValue, err := e.store.Get(spendKey)
		switch {
		case err == nil:
			result.Spent = true
			result.Spender = string(spentValue)[64:128]
			if heightRaw, hErr := e.store.Get(keyspace.BlockHash(string(spentValue)[0:64])); hErr == nil {
				h, _ := strconv.ParseInt(string(heightRaw), 10, 64)
				result.Height = h
			}
		case err == storage.ErrNotFound:
			if unconfirmed && e.mempool != nil {
				if spenderTxid, found := e.mempool.OutpointSpend(r.TxID, r.Vout); found {
					result.Spent = true
					result.Spender = spenderTxid
					result.Height = 0
				} else {
					result.Spent = false
				}
			}
		default:
			return nil, err
		}

		if raw && result.Spender != "" {
			spenderRaw, err := e.node.GetRawTransactionHex(result.Spender)
			if err == nil {
				result.SpenderRaw = spenderRaw
				result.Spender = ""
			}
		}

		results = append(results, result)
	}
	return results, nil
}

// blockFilePosition reads a block's stored fileName:offset pointer.
func (e *Engine) blockFilePosition(height uint64) (fileName string, offset int64, err error) {
	raw, err := e.store.Get(keyspace.BlockFilePosition(height))
	if err != nil {
		return "", 0, err
	}
	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("malformed filePosition row for height %d", height)
	}
	offset, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("malformed filePosition offset for height %d: %w", height, err)
	}
	return parts[0], offset, nil
}

// BlockByHash ← httpserver.cpp's getBlock.
func (e *Engine) BlockByHash(hash string) (*Block, error) {
	highest, err := e.highestBlock()
	if err != nil {
		return nil, err
	}

	heightRaw, err := e.store.Get(keyspace.BlockHash(hash))
	if err != nil {
		return nil, err
	}
	height, _ := strconv.ParseUint(string(heightRaw), 10, 64)

	fileName, offset, err := e.blockFilePosition(height)
	if err != nil {
		return nil, err
	}

	blk, err := e.reader.ReadBlock(fileName, offset, height, false)
	if err != nil {
		return nil, err
	}

	txs := make([]string, len(blk.Transactions))
	for i, tx := range blk.Transactions {
		txs[i] = tx.ID
	}

	return &Block{
		Hash:              blk.Hash,
		PreviousBlockHash: blk.PreviousHash,
		MerkleRoot:        blk.MerkleRoot,
		Version:           blk.Version,
		Time:              blk.Time,
		Bits:              blk.Bits,
		Nonce:             blk.Nonce,
		Height:            blk.Height,
		Confirmations:     highest - int64(blk.Height) + 1,
		Size:              blk.Size,
		Tx:                txs,
		IsMainChain:       true,
	}, nil
}

// BlockTransactions ← httpserver.cpp's getBlockTransactions, 10 per page.
func (e *Engine) BlockTransactions(hash string, page int) (*BlockTransactionsPage, error) {
	const pageSize = 10

	highest, err := e.highestBlock()
	if err != nil {
		return nil, err
	}

	heightRaw, err := e.store.Get(keyspace.BlockHash(hash))
	if err != nil {
		return nil, err
	}
	height, _ := strconv.ParseUint(string(heightRaw), 10, 64)

	fileName, offset, err := e.blockFilePosition(height)
	if err != nil {
		return nil, err
	}

	blk, err := e.reader.ReadBlock(fileName, offset, height, false)
	if err != nil {
		return nil, err
	}

	total := len(blk.Transactions)
	leftOver := total % pageSize
	pagesTotal := total / pageSize
	if leftOver > 0 {
		pagesTotal++
	}

	result := &BlockTransactionsPage{PagesTotal: pagesTotal}

	start := page * pageSize
	end := start + pageSize - 1
	if end > total-1 {
		end = total - 1
	}
	if end < start {
		return result, nil
	}

	for i := start; i <= end; i++ {
		tx := blk.Transactions[i]
		jtx := BlockTransactionTx{
			TxID:          tx.ID,
			Version:       tx.Version,
			LockTime:      tx.LockTime,
			Size:          tx.Size,
			Confirmations: highest - int64(blk.Height) + 1,
			BlockHash:     blk.Hash,
			BlockHeight:   blk.Height,
		}

		for n, in := range tx.Inputs {
			if in.PrevTxID == "" {
				jtx.IsCoinBase = true
			}
			vin := Vin{Sequence: in.Sequence, N: n, TxID: in.PrevTxID, Vout: in.PrevOutIndex}
			vin.ScriptSig.Hex = fmt.Sprintf("%x", in.ScriptSig)
			if in.PrevTxID != "" {
				addrs, _ := e.addressesForOutput(in.PrevTxID, in.PrevOutIndex)
				vin.Addr = strings.Join(addrs, " ")
				vin.ValueSat = e.valueForOutput(in.PrevTxID, in.PrevOutIndex)
			}
			jtx.Vin = append(jtx.Vin, vin)
		}

		for n, out := range tx.Outputs {
			vout := Vout{ValueSat: out.Value}
			vout.ScriptPubKey.Hex = fmt.Sprintf("%x", out.ScriptPubKey)
			vout.ScriptPubKey.Type = e.solver.ScriptTypeName(out.ScriptPubKey)
			addrs, _ := e.addressesForOutput(tx.ID, uint64(n))
			vout.ScriptPubKey.Addresses = addrs

			spendKey := keyspace.OutpointSpent(tx.ID, uint64(n))
			if spentValue, err := e.store.Get(spendKey); err == nil {
				vout.SpentTxID = string(spentValue)[64:128]
				idx, _ := strconv.ParseInt(string(spentValue)[128:136], 10, 64)
				vout.SpentIndex = idx
				if heightRaw, hErr := e.store.Get(keyspace.BlockHash(string(spentValue)[0:64])); hErr == nil {
					h, _ := strconv.ParseInt(string(heightRaw), 10, 64)
					vout.SpentHeight = h
				}
			}
			jtx.Vout = append(jtx.Vout, vout)
		}

		result.Txs = append(result.Txs, jtx)
	}

	return result, nil
}

func (e *Engine) addressesForOutput(txHash string, outIndex uint64) ([]string, error) {
	var addrs []string
	start, end := keyspace.PrefixRange(keyspace.OutputAddressPrefix(txHash, outIndex))
	iter, err := e.store.NewIter([]byte(start), []byte(end))
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		addrs = append(addrs, string(iter.Value()))
	}
	return addrs, iter.Error()
}

func (e *Engine) valueForOutput(txHash string, outIndex uint64) int64 {
	v, err := e.store.Get(keyspace.OutputValue(txHash, outIndex))
	if err != nil {
		return 0
	}
	n, _ := strconv.ParseInt(string(v), 10, 64)
	return n
}

// TransactionProof ← httpserver.cpp's getTransactionProof: the
// transaction's own block plus the 10 preceding headers.
func (e *Engine) TransactionProof(txid string) (*TransactionProof, error) {
	blockHashRaw, err := e.store.Get(keyspace.TxBlock(txid))
	if err != nil {
		return nil, err
	}
	blockHash := string(blockHashRaw)

	heightRaw, err := e.store.Get(keyspace.BlockHash(blockHash))
	if err != nil {
		return nil, err
	}
	height, _ := strconv.ParseUint(string(heightRaw), 10, 64)

	result := &TransactionProof{TxHash: txid, BlockHash: blockHash, BlockHeight: height}

	floor := uint64(0)
	if height > 10 {
		floor = height - 10
	}
	for h := height + 1; h > floor; {
		h--
		fileName, offset, err := e.blockFilePosition(h)
		if err != nil {
			return nil, err
		}
		blk, err := e.reader.ReadBlock(fileName, offset, h, true)
		if err != nil {
			return nil, err
		}
		result.Chain = append(result.Chain, BlockHeaderJS{
			BlockHash:         blk.Hash,
			PreviousBlockHash: blk.PreviousHash,
			MerkleRoot:        blk.MerkleRoot,
			Version:           blk.Version,
			Time:              blk.Time,
			Bits:              blk.Bits,
			Nonce:             blk.Nonce,
			Height:            blk.Height,
		})
	}

	return result, nil
}

// Sync ← httpserver.cpp's sync.
func (e *Engine) Sync() (*SyncStatus, error) {
	height, err := e.highestBlock()
	if err != nil {
		return nil, err
	}

	result := &SyncStatus{Height: height}
	chainHeight, err := e.node.GetBlockCount()
	if err != nil {
		result.Error = err.Error()
		return result, nil
	}
	result.BlockChainHeight = chainHeight

	if chainHeight > 0 {
		result.SyncPercentage = float64(height) / float64(chainHeight) * 100
	}
	if result.SyncPercentage >= 100 {
		result.Status = "finished"
	} else {
		result.Status = "indexing"
	}
	return result, nil
}

// Blocks ← httpserver.cpp's getBlocks: the most recent limit blocks,
// descending, default/cap 100.
func (e *Engine) Blocks(limit int) ([]BlockSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	highest, err := e.highestBlock()
	if err != nil {
		return nil, err
	}
	lowest := highest - int64(limit) + 1
	if lowest < 0 {
		lowest = 0
	}

	start := []byte(keyspace.Block(uint64(lowest)))
	end := []byte(keyspace.Block(uint64(highest)) + "\xff")
	iter, err := e.store.NewIter(start, end)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []BlockSummary
	for iter.Last(); iter.Valid(); iter.Prev() {
		key := string(iter.Key())
		heightStr := key[len("block-"):]
		height, err := strconv.ParseUint(heightStr, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, e.blockSummary(height, string(iter.Value())))
	}
	return out, iter.Error()
}

func (e *Engine) blockSummary(height uint64, hash string) BlockSummary {
	sizeRaw, _ := e.store.Get(keyspace.BlockSize(height))
	txCountRaw, _ := e.store.Get(keyspace.BlockTxCount(height))
	timeRaw, _ := e.store.Get(keyspace.BlockTime(height))
	size, _ := strconv.ParseInt(string(sizeRaw), 10, 64)
	txCount, _ := strconv.ParseInt(string(txCountRaw), 10, 64)
	t, _ := strconv.ParseInt(string(timeRaw), 10, 64)
	return BlockSummary{Hash: hash, Height: height, Size: size, Time: t, TxLength: txCount}
}

// BlocksByDate ← httpserver.cpp's getBlocksByDate: blocks whose time
// falls in [start, end], ascending by time.
func (e *Engine) BlocksByDate(start, end int64) ([]BlockSummary, error) {
	lower := []byte(keyspace.BlockHashTime(start))
	upper := []byte(keyspace.BlockHashTime(end) + "\xff")
	iter, err := e.store.NewIter(lower, upper)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []BlockSummary
	for iter.First(); iter.Valid(); iter.Next() {
		hash := string(iter.Value())
		heightRaw, err := e.store.Get(keyspace.BlockHash(hash))
		if err != nil {
			continue
		}
		height, _ := strconv.ParseUint(string(heightRaw), 10, 64)
		out = append(out, e.blockSummary(height, hash))
	}
	return out, iter.Error()
}

// Transaction ← httpserver.cpp's getTransaction: a verbose-JSON
// passthrough of the remote node's own getrawtransaction response.
func (e *Engine) Transaction(txid string) ([]byte, error) {
	return e.node.GetRawTransactionVerbose(txid)
}

// SendRawTransaction ← httpserver.cpp's sendRawTransaction passthrough.
func (e *Engine) SendRawTransaction(rawHex string) (string, error) {
	return e.node.SendRawTransaction(rawHex)
}

// Mempool ← httpserver.cpp's mempoolTransactionIds.
func (e *Engine) Mempool() []string {
	if e.mempool == nil {
		return nil
	}
	return e.mempool.TxIds()
}
