// Package keyspace builds and parses the secondary-index keys stored in
// the pebble-backed keyspace. Every key is a plain ASCII string so that
// lexical iteration order matches numeric/temporal order; heights and
// ordinals are zero-padded to 8 digits, block times to 12 digits.
//
// The layout mirrors the original VTC Blockindexer's LevelDB schema
// byte-for-byte: it is not a Go-native redesign, it is the same wire
// format re-expressed as typed builder functions so indexer and query
// code never hand-format strings.
package keyspace

import "fmt"

const (
	ordinalWidth = 8
	timeWidth    = 12

	// BlockTimeCrossover disambiguates a sinceBlock/date query parameter:
	// values below it are treated as a block height, values at or above
	// it are treated as a unix timestamp. 946702800 is 2000-01-01 05:00:00 UTC.
	BlockTimeCrossover = 946702800
)

// Ord formats an ordinal/height as an 8-digit zero-padded decimal string.
func Ord(n uint64) string {
	return fmt.Sprintf("%0*d", ordinalWidth, n)
}

// Time formats a unix timestamp as a 12-digit zero-padded decimal string.
func Time(t int64) string {
	return fmt.Sprintf("%0*d", timeWidth, t)
}

// HighestBlock is the single key tracking the tip height seen so far.
func HighestBlock() string { return "highestblock" }

// Block keys

func Block(height uint64) string         { return "block-" + Ord(height) }
func BlockPrefix() string                { return "block-" }
func BlockFilePosition(height uint64) string { return "block-filePosition-" + Ord(height) }
func BlockHash(hash string) string       { return "block-hash-" + hash }
func BlockTime(height uint64) string     { return "block-time-" + Ord(height) }
func BlockHashTime(t int64) string       { return "block-hash-time-" + Time(t) }
func BlockHashTimeStart(t int64) string  { return "block-hash-time-" + Time(t) }
func BlockHashTimePrefix() string        { return "block-hash-time-" }
func BlockSize(height uint64) string     { return "block-size-" + Ord(height) }
func BlockTxCount(height uint64) string  { return "block-txcount-" + Ord(height) }

// Block-transaction index: block-<hash>-tx-<8-digit index>

func BlockTx(hash string, txIndex uint64) string { return "block-" + hash + "-tx-" + Ord(txIndex) }
func BlockTxPrefix(hash string) string            { return "block-" + hash + "-tx-" }

// Transaction keys

func TxFilePosition(txHash string) string { return "tx-filePosition-" + txHash }
func TxBlock(txHash string) string        { return "tx-" + txHash + "-block" }

// Multisig marker: multisigtx-<txHash>-<8-digit outIndex> -> requiredSignatures

func MultisigTx(txHash string, outIndex uint64) string {
	return "multisigtx-" + txHash + "-" + Ord(outIndex)
}

// Address-txo ordinal rows: <address>-txo-<8-digit ordinal> -> txHash+outIndex+height+value

func AddressTxoPrefix(address string) string        { return address + "-txo-" }
func AddressTxo(address string, ordinal uint64) string { return address + "-txo-" + Ord(ordinal) }

// Block-txo pointer rows (reorg cleanup index): <blockHash>-txo-<8-digit ordinal> -> address-txo key

func BlockTxoPrefix(blockHash string) string          { return blockHash + "-txo-" }
func BlockTxo(blockHash string, ordinal uint64) string { return blockHash + "-txo-" + Ord(ordinal) }

// Output address rows: <txHash><8-digit outIndex>-address-<8-digit ordinal> -> address

func OutputAddressPrefix(txHash string, outIndex uint64) string {
	return txHash + Ord(outIndex) + "-address-"
}
func OutputAddress(txHash string, outIndex, ordinal uint64) string {
	return txHash + Ord(outIndex) + "-address-" + Ord(ordinal)
}

// Output value row, always written regardless of address count:
// <txHash><8-digit outIndex>-value -> decimal satoshi amount

func OutputValue(txHash string, outIndex uint64) string {
	return txHash + Ord(outIndex) + "-value"
}

// Spend marker: txo-<prevTxHash>-<8-digit prevOutIndex>-spent -> blockHash+spendingTxHash+8-digit spendingInIndex

func OutpointSpent(prevTxHash string, prevOutIndex uint64) string {
	return "txo-" + prevTxHash + "-" + Ord(prevOutIndex) + "-spent"
}

// Block-txospent pointer rows (reorg cleanup index): <blockHash>-txospent-<8-digit ordinal> -> spend key

func BlockTxoSpentPrefix(blockHash string) string          { return blockHash + "-txospent-" }
func BlockTxoSpent(blockHash string, ordinal uint64) string { return blockHash + "-txospent-" + Ord(ordinal) }

// PrefixRange returns [start, end) bounds for a bounded ordinal scan over
// a prefix, matching the original's 00000001..99999999 convention.
func PrefixRange(prefix string) (start, end string) {
	return prefix + Ord(1), prefix + Ord(99999999) + "\xff"
}
