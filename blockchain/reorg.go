package blockchain

import (
	"log"
	"time"

	"github.com/metaid/utxo_indexer/syslogs"
)

// FindReorgHeight walks the most recently indexed blocks (newest first,
// from the syslogs diagnostics log) comparing their recorded hash
// against what the live node reports at the same height. The walk stops
// at the first entry that still matches the live chain; the oldest
// mismatching height below the newest marks the start of the reorg.
// Returns that start height and the window's end height, the range that
// needs re-indexing, or (-1, -1) when no divergence is found.
func (c *Client) FindReorgHeight() (int64, int64) {
	recent, err := syslogs.QueryUnReorgIndexerLogs(500, 0)
	if err != nil || len(recent) == 0 {
		if err != nil {
			log.Printf("reorg scan: query recent indexer logs: %v", err)
		}
		return -1, -1
	}

	lastSameHeight := -1
	var reorgHash, newHash string
	reorgSize := 0
	isReorg := false
	endHeight := recent[0].Height

	for _, entry := range recent {
		chainHash, err := c.GetBlockHash(int64(entry.Height))
		if err != nil {
			continue
		}
		if chainHash == entry.BlockHash {
			lastSameHeight = entry.Height
			break
		}
		reorgSize++
		isReorg = true
		reorgHash = entry.BlockHash
		newHash = chainHash
		lastSameHeight = entry.Height - 1
	}

	if !isReorg {
		return -1, -1
	}

	_ = syslogs.InsertReorgLog(syslogs.ReorgLog{
		Height:       lastSameHeight + 1,
		EndHeight:    endHeight,
		BlockHash:    reorgHash,
		NewBlockHash: newHash,
		ReorgSize:    reorgSize,
		Timestamp:    time.Now().Unix(),
		Status:       0,
	})
	return int64(lastSameHeight + 1), int64(endHeight)
}
