package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/schollz/progressbar/v3"

	"github.com/metaid/utxo_indexer/api"
	"github.com/metaid/utxo_indexer/blockchain"
	"github.com/metaid/utxo_indexer/config"
	"github.com/metaid/utxo_indexer/indexer"
	"github.com/metaid/utxo_indexer/mempool"
	"github.com/metaid/utxo_indexer/query"
	"github.com/metaid/utxo_indexer/storage"
	"github.com/metaid/utxo_indexer/syslogs"
)

func main() {
	fmt.Println("Starting UTXO Indexer...")
	defer func() {
		if r := recover(); r != nil {
			log.Printf("==============>global panic: %v", r)
		}
	}()

	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := syslogs.InitIndexerLogDB(cfg.DataDir + "/indexer_diagnostics.db"); err != nil {
		log.Fatalf("Failed to open diagnostics log: %v", err)
	}
	defer syslogs.Close()

	store, err := storage.Open(cfg.DataDir + "/index")
	if err != nil {
		log.Fatalf("Failed to open index store: %v", err)
	}
	defer store.Close()

	metaStore, err := storage.NewMetaStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to open meta store: %v", err)
	}
	defer metaStore.Close()

	bcClient, err := blockchain.NewClient(cfg)
	if err != nil {
		log.Fatalf("Failed to create blockchain client: %v", err)
	}
	if err := bcClient.Connect(); err != nil {
		log.Fatalf("Failed to connect to node: %v", err)
	}
	defer bcClient.Shutdown()

	if cfg.BackupEnabled {
		backupMgr := storage.NewBackupManager(cfg.BackupDir, store, metaStore)
		if err := backupMgr.Start(); err != nil {
			log.Printf("Failed to start backup manager: %v", err)
		} else {
			defer backupMgr.Stop()
		}
	}

	ordinals := indexer.NewOrdinalCache(store)
	monitor := mempool.New(bcClient)
	blockIndexer := indexer.NewBlockIndexer(store, metaStore, ordinals, bcClient, monitor, cfg.SyncEveryNBlk)
	progress := indexer.NewProgress(metaStore)

	engine := query.New(store, metaStore, bcClient, bcClient, bcClient, monitor)
	server := api.NewServer(engine)

	stopCh := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Received stop signal, preparing to shutdown...")
		close(stopCh)
	}()

	zmqSub := mempool.NewZMQSubscriber(cfg.ZMQAddress, time.Duration(cfg.ZmqReconnectInterval)*time.Second, monitor)
	if err := zmqSub.Start(); err != nil {
		log.Printf("mempool ZMQ subscription disabled: %v", err)
	} else {
		defer zmqSub.Stop()
	}

	log.Printf("Starting UTXO indexer API, port: %s", cfg.APIPort)
	go func() {
		if err := server.Start(":" + cfg.APIPort); err != nil {
			log.Printf("API server exited: %v", err)
		}
	}()

	go runSyncLoop(bcClient, blockIndexer, progress, stopCh)

	<-stopCh
	log.Println("Program is shutting down...")

	if height, ok := progress.Height(); ok {
		log.Printf("Final indexed height: %d", height)
	}
}

// newSyncProgressBar mirrors the teacher's InitProgressBar: a colorized
// terminal bar tracking catch-up from the last indexed height to the
// node's current tip.
func newSyncProgressBar(tip, from int64) *progressbar.ProgressBar {
	remaining := tip - from
	if remaining <= 0 {
		remaining = 1
	}
	return progressbar.NewOptions64(remaining,
		progressbar.OptionSetWriter(colorable.NewColorableStdout()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetDescription("Indexing blocks..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionSetRenderBlankState(false),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(colorable.NewColorableStdout(), "\nDone!\n")
		}),
	)
}

// runSyncLoop pulls blocks from the remote node starting at the last
// indexed height, indexing each one in turn, then polls for new tip
// blocks and watches for reorgs — the teacher project's SyncBlocks loop,
// generalized from its FT/NFT scan to this indexer's block pipeline.
func runSyncLoop(bcClient *blockchain.Client, blockIndexer *indexer.BlockIndexer, progress *indexer.Progress, stopCh <-chan struct{}) {
	const checkInterval = 10 * time.Second

	next := uint64(0)
	if height, ok := progress.Height(); ok {
		next = height + 1
	}

	var bar *progressbar.ProgressBar
	if tip, err := bcClient.GetBlockCount(); err == nil && tip > int64(next) {
		bar = newSyncProgressBar(tip, int64(next))
	}

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		tip, err := bcClient.GetBlockCount()
		if err != nil {
			log.Printf("sync: failed to get block count: %v, retrying in %v", err, checkInterval)
			select {
			case <-stopCh:
				return
			case <-time.After(checkInterval):
			}
			continue
		}

		if next > uint64(tip) {
			if fromHeight, toHeight := bcClient.FindReorgHeight(); fromHeight >= 0 {
				log.Printf("reorg detected: re-indexing heights %d..%d", fromHeight, toHeight)
				if err := blockIndexer.HandleReorg(fromHeight, toHeight); err != nil {
					log.Printf("reorg cleanup failed: %v", err)
				} else {
					next = uint64(fromHeight)
				}
			}
			select {
			case <-stopCh:
				return
			case <-time.After(checkInterval):
			}
			continue
		}

		block, err := bcClient.ReadBlock("", 0, next, false)
		if err != nil {
			log.Printf("sync: failed to fetch block %d: %v", next, err)
			select {
			case <-stopCh:
				return
			case <-time.After(3 * time.Second):
			}
			continue
		}

		if err := blockIndexer.IndexBlock(block); err != nil {
			log.Printf("sync: failed to index block %d (%s): %v", block.Height, block.Hash, err)
			select {
			case <-stopCh:
				return
			case <-time.After(3 * time.Second):
			}
			continue
		}
		if err := progress.Advance(block.Height); err != nil {
			log.Printf("sync: failed to advance progress marker: %v", err)
		}
		if bar != nil {
			_ = bar.Add(1)
		}

		next++
	}
}
