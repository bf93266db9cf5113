// Package syslogs persists ingestion diagnostics to a local sqlite3
// database, separate from the main pebble keyspace: the block indexer
// writes one IndexerLog row per successfully indexed block, and ReorgLog
// rows are written when a reorg is detected (status 0) and for each
// block whose rows are cleared (status 1). ErrLog rows are written only
// through InsertErrLog; the indexer itself does not call it. Nothing
// here is read by the query engine — it
// exists purely so an operator can ask "what happened around height
// N" without grepping log files.
package syslogs

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// IndexerLog is one row recorded after a block finishes indexing.
type IndexerLog struct {
	Height             int
	BlockHash          string
	ExpectedInTxCount  int
	ExpectedOutTxCount int
	ActualInTxCount    int
	ActualOutTxCount   int
	CompletionTime     int64
	BlockTime          int64
	TxNum              int64
	AddressNum         int64
	NewAddressNum      int64
	Reorg              int
}

// ErrLog is one error row, recorded through InsertErrLog.
type ErrLog struct {
	ErrType      string
	Height       int
	BlockHash    string
	Timestamp    int64
	ErrorMessage string
}

// ReorgLog is one row recorded when a reorg is detected and handled.
type ReorgLog struct {
	Height       int
	EndHeight    int
	BlockHash    string
	NewBlockHash string
	ReorgSize    int
	Timestamp    int64
	Status       int // 0 = detected, 1 = cleaned up
}

var db *sql.DB

// InitIndexerLogDB opens (or creates) the sqlite3 diagnostics database
// at dbPath and ensures its tables exist.
func InitIndexerLogDB(dbPath string) error {
	var err error
	db, err = sql.Open("sqlite3", dbPath)
	if err != nil {
		return fmt.Errorf("open diagnostics db: %w", err)
	}
	if err = db.Ping(); err != nil {
		return fmt.Errorf("connect to diagnostics db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if err = createTables(); err != nil {
		return fmt.Errorf("create diagnostics tables: %w", err)
	}
	return nil
}

// Close releases the underlying sqlite3 connection.
func Close() error {
	if db == nil {
		return nil
	}
	return db.Close()
}

func createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ReorgLog (
			ID INTEGER PRIMARY KEY AUTOINCREMENT,
			Height INTEGER,
			EndHeight INTEGER,
			BlockHash TEXT,
			NewBlockHash TEXT,
			ReorgSize INTEGER,
			Timestamp INTEGER,
			Status INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS IndexerLog (
			ID INTEGER PRIMARY KEY AUTOINCREMENT,
			Height INTEGER,
			BlockHash TEXT,
			ExpectedInTxCount INTEGER,
			ExpectedOutTxCount INTEGER,
			ActualInTxCount INTEGER,
			ActualOutTxCount INTEGER,
			TxNum INTEGER,
			AddressNum INTEGER,
			NewAddressNum INTEGER,
			CompletionTime INTEGER,
			BlockTime INTEGER,
			Reorg INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS ErrLog (
			ID INTEGER PRIMARY KEY AUTOINCREMENT,
			ErrType TEXT,
			Height INTEGER,
			BlockHash TEXT,
			Timestamp INTEGER,
			ErrorMessage TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_indexerlog_height ON IndexerLog(Height)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}

func InsertIndexerLog(entry IndexerLog) error {
	_, err := db.Exec(`INSERT INTO IndexerLog
		(Height, BlockHash, ExpectedInTxCount, ActualInTxCount, ExpectedOutTxCount, ActualOutTxCount, CompletionTime, BlockTime, TxNum, AddressNum, NewAddressNum, Reorg)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Height, entry.BlockHash, entry.ExpectedInTxCount, entry.ActualInTxCount, entry.ExpectedOutTxCount, entry.ActualOutTxCount,
		entry.CompletionTime, entry.BlockTime, entry.TxNum, entry.AddressNum, entry.NewAddressNum, entry.Reorg)
	if err != nil {
		return fmt.Errorf("insert IndexerLog: %w", err)
	}
	return nil
}

func UpdateIndexerReorg(fromHeight, toHeight int) error {
	_, err := db.Exec(`UPDATE IndexerLog SET Reorg = 1 WHERE Height >= ? AND Height <= ?`, fromHeight, toHeight)
	if err != nil {
		return fmt.Errorf("update IndexerLog reorg flag: %w", err)
	}
	return nil
}

func InsertErrLog(entry ErrLog) error {
	_, err := db.Exec(`INSERT INTO ErrLog (ErrType, Height, BlockHash, Timestamp, ErrorMessage) VALUES (?, ?, ?, ?, ?)`,
		entry.ErrType, entry.Height, entry.BlockHash, entry.Timestamp, entry.ErrorMessage)
	if err != nil {
		return fmt.Errorf("insert ErrLog: %w", err)
	}
	return nil
}

func InsertReorgLog(entry ReorgLog) error {
	_, err := db.Exec(`INSERT INTO ReorgLog (Height, EndHeight, BlockHash, NewBlockHash, ReorgSize, Timestamp, Status) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.Height, entry.EndHeight, entry.BlockHash, entry.NewBlockHash, entry.ReorgSize, entry.Timestamp, entry.Status)
	if err != nil {
		return fmt.Errorf("insert ReorgLog: %w", err)
	}
	return nil
}

func QueryIndexerLogs(limit, offset int) ([]IndexerLog, error) {
	rows, err := db.Query(`SELECT Height, BlockHash, ExpectedInTxCount, ActualInTxCount, ExpectedOutTxCount, ActualOutTxCount, CompletionTime, BlockTime, TxNum, AddressNum, Reorg FROM IndexerLog ORDER BY ID DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query IndexerLogs: %w", err)
	}
	defer rows.Close()

	var logs []IndexerLog
	for rows.Next() {
		var l IndexerLog
		if err := rows.Scan(&l.Height, &l.BlockHash, &l.ExpectedInTxCount, &l.ActualInTxCount, &l.ExpectedOutTxCount, &l.ActualOutTxCount, &l.CompletionTime, &l.BlockTime, &l.TxNum, &l.AddressNum, &l.Reorg); err != nil {
			return nil, fmt.Errorf("scan IndexerLog: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// QueryUnReorgIndexerLogs returns the most recent blocks not yet flagged
// as part of a reorg, newest first — the window reorg detection diffs
// against the live chain.
func QueryUnReorgIndexerLogs(limit, offset int) ([]IndexerLog, error) {
	rows, err := db.Query(`SELECT Height, BlockHash, ExpectedInTxCount, ActualInTxCount, ExpectedOutTxCount, ActualOutTxCount, CompletionTime, BlockTime, TxNum, AddressNum FROM IndexerLog WHERE Reorg = 0 ORDER BY ID DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query unreorged IndexerLogs: %w", err)
	}
	defer rows.Close()

	var logs []IndexerLog
	for rows.Next() {
		var l IndexerLog
		if err := rows.Scan(&l.Height, &l.BlockHash, &l.ExpectedInTxCount, &l.ActualInTxCount, &l.ExpectedOutTxCount, &l.ActualOutTxCount, &l.CompletionTime, &l.BlockTime, &l.TxNum, &l.AddressNum); err != nil {
			return nil, fmt.Errorf("scan IndexerLog: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func QueryErrLogs(limit, offset int) ([]ErrLog, error) {
	rows, err := db.Query(`SELECT ErrType, Height, BlockHash, Timestamp, ErrorMessage FROM ErrLog ORDER BY ID DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query ErrLogs: %w", err)
	}
	defer rows.Close()

	var logs []ErrLog
	for rows.Next() {
		var l ErrLog
		if err := rows.Scan(&l.ErrType, &l.Height, &l.BlockHash, &l.Timestamp, &l.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scan ErrLog: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func QueryReorgLogs(limit, offset int) ([]ReorgLog, error) {
	rows, err := db.Query(`SELECT Height, EndHeight, BlockHash, NewBlockHash, ReorgSize, Timestamp, Status FROM ReorgLog ORDER BY ID DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query ReorgLogs: %w", err)
	}
	defer rows.Close()

	var logs []ReorgLog
	for rows.Next() {
		var l ReorgLog
		if err := rows.Scan(&l.Height, &l.EndHeight, &l.BlockHash, &l.NewBlockHash, &l.ReorgSize, &l.Timestamp, &l.Status); err != nil {
			return nil, fmt.Errorf("scan ReorgLog: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func UpdateReorgStatus(height int64, status int) error {
	_, err := db.Exec(`UPDATE ReorgLog SET Status = ? WHERE Height = ?`, status, height)
	if err != nil {
		return fmt.Errorf("update ReorgLog status: %w", err)
	}
	return nil
}
