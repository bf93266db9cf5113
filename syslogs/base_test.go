package syslogs

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "diagnostics.db")
	if err := InitIndexerLogDB(path); err != nil {
		t.Fatalf("InitIndexerLogDB: %v", err)
	}
	t.Cleanup(func() { _ = Close() })
}

func TestInsertAndQueryIndexerLog(t *testing.T) {
	openTestDB(t)

	if err := InsertIndexerLog(IndexerLog{Height: 10, BlockHash: "hash10", TxNum: 3}); err != nil {
		t.Fatalf("InsertIndexerLog: %v", err)
	}
	logs, err := QueryIndexerLogs(10, 0)
	if err != nil {
		t.Fatalf("QueryIndexerLogs: %v", err)
	}
	if len(logs) != 1 || logs[0].Height != 10 || logs[0].BlockHash != "hash10" {
		t.Errorf("QueryIndexerLogs = %+v, want one row for height 10", logs)
	}
}

func TestQueryUnReorgIndexerLogsExcludesFlaggedRows(t *testing.T) {
	openTestDB(t)

	if err := InsertIndexerLog(IndexerLog{Height: 1, BlockHash: "h1"}); err != nil {
		t.Fatalf("InsertIndexerLog: %v", err)
	}
	if err := InsertIndexerLog(IndexerLog{Height: 2, BlockHash: "h2"}); err != nil {
		t.Fatalf("InsertIndexerLog: %v", err)
	}
	if err := UpdateIndexerReorg(2, 2); err != nil {
		t.Fatalf("UpdateIndexerReorg: %v", err)
	}

	logs, err := QueryUnReorgIndexerLogs(10, 0)
	if err != nil {
		t.Fatalf("QueryUnReorgIndexerLogs: %v", err)
	}
	for _, l := range logs {
		if l.Height == 2 {
			t.Errorf("QueryUnReorgIndexerLogs returned height 2, which was flagged as reorged")
		}
	}
	if len(logs) != 1 || logs[0].Height != 1 {
		t.Errorf("QueryUnReorgIndexerLogs = %+v, want only height 1", logs)
	}
}

func TestInsertAndQueryReorgLog(t *testing.T) {
	openTestDB(t)

	if err := InsertReorgLog(ReorgLog{Height: 5, EndHeight: 8, BlockHash: "old", NewBlockHash: "new", Status: 0}); err != nil {
		t.Fatalf("InsertReorgLog: %v", err)
	}
	if err := UpdateReorgStatus(5, 1); err != nil {
		t.Fatalf("UpdateReorgStatus: %v", err)
	}

	logs, err := QueryReorgLogs(10, 0)
	if err != nil {
		t.Fatalf("QueryReorgLogs: %v", err)
	}
	if len(logs) != 1 || logs[0].Status != 1 {
		t.Errorf("QueryReorgLogs = %+v, want Status=1 after UpdateReorgStatus", logs)
	}
}

func TestInsertAndQueryErrLog(t *testing.T) {
	openTestDB(t)

	if err := InsertErrLog(ErrLog{ErrType: "parse", Height: 3, BlockHash: "h3", ErrorMessage: "bad block"}); err != nil {
		t.Fatalf("InsertErrLog: %v", err)
	}
	logs, err := QueryErrLogs(10, 0)
	if err != nil {
		t.Fatalf("QueryErrLogs: %v", err)
	}
	if len(logs) != 1 || logs[0].ErrorMessage != "bad block" {
		t.Errorf("QueryErrLogs = %+v, want one row with message 'bad block'", logs)
	}
}
