package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestManualBackupCopiesStoreContents(t *testing.T) {
	store := openTestStore(t)
	if err := store.Set("k1", []byte("v1")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	meta := openTestMetaStore(t)
	if err := meta.Set([]byte("highestblock"), []byte("00000042")); err != nil {
		t.Fatalf("Set meta: %v", err)
	}

	backupDir := t.TempDir()
	bm := NewBackupManager(backupDir, store, meta)
	if err := bm.ManualBackup(); err != nil {
		t.Fatalf("ManualBackup: %v", err)
	}

	entries, err := os.ReadDir(backupDir)
	if err != nil {
		t.Fatalf("ReadDir(backupDir): %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("backup directory entries = %d, want 1", len(entries))
	}

	restored, err := Open(filepath.Join(backupDir, entries[0].Name(), "index"))
	if err != nil {
		t.Fatalf("open backed-up index store: %v", err)
	}
	defer restored.Close()

	got, err := restored.Get("k1")
	if err != nil || string(got) != "v1" {
		t.Errorf("backed-up store Get(k1) = (%q, %v), want (v1, nil)", got, err)
	}
}

func TestStatusReportsBackupDirs(t *testing.T) {
	store := openTestStore(t)
	meta := openTestMetaStore(t)
	backupDir := t.TempDir()
	bm := NewBackupManager(backupDir, store, meta)

	if err := bm.ManualBackup(); err != nil {
		t.Fatalf("ManualBackup: %v", err)
	}

	status := bm.Status()
	count, ok := status["backup_count"].(int)
	if !ok || count != 1 {
		t.Errorf("Status()[backup_count] = %v, want 1", status["backup_count"])
	}
}
