package storage

import (
	"errors"
	"testing"
)

func openTestMetaStore(t *testing.T) *MetaStore {
	t.Helper()
	m, err := NewMetaStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewMetaStore: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestMetaStoreGetMissingReturnsErrNotFound(t *testing.T) {
	m := openTestMetaStore(t)
	if _, err := m.Get([]byte("nope")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get on missing key = %v, want ErrNotFound", err)
	}
}

func TestMetaStoreSetGetDelete(t *testing.T) {
	m := openTestMetaStore(t)
	if err := m.Set([]byte("highestblock"), []byte("100")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := m.Get([]byte("highestblock"))
	if err != nil || string(got) != "100" {
		t.Errorf("Get = (%q, %v), want (100, nil)", got, err)
	}
	if err := m.Delete([]byte("highestblock")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := m.Get([]byte("highestblock")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete = %v, want ErrNotFound", err)
	}
}
