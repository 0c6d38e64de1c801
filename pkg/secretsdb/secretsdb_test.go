package secretsdb

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestFileStorePutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "secrets.json"))

	if err := store.Put("alice", []byte("ciphertext-blob")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get("alice")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "ciphertext-blob" {
		t.Errorf("got %q, want %q", got, "ciphertext-blob")
	}
}

func TestFileStoreGetMissingKey(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "secrets.json"))
	if _, err := store.Get("nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFileStoreLoadsPersistedEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")

	first := NewFileStore(path)
	if err := first.Put("bob", []byte("v1")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	second := NewFileStore(path)
	if err := second.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	got, err := second.Get("bob")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "v1" {
		t.Errorf("got %q, want %q", got, "v1")
	}
}

func TestMemStore(t *testing.T) {
	store := NewMemStore()
	if _, err := store.Get("x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound before Put, got %v", err)
	}
	if err := store.Put("x", []byte("y")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := store.Get("x")
	if err != nil || string(got) != "y" {
		t.Errorf("Get after Put = %q, %v, want %q, nil", got, err, "y")
	}
}
