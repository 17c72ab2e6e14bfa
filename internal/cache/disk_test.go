package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDiskStoreWriteAndRead(t *testing.T) {
	store := newTestDiskStore(t)
	key := MustNormalize("https://example.com/v2/library/sample/blob")

	payload := NewPayload([]byte("payload"), SourceNetwork)
	if err := store.Write(context.Background(), key, payload); err != nil {
		t.Fatalf("write error: %v", err)
	}

	got, ok := store.TryRead(context.Background(), key)
	if !ok {
		t.Fatalf("expected disk hit")
	}
	if string(got.Bytes()) != "payload" {
		t.Fatalf("cached payload mismatch: %s", got.Bytes())
	}
	if got.Source() != SourceDisk {
		t.Fatalf("disk reads should be tagged disk, got %s", got.Source())
	}
}

func TestDiskStorePathIsDeterministic(t *testing.T) {
	store := newTestDiskStore(t)
	a := store.PathFor(MustNormalize("https://example.com/a"))
	b := store.PathFor(MustNormalize("HTTPS://example.com:443/a"))
	if a != b {
		t.Fatalf("equivalent keys should map to one file: %s vs %s", a, b)
	}
	if filepath.Dir(a) != store.Dir() || len(filepath.Base(a)) != 16 {
		t.Fatalf("unexpected file layout: %s", a)
	}
}

func TestDiskStoreMissing(t *testing.T) {
	store := newTestDiskStore(t)
	key := MustNormalize("https://example.com/missing")
	if _, ok := store.TryRead(context.Background(), key); ok {
		t.Fatalf("expected miss")
	}
	if _, err := store.read(context.Background(), key); !errors.Is(err, ErrDiskMiss) {
		t.Fatalf("expected ErrDiskMiss, got %v", err)
	}
}

func TestDiskStoreIgnoresDirectories(t *testing.T) {
	store := newTestDiskStore(t)
	key := MustNormalize("https://example.com/dir")
	if err := os.MkdirAll(store.PathFor(key), 0o755); err != nil {
		t.Fatalf("mkdir error: %v", err)
	}
	if _, ok := store.TryRead(context.Background(), key); ok {
		t.Fatalf("directories should be treated as misses")
	}
}

func TestDiskStoreHonoursCancelledContext(t *testing.T) {
	store := newTestDiskStore(t)
	key := MustNormalize("https://example.com/cancel")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Write(ctx, key, NewPayload([]byte("x"), SourceNetwork)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := os.Stat(store.PathFor(key)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("cancelled write must not leave a file behind")
	}
	entries, _ := os.ReadDir(store.Dir())
	if len(entries) != 0 {
		t.Fatalf("temp files should be cleaned up, found %d entries", len(entries))
	}
}

func TestNewDiskStoreRequiresPath(t *testing.T) {
	if _, err := NewDiskStore(""); err == nil {
		t.Fatalf("empty path should be rejected")
	}
}

// newTestDiskStore returns a DiskStore backed by a temporary directory.
func newTestDiskStore(t *testing.T) *DiskStore {
	t.Helper()
	store, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}
