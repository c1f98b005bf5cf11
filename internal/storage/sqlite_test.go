package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/c2h5oh/datasize"
)

func newTestSQLiteStore(t *testing.T, opts ...SQLiteOption) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "crisim.db"), opts...)
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestSQLiteStoreContract(t *testing.T) {
	exerciseStore(t, newTestSQLiteStore(t))
}

func TestSQLiteStoreCacheSize(t *testing.T) {
	store := newTestSQLiteStore(t, WithCacheSize(8*datasize.MB))
	kib, err := store.CacheSizeKiB(context.Background())
	if err != nil {
		t.Fatalf("cache size: %v", err)
	}
	if kib != 8*1024 {
		t.Fatalf("unexpected cache size: got=%d want=%d", kib, 8*1024)
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "crisim.db")

	first := NewSQLiteStore(path)
	if err := first.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := first.SaveTrace(ctx, sampleTrace("t1", "n1", "2026-01-01T00:00:00Z")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second := NewSQLiteStore(path)
	if err := second.Init(ctx); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() {
		_ = second.Close()
	})
	trace, ok, err := second.GetTrace(ctx, "t1")
	if err != nil || !ok {
		t.Fatalf("get after reopen: ok=%v err=%v", ok, err)
	}
	if len(trace.Outputs) != 2 {
		t.Fatalf("unexpected trace: %+v", trace)
	}
}

func TestSQLiteStoreRequiresInit(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "crisim.db"))
	if _, _, err := store.GetTrace(context.Background(), "t1"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if err := NewSQLiteStore("").Init(context.Background()); err == nil {
		t.Fatal("expected missing path error")
	}
}
