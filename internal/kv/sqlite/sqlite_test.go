package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ccheshirecat/swarmctl/internal/kv"
)

func TestStoreSetGetDelete(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	t.Cleanup(func() { _ = store.Close(ctx) })

	if _, err := store.Get(ctx, kv.TokenKey); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.Set(ctx, kv.TokenKey, "jwt-1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, kv.TokenKey, "jwt-2"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := store.Get(ctx, kv.TokenKey)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "jwt-2" {
		t.Fatalf("expected last write to win, got %q", got)
	}

	if err := store.Delete(ctx, kv.TokenKey); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, kv.TokenKey); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.db")

	first, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := first.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := first.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = second.Close(ctx) }()
	got, err := second.Get(ctx, "k")
	if err != nil || got != "v" {
		t.Fatalf("value not persisted: %q %v", got, err)
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	return store
}
