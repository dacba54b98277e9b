package kv

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDebouncerCoalescesWrites(t *testing.T) {
	store := NewMemory()
	deb := NewDebouncer(store, 20*time.Millisecond, discardLogger())

	deb.Set("ui", `{"n":1}`)
	deb.Set("ui", `{"n":2}`)
	deb.Set("ui", `{"n":3}`)

	deadline := time.Now().Add(2 * time.Second)
	for deb.Pending() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if deb.Pending() != 0 {
		t.Fatalf("write never flushed")
	}
	if err := deb.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	got, err := store.Get(context.Background(), "ui")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != `{"n":3}` {
		t.Fatalf("expected last value, got %s", got)
	}
	if store.Writes() != 1 {
		t.Fatalf("expected a single write, got %d", store.Writes())
	}
}

func TestDebouncerFlushWritesImmediately(t *testing.T) {
	store := NewMemory()
	deb := NewDebouncer(store, time.Hour, discardLogger())
	deb.Set("a", "1")
	deb.Set("b", "2")

	if err := deb.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if deb.Pending() != 0 {
		t.Fatalf("pending writes remain after flush")
	}
	for key, want := range map[string]string{"a": "1", "b": "2"} {
		got, err := store.Get(context.Background(), key)
		if err != nil || got != want {
			t.Fatalf("key %s: got %q err %v", key, got, err)
		}
	}
}

type gatedStore struct {
	*Memory
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) Set(ctx context.Context, key, value string) error {
	g.entered <- struct{}{}
	<-g.release
	return g.Memory.Set(ctx, key, value)
}

func TestDebouncerFlushWaitsForTimerWrite(t *testing.T) {
	store := &gatedStore{Memory: NewMemory(), entered: make(chan struct{}, 1), release: make(chan struct{})}
	deb := NewDebouncer(store, time.Millisecond, discardLogger())
	deb.Set("ui", "last")

	select {
	case <-store.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("timer write never started")
	}

	flushed := make(chan error, 1)
	go func() { flushed <- deb.Flush(context.Background()) }()
	select {
	case err := <-flushed:
		t.Fatalf("flush returned before the timer write finished: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(store.release)
	select {
	case err := <-flushed:
		if err != nil {
			t.Fatalf("flush: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("flush never returned")
	}
	if got, err := store.Get(context.Background(), "ui"); err != nil || got != "last" {
		t.Fatalf("got %q err %v", got, err)
	}
}

func TestPersistedLoadFallsBackToInitial(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	_ = store.Set(ctx, "broken", "{not json")
	deb := NewDebouncer(store, time.Hour, discardLogger())

	missing := Load(ctx, store, deb, "missing", []string{"a"})
	if got := missing.Get(); len(got) != 1 || got[0] != "a" {
		t.Fatalf("expected initial value, got %v", got)
	}
	broken := Load(ctx, store, deb, "broken", 7)
	if broken.Get() != 7 {
		t.Fatalf("expected initial value for invalid json, got %v", broken.Get())
	}
}

func TestPersistedRoundTripThroughDebouncer(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	deb := NewDebouncer(store, time.Hour, discardLogger())

	type prefs struct {
		Tag    string `json:"tag"`
		Follow bool   `json:"follow"`
	}
	p := Load(ctx, store, deb, "prefs", prefs{})
	if err := p.Update(func(v prefs) prefs { v.Tag = "lnd1"; return v }); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := deb.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	reloaded := Load(ctx, store, deb, "prefs", prefs{})
	if reloaded.Get().Tag != "lnd1" {
		t.Fatalf("expected persisted tag, got %+v", reloaded.Get())
	}
}
