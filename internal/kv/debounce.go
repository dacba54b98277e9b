package kv

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultDebounce is the quiet period before a pending write is flushed.
const DefaultDebounce = 420 * time.Millisecond

type pendingWrite struct {
	value string
	gen   uint64
	timer *time.Timer
}

// Debouncer coalesces writes per key: only the last value written within the
// quiet period reaches the store.
type Debouncer struct {
	store  Store
	delay  time.Duration
	logger *slog.Logger

	// writeMu serializes timer writes with Flush.
	writeMu sync.Mutex

	mu      sync.Mutex
	gen     uint64
	pending map[string]*pendingWrite
}

// NewDebouncer wraps store. A non-positive delay selects DefaultDebounce.
func NewDebouncer(store Store, delay time.Duration, logger *slog.Logger) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Debouncer{
		store:   store,
		delay:   delay,
		logger:  logger,
		pending: make(map[string]*pendingWrite),
	}
}

// Set schedules value to be written to key once the key has been quiet for
// the debounce delay.
func (d *Debouncer) Set(key, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.pending[key]; ok {
		prev.timer.Stop()
	}
	d.gen++
	gen := d.gen
	w := &pendingWrite{value: value, gen: gen}
	w.timer = time.AfterFunc(d.delay, func() { d.fire(key, gen) })
	d.pending[key] = w
}

// Pending reports how many keys are waiting to be written.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Flush writes every pending value immediately. It waits for any write
// already started by the timer.
func (d *Debouncer) Flush(ctx context.Context) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	d.mu.Lock()
	batch := make(map[string]string, len(d.pending))
	for key, w := range d.pending {
		w.timer.Stop()
		batch[key] = w.value
	}
	d.pending = make(map[string]*pendingWrite)
	d.mu.Unlock()

	var errs []error
	for key, value := range batch {
		if err := d.store.Set(ctx, key, value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Debouncer) fire(key string, gen uint64) {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	d.mu.Lock()
	w, ok := d.pending[key]
	if !ok || w.gen != gen {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.mu.Unlock()

	if err := d.store.Set(context.Background(), key, w.value); err != nil {
		d.logger.Warn("persist state", "key", key, "error", err)
	}
}

// Persisted is a JSON-encoded value kept in memory and saved through a
// Debouncer on every change.
type Persisted[T any] struct {
	key string
	deb *Debouncer

	mu    sync.RWMutex
	value T
}

// Load reads key from store, falling back to initial when the key is missing
// or holds invalid JSON.
func Load[T any](ctx context.Context, store Store, deb *Debouncer, key string, initial T) *Persisted[T] {
	p := &Persisted[T]{key: key, deb: deb, value: initial}
	raw, err := store.Get(ctx, key)
	if err != nil {
		return p
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		p.value = v
	}
	return p
}

// Get returns the current value.
func (p *Persisted[T]) Get() T {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// Set replaces the value and schedules it for persistence.
func (p *Persisted[T]) Set(v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.value = v
	p.mu.Unlock()
	p.deb.Set(p.key, string(data))
	return nil
}

// Update applies fn to the current value and persists the result.
func (p *Persisted[T]) Update(fn func(T) T) error {
	p.mu.Lock()
	next := fn(p.value)
	p.mu.Unlock()
	return p.Set(next)
}
