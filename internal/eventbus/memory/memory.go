package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/ccheshirecat/swarmctl/internal/eventbus"
)

// Bus is an in-memory fan-out bus for a single process.
type Bus struct {
	mu      sync.RWMutex
	topics  map[string][]chan<- any
	dropped atomic.Uint64
}

var _ eventbus.Bus = (*Bus)(nil)

// New creates a new Bus instance.
func New() *Bus {
	return &Bus{topics: make(map[string][]chan<- any)}
}

// Publish fans payload out to every subscriber of topic.
func (b *Bus) Publish(ctx context.Context, topic string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.topics[topic] {
		select {
		case ch <- payload:
		default:
			b.dropped.Add(1)
		}
	}
	return nil
}

// Subscribe registers a channel for a topic. The returned func removes it.
func (b *Bus) Subscribe(topic string, ch chan<- any) (func(), error) {
	if ch == nil {
		return nil, errors.New("eventbus: channel must not be nil")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics[topic] = append(b.topics[topic], ch)

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(topic, ch) })
	}, nil
}

// Subscribers reports how many channels listen on topic.
func (b *Bus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Dropped reports how many deliveries were skipped because a subscriber was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *Bus) remove(topic string, ch chan<- any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.topics[topic]
	for i := range subs {
		if subs[i] == ch {
			b.topics[topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.topics[topic]) == 0 {
		delete(b.topics, topic)
	}
}
