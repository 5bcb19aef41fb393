package notify

import (
	"context"
	"sync"
)

// Broker is the raw transport for change events. Implementations
// deliver at-least-once with no ordering guarantee across channels.
type Broker interface {
	Publish(ctx context.Context, channel string, ev Event) error
	Subscribe(ctx context.Context, channel string, h Handler) (func(), error)
	Close() error
}

// memoryBroker is the in-process Broker used when no remote bus is
// configured. Publish dispatches synchronously on the caller's
// goroutine.
type memoryBroker struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]Handler
	closed bool
}

// NewMemoryBroker creates an in-process broker.
func NewMemoryBroker() Broker {
	return &memoryBroker{subs: make(map[string]map[int]Handler)}
}

func (b *memoryBroker) Publish(_ context.Context, channel string, ev Event) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	handlers := make([]Handler, 0, len(b.subs[channel]))
	for _, h := range b.subs[channel] {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
	return nil
}

func (b *memoryBroker) Subscribe(_ context.Context, channel string, h Handler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[int]Handler)
	}
	id := b.nextID
	b.nextID++
	b.subs[channel][id] = h

	teardown := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[channel], id)
	}
	return teardown, nil
}

func (b *memoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[string]map[int]Handler)
	b.closed = true
	return nil
}
