package event

import (
	"log"
	"runtime/debug"
	"sync"
)

// Handler receives one event. Handlers run synchronously on the
// publisher's goroutine: the tree dispatches from a single goroutine and
// relies on that to preserve its per-tree total event order.
type Handler func(Event)

// streamAll is the subscription key covering every event type.
const streamAll = "*"

// Bus fans tree and outline events out to observers. A subscription
// covers either one event type or the whole stream; the outline
// synchronizer follows the whole stream, narrower observers filter by
// type.
type Bus struct {
	mu     sync.RWMutex
	lastID uint64
	subs   map[string][]subscriber // event type (or streamAll) -> subscribers
}

type subscriber struct {
	id uint64
	fn Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]subscriber)}
}

// Subscribe registers a handler for one event type and returns a func
// that removes the subscription. Unsubscribing more than once is
// harmless.
func (b *Bus) Subscribe(eventType string, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastID++
	id := b.lastID
	b.subs[eventType] = append(b.subs[eventType], subscriber{id: id, fn: h})

	return func() { b.remove(eventType, id) }
}

// SubscribeAll registers a handler for every event published on the bus.
func (b *Bus) SubscribeAll(h Handler) (unsubscribe func()) {
	return b.Subscribe(streamAll, h)
}

func (b *Bus) remove(eventType string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[eventType]
	for i, s := range subs {
		if s.id == id {
			b.subs[eventType] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Publish delivers an event to its type subscribers first, then to
// whole-stream subscribers, each group in subscription order. Handlers
// registered or removed during delivery take effect from the next
// Publish.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	typed := append([]subscriber(nil), b.subs[e.EventType()]...)
	stream := append([]subscriber(nil), b.subs[streamAll]...)
	b.mu.RUnlock()

	for _, s := range typed {
		deliver(s.fn, e)
	}
	for _, s := range stream {
		deliver(s.fn, e)
	}
}

// deliver invokes one handler. A panicking handler is logged and skipped
// so it cannot starve delivery to the others.
func deliver(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: event handler panicked for %s: %v\n%s",
				e.EventType(), r, debug.Stack())
		}
	}()
	h(e)
}
