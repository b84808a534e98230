// Package event provides a small typed publish/subscribe bus. The menu loader
// publishes every state transition on one; the websocket hub and tests
// subscribe to it.
package event

import (
	"sync"
)

// Handler receives a published payload.
type Handler[T any] func(payload T)

// Bus dispatches payloads of type T to registered listeners. The zero value
// is ready to use.
type Bus[T any] struct {
	mu       sync.RWMutex
	next     int
	handlers map[int]Handler[T]
}

// Listen registers h and returns a function that removes it.
func (b *Bus[T]) Listen(h Handler[T]) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers == nil {
		b.handlers = map[int]Handler[T]{}
	}
	id := b.next
	b.next++
	b.handlers[id] = h

	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

func (b *Bus[T]) snapshot() []Handler[T] {
	b.mu.RLock()
	defer b.mu.RUnlock()
	hs := make([]Handler[T], 0, len(b.handlers))
	for _, h := range b.handlers {
		hs = append(hs, h)
	}
	return hs
}

// Fire dispatches payload synchronously to all registered listeners.
func (b *Bus[T]) Fire(payload T) {
	for _, h := range b.snapshot() {
		h(payload)
	}
}

// FireAsync dispatches payload to all listeners concurrently.
// It returns immediately without waiting for handlers to complete.
func (b *Bus[T]) FireAsync(payload T) {
	for _, h := range b.snapshot() {
		go h(payload)
	}
}

// Len reports the number of registered listeners.
func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}

// Flush removes all listeners.
func (b *Bus[T]) Flush() {
	b.mu.Lock()
	b.handlers = nil
	b.mu.Unlock()
}
