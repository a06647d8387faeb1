// Package events provides a small typed publish/subscribe bus used to notify
// observers (the TUI, CLI narration) about session and playback changes.
package events

import (
	"sync"

	"github.com/google/uuid"
)

// Bus delivers values of type T to every subscriber in subscription order.
//
// Handlers run synchronously on the publishing goroutine, outside the bus lock,
// so a handler may subscribe or unsubscribe without deadlocking.
type Bus[T any] struct {
	mu    sync.RWMutex
	order []string
	subs  map[string]func(T)
}

func NewBus[T any]() *Bus[T] {
	return &Bus[T]{subs: make(map[string]func(T))}
}

// Subscribe registers fn and returns a function that removes it.
// Calling the returned function more than once is a no-op.
func (b *Bus[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	id := uuid.NewString()

	b.mu.Lock()
	b.subs[id] = fn
	b.order = append(b.order, id)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus[T]) remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subs, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i:i], b.order[i+1:]...)
			break
		}
	}
}

// Publish calls every current subscriber with v.
func (b *Bus[T]) Publish(v T) {
	b.mu.RLock()
	handlers := make([]func(T), 0, len(b.order))
	for _, id := range b.order {
		handlers = append(handlers, b.subs[id])
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(v)
	}
}

// Len reports the number of subscribers.
func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
