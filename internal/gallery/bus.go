package gallery

import "sync"

// RefreshRequested tells gallery views of OwnerID that the owner's sessions
// may have changed.
type RefreshRequested struct {
	OwnerID string
}

// Bus is an in-process publish/subscribe channel for refresh requests.
// Handlers run on the publisher's goroutine and must not block.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]func(RefreshRequested)
}

func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]func(RefreshRequested))}
}

// Subscribe registers fn and returns a func that removes it. Calling the
// returned func more than once is harmless.
func (b *Bus) Subscribe(fn func(RefreshRequested)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

func (b *Bus) Publish(ev RefreshRequested) {
	b.mu.RLock()
	handlers := make([]func(RefreshRequested), 0, len(b.subs))
	for _, fn := range b.subs {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(ev)
	}
}

func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
