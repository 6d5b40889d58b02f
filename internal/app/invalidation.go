package app

import (
	"sync"
	"time"

	"github.com/evanschultz/reeldesk/internal/domain"
)

// Invalidation tells subscribers a collection must be refetched.
type Invalidation struct {
	Collection domain.Collection `json:"collection"`
	At         time.Time         `json:"at"`
}

// Invalidations fans invalidation events out to subscribers.
// Sends never block: a subscriber that has not drained its last event
// coalesces the next one into it.
type Invalidations struct {
	mu   sync.Mutex
	subs map[chan Invalidation]domain.Collection
}

// NewInvalidations constructs an empty hub.
func NewInvalidations() *Invalidations {
	return &Invalidations{subs: make(map[chan Invalidation]domain.Collection)}
}

// Subscribe registers for one collection, or every collection when empty.
// The returned func unsubscribes and closes the channel.
func (h *Invalidations) Subscribe(collection domain.Collection) (<-chan Invalidation, func()) {
	ch := make(chan Invalidation, 1)
	h.mu.Lock()
	h.subs[ch] = collection
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers inv to every matching subscriber.
func (h *Invalidations) Publish(inv Invalidation) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch, collection := range h.subs {
		if collection != "" && collection != inv.Collection {
			continue
		}
		select {
		case ch <- inv:
		default:
		}
	}
}

// Subscribers reports the current subscriber count.
func (h *Invalidations) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
