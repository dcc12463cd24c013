// Package fanout implements the per-extractor multicast hub (§4.4
// "Fan-out Hub"): each emitted message is delivered to every live
// subscriber over a capacity-1 channel, with a blocking send so a slow
// subscriber back-pressures the whole hub rather than dropping messages.
package fanout

import (
	"sync"

	"github.com/google/uuid"

	"github.com/synnergy-labs/chain-indexer/internal/models"
)

type subscriber struct {
	ch   chan models.BlockChanges
	done chan struct{}
}

// Hub is one extractor's subscription table: subscriber id -> outbound
// channel. Grounded on the teacher's indexing_node.go mutex-guarded map
// idiom, generalized from []byte topics to a single typed message stream
// per hub (one hub per extractor, not one per topic). Subscriber ids are
// uuid.UUID rather than a counter so a Handle can safely hand one to a
// caller without leaking how many subscribers have ever existed.
type Hub struct {
	mu       sync.Mutex
	channels map[uuid.UUID]subscriber
}

// New returns an empty hub.
func New() *Hub {
	return &Hub{channels: make(map[uuid.UUID]subscriber)}
}

// Subscribe registers a new subscriber under a fresh id and returns its
// receive-only channel. Never dedupes: the same caller may subscribe more
// than once and gets an independent channel each time (§4.3 "never
// dedupe").
func (h *Hub) Subscribe() (id uuid.UUID, ch <-chan models.BlockChanges) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id = uuid.New()
	sub := subscriber{ch: make(chan models.BlockChanges, 1), done: make(chan struct{})}
	h.channels[id] = sub
	return id, sub.ch
}

// Unsubscribe signals that a subscriber has gone away: Emit's blocking
// send on this subscriber's channel unblocks via its done channel instead
// of waiting forever, and the subscriber is removed from the table right
// away. Safe to call more than once.
func (h *Hub) Unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.channels[id]; ok {
		close(sub.done)
		delete(h.channels, id)
	}
}

// Emit delivers msg to every live subscriber (§4.4 steps 1-3): a blocking
// send per subscriber, except a subscriber that signals done (via
// Unsubscribe) while its send is pending is treated the same as a failed
// send and skipped rather than blocking the rest of the loop forever.
func (h *Hub) Emit(msg models.BlockChanges) {
	h.mu.Lock()
	subs := make([]subscriber, 0, len(h.channels))
	for _, sub := range h.channels {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.ch <- msg:
		case <-sub.done:
		}
	}
}

// Len reports the current subscriber count, mainly for metrics/tests.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.channels)
}

// CloseAll unsubscribes every current subscriber, used when the owning
// extractor stops (§4.3 "outstanding subscribers receive no further
// messages").
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.channels {
		close(sub.done)
		delete(h.channels, id)
	}
}
