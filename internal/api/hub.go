package api

import (
	"sync"
	"sync/atomic"

	"stream-anomaly-alerts/internal/storage"
)

// Hub fans scored samples out to live subscribers. Slow subscribers drop
// samples rather than block the driver loop.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]chan storage.StreamSample
	nextID uint64
	buffer int
	drops  atomic.Uint64
}

// NewHub builds a hub with the given per-subscriber buffer.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 256
	}
	return &Hub{
		subs:   make(map[uint64]chan storage.StreamSample),
		buffer: buffer,
	}
}

// Subscribe registers a new live consumer.
func (h *Hub) Subscribe() (uint64, <-chan storage.StreamSample) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	ch := make(chan storage.StreamSample, h.buffer)
	h.subs[h.nextID] = ch
	return h.nextID, ch
}

// Unsubscribe removes a consumer and closes its channel.
func (h *Hub) Unsubscribe(id uint64) {
	h.mu.Lock()
	ch, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
	}
	h.mu.Unlock()

	if ok {
		close(ch)
	}
}

// Publish sends one sample to every subscriber without blocking.
func (h *Hub) Publish(sample storage.StreamSample) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs {
		select {
		case ch <- sample:
		default:
			h.drops.Add(1)
		}
	}
}

// DropCount reports how many samples were dropped on full buffers.
func (h *Hub) DropCount() uint64 { return h.drops.Load() }

// SubscriberCount reports the number of live consumers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
