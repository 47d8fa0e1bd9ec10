package notify

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/allocation-service/core/allocation"
)

type SubscriptionID string

// Hub fans committed events out to live subscribers, usually websocket
// clients. A subscriber that is not keeping up misses events rather than
// stalling the bus.
type Hub struct {
	mu   sync.RWMutex
	subs map[SubscriptionID]chan<- allocation.Event
}

func NewHub() *Hub {
	return &Hub{subs: make(map[SubscriptionID]chan<- allocation.Event)}
}

func (h *Hub) Subscribe(ch chan<- allocation.Event) SubscriptionID {
	id := SubscriptionID(uuid.NewString())

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	log.Debug().Interface("clientId", id).Msg("subscribing to events")
	return id
}

// Unsubscribe closes the subscriber's channel. Unknown ids are ignored.
func (h *Hub) Unsubscribe(id SubscriptionID) {
	log.Debug().Interface("clientId", id).Msg("unsubscribing from events")

	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		close(ch)
		delete(h.subs, id)
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Notify is an event handler.
func (h *Hub) Notify(_ context.Context, evt allocation.Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs {
		select {
		case ch <- evt:
			log.Debug().Interface("clientId", id).Str("event", evt.Name()).Msg("notified subscriber")
		default:
			log.Warn().Interface("clientId", id).Str("event", evt.Name()).Msg("subscriber is full, dropping event")
		}
	}
	return nil
}
