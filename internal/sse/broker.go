// Package sse fans notification events out to connected clients over
// server-sent events. One user may hold several open streams (multiple tabs
// or devices); each stream registers its own channel.
package sse

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Event is one wire-level SSE payload.
type Event struct {
	Type   string          `json:"type"`
	UserID uuid.UUID       `json:"user_id"`
	Data   json.RawMessage `json:"data"`
}

type Broker struct {
	mu      sync.RWMutex
	streams map[uuid.UUID]map[chan Event]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		streams: make(map[uuid.UUID]map[chan Event]struct{}),
	}
}

// Subscribe opens a buffered stream for a user and returns its channel.
func (b *Broker) Subscribe(userID uuid.UUID) chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.streams[userID]; !ok {
		b.streams[userID] = make(map[chan Event]struct{})
	}
	b.streams[userID][ch] = struct{}{}
	log.Printf("📡 [SSE] Subscribed user %s (streams: %d)", userID, len(b.streams[userID]))
	return ch
}

// Unsubscribe closes and removes one stream. Safe to call once per channel.
func (b *Broker) Unsubscribe(userID uuid.UUID, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	userStreams, ok := b.streams[userID]
	if !ok {
		return
	}
	if _, ok := userStreams[ch]; !ok {
		return
	}
	delete(userStreams, ch)
	close(ch)
	if len(userStreams) == 0 {
		delete(b.streams, userID)
	}
	log.Printf("📡 [SSE] Unsubscribed user %s (remaining: %d)", userID, len(userStreams))
}

// Publish marshals the payload once and delivers it to every open stream of
// the user. Streams with a full buffer are skipped rather than blocked on.
func (b *Broker) Publish(userID uuid.UUID, eventType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("❌ [SSE] Failed to marshal %s event: %v", eventType, err)
		return
	}
	event := Event{Type: eventType, UserID: userID, Data: data}

	b.mu.RLock()
	defer b.mu.RUnlock()
	userStreams, ok := b.streams[userID]
	if !ok {
		return
	}
	delivered := 0
	for ch := range userStreams {
		select {
		case ch <- event:
			delivered++
		default:
			log.Printf("⚠️ [SSE] Stream buffer full for user %s, dropping %s event", userID, eventType)
		}
	}
	log.Printf("📡 [SSE] Delivered %s to %d/%d streams for user %s", eventType, delivered, len(userStreams), userID)
}

// StreamCount returns the number of open streams for a user.
func (b *Broker) StreamCount(userID uuid.UUID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.streams[userID])
}

// TotalStreams returns the number of open streams across all users.
func (b *Broker) TotalStreams() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := 0
	for _, userStreams := range b.streams {
		total += len(userStreams)
	}
	return total
}
