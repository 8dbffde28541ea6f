package events

import (
	"strings"
	"sync"

	"sidekick/core/types"
)

// payloadCarrier is implemented by engine events that wrap a structured
// payload.
type payloadCarrier interface {
	Event() *types.Event
}

// Collector retains the most recent emitted events in a bounded ring so the
// RPC surface can serve them to pollers.
type Collector struct {
	mu     sync.Mutex
	limit  int
	seq    int64
	events []CollectedEvent
}

// CollectedEvent pairs an emitted event with its assigned sequence number.
type CollectedEvent struct {
	Sequence int64
	Type     string
	Event    *types.Event
}

// NewCollector creates a collector retaining up to limit events.
func NewCollector(limit int) *Collector {
	if limit <= 0 {
		limit = 1024
	}
	return &Collector{limit: limit}
}

// Emit implements the Emitter interface.
func (c *Collector) Emit(event Event) {
	if c == nil || event == nil {
		return
	}
	var payload *types.Event
	if carrier, ok := event.(payloadCarrier); ok {
		payload = carrier.Event()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.events = append(c.events, CollectedEvent{
		Sequence: c.seq,
		Type:     event.EventType(),
		Event:    payload,
	})
	if len(c.events) > c.limit {
		c.events = c.events[len(c.events)-c.limit:]
	}
}

// List returns the retained events newest-last, optionally filtered by type
// prefix and capped at limit entries from the tail.
func (c *Collector) List(prefix string, limit int) []CollectedEvent {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	filtered := make([]CollectedEvent, 0, len(c.events))
	for _, evt := range c.events {
		if prefix != "" && !strings.HasPrefix(evt.Type, prefix) {
			continue
		}
		filtered = append(filtered, evt)
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	return filtered
}
