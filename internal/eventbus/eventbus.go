// Package eventbus implements the call lifecycle event bus: pub-sub
// distribution to SSE subscribers with a ring buffer for replay-on-
// reconnect, grounded directly on the teacher's internal/ingest/eventbus.go
// (same ring-buffer-plus-subscriber-map shape, generalized from
// trunk-recorder system/talkgroup/unit events to call lifecycle events:
// call_started, node_entered, call_transferred, call_ended, call_failed).
package eventbus

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxswitch/ivr-engine/internal/metrics"
)

// Event is one call lifecycle occurrence delivered to SSE subscribers.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Timestamp string          `json:"timestamp"`
	CallUUID  string          `json:"call_uuid,omitempty"`
	NodeID    int             `json:"node_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Filter narrows a subscription to a subset of event types and/or one call.
type Filter struct {
	Types    []string
	CallUUID string
}

// Data holds the fields needed to publish one event, before ID/timestamp
// assignment.
type Data struct {
	Type     string
	CallUUID string
	NodeID   int
	Payload  any
}

type subscriber struct {
	ch     chan Event
	filter Filter
}

// Bus is the process-wide call lifecycle event bus.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[uint64]subscriber
	nextID      uint64
	seq         atomic.Uint64

	ring     []Event
	ringSize int
	ringHead int
	ringMu   sync.RWMutex
}

// New creates a Bus with the given ring buffer size (event count, not
// duration — size for the reconnect window you want to cover at your
// expected event rate).
func New(ringSize int) *Bus {
	if ringSize <= 0 {
		ringSize = 4096
	}
	return &Bus{
		subscribers: make(map[uint64]subscriber),
		ring:        make([]Event, ringSize),
		ringSize:    ringSize,
	}
}

// Subscribe registers a new subscriber and returns its channel and a cancel
// function that must be called when the subscriber disconnects.
func (b *Bus) Subscribe(filter Filter) (<-chan Event, func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, 64)
	b.subscribers[id] = subscriber{ch: ch, filter: filter}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		delete(b.subscribers, id)
		b.mu.Unlock()
	}
	return ch, cancel
}

// ReplaySince returns buffered events after lastEventID, or all buffered
// events if lastEventID is empty.
func (b *Bus) ReplaySince(lastEventID string, filter Filter) []Event {
	b.ringMu.RLock()
	defer b.ringMu.RUnlock()

	var events []Event
	found := lastEventID == ""
	for i := 0; i < b.ringSize; i++ {
		idx := (b.ringHead + i) % b.ringSize
		e := b.ring[idx]
		if e.ID == "" {
			continue
		}
		if !found {
			if e.ID == lastEventID {
				found = true
			}
			continue
		}
		if matches(e, filter) {
			events = append(events, e)
		}
	}
	return events
}

// Publish builds an Event from d, records it in the ring buffer, and
// distributes it to subscribers whose filter matches. A slow subscriber
// drops the event rather than blocking the publisher.
func (b *Bus) Publish(d Data) {
	payload, err := json.Marshal(d.Payload)
	if err != nil {
		payload = nil
	}

	seq := b.seq.Add(1)
	event := Event{
		ID:        fmt.Sprintf("%d-%d", time.Now().UnixMilli(), seq),
		Type:      d.Type,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		CallUUID:  d.CallUUID,
		NodeID:    d.NodeID,
		Data:      payload,
	}

	b.ringMu.Lock()
	b.ring[b.ringHead] = event
	b.ringHead = (b.ringHead + 1) % b.ringSize
	b.ringMu.Unlock()

	metrics.SSEEventsPublishedTotal.Inc()

	b.mu.RLock()
	for _, sub := range b.subscribers {
		if matches(event, sub.filter) {
			select {
			case sub.ch <- event:
			default:
			}
		}
	}
	b.mu.RUnlock()
}

// SubscriberCount reports the number of currently connected subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func matches(e Event, f Filter) bool {
	if len(f.Types) > 0 {
		match := false
		for _, t := range f.Types {
			if t == e.Type {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	if f.CallUUID != "" && e.CallUUID != "" && f.CallUUID != e.CallUUID {
		return false
	}
	return true
}
