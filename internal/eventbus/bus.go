// Package eventbus implements an in-memory pub-sub event bus for session
// lifecycle events. It wraps github.com/simonfxr/pubsub to provide typed
// event publishing and per-subscriber streaming channels, the same shape
// as anvillm's internal/eventbus (there: multi-agent chat events; here:
// Session state transitions for the /debug/events operator feed).
package eventbus

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	ps "github.com/simonfxr/pubsub"
)

// Event type constants, one per Session state transition spec.md §3/§4.3
// names.
const (
	EventCreated    = "created"
	EventRunning    = "running"
	EventIdle       = "idle"
	EventRecovering = "recovering"
	EventTimeout    = "timeout"
	EventClosed     = "closed"
)

// allTopic is the single topic used for all events.
const allTopic = "events"

// Event is the structure for all published events.
type Event struct {
	ID      string `json:"id"`
	TS      int64  `json:"ts"`
	Session string `json:"session"`
	Type    string `json:"type"`
	Data    any    `json:"data,omitempty"`
}

// Bus is an in-memory pub-sub event bus, safe for concurrent use.
type Bus struct {
	bus *ps.Bus
}

// New creates a new Bus.
func New() *Bus {
	return &Bus{bus: ps.NewBus()}
}

// Publish emits an event to all current subscribers. Non-blocking; slow
// subscribers have events dropped rather than stalling the session that
// published them.
func (b *Bus) Publish(session, eventType string, data any) {
	e := &Event{
		ID:      uuid.New().String(),
		TS:      time.Now().Unix(),
		Session: session,
		Type:    eventType,
		Data:    data,
	}
	b.bus.Publish(allTopic, e)
}

// Subscribe returns a read channel that receives *Event values and a
// cancel function. The channel has a buffer of 64 events; events are
// dropped when the buffer is full. Calling cancel removes the
// subscription and closes the channel.
func (b *Bus) Subscribe() (<-chan *Event, func()) {
	ch := make(chan *Event, 64)
	sub := b.bus.SubscribeChan(allTopic, ch, ps.CloseOnUnsubscribe)
	cancel := func() {
		b.bus.Unsubscribe(sub)
	}
	return ch, cancel
}

// MarshalEvent encodes an event as a JSON line (with trailing newline).
func MarshalEvent(e *Event) []byte {
	data, _ := json.Marshal(e)
	return append(data, '\n')
}
