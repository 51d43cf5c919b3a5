// Package events provides structured event recording for the ledger engine.
// Events capture the externally observable occurrences of each component:
// gift lifecycle transitions, card registrations and uses, oracle trades,
// withdrawals and registry cuts.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType classifies the kind of engine event.
type EventType string

const (
	// Gift lifecycle events
	EventGiftCreated EventType = "gift.created"
	EventGiftClaimed EventType = "gift.claimed"
	EventGiftOpened  EventType = "gift.opened"

	// Card marketplace events
	EventCardAdded    EventType = "card.added"
	EventCardEnabled  EventType = "card.enabled"
	EventCardApproved EventType = "card.approved"
	EventCardUsed     EventType = "card.used"

	// Ledger events
	EventTaxWithdrawn      EventType = "ledger.tax_withdrawn"
	EventEarningsWithdrawn EventType = "ledger.earnings_withdrawn"

	// Oracle events
	EventPriceSet EventType = "oracle.price_set"
	EventTrade    EventType = "oracle.trade"

	// Registry events
	EventCut              EventType = "registry.cut"
	EventAdminTransferred EventType = "registry.admin_transferred"
)

// Event is a single recorded occurrence.
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Module    string            `json:"module,omitempty"`
	Message   string            `json:"message,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// Sink receives recorded events.
type Sink interface {
	Consume(evt Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(evt Event)

// Consume implements Sink.
func (f SinkFunc) Consume(evt Event) { f(evt) }

// Recorder buffers recent events and fans them out to registered sinks.
// A nil Recorder is valid and records nothing.
type Recorder struct {
	mu     sync.RWMutex
	buf    []Event
	max    int
	sinks  []Sink
	nextIx int
}

// NewRecorder creates a recorder retaining up to max recent events.
func NewRecorder(max int) *Recorder {
	if max <= 0 {
		max = 1024
	}
	return &Recorder{max: max}
}

// AddSink registers a sink for all future events.
func (r *Recorder) AddSink(s Sink) {
	if r == nil || s == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, s)
}

// Emit records an event, stamping id and timestamp if unset.
func (r *Recorder) Emit(evt Event) {
	if r == nil {
		return
	}
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	r.mu.Lock()
	if len(r.buf) < r.max {
		r.buf = append(r.buf, evt)
	} else {
		r.buf[r.nextIx%r.max] = evt
		r.nextIx++
	}
	sinks := append([]Sink(nil), r.sinks...)
	r.mu.Unlock()

	for _, s := range sinks {
		s.Consume(evt)
	}
}

// Recent returns a copy of the retained events in recording order.
func (r *Recorder) Recent() []Event {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Event, 0, len(r.buf))
	if len(r.buf) < r.max {
		return append(out, r.buf...)
	}
	start := r.nextIx % r.max
	out = append(out, r.buf[start:]...)
	return append(out, r.buf[:start]...)
}
