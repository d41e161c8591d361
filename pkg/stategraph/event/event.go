// Package event streams execution lifecycle events from graph runs.
//
// The executor publishes an Event for every run, node, checkpoint,
// interrupt, and fan-out transition when a Bus is attached with
// WithEventBus. Subscribers receive events on buffered channels and can
// filter by type, pause delivery, or subscribe to everything.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Execution event types.
const (
	TypeRunStart     = "run.start"
	TypeRunComplete  = "run.complete"
	TypeRunError     = "run.error"
	TypeRunInterrupt = "run.interrupt"
	TypeNodeStart    = "node.start"
	TypeNodeComplete = "node.complete"
	TypeNodeError    = "node.error"
	TypeCheckpoint   = "checkpoint.saved"
	TypeFanOutStart  = "fanout.start"
	TypeFanOutDone   = "fanout.complete"
)

// Event is one execution lifecycle occurrence.
// Events are immutable once published.
type Event struct {
	// ID uniquely identifies this event.
	ID string `json:"id"`

	// Type is one of the Type* constants.
	Type string `json:"type"`

	// ThreadID is the conversation thread the run belongs to.
	ThreadID string `json:"thread_id"`

	// NodeID is the node involved, if any.
	NodeID string `json:"node_id,omitempty"`

	// Step is the checkpoint step, for checkpoint events.
	Step int `json:"step,omitempty"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// DurationMs is set on completion events.
	DurationMs float64 `json:"duration_ms,omitempty"`

	// Err holds the error message for error events.
	Err string `json:"error,omitempty"`

	// Data carries type-specific extras (fan-out send count, interrupt
	// payloads). May be nil.
	Data map[string]any `json:"data,omitempty"`
}

// New creates an event of the given type for a thread.
func New(eventType, threadID string) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		ThreadID:  threadID,
		Timestamp: time.Now().UTC(),
	}
}

// WithNode sets the node ID.
func (e Event) WithNode(nodeID string) Event {
	e.NodeID = nodeID
	return e
}

// WithStep sets the checkpoint step.
func (e Event) WithStep(step int) Event {
	e.Step = step
	return e
}

// WithDuration sets the duration in milliseconds.
func (e Event) WithDuration(ms float64) Event {
	e.DurationMs = ms
	return e
}

// WithError sets the error message.
func (e Event) WithError(err error) Event {
	if err != nil {
		e.Err = err.Error()
	}
	return e
}

// WithData sets a data field.
func (e Event) WithData(key string, value any) Event {
	if e.Data == nil {
		e.Data = make(map[string]any)
	}
	e.Data[key] = value
	return e
}
