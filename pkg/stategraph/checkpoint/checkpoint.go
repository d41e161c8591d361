package checkpoint

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Version is the current checkpoint format version.
// Increment when making breaking changes to checkpoint structure.
const Version = 1

// Checkpoint is the persisted snapshot of execution state after a step.
// It contains everything needed to resume a thread and to reconstruct
// its history.
type Checkpoint struct {
	// Metadata
	Version   int       `json:"version"`
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	Step      int       `json:"step"`
	Timestamp time.Time `json:"timestamp"`

	// Execution state
	NodeID   string          `json:"node_id"`
	State    json.RawMessage `json:"state"`
	NextNode string          `json:"next_node"`

	// Execution context
	Attempt    int    `json:"attempt"`
	PrevNodeID string `json:"prev_node_id,omitempty"`

	// Source records what produced this checkpoint:
	// "step" (normal node execution), "interrupt", or "update"
	// (external state mutation while paused).
	Source string `json:"source,omitempty"`

	// Interrupt marker. When Interrupted is true the thread is paused
	// and NextNode is the node to execute on resume. InterruptValue
	// carries the payload raised by a dynamic interrupt.
	Interrupted    bool            `json:"interrupted,omitempty"`
	InterruptValue json.RawMessage `json:"interrupt_value,omitempty"`
}

// Marshal serializes a checkpoint to JSON.
func (c *Checkpoint) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Unmarshal deserializes a checkpoint from JSON.
func Unmarshal(data []byte) (*Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// New creates a new checkpoint for a thread at the given step.
// State must already be JSON-serialized.
func New(threadID string, step int, nodeID string, state []byte, nextNode string) *Checkpoint {
	return &Checkpoint{
		Version:   Version,
		ID:        uuid.New().String(),
		ThreadID:  threadID,
		Step:      step,
		Timestamp: time.Now().UTC(),
		NodeID:    nodeID,
		State:     state,
		NextNode:  nextNode,
		Attempt:   1,
		Source:    SourceStep,
	}
}

// Checkpoint sources.
const (
	SourceStep      = "step"
	SourceInterrupt = "interrupt"
	SourceUpdate    = "update"
)

// WithAttempt sets the attempt number for retry tracking.
func (c *Checkpoint) WithAttempt(attempt int) *Checkpoint {
	c.Attempt = attempt
	return c
}

// WithPrevNode sets the previous node ID for debugging.
func (c *Checkpoint) WithPrevNode(prevNodeID string) *Checkpoint {
	c.PrevNodeID = prevNodeID
	return c
}

// WithSource sets the checkpoint source.
func (c *Checkpoint) WithSource(source string) *Checkpoint {
	c.Source = source
	return c
}

// WithInterrupt marks the checkpoint as an interrupt pause point.
// Value may be nil for static pause points.
func (c *Checkpoint) WithInterrupt(value json.RawMessage) *Checkpoint {
	c.Interrupted = true
	c.InterruptValue = value
	c.Source = SourceInterrupt
	return c
}
