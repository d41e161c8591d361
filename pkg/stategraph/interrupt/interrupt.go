// Package interrupt tracks pending human-in-the-loop pauses across threads.
//
// The executor raises a Pending entry when a run hits an interrupt point;
// an external actor (reviewer UI, operator script) lists pending entries,
// inspects or mutates the paused state through the checkpoint store, and
// resolves the entry with an answer before resuming the run.
package interrupt

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/stategraph/pkg/stategraph/registry"
)

// Status of a pending interrupt.
type Status string

// Interrupt status constants.
const (
	StatusPending  Status = "pending"
	StatusResolved Status = "resolved"
)

// Pending is one paused run awaiting external input.
type Pending struct {
	// ID uniquely identifies this interrupt.
	ID string `json:"id"`

	// ThreadID is the paused conversation thread.
	ThreadID string `json:"thread_id"`

	// NodeID is the node the run paused at.
	NodeID string `json:"node_id"`

	// Before is true if the pause happened before the node executed.
	Before bool `json:"before"`

	// Value is the payload raised by a dynamic interrupt (nil for
	// static pause points).
	Value any `json:"value,omitempty"`

	// Answer is the value supplied at resolution, passed to Resume.
	Answer any `json:"answer,omitempty"`

	// Status is pending or resolved.
	Status Status `json:"status"`

	// Timestamps
	RaisedAt   time.Time  `json:"raised_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Sentinel errors.
var (
	// ErrNotPending indicates no pending interrupt exists for the thread.
	ErrNotPending = errors.New("interrupt: no pending interrupt for thread")

	// ErrAlreadyResolved indicates the interrupt was already resolved.
	ErrAlreadyResolved = errors.New("interrupt: already resolved")
)

// Controller tracks pending interrupts by thread.
// A thread has at most one pending interrupt at a time; raising a new
// one replaces a resolved entry.
// Controller is safe for concurrent use. All methods return copies of
// the tracked entries; Resolve mutates the live entry under the lock.
type Controller struct {
	mu       sync.Mutex // guards entry fields mutated by Resolve
	byThread *registry.Registry[string, *Pending]
}

// NewController creates an empty controller.
func NewController() *Controller {
	return &Controller{
		byThread: registry.New[string, *Pending](),
	}
}

// Raise records a pause for a thread and returns a copy of the new entry.
func (c *Controller) Raise(threadID, nodeID string, before bool, value any) *Pending {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := &Pending{
		ID:       uuid.New().String(),
		ThreadID: threadID,
		NodeID:   nodeID,
		Before:   before,
		Value:    value,
		Status:   StatusPending,
		RaisedAt: time.Now().UTC(),
	}
	c.byThread.Register(threadID, p)
	out := *p
	return &out
}

// Get returns a copy of the interrupt for a thread, pending or resolved.
func (c *Controller) Get(threadID string) (*Pending, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.byThread.Get(threadID)
	if !ok {
		return nil, false
	}
	out := *p
	return &out, true
}

// Pending returns copies of all interrupts still awaiting resolution.
func (c *Controller) Pending() []*Pending {
	c.mu.Lock()
	defer c.mu.Unlock()

	var pending []*Pending
	for _, p := range c.byThread.Values() {
		if p.Status == StatusPending {
			out := *p
			pending = append(pending, &out)
		}
	}
	return pending
}

// Resolve marks a thread's interrupt as resolved with an answer and
// returns a copy of the resolved entry.
// The answer is what callers pass to Resume via WithResumeValue.
func (c *Controller) Resolve(threadID string, answer any) (*Pending, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.byThread.Get(threadID)
	if !ok {
		return nil, ErrNotPending
	}
	if p.Status == StatusResolved {
		return nil, ErrAlreadyResolved
	}

	now := time.Now().UTC()
	p.Status = StatusResolved
	p.Answer = answer
	p.ResolvedAt = &now
	out := *p
	return &out, nil
}

// Clear removes a thread's interrupt entry entirely.
func (c *Controller) Clear(threadID string) {
	c.byThread.Remove(threadID)
}
