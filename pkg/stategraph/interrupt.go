package stategraph

import (
	"errors"
	"fmt"
)

// interruptSignal is the error value a node returns to pause its run.
// Created by Interrupt().
type interruptSignal struct {
	value any
}

func (s *interruptSignal) Error() string {
	return fmt.Sprintf("interrupt raised: %v", s.value)
}

// Interrupt returns an error that pauses the run at the current node.
// The run checkpoints its state, records the value for external review,
// and returns an *InterruptError from Run.
//
// Resuming the thread replays the interrupting node; the node reads the
// supplied answer from Context.ResumeValue and proceeds instead of
// interrupting again.
//
// Example:
//
//	func approve(ctx stategraph.Context, s State) (State, error) {
//	    if answer := ctx.ResumeValue(); answer != nil {
//	        s.Approved = answer.(bool)
//	        return s, nil
//	    }
//	    return s, stategraph.Interrupt(map[string]string{
//	        "question": "approve this plan?",
//	        "plan":     s.Plan,
//	    })
//	}
func Interrupt(value any) error {
	return &interruptSignal{value: value}
}

// InterruptError is returned from Run when execution pauses at an
// interrupt point. The run is not failed: its state is checkpointed
// under the thread and Resume continues it.
type InterruptError struct {
	// ThreadID is the paused thread.
	ThreadID string

	// NodeID is the node the run paused at.
	NodeID string

	// Before is true when the pause happened before NodeID executed
	// (WithInterruptBefore). False for pauses after the node completed
	// or dynamic interrupts raised inside it.
	Before bool

	// Value is the payload passed to Interrupt(), nil for static pause
	// points.
	Value any

	// State is the checkpointed state at the pause (can type-assert to
	// the graph's state type).
	State any
}

// Error implements the error interface.
func (e *InterruptError) Error() string {
	if e.Before {
		return fmt.Sprintf("run interrupted before node %s (thread %s)", e.NodeID, e.ThreadID)
	}
	return fmt.Sprintf("run interrupted at node %s (thread %s)", e.NodeID, e.ThreadID)
}

// AsInterrupt extracts an *InterruptError from an error chain.
// Returns nil if the error is not an interrupt pause.
func AsInterrupt(err error) *InterruptError {
	var ie *InterruptError
	if errors.As(err, &ie) {
		return ie
	}
	return nil
}

// asInterruptSignal extracts a dynamic interrupt raised inside a node.
func asInterruptSignal(err error) (*interruptSignal, bool) {
	var sig *interruptSignal
	if errors.As(err, &sig) {
		return sig, true
	}
	return nil, false
}
