// Package checkpoint provides thread-keyed checkpoint persistence for
// crash recovery, interrupt/resume, and history inspection.
package checkpoint

import (
	"errors"
	"time"
)

// Store persists checkpoints keyed by (threadID, step).
// Every step appends a new checkpoint, so a thread's full history is
// retained and can be traversed with List.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores a checkpoint for a thread at a specific step.
	// Overwrites if a checkpoint for (threadID, step) already exists.
	Save(threadID string, step int, data []byte) error

	// Load retrieves the checkpoint at a specific step.
	// Returns ErrNotFound if it doesn't exist.
	Load(threadID string, step int) ([]byte, error)

	// Latest retrieves the checkpoint with the highest step for a thread.
	// Returns ErrNotFound if the thread has no checkpoints.
	Latest(threadID string) ([]byte, error)

	// List returns metadata for all checkpoints of a thread, ordered by step.
	// Returns an empty slice (not an error) if the thread has none.
	List(threadID string) ([]Info, error)

	// Delete removes the checkpoint at a specific step.
	// Returns nil if it doesn't exist.
	Delete(threadID string, step int) error

	// DeleteThread removes all checkpoints for a thread.
	// Returns nil if the thread has none.
	DeleteThread(threadID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info provides checkpoint metadata without loading full state.
type Info struct {
	ThreadID  string
	Step      int
	NodeID    string
	Timestamp time.Time
	Size      int64
}

// Sentinel errors for checkpoint operations.
var (
	// ErrNotFound indicates a checkpoint doesn't exist.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")
)
