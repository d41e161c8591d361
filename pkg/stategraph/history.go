package stategraph

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
)

// Snapshot is one point in a thread's checkpoint history with the state
// deserialized to the graph's state type.
type Snapshot[S any] struct {
	// ThreadID is the thread this snapshot belongs to.
	ThreadID string

	// Step is the position in the thread's history (1-based).
	Step int

	// NodeID is the node that produced this snapshot.
	NodeID string

	// NextNode is the node execution continues with from here.
	NextNode string

	// Timestamp is when the checkpoint was saved.
	Timestamp time.Time

	// State is the deserialized state at this step.
	State S

	// Source records what produced the snapshot: checkpoint.SourceStep,
	// SourceInterrupt, or SourceUpdate.
	Source string

	// Interrupted is true when the thread was paused at this step.
	Interrupted bool

	// InterruptValue is the dynamic interrupt payload, if any.
	InterruptValue json.RawMessage
}

// snapshotFrom converts a stored checkpoint into a typed snapshot.
func snapshotFrom[S any](cp *checkpoint.Checkpoint) (Snapshot[S], error) {
	var state S
	if err := json.Unmarshal(cp.State, &state); err != nil {
		return Snapshot[S]{}, fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}
	return Snapshot[S]{
		ThreadID:       cp.ThreadID,
		Step:           cp.Step,
		NodeID:         cp.NodeID,
		NextNode:       cp.NextNode,
		Timestamp:      cp.Timestamp,
		State:          state,
		Source:         cp.Source,
		Interrupted:    cp.Interrupted,
		InterruptValue: cp.InterruptValue,
	}, nil
}

// loadCheckpoint loads and validates the checkpoint at a step.
func loadCheckpoint(store checkpoint.Store, threadID string, step int) (*checkpoint.Checkpoint, error) {
	data, err := store.Load(threadID, step)
	if err != nil {
		return nil, err
	}
	cp, err := checkpoint.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}
	if cp.Version != checkpoint.Version {
		return nil, fmt.Errorf("%w: got %d, expected %d",
			ErrCheckpointVersionMismatch, cp.Version, checkpoint.Version)
	}
	return cp, nil
}

// StateHistory returns the full checkpoint history of a thread, ordered
// by step (oldest first).
//
// Example:
//
//	history, err := stategraph.StateHistory[MyState](store, "thread-42")
//	for _, snap := range history {
//	    fmt.Println(snap.Step, snap.NodeID, snap.State)
//	}
func StateHistory[S any](store checkpoint.Store, threadID string) ([]Snapshot[S], error) {
	infos, err := store.List(threadID)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoCheckpoints, threadID)
	}

	snapshots := make([]Snapshot[S], 0, len(infos))
	for _, info := range infos {
		cp, err := loadCheckpoint(store, threadID, info.Step)
		if err != nil {
			return nil, err
		}
		snap, err := snapshotFrom[S](cp)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}

	return snapshots, nil
}

// StateAt returns the snapshot at a specific step of a thread's history.
func StateAt[S any](store checkpoint.Store, threadID string, step int) (Snapshot[S], error) {
	cp, err := loadCheckpoint(store, threadID, step)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return Snapshot[S]{}, fmt.Errorf("%w: %s at step %d", ErrNoCheckpoints, threadID, step)
		}
		return Snapshot[S]{}, err
	}
	return snapshotFrom[S](cp)
}

// LatestState returns the most recent snapshot of a thread.
func LatestState[S any](store checkpoint.Store, threadID string) (Snapshot[S], error) {
	data, err := store.Latest(threadID)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return Snapshot[S]{}, fmt.Errorf("%w: %s", ErrNoCheckpoints, threadID)
		}
		return Snapshot[S]{}, fmt.Errorf("load latest checkpoint: %w", err)
	}
	cp, err := checkpoint.Unmarshal(data)
	if err != nil {
		return Snapshot[S]{}, fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}
	if cp.Version != checkpoint.Version {
		return Snapshot[S]{}, fmt.Errorf("%w: got %d, expected %d",
			ErrCheckpointVersionMismatch, cp.Version, checkpoint.Version)
	}
	return snapshotFrom[S](cp)
}

// UpdateState mutates a paused thread's state from outside the run.
// It loads the latest checkpoint, applies fn to the state, and appends a
// new checkpoint with the result. The interrupt marker and next node
// carry over, so a later Resume picks up the mutated state at the same
// pause point.
//
// Example:
//
//	// A reviewer edits the plan while the thread is paused
//	snap, err := stategraph.UpdateState(store, "thread-42", func(s MyState) MyState {
//	    s.Plan = revisedPlan
//	    return s
//	})
func UpdateState[S any](store checkpoint.Store, threadID string, fn func(S) S) (Snapshot[S], error) {
	data, err := store.Latest(threadID)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return Snapshot[S]{}, fmt.Errorf("%w: %s", ErrNoCheckpoints, threadID)
		}
		return Snapshot[S]{}, fmt.Errorf("load latest checkpoint: %w", err)
	}

	cp, err := checkpoint.Unmarshal(data)
	if err != nil {
		return Snapshot[S]{}, fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}
	if cp.Version != checkpoint.Version {
		return Snapshot[S]{}, fmt.Errorf("%w: got %d, expected %d",
			ErrCheckpointVersionMismatch, cp.Version, checkpoint.Version)
	}

	var state S
	if err := json.Unmarshal(cp.State, &state); err != nil {
		return Snapshot[S]{}, fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}

	state = fn(state)

	stateBytes, err := json.Marshal(state)
	if err != nil {
		return Snapshot[S]{}, fmt.Errorf("%w: %v", ErrSerializeState, err)
	}

	updated := checkpoint.New(threadID, cp.Step+1, cp.NodeID, stateBytes, cp.NextNode).
		WithPrevNode(cp.PrevNodeID).
		WithAttempt(cp.Attempt).
		WithSource(checkpoint.SourceUpdate)
	if cp.Interrupted {
		updated = updated.WithInterrupt(cp.InterruptValue)
		updated.Source = checkpoint.SourceUpdate
	}

	payload, err := updated.Marshal()
	if err != nil {
		return Snapshot[S]{}, fmt.Errorf("%w: %v", ErrSerializeState, err)
	}

	if err := store.Save(threadID, updated.Step, payload); err != nil {
		return Snapshot[S]{}, fmt.Errorf("save updated checkpoint: %w", err)
	}

	return snapshotFrom[S](updated)
}
