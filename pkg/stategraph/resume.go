package stategraph

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
)

// Resume continues execution of a thread from its latest checkpoint.
// It loads the checkpoint and starts execution from the node recorded
// as next, which for an interrupted thread is the pause point.
//
// Use WithResumeValue to answer a dynamic interrupt and WithStateOverride
// to mutate the checkpointed state before it flows on.
//
// Example:
//
//	// Previous run paused at an approval interrupt
//	result, err := compiled.Resume(ctx, store, "thread-42",
//	    stategraph.WithResumeValue(true))
func (cg *CompiledGraph[S]) Resume(ctx Context, store checkpoint.Store, threadID string, opts ...ResumeOption) (S, error) {
	var zero S

	if ctx == nil {
		return zero, ErrNilContext
	}

	data, err := store.Latest(threadID)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return zero, fmt.Errorf("%w: %s", ErrNoCheckpoints, threadID)
		}
		return zero, fmt.Errorf("load latest checkpoint: %w", err)
	}

	return cg.resumeFromCheckpoint(ctx, store, threadID, data, opts)
}

// ResumeFrom continues execution from the checkpoint at a specific step.
// Unlike Resume, this rewinds the thread to an earlier point in its
// history; checkpoints after that step are superseded by the new steps
// appended from there.
//
// Example:
//
//	// Retry from step 3
//	result, err := compiled.ResumeFrom(ctx, store, "thread-42", 3)
func (cg *CompiledGraph[S]) ResumeFrom(ctx Context, store checkpoint.Store, threadID string, step int, opts ...ResumeOption) (S, error) {
	var zero S

	if ctx == nil {
		return zero, ErrNilContext
	}

	data, err := store.Load(threadID, step)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return zero, fmt.Errorf("%w: %s at step %d", ErrNoCheckpoints, threadID, step)
		}
		return zero, fmt.Errorf("load checkpoint: %w", err)
	}

	return cg.resumeFromCheckpoint(ctx, store, threadID, data, opts)
}

// resumeFromCheckpoint restores state from checkpoint data and continues
// execution.
func (cg *CompiledGraph[S]) resumeFromCheckpoint(ctx Context, store checkpoint.Store, threadID string, data []byte, opts []ResumeOption) (S, error) {
	var zero S

	cfg := resumeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	cp, err := checkpoint.Unmarshal(data)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}

	// Check version compatibility
	if cp.Version != checkpoint.Version {
		return zero, fmt.Errorf("%w: got %d, expected %d",
			ErrCheckpointVersionMismatch, cp.Version, checkpoint.Version)
	}

	// Deserialize state
	var state S
	if err := json.Unmarshal(cp.State, &state); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}

	// Apply state override if configured
	if cfg.stateOverride != nil {
		modified := cfg.stateOverride(state)
		if typed, ok := modified.(S); ok {
			state = typed
		}
	}

	// Validate state if configured
	if cfg.validateState != nil {
		if err := cfg.validateState(state); err != nil {
			return state, fmt.Errorf("state validation failed: %w", err)
		}
	}

	// Determine start node. For an interrupted checkpoint NextNode is the
	// pause point itself (dynamic and before-interrupts) or the node
	// after it (after-interrupts).
	startNode := cp.NextNode
	if cfg.replayNode {
		// Re-execute the checkpointed node
		startNode = cp.NodeID
	}

	if startNode == END {
		return state, nil
	}
	if !cg.HasNode(startNode) {
		return zero, fmt.Errorf("%w: %s", ErrInvalidResumeNode, startNode)
	}

	// Continue execution from the determined node, appending new
	// checkpoints after the one resumed from
	runCfg := defaultRunConfig()
	for _, opt := range cfg.runOptions {
		opt(&runCfg)
	}
	runCfg.checkpointStore = store
	runCfg.threadID = threadID
	runCfg.step = cp.Step
	runCfg.resumeValue = cfg.resumeValue
	runCfg.hasResumeValue = cfg.hasResumeValue

	// A re-armed before-gate at the resume point would pause the thread
	// again without executing anything
	delete(runCfg.interruptBefore, startNode)

	if ec, ok := ctx.(*executionContext); ok {
		ctx = ec.withRunConfig(&runCfg)
	}

	return cg.runFrom(ctx, state, startNode, &runCfg)
}
