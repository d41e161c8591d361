package stategraph

import (
	"encoding/json"
	"fmt"
	"time"
)

// Send is one dynamic node invocation produced by a fan-out decision.
// Each send runs the target node once with its own payload state, in
// parallel with the other sends from the same decision.
type Send[S any] struct {
	// To is the node to invoke. Must exist in the graph.
	To string

	// State is the payload state passed to that invocation.
	// Typically a copy of the shared state narrowed to one work item.
	State S
}

// FanFunc expands a single routing decision into multiple parallel node
// invocations over a collection. It is attached with Graph.AddFanOut.
//
// Returning an empty slice skips the fan-out: execution continues
// directly at the join node.
//
// Example:
//
//	func fanDocuments(ctx stategraph.Context, s State) []stategraph.Send[State] {
//	    sends := make([]stategraph.Send[State], 0, len(s.Documents))
//	    for _, doc := range s.Documents {
//	        sends = append(sends, stategraph.Send[State]{
//	            To:    "summarize",
//	            State: State{Current: doc},
//	        })
//	    }
//	    return sends
//	}
type FanFunc[S any] func(ctx Context, state S) []Send[S]

// fanOut records a fan-out edge: the fan function and the node where
// execution continues after all sends complete.
type fanOut[S any] struct {
	fan  FanFunc[S]
	join string
}

// Cloner is an optional interface for state types that need custom
// copying for parallel branches. Without it, branch states are cloned
// through JSON marshaling.
type Cloner[S any] interface {
	// Clone creates an independent copy of the state for a parallel branch.
	// The branchID identifies which branch this clone is for.
	Clone(branchID string) S
}

// BranchHook provides lifecycle callbacks for parallel execution.
// All methods are required but may be no-ops.
//
// Hooks are called in this order:
//  1. OnFork - once per branch, before branch execution starts
//  2. (branch nodes execute)
//  3. OnJoin - once after all branches complete (or OnBranchError per failure)
//
// Example use cases:
//   - Create scratch workspaces per branch (OnFork)
//   - Validate all branches produced output before merge (OnJoin)
//   - Clean up failed branch resources (OnBranchError)
type BranchHook[S any] interface {
	// OnFork is called before each branch starts executing.
	// The returned state is used as the initial state for that branch.
	// Return an error to abort the whole fork.
	OnFork(ctx Context, branchID string, state S) (S, error)

	// OnJoin is called after all branches complete successfully,
	// before their states are merged. Return an error to fail the fork.
	OnJoin(ctx Context, branchStates map[string]S) error

	// OnBranchError is called when a branch fails.
	// This is for cleanup - the error has already been recorded.
	OnBranchError(ctx Context, branchID string, state S, err error)
}

// ForkJoinConfig configures parallel execution behavior for both static
// fork/join branches and dynamic fan-out sends.
// All fields have sensible defaults (zero values are valid).
type ForkJoinConfig struct {
	// MaxConcurrency limits the number of branches executing simultaneously.
	// 0 = unlimited (all branches start immediately).
	MaxConcurrency int

	// FailFast cancels remaining branches when any branch fails.
	// false = wait for all branches to complete (default).
	FailFast bool

	// MergeTimeout is the maximum time to wait for branch completion.
	// Branches observe the timeout through their context; a node that
	// ignores cancellation can still overrun it.
	// 0 = no timeout (wait indefinitely).
	MergeTimeout time.Duration
}

// DefaultForkJoinConfig returns the default configuration.
// Unlimited concurrency, wait for all branches, no timeout.
func DefaultForkJoinConfig() ForkJoinConfig {
	return ForkJoinConfig{}
}

// ForkNode represents a point where execution splits into parallel branches.
// This is computed during graph compilation from nodes with multiple
// unconditional outgoing edges.
type ForkNode struct {
	// NodeID is the ID of the fork node in the graph.
	NodeID string

	// Branches are the IDs of the first node in each branch.
	Branches []string

	// JoinNodeID is where all branches must converge.
	// Computed using post-dominator analysis at compile time. END when
	// the branches only converge by finishing.
	JoinNodeID string
}

// JoinNode represents a point where parallel branches converge.
type JoinNode struct {
	// NodeID is the ID of the join node in the graph.
	NodeID string

	// ForkNodeID is the corresponding fork node.
	ForkNodeID string

	// ExpectedBranches are the branch entry nodes that must complete.
	ExpectedBranches []string
}

// BranchResult holds the outcome of a single branch or send execution.
type BranchResult[S any] struct {
	// BranchID identifies this branch: the branch entry node for static
	// forks, or "node#i" for the i-th send of a fan-out.
	BranchID string

	// State is the final state when the branch completed.
	State S

	// Error is set if the branch failed.
	Error error

	// Duration is how long the branch took to execute.
	Duration time.Duration
}

// cloneState creates a copy of state for a parallel branch.
// Uses Cloner.Clone if available, otherwise falls back to JSON.
func cloneState[S any](state S, branchID string) (S, error) {
	if c, ok := any(state).(Cloner[S]); ok {
		return c.Clone(branchID), nil
	}

	data, marshalErr := json.Marshal(state)
	if marshalErr != nil {
		var zero S
		return zero, fmt.Errorf("clone state for branch %s: marshal: %w", branchID, marshalErr)
	}

	var clone S
	if unmarshalErr := json.Unmarshal(data, &clone); unmarshalErr != nil {
		var zero S
		return zero, fmt.Errorf("clone state for branch %s: unmarshal: %w", branchID, unmarshalErr)
	}

	return clone, nil
}
