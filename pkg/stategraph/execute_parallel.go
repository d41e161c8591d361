package stategraph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/randalmurphal/stategraph/pkg/stategraph/event"
	"github.com/randalmurphal/stategraph/pkg/stategraph/observability"
)

// executeForkJoin handles parallel execution of a static fork node.
// It clones state for each branch, executes branches in goroutines,
// waits for completion, and rejoins the results through the reducer.
//
// Returns the merged state and the join node to continue from.
func (cg *CompiledGraph[S]) executeForkJoin(
	ctx Context,
	forkNode *ForkNode,
	state S,
	cfg *runConfig,
) (mergedState S, joinNode string, err error) {
	startTime := time.Now()
	hook := cg.getBranchHook()
	fjConfig := cg.getForkJoinConfig()

	// Clone state for each branch
	branchStates := make(map[string]S)
	for _, branchID := range forkNode.Branches {
		cloned, cloneErr := cloneState(state, branchID)
		if cloneErr != nil {
			return state, "", fmt.Errorf("fork node %s: clone state for branch %s: %w",
				forkNode.NodeID, branchID, cloneErr)
		}

		if hook != nil {
			var hookErr error
			cloned, hookErr = hook.OnFork(ctx, branchID, cloned)
			if hookErr != nil {
				return state, "", fmt.Errorf("fork node %s: OnFork hook for branch %s: %w",
					forkNode.NodeID, branchID, hookErr)
			}
		}

		branchStates[branchID] = cloned
	}

	// Run each branch until it reaches the join node
	run := func(runCtx Context, branchID string, branchState S) BranchResult[S] {
		return cg.executeBranch(runCtx, branchID, branchID, branchState, forkNode.JoinNodeID, cfg)
	}

	results, firstError := runParallel(ctx, forkNode.Branches, branchStates, fjConfig, hook, run)

	if firstError != nil {
		failed := ""
		for _, r := range results {
			if r.Error != nil {
				failed = r.BranchID
				break
			}
		}
		return state, "", &ForkJoinError{
			ForkNodeID: forkNode.NodeID,
			BranchID:   failed,
			Err:        firstError,
		}
	}

	successfulStates := make(map[string]S, len(results))
	for _, r := range results {
		successfulStates[r.BranchID] = r.State
	}

	if hook != nil {
		if joinErr := hook.OnJoin(ctx, successfulStates); joinErr != nil {
			return state, "", fmt.Errorf("fork node %s: OnJoin hook: %w",
				forkNode.NodeID, joinErr)
		}
	}

	// Rejoin branch states in declared branch order so the merge is
	// deterministic regardless of completion order
	mergedState = state
	for _, branchID := range forkNode.Branches {
		mergedState = cg.reduce(mergedState, successfulStates[branchID])
	}

	duration := time.Since(startTime)
	ctx.Logger().Info("fork/join completed",
		"fork_node", forkNode.NodeID,
		"join_node", forkNode.JoinNodeID,
		"branches", len(forkNode.Branches),
		"duration_ms", duration.Milliseconds())

	return mergedState, forkNode.JoinNodeID, nil
}

// executeFanOut handles a dynamic fan-out: the fan function expands the
// current state into sends, each send invokes its target node once in
// parallel, and the results are rejoined through the reducer in send
// order. Execution continues at the fan-out's join node.
func (cg *CompiledGraph[S]) executeFanOut(
	ctx Context,
	nodeID string,
	fo fanOut[S],
	state S,
	cfg *runConfig,
) (S, error) {
	fanCtx := ctx
	if ec, ok := ctx.(*executionContext); ok {
		fanCtx = ec.withNodeID(nodeID)
	}

	sends := fo.fan(fanCtx, state)
	if len(sends) == 0 {
		// Nothing to dispatch; continue at the join node
		return state, nil
	}

	// Validate send targets before starting any work
	for _, send := range sends {
		if _, exists := cg.getNode(send.To); !exists {
			return state, &ForkJoinError{
				ForkNodeID: nodeID,
				BranchID:   send.To,
				Err:        fmt.Errorf("%w: %s", ErrSendTargetNotFound, send.To),
			}
		}
	}

	startTime := time.Now()
	hook := cg.getBranchHook()
	fjConfig := cg.getForkJoinConfig()

	cfg.publish(event.New(event.TypeFanOutStart, cfg.threadID).
		WithNode(nodeID).
		WithData("sends", len(sends)))

	// Each send is its own branch; the ID carries the send index so
	// duplicate targets stay distinct.
	branchIDs := make([]string, len(sends))
	branchStates := make(map[string]S, len(sends))
	branchTargets := make(map[string]string, len(sends))
	for i, send := range sends {
		branchID := fmt.Sprintf("%s#%d", send.To, i)
		branchIDs[i] = branchID
		branchTargets[branchID] = send.To

		payload := send.State
		if hook != nil {
			adjusted, hookErr := hook.OnFork(ctx, branchID, payload)
			if hookErr != nil {
				return state, fmt.Errorf("fan-out at %s: OnFork hook for send %s: %w",
					nodeID, branchID, hookErr)
			}
			payload = adjusted
		}
		branchStates[branchID] = payload
	}

	// A send invokes its target node exactly once
	run := func(runCtx Context, branchID string, branchState S) BranchResult[S] {
		sendStart := time.Now()
		result, nodeErr := cg.executeNode(runCtx, branchTargets[branchID], branchState)
		return BranchResult[S]{
			BranchID: branchID,
			State:    result,
			Error:    nodeErr,
			Duration: time.Since(sendStart),
		}
	}

	results, firstError := runParallel(ctx, branchIDs, branchStates, fjConfig, hook, run)

	if firstError != nil {
		failed := ""
		for _, r := range results {
			if r.Error != nil {
				failed = r.BranchID
				break
			}
		}
		return state, &ForkJoinError{
			ForkNodeID: nodeID,
			BranchID:   failed,
			Err:        firstError,
		}
	}

	successfulStates := make(map[string]S, len(results))
	for _, r := range results {
		successfulStates[r.BranchID] = r.State
	}

	if hook != nil {
		if joinErr := hook.OnJoin(ctx, successfulStates); joinErr != nil {
			return state, fmt.Errorf("fan-out at %s: OnJoin hook: %w", nodeID, joinErr)
		}
	}

	// Rejoin send results in send order for a deterministic merge
	merged := state
	for _, branchID := range branchIDs {
		merged = cg.reduce(merged, successfulStates[branchID])
	}

	duration := time.Since(startTime)
	durationMs := float64(duration.Milliseconds())
	observability.LogFanOut(cfg.logger, nodeID, len(sends), durationMs)
	cfg.metrics.RecordFanOut(ctx, nodeID, len(sends), duration)
	cfg.publish(event.New(event.TypeFanOutDone, cfg.threadID).
		WithNode(nodeID).
		WithData("sends", len(sends)).
		WithDuration(durationMs))

	return merged, nil
}

// runParallel executes branches concurrently with semaphore-based
// concurrency limiting and an optional merge timeout. Collects one
// result per branch and returns the first error encountered.
func runParallel[S any](
	ctx Context,
	branchIDs []string,
	branchStates map[string]S,
	fjConfig ForkJoinConfig,
	hook BranchHook[S],
	run func(ctx Context, branchID string, state S) BranchResult[S],
) ([]BranchResult[S], error) {
	var sem chan struct{}
	if fjConfig.MaxConcurrency > 0 {
		sem = make(chan struct{}, fjConfig.MaxConcurrency)
	}

	// Derive a context for timeout and fail-fast cancellation
	cancelCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var timeoutCtx context.Context = cancelCtx
	if fjConfig.MergeTimeout > 0 {
		var timeoutCancel context.CancelFunc
		timeoutCtx, timeoutCancel = context.WithTimeout(cancelCtx, fjConfig.MergeTimeout)
		defer timeoutCancel()
	}

	// Branches run against the derived context so the timeout and
	// fail-fast cancellation reach in-flight nodes, not just branches
	// that have not started yet.
	branchCtx := ctx
	if ec, ok := ctx.(*executionContext); ok {
		derived := ec.clone()
		derived.Context = timeoutCtx
		branchCtx = derived
	}

	results := make(chan BranchResult[S], len(branchIDs))
	var wg sync.WaitGroup

	for _, branchID := range branchIDs {
		wg.Add(1)
		go func(bID string, bState S) {
			defer wg.Done()

			// Acquire semaphore if concurrency is limited
			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-timeoutCtx.Done():
					results <- BranchResult[S]{
						BranchID: bID,
						Error:    timeoutCtx.Err(),
					}
					return
				}
			}

			select {
			case <-timeoutCtx.Done():
				results <- BranchResult[S]{
					BranchID: bID,
					Error:    timeoutCtx.Err(),
				}
				return
			default:
			}

			result := run(branchCtx, bID, bState)
			results <- result

			if result.Error != nil {
				if hook != nil {
					hook.OnBranchError(ctx, bID, bState, result.Error)
				}
				if fjConfig.FailFast {
					cancel()
				}
			}
		}(branchID, branchStates[branchID])
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	collected := make([]BranchResult[S], 0, len(branchIDs))
	var firstError error
	for result := range results {
		collected = append(collected, result)
		if result.Error != nil && firstError == nil {
			firstError = result.Error
		}
	}

	return collected, firstError
}

// executeBranch executes a single branch from its start node until it
// reaches the join node.
func (cg *CompiledGraph[S]) executeBranch(
	ctx Context,
	branchID string,
	startNode string,
	state S,
	joinNodeID string,
	cfg *runConfig,
) BranchResult[S] {
	startTime := time.Now()
	current := startNode
	iterations := 0

	for current != joinNodeID && current != END {
		iterations++
		if iterations > cfg.maxIterations {
			return BranchResult[S]{
				BranchID: branchID,
				Error: &MaxIterationsError{
					Max:        cfg.maxIterations,
					LastNodeID: current,
					State:      state,
				},
				Duration: time.Since(startTime),
			}
		}

		// Check for cancellation
		select {
		case <-ctx.Done():
			return BranchResult[S]{
				BranchID: branchID,
				Error: &CancellationError{
					NodeID:       current,
					State:        state,
					Cause:        ctx.Err(),
					WasExecuting: false,
				},
				Duration: time.Since(startTime),
			}
		default:
		}

		// Execute the node
		returned, nodeErr := cg.executeNode(ctx, current, state)
		if nodeErr != nil {
			return BranchResult[S]{
				BranchID: branchID,
				State:    state,
				Error:    nodeErr,
				Duration: time.Since(startTime),
			}
		}
		state = cg.reduce(state, returned)

		// Determine next node
		next, routeErr := cg.nextNode(ctx, state, current)
		if routeErr != nil {
			return BranchResult[S]{
				BranchID: branchID,
				State:    state,
				Error:    routeErr,
				Duration: time.Since(startTime),
			}
		}

		current = next
	}

	return BranchResult[S]{
		BranchID: branchID,
		State:    state,
		Duration: time.Since(startTime),
	}
}
