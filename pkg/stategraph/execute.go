package stategraph

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
	"github.com/randalmurphal/stategraph/pkg/stategraph/event"
	"github.com/randalmurphal/stategraph/pkg/stategraph/observability"
)

// Run executes the graph with the given initial state.
// Returns the final state and any error encountered.
//
// On success, returns the state after the last node executed before END.
// On error, returns the state at the point of failure (useful for debugging).
// When the run pauses at an interrupt point, the error is an
// *InterruptError and the returned state is the checkpointed pause state.
//
// Execution flow:
//  1. Start at the entry point node
//  2. Check for interrupt points and cancellation
//  3. Execute the current node and merge its result via the reducer
//  4. Determine the next node (simple edge, router, fork, or fan-out)
//  5. Checkpoint the step when a store is configured
//  6. Repeat until END is reached or an error occurs
//
// Example:
//
//	ctx := stategraph.NewContext(context.Background())
//	result, err := compiled.Run(ctx, initialState,
//	    stategraph.WithCheckpointing(store),
//	    stategraph.WithThreadID("thread-42"))
func (cg *CompiledGraph[S]) Run(ctx Context, state S, opts ...RunOption) (result S, runErr error) {
	if ctx == nil {
		return state, ErrNilContext
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	// Validate checkpointing configuration
	if cfg.checkpointStore != nil && cfg.threadID == "" {
		return state, ErrThreadIDRequired
	}

	// Static interrupt points are useless without a way to resume
	if (len(cfg.interruptBefore) > 0 || len(cfg.interruptAfter) > 0) &&
		(cfg.checkpointStore == nil || cfg.threadID == "") {
		return state, ErrInterruptRequiresCheckpoint
	}

	// Carry run-level settings into the execution context
	if ec, ok := ctx.(*executionContext); ok {
		ctx = ec.withRunConfig(&cfg)
	}

	threadID := cfg.threadID
	if threadID == "" {
		threadID = ctx.ThreadID()
	}

	startTime := time.Now()

	observability.LogRunStart(cfg.logger, threadID)
	cfg.publish(event.New(event.TypeRunStart, threadID))

	// Start run span if tracing enabled
	var execCtx context.Context = ctx
	var runSpan trace.Span
	if cfg.tracingEnabled {
		execCtx, runSpan = cfg.spans.StartRunSpan(ctx, "stategraph", threadID)
		defer func() {
			cfg.spans.EndSpanWithError(runSpan, runErr)
		}()
	}

	var stepCount int
	result, stepCount, runErr = cg.runFromWithObservability(execCtx, ctx, state, cg.entryPoint, &cfg)

	duration := time.Since(startTime)
	durationMs := float64(duration.Milliseconds())

	cfg.metrics.RecordGraphRun(ctx, runErr == nil, duration)

	switch {
	case runErr == nil:
		observability.LogRunComplete(cfg.logger, threadID, durationMs, stepCount)
		cfg.publish(event.New(event.TypeRunComplete, threadID).WithDuration(durationMs))
	default:
		if ie := AsInterrupt(runErr); ie != nil {
			observability.LogRunInterrupted(cfg.logger, threadID, ie.NodeID, ie.Before)
			cfg.publish(event.New(event.TypeRunInterrupt, threadID).
				WithNode(ie.NodeID).
				WithData("before", ie.Before))
			break
		}
		lastNode := ""
		switch e := runErr.(type) {
		case *NodeError:
			lastNode = e.NodeID
		case *MaxIterationsError:
			lastNode = e.LastNodeID
		case *CancellationError:
			lastNode = e.NodeID
		}
		observability.LogRunError(cfg.logger, threadID, runErr, durationMs, lastNode)
		cfg.publish(event.New(event.TypeRunError, threadID).
			WithNode(lastNode).
			WithError(runErr).
			WithDuration(durationMs))
	}

	return result, runErr
}

// publish sends an event when a bus is attached.
func (c *runConfig) publish(evt event.Event) {
	if c.bus != nil {
		_ = c.bus.Publish(evt)
	}
}

// runFrom executes the graph starting from a specific node.
// This is used by Resume() - does not include run-level observability.
func (cg *CompiledGraph[S]) runFrom(ctx Context, state S, startNode string, cfg *runConfig) (S, error) {
	result, _, err := cg.runFromWithObservability(ctx, ctx, state, startNode, cfg)
	return result, err
}

// runFromWithObservability executes the graph with full observability.
// tracingCtx carries span context; sgCtx is the stategraph Context.
// Returns the final state, step count, and any error.
func (cg *CompiledGraph[S]) runFromWithObservability(tracingCtx context.Context, sgCtx Context, state S, startNode string, cfg *runConfig) (S, int, error) {
	current := startNode
	iterations := 0
	prevNode := ""
	stepCount := 0

	for current != END {
		iterations++
		if iterations > cfg.maxIterations {
			return state, stepCount, &MaxIterationsError{
				Max:        cfg.maxIterations,
				LastNodeID: current,
				State:      state,
			}
		}

		// Pause before the node when it is a static interrupt point
		if cfg.interruptBefore[current] {
			if err := cg.saveInterrupt(sgCtx, cfg, current, prevNode, state, current, nil); err != nil {
				return state, stepCount, err
			}
			cg.raiseInterrupt(sgCtx, cfg, current, true, nil)
			return state, stepCount, &InterruptError{
				ThreadID: cfg.threadID,
				NodeID:   current,
				Before:   true,
				State:    state,
			}
		}

		// Check for cancellation before executing node
		select {
		case <-sgCtx.Done():
			return state, stepCount, &CancellationError{
				NodeID:       current,
				State:        state,
				Cause:        sgCtx.Err(),
				WasExecuting: false,
			}
		default:
		}

		observability.LogNodeStart(cfg.logger, current)
		cfg.publish(event.New(event.TypeNodeStart, cfg.threadID).WithNode(current))

		// Start node span if tracing enabled
		nodeTracingCtx := tracingCtx
		var nodeSpan trace.Span
		if cfg.tracingEnabled {
			nodeTracingCtx, nodeSpan = cfg.spans.StartNodeSpan(tracingCtx, current)
		}

		nodeStart := time.Now()

		// Execute the node
		returned, nodeErr := cg.executeNode(sgCtx, current, state)

		nodeDuration := time.Since(nodeStart)
		nodeDurationMs := float64(nodeDuration.Milliseconds())

		cfg.metrics.RecordNodeExecution(nodeTracingCtx, current, nodeDuration, nodeErr)

		if cfg.tracingEnabled {
			cfg.spans.EndSpanWithError(nodeSpan, nodeErr)
		}

		// The resume answer is scoped to the replayed node; later nodes
		// in the resumed run must not observe it.
		if cfg.hasResumeValue {
			cfg.hasResumeValue = false
			cfg.resumeValue = nil
			if ec, ok := sgCtx.(*executionContext); ok {
				cleared := ec.clone()
				cleared.resumeValue = nil
				sgCtx = cleared
			}
		}

		if nodeErr != nil {
			// A node pausing itself is not a failure
			if sig, ok := asInterruptSignal(nodeErr); ok {
				if cfg.checkpointStore == nil || cfg.threadID == "" {
					return state, stepCount, ErrInterruptRequiresCheckpoint
				}
				value, marshalErr := json.Marshal(sig.value)
				if marshalErr != nil {
					value = nil
				}
				// NextNode is the interrupting node itself: resume replays
				// it and the node reads its answer from ResumeValue.
				if err := cg.saveInterrupt(sgCtx, cfg, current, prevNode, state, current, value); err != nil {
					return state, stepCount, err
				}
				cg.raiseInterrupt(sgCtx, cfg, current, false, sig.value)
				return state, stepCount, &InterruptError{
					ThreadID: cfg.threadID,
					NodeID:   current,
					Value:    sig.value,
					State:    state,
				}
			}

			observability.LogNodeError(cfg.logger, current, nodeErr)
			cfg.publish(event.New(event.TypeNodeError, cfg.threadID).WithNode(current).WithError(nodeErr))
			return state, stepCount, nodeErr
		}

		// Merge the node's result into accumulated state
		state = cg.reduce(state, returned)

		observability.LogNodeComplete(cfg.logger, current, nodeDurationMs)
		cfg.publish(event.New(event.TypeNodeComplete, cfg.threadID).WithNode(current).WithDuration(nodeDurationMs))
		stepCount++

		// Determine next node
		var next string
		switch {
		case cg.IsForkNode(current):
			var forkErr error
			state, next, forkErr = cg.executeForkJoin(sgCtx, cg.GetForkNode(current), state, cfg)
			if forkErr != nil {
				return state, stepCount, forkErr
			}
		case cg.HasFanOut(current):
			fo, _ := cg.getFanOut(current)
			var fanErr error
			state, fanErr = cg.executeFanOut(sgCtx, current, fo, state, cfg)
			if fanErr != nil {
				return state, stepCount, fanErr
			}
			next = fo.join
		default:
			var routeErr error
			next, routeErr = cg.nextNode(sgCtx, state, current)
			if routeErr != nil {
				return state, stepCount, routeErr
			}
		}

		interruptAfter := cfg.interruptAfter[current]

		// Checkpoint after successful node execution
		if cfg.checkpointStore != nil {
			var err error
			if interruptAfter {
				err = cg.saveInterrupt(sgCtx, cfg, current, prevNode, state, next, nil)
			} else {
				err = cg.saveCheckpoint(sgCtx, cfg, current, prevNode, state, next)
			}
			if err != nil {
				return state, stepCount, err
			}
		}

		// Pause after the node when it is a static interrupt point
		if interruptAfter {
			cg.raiseInterrupt(sgCtx, cfg, current, false, nil)
			return state, stepCount, &InterruptError{
				ThreadID: cfg.threadID,
				NodeID:   current,
				State:    state,
			}
		}

		prevNode = current
		current = next
	}

	return state, stepCount, nil
}

// raiseInterrupt records a pause with the controller and metrics.
func (cg *CompiledGraph[S]) raiseInterrupt(ctx Context, cfg *runConfig, nodeID string, before bool, value any) {
	if cfg.controller != nil {
		cfg.controller.Raise(cfg.threadID, nodeID, before, value)
	}
	cfg.metrics.RecordInterrupt(ctx, nodeID)
}

// saveCheckpoint persists the current state after node execution.
func (cg *CompiledGraph[S]) saveCheckpoint(ctx Context, cfg *runConfig, nodeID, prevNodeID string, state S, nextNode string) error {
	return cg.persistCheckpoint(ctx, cfg, nodeID, prevNodeID, state, nextNode, nil, false)
}

// saveInterrupt persists an interrupt pause checkpoint. Unlike step
// checkpoints, a failed save is always fatal: without the checkpoint the
// pause could never be resumed.
func (cg *CompiledGraph[S]) saveInterrupt(ctx Context, cfg *runConfig, nodeID, prevNodeID string, state S, nextNode string, value json.RawMessage) error {
	return cg.persistCheckpoint(ctx, cfg, nodeID, prevNodeID, state, nextNode, value, true)
}

// persistCheckpoint serializes and saves a checkpoint for the thread.
func (cg *CompiledGraph[S]) persistCheckpoint(ctx Context, cfg *runConfig, nodeID, prevNodeID string, state S, nextNode string, interruptValue json.RawMessage, interrupted bool) error {
	fatal := cfg.checkpointFailureFatal || interrupted

	// Serialize state
	stateBytes, err := json.Marshal(state)
	if err != nil {
		if fatal {
			return &CheckpointError{NodeID: nodeID, Op: "serialize", Err: err}
		}
		observability.LogCheckpointError(cfg.logger, nodeID, "serialize", err)
		return nil
	}

	cfg.step++
	cp := checkpoint.New(cfg.threadID, cfg.step, nodeID, stateBytes, nextNode).
		WithPrevNode(prevNodeID)

	if interrupted {
		cp = cp.WithInterrupt(interruptValue)
	}

	if ec, ok := ctx.(*executionContext); ok {
		cp = cp.WithAttempt(ec.attempt)
	}

	data, err := cp.Marshal()
	if err != nil {
		if fatal {
			return &CheckpointError{NodeID: nodeID, Op: "marshal", Err: err}
		}
		observability.LogCheckpointError(cfg.logger, nodeID, "marshal", err)
		return nil
	}

	if err := cfg.checkpointStore.Save(cfg.threadID, cfg.step, data); err != nil {
		if fatal {
			return &CheckpointError{NodeID: nodeID, Op: "save", Err: err}
		}
		observability.LogCheckpointError(cfg.logger, nodeID, "save", err)
		return nil
	}

	sizeBytes := len(data)
	observability.LogCheckpoint(cfg.logger, nodeID, cfg.step, sizeBytes)
	cfg.metrics.RecordCheckpoint(ctx, nodeID, int64(sizeBytes))
	cfg.publish(event.New(event.TypeCheckpoint, cfg.threadID).WithNode(nodeID).WithStep(cfg.step))

	return nil
}

// executeNode executes a single node with panic recovery.
// Returns the new state and any error (including wrapped panics).
func (cg *CompiledGraph[S]) executeNode(ctx Context, nodeID string, state S) (result S, err error) {
	fn, exists := cg.getNode(nodeID)
	if !exists {
		// This shouldn't happen if compilation was successful
		return state, &NodeError{
			NodeID: nodeID,
			Op:     "lookup",
			Err:    fmt.Errorf("node not found: %s", nodeID),
		}
	}

	// Create node-specific context with enriched logger
	nodeCtx := ctx
	if ec, ok := ctx.(*executionContext); ok {
		nodeCtx = ec.withNodeID(nodeID)
	}

	// Panic recovery
	defer func() {
		if r := recover(); r != nil {
			result = state
			err = &PanicError{
				NodeID: nodeID,
				Value:  r,
				Stack:  string(debug.Stack()),
			}
		}
	}()

	result, err = fn(nodeCtx, state)
	if err != nil {
		return result, &NodeError{
			NodeID: nodeID,
			Op:     "execute",
			Err:    err,
		}
	}

	return result, nil
}

// nextNode determines the next node to execute.
// Checks conditional edges first, then simple edges.
func (cg *CompiledGraph[S]) nextNode(ctx Context, state S, current string) (string, error) {
	// Check for conditional edge first
	if router, exists := cg.getRouter(current); exists {
		// Create node-specific context for the router
		routerCtx := ctx
		if ec, ok := ctx.(*executionContext); ok {
			routerCtx = ec.withNodeID(current)
		}

		next := router(routerCtx, state)

		// Validate router result
		if next == "" {
			return "", &RouterError{
				FromNode: current,
				Returned: next,
				Err:      ErrInvalidRouterResult,
			}
		}

		if next != END {
			if _, exists := cg.getNode(next); !exists {
				return "", &RouterError{
					FromNode: current,
					Returned: next,
					Err:      ErrRouterTargetNotFound,
				}
			}
		}

		return next, nil
	}

	// Use simple edges
	edges := cg.getEdges(current)
	if len(edges) == 0 {
		// No outgoing edges - this shouldn't happen if compilation was successful
		return "", &NodeError{
			NodeID: current,
			Op:     "routing",
			Err:    fmt.Errorf("no outgoing edge from node %s", current),
		}
	}

	// Single simple edge; multiple edges are fork nodes handled by the
	// caller before reaching here.
	return edges[0], nil
}
