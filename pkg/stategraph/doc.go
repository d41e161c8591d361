/*
Package stategraph provides graph-based orchestration for stateful agent
workflows.

# Overview

stategraph is a Go library for building and executing directed graphs
where nodes perform work and edges define flow. It's designed for
orchestrating agent workflows with features like per-field state
reduction, thread checkpointing, human-in-the-loop interrupts, and
parallel fan-out.

The library follows the LangGraph execution model but is built for Go
with:
  - Type-safe generics for state management
  - Compile-time validation of graph structure
  - Thread-keyed checkpoint history with resume and time travel
  - Interrupt points for human review before or after any node
  - Dynamic fan-out of parallel node invocations rejoined via reducers
  - OpenTelemetry integration for observability

# Basic Usage

Create a graph with nodes and edges, then compile and run:

	type State struct {
	    Input  string
	    Output string
	}

	func process(ctx stategraph.Context, s State) (State, error) {
	    s.Output = "Processed: " + s.Input
	    return s, nil
	}

	func main() {
	    graph := stategraph.NewGraph[State]().
	        AddNode("process", process).
	        AddEdge("process", stategraph.END).
	        SetEntry("process")

	    compiled, err := graph.Compile()
	    if err != nil {
	        log.Fatal(err)
	    }

	    ctx := stategraph.NewContext(context.Background())
	    result, err := compiled.Run(ctx, State{Input: "hello"})
	    if err != nil {
	        log.Fatal(err)
	    }
	    fmt.Println(result.Output) // "Processed: hello"
	}

# State Reduction

By default a node's return value replaces the previous state. Set a
reducer to merge instead, so nodes can return sparse updates and
parallel results accumulate:

	graph.SetReducer(stategraph.Fields[ChatState](map[string]stategraph.FieldMerge{
	    "Messages": stategraph.Append,
	    "Tokens":   stategraph.Sum,
	}))

# Conditional Branching

Use conditional edges for decision points:

	graph.AddConditionalEdge("review", func(ctx stategraph.Context, s State) string {
	    if s.Approved {
	        return "publish"
	    }
	    return "revise"
	})

The router function returns the ID of the next node to execute.
Invalid return values (referencing non-existent nodes) cause runtime errors.

Loops are created by routers that return earlier nodes, and are
protected by max iterations (default 1000). Configure with
WithMaxIterations.

# Checkpointing and Threads

Enable persistence with a checkpoint store and a thread ID. A
checkpoint is appended after every step, so a thread's full history is
queryable and any step can be rewound to:

	store := checkpoint.NewSQLiteStore("./checkpoints.db")
	defer store.Close()

	result, err := compiled.Run(ctx, state,
	    stategraph.WithCheckpointing(store),
	    stategraph.WithThreadID("thread-42"))

	// Continue after a crash or pause
	result, err = compiled.Resume(ctx, store, "thread-42")

	// Inspect history or rewind
	history, err := stategraph.StateHistory[State](store, "thread-42")
	result, err = compiled.ResumeFrom(ctx, store, "thread-42", 3)

# Interrupts

Pause a run for human review, either at static points:

	result, err := compiled.Run(ctx, state,
	    stategraph.WithCheckpointing(store),
	    stategraph.WithThreadID("thread-42"),
	    stategraph.WithInterruptBefore("apply_changes"))

	if ie := stategraph.AsInterrupt(err); ie != nil {
	    // state is checkpointed; review, then resume
	}

or dynamically from inside a node:

	func approve(ctx stategraph.Context, s State) (State, error) {
	    if answer := ctx.ResumeValue(); answer != nil {
	        s.Approved = answer.(bool)
	        return s, nil
	    }
	    return s, stategraph.Interrupt("approve this plan?")
	}

	// Later, answer the interrupt:
	result, err := compiled.Resume(ctx, store, "thread-42",
	    stategraph.WithResumeValue(true))

While paused, UpdateState mutates the thread's state from outside the
run.

# Fan-Out

Dispatch dynamic parallel work over a collection. Each send invokes its
target node once; results rejoin through the reducer in send order:

	graph.AddFanOut("plan", func(ctx stategraph.Context, s State) []stategraph.Send[State] {
	    var sends []stategraph.Send[State]
	    for _, doc := range s.Documents {
	        sends = append(sends, stategraph.Send[State]{To: "summarize", State: State{Current: doc}})
	    }
	    return sends
	}, "collect")

Static parallelism also works: a node with multiple unconditional edges
forks its branches, which execute concurrently and rejoin at their
common post-dominator.

# Cross-Thread Store

Share facts between threads through a namespace-keyed store:

	kv := store.NewMemoryStore()
	ctx := stategraph.NewContext(context.Background(), stategraph.WithStore(kv))

	// In a node:
	ctx.Store().Put(ctx, store.Namespace{"users", "u1"}, "preferences", prefs)

# Observability

Enable logging, metrics, tracing, and event streaming:

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	bus := event.NewBus(event.DefaultBusConfig)

	result, err := compiled.Run(ctx, state,
	    stategraph.WithObservabilityLogger(logger),
	    stategraph.WithMetrics(observability.NewMetricsRecorder()),
	    stategraph.WithTracing(observability.NewSpanManager()),
	    stategraph.WithEventBus(bus))

Logs include structured fields: thread_id, node_id, duration_ms, attempt.
OpenTelemetry metrics: stategraph.node.executions, stategraph.node.latency_ms, etc.
OpenTelemetry tracing: stategraph.run > stategraph.node.{id} spans.

# Error Handling

Errors include context about which node failed:

	result, err := compiled.Run(ctx, state)
	var nodeErr *stategraph.NodeError
	if errors.As(err, &nodeErr) {
	    log.Printf("Node %s failed: %v", nodeErr.NodeID, nodeErr.Err)
	}

Panics in nodes are recovered and converted to PanicError with stack trace.

# Thread Safety

  - Graph[S] is NOT safe for concurrent use during construction
  - CompiledGraph[S] IS safe for concurrent use (immutable)
  - Context IS safe for concurrent use
  - checkpoint.Store and store.Store implementations are safe for concurrent use

# Subpackages

  - checkpoint: Thread checkpoint storage (memory, SQLite)
  - store: Cross-thread key-value store (memory, SQLite, Redis)
  - interrupt: Pending interrupt tracking for external reviewers
  - event: Execution lifecycle event streaming
  - observability: Logging, metrics, and tracing helpers
  - config: Configuration loading (YAML/JSON)
*/
package stategraph
