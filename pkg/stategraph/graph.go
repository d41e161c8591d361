package stategraph

import (
	"fmt"
	"strings"
	"sync"
)

// Graph is a mutable builder for creating execution graphs.
// Use NewGraph to create a new graph, then chain AddNode, AddEdge,
// and SetEntry calls to define the workflow.
//
// Graph is NOT thread-safe during building. Use a single goroutine
// to construct the graph, then call Compile() to create an immutable
// CompiledGraph that can be safely shared.
//
// Example:
//
//	graph := stategraph.NewGraph[MyState]().
//	    AddNode("fetch", fetchNode).
//	    AddNode("process", processNode).
//	    AddEdge("fetch", "process").
//	    AddEdge("process", stategraph.END).
//	    SetEntry("fetch")
//
//	compiled, err := graph.Compile()
type Graph[S any] struct {
	mu               sync.RWMutex
	nodes            map[string]NodeFunc[S]
	edges            map[string][]string
	conditionalEdges map[string]RouterFunc[S]
	fanOuts          map[string]fanOut[S]
	entryPoint       string
	reducer          Reducer[S]
	branchHook       BranchHook[S]
	forkJoinConfig   ForkJoinConfig
}

// NewGraph creates a new graph builder for state type S.
// The type parameter S defines the state that flows through the graph.
func NewGraph[S any]() *Graph[S] {
	return &Graph[S]{
		nodes:            make(map[string]NodeFunc[S]),
		edges:            make(map[string][]string),
		conditionalEdges: make(map[string]RouterFunc[S]),
		fanOuts:          make(map[string]fanOut[S]),
	}
}

// AddNode adds a named node to the graph.
// Returns the graph for method chaining.
//
// Panics if:
//   - id is empty
//   - id is the reserved word "END" or "__end__" (case-insensitive)
//   - id contains whitespace (space, tab, newline)
//   - fn is nil
//   - id already exists in the graph
func (g *Graph[S]) AddNode(id string, fn NodeFunc[S]) *Graph[S] {
	if id == "" {
		panic("stategraph: node ID cannot be empty")
	}

	// Check reserved words (case-insensitive)
	idLower := strings.ToLower(id)
	if idLower == "end" || idLower == "__end__" {
		panic("stategraph: node ID cannot be reserved word 'END'")
	}

	if strings.ContainsAny(id, " \t\n\r") {
		panic("stategraph: node ID cannot contain whitespace")
	}

	if fn == nil {
		panic("stategraph: node function cannot be nil")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[id]; exists {
		panic(fmt.Sprintf("stategraph: duplicate node ID: %s", id))
	}

	g.nodes[id] = fn
	return g
}

// AddEdge adds an unconditional edge from one node to another.
// The target can be a node ID or stategraph.END.
// Returns the graph for method chaining.
//
// A node with multiple unconditional edges becomes a fork point: its
// branches execute in parallel and rejoin at their common post-dominator.
//
// Edge validation happens at Compile() time, not here.
// This allows edges to be added in any order.
func (g *Graph[S]) AddEdge(from, to string) *Graph[S] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.edges[from] = append(g.edges[from], to)
	return g
}

// AddConditionalEdge adds a conditional edge where a RouterFunc
// determines the next node at runtime based on state.
// Returns the graph for method chaining.
//
// The router function should return a valid node ID or stategraph.END.
// Returning an empty string or unknown node ID will cause a runtime error.
//
// A node can have either simple edges or a conditional edge, not both.
// If both are present, the conditional edge takes precedence.
func (g *Graph[S]) AddConditionalEdge(from string, router RouterFunc[S]) *Graph[S] {
	if router == nil {
		panic("stategraph: router function cannot be nil")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.conditionalEdges[from] = router
	return g
}

// AddFanOut attaches a dynamic fan-out to a node. After from executes,
// fan is called with the current state and returns a list of sends; each
// send invokes its target node once, in parallel, with its own payload
// state. The results are merged back into shared state with the graph's
// reducer (in send order), and execution continues at join.
//
// join can be a node ID or stategraph.END. An empty send list skips the
// fan-out and continues directly at join.
//
// A node cannot have both a fan-out and other outgoing edges; Compile
// reports a conflict.
func (g *Graph[S]) AddFanOut(from string, fan FanFunc[S], join string) *Graph[S] {
	if fan == nil {
		panic("stategraph: fan function cannot be nil")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.fanOuts[from]; exists {
		panic(fmt.Sprintf("stategraph: duplicate fan-out on node: %s", from))
	}

	g.fanOuts[from] = fanOut[S]{fan: fan, join: join}
	return g
}

// SetReducer sets the reducer that merges each node's returned state
// into the accumulated state. Without one, a node's return value
// replaces the previous state entirely.
//
// The reducer also rejoins parallel branch and fan-out results.
// See Fields for a per-field reducer built from merge functions.
func (g *Graph[S]) SetReducer(r Reducer[S]) *Graph[S] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.reducer = r
	return g
}

// SetBranchHook sets lifecycle callbacks for parallel execution.
// The hook applies to both static fork/join branches and fan-out sends.
func (g *Graph[S]) SetBranchHook(hook BranchHook[S]) *Graph[S] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.branchHook = hook
	return g
}

// SetForkJoinConfig sets the parallel execution configuration.
func (g *Graph[S]) SetForkJoinConfig(cfg ForkJoinConfig) *Graph[S] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.forkJoinConfig = cfg
	return g
}

// SetEntry designates the entry point node.
// This must be called before Compile().
// Returns the graph for method chaining.
//
// Entry point validation happens at Compile() time.
func (g *Graph[S]) SetEntry(id string) *Graph[S] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.entryPoint = id
	return g
}
