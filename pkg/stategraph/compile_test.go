package stategraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCompile_Valid tests successful compilation of a simple graph.
func TestCompile_Valid(t *testing.T) {
	graph := NewGraph[Counter]().
		AddNode("a", increment).
		AddNode("b", increment).
		AddEdge("a", "b").
		AddEdge("b", END).
		SetEntry("a")

	compiled, err := graph.Compile()

	require.NoError(t, err)
	require.NotNil(t, compiled)
	assert.Equal(t, "a", compiled.EntryPoint())
	assert.ElementsMatch(t, []string{"a", "b"}, compiled.NodeIDs())
	assert.True(t, compiled.HasNode("a"))
	assert.False(t, compiled.HasNode("missing"))
}

// TestCompile_NoEntryPoint tests that missing entry fails compilation.
func TestCompile_NoEntryPoint(t *testing.T) {
	graph := NewGraph[Counter]().
		AddNode("a", increment).
		AddEdge("a", END)

	_, err := graph.Compile()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoEntryPoint)
}

// TestCompile_EntryNotFound tests that an unknown entry node fails.
func TestCompile_EntryNotFound(t *testing.T) {
	graph := NewGraph[Counter]().
		AddNode("a", increment).
		AddEdge("a", END).
		SetEntry("missing")

	_, err := graph.Compile()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

// TestCompile_EdgeTargetNotFound tests that edges to unknown nodes fail.
func TestCompile_EdgeTargetNotFound(t *testing.T) {
	graph := NewGraph[Counter]().
		AddNode("a", increment).
		AddEdge("a", "missing").
		SetEntry("a")

	_, err := graph.Compile()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

// TestCompile_EdgeSourceNotFound tests that edges from unknown nodes fail.
func TestCompile_EdgeSourceNotFound(t *testing.T) {
	graph := NewGraph[Counter]().
		AddNode("a", increment).
		AddEdge("a", END).
		AddEdge("ghost", "a").
		SetEntry("a")

	_, err := graph.Compile()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

// TestCompile_NoPathToEnd tests that unterminated graphs fail.
func TestCompile_NoPathToEnd(t *testing.T) {
	graph := NewGraph[Counter]().
		AddNode("a", increment).
		AddNode("b", increment).
		AddEdge("a", "b").
		AddEdge("b", "a").
		SetEntry("a")

	_, err := graph.Compile()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoPathToEnd)
}

// TestCompile_MultipleErrors tests that validation errors accumulate.
func TestCompile_MultipleErrors(t *testing.T) {
	graph := NewGraph[Counter]().
		AddNode("a", increment).
		AddEdge("a", "missing1").
		AddEdge("a", "missing2")

	_, err := graph.Compile()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoEntryPoint)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

// TestCompile_FanOutSourceNotFound tests fan-out source validation.
func TestCompile_FanOutSourceNotFound(t *testing.T) {
	fan := func(ctx Context, s Counter) []Send[Counter] { return nil }

	graph := NewGraph[Counter]().
		AddNode("a", increment).
		AddEdge("a", END).
		AddFanOut("ghost", fan, END).
		SetEntry("a")

	_, err := graph.Compile()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

// TestCompile_FanOutJoinNotFound tests fan-out join validation.
func TestCompile_FanOutJoinNotFound(t *testing.T) {
	fan := func(ctx Context, s Counter) []Send[Counter] { return nil }

	graph := NewGraph[Counter]().
		AddNode("a", increment).
		AddFanOut("a", fan, "missing").
		SetEntry("a")

	_, err := graph.Compile()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

// TestCompile_FanOutConflictsWithEdges tests mixed edge/fan-out rejection.
func TestCompile_FanOutConflictsWithEdges(t *testing.T) {
	fan := func(ctx Context, s Counter) []Send[Counter] { return nil }

	graph := NewGraph[Counter]().
		AddNode("a", increment).
		AddNode("b", increment).
		AddEdge("a", "b").
		AddEdge("b", END).
		AddFanOut("a", fan, END).
		SetEntry("a")

	_, err := graph.Compile()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "both a fan-out and simple edges")
}

// TestCompile_FanOutConflictsWithRouter tests fan-out + router rejection.
func TestCompile_FanOutConflictsWithRouter(t *testing.T) {
	fan := func(ctx Context, s Counter) []Send[Counter] { return nil }
	router := func(ctx Context, s Counter) string { return END }

	graph := NewGraph[Counter]().
		AddNode("a", increment).
		AddConditionalEdge("a", router).
		AddFanOut("a", fan, END).
		SetEntry("a")

	_, err := graph.Compile()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "both a fan-out and a conditional edge")
}

// TestCompile_FanOutToEnd tests a fan-out joining directly at END.
func TestCompile_FanOutToEnd(t *testing.T) {
	fan := func(ctx Context, s Counter) []Send[Counter] { return nil }

	graph := NewGraph[Counter]().
		AddNode("a", increment).
		AddNode("worker", increment).
		AddEdge("worker", END).
		AddFanOut("a", fan, END).
		SetEntry("a")

	compiled, err := graph.Compile()

	require.NoError(t, err)
	assert.True(t, compiled.HasFanOut("a"))
	assert.Equal(t, END, compiled.FanOutJoin("a"))
}

// TestCompile_ForkJoinDetection tests fork/join post-dominator analysis.
func TestCompile_ForkJoinDetection(t *testing.T) {
	graph := NewGraph[State]().
		AddNode("fork", passthrough[State]).
		AddNode("left", passthrough[State]).
		AddNode("right", passthrough[State]).
		AddNode("join", passthrough[State]).
		AddEdge("fork", "left").
		AddEdge("fork", "right").
		AddEdge("left", "join").
		AddEdge("right", "join").
		AddEdge("join", END).
		SetEntry("fork")

	compiled, err := graph.Compile()
	require.NoError(t, err)

	require.True(t, compiled.IsForkNode("fork"))
	fork := compiled.GetForkNode("fork")
	require.NotNil(t, fork)
	assert.ElementsMatch(t, []string{"left", "right"}, fork.Branches)
	assert.Equal(t, "join", fork.JoinNodeID)

	require.True(t, compiled.IsJoinNode("join"))
	join := compiled.GetJoinNode("join")
	assert.Equal(t, "fork", join.ForkNodeID)

	assert.True(t, compiled.HasParallelExecution())
}

// TestCompile_ConditionalNotFork tests that routers don't count as forks.
func TestCompile_ConditionalNotFork(t *testing.T) {
	router := func(ctx Context, s State) string { return END }

	graph := NewGraph[State]().
		AddNode("a", passthrough[State]).
		AddConditionalEdge("a", router).
		SetEntry("a")

	compiled, err := graph.Compile()

	require.NoError(t, err)
	assert.False(t, compiled.IsForkNode("a"))
	assert.True(t, compiled.IsConditional("a"))
	assert.False(t, compiled.HasParallelExecution())
}

// TestCompile_DefaultReducerReplaces tests replace semantics without a
// reducer.
func TestCompile_DefaultReducerReplaces(t *testing.T) {
	graph := NewGraph[Counter]().
		AddNode("a", increment).
		AddEdge("a", END).
		SetEntry("a")

	compiled, err := graph.Compile()
	require.NoError(t, err)

	merged := compiled.reduce(Counter{Value: 1}, Counter{Value: 5})
	assert.Equal(t, 5, merged.Value)
	assert.False(t, compiled.hasReducer)
}

// TestCompile_Introspection tests successor and predecessor lookup.
func TestCompile_Introspection(t *testing.T) {
	graph := NewGraph[Counter]().
		AddNode("a", increment).
		AddNode("b", increment).
		AddEdge("a", "b").
		AddEdge("b", END).
		SetEntry("a")

	compiled, err := graph.Compile()
	require.NoError(t, err)

	assert.Equal(t, []string{"b"}, compiled.Successors("a"))
	assert.Equal(t, []string{"a"}, compiled.Predecessors("b"))
	assert.Nil(t, compiled.Successors(END))
}
