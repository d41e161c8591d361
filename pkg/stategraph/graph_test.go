package stategraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewGraph tests graph builder creation.
func TestNewGraph(t *testing.T) {
	graph := NewGraph[Counter]()

	require.NotNil(t, graph)
	assert.Empty(t, graph.nodes)
	assert.Empty(t, graph.edges)
	assert.Empty(t, graph.conditionalEdges)
	assert.Empty(t, graph.fanOuts)
	assert.Empty(t, graph.entryPoint)
}

// TestAddNode_Chaining tests that builder methods chain.
func TestAddNode_Chaining(t *testing.T) {
	graph := NewGraph[Counter]().
		AddNode("a", increment).
		AddNode("b", increment).
		AddEdge("a", "b").
		AddEdge("b", END).
		SetEntry("a")

	assert.Len(t, graph.nodes, 2)
	assert.Equal(t, "a", graph.entryPoint)
}

// TestAddNode_EmptyID tests that empty node IDs panic.
func TestAddNode_EmptyID(t *testing.T) {
	assert.PanicsWithValue(t, "stategraph: node ID cannot be empty", func() {
		NewGraph[Counter]().AddNode("", increment)
	})
}

// TestAddNode_ReservedID tests that reserved words panic.
func TestAddNode_ReservedID(t *testing.T) {
	reserved := []string{"END", "end", "End", "__end__", "__END__"}
	for _, id := range reserved {
		t.Run(id, func(t *testing.T) {
			assert.Panics(t, func() {
				NewGraph[Counter]().AddNode(id, increment)
			})
		})
	}
}

// TestAddNode_WhitespaceID tests that IDs with whitespace panic.
func TestAddNode_WhitespaceID(t *testing.T) {
	ids := []string{"has space", "has\ttab", "has\nnewline"}
	for _, id := range ids {
		assert.Panics(t, func() {
			NewGraph[Counter]().AddNode(id, increment)
		})
	}
}

// TestAddNode_NilFunc tests that nil node functions panic.
func TestAddNode_NilFunc(t *testing.T) {
	assert.PanicsWithValue(t, "stategraph: node function cannot be nil", func() {
		NewGraph[Counter]().AddNode("a", nil)
	})
}

// TestAddNode_Duplicate tests that duplicate node IDs panic.
func TestAddNode_Duplicate(t *testing.T) {
	assert.Panics(t, func() {
		NewGraph[Counter]().
			AddNode("a", increment).
			AddNode("a", increment)
	})
}

// TestAddConditionalEdge_NilRouter tests that nil routers panic.
func TestAddConditionalEdge_NilRouter(t *testing.T) {
	assert.PanicsWithValue(t, "stategraph: router function cannot be nil", func() {
		NewGraph[Counter]().AddConditionalEdge("a", nil)
	})
}

// TestAddFanOut_NilFan tests that nil fan functions panic.
func TestAddFanOut_NilFan(t *testing.T) {
	assert.PanicsWithValue(t, "stategraph: fan function cannot be nil", func() {
		NewGraph[Counter]().AddFanOut("a", nil, "b")
	})
}

// TestAddFanOut_Duplicate tests that two fan-outs on one node panic.
func TestAddFanOut_Duplicate(t *testing.T) {
	fan := func(ctx Context, s Counter) []Send[Counter] { return nil }

	assert.Panics(t, func() {
		NewGraph[Counter]().
			AddNode("a", increment).
			AddFanOut("a", fan, END).
			AddFanOut("a", fan, END)
	})
}

// TestSetReducer tests reducer registration.
func TestSetReducer(t *testing.T) {
	graph := NewGraph[Counter]().
		SetReducer(func(prev, next Counter) Counter {
			prev.Value += next.Value
			return prev
		})

	assert.NotNil(t, graph.reducer)
}
