package benchmarks

import (
	"context"
	"testing"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
)

// BenchmarkRun_Linear_5 runs a 5-node linear graph.
func BenchmarkRun_Linear_5(b *testing.B) {
	compiled := mustCompile(buildLinearGraph(5))
	ctx := stategraph.NewContext(context.Background())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = compiled.Run(ctx, State{})
	}
}

// BenchmarkRun_Linear_10 runs a 10-node linear graph.
func BenchmarkRun_Linear_10(b *testing.B) {
	compiled := mustCompile(buildLinearGraph(10))
	ctx := stategraph.NewContext(context.Background())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = compiled.Run(ctx, State{})
	}
}

// BenchmarkRun_Linear_50 runs a 50-node linear graph.
func BenchmarkRun_Linear_50(b *testing.B) {
	compiled := mustCompile(buildLinearGraph(50))
	ctx := stategraph.NewContext(context.Background())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = compiled.Run(ctx, State{})
	}
}

// BenchmarkRun_Linear_100 runs a 100-node linear graph.
func BenchmarkRun_Linear_100(b *testing.B) {
	compiled := mustCompile(buildLinearGraph(100))
	ctx := stategraph.NewContext(context.Background())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = compiled.Run(ctx, State{})
	}
}

// BenchmarkRun_Branching runs a graph with conditional edges.
func BenchmarkRun_Branching(b *testing.B) {
	compiled := mustCompile(buildBranchingGraph())
	ctx := stategraph.NewContext(context.Background())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = compiled.Run(ctx, State{Value: i})
	}
}

// BenchmarkRun_Loop runs a looping graph (3 iterations).
func BenchmarkRun_Loop(b *testing.B) {
	compiled := mustCompile(buildLoopGraph(3))
	ctx := stategraph.NewContext(context.Background())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = compiled.Run(ctx, State{})
	}
}

// BenchmarkRun_Loop_10 runs a looping graph (10 iterations).
func BenchmarkRun_Loop_10(b *testing.B) {
	compiled := mustCompile(buildLoopGraph(10))
	ctx := stategraph.NewContext(context.Background())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = compiled.Run(ctx, State{})
	}
}

// BenchmarkRun_FanOut_4 runs a fan-out graph with 4 sends per run.
func BenchmarkRun_FanOut_4(b *testing.B) {
	compiled := mustCompile(buildFanOutGraph(4))
	ctx := stategraph.NewContext(context.Background())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = compiled.Run(ctx, State{})
	}
}

// BenchmarkRun_FanOut_32 runs a fan-out graph with 32 sends per run.
func BenchmarkRun_FanOut_32(b *testing.B) {
	compiled := mustCompile(buildFanOutGraph(32))
	ctx := stategraph.NewContext(context.Background())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = compiled.Run(ctx, State{})
	}
}

// BenchmarkContextCreation measures context creation overhead.
func BenchmarkContextCreation(b *testing.B) {
	bg := context.Background()
	for i := 0; i < b.N; i++ {
		stategraph.NewContext(bg)
	}
}

// Helper functions

func mustCompile(g *stategraph.Graph[State]) *stategraph.CompiledGraph[State] {
	compiled, err := g.Compile()
	if err != nil {
		panic(err)
	}
	return compiled
}

func buildLoopGraph(maxIterations int) *stategraph.Graph[State] {
	counter := 0
	loopNode := func(ctx stategraph.Context, s State) (State, error) {
		s.Value++
		return s, nil
	}

	router := func(ctx stategraph.Context, s State) string {
		counter++
		if counter >= maxIterations {
			counter = 0 // Reset for next run
			return "done"
		}
		return "loop"
	}

	return stategraph.NewGraph[State]().
		AddNode("loop", loopNode).
		AddNode("done", noopNode).
		AddConditionalEdge("loop", router).
		AddEdge("done", stategraph.END).
		SetEntry("loop")
}

func buildFanOutGraph(sends int) *stategraph.Graph[State] {
	worker := func(ctx stategraph.Context, s State) (State, error) {
		return State{Value: 1}, nil
	}

	fan := func(ctx stategraph.Context, s State) []stategraph.Send[State] {
		out := make([]stategraph.Send[State], sends)
		for i := range out {
			out[i] = stategraph.Send[State]{To: "worker", State: State{}}
		}
		return out
	}

	collect := func(ctx stategraph.Context, s State) (State, error) {
		return State{}, nil
	}

	return stategraph.NewGraph[State]().
		AddNode("plan", noopNode).
		AddNode("worker", worker).
		AddNode("collect", collect).
		AddFanOut("plan", fan, "collect").
		AddEdge("collect", stategraph.END).
		SetEntry("plan").
		SetReducer(stategraph.Fields[State](map[string]stategraph.FieldMerge{
			"Value": stategraph.Sum,
		}))
}
