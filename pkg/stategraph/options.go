package stategraph

import (
	"fmt"
	"log/slog"

	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
	"github.com/randalmurphal/stategraph/pkg/stategraph/event"
	"github.com/randalmurphal/stategraph/pkg/stategraph/interrupt"
	"github.com/randalmurphal/stategraph/pkg/stategraph/observability"
)

// Execution limits.
const (
	// DefaultMaxIterations is the default node execution limit per run.
	DefaultMaxIterations = 1000

	// MaxIterationsLimit is the hard upper bound for WithMaxIterations.
	MaxIterationsLimit = 100000
)

// runConfig holds configuration for graph execution.
type runConfig struct {
	maxIterations int

	// Checkpointing
	checkpointStore        checkpoint.Store
	threadID               string
	step                   int
	checkpointFailureFatal bool

	// Interrupts
	interruptBefore map[string]bool
	interruptAfter  map[string]bool
	controller      *interrupt.Controller
	resumeValue     any
	hasResumeValue  bool

	// Observability
	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	tracingEnabled bool
	bus            event.Bus
}

// defaultRunConfig returns the default execution configuration.
func defaultRunConfig() runConfig {
	return runConfig{
		maxIterations: DefaultMaxIterations,
		logger:        slog.Default(),
		metrics:       observability.NoopMetrics{},
		spans:         observability.NoopSpanManager{},
	}
}

// RunOption configures execution behavior.
type RunOption func(*runConfig)

// WithMaxIterations sets the maximum number of node executions.
// Default: DefaultMaxIterations (1000).
//
// This prevents infinite loops from hanging forever. If a graph
// exceeds this limit, Run returns a MaxIterationsError.
//
// Panics if n is not positive or exceeds MaxIterationsLimit.
//
// Example:
//
//	result, err := compiled.Run(ctx, state, stategraph.WithMaxIterations(100))
func WithMaxIterations(n int) RunOption {
	if n <= 0 {
		panic("stategraph: max iterations must be > 0")
	}
	if n > MaxIterationsLimit {
		panic(fmt.Sprintf("stategraph: max iterations %d exceeds limit (%d)", n, MaxIterationsLimit))
	}
	return func(c *runConfig) {
		c.maxIterations = n
	}
}

// WithCheckpointing enables state persistence to the given store.
// A checkpoint is appended after every completed step, keyed by thread
// and step number. Requires WithThreadID.
//
// Example:
//
//	store := checkpoint.NewMemoryStore()
//	result, err := compiled.Run(ctx, state,
//	    stategraph.WithCheckpointing(store),
//	    stategraph.WithThreadID("thread-42"))
func WithCheckpointing(cs checkpoint.Store) RunOption {
	return func(c *runConfig) {
		c.checkpointStore = cs
	}
}

// WithThreadID sets the thread this run belongs to. All checkpoints and
// interrupts for the run are keyed by this ID, and later Resume calls
// use it to find the thread's history.
func WithThreadID(id string) RunOption {
	return func(c *runConfig) {
		c.threadID = id
	}
}

// WithCheckpointFailureFatal makes checkpoint save failures abort the
// run with a CheckpointError. By default failures are logged and
// execution continues.
func WithCheckpointFailureFatal(fatal bool) RunOption {
	return func(c *runConfig) {
		c.checkpointFailureFatal = fatal
	}
}

// WithInterruptBefore pauses the run before any of the named nodes
// executes. The run checkpoints its state and returns an
// InterruptError; Resume continues with the named node.
//
// Requires checkpointing and a thread ID.
func WithInterruptBefore(nodes ...string) RunOption {
	return func(c *runConfig) {
		if c.interruptBefore == nil {
			c.interruptBefore = make(map[string]bool, len(nodes))
		}
		for _, n := range nodes {
			c.interruptBefore[n] = true
		}
	}
}

// WithInterruptAfter pauses the run after any of the named nodes
// completes. The run checkpoints its state and returns an
// InterruptError; Resume continues with the node after it.
//
// Requires checkpointing and a thread ID.
func WithInterruptAfter(nodes ...string) RunOption {
	return func(c *runConfig) {
		if c.interruptAfter == nil {
			c.interruptAfter = make(map[string]bool, len(nodes))
		}
		for _, n := range nodes {
			c.interruptAfter[n] = true
		}
	}
}

// WithInterruptController registers interrupts with a controller so
// external actors can list and resolve them. Optional; interrupts work
// without one.
func WithInterruptController(ctrl *interrupt.Controller) RunOption {
	return func(c *runConfig) {
		c.controller = ctrl
	}
}

// WithObservabilityLogger sets the logger used for run and node
// lifecycle logging. Default: slog.Default().
func WithObservabilityLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder for this run.
// Default: no-op recorder.
func WithMetrics(m observability.MetricsRecorder) RunOption {
	return func(c *runConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracing enables span creation for the run and each node.
func WithTracing(spans observability.SpanManager) RunOption {
	return func(c *runConfig) {
		if spans != nil {
			c.spans = spans
			c.tracingEnabled = true
		}
	}
}

// WithEventBus publishes execution lifecycle events to the bus:
// run start/complete, node start/complete, checkpoints, interrupts,
// and fan-outs.
func WithEventBus(bus event.Bus) RunOption {
	return func(c *runConfig) {
		c.bus = bus
	}
}

// resumeConfig holds configuration for resume operations.
type resumeConfig struct {
	stateOverride  func(any) any
	validateState  func(any) error
	replayNode     bool
	resumeValue    any
	hasResumeValue bool
	runOptions     []RunOption
}

// ResumeOption configures resume behavior.
type ResumeOption func(*resumeConfig)

// WithStateOverride modifies the checkpointed state before resuming.
// The function receives the deserialized state and returns the state to
// resume with. The returned value must be the graph's state type; other
// types are ignored.
//
// Example:
//
//	result, err := compiled.Resume(ctx, store, "thread-42",
//	    stategraph.WithStateOverride(func(s any) any {
//	        state := s.(MyState)
//	        state.Approved = true
//	        return state
//	    }))
func WithStateOverride(fn func(any) any) ResumeOption {
	return func(c *resumeConfig) {
		c.stateOverride = fn
	}
}

// WithStateValidation validates the checkpointed state before resuming.
// Resume fails if the function returns an error.
func WithStateValidation(fn func(any) error) ResumeOption {
	return func(c *resumeConfig) {
		c.validateState = fn
	}
}

// WithReplayNode re-executes the checkpointed node instead of
// continuing with the next one.
func WithReplayNode() ResumeOption {
	return func(c *resumeConfig) {
		c.replayNode = true
	}
}

// WithRunOptions carries run options into the resumed run. Options set
// on the original Run do not survive the pause, so static interrupt
// points, observability settings, and the event bus must be re-armed
// here. The checkpoint store, thread ID, and step counter always come
// from the resume call itself; WithCheckpointing and WithThreadID are
// overridden. The pause point being resumed from does not re-trigger
// for the node it replays.
//
// Example:
//
//	result, err := compiled.Resume(ctx, store, "thread-42",
//	    stategraph.WithRunOptions(
//	        stategraph.WithInterruptBefore("review", "publish"),
//	        stategraph.WithEventBus(bus)))
func WithRunOptions(opts ...RunOption) ResumeOption {
	return func(c *resumeConfig) {
		c.runOptions = append(c.runOptions, opts...)
	}
}

// WithResumeValue supplies the answer to the interrupt this resume
// responds to. The value is visible to nodes via Context.ResumeValue;
// a node that raised a dynamic interrupt reads it there on replay.
func WithResumeValue(v any) ResumeOption {
	return func(c *resumeConfig) {
		c.resumeValue = v
		c.hasResumeValue = true
	}
}
