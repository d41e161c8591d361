package stategraph

import (
	"context"
	"log/slog"

	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
	"github.com/randalmurphal/stategraph/pkg/stategraph/store"
)

// Context provides execution context to nodes.
// It extends context.Context with stategraph-specific services and metadata.
//
// Context is immutable after creation. The executor creates derived contexts
// for each node with updated NodeID and enriched logger.
type Context interface {
	context.Context

	// Services

	// Logger returns the configured logger, enriched with thread and node
	// context. Never returns nil - defaults to slog.Default() if not
	// configured.
	Logger() *slog.Logger

	// Checkpointer returns the checkpoint store, or nil if not configured.
	// Nodes should check for nil before using.
	Checkpointer() checkpoint.Store

	// Store returns the cross-thread key-value store, or nil if not
	// configured. Nodes use it to persist facts visible to other threads.
	Store() store.Store

	// Metadata

	// ThreadID returns the conversation thread this run belongs to.
	// Empty string when checkpointing is not in use.
	ThreadID() string

	// NodeID returns the current node being executed.
	// Empty string before execution starts.
	NodeID() string

	// Attempt returns the retry attempt number (1 = first attempt).
	Attempt() int

	// ResumeValue returns the value supplied when resuming from an
	// interrupt (via WithResumeValue), or nil. Nodes that raised a
	// dynamic interrupt read their answer here on replay.
	ResumeValue() any
}

// executionContext is the internal implementation of Context.
type executionContext struct {
	context.Context

	logger       *slog.Logger
	checkpointer checkpoint.Store
	kvStore      store.Store
	threadID     string
	nodeID       string
	attempt      int
	resumeValue  any
}

// Logger returns the configured logger.
func (c *executionContext) Logger() *slog.Logger {
	return c.logger
}

// Checkpointer returns the checkpoint store.
func (c *executionContext) Checkpointer() checkpoint.Store {
	return c.checkpointer
}

// Store returns the cross-thread key-value store.
func (c *executionContext) Store() store.Store {
	return c.kvStore
}

// ThreadID returns the thread identifier.
func (c *executionContext) ThreadID() string {
	return c.threadID
}

// NodeID returns the current node identifier.
func (c *executionContext) NodeID() string {
	return c.nodeID
}

// Attempt returns the retry attempt number.
func (c *executionContext) Attempt() int {
	return c.attempt
}

// ResumeValue returns the interrupt answer, if any.
func (c *executionContext) ResumeValue() any {
	return c.resumeValue
}

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the logger for the context.
// The logger will be enriched with thread_id, node_id, and attempt during
// execution.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		c.logger = logger
	}
}

// WithCheckpointer sets the checkpoint store for the context.
func WithCheckpointer(cs checkpoint.Store) ContextOption {
	return func(c *executionContext) {
		c.checkpointer = cs
	}
}

// WithStore sets the cross-thread key-value store for the context.
func WithStore(kv store.Store) ContextOption {
	return func(c *executionContext) {
		c.kvStore = kv
	}
}

// WithContextThreadID sets the thread identifier on the context.
// This is used for logging and tracing. For checkpointing, use
// WithThreadID() as a RunOption with Run().
func WithContextThreadID(id string) ContextOption {
	return func(c *executionContext) {
		c.threadID = id
	}
}

// NewContext creates an execution context from a standard context.
// The returned Context wraps the provided context.Context and adds
// stategraph-specific services and metadata.
//
// Example:
//
//	ctx := stategraph.NewContext(context.Background(),
//	    stategraph.WithLogger(myLogger),
//	    stategraph.WithStore(memStore))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context: ctx,
		logger:  slog.Default(),
		attempt: 1,
	}

	for _, opt := range opts {
		opt(ec)
	}

	return ec
}

// clone returns a shallow copy of the context.
func (c *executionContext) clone() *executionContext {
	copied := *c
	return &copied
}

// withNodeID returns a new context with the given node ID set.
// Used internally by the executor to enrich the context per-node.
func (c *executionContext) withNodeID(nodeID string) *executionContext {
	derived := c.clone()
	derived.nodeID = nodeID
	derived.logger = c.logger.With("thread_id", c.threadID, "node_id", nodeID, "attempt", c.attempt)
	return derived
}

// withRunConfig returns a new context carrying run-level settings:
// thread ID, checkpoint store, and resume value from the run options.
// Context-level settings win when the run option is unset.
func (c *executionContext) withRunConfig(cfg *runConfig) *executionContext {
	derived := c.clone()
	if cfg.threadID != "" {
		derived.threadID = cfg.threadID
	}
	if cfg.checkpointStore != nil {
		derived.checkpointer = cfg.checkpointStore
	}
	if cfg.hasResumeValue {
		derived.resumeValue = cfg.resumeValue
	}
	return derived
}
