package stategraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestWithMaxIterations_Valid tests valid max iterations values.
func TestWithMaxIterations_Valid(t *testing.T) {
	tests := []struct {
		name  string
		value int
	}{
		{"minimum valid", 1},
		{"typical value", 100},
		{"default value", DefaultMaxIterations},
		{"large value", 50000},
		{"maximum valid", MaxIterationsLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				opt := WithMaxIterations(tt.value)
				cfg := defaultRunConfig()
				opt(&cfg)
				assert.Equal(t, tt.value, cfg.maxIterations)
			})
		})
	}
}

// TestWithMaxIterations_PanicsOnZero tests panic for zero value.
func TestWithMaxIterations_PanicsOnZero(t *testing.T) {
	assert.PanicsWithValue(t, "stategraph: max iterations must be > 0", func() {
		WithMaxIterations(0)
	})
}

// TestWithMaxIterations_PanicsOnNegative tests panic for negative values.
func TestWithMaxIterations_PanicsOnNegative(t *testing.T) {
	assert.PanicsWithValue(t, "stategraph: max iterations must be > 0", func() {
		WithMaxIterations(-1)
	})

	assert.PanicsWithValue(t, "stategraph: max iterations must be > 0", func() {
		WithMaxIterations(-100)
	})
}

// TestWithMaxIterations_PanicsOnExceedingLimit tests panic for values exceeding limit.
func TestWithMaxIterations_PanicsOnExceedingLimit(t *testing.T) {
	assert.PanicsWithValue(t, "stategraph: max iterations 100001 exceeds limit (100000)", func() {
		WithMaxIterations(MaxIterationsLimit + 1)
	})

	assert.PanicsWithValue(t, "stategraph: max iterations 1000000 exceeds limit (100000)", func() {
		WithMaxIterations(1000000)
	})
}

// TestDefaultMaxIterations_Constant tests the default constant value.
func TestDefaultMaxIterations_Constant(t *testing.T) {
	assert.Equal(t, 1000, DefaultMaxIterations)
	assert.Equal(t, 100000, MaxIterationsLimit)
}

// TestWithThreadID_SetsThread tests thread ID propagation into config.
func TestWithThreadID_SetsThread(t *testing.T) {
	cfg := defaultRunConfig()
	WithThreadID("thread-42")(&cfg)
	assert.Equal(t, "thread-42", cfg.threadID)
}

// TestWithCheckpointFailureFatal_SetsFlag tests the fatal flag option.
func TestWithCheckpointFailureFatal_SetsFlag(t *testing.T) {
	cfg := defaultRunConfig()
	assert.False(t, cfg.checkpointFailureFatal)
	WithCheckpointFailureFatal(true)(&cfg)
	assert.True(t, cfg.checkpointFailureFatal)
	WithCheckpointFailureFatal(false)(&cfg)
	assert.False(t, cfg.checkpointFailureFatal)
}

// TestWithInterruptBeforeAfter_CollectsNodes tests interrupt node sets.
func TestWithInterruptBeforeAfter_CollectsNodes(t *testing.T) {
	cfg := defaultRunConfig()
	WithInterruptBefore("review", "publish")(&cfg)
	WithInterruptAfter("draft")(&cfg)

	assert.True(t, cfg.interruptBefore["review"])
	assert.True(t, cfg.interruptBefore["publish"])
	assert.True(t, cfg.interruptAfter["draft"])
	assert.False(t, cfg.interruptAfter["review"])
}

// TestWithResumeValue_MarksPresence tests that a nil resume value is
// still distinguishable from no resume value.
func TestWithResumeValue_MarksPresence(t *testing.T) {
	cfg := resumeConfig{}
	assert.False(t, cfg.hasResumeValue)

	WithResumeValue(nil)(&cfg)
	assert.True(t, cfg.hasResumeValue)
	assert.Nil(t, cfg.resumeValue)
}
