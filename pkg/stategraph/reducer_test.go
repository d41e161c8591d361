package stategraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestReplace tests the default replace reducer.
func TestReplace(t *testing.T) {
	r := Replace[Counter]()

	result := r(Counter{Value: 1}, Counter{Value: 9})

	assert.Equal(t, 9, result.Value)
}

// TestFields_Append tests slice concatenation.
func TestFields_Append(t *testing.T) {
	r := Fields[ChatState](map[string]FieldMerge{
		"Messages": Append,
	})

	result := r(
		ChatState{Messages: []string{"a", "b"}},
		ChatState{Messages: []string{"c"}},
	)

	assert.Equal(t, []string{"a", "b", "c"}, result.Messages)
}

// TestFields_AppendNilPrev tests appending onto a nil slice.
func TestFields_AppendNilPrev(t *testing.T) {
	r := Fields[ChatState](map[string]FieldMerge{
		"Messages": Append,
	})

	result := r(ChatState{}, ChatState{Messages: []string{"first"}})

	assert.Equal(t, []string{"first"}, result.Messages)
}

// TestFields_Sum tests numeric addition.
func TestFields_Sum(t *testing.T) {
	r := Fields[ChatState](map[string]FieldMerge{
		"Tokens": Sum,
	})

	result := r(ChatState{Tokens: 10}, ChatState{Tokens: 5})

	assert.Equal(t, 15, result.Tokens)
}

// TestFields_KeepFirst tests first-write-wins semantics.
func TestFields_KeepFirst(t *testing.T) {
	r := Fields[ChatState](map[string]FieldMerge{
		"Topic": KeepFirst,
	})

	result := r(ChatState{Topic: "original"}, ChatState{Topic: "override"})
	assert.Equal(t, "original", result.Topic)

	result = r(ChatState{}, ChatState{Topic: "fills-zero"})
	assert.Equal(t, "fills-zero", result.Topic)
}

// TestFields_Overwrite tests that zero values still overwrite.
func TestFields_Overwrite(t *testing.T) {
	type Flags struct {
		Active bool
	}

	r := Fields[Flags](map[string]FieldMerge{
		"Active": Overwrite,
	})

	result := r(Flags{Active: true}, Flags{Active: false})

	assert.False(t, result.Active)
}

// TestFields_MergeMaps tests map union with next winning conflicts.
func TestFields_MergeMaps(t *testing.T) {
	r := Fields[ChatState](map[string]FieldMerge{
		"Facts": MergeMaps,
	})

	result := r(
		ChatState{Facts: map[string]string{"name": "ada", "lang": "go"}},
		ChatState{Facts: map[string]string{"lang": "rust", "role": "dev"}},
	)

	assert.Equal(t, map[string]string{
		"name": "ada",
		"lang": "rust",
		"role": "dev",
	}, result.Facts)
}

// TestFields_SparseUpdate tests that unregistered zero fields keep the
// previous value while set fields take the node's value.
func TestFields_SparseUpdate(t *testing.T) {
	r := Fields[ChatState](map[string]FieldMerge{
		"Messages": Append,
	})

	prev := ChatState{Messages: []string{"hi"}, Tokens: 7, Topic: "weather"}
	next := ChatState{Messages: []string{"more"}, Topic: "news"}

	result := r(prev, next)

	assert.Equal(t, []string{"hi", "more"}, result.Messages)
	assert.Equal(t, 7, result.Tokens)       // zero in next, kept
	assert.Equal(t, "news", result.Topic)   // set in next, taken
}

// TestFields_NonStructPanics tests the struct requirement.
func TestFields_NonStructPanics(t *testing.T) {
	assert.Panics(t, func() {
		Fields[int](nil)
	})
}

// TestFields_UnknownFieldPanics tests merge name validation.
func TestFields_UnknownFieldPanics(t *testing.T) {
	assert.Panics(t, func() {
		Fields[Counter](map[string]FieldMerge{
			"Missing": Sum,
		})
	})
}

// TestFields_CombinedMerges tests multiple merges in one reducer.
func TestFields_CombinedMerges(t *testing.T) {
	r := Fields[ChatState](map[string]FieldMerge{
		"Messages": Append,
		"Tokens":   Sum,
		"Facts":    MergeMaps,
	})

	prev := ChatState{
		Messages: []string{"q"},
		Tokens:   4,
		Facts:    map[string]string{"a": "1"},
	}
	next := ChatState{
		Messages: []string{"a"},
		Tokens:   6,
		Facts:    map[string]string{"b": "2"},
	}

	result := r(prev, next)

	require.Equal(t, []string{"q", "a"}, result.Messages)
	assert.Equal(t, 10, result.Tokens)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, result.Facts)
}
