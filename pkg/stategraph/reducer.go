package stategraph

import (
	"fmt"
	"reflect"
)

// Reducer merges a node's returned state into the accumulated state.
// prev is the state before the node ran; next is what the node returned.
//
// Without a reducer, the engine replaces prev with next. Set a reducer
// with Graph.SetReducer to accumulate instead: append message lists,
// sum counters, union maps. The same reducer rejoins parallel branch
// and fan-out results into shared state.
type Reducer[S any] func(prev, next S) S

// Replace returns the default reducer: the node's returned state wins.
func Replace[S any]() Reducer[S] {
	return func(prev, next S) S {
		return next
	}
}

// FieldMerge merges a single struct field during reduction.
// prev and next are the field values from the two states; the returned
// value must be assignable to the field's type.
type FieldMerge func(prev, next reflect.Value) reflect.Value

// Fields builds a per-field reducer for a struct state type S.
//
// Fields named in merges are combined with their merge function on every
// reduction. All other exported fields follow last-write-wins on set
// values: the node's value is taken when it is non-zero, otherwise the
// previous value is kept. This lets nodes return sparse updates that
// only populate the fields they changed.
//
// Panics if S is not a struct or a merge names an unknown field.
//
// Example:
//
//	reducer := stategraph.Fields[ChatState](map[string]stategraph.FieldMerge{
//	    "Messages": stategraph.Append,
//	    "Tokens":   stategraph.Sum,
//	})
func Fields[S any](merges map[string]FieldMerge) Reducer[S] {
	var zero S
	t := reflect.TypeOf(zero)
	if t == nil || t.Kind() != reflect.Struct {
		panic("stategraph: Fields requires a struct state type")
	}
	for name := range merges {
		if _, ok := t.FieldByName(name); !ok {
			panic(fmt.Sprintf("stategraph: Fields merge references unknown field %q on %s", name, t.Name()))
		}
	}

	return func(prev, next S) S {
		pv := reflect.ValueOf(prev)
		nv := reflect.ValueOf(next)
		out := reflect.New(t).Elem()
		out.Set(pv)

		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			nf := nv.Field(i)
			if merge, ok := merges[f.Name]; ok {
				out.Field(i).Set(merge(pv.Field(i), nf))
			} else if !nf.IsZero() {
				out.Field(i).Set(nf)
			}
		}

		return out.Interface().(S)
	}
}

// Append concatenates slice fields: prev's elements followed by next's.
// A nil prev yields next unchanged.
func Append(prev, next reflect.Value) reflect.Value {
	if prev.Kind() != reflect.Slice || next.Kind() != reflect.Slice {
		return next
	}
	if prev.IsNil() {
		return next
	}
	if next.IsNil() || next.Len() == 0 {
		return prev
	}
	merged := reflect.MakeSlice(prev.Type(), 0, prev.Len()+next.Len())
	merged = reflect.AppendSlice(merged, prev)
	merged = reflect.AppendSlice(merged, next)
	return merged
}

// Sum adds numeric fields (signed, unsigned, or float).
// Non-numeric fields fall back to next.
func Sum(prev, next reflect.Value) reflect.Value {
	out := reflect.New(prev.Type()).Elem()
	switch prev.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		out.SetInt(prev.Int() + next.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		out.SetUint(prev.Uint() + next.Uint())
	case reflect.Float32, reflect.Float64:
		out.SetFloat(prev.Float() + next.Float())
	default:
		return next
	}
	return out
}

// KeepFirst retains the previous value once set; next only fills zeros.
func KeepFirst(prev, next reflect.Value) reflect.Value {
	if !prev.IsZero() {
		return prev
	}
	return next
}

// Overwrite always takes the node's value, even when zero.
// Use for fields where the zero value is meaningful (cleared flags).
func Overwrite(prev, next reflect.Value) reflect.Value {
	return next
}

// MergeMaps unions map fields; next's entries win on key conflicts.
// A nil prev yields next unchanged.
func MergeMaps(prev, next reflect.Value) reflect.Value {
	if prev.Kind() != reflect.Map || next.Kind() != reflect.Map {
		return next
	}
	if prev.IsNil() {
		return next
	}
	if next.IsNil() || next.Len() == 0 {
		return prev
	}
	merged := reflect.MakeMapWithSize(prev.Type(), prev.Len()+next.Len())
	for _, key := range prev.MapKeys() {
		merged.SetMapIndex(key, prev.MapIndex(key))
	}
	for _, key := range next.MapKeys() {
		merged.SetMapIndex(key, next.MapIndex(key))
	}
	return merged
}
