// Package registry provides a generic thread-safe key/value registry.
//
// It is used internally by the interrupt controller to track pending
// interrupts by thread, but is exported for callers that need to index
// compiled graphs, reducers, or other runtime values by name.
package registry
