// Package store provides namespace-keyed key-value persistence that is
// independent of any single conversation thread.
//
// Unlike checkpoints, which snapshot one thread's execution state, the
// store holds long-lived data shared across threads: user profiles,
// preferences, accumulated memories. Nodes reach it through
// Context.Store() when one is configured for the run.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Namespace is a hierarchical key prefix, e.g. ["users", "alice", "memories"].
// Namespaces partition the store so unrelated data never collides.
type Namespace []string

// String joins the namespace parts with "/".
func (ns Namespace) String() string {
	return strings.Join(ns, "/")
}

// Validate returns an error if the namespace is empty or contains
// empty or "/"-bearing parts.
func (ns Namespace) Validate() error {
	if len(ns) == 0 {
		return ErrEmptyNamespace
	}
	for _, part := range ns {
		if part == "" {
			return ErrEmptyNamespace
		}
		if strings.Contains(part, "/") {
			return ErrInvalidNamespace
		}
	}
	return nil
}

// Item is a stored value with metadata.
type Item struct {
	Namespace Namespace       `json:"namespace"`
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Decode unmarshals the item's value into v.
func (it *Item) Decode(v any) error {
	return json.Unmarshal(it.Value, v)
}

// Store is namespace-keyed key-value persistence.
// Implementations must be safe for concurrent use.
type Store interface {
	// Put stores a value under (namespace, key). The value is JSON-encoded.
	// Overwrites an existing value, preserving CreatedAt.
	Put(ctx context.Context, ns Namespace, key string, value any) error

	// Get retrieves an item. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, ns Namespace, key string) (*Item, error)

	// Delete removes an item. Returns nil if it doesn't exist.
	Delete(ctx context.Context, ns Namespace, key string) error

	// List returns all items in a namespace whose key starts with prefix,
	// ordered by key. An empty prefix returns the whole namespace.
	List(ctx context.Context, ns Namespace, prefix string) ([]Item, error)

	// Close releases any resources (connections, files).
	Close() error
}

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates the item doesn't exist.
	ErrNotFound = errors.New("store: item not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("store: closed")

	// ErrEmptyNamespace indicates a namespace with no (or empty) parts.
	ErrEmptyNamespace = errors.New("store: namespace must have at least one non-empty part")

	// ErrInvalidNamespace indicates a namespace part containing "/".
	ErrInvalidNamespace = errors.New("store: namespace parts cannot contain '/'")

	// ErrEmptyKey indicates an empty key.
	ErrEmptyKey = errors.New("store: key cannot be empty")
)

// envelope is the serialized form shared by backends that store a single
// blob per item (SQLite data column, Redis hash field).
type envelope struct {
	Value     json.RawMessage `json:"value"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// encodeValue validates inputs and JSON-encodes the value.
func encodeValue(ns Namespace, key string, value any) (json.RawMessage, error) {
	if err := ns.Validate(); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, ErrEmptyKey
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return data, nil
}
