package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists cross-thread data to Redis.
// Each namespace maps to one Redis hash; items are hash fields holding
// a JSON envelope with value and timestamps.
//
// Use this backend when multiple processes share the store.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix sets the Redis key prefix for namespace hashes.
// Default: "stategraph:store:".
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *RedisStore) {
		r.keyPrefix = prefix
	}
}

// NewRedisStore creates a Redis-backed store using an existing client.
// The caller retains ownership of the client; Close() does not close it.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	r := &RedisStore{
		client:    client,
		keyPrefix: "stategraph:store:",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// nsKey returns the Redis key for a namespace hash.
func (r *RedisStore) nsKey(ns Namespace) string {
	return r.keyPrefix + ns.String()
}

// Put implements Store.
func (r *RedisStore) Put(ctx context.Context, ns Namespace, key string, value any) error {
	data, err := encodeValue(ns, key, value)
	if err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return ErrStoreClosed
	}

	now := time.Now().UTC()
	env := envelope{
		Value:     data,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Preserve CreatedAt on overwrite.
	if existing, err := r.client.HGet(ctx, r.nsKey(ns), key).Bytes(); err == nil {
		var prev envelope
		if json.Unmarshal(existing, &prev) == nil && !prev.CreatedAt.IsZero() {
			env.CreatedAt = prev.CreatedAt
		}
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	if err := r.client.HSet(ctx, r.nsKey(ns), key, payload).Err(); err != nil {
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context, ns Namespace, key string) (*Item, error) {
	if err := ns.Validate(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, ErrStoreClosed
	}

	payload, err := r.client.HGet(ctx, r.nsKey(ns), key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	return &Item{
		Namespace: append(Namespace(nil), ns...),
		Key:       key,
		Value:     env.Value,
		CreatedAt: env.CreatedAt,
		UpdatedAt: env.UpdatedAt,
	}, nil
}

// Delete implements Store.
func (r *RedisStore) Delete(ctx context.Context, ns Namespace, key string) error {
	if err := ns.Validate(); err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return ErrStoreClosed
	}

	if err := r.client.HDel(ctx, r.nsKey(ns), key).Err(); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// List implements Store.
func (r *RedisStore) List(ctx context.Context, ns Namespace, prefix string) ([]Item, error) {
	if err := ns.Validate(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, ErrStoreClosed
	}

	fields, err := r.client.HGetAll(ctx, r.nsKey(ns)).Result()
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	items := make([]Item, 0, len(fields))
	for key, payload := range fields {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		var env envelope
		if err := json.Unmarshal([]byte(payload), &env); err != nil {
			return nil, fmt.Errorf("unmarshal envelope for %q: %w", key, err)
		}
		items = append(items, Item{
			Namespace: append(Namespace(nil), ns...),
			Key:       key,
			Value:     env.Value,
			CreatedAt: env.CreatedAt,
			UpdatedAt: env.UpdatedAt,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Key < items[j].Key
	})

	return items, nil
}

// Close implements Store.
// The underlying Redis client is owned by the caller and is not closed.
func (r *RedisStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	return nil
}
