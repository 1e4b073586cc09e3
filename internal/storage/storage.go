// Package storage holds the durable key/value backends the store persists to.
package storage

import (
	"bytes"
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no value is stored under the key.
var ErrNotFound = errors.New("storage: key not found")

// KV is a durable byte store keyed by string. Implementations must be safe
// for concurrent use.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Claimer is implemented by backends that can store a value only when the
// key is absent, atomically.
type Claimer interface {
	Claim(ctx context.Context, key string, value []byte) (bool, error)
}

// Claim stores value under key unless the key already exists and reports
// whether it did. Backends without Claimer fall back to Get then Set, which
// is not atomic.
func Claim(ctx context.Context, kv KV, key string, value []byte) (bool, error) {
	if c, ok := kv.(Claimer); ok {
		return c.Claim(ctx, key, value)
	}
	_, err := kv.Get(ctx, key)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	return true, kv.Set(ctx, key, value)
}

// Swapper is implemented by backends that can replace a value only while it
// still equals an expected one, atomically.
type Swapper interface {
	Swap(ctx context.Context, key string, old, value []byte) (bool, error)
}

// Swap stores value under key if the current value equals old and reports
// whether it did. A missing key never matches. Backends without Swapper
// fall back to Get, compare, Set, which is not atomic.
func Swap(ctx context.Context, kv KV, key string, old, value []byte) (bool, error) {
	if s, ok := kv.(Swapper); ok {
		return s.Swap(ctx, key, old, value)
	}
	cur, err := kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !bytes.Equal(cur, old) {
		return false, nil
	}
	return true, kv.Set(ctx, key, value)
}
