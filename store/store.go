// Package store defines the key-value connection surface that replica
// decorates, plus an in-memory reference implementation.
//
// Keys and values are raw byte slices. Missing keys read as nil rather than
// an error, so a replayed command observes the same results as the original.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrTypeMismatch   = errors.New("store: value is not an integer")
	ErrNoSuchKey      = errors.New("store: no such key")
	ErrInvalidPattern = errors.New("store: invalid pattern")
)

// Connection describes the operations of a key-value store connection.
// Implementations must be safe for concurrent use.
type Connection interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	Set(ctx context.Context, key, value []byte) error
	SetEX(ctx context.Context, key []byte, ttl time.Duration, value []byte) error
	SetNX(ctx context.Context, key, value []byte) (bool, error)
	GetSet(ctx context.Context, key, value []byte) ([]byte, error)
	Append(ctx context.Context, key, value []byte) (int64, error)
	Del(ctx context.Context, keys ...[]byte) (int64, error)
	Exists(ctx context.Context, key []byte) (bool, error)

	// Batch operations
	MGet(ctx context.Context, keys ...[]byte) ([][]byte, error)
	MSet(ctx context.Context, pairs map[string][]byte) error

	// TTL management
	Expire(ctx context.Context, key []byte, ttl time.Duration) (bool, error)
	Persist(ctx context.Context, key []byte) (bool, error)
	TTL(ctx context.Context, key []byte) (time.Duration, error)

	// Keyspace operations
	Keys(ctx context.Context, pattern []byte) ([][]byte, error)
	Rename(ctx context.Context, oldKey, newKey []byte) error
	FlushDB(ctx context.Context) error

	// Counters
	IncrBy(ctx context.Context, key []byte, delta int64) (int64, error)
	DecrBy(ctx context.Context, key []byte, delta int64) (int64, error)
}

// TTL sentinels returned by Connection.TTL.
const (
	// NoExpiry is returned for keys that exist without a deadline.
	NoExpiry time.Duration = -1
	// Missing is returned for keys that do not exist.
	Missing time.Duration = -2
)
