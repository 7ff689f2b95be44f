package store

import (
	"bytes"
	"context"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"
)

type entry struct {
	value  []byte
	expire time.Time
}

// Memory implements Connection with thread-safe in-memory storage.
type Memory struct {
	mu   sync.RWMutex
	data map[string]entry
}

// NewMemory creates an in-memory Connection.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]entry)}
}

func (m *Memory) Get(ctx context.Context, key []byte) ([]byte, error) {
	// Fast path: optimistic read with RLock.
	m.mu.RLock()
	e, ok := m.data[string(key)]
	m.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	if !e.expired() {
		return clone(e.value), nil
	}

	// Slow path: entry expired, need write lock to delete.
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.live(string(key)); ok {
		return clone(e.value), nil
	}
	return nil, nil
}

func (m *Memory) Set(ctx context.Context, key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(key)] = entry{value: clone(value)}
	return nil
}

func (m *Memory) SetEX(ctx context.Context, key []byte, ttl time.Duration, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(key)] = entry{value: clone(value), expire: expiry(ttl)}
	return nil
}

func (m *Memory) SetNX(ctx context.Context, key, value []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live(string(key)); ok {
		return false, nil
	}
	m.data[string(key)] = entry{value: clone(value)}
	return true, nil
}

// GetSet atomically sets a key to a new value and returns the old value.
// The key loses any expiration it had.
func (m *Memory) GetSet(ctx context.Context, key, value []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var old []byte
	if e, ok := m.live(string(key)); ok {
		old = e.value
	}
	m.data[string(key)] = entry{value: clone(value)}
	return old, nil
}

// Append appends value to the key and returns the resulting length.
func (m *Memory) Append(ctx context.Context, key, value []byte) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, _ := m.live(string(key))
	buf := make([]byte, 0, len(e.value)+len(value))
	buf = append(append(buf, e.value...), value...)
	e.value = buf
	m.data[string(key)] = e
	return int64(len(buf)), nil
}

// Del removes the keys and returns how many existed.
func (m *Memory) Del(ctx context.Context, keys ...[]byte) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for _, key := range keys {
		if _, ok := m.live(string(key)); ok {
			delete(m.data, string(key))
			removed++
		}
	}
	return removed, nil
}

func (m *Memory) Exists(ctx context.Context, key []byte) (bool, error) {
	m.mu.RLock()
	e, ok := m.data[string(key)]
	m.mu.RUnlock()
	return ok && !e.expired(), nil
}

// MGet returns one slot per key; missing keys are nil.
func (m *Memory) MGet(ctx context.Context, keys ...[]byte) ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([][]byte, len(keys))
	for i, key := range keys {
		if e, ok := m.data[string(key)]; ok && !e.expired() {
			result[i] = clone(e.value)
		}
	}
	return result, nil
}

func (m *Memory) MSet(ctx context.Context, pairs map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, value := range pairs {
		m.data[key] = entry{value: clone(value)}
	}
	return nil
}

// Expire sets the TTL of an existing key. Reports false when the key is missing.
func (m *Memory) Expire(ctx context.Context, key []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(string(key))
	if !ok {
		return false, nil
	}
	if ttl <= 0 {
		delete(m.data, string(key))
		return true, nil
	}
	e.expire = expiry(ttl)
	m.data[string(key)] = e
	return true, nil
}

// Persist removes the expiration from a key. Reports whether a deadline was removed.
func (m *Memory) Persist(ctx context.Context, key []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(string(key))
	if !ok || e.expire.IsZero() {
		return false, nil
	}
	e.expire = time.Time{}
	m.data[string(key)] = e
	return true, nil
}

// TTL returns the remaining time-to-live, NoExpiry, or Missing.
func (m *Memory) TTL(ctx context.Context, key []byte) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(string(key))
	if !ok {
		return Missing, nil
	}
	if e.expire.IsZero() {
		return NoExpiry, nil
	}
	return time.Until(e.expire), nil
}

// Keys returns the live keys matching a glob pattern, sorted.
func (m *Memory) Keys(ctx context.Context, pattern []byte) ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	glob := string(pattern)
	if _, err := filepath.Match(glob, ""); err != nil {
		return nil, ErrInvalidPattern
	}

	names := make([]string, 0, len(m.data))
	for key, e := range m.data {
		if e.expired() {
			continue
		}
		if glob != "" && glob != "*" {
			if matched, _ := filepath.Match(glob, key); !matched {
				continue
			}
		}
		names = append(names, key)
	}
	sort.Strings(names)

	result := make([][]byte, len(names))
	for i, name := range names {
		result[i] = []byte(name)
	}
	return result, nil
}

// Rename moves the value and expiration of oldKey to newKey.
func (m *Memory) Rename(ctx context.Context, oldKey, newKey []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(string(oldKey))
	if !ok {
		return ErrNoSuchKey
	}
	delete(m.data, string(oldKey))
	m.data[string(newKey)] = e
	return nil
}

func (m *Memory) FlushDB(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string]entry)
	return nil
}

// IncrBy atomically adds delta to the decimal integer stored at key.
// A missing key counts as zero.
func (m *Memory) IncrBy(ctx context.Context, key []byte, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(string(key))
	var current int64
	if ok {
		n, err := strconv.ParseInt(string(bytes.TrimSpace(e.value)), 10, 64)
		if err != nil {
			return 0, ErrTypeMismatch
		}
		current = n
	}

	next := current + delta
	e.value = strconv.AppendInt(nil, next, 10)
	m.data[string(key)] = e
	return next, nil
}

func (m *Memory) DecrBy(ctx context.Context, key []byte, delta int64) (int64, error) {
	return m.IncrBy(ctx, key, -delta)
}

// live returns the entry for key, evicting it when expired.
// Callers must hold the write lock.
func (m *Memory) live(key string) (entry, bool) {
	e, ok := m.data[key]
	if !ok {
		return entry{}, false
	}
	if e.expired() {
		delete(m.data, key)
		return entry{}, false
	}
	return e, true
}

// Len returns the number of stored entries, including expired ones not yet evicted.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func (e entry) expired() bool {
	if e.expire.IsZero() {
		return false
	}
	return time.Now().After(e.expire)
}

func expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}

func clone(src []byte) []byte {
	if src == nil {
		return nil
	}
	dst := make([]byte, len(src))
	copy(dst, src)
	return dst
}

var _ Connection = (*Memory)(nil)
