// Package testing provides test utilities for replica.
package testing

import (
	"context"
	"sync"
	"testing"

	"github.com/zoobzio/replica"
)

// TestKey returns a valid 32-byte sealing key for testing.
// Works for both AES-256-GCM and XChaCha20-Poly1305.
func TestKey(t testing.TB) []byte {
	t.Helper()
	return []byte("32-byte-key-for-aes-256-encrypt!")
}

// TestSealer returns a sealer for alg keyed with TestKey.
func TestSealer(t testing.TB, alg replica.SealAlgorithm) replica.Sealer {
	t.Helper()
	s, err := replica.NewSealer(alg, TestKey(t))
	if err != nil {
		t.Fatalf("NewSealer(%s) error: %v", alg, err)
	}
	return s
}

// Recorder is a Publisher that keeps every event it is handed.
type Recorder struct {
	mu     sync.Mutex
	events []*replica.CommandEvent
	err    error
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Publish records e, or returns the error set with FailWith.
func (r *Recorder) Publish(_ context.Context, e *replica.CommandEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	return nil
}

// FailWith makes later publishes fail with err. A nil err restores success.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Events returns a copy of the recorded events in publish order.
func (r *Recorder) Events() []*replica.CommandEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*replica.CommandEvent(nil), r.events...)
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Reset drops every recorded event.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Handler consumes one encoded event.
type Handler func(ctx context.Context, data []byte) error

// Bus is an in-process stand-in for a message broker. Delivery is
// synchronous: Publish returns after every subscriber has handled the
// message, so tests can assert on replayed state right away.
type Bus struct {
	mu          sync.RWMutex
	subscribers []Handler
	delivered   int
	failures    []error
}

// NewBus creates a bus with no subscribers.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe adds a handler for every later message.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, h)
}

// Publish copies data and hands it to each subscriber. Handler errors are
// kept for Failures and never returned, as a broker would not report them
// to the producer.
func (b *Bus) Publish(ctx context.Context, data []byte) error {
	msg := append([]byte(nil), data...)

	b.mu.RLock()
	subs := append([]Handler(nil), b.subscribers...)
	b.mu.RUnlock()

	for _, sub := range subs {
		if err := sub(ctx, msg); err != nil {
			b.mu.Lock()
			b.failures = append(b.failures, err)
			b.mu.Unlock()
		}
	}

	b.mu.Lock()
	b.delivered++
	b.mu.Unlock()
	return nil
}

// Delivered returns the number of published messages.
func (b *Bus) Delivered() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.delivered
}

// Failures returns the errors returned by subscribers.
func (b *Bus) Failures() []error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]error(nil), b.failures...)
}

// Account is a struct parameter type for RegisterStruct tests.
type Account struct {
	ID      string `msgpack:"id"`
	Balance int64  `msgpack:"balance"`
}

// Ticket implements the parameter marshaling overrides with a fixed layout.
type Ticket struct {
	Code string
}

// MarshalParameter encodes the code as raw bytes.
func (t Ticket) MarshalParameter() ([]byte, error) {
	return []byte("T:" + t.Code), nil
}

// UnmarshalParameter reverses MarshalParameter.
func (t *Ticket) UnmarshalParameter(data []byte) error {
	if len(data) < 2 || string(data[:2]) != "T:" {
		return replica.ErrDeserialize
	}
	t.Code = string(data[2:])
	return nil
}
