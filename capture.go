package replica

import (
	"context"
	"sync/atomic"
	"time"
)

// CapturePriority orders EventCapture after interceptors with default priority.
const CapturePriority = 1000

// Reasons reported on SignalEventSkipped.
const (
	SkipCommandFailed = "command failed"
	SkipUnresolved    = "unresolved parameter"
	SkipSerialize     = "serialize failed"
)

// Publisher hands events to a transport. Publish is called on the goroutine
// of the intercepted command and must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e *CommandEvent) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, e *CommandEvent) error

func (f PublisherFunc) Publish(ctx context.Context, e *CommandEvent) error {
	return f(ctx, e)
}

// Toggle switches event capture on and off at runtime.
type Toggle struct {
	enabled atomic.Bool
}

// NewToggle creates a toggle in the given state.
func NewToggle(enabled bool) *Toggle {
	t := &Toggle{}
	t.enabled.Store(enabled)
	return t
}

// Enabled reports whether capture is on. A nil Toggle is always on.
func (t *Toggle) Enabled() bool {
	return t == nil || t.enabled.Load()
}

// Set turns capture on or off.
func (t *Toggle) Set(enabled bool) {
	t.enabled.Store(enabled)
}

// Enable turns capture on.
func (t *Toggle) Enable() { t.Set(true) }

// Disable turns capture off.
func (t *Toggle) Disable() { t.Set(false) }

// EventCapture turns successful registered commands into events.
type EventCapture struct {
	publisher   Publisher
	serializers *SerializerRegistry
	toggle      *Toggle
	application string
}

// NewEventCapture creates the capture interceptor. A nil toggle leaves
// capture permanently enabled.
func NewEventCapture(publisher Publisher, serializers *SerializerRegistry, toggle *Toggle, application string) *EventCapture {
	if serializers == nil {
		serializers = NewSerializerRegistry()
	}
	return &EventCapture{
		publisher:   publisher,
		serializers: serializers,
		toggle:      toggle,
		application: application,
	}
}

func (c *EventCapture) Name() string  { return "event-capture" }
func (c *EventCapture) Priority() int { return CapturePriority }

func (c *EventCapture) BeforeExecute(context.Context, *Invocation) error {
	return nil
}

// AfterExecute publishes an event for the call. Nothing it does can fail the
// call: problems are emitted as signals and the event is skipped.
func (c *EventCapture) AfterExecute(ctx context.Context, inv *Invocation, _ any, failure error) error {
	if !inv.Registered() || c.publisher == nil {
		return nil
	}
	if !c.toggle.Enabled() {
		return nil
	}
	if failure != nil {
		emitEventSkipped(ctx, inv, SkipCommandFailed, nil)
		return nil
	}

	params := inv.Parameters()
	for _, p := range params {
		if !p.Resolved {
			emitEventSkipped(ctx, inv, SkipUnresolved, nil)
			return nil
		}
	}

	e, err := NewCommandEvent(inv.Descriptor, params, inv.Source, c.application, c.serializers)
	if err != nil {
		emitEventSkipped(ctx, inv, SkipUnresolved, err)
		return nil
	}
	// Serialize now: the caller owns the argument slices once the call returns.
	if _, err := e.RawParameters(); err != nil {
		emitEventSkipped(ctx, inv, SkipSerialize, err)
		return nil
	}

	start := time.Now()
	if err := c.publisher.Publish(ctx, e); err != nil {
		emitPublishFailed(ctx, e, err)
		return nil
	}
	emitEventPublished(ctx, e, time.Since(start))
	return nil
}

// EncodingPublisher encodes each event with codec and passes the bytes to send.
func EncodingPublisher(codec *EventCodec, send func(ctx context.Context, data []byte) error) Publisher {
	return PublisherFunc(func(ctx context.Context, e *CommandEvent) error {
		data, err := codec.Encode(e)
		if err != nil {
			return err
		}
		return send(ctx, data)
	})
}
