package replica

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/zoobzio/replica/store"
)

// Receiver replays command events on a local connection.
type Receiver struct {
	target       any
	commands     *CommandRegistry
	serializers  *SerializerRegistry
	codec        *EventCodec
	iface        reflect.Type
	domain       string
	connectionID string
}

// ReceiverOption configures a Receiver.
type ReceiverOption func(*Receiver)

// WithDomain sets the replication domain recorded on replayed events.
func WithDomain(domain string) ReceiverOption {
	return func(r *Receiver) {
		r.domain = domain
	}
}

// WithConnectionID sets the connection identity recorded on replayed events.
func WithConnectionID(id string) ReceiverOption {
	return func(r *Receiver) {
		r.connectionID = id
	}
}

// WithInterface sets the interface used for dynamic resolution. It defaults
// to store.Connection. Pair it with WithTarget to replay commands of another
// interface.
func WithInterface(iface reflect.Type) ReceiverOption {
	return func(r *Receiver) {
		r.iface = iface
	}
}

// WithTarget replays onto target instead of the connection given to
// NewReceiver. target must implement the commands it receives.
func WithTarget(target any) ReceiverOption {
	return func(r *Receiver) {
		r.target = target
	}
}

// NewReceiver creates a receiver replaying onto conn. Nil registries and
// codec get fresh defaults.
func NewReceiver(conn store.Connection, commands *CommandRegistry, serializers *SerializerRegistry, codec *EventCodec, opts ...ReceiverOption) *Receiver {
	if serializers == nil {
		if commands != nil {
			serializers = commands.Serializers()
		} else {
			serializers = NewSerializerRegistry()
		}
	}
	if commands == nil {
		commands = NewCommandRegistry(serializers)
	}
	if codec == nil {
		codec = NewEventCodec()
	}
	r := &Receiver{
		target:      conn,
		commands:    commands,
		serializers: serializers,
		codec:       codec,
		iface:       reflect.TypeFor[store.Connection](),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnMessage decodes data and replays the event. Every failure drops the
// event: it is reported on SignalEventDropped and returned as a *DropError.
func (r *Receiver) OnMessage(ctx context.Context, data []byte) error {
	e, err := r.codec.Decode(data)
	if err != nil {
		emitEventDropped(ctx, nil, len(data), err)
		return &DropError{Cause: err}
	}
	return r.OnEvent(ctx, e)
}

// OnEvent replays a decoded event. The event is never retried.
func (r *Receiver) OnEvent(ctx context.Context, e *CommandEvent) error {
	start := time.Now()
	if err := r.replay(ctx, e); err != nil {
		emitEventDropped(ctx, e, 0, err)
		return &DropError{Event: e, Cause: err}
	}
	emitEventReplayed(ctx, e, time.Since(start), nil)
	return nil
}

func (r *Receiver) replay(ctx context.Context, e *CommandEvent) (err error) {
	d, err := r.resolve(ctx, e)
	if err != nil {
		return err
	}

	raw, err := e.RawParameters()
	if err != nil {
		return err
	}
	if len(raw) != len(d.ParameterTypes) {
		return fmt.Errorf("%w: event has %d parameters, %s takes %d",
			ErrParameterMismatch, len(raw), d.Key(), len(d.ParameterTypes))
	}

	if r.target == nil {
		return fmt.Errorf("%w: no replay target", ErrUnresolvedCommand)
	}
	method := reflect.ValueOf(r.target).MethodByName(d.GoMethod)
	if !method.IsValid() {
		return fmt.Errorf("%w: %T has no method %s", ErrUnresolvedCommand, r.target, d.GoMethod)
	}
	mt := method.Type()

	args := make([]reflect.Value, 0, mt.NumIn())
	offset := 0
	if mt.NumIn() > 0 && mt.In(0) == contextType {
		args = append(args, reflect.ValueOf(ctx))
		offset = 1
	}
	if mt.NumIn()-offset != len(raw) {
		return fmt.Errorf("%w: %s takes %d parameters, event has %d",
			ErrParameterMismatch, d.GoMethod, mt.NumIn()-offset, len(raw))
	}

	values := make([]any, len(raw))
	for i, b := range raw {
		name := d.ParameterTypes[i]
		if i < len(e.ParameterTypes) && e.ParameterTypes[i] != "" {
			name = e.ParameterTypes[i]
		}
		v, err := r.serializers.Deserialize(b, name)
		if err != nil {
			return newParameterError(ErrDeserialize, i, name, err)
		}
		arg, err := convertArg(v, mt.In(offset+i))
		if err != nil {
			return newParameterError(ErrTypeMismatch, i, name, err)
		}
		values[i] = v
		args = append(args, arg)
	}

	e.bind(r.domain, r.connectionID, logicalKey(d, values))

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("replay %s panicked: %v", d.GoMethod, p)
		}
	}()

	var out []reflect.Value
	if mt.IsVariadic() {
		out = method.CallSlice(args)
	} else {
		out = method.Call(args)
	}
	if len(out) > 0 {
		if failure, ok := out[len(out)-1].Interface().(error); ok && failure != nil {
			return fmt.Errorf("replay %s: %w", d.GoMethod, failure)
		}
	}
	return nil
}

// resolve finds the descriptor in the registry or, on a miss, against the
// live interface. Unnamed parameter types resolve by arity alone.
func (r *Receiver) resolve(ctx context.Context, e *CommandEvent) (*CommandDescriptor, error) {
	if d, ok := r.commands.Lookup(e.Interface, e.Method, e.ParameterTypes); ok {
		return d, nil
	}
	if e.Interface != InterfaceName(r.iface) {
		return nil, fmt.Errorf("%w: unknown interface %s", ErrUnresolvedCommand, e.Interface)
	}

	types := e.ParameterTypes
	for _, t := range types {
		if t == "" {
			types = nil
			break
		}
	}
	d, err := r.commands.Resolve(r.iface, e.Method, types)
	if err != nil && types != nil && errors.Is(err, ErrParameterMismatch) {
		// The producer may know types this build does not; trust arity.
		d, err = r.commands.Resolve(r.iface, e.Method, nil)
		if err == nil && len(d.ParameterTypes) != len(e.ParameterTypes) {
			err = newRegistrationError(ErrParameterMismatch, e.Interface, e.Method, "arity differs")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnresolvedCommand, err)
	}
	emitDynamicResolution(ctx, e.Interface, e.Method)
	return d, nil
}

// convertArg adapts a deserialized value to a parameter type. Values decoded
// by the generic fallback are re-encoded into the target type.
func convertArg(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if rv.CanInt() && isIntKind(t.Kind()) {
		out := reflect.New(t).Elem()
		if out.OverflowInt(rv.Int()) {
			return reflect.Value{}, fmt.Errorf("%d overflows %s", rv.Int(), t)
		}
		out.SetInt(rv.Int())
		return out, nil
	}
	if rv.Type().ConvertibleTo(t) && rv.Kind() == t.Kind() {
		return rv.Convert(t), nil
	}

	data, err := msgpack.Marshal(v)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("cannot use %T as %s", v, t)
	}
	out := reflect.New(t)
	if err := msgpack.Unmarshal(data, out.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("cannot use %T as %s: %w", v, t, err)
	}
	return out.Elem(), nil
}

func isIntKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

// logicalKey returns the first parameter when it addresses a key.
func logicalKey(d *CommandDescriptor, values []any) string {
	if len(values) == 0 || len(d.ParameterTypes) == 0 {
		return ""
	}
	switch v := values[0].(type) {
	case []byte:
		if d.ParameterTypes[0] == TypeBytes {
			return string(v)
		}
	case string:
		return v
	}
	return ""
}
