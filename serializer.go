package replica

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zoobzio/sentinel"
)

// Serializer converts values of one Go type to and from bytes.
// Implementations are stateless and safe for concurrent use.
//
// Zero-length data is the null marker and never reaches Deserialize, so a
// value that serializes to nothing, such as an empty []byte, reads back as
// nil. Round trips of such values hold up to bytes.Equal, not DeepEqual.
type Serializer interface {
	// Type returns the Go type this serializer produces on Deserialize.
	Type() reflect.Type

	// Serialize encodes v. v is never nil.
	Serialize(v any) ([]byte, error)

	// Deserialize decodes data. data is never empty.
	Deserialize(data []byte) (any, error)
}

// serializerTable is an immutable snapshot of registered serializers.
type serializerTable struct {
	byName map[string]Serializer
	byType map[reflect.Type]string
}

// SerializerRegistry maps logical type names to serializers.
//
// Reads go through an atomic snapshot and never lock. Registration and the
// memoization of fallbacks copy the table under a mutex.
type SerializerRegistry struct {
	mu       sync.Mutex
	table    atomic.Pointer[serializerTable]
	fallback Serializer
}

// NewSerializerRegistry creates a registry preloaded with the built-in serializers.
func NewSerializerRegistry() *SerializerRegistry {
	r := &SerializerRegistry{fallback: genericSerializer{}}
	r.table.Store(&serializerTable{
		byName: make(map[string]Serializer),
		byType: make(map[reflect.Type]string),
	})
	for name, s := range builtinSerializers() {
		r.Register(name, s)
	}
	for t, name := range builtinAliases() {
		r.alias(t, name)
	}
	return r
}

// alias maps an additional Go type onto an existing logical name.
func (r *SerializerRegistry) alias(t reflect.Type, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.table.Load()
	next := &serializerTable{
		byName: current.byName,
		byType: make(map[reflect.Type]string, len(current.byType)+1),
	}
	for k, v := range current.byType {
		next.byType[k] = v
	}
	next.byType[t] = name
	r.table.Store(next)
}

// Register adds or replaces the serializer for a logical type name.
// The Go type reported by the serializer maps back to name for Serialize.
func (r *SerializerRegistry) Register(name string, s Serializer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.table.Load()
	next := &serializerTable{
		byName: make(map[string]Serializer, len(current.byName)+1),
		byType: make(map[reflect.Type]string, len(current.byType)+1),
	}
	for k, v := range current.byName {
		next.byName[k] = v
	}
	for k, v := range current.byType {
		next.byType[k] = v
	}
	next.byName[name] = s
	if t := s.Type(); t != nil {
		if _, taken := next.byType[t]; !taken {
			next.byType[t] = name
		}
	}
	r.table.Store(next)
}

// RegisterStruct registers a serializer for struct type T under the name
// "<package>.<Type>" taken from sentinel metadata. Values encode with
// msgpack unless T implements ParameterMarshaler and *T implements
// ParameterUnmarshaler. Returns the registered name.
func RegisterStruct[T any](r *SerializerRegistry) string {
	spec := sentinel.Scan[T]()
	name := spec.TypeName
	if spec.PackageName != "" {
		name = spec.PackageName + "." + spec.TypeName
	}
	r.Register(name, structSerializer[T]{})
	return name
}

// Serializer returns the serializer for name. Unknown names resolve to the
// generic fallback, which is memoized so the diagnostic fires once per name.
func (r *SerializerRegistry) Serializer(name string) Serializer {
	if s, ok := r.table.Load().byName[name]; ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	current := r.table.Load()
	if s, ok := current.byName[name]; ok {
		return s
	}

	next := &serializerTable{
		byName: make(map[string]Serializer, len(current.byName)+1),
		byType: current.byType,
	}
	for k, v := range current.byName {
		next.byName[k] = v
	}
	next.byName[name] = r.fallback
	r.table.Store(next)

	emitSerializerFallback(context.Background(), name)
	return r.fallback
}

// Has reports whether a serializer (other than a memoized fallback) exists for name.
func (r *SerializerRegistry) Has(name string) bool {
	s, ok := r.table.Load().byName[name]
	return ok && s != r.fallback
}

// TypeName returns the logical type name registered for a Go type.
func (r *SerializerRegistry) TypeName(t reflect.Type) (string, bool) {
	name, ok := r.table.Load().byType[t]
	return name, ok
}

// TypeOf returns the Go type registered for a logical type name.
func (r *SerializerRegistry) TypeOf(name string) (reflect.Type, bool) {
	s, ok := r.table.Load().byName[name]
	if !ok || s == r.fallback {
		return nil, false
	}
	return s.Type(), true
}

// NameOf returns the logical type name for a value, falling back to the Go
// type string for unregistered types.
func (r *SerializerRegistry) NameOf(v any) string {
	if v == nil {
		return TypeNull
	}
	t := reflect.TypeOf(v)
	if name, ok := r.TypeName(t); ok {
		return name
	}
	return t.String()
}

// Serialize encodes v with the serializer registered for its Go type.
// nil encodes to a zero-length slice.
func (r *SerializerRegistry) Serialize(v any) ([]byte, error) {
	if v == nil {
		return []byte{}, nil
	}
	return r.SerializeAs(v, r.NameOf(v))
}

// SerializeAs encodes v with the serializer registered under name.
func (r *SerializerRegistry) SerializeAs(v any, name string) ([]byte, error) {
	if isNil(v) {
		return []byte{}, nil
	}
	if m, ok := v.(ParameterMarshaler); ok {
		return m.MarshalParameter()
	}
	data, err := r.Serializer(name).Serialize(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSerialize, name, err)
	}
	return data, nil
}

// Deserialize decodes data as the logical type name. Zero-length data
// decodes to nil.
func (r *SerializerRegistry) Deserialize(data []byte, name string) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	v, err := r.Serializer(name).Deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDeserialize, name, err)
	}
	return v, nil
}

// Names returns the registered logical type names, excluding memoized fallbacks.
func (r *SerializerRegistry) Names() []string {
	table := r.table.Load()
	names := make([]string, 0, len(table.byName))
	for name, s := range table.byName {
		if s != r.fallback {
			names = append(names, name)
		}
	}
	return names
}

// isNil reports nil interfaces and nil pointers, maps, and slices of
// non-byte kinds. A nil []byte is the store's "no value" and stays nil.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// genericSerializer encodes any value with msgpack. Decoding yields the
// generic msgpack representation, not the original Go type.
type genericSerializer struct{}

func (genericSerializer) Type() reflect.Type { return nil }

func (genericSerializer) Serialize(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (genericSerializer) Deserialize(data []byte) (any, error) {
	var v any
	if err := msgpack.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// structSerializer encodes T with its own parameter methods or msgpack.
type structSerializer[T any] struct{}

func (structSerializer[T]) Type() reflect.Type { return reflect.TypeFor[T]() }

func (structSerializer[T]) Serialize(v any) ([]byte, error) {
	switch val := v.(type) {
	case ParameterMarshaler:
		return val.MarshalParameter()
	case T:
		return msgpack.Marshal(val)
	case *T:
		return msgpack.Marshal(val)
	}
	return nil, fmt.Errorf("%w: got %T, want %s", ErrTypeMismatch, v, reflect.TypeFor[T]())
}

func (structSerializer[T]) Deserialize(data []byte) (any, error) {
	var out T
	if u, ok := any(&out).(ParameterUnmarshaler); ok {
		if err := u.UnmarshalParameter(data); err != nil {
			return nil, err
		}
		return out, nil
	}
	if err := msgpack.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
