package replica

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/zoobzio/replica/store"
)

var contextType = reflect.TypeFor[context.Context]()

// commandTable is an immutable snapshot of registered descriptors.
type commandTable struct {
	byKey    map[string]*CommandDescriptor
	byMethod map[string]*CommandDescriptor
}

// CommandRegistry catalogues the interceptable commands of store interfaces.
//
// Registration copies the table under a mutex; Lookup and ForMethod read an
// atomic snapshot and never lock.
type CommandRegistry struct {
	serializers *SerializerRegistry
	failFast    bool

	mu    sync.Mutex
	table atomic.Pointer[commandTable]

	once    sync.Once
	initErr error
}

// CommandOption configures a CommandRegistry.
type CommandOption func(*CommandRegistry)

// WithFailFast makes bulk registration stop at the first error and return it.
// Without it, failures are emitted and the failing command is skipped.
func WithFailFast(enabled bool) CommandOption {
	return func(r *CommandRegistry) {
		r.failFast = enabled
	}
}

// NewCommandRegistry creates an empty registry bound to a serializer registry.
func NewCommandRegistry(serializers *SerializerRegistry, opts ...CommandOption) *CommandRegistry {
	if serializers == nil {
		serializers = NewSerializerRegistry()
	}
	r := &CommandRegistry{serializers: serializers}
	for _, opt := range opts {
		opt(r)
	}
	r.table.Store(&commandTable{
		byKey:    make(map[string]*CommandDescriptor),
		byMethod: make(map[string]*CommandDescriptor),
	})
	return r
}

// Serializers returns the serializer registry used for pre-warming and resolution.
func (r *CommandRegistry) Serializers() *SerializerRegistry {
	return r.serializers
}

// FailFast reports whether bulk registration aborts on the first error.
func (r *CommandRegistry) FailFast() bool {
	return r.failFast
}

// Init runs the registration entrypoint exactly once. Concurrent and repeated
// calls block until the first run completes and return its result.
func (r *CommandRegistry) Init(register func(*CommandRegistry) error) error {
	r.once.Do(func() {
		r.initErr = register(r)
	})
	return r.initErr
}

// Register records a command of iface. method may be the Go method name or
// its wire form. When parameterTypes is empty the types are derived from the
// Go signature; otherwise they must match it position by position.
func (r *CommandRegistry) Register(iface reflect.Type, method string, parameterTypes ...string) (*CommandDescriptor, error) {
	return r.RegisterNamed(iface, method, nil, parameterTypes...)
}

// RegisterMethod records a command with parameter types taken from the Go signature.
func (r *CommandRegistry) RegisterMethod(iface reflect.Type, method string) (*CommandDescriptor, error) {
	return r.RegisterNamed(iface, method, nil)
}

// RegisterNamed is Register with parameter names attached to the metadata.
func (r *CommandRegistry) RegisterNamed(iface reflect.Type, method string, names []string, parameterTypes ...string) (*CommandDescriptor, error) {
	ctx := context.Background()

	var types []string
	if len(parameterTypes) > 0 {
		types = parameterTypes
	}
	d, err := r.describe(iface, method, names, types)
	if err != nil {
		emitRegistrationFailed(ctx, InterfaceName(iface), method, err)
		return nil, err
	}

	r.mu.Lock()
	current := r.table.Load()
	if _, exists := current.byKey[d.key]; exists {
		r.mu.Unlock()
		err := newRegistrationError(ErrDuplicateCommand, d.Interface, method, d.key)
		emitRegistrationFailed(ctx, d.Interface, method, err)
		return nil, err
	}
	next := &commandTable{
		byKey:    make(map[string]*CommandDescriptor, len(current.byKey)+1),
		byMethod: make(map[string]*CommandDescriptor, len(current.byMethod)+1),
	}
	for k, v := range current.byKey {
		next.byKey[k] = v
	}
	for k, v := range current.byMethod {
		next.byMethod[k] = v
	}
	next.byKey[d.key] = d
	mk := methodKey(d.Interface, d.GoMethod)
	if _, taken := next.byMethod[mk]; !taken {
		next.byMethod[mk] = d
	}
	r.table.Store(next)
	r.mu.Unlock()

	// Pay the serializer lookup once, here, rather than on the first call.
	for _, t := range d.ParameterTypes {
		r.serializers.Serializer(t)
	}

	emitCommandRegistered(ctx, d)
	return d, nil
}

// Lookup finds a registered descriptor by its wire identity.
func (r *CommandRegistry) Lookup(iface, method string, parameterTypes []string) (*CommandDescriptor, bool) {
	d, ok := r.table.Load().byKey[commandKey(iface, method, parameterTypes)]
	return d, ok
}

// ForMethod finds the descriptor registered for a Go method of an interface.
func (r *CommandRegistry) ForMethod(iface, goMethod string) (*CommandDescriptor, bool) {
	d, ok := r.table.Load().byMethod[methodKey(iface, goMethod)]
	return d, ok
}

// Resolve builds a descriptor from the live interface without registering it.
// A nil parameterTypes matches by name and arity alone and takes the types
// from the signature.
func (r *CommandRegistry) Resolve(iface reflect.Type, method string, parameterTypes []string) (*CommandDescriptor, error) {
	return r.describe(iface, method, nil, parameterTypes)
}

// Descriptors returns every registered descriptor sorted by key.
func (r *CommandRegistry) Descriptors() []*CommandDescriptor {
	table := r.table.Load()
	out := make([]*CommandDescriptor, 0, len(table.byKey))
	for _, d := range table.byKey {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

// Len returns the number of registered descriptors.
func (r *CommandRegistry) Len() int {
	return len(r.table.Load().byKey)
}

// describe validates method and parameterTypes against iface and builds a descriptor.
func (r *CommandRegistry) describe(iface reflect.Type, method string, names, parameterTypes []string) (*CommandDescriptor, error) {
	name := InterfaceName(iface)
	if iface == nil || iface.Kind() != reflect.Interface {
		return nil, newRegistrationError(ErrMethodNotFound, name, method, "not an interface type")
	}

	m, ok := findMethod(iface, method)
	if !ok {
		return nil, newRegistrationError(ErrMethodNotFound, name, method, "")
	}

	params := signature(m.Type)
	derived := make([]string, len(params))
	for i, t := range params {
		derived[i] = r.typeName(t)
	}

	types := derived
	if parameterTypes != nil {
		if len(parameterTypes) != len(params) {
			return nil, newRegistrationError(ErrParameterMismatch, name, method,
				fmt.Sprintf("got %d parameter types, method takes %d", len(parameterTypes), len(params)))
		}
		for i, t := range parameterTypes {
			if !r.compatible(t, params[i]) {
				return nil, newRegistrationError(ErrParameterMismatch, name, method,
					fmt.Sprintf("parameter %d: %s does not fit %s", i, t, params[i]))
			}
		}
		types = parameterTypes
	}

	return newDescriptor(name, WireMethod(m.Name), m.Name, types, names, m.Type.IsVariadic()), nil
}

// typeName returns the logical name of a Go parameter type.
func (r *CommandRegistry) typeName(t reflect.Type) string {
	if name, ok := r.serializers.TypeName(t); ok {
		return name
	}
	return t.String()
}

// compatible reports whether values of logical type name can be passed as t.
func (r *CommandRegistry) compatible(name string, t reflect.Type) bool {
	if name == r.typeName(t) || name == t.String() {
		return true
	}
	rt, ok := r.serializers.TypeOf(name)
	if !ok || rt == nil {
		return false
	}
	return rt == t || (rt.ConvertibleTo(t) && rt.Kind() == t.Kind())
}

// findMethod looks a method up by Go name, then by wire name.
func findMethod(iface reflect.Type, method string) (reflect.Method, bool) {
	if m, ok := iface.MethodByName(method); ok {
		return m, true
	}
	for i := 0; i < iface.NumMethod(); i++ {
		m := iface.Method(i)
		if WireMethod(m.Name) == method {
			return m, true
		}
	}
	return reflect.Method{}, false
}

// signature returns the parameter types of an interface method, excluding a
// leading context. A variadic final parameter is reported as its slice type.
func signature(ft reflect.Type) []reflect.Type {
	start := 0
	if ft.NumIn() > 0 && ft.In(0) == contextType {
		start = 1
	}
	params := make([]reflect.Type, 0, ft.NumIn()-start)
	for i := start; i < ft.NumIn(); i++ {
		params = append(params, ft.In(i))
	}
	return params
}

// storeCommand names one mutating store.Connection method.
type storeCommand struct {
	method string
	names  []string
}

var storeCommands = []storeCommand{
	{"Set", []string{"key", "value"}},
	{"SetEX", []string{"key", "ttl", "value"}},
	{"SetNX", []string{"key", "value"}},
	{"GetSet", []string{"key", "value"}},
	{"Append", []string{"key", "value"}},
	{"Del", []string{"keys"}},
	{"MSet", []string{"pairs"}},
	{"Expire", []string{"key", "ttl"}},
	{"Persist", []string{"key"}},
	{"IncrBy", []string{"key", "delta"}},
	{"DecrBy", []string{"key", "delta"}},
	{"Rename", []string{"oldKey", "newKey"}},
	{"FlushDB", nil},
}

// RegisterStoreCommands registers the mutating commands of store.Connection.
// Reads are left unregistered and pass through the proxy unobserved by capture.
func RegisterStoreCommands(r *CommandRegistry) error {
	iface := reflect.TypeFor[store.Connection]()
	for _, c := range storeCommands {
		if _, err := r.RegisterNamed(iface, c.method, c.names); err != nil && r.FailFast() {
			return err
		}
	}
	return nil
}
