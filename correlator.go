package replica

import (
	"reflect"
	"sync/atomic"
)

// CapturedParameter is one argument of an intercepted call with the metadata
// of the descriptor position it was captured at.
type CapturedParameter struct {
	Value    any
	Metadata ParameterMetadata
	// Resolved is false when the argument could not be correlated with a
	// captured position. Such a parameter is unregistered, not an error.
	Resolved bool
}

// Correlator hands out per-call correlations and counts the live ones.
// There is no per-goroutine state: each Correlation belongs to one call.
type Correlator struct {
	active atomic.Int64
}

// NewCorrelator creates a Correlator.
func NewCorrelator() *Correlator {
	return &Correlator{}
}

// Active returns the number of correlations begun but not yet cleared.
// A value that grows without bound means a caller skipped Clear.
func (c *Correlator) Active() int64 {
	return c.active.Load()
}

// identity distinguishes argument values without comparing their contents.
// Reference kinds use their backing pointer; value kinds have none.
type identity struct {
	kind reflect.Kind
	ptr  uintptr
	len  int
}

func identityOf(v any) (identity, bool) {
	if v == nil {
		return identity{}, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return identity{}, false
		}
		return identity{kind: reflect.Slice, ptr: rv.Pointer(), len: rv.Len()}, true
	case reflect.Map, reflect.Pointer, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		if rv.IsNil() {
			return identity{}, false
		}
		return identity{kind: rv.Kind(), ptr: rv.Pointer()}, true
	}
	return identity{}, false
}

type capture struct {
	param CapturedParameter
	id    identity
	byRef bool
}

// Correlation bridges the typed arguments of exactly one call to the point
// where they are captured for an event.
type Correlation struct {
	owner   *Correlator
	entries []capture
	cleared atomic.Bool
}

// Begin captures one parameter per argument of a call to desc. Arguments
// beyond the descriptor's parameters are ignored.
func (c *Correlator) Begin(desc *CommandDescriptor, args []any) *Correlation {
	n := len(args)
	if n > len(desc.Parameters) {
		n = len(desc.Parameters)
	}
	corr := &Correlation{owner: c, entries: make([]capture, n)}
	for i := 0; i < n; i++ {
		id, byRef := identityOf(args[i])
		corr.entries[i] = capture{
			param: CapturedParameter{Value: args[i], Metadata: desc.Parameters[i], Resolved: true},
			id:    id,
			byRef: byRef,
		}
	}
	c.active.Add(1)
	return corr
}

// Resolve returns the captured parameter for each argument. Reference-kind
// arguments match by identity; value-kind arguments match by position.
// Arguments with no match come back with Resolved false.
func (c *Correlation) Resolve(args []any) []CapturedParameter {
	out := make([]CapturedParameter, len(args))
	for i, arg := range args {
		out[i] = CapturedParameter{Value: arg, Metadata: ParameterMetadata{Index: i}}
		if c == nil || c.cleared.Load() {
			continue
		}
		if p, ok := c.match(i, arg); ok {
			out[i] = p
			out[i].Value = arg
		}
	}
	return out
}

func (c *Correlation) match(i int, arg any) (CapturedParameter, bool) {
	id, byRef := identityOf(arg)
	if !byRef {
		if i < len(c.entries) && !c.entries[i].byRef {
			return c.entries[i].param, true
		}
		return CapturedParameter{}, false
	}
	if i < len(c.entries) && c.entries[i].byRef && c.entries[i].id == id {
		return c.entries[i].param, true
	}
	for _, e := range c.entries {
		if e.byRef && e.id == id {
			return e.param, true
		}
	}
	return CapturedParameter{}, false
}

// Clear releases the correlation. It is idempotent and safe on nil.
func (c *Correlation) Clear() {
	if c == nil || !c.cleared.CompareAndSwap(false, true) {
		return
	}
	c.entries = nil
	c.owner.active.Add(-1)
}
