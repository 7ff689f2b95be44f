package replica

import (
	"context"
	"fmt"
	"sort"
)

// Hook phases reported on SignalInterceptorFailed.
const (
	PhaseBefore = "before"
	PhaseAfter  = "after"
)

// Interceptor observes intercepted calls. Hooks run on the caller's
// goroutine and must not block. Returned errors and panics are recorded and
// otherwise ignored; they never reach the caller or other interceptors.
type Interceptor interface {
	// BeforeExecute runs before the real call.
	BeforeExecute(ctx context.Context, inv *Invocation) error

	// AfterExecute runs after the real call with its result and error.
	// result is nil for methods that only return an error.
	AfterExecute(ctx context.Context, inv *Invocation, result any, failure error) error
}

// Prioritized is implemented by interceptors that care where they run.
// Lower priorities run first. The default is 0.
type Prioritized interface {
	Priority() int
}

// Named is implemented by interceptors that want a readable name in signals.
type Named interface {
	Name() string
}

// Hooks adapts plain functions to Interceptor. Nil hooks are skipped.
type Hooks struct {
	ID     string
	Order  int
	Before func(ctx context.Context, inv *Invocation) error
	After  func(ctx context.Context, inv *Invocation, result any, failure error) error
}

func (h Hooks) BeforeExecute(ctx context.Context, inv *Invocation) error {
	if h.Before == nil {
		return nil
	}
	return h.Before(ctx, inv)
}

func (h Hooks) AfterExecute(ctx context.Context, inv *Invocation, result any, failure error) error {
	if h.After == nil {
		return nil
	}
	return h.After(ctx, inv, result, failure)
}

func (h Hooks) Priority() int { return h.Order }

func (h Hooks) Name() string {
	if h.ID == "" {
		return "hooks"
	}
	return h.ID
}

// Invocation is one intercepted call as seen by interceptors.
type Invocation struct {
	// Interface is the qualified name of the decorated interface.
	Interface string
	// Method is the wire name of the called method.
	Method string
	// GoMethod is the Go name of the called method.
	GoMethod string
	// Descriptor is nil when the method is not a registered command.
	Descriptor *CommandDescriptor
	// Args are the call arguments without the context. A variadic
	// argument appears once, as its slice.
	Args []any
	// Source identifies the decorated connection.
	Source string

	correlation *Correlation
	attrs       map[any]any
}

// Registered reports whether the call is a registered command.
func (inv *Invocation) Registered() bool {
	return inv.Descriptor != nil
}

// Parameters correlates the current arguments with the positions captured
// when the call began. It returns nil for unregistered calls.
func (inv *Invocation) Parameters() []CapturedParameter {
	if inv.Descriptor == nil {
		return nil
	}
	return inv.correlation.Resolve(inv.Args)
}

// Set stores a value for later hooks of the same call.
func (inv *Invocation) Set(key, value any) {
	if inv.attrs == nil {
		inv.attrs = make(map[any]any)
	}
	inv.attrs[key] = value
}

// Get returns a value stored with Set.
func (inv *Invocation) Get(key any) (any, bool) {
	v, ok := inv.attrs[key]
	return v, ok
}

// Chain is an ordered, immutable list of interceptors.
type Chain struct {
	interceptors []Interceptor
	names        []string
}

// NewChain sorts interceptors by priority, keeping registration order for
// ties. The same order applies to before and after hooks. Nil entries are dropped.
func NewChain(interceptors ...Interceptor) *Chain {
	list := make([]Interceptor, 0, len(interceptors))
	for _, i := range interceptors {
		if i != nil {
			list = append(list, i)
		}
	}
	sort.SliceStable(list, func(a, b int) bool {
		return priorityOf(list[a]) < priorityOf(list[b])
	})

	names := make([]string, len(list))
	for i, ic := range list {
		names[i] = nameOf(ic)
	}
	return &Chain{interceptors: list, names: names}
}

// Len returns the number of interceptors.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.interceptors)
}

// Names returns interceptor names in execution order.
func (c *Chain) Names() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.names...)
}

// Before runs every before hook in order.
func (c *Chain) Before(ctx context.Context, inv *Invocation) {
	if c == nil {
		return
	}
	for i, ic := range c.interceptors {
		c.guard(ctx, i, PhaseBefore, inv, func() error {
			return ic.BeforeExecute(ctx, inv)
		})
	}
}

// After runs every after hook in the same order as Before.
func (c *Chain) After(ctx context.Context, inv *Invocation, result any, failure error) {
	if c == nil {
		return
	}
	for i, ic := range c.interceptors {
		c.guard(ctx, i, PhaseAfter, inv, func() error {
			return ic.AfterExecute(ctx, inv, result, failure)
		})
	}
}

// guard runs one hook, recording its error or panic.
func (c *Chain) guard(ctx context.Context, i int, phase string, inv *Invocation, hook func() error) {
	defer func() {
		if r := recover(); r != nil {
			emitInterceptorFailed(ctx, c.names[i], phase, inv.Method, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := hook(); err != nil {
		emitInterceptorFailed(ctx, c.names[i], phase, inv.Method, err)
	}
}

func priorityOf(i Interceptor) int {
	if p, ok := i.(Prioritized); ok {
		return p.Priority()
	}
	return 0
}

func nameOf(i Interceptor) string {
	if n, ok := i.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", i)
}
