package replica

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/zoobzio/replica/store"
)

var connectionInterface = InterfaceName(reflect.TypeFor[store.Connection]())

// proxy decorates a store.Connection, routing every method through the chain.
type proxy struct {
	delegate   store.Connection
	chain      *Chain
	commands   *CommandRegistry
	correlator *Correlator
	source     string
}

// ProxyOption configures Wrap.
type ProxyOption func(*proxy)

// WithSource sets the origin reported on invocations and events.
func WithSource(source string) ProxyOption {
	return func(p *proxy) {
		p.source = source
	}
}

// WithCorrelator shares a correlator between proxies, typically to observe Active.
func WithCorrelator(c *Correlator) ProxyOption {
	return func(p *proxy) {
		p.correlator = c
	}
}

// Wrap returns a connection that behaves exactly like conn while running
// chain around every call. Registered commands are correlated for capture.
// Wrapping a connection already wrapped with the same chain returns it as is.
func Wrap(conn store.Connection, chain *Chain, commands *CommandRegistry, opts ...ProxyOption) store.Connection {
	if p, ok := conn.(*proxy); ok && p.chain == chain {
		return p
	}
	if chain == nil {
		chain = NewChain()
	}
	if commands == nil {
		commands = NewCommandRegistry(nil)
	}
	p := &proxy{
		delegate:   conn,
		chain:      chain,
		commands:   commands,
		correlator: NewCorrelator(),
	}
	for _, opt := range opts {
		opt(p)
	}
	emitConnectionDecorated(context.Background(), p.source, chain.Len())
	return p
}

// Unwrap returns the connection beneath a Wrap, or conn itself.
func Unwrap(conn store.Connection) store.Connection {
	if p, ok := conn.(*proxy); ok {
		return p.delegate
	}
	return conn
}

// invoke brackets call with correlation and the chain. The correlation is
// cleared even when call or a hook panics.
func (p *proxy) invoke(ctx context.Context, goMethod string, args []any, call func() (any, error)) error {
	inv := &Invocation{
		Interface: connectionInterface,
		Method:    WireMethod(goMethod),
		GoMethod:  goMethod,
		Args:      args,
		Source:    p.source,
	}
	if d, ok := p.commands.ForMethod(connectionInterface, goMethod); ok {
		inv.Descriptor = d
		inv.correlation = p.correlator.Begin(d, args)
		defer inv.correlation.Clear()
	}

	p.chain.Before(ctx, inv)
	result, err := p.call(ctx, inv, call)
	p.chain.After(ctx, inv, result, err)
	return err
}

// call runs the real invocation. A panic is shown to the after hooks as a
// failure and then re-raised with its original value.
func (p *proxy) call(ctx context.Context, inv *Invocation, call func() (any, error)) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.chain.After(ctx, inv, nil, fmt.Errorf("%s panicked: %v", inv.GoMethod, r))
			panic(r)
		}
	}()
	return call()
}

func invokeResult[T any](ctx context.Context, p *proxy, goMethod string, args []any, call func() (T, error)) (T, error) {
	var out T
	err := p.invoke(ctx, goMethod, args, func() (any, error) {
		v, err := call()
		out = v
		return v, err
	})
	return out, err
}

func (p *proxy) Get(ctx context.Context, key []byte) ([]byte, error) {
	return invokeResult(ctx, p, "Get", []any{key}, func() ([]byte, error) {
		return p.delegate.Get(ctx, key)
	})
}

func (p *proxy) Set(ctx context.Context, key, value []byte) error {
	return p.invoke(ctx, "Set", []any{key, value}, func() (any, error) {
		return nil, p.delegate.Set(ctx, key, value)
	})
}

func (p *proxy) SetEX(ctx context.Context, key []byte, ttl time.Duration, value []byte) error {
	return p.invoke(ctx, "SetEX", []any{key, ttl, value}, func() (any, error) {
		return nil, p.delegate.SetEX(ctx, key, ttl, value)
	})
}

func (p *proxy) SetNX(ctx context.Context, key, value []byte) (bool, error) {
	return invokeResult(ctx, p, "SetNX", []any{key, value}, func() (bool, error) {
		return p.delegate.SetNX(ctx, key, value)
	})
}

func (p *proxy) GetSet(ctx context.Context, key, value []byte) ([]byte, error) {
	return invokeResult(ctx, p, "GetSet", []any{key, value}, func() ([]byte, error) {
		return p.delegate.GetSet(ctx, key, value)
	})
}

func (p *proxy) Append(ctx context.Context, key, value []byte) (int64, error) {
	return invokeResult(ctx, p, "Append", []any{key, value}, func() (int64, error) {
		return p.delegate.Append(ctx, key, value)
	})
}

func (p *proxy) Del(ctx context.Context, keys ...[]byte) (int64, error) {
	return invokeResult(ctx, p, "Del", []any{keys}, func() (int64, error) {
		return p.delegate.Del(ctx, keys...)
	})
}

func (p *proxy) Exists(ctx context.Context, key []byte) (bool, error) {
	return invokeResult(ctx, p, "Exists", []any{key}, func() (bool, error) {
		return p.delegate.Exists(ctx, key)
	})
}

func (p *proxy) MGet(ctx context.Context, keys ...[]byte) ([][]byte, error) {
	return invokeResult(ctx, p, "MGet", []any{keys}, func() ([][]byte, error) {
		return p.delegate.MGet(ctx, keys...)
	})
}

func (p *proxy) MSet(ctx context.Context, pairs map[string][]byte) error {
	return p.invoke(ctx, "MSet", []any{pairs}, func() (any, error) {
		return nil, p.delegate.MSet(ctx, pairs)
	})
}

func (p *proxy) Expire(ctx context.Context, key []byte, ttl time.Duration) (bool, error) {
	return invokeResult(ctx, p, "Expire", []any{key, ttl}, func() (bool, error) {
		return p.delegate.Expire(ctx, key, ttl)
	})
}

func (p *proxy) Persist(ctx context.Context, key []byte) (bool, error) {
	return invokeResult(ctx, p, "Persist", []any{key}, func() (bool, error) {
		return p.delegate.Persist(ctx, key)
	})
}

func (p *proxy) TTL(ctx context.Context, key []byte) (time.Duration, error) {
	return invokeResult(ctx, p, "TTL", []any{key}, func() (time.Duration, error) {
		return p.delegate.TTL(ctx, key)
	})
}

func (p *proxy) Keys(ctx context.Context, pattern []byte) ([][]byte, error) {
	return invokeResult(ctx, p, "Keys", []any{pattern}, func() ([][]byte, error) {
		return p.delegate.Keys(ctx, pattern)
	})
}

func (p *proxy) Rename(ctx context.Context, oldKey, newKey []byte) error {
	return p.invoke(ctx, "Rename", []any{oldKey, newKey}, func() (any, error) {
		return nil, p.delegate.Rename(ctx, oldKey, newKey)
	})
}

func (p *proxy) FlushDB(ctx context.Context) error {
	return p.invoke(ctx, "FlushDB", nil, func() (any, error) {
		return nil, p.delegate.FlushDB(ctx)
	})
}

func (p *proxy) IncrBy(ctx context.Context, key []byte, delta int64) (int64, error) {
	return invokeResult(ctx, p, "IncrBy", []any{key, delta}, func() (int64, error) {
		return p.delegate.IncrBy(ctx, key, delta)
	})
}

func (p *proxy) DecrBy(ctx context.Context, key []byte, delta int64) (int64, error) {
	return invokeResult(ctx, p, "DecrBy", []any{key, delta}, func() (int64, error) {
		return p.delegate.DecrBy(ctx, key, delta)
	})
}

var _ store.Connection = (*proxy)(nil)
