package replica

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/zoobzio/replica/store"
)

// Engine assembles the registries, codec and interceptor chain from a Config.
// One engine is created per process and shared by reference.
type Engine struct {
	config      *Config
	serializers *SerializerRegistry
	commands    *CommandRegistry
	correlator  *Correlator
	toggle      *Toggle
	codec       *EventCodec
	chain       *Chain
	masker      Masker
	register    func(*CommandRegistry) error
}

type engineOptions struct {
	publisher     Publisher
	interceptors  []Interceptor
	serializers   *SerializerRegistry
	register      func(*CommandRegistry) error
	tracer        trace.TracerProvider
	codecOptions  []CodecOption
	publishBinary func(ctx context.Context, data []byte) error
}

// Option configures New.
type Option func(*engineOptions)

// WithPublisher sets where captured events go. Without a publisher or a
// binary publisher, nothing is captured.
func WithPublisher(p Publisher) Option {
	return func(o *engineOptions) {
		o.publisher = p
	}
}

// WithBinaryPublisher encodes captured events with the engine's codec and
// passes the bytes to send. It takes precedence over WithPublisher.
func WithBinaryPublisher(send func(ctx context.Context, data []byte) error) Option {
	return func(o *engineOptions) {
		o.publishBinary = send
	}
}

// WithInterceptors adds interceptors to the chain alongside the built-ins.
func WithInterceptors(interceptors ...Interceptor) Option {
	return func(o *engineOptions) {
		o.interceptors = append(o.interceptors, interceptors...)
	}
}

// WithSerializers supplies a serializer registry, typically preloaded with
// RegisterStruct types.
func WithSerializers(r *SerializerRegistry) Option {
	return func(o *engineOptions) {
		o.serializers = r
	}
}

// WithRegistration replaces RegisterStoreCommands as the registration entrypoint.
func WithRegistration(register func(*CommandRegistry) error) Option {
	return func(o *engineOptions) {
		o.register = register
	}
}

// WithTracerProvider sets the provider for the tracing interceptor.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *engineOptions) {
		o.tracer = tp
	}
}

// WithCodecOptions applies extra options after the configured ones, such as
// WithDefaultCodec.
func WithCodecOptions(opts ...CodecOption) Option {
	return func(o *engineOptions) {
		o.codecOptions = append(o.codecOptions, opts...)
	}
}

// New validates cfg and builds an engine. A nil cfg uses Default().
func New(cfg *Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &engineOptions{register: RegisterStoreCommands}
	for _, opt := range opts {
		opt(o)
	}
	if o.serializers == nil {
		o.serializers = NewSerializerRegistry()
	}

	codec, err := cfg.EventCodec(o.codecOptions...)
	if err != nil {
		return nil, err
	}
	masker, err := MaskerFor(MaskType(cfg.Describe.Mask))
	if err != nil {
		return nil, err
	}

	e := &Engine{
		config:      cfg,
		serializers: o.serializers,
		commands:    NewCommandRegistry(o.serializers, WithFailFast(cfg.FailFast)),
		correlator:  NewCorrelator(),
		toggle:      NewToggle(cfg.Enabled),
		codec:       codec,
		masker:      masker,
		register:    o.register,
	}

	publisher := o.publisher
	if o.publishBinary != nil {
		publisher = EncodingPublisher(codec, o.publishBinary)
	}

	interceptors := make([]Interceptor, 0, len(o.interceptors)+2)
	if cfg.Tracing {
		interceptors = append(interceptors, NewTracing(o.tracer))
	}
	interceptors = append(interceptors, o.interceptors...)
	if publisher != nil {
		interceptors = append(interceptors, NewEventCapture(publisher, o.serializers, e.toggle, cfg.Application))
	}
	e.chain = NewChain(interceptors...)

	emitEngineCreated(context.Background(), cfg.Application, string(codec.Format()), e.chain.Len())
	return e, nil
}

// Register runs the registration entrypoint. It is idempotent and safe to
// call concurrently; every call returns the result of the first.
func (e *Engine) Register() error {
	return e.commands.Init(e.register)
}

// Wrap decorates conn with the engine's chain.
func (e *Engine) Wrap(conn store.Connection) store.Connection {
	return Wrap(conn, e.chain, e.commands,
		WithSource(e.config.Source),
		WithCorrelator(e.correlator),
	)
}

// Receiver creates a receiver replaying onto conn with the engine's
// registries and codec.
func (e *Engine) Receiver(conn store.Connection, opts ...ReceiverOption) *Receiver {
	base := []ReceiverOption{
		WithDomain(e.config.Receiver.Domain),
		WithConnectionID(e.config.Receiver.ConnectionID),
	}
	return NewReceiver(conn, e.commands, e.serializers, e.codec, append(base, opts...)...)
}

// Describe renders an event with the configured masker.
func (e *Engine) Describe(ev *CommandEvent) string {
	return ev.Describe(e.masker)
}

// Toggle returns the capture feature toggle.
func (e *Engine) Toggle() *Toggle { return e.toggle }

// Codec returns the event codec.
func (e *Engine) Codec() *EventCodec { return e.codec }

// Commands returns the command registry.
func (e *Engine) Commands() *CommandRegistry { return e.commands }

// Serializers returns the serializer registry.
func (e *Engine) Serializers() *SerializerRegistry { return e.serializers }

// Correlator returns the correlator shared by wrapped connections.
func (e *Engine) Correlator() *Correlator { return e.correlator }

// Chain returns the interceptor chain.
func (e *Engine) Chain() *Chain { return e.chain }
