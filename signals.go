package replica

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals for replication events.
var (
	SignalCommandRegistered   = capitan.NewSignal("replica.command.registered", "Command descriptor registered")
	SignalRegistrationFailed  = capitan.NewSignal("replica.command.registration_failed", "Command could not be registered")
	SignalSerializerFallback  = capitan.NewSignal("replica.serializer.fallback", "Generic serializer used for unregistered type")
	SignalInterceptorFailed   = capitan.NewSignal("replica.interceptor.failed", "Interceptor hook returned an error or panicked")
	SignalEventPublished      = capitan.NewSignal("replica.event.published", "Command event handed to the publisher")
	SignalEventSkipped        = capitan.NewSignal("replica.event.skipped", "Command event not built for an intercepted call")
	SignalPublishFailed       = capitan.NewSignal("replica.event.publish_failed", "Publisher rejected a command event")
	SignalDynamicResolution   = capitan.NewSignal("replica.receive.dynamic_resolution", "Command resolved against the live interface")
	SignalEventReplayed       = capitan.NewSignal("replica.receive.replayed", "Command event replayed on the local connection")
	SignalEventDropped        = capitan.NewSignal("replica.receive.dropped", "Command event dropped by the receiver")
	SignalEngineCreated       = capitan.NewSignal("replica.engine.created", "Replication engine constructed")
	SignalConnectionDecorated = capitan.NewSignal("replica.engine.decorated", "Connection wrapped with the interceptor chain")
)

// Keys for typed event data.
var (
	KeyInterface   = capitan.NewStringKey("interface")
	KeyMethod      = capitan.NewStringKey("method")
	KeyCommand     = capitan.NewStringKey("command")
	KeyTypeName    = capitan.NewStringKey("type_name")
	KeyInterceptor = capitan.NewStringKey("interceptor")
	KeyPhase       = capitan.NewStringKey("phase")
	KeyReason      = capitan.NewStringKey("reason")
	KeyFingerprint = capitan.NewStringKey("fingerprint")
	KeyApplication = capitan.NewStringKey("application")
	KeySource      = capitan.NewStringKey("source")
	KeyFormat      = capitan.NewStringKey("format")
	KeySize        = capitan.NewIntKey("size")
	KeyCount       = capitan.NewIntKey("count")
	KeyDuration    = capitan.NewDurationKey("duration")
	KeyError       = capitan.NewErrorKey("error")
)

// emitCommandRegistered emits an event when a descriptor is registered.
func emitCommandRegistered(ctx context.Context, d *CommandDescriptor) {
	capitan.Emit(ctx, SignalCommandRegistered,
		KeyInterface.Field(d.Interface),
		KeyMethod.Field(d.Method),
		KeyCommand.Field(d.Key()),
	)
}

// emitRegistrationFailed emits an event when registration is rejected.
func emitRegistrationFailed(ctx context.Context, iface, method string, err error) {
	capitan.Error(ctx, SignalRegistrationFailed,
		KeyInterface.Field(iface),
		KeyMethod.Field(method),
		KeyError.Field(err),
	)
}

// emitSerializerFallback emits an event when a type name has no serializer.
func emitSerializerFallback(ctx context.Context, typeName string) {
	capitan.Emit(ctx, SignalSerializerFallback,
		KeyTypeName.Field(typeName),
	)
}

// emitInterceptorFailed emits an event when a hook errors or panics.
func emitInterceptorFailed(ctx context.Context, interceptor, phase, method string, err error) {
	capitan.Error(ctx, SignalInterceptorFailed,
		KeyInterceptor.Field(interceptor),
		KeyPhase.Field(phase),
		KeyMethod.Field(method),
		KeyError.Field(err),
	)
}

// emitEventPublished emits an event after a successful publish.
func emitEventPublished(ctx context.Context, e *CommandEvent, duration time.Duration) {
	capitan.Emit(ctx, SignalEventPublished,
		KeyInterface.Field(e.Interface),
		KeyMethod.Field(e.Method),
		KeyFingerprint.Field(e.Fingerprint().String()),
		KeyApplication.Field(e.Application),
		KeyCount.Field(len(e.ParameterTypes)),
		KeyDuration.Field(duration),
	)
}

// emitEventSkipped emits an event when capture declines to build an event.
func emitEventSkipped(ctx context.Context, inv *Invocation, reason string, err error) {
	fields := []capitan.Field{
		KeyInterface.Field(inv.Interface),
		KeyMethod.Field(inv.Method),
		KeyReason.Field(reason),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalEventSkipped, fields...)
		return
	}
	capitan.Emit(ctx, SignalEventSkipped, fields...)
}

// emitPublishFailed emits an event when the publisher returns an error.
func emitPublishFailed(ctx context.Context, e *CommandEvent, err error) {
	capitan.Error(ctx, SignalPublishFailed,
		KeyInterface.Field(e.Interface),
		KeyMethod.Field(e.Method),
		KeyError.Field(err),
	)
}

// emitDynamicResolution emits an event when the registry missed and reflection resolved.
func emitDynamicResolution(ctx context.Context, iface, method string) {
	capitan.Emit(ctx, SignalDynamicResolution,
		KeyInterface.Field(iface),
		KeyMethod.Field(method),
	)
}

// emitEventReplayed emits an event after a replay completes.
func emitEventReplayed(ctx context.Context, e *CommandEvent, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyInterface.Field(e.Interface),
		KeyMethod.Field(e.Method),
		KeyFingerprint.Field(e.Fingerprint().String()),
		KeyApplication.Field(e.Application),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalEventReplayed, fields...)
		return
	}
	capitan.Emit(ctx, SignalEventReplayed, fields...)
}

// emitEventDropped emits an event when the receiver refuses an event.
func emitEventDropped(ctx context.Context, e *CommandEvent, size int, err error) {
	fields := []capitan.Field{
		KeySize.Field(size),
		KeyError.Field(err),
	}
	if e != nil {
		fields = append(fields,
			KeyInterface.Field(e.Interface),
			KeyMethod.Field(e.Method),
		)
	}
	capitan.Error(ctx, SignalEventDropped, fields...)
}

// emitEngineCreated emits an event when an engine is assembled.
func emitEngineCreated(ctx context.Context, application, format string, commands int) {
	capitan.Emit(ctx, SignalEngineCreated,
		KeyApplication.Field(application),
		KeyFormat.Field(format),
		KeyCount.Field(commands),
	)
}

// emitConnectionDecorated emits an event when a connection is wrapped.
func emitConnectionDecorated(ctx context.Context, source string, interceptors int) {
	capitan.Emit(ctx, SignalConnectionDecorated,
		KeySource.Field(source),
		KeyCount.Field(interceptors),
	)
}
