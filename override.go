package replica

// Override interfaces let parameter types bypass the serializer registry.
// When a value implements one of these interfaces, the registry calls the
// interface method instead of looking up a serializer by type name.
//
// Types that replicate across runtimes should implement both so the wire
// form is under their control rather than msgpack's.

// ParameterMarshaler encodes the receiver as a command parameter.
type ParameterMarshaler interface {
	// MarshalParameter returns the raw parameter bytes.
	// A zero-length result is read back as nil.
	MarshalParameter() ([]byte, error)
}

// ParameterUnmarshaler decodes a command parameter into the receiver.
type ParameterUnmarshaler interface {
	// UnmarshalParameter populates the receiver from raw bytes.
	// data is never empty and must not be retained.
	UnmarshalParameter(data []byte) error
}
