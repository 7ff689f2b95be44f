package replica

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic error handling.
// Use errors.Is() to check for these error types.
var (
	// ErrMethodNotFound indicates the interface has no method with the given name.
	ErrMethodNotFound = errors.New("method not found")

	// ErrParameterMismatch indicates declared parameter types disagree with the method signature.
	ErrParameterMismatch = errors.New("parameter mismatch")

	// ErrDuplicateCommand indicates the command signature is already registered.
	ErrDuplicateCommand = errors.New("duplicate command")

	// ErrUnresolvedCommand indicates neither the registry nor dynamic resolution found the command.
	ErrUnresolvedCommand = errors.New("unresolved command")

	// ErrUnknownType indicates no Go type is known for a logical type name.
	ErrUnknownType = errors.New("unknown type")

	// ErrSerialize indicates a parameter value could not be encoded.
	ErrSerialize = errors.New("serialize failed")

	// ErrDeserialize indicates parameter bytes could not be decoded.
	ErrDeserialize = errors.New("deserialize failed")

	// ErrMalformedEvent indicates encoded event bytes are truncated or inconsistent.
	ErrMalformedEvent = errors.New("malformed event")

	// ErrUnsupportedVersion indicates an encoding version this build cannot produce.
	ErrUnsupportedVersion = errors.New("unsupported version")

	// ErrTypeMismatch indicates a decoded value does not fit the target parameter.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrInvalidKey indicates a sealing key has invalid size or format.
	ErrInvalidKey = errors.New("invalid key")

	// ErrDecryptionFailed indicates a sealed frame failed authentication.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrIncompressible indicates compression did not shrink the payload.
	ErrIncompressible = errors.New("incompressible")
)

// RegistrationError represents a command registration failure.
// It wraps a sentinel error with the interface and method involved.
type RegistrationError struct {
	Err       error  // Underlying sentinel error (ErrMethodNotFound, etc.)
	Interface string // Interface name
	Method    string // Method name as given to Register
	Detail    string // Optional extra context
}

func (e *RegistrationError) Error() string {
	msg := fmt.Sprintf("%s: %s.%s", e.Err.Error(), e.Interface, e.Method)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// ParameterError represents a failure to encode or decode one parameter.
type ParameterError struct {
	Err   error  // Underlying sentinel error (ErrSerialize, ErrDeserialize, ErrTypeMismatch)
	Index int    // Parameter position
	Type  string // Logical type name
	Cause error  // Original error from the serializer
}

func (e *ParameterError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s parameter %d (%s): %v", e.Err.Error(), e.Index, e.Type, e.Cause)
	}
	return fmt.Sprintf("%s parameter %d (%s)", e.Err.Error(), e.Index, e.Type)
}

func (e *ParameterError) Unwrap() error {
	return e.Err
}

// CodecError represents an event encode/decode error.
type CodecError struct {
	Err   error // Underlying sentinel error (ErrMalformedEvent, ErrSerialize, etc.)
	Cause error // Original error from the codec
}

func (e *CodecError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Err.Error(), e.Cause)
	}
	return e.Err.Error()
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

// DropError reports an event the receiver refused to replay.
type DropError struct {
	Event *CommandEvent // nil when the bytes could not be decoded
	Cause error
}

func (e *DropError) Error() string {
	if e.Event != nil {
		return fmt.Sprintf("dropped %s.%s: %v", e.Event.Interface, e.Event.Method, e.Cause)
	}
	return fmt.Sprintf("dropped event: %v", e.Cause)
}

func (e *DropError) Unwrap() error {
	return e.Cause
}

// newRegistrationError creates a RegistrationError.
func newRegistrationError(sentinel error, iface, method, detail string) error {
	return &RegistrationError{
		Err:       sentinel,
		Interface: iface,
		Method:    method,
		Detail:    detail,
	}
}

// newParameterError creates a ParameterError for a single parameter failure.
func newParameterError(sentinel error, index int, typeName string, cause error) error {
	return &ParameterError{
		Err:   sentinel,
		Index: index,
		Type:  typeName,
		Cause: cause,
	}
}

// newCodecError creates a CodecError for encode/decode failures.
func newCodecError(sentinel error, cause error) error {
	return &CodecError{
		Err:   sentinel,
		Cause: cause,
	}
}
