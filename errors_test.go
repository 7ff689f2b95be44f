package replica

import (
	"errors"
	"testing"
)

func TestRegistrationError_Is(t *testing.T) {
	err := newRegistrationError(ErrMethodNotFound, "store.Connection", "lpush", "")

	if !errors.Is(err, ErrMethodNotFound) {
		t.Error("RegistrationError should unwrap to ErrMethodNotFound")
	}

	if errors.Is(err, ErrDuplicateCommand) {
		t.Error("RegistrationError should not match ErrDuplicateCommand")
	}
}

func TestRegistrationError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "with detail",
			err:  newRegistrationError(ErrParameterMismatch, "store.Connection", "set", "got 1 parameter types, method takes 2"),
			want: "parameter mismatch: store.Connection.set (got 1 parameter types, method takes 2)",
		},
		{
			name: "without detail",
			err:  &RegistrationError{Err: ErrMethodNotFound, Interface: "store.Connection", Method: "lpush"},
			want: "method not found: store.Connection.lpush",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParameterError_Is(t *testing.T) {
	err := newParameterError(ErrDeserialize, 1, TypeLong, errors.New("short"))

	if !errors.Is(err, ErrDeserialize) {
		t.Error("ParameterError should unwrap to ErrDeserialize")
	}

	if errors.Is(err, ErrSerialize) {
		t.Error("ParameterError should not match ErrSerialize")
	}
}

func TestParameterError_Message(t *testing.T) {
	err := newParameterError(ErrTypeMismatch, 0, TypeBytes, errors.New("got string"))

	want := "type mismatch parameter 0 ([B): got string"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	bare := &ParameterError{Err: ErrSerialize, Index: 2, Type: TypeInt}
	if got := bare.Error(); got != "serialize failed parameter 2 (int)" {
		t.Errorf("Error() = %q", got)
	}
}

func TestCodecError_Is(t *testing.T) {
	err := newCodecError(ErrMalformedEvent, errors.New("truncated"))

	if !errors.Is(err, ErrMalformedEvent) {
		t.Error("CodecError should unwrap to ErrMalformedEvent")
	}

	if errors.Is(err, ErrDecryptionFailed) {
		t.Error("CodecError should not match ErrDecryptionFailed")
	}
}

func TestCodecError_Message(t *testing.T) {
	if got := newCodecError(ErrMalformedEvent, errors.New("truncated")).Error(); got != "malformed event: truncated" {
		t.Errorf("Error() = %q", got)
	}
	if got := newCodecError(ErrMalformedEvent, nil).Error(); got != "malformed event" {
		t.Errorf("Error() = %q", got)
	}
}

func TestDropError(t *testing.T) {
	e, err := DecodedEvent("store.Connection", "set", nil, nil, "", "")
	if err != nil {
		t.Fatalf("DecodedEvent() error: %v", err)
	}

	cause := newCodecError(ErrMalformedEvent, nil)
	drop := &DropError{Event: e, Cause: cause}
	if got := drop.Error(); got != "dropped store.Connection.set: malformed event" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(drop, ErrMalformedEvent) {
		t.Error("DropError should unwrap to its cause")
	}

	anonymous := &DropError{Cause: cause}
	if got := anonymous.Error(); got != "dropped event: malformed event" {
		t.Errorf("Error() = %q", got)
	}
}

func TestSentinelErrors(t *testing.T) {
	sentinels := []error{
		ErrMethodNotFound,
		ErrParameterMismatch,
		ErrDuplicateCommand,
		ErrUnresolvedCommand,
		ErrUnknownType,
		ErrSerialize,
		ErrDeserialize,
		ErrMalformedEvent,
		ErrUnsupportedVersion,
		ErrTypeMismatch,
		ErrInvalidKey,
		ErrDecryptionFailed,
		ErrIncompressible,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Errorf("%v should not match %v", a, b)
			}
		}
	}
}
