package replica

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"
)

var errUnresolved = errors.New("argument not correlated with a captured parameter")

// CommandEvent is the portable record of one executed command.
//
// The identity fields are fixed at construction. Raw parameter bytes are
// produced on first use and cached for the life of the event. The receiver
// fields (Domain, ConnectionID, LogicalKey) are set at most once.
type CommandEvent struct {
	Interface      string
	Method         string
	ParameterTypes []string
	Source         string
	Application    string

	params      []CapturedParameter
	serializers *SerializerRegistry
	rawOnce     sync.Once
	raw         [][]byte
	rawErr      error

	bindOnce     sync.Once
	domain       string
	connectionID string
	logicalKey   string
}

// NewCommandEvent builds an event for a call to desc. params must hold one
// resolved parameter per descriptor position. Parameter bytes are serialized
// with serializers when first requested.
func NewCommandEvent(desc *CommandDescriptor, params []CapturedParameter, source, application string, serializers *SerializerRegistry) (*CommandEvent, error) {
	if len(params) != len(desc.ParameterTypes) {
		return nil, newRegistrationError(ErrParameterMismatch, desc.Interface, desc.Method,
			fmt.Sprintf("got %d parameters, command takes %d", len(params), len(desc.ParameterTypes)))
	}
	for i, p := range params {
		if !p.Resolved {
			return nil, newParameterError(ErrParameterMismatch, i, desc.ParameterTypes[i], errUnresolved)
		}
	}
	if serializers == nil {
		serializers = NewSerializerRegistry()
	}
	return &CommandEvent{
		Interface:      desc.Interface,
		Method:         desc.Method,
		ParameterTypes: slices.Clone(desc.ParameterTypes),
		Source:         source,
		Application:    application,
		params:         slices.Clone(params),
		serializers:    serializers,
	}, nil
}

// DecodedEvent builds an event from already-serialized parameters, as read
// off the wire. types and raw must have the same length.
func DecodedEvent(iface, method string, types []string, raw [][]byte, source, application string) (*CommandEvent, error) {
	if len(types) != len(raw) {
		return nil, newCodecError(ErrMalformedEvent,
			fmt.Errorf("%d parameter types for %d parameters", len(types), len(raw)))
	}
	e := &CommandEvent{
		Interface:      iface,
		Method:         method,
		ParameterTypes: types,
		Source:         source,
		Application:    application,
		raw:            raw,
	}
	e.rawOnce.Do(func() {})
	return e, nil
}

// RawParameters returns the serialized parameters, serializing them on the
// first call. The returned slices are shared and must not be modified.
func (e *CommandEvent) RawParameters() ([][]byte, error) {
	e.rawOnce.Do(func() {
		raw := make([][]byte, len(e.params))
		for i, p := range e.params {
			b, err := e.serializers.SerializeAs(p.Value, e.ParameterTypes[i])
			if err != nil {
				e.rawErr = newParameterError(ErrSerialize, i, e.ParameterTypes[i], err)
				return
			}
			raw[i] = b
		}
		e.raw = raw
		e.params = nil
	})
	return e.raw, e.rawErr
}

// Equal compares the identity tuple: interface, method, parameter types and
// raw parameters. Origin and receiver fields are ignored.
func (e *CommandEvent) Equal(other *CommandEvent) bool {
	if e == nil || other == nil {
		return e == other
	}
	if e.Interface != other.Interface || e.Method != other.Method ||
		!slices.Equal(e.ParameterTypes, other.ParameterTypes) {
		return false
	}
	a, err := e.RawParameters()
	if err != nil {
		return false
	}
	b, err := other.RawParameters()
	if err != nil {
		return false
	}
	return slices.EqualFunc(a, b, bytes.Equal)
}

// Fingerprint returns the keyed hash of the identity tuple, or the zero
// Fingerprint when parameters cannot be serialized.
func (e *CommandEvent) Fingerprint() Fingerprint {
	raw, err := e.RawParameters()
	if err != nil {
		return Fingerprint{}
	}
	return fingerprintOf(e.Interface, e.Method, e.ParameterTypes, raw)
}

// bind records the receiver-side fields. Only the first call has effect.
func (e *CommandEvent) bind(domain, connectionID, logicalKey string) {
	e.bindOnce.Do(func() {
		e.domain = domain
		e.connectionID = connectionID
		e.logicalKey = logicalKey
	})
}

// Domain is the replication domain the receiver accepted the event in.
func (e *CommandEvent) Domain() string { return e.domain }

// ConnectionID identifies the local connection the event was replayed on.
func (e *CommandEvent) ConnectionID() string { return e.connectionID }

// LogicalKey is the store key the command addressed, when it has one.
func (e *CommandEvent) LogicalKey() string { return e.logicalKey }

// Describe renders the event on one line with parameter values passed
// through m. Built-in numeric types are shown decoded; other values are
// shown as text when printable and as hex otherwise.
//
//	github.com/zoobzio/replica/store.Connection.set([B="Key-1", [B="Value-1") from node-1/orders
func (e *CommandEvent) Describe(m Masker) string {
	if m == nil {
		m = NoMasker()
	}
	var b strings.Builder
	b.WriteString(e.Interface)
	b.WriteByte('.')
	b.WriteString(e.Method)
	b.WriteByte('(')

	raw, err := e.RawParameters()
	for i, t := range e.ParameterTypes {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(t)
		b.WriteByte('=')
		if err != nil {
			b.WriteString("?")
			continue
		}
		b.WriteString(describeValue(t, raw[i], m))
	}
	b.WriteByte(')')

	if e.Source != "" || e.Application != "" {
		b.WriteString(" from ")
		b.WriteString(e.Source)
		b.WriteByte('/')
		b.WriteString(e.Application)
	}
	return b.String()
}

var describeSerializers = builtinSerializers()

func describeValue(typeName string, raw []byte, m Masker) string {
	if len(raw) == 0 {
		return "null"
	}
	switch typeName {
	case TypeBytes:
		return renderBytes(raw, m)
	case TypeString:
		if v, err := describeSerializers[typeName].Deserialize(raw); err == nil {
			return fmt.Sprintf("%q", m.Mask(v.(string)))
		}
	case TypeBytesList:
		if v, err := describeSerializers[typeName].Deserialize(raw); err == nil {
			list := v.([][]byte)
			parts := make([]string, len(list))
			for i, item := range list {
				parts[i] = renderBytes(item, m)
			}
			return "[" + strings.Join(parts, " ") + "]"
		}
	case TypeMap:
		if v, err := describeSerializers[typeName].Deserialize(raw); err == nil {
			return fmt.Sprintf("map[%d entries]", len(v.(map[string][]byte)))
		}
	default:
		if s, ok := describeSerializers[typeName]; ok {
			if v, err := s.Deserialize(raw); err == nil {
				return fmt.Sprint(v)
			}
		}
	}
	return renderBytes(raw, m)
}

func renderBytes(raw []byte, m Masker) string {
	if utf8.Valid(raw) && isPrintable(raw) {
		return fmt.Sprintf("%q", m.Mask(string(raw)))
	}
	return "0x" + m.Mask(fmt.Sprintf("%x", raw))
}

func isPrintable(raw []byte) bool {
	for _, c := range string(raw) {
		if c < 0x20 || c == 0x7f {
			return false
		}
	}
	return true
}
