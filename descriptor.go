package replica

import (
	"reflect"
	"strings"
	"unicode"
)

// CommandDescriptor is the registered signature of an interceptable command.
// Descriptors are immutable once registered and live for the process lifetime.
type CommandDescriptor struct {
	// Interface is the fully qualified interface name ("<pkgpath>.<Name>").
	Interface string
	// Method is the wire name of the method (lower-camel Go name).
	Method string
	// GoMethod is the Go method name used for dispatch.
	GoMethod string
	// ParameterTypes are the logical type names, excluding the leading context.
	ParameterTypes []string
	// Parameters holds per-position metadata.
	Parameters []ParameterMetadata

	key      string
	variadic bool
}

// ParameterMetadata describes one parameter position of a descriptor.
type ParameterMetadata struct {
	Index int
	Type  string
	Name  string
}

// Key returns the identity of the descriptor: interface#method(types).
func (d *CommandDescriptor) Key() string {
	return d.key
}

// Variadic reports whether the final parameter is a variadic slice.
func (d *CommandDescriptor) Variadic() bool {
	return d.variadic
}

func newDescriptor(iface, method, goMethod string, types, names []string, variadic bool) *CommandDescriptor {
	params := make([]ParameterMetadata, len(types))
	for i, t := range types {
		params[i] = ParameterMetadata{Index: i, Type: t}
		if i < len(names) {
			params[i].Name = names[i]
		}
	}
	frozen := append([]string(nil), types...)
	return &CommandDescriptor{
		Interface:      iface,
		Method:         method,
		GoMethod:       goMethod,
		ParameterTypes: frozen,
		Parameters:     params,
		key:            commandKey(iface, method, frozen),
		variadic:       variadic,
	}
}

// commandKey builds the precomputed lookup key for a signature.
func commandKey(iface, method string, types []string) string {
	var b strings.Builder
	b.Grow(len(iface) + len(method) + 2 + 16*len(types))
	b.WriteString(iface)
	b.WriteByte('#')
	b.WriteString(method)
	b.WriteByte('(')
	for i, t := range types {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(t)
	}
	b.WriteByte(')')
	return b.String()
}

// methodKey builds the proxy-side key for an interface method.
func methodKey(iface, goMethod string) string {
	return iface + "#" + goMethod
}

// InterfaceName returns the qualified name used on the wire for an interface type.
func InterfaceName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// WireMethod converts a Go method name to its wire form: the leading run of
// capitals is lowered, keeping the last one when it starts the next word.
//
//	Set -> set, SetNX -> setNX, MSet -> mSet, TTL -> ttl, FlushDB -> flushDB
func WireMethod(goName string) string {
	runes := []rune(goName)
	n := 0
	for n < len(runes) && unicode.IsUpper(runes[n]) {
		n++
	}
	switch {
	case n == 0:
		return goName
	case n == len(runes):
		return strings.ToLower(goName)
	case n > 1:
		n--
	}
	for i := 0; i < n; i++ {
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}
