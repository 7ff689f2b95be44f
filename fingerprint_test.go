package replica

import (
	"testing"
)

func TestFingerprint_Stable(t *testing.T) {
	types := []string{TypeBytes, TypeBytes}
	raw := [][]byte{[]byte("Key-1"), []byte("Value-1")}

	a := fingerprintOf("iface", "set", types, raw)
	b := fingerprintOf("iface", "set", types, raw)
	if a != b {
		t.Error("fingerprint should be deterministic")
	}
	if a.IsZero() {
		t.Error("fingerprint should not be zero")
	}
	if len(a.String()) != 64 || len(a.Short()) != 16 {
		t.Errorf("String() = %q, Short() = %q", a.String(), a.Short())
	}
	if a.String()[:16] != a.Short() {
		t.Error("Short() should prefix String()")
	}
}

func TestFingerprint_FieldBoundaries(t *testing.T) {
	base := fingerprintOf("iface", "set", []string{TypeBytes, TypeBytes}, [][]byte{[]byte("ab"), []byte("c")})

	tests := []struct {
		name  string
		iface string
		meth  string
		types []string
		raw   [][]byte
	}{
		{"shifted parameter", "iface", "set", []string{TypeBytes, TypeBytes}, [][]byte{[]byte("a"), []byte("bc")}},
		{"other method", "iface", "get", []string{TypeBytes, TypeBytes}, [][]byte{[]byte("ab"), []byte("c")}},
		{"other types", "iface", "set", []string{TypeBytes, TypeString}, [][]byte{[]byte("ab"), []byte("c")}},
		{"shifted name", "ifaces", "et", []string{TypeBytes, TypeBytes}, [][]byte{[]byte("ab"), []byte("c")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if fingerprintOf(tt.iface, tt.meth, tt.types, tt.raw) == base {
				t.Error("fingerprint collided")
			}
		})
	}
}

func TestFingerprint_Zero(t *testing.T) {
	var f Fingerprint
	if !f.IsZero() {
		t.Error("zero value should report IsZero")
	}
}
