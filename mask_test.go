package replica

import (
	"strings"
	"testing"
)

func TestNoMasker(t *testing.T) {
	if got := NoMasker().Mask("Value-1"); got != "Value-1" {
		t.Errorf("NoMasker() = %q, want Value-1", got)
	}
}

func TestRedactMasker(t *testing.T) {
	if got := RedactMasker("").Mask("secret"); got != "***" {
		t.Errorf("RedactMasker(\"\") = %q, want ***", got)
	}
	if got := RedactMasker("[REDACTED]").Mask("secret"); got != "[REDACTED]" {
		t.Errorf("RedactMasker([REDACTED]) = %q", got)
	}
}

func TestTailMasker(t *testing.T) {
	m := TailMasker(4)

	tests := []struct {
		input    string
		expected string
	}{
		{"session-4711", "********4711"},
		{"héllo-wörld", "*******örld"},
		{"1234", "****"}, // Too short
		{"", ""},
	}

	for _, tt := range tests {
		result := m.Mask(tt.input)
		if result != tt.expected {
			t.Errorf("TailMasker(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestEmailMasker(t *testing.T) {
	m := EmailMasker()

	tests := []struct {
		input    string
		expected string
	}{
		{"alice@example.com", "a***@example.com"},
		{"bob@test.org", "b***@test.org"},
		{"a@b.com", "a***@b.com"},
		{"noatsign", "********"}, // No @
	}

	for _, tt := range tests {
		result := m.Mask(tt.input)
		if result != tt.expected {
			t.Errorf("EmailMasker(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestDigestMasker(t *testing.T) {
	m := DigestMasker()

	a := m.Mask("Value-1")
	if !strings.HasPrefix(a, "blake3:") || len(a) != len("blake3:")+16 {
		t.Errorf("DigestMasker() = %q, want blake3:<16 hex>", a)
	}
	if m.Mask("Value-1") != a {
		t.Error("DigestMasker should be deterministic")
	}
	if m.Mask("Value-2") == a {
		t.Error("different values should digest differently")
	}
}

func TestMaskerFunc(t *testing.T) {
	m := MaskerFunc(strings.ToUpper)
	if got := m.Mask("abc"); got != "ABC" {
		t.Errorf("MaskerFunc = %q, want ABC", got)
	}
}

func TestBuiltinMaskers(t *testing.T) {
	maskers := builtinMaskers()

	expectedTypes := []MaskType{
		MaskNone, MaskRedact, MaskTail, MaskEmail, MaskDigest,
	}

	for _, mt := range expectedTypes {
		if _, ok := maskers[mt]; !ok {
			t.Errorf("builtinMaskers missing %q", mt)
		}
		if _, err := MaskerFor(mt); err != nil {
			t.Errorf("MaskerFor(%q) error: %v", mt, err)
		}
	}

	if _, err := MaskerFor("ssn"); err == nil {
		t.Error("MaskerFor(ssn) should return error")
	}
}
