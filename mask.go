package replica

import (
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

// MaskType names a masking strategy for rendered parameter values.
type MaskType string

const (
	MaskNone   MaskType = "none"   // value -> value
	MaskRedact MaskType = "redact" // secret -> ***
	MaskTail   MaskType = "tail"   // session-4711 -> ********4711
	MaskEmail  MaskType = "email"  // alice@example.com -> a***@example.com
	MaskDigest MaskType = "digest" // any -> blake3:1f0c9a2e5d7b8c34
)

// Masker hides sensitive parts of a rendered value.
type Masker interface {
	// Mask returns the displayable form of value.
	Mask(value string) string
}

// MaskerFunc adapts a function to Masker.
type MaskerFunc func(string) string

func (f MaskerFunc) Mask(value string) string { return f(value) }

// NoMasker returns values unchanged.
func NoMasker() Masker {
	return MaskerFunc(func(value string) string { return value })
}

// redactMasker replaces the whole value.
type redactMasker struct {
	replacement string
}

// RedactMasker replaces every value with replacement, or "***" when empty.
func RedactMasker(replacement string) Masker {
	if replacement == "" {
		replacement = "***"
	}
	return &redactMasker{replacement: replacement}
}

func (m *redactMasker) Mask(string) string {
	return m.replacement
}

// tailMasker keeps the last n runes: session-4711 -> ********4711
type tailMasker struct {
	keep int
}

// TailMasker keeps the last keep runes and stars the rest. Values of keep
// runes or fewer are fully starred.
func TailMasker(keep int) Masker {
	return &tailMasker{keep: keep}
}

func (m *tailMasker) Mask(value string) string {
	runes := []rune(value)
	if len(runes) <= m.keep {
		return strings.Repeat("*", len(runes))
	}
	return strings.Repeat("*", len(runes)-m.keep) + string(runes[len(runes)-m.keep:])
}

// emailMasker masks email format: alice@example.com -> a***@example.com
type emailMasker struct{}

// EmailMasker returns a masker for email-shaped values.
// Preserves first character of local part and full domain.
func EmailMasker() Masker {
	return &emailMasker{}
}

func (m *emailMasker) Mask(value string) string {
	atIdx := strings.LastIndex(value, "@")
	if atIdx < 1 {
		// No @ or @ at start, mask everything
		return strings.Repeat("*", len(value))
	}
	return value[:1] + "***" + value[atIdx:]
}

// digestMasker replaces a value with a short keyed hash so equal values stay
// recognisable across log lines without being readable.
type digestMasker struct{}

var digestKey = []byte("replica.describe.value.digest.v1")

// DigestMasker returns a masker that renders a BLAKE3 digest prefix.
func DigestMasker() Masker {
	return &digestMasker{}
}

func (m *digestMasker) Mask(value string) string {
	hasher, err := blake3.NewKeyed(digestKey)
	if err != nil {
		panic("replica: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	_, _ = hasher.Write([]byte(value))
	return fmt.Sprintf("blake3:%x", hasher.Sum(nil)[:8])
}

// builtinMaskers returns the maskers selectable by name.
func builtinMaskers() map[MaskType]Masker {
	return map[MaskType]Masker{
		MaskNone:   NoMasker(),
		MaskRedact: RedactMasker(""),
		MaskTail:   TailMasker(4),
		MaskEmail:  EmailMasker(),
		MaskDigest: DigestMasker(),
	}
}

// MaskerFor returns the built-in masker named t.
func MaskerFor(t MaskType) (Masker, error) {
	m, ok := builtinMaskers()[t]
	if !ok {
		return nil, fmt.Errorf("unknown mask type %q", t)
	}
	return m, nil
}
