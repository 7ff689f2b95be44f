package replica

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// fingerprintKey is the BLAKE3 key for event fingerprints. It separates them
// from any other BLAKE3 use over the same bytes. Changing it changes every
// fingerprint.
var fingerprintKey = []byte("replica.command.event.fprint.v01")

// Fingerprint identifies an event by its equality tuple: interface, method,
// parameter types and raw parameters. Origin and transient fields are excluded.
type Fingerprint [32]byte

// String returns the lowercase hex form.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// Short returns the first 8 bytes in hex, for log lines.
func (f Fingerprint) Short() string {
	return hex.EncodeToString(f[:8])
}

// IsZero reports whether f is the zero value.
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// fingerprintOf hashes each field length-prefixed so that field boundaries
// cannot be shifted without changing the result.
func fingerprintOf(iface, method string, types []string, raw [][]byte) Fingerprint {
	hasher, err := blake3.NewKeyed(fingerprintKey)
	if err != nil {
		panic("replica: BLAKE3 keyed hash initialization failed: " + err.Error())
	}

	var scratch [binary.MaxVarintLen64]byte
	write := func(b []byte) {
		n := binary.PutUvarint(scratch[:], uint64(len(b)))
		_, _ = hasher.Write(scratch[:n])
		_, _ = hasher.Write(b)
	}

	write([]byte(iface))
	write([]byte(method))
	n := binary.PutUvarint(scratch[:], uint64(len(types)))
	_, _ = hasher.Write(scratch[:n])
	for _, t := range types {
		write([]byte(t))
	}
	for _, p := range raw {
		write(p)
	}

	var f Fingerprint
	copy(f[:], hasher.Sum(nil))
	return f
}
