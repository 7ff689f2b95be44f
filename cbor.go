package replica

import (
	"github.com/fxamacker/cbor/v2"
)

// cborEncMode uses Core Deterministic Encoding (RFC 8949 §4.2): sorted map
// keys, smallest integer encoding, no indefinite-length items. The same
// event always produces identical bytes.
var cborEncMode cbor.EncMode

// cborDecMode accepts standard CBOR and ignores unknown fields so newer
// producers stay readable.
var cborDecMode cbor.DecMode

func init() {
	var err error
	cborEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("replica: CBOR encoder initialization failed: " + err.Error())
	}
	cborDecMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("replica: CBOR decoder initialization failed: " + err.Error())
	}
}

// cborCodec implements Codec for deterministic CBOR.
type cborCodec struct{}

// CBOR returns the built-in deterministic CBOR codec used as the default
// self-describing event format.
func CBOR() Codec {
	return &cborCodec{}
}

// ContentType returns the MIME type for CBOR.
func (c *cborCodec) ContentType() string {
	return "application/cbor"
}

// Marshal encodes v as deterministic CBOR.
func (c *cborCodec) Marshal(v any) ([]byte, error) {
	return cborEncMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func (c *cborCodec) Unmarshal(data []byte, v any) error {
	return cborDecMode.Unmarshal(data, v)
}

// Diagnose returns the CBOR diagnostic notation (RFC 8949 §8) for data.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
