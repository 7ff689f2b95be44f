package replica

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Leading bytes of the tagged wire formats. Any other leading byte belongs
// to the default codec.
const (
	VersionCompact    byte = 0x01
	VersionCompressed byte = 0x02
	VersionSealed     byte = 0x03
)

// DefaultMaxEventSize bounds the decompressed size of an event.
const DefaultMaxEventSize = 64 << 20

// Format selects the unsealed encoding an EventCodec produces.
type Format string

const (
	// FormatCompact is the tagged binary format, compressed when configured.
	FormatCompact Format = "compact"
	// FormatDefault is the self-describing format of the default Codec.
	FormatDefault Format = "default"
)

// ParseFormat parses a format from its configuration name.
func ParseFormat(name string) (Format, error) {
	switch Format(name) {
	case "", FormatCompact:
		return FormatCompact, nil
	case FormatDefault:
		return FormatDefault, nil
	default:
		return "", fmt.Errorf("unknown format %q", name)
	}
}

// EventCodec encodes and decodes command events. Decoding accepts every
// format regardless of how the codec is configured to encode.
type EventCodec struct {
	format      Format
	compression CompressionTag
	threshold   int
	sealer      Sealer
	fallback    Codec
	maxSize     int
}

// CodecOption configures an EventCodec.
type CodecOption func(*EventCodec)

// WithFormat selects the encoding produced by Encode.
func WithFormat(f Format) CodecOption {
	return func(c *EventCodec) {
		c.format = f
	}
}

// WithCompression compresses compact bodies of at least threshold bytes.
func WithCompression(tag CompressionTag, threshold int) CodecOption {
	return func(c *EventCodec) {
		c.compression = tag
		c.threshold = threshold
	}
}

// WithSealer seals every encoded event and enables opening sealed frames.
func WithSealer(s Sealer) CodecOption {
	return func(c *EventCodec) {
		c.sealer = s
	}
}

// WithDefaultCodec replaces the CBOR codec of the self-describing format.
func WithDefaultCodec(codec Codec) CodecOption {
	return func(c *EventCodec) {
		c.fallback = codec
	}
}

// WithMaxEventSize bounds the decompressed size Decode accepts.
func WithMaxEventSize(n int) CodecOption {
	return func(c *EventCodec) {
		c.maxSize = n
	}
}

// NewEventCodec creates a codec producing uncompressed, unsealed compact events.
func NewEventCodec(opts ...CodecOption) *EventCodec {
	c := &EventCodec{
		format:   FormatCompact,
		fallback: CBOR(),
		maxSize:  DefaultMaxEventSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Format returns the encoding produced by Encode.
func (c *EventCodec) Format() Format {
	return c.format
}

// ContentType describes the encoding produced by Encode.
func (c *EventCodec) ContentType() string {
	if c.format == FormatDefault {
		return c.fallback.ContentType()
	}
	return "application/x-replica-event"
}

// Encode serializes e in the configured format.
func (c *EventCodec) Encode(e *CommandEvent) ([]byte, error) {
	raw, err := e.RawParameters()
	if err != nil {
		return nil, newCodecError(ErrSerialize, err)
	}

	var body []byte
	switch c.format {
	case FormatCompact:
		body = c.encodeCompact(e, raw)
	case FormatDefault:
		body, err = c.fallback.Marshal(recordOf(e, raw))
		if err != nil {
			return nil, newCodecError(ErrSerialize, err)
		}
		if len(body) > 0 && body[0] >= VersionCompact && body[0] <= VersionSealed {
			return nil, newCodecError(ErrUnsupportedVersion,
				fmt.Errorf("%s output starts with reserved byte 0x%02x", c.fallback.ContentType(), body[0]))
		}
	default:
		return nil, newCodecError(ErrUnsupportedVersion, fmt.Errorf("format %q", c.format))
	}

	if c.sealer == nil {
		return body, nil
	}
	return c.seal(body)
}

// Decode reads the leading byte and dispatches to the matching format.
func (c *EventCodec) Decode(data []byte) (*CommandEvent, error) {
	if len(data) == 0 {
		return nil, newCodecError(ErrMalformedEvent, errors.New("empty input"))
	}
	if data[0] == VersionSealed {
		inner, err := c.open(data)
		if err != nil {
			return nil, err
		}
		if len(inner) > 0 && inner[0] == VersionSealed {
			return nil, newCodecError(ErrMalformedEvent, errors.New("nested sealed frame"))
		}
		return c.decodeOpen(inner)
	}
	return c.decodeOpen(data)
}

func (c *EventCodec) decodeOpen(data []byte) (*CommandEvent, error) {
	if len(data) == 0 {
		return nil, newCodecError(ErrMalformedEvent, errors.New("empty body"))
	}
	switch data[0] {
	case VersionCompact:
		return decodeCompact(data[1:])
	case VersionCompressed:
		return c.decodeCompressed(data[1:])
	default:
		var rec EventRecord
		if err := c.fallback.Unmarshal(data, &rec); err != nil {
			return nil, newCodecError(ErrMalformedEvent, err)
		}
		if rec.ParameterTypes == nil {
			rec.ParameterTypes = []string{}
		}
		if rec.Parameters == nil {
			rec.Parameters = [][]byte{}
		}
		return DecodedEvent(rec.Interface, rec.Method, rec.ParameterTypes, rec.Parameters, rec.Source, rec.Application)
	}
}

func recordOf(e *CommandEvent, raw [][]byte) EventRecord {
	return EventRecord{
		Interface:      e.Interface,
		Method:         e.Method,
		ParameterTypes: e.ParameterTypes,
		Parameters:     raw,
		Source:         e.Source,
		Application:    e.Application,
	}
}

// encodeCompact writes the v1 layout, then compresses it into v2 when the
// body is large enough and compression pays off:
//
//	v1: [0x01] interface method count types... params... application
//	v2: [0x02] [tag] [uvarint v1 body size] [compressed v1 body]
//
// Strings and parameters are uvarint-length-prefixed.
func (c *EventCodec) encodeCompact(e *CommandEvent, raw [][]byte) []byte {
	size := 1 + len(e.Interface) + len(e.Method) + len(e.Application) + 4*binary.MaxVarintLen32
	for i, t := range e.ParameterTypes {
		size += len(t) + len(raw[i]) + 2*binary.MaxVarintLen32
	}

	buf := make([]byte, 1, size)
	buf[0] = VersionCompact
	buf = appendChunk(buf, []byte(e.Interface))
	buf = appendChunk(buf, []byte(e.Method))
	buf = binary.AppendUvarint(buf, uint64(len(e.ParameterTypes)))
	for _, t := range e.ParameterTypes {
		buf = appendChunk(buf, []byte(t))
	}
	for _, p := range raw {
		buf = appendChunk(buf, p)
	}
	buf = appendChunk(buf, []byte(e.Application))

	if c.compression == CompressionNone || len(buf)-1 < c.threshold {
		return buf
	}
	compressed, err := compress(buf[1:], c.compression)
	if err != nil {
		// ErrIncompressible or a codec failure: the v1 body is still valid.
		return buf
	}
	out := make([]byte, 0, 2+binary.MaxVarintLen64+len(compressed))
	out = append(out, VersionCompressed, byte(c.compression))
	out = binary.AppendUvarint(out, uint64(len(buf)-1))
	return append(out, compressed...)
}

func decodeCompact(body []byte) (*CommandEvent, error) {
	r := &chunkReader{data: body}
	fail := func(err error) (*CommandEvent, error) {
		return nil, newCodecError(ErrMalformedEvent, err)
	}

	iface, err := r.readString()
	if err != nil {
		return fail(fmt.Errorf("interface: %w", err))
	}
	method, err := r.readString()
	if err != nil {
		return fail(fmt.Errorf("method: %w", err))
	}
	n, err := r.count()
	if err != nil {
		return fail(fmt.Errorf("parameter count: %w", err))
	}
	types := make([]string, n)
	for i := range types {
		if types[i], err = r.readString(); err != nil {
			return fail(fmt.Errorf("parameter type %d: %w", i, err))
		}
	}
	raw := make([][]byte, n)
	for i := range raw {
		if raw[i], err = r.chunk(); err != nil {
			return fail(fmt.Errorf("parameter %d: %w", i, err))
		}
	}
	application, err := r.readString()
	if err != nil {
		return fail(fmt.Errorf("application: %w", err))
	}
	if err := r.done(); err != nil {
		return fail(err)
	}
	return DecodedEvent(iface, method, types, raw, "", application)
}

func (c *EventCodec) decodeCompressed(body []byte) (*CommandEvent, error) {
	r := &chunkReader{data: body}
	tag, err := r.readByte()
	if err != nil {
		return nil, newCodecError(ErrMalformedEvent, err)
	}
	size, err := r.uvarint()
	if err != nil {
		return nil, newCodecError(ErrMalformedEvent, err)
	}
	if size > uint64(c.maxSize) {
		return nil, newCodecError(ErrMalformedEvent,
			fmt.Errorf("declared size %d exceeds limit %d", size, c.maxSize))
	}
	plain, err := decompress(body[r.off:], CompressionTag(tag), int(size))
	if err != nil {
		if errors.Is(err, ErrUnsupportedVersion) {
			return nil, newCodecError(ErrUnsupportedVersion, err)
		}
		return nil, newCodecError(ErrMalformedEvent, err)
	}
	return decodeCompact(plain)
}

// seal frames body as [0x03] [algorithm] [nonce] [ciphertext]. The first two
// bytes are authenticated.
func (c *EventCodec) seal(body []byte) ([]byte, error) {
	header := []byte{VersionSealed, byte(c.sealer.Algorithm())}
	sealed, err := c.sealer.Seal(body, header)
	if err != nil {
		return nil, newCodecError(ErrSerialize, err)
	}
	return append(header, sealed...), nil
}

func (c *EventCodec) open(data []byte) ([]byte, error) {
	if len(data) < 2 {
		return nil, newCodecError(ErrMalformedEvent, errors.New("truncated sealed frame"))
	}
	if c.sealer == nil {
		return nil, newCodecError(ErrDecryptionFailed, errors.New("no sealer configured"))
	}
	alg := SealAlgorithm(data[1])
	if alg != c.sealer.Algorithm() {
		return nil, newCodecError(ErrDecryptionFailed,
			fmt.Errorf("frame sealed with %s, codec holds %s", alg, c.sealer.Algorithm()))
	}
	plain, err := c.sealer.Open(data[2:], data[:2])
	if err != nil {
		return nil, newCodecError(ErrDecryptionFailed, err)
	}
	return plain, nil
}
