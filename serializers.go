package replica

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"time"
)

// Logical type names of the built-in serializers. Names follow JVM
// descriptors so events stay readable by non-Go peers.
const (
	TypeNull      = "null"
	// TypeBytes is written raw, so an empty slice shares the null marker and
	// reads back as nil.
	TypeBytes     = "[B"
	TypeBytesList = "[[B"
	TypeString    = "java.lang.String"
	TypeStrings   = "[Ljava.lang.String;"
	TypeLong      = "long"
	TypeInt       = "int"
	TypeShort     = "short"
	TypeByte      = "byte"
	TypeBoolean   = "boolean"
	TypeDouble    = "double"
	TypeFloat     = "float"
	TypeDuration  = "java.time.Duration"
	TypeMap       = "java.util.Map"
)

var errLength = errors.New("unexpected length")

func builtinSerializers() map[string]Serializer {
	return map[string]Serializer{
		TypeBytes:     bytesSerializer{},
		TypeBytesList: bytesListSerializer{},
		TypeString:    stringSerializer{},
		TypeStrings:   stringsSerializer{},
		TypeLong:      fixedSerializer[int64]{size: 8},
		TypeInt:       fixedSerializer[int32]{size: 4},
		TypeShort:     fixedSerializer[int16]{size: 2},
		TypeByte:      fixedSerializer[int8]{size: 1},
		TypeBoolean:   boolSerializer{},
		TypeDouble:    float64Serializer{},
		TypeFloat:     float32Serializer{},
		TypeDuration:  durationSerializer{},
		TypeMap:       mapSerializer{},
	}
}

// builtinAliases maps additional Go types onto built-in names.
func builtinAliases() map[reflect.Type]string {
	return map[reflect.Type]string{
		reflect.TypeFor[int](): TypeLong,
	}
}

type bytesSerializer struct{}

func (bytesSerializer) Type() reflect.Type { return reflect.TypeFor[[]byte]() }

func (bytesSerializer) Serialize(v any) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, mismatch(v, TypeBytes)
	}
	return append([]byte(nil), b...), nil
}

func (bytesSerializer) Deserialize(data []byte) (any, error) {
	return append([]byte(nil), data...), nil
}

type bytesListSerializer struct{}

func (bytesListSerializer) Type() reflect.Type { return reflect.TypeFor[[][]byte]() }

func (bytesListSerializer) Serialize(v any) ([]byte, error) {
	list, ok := v.([][]byte)
	if !ok {
		return nil, mismatch(v, TypeBytesList)
	}
	buf := binary.AppendUvarint(nil, uint64(len(list)))
	for _, item := range list {
		buf = appendChunk(buf, item)
	}
	return buf, nil
}

func (bytesListSerializer) Deserialize(data []byte) (any, error) {
	r := &chunkReader{data: data}
	n, err := r.count()
	if err != nil {
		return nil, err
	}
	list := make([][]byte, n)
	for i := range list {
		if list[i], err = r.chunk(); err != nil {
			return nil, err
		}
	}
	return list, r.done()
}

type stringSerializer struct{}

func (stringSerializer) Type() reflect.Type { return reflect.TypeFor[string]() }

func (stringSerializer) Serialize(v any) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, mismatch(v, TypeString)
	}
	return appendChunk(nil, []byte(s)), nil
}

func (stringSerializer) Deserialize(data []byte) (any, error) {
	r := &chunkReader{data: data}
	b, err := r.chunk()
	if err != nil {
		return nil, err
	}
	return string(b), r.done()
}

type stringsSerializer struct{}

func (stringsSerializer) Type() reflect.Type { return reflect.TypeFor[[]string]() }

func (stringsSerializer) Serialize(v any) ([]byte, error) {
	list, ok := v.([]string)
	if !ok {
		return nil, mismatch(v, TypeStrings)
	}
	buf := binary.AppendUvarint(nil, uint64(len(list)))
	for _, item := range list {
		buf = appendChunk(buf, []byte(item))
	}
	return buf, nil
}

func (stringsSerializer) Deserialize(data []byte) (any, error) {
	r := &chunkReader{data: data}
	n, err := r.count()
	if err != nil {
		return nil, err
	}
	list := make([]string, n)
	for i := range list {
		b, err := r.chunk()
		if err != nil {
			return nil, err
		}
		list[i] = string(b)
	}
	return list, r.done()
}

// fixedSerializer encodes signed integers big-endian in size bytes.
type fixedSerializer[T int8 | int16 | int32 | int64] struct {
	size int
}

func (s fixedSerializer[T]) Type() reflect.Type { return reflect.TypeFor[T]() }

func (s fixedSerializer[T]) Serialize(v any) ([]byte, error) {
	rv := reflect.ValueOf(v)
	if !rv.CanInt() {
		return nil, mismatch(v, s.Type().String())
	}
	n := rv.Int()
	if rv.Type().Size() > uintptr(s.size) && int64(T(n)) != n {
		return nil, fmt.Errorf("%w: %d overflows %d bytes", ErrTypeMismatch, n, s.size)
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(n))
	return buf[8-s.size:], nil
}

func (s fixedSerializer[T]) Deserialize(data []byte) (any, error) {
	if len(data) != s.size {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", errLength, len(data), s.size)
	}
	var u uint64
	for _, b := range data {
		u = u<<8 | uint64(b)
	}
	// Sign-extend from size bytes.
	shift := 64 - 8*uint(s.size)
	return T(int64(u<<shift) >> shift), nil
}

type boolSerializer struct{}

func (boolSerializer) Type() reflect.Type { return reflect.TypeFor[bool]() }

func (boolSerializer) Serialize(v any) ([]byte, error) {
	b, ok := v.(bool)
	if !ok {
		return nil, mismatch(v, TypeBoolean)
	}
	if b {
		return []byte{1}, nil
	}
	return []byte{0}, nil
}

func (boolSerializer) Deserialize(data []byte) (any, error) {
	if len(data) != 1 {
		return nil, fmt.Errorf("%w: got %d bytes, want 1", errLength, len(data))
	}
	return data[0] != 0, nil
}

type float64Serializer struct{}

func (float64Serializer) Type() reflect.Type { return reflect.TypeFor[float64]() }

func (float64Serializer) Serialize(v any) ([]byte, error) {
	f, ok := v.(float64)
	if !ok {
		return nil, mismatch(v, TypeDouble)
	}
	return binary.BigEndian.AppendUint64(nil, math.Float64bits(f)), nil
}

func (float64Serializer) Deserialize(data []byte) (any, error) {
	if len(data) != 8 {
		return nil, fmt.Errorf("%w: got %d bytes, want 8", errLength, len(data))
	}
	return math.Float64frombits(binary.BigEndian.Uint64(data)), nil
}

type float32Serializer struct{}

func (float32Serializer) Type() reflect.Type { return reflect.TypeFor[float32]() }

func (float32Serializer) Serialize(v any) ([]byte, error) {
	f, ok := v.(float32)
	if !ok {
		return nil, mismatch(v, TypeFloat)
	}
	return binary.BigEndian.AppendUint32(nil, math.Float32bits(f)), nil
}

func (float32Serializer) Deserialize(data []byte) (any, error) {
	if len(data) != 4 {
		return nil, fmt.Errorf("%w: got %d bytes, want 4", errLength, len(data))
	}
	return math.Float32frombits(binary.BigEndian.Uint32(data)), nil
}

// durationSerializer encodes nanoseconds as a big-endian int64.
type durationSerializer struct{}

func (durationSerializer) Type() reflect.Type { return reflect.TypeFor[time.Duration]() }

func (durationSerializer) Serialize(v any) ([]byte, error) {
	d, ok := v.(time.Duration)
	if !ok {
		return nil, mismatch(v, TypeDuration)
	}
	return binary.BigEndian.AppendUint64(nil, uint64(d)), nil
}

func (durationSerializer) Deserialize(data []byte) (any, error) {
	if len(data) != 8 {
		return nil, fmt.Errorf("%w: got %d bytes, want 8", errLength, len(data))
	}
	return time.Duration(binary.BigEndian.Uint64(data)), nil
}

// mapSerializer encodes entries sorted by key so equal maps encode identically.
type mapSerializer struct{}

func (mapSerializer) Type() reflect.Type { return reflect.TypeFor[map[string][]byte]() }

func (mapSerializer) Serialize(v any) ([]byte, error) {
	m, ok := v.(map[string][]byte)
	if !ok {
		return nil, mismatch(v, TypeMap)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := binary.AppendUvarint(nil, uint64(len(keys)))
	for _, k := range keys {
		buf = appendChunk(buf, []byte(k))
		buf = appendChunk(buf, m[k])
	}
	return buf, nil
}

func (mapSerializer) Deserialize(data []byte) (any, error) {
	r := &chunkReader{data: data}
	n, err := r.count()
	if err != nil {
		return nil, err
	}
	m := make(map[string][]byte, n)
	for i := 0; i < n; i++ {
		k, err := r.chunk()
		if err != nil {
			return nil, err
		}
		v, err := r.chunk()
		if err != nil {
			return nil, err
		}
		m[string(k)] = v
	}
	return m, r.done()
}

func mismatch(v any, want string) error {
	return fmt.Errorf("%w: got %T, want %s", ErrTypeMismatch, v, want)
}

// appendChunk appends a uvarint length followed by b.
func appendChunk(buf, b []byte) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(b)))
	return append(buf, b...)
}

// chunkReader consumes uvarint-length-prefixed chunks.
type chunkReader struct {
	data []byte
	off  int
}

func (r *chunkReader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.data[r.off:])
	if n <= 0 {
		return 0, fmt.Errorf("%w: bad length prefix at offset %d", errLength, r.off)
	}
	r.off += n
	return v, nil
}

// count reads an element count bounded by the remaining bytes.
func (r *chunkReader) count() (int, error) {
	v, err := r.uvarint()
	if err != nil {
		return 0, err
	}
	if v > uint64(len(r.data)-r.off) {
		return 0, fmt.Errorf("%w: count %d exceeds %d remaining bytes", errLength, v, r.remaining())
	}
	return int(v), nil
}

func (r *chunkReader) chunk() ([]byte, error) {
	v, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	if v > uint64(len(r.data)-r.off) {
		return nil, fmt.Errorf("%w: chunk of %d exceeds %d remaining bytes", errLength, v, r.remaining())
	}
	out := make([]byte, v)
	copy(out, r.data[r.off:r.off+int(v)])
	r.off += int(v)
	return out, nil
}

func (r *chunkReader) readString() (string, error) {
	b, err := r.chunk()
	return string(b), err
}

func (r *chunkReader) readByte() (byte, error) {
	if r.off >= len(r.data) {
		return 0, fmt.Errorf("%w: truncated at offset %d", errLength, r.off)
	}
	b := r.data[r.off]
	r.off++
	return b, nil
}

func (r *chunkReader) remaining() int {
	return len(r.data) - r.off
}

func (r *chunkReader) done() error {
	if r.off != len(r.data) {
		return fmt.Errorf("%w: %d trailing bytes", errLength, r.remaining())
	}
	return nil
}
