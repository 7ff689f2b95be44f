package replica

import (
	"bytes"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"
)

func TestBuiltinSerializers_RoundTrip(t *testing.T) {
	r := NewSerializerRegistry()

	tests := []struct {
		name  string
		value any
	}{
		{TypeBytes, []byte("Value-1")},
		{TypeBytes, []byte{}},
		{TypeBytesList, [][]byte{[]byte("a"), {}, bytes.Repeat([]byte("x"), 300)}},
		{TypeString, "héllo"},
		{TypeStrings, []string{"a", "", "c"}},
		{TypeLong, int64(math.MinInt64)},
		{TypeInt, int32(-42)},
		{TypeShort, int16(math.MaxInt16)},
		{TypeByte, int8(-1)},
		{TypeBoolean, true},
		{TypeDouble, 3.25},
		{TypeFloat, float32(-0.5)},
		{TypeDuration, 90 * time.Second},
		{TypeMap, map[string][]byte{"b": []byte("2"), "a": []byte("1")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := r.SerializeAs(tt.value, tt.name)
			if err != nil {
				t.Fatalf("SerializeAs() error: %v", err)
			}
			got, err := r.Deserialize(data, tt.name)
			if err != nil {
				t.Fatalf("Deserialize() error: %v", err)
			}
			// Empty encodings read back as nil by contract.
			if len(data) == 0 {
				if got != nil {
					t.Errorf("Deserialize(empty) = %v, want nil", got)
				}
				return
			}
			if !reflect.DeepEqual(got, tt.value) {
				t.Errorf("round-trip = %#v, want %#v", got, tt.value)
			}
		})
	}
}

func TestFixedSerializer_BigEndian(t *testing.T) {
	r := NewSerializerRegistry()

	data, err := r.SerializeAs(int64(5), TypeLong)
	if err != nil {
		t.Fatalf("SerializeAs() error: %v", err)
	}
	if !bytes.Equal(data, []byte{0, 0, 0, 0, 0, 0, 0, 5}) {
		t.Errorf("long 5 = %v", data)
	}

	data, err = r.SerializeAs(int32(-2), TypeInt)
	if err != nil {
		t.Fatalf("SerializeAs() error: %v", err)
	}
	if !bytes.Equal(data, []byte{0xff, 0xff, 0xff, 0xfe}) {
		t.Errorf("int -2 = %v", data)
	}
}

func TestFixedSerializer_Widening(t *testing.T) {
	r := NewSerializerRegistry()

	// A plain int is stored as long.
	data, err := r.Serialize(7)
	if err != nil {
		t.Fatalf("Serialize(int) error: %v", err)
	}
	v, err := r.Deserialize(data, TypeLong)
	if err != nil || v != int64(7) {
		t.Errorf("Deserialize() = %v, %v; want int64(7)", v, err)
	}

	// Narrowing that loses bits is rejected.
	if _, err := r.SerializeAs(int64(1<<40), TypeInt); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("SerializeAs(1<<40, int) error = %v, want %v", err, ErrTypeMismatch)
	}
	if _, err := r.SerializeAs(int64(100), TypeByte); err != nil {
		t.Errorf("SerializeAs(100, byte) error: %v", err)
	}
}

func TestMapSerializer_Deterministic(t *testing.T) {
	s := mapSerializer{}
	a, err := s.Serialize(map[string][]byte{"x": []byte("1"), "a": []byte("2"), "m": nil})
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	for i := 0; i < 10; i++ {
		b, _ := s.Serialize(map[string][]byte{"m": nil, "a": []byte("2"), "x": []byte("1")})
		if !bytes.Equal(a, b) {
			t.Fatal("equal maps encoded differently")
		}
	}
}

func TestSerializers_TypeMismatch(t *testing.T) {
	tests := []struct {
		name string
		s    Serializer
		v    any
	}{
		{"bytes", bytesSerializer{}, "text"},
		{"bytes list", bytesListSerializer{}, []byte("k")},
		{"string", stringSerializer{}, []byte("k")},
		{"strings", stringsSerializer{}, "k"},
		{"long", fixedSerializer[int64]{size: 8}, "5"},
		{"boolean", boolSerializer{}, 1},
		{"double", float64Serializer{}, float32(1)},
		{"float", float32Serializer{}, 1.0},
		{"duration", durationSerializer{}, int64(1)},
		{"map", mapSerializer{}, map[string]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.s.Serialize(tt.v); !errors.Is(err, ErrTypeMismatch) {
				t.Errorf("Serialize(%T) error = %v, want %v", tt.v, err, ErrTypeMismatch)
			}
		})
	}
}

func TestSerializers_Malformed(t *testing.T) {
	tests := []struct {
		name string
		s    Serializer
		data []byte
	}{
		{"long short", fixedSerializer[int64]{size: 8}, []byte{1, 2}},
		{"boolean long", boolSerializer{}, []byte{1, 1}},
		{"double short", float64Serializer{}, []byte{1}},
		{"float short", float32Serializer{}, []byte{1}},
		{"duration short", durationSerializer{}, []byte{1}},
		{"string truncated", stringSerializer{}, []byte{5, 'a'}},
		{"string trailing", stringSerializer{}, []byte{1, 'a', 'b'}},
		{"list count too large", bytesListSerializer{}, []byte{0xff, 0xff, 0x03}},
		{"list bad prefix", bytesListSerializer{}, []byte{0x80}},
		{"strings truncated", stringsSerializer{}, []byte{2, 1, 'a'}},
		{"map truncated", mapSerializer{}, []byte{1, 1, 'k'}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.s.Deserialize(tt.data); err == nil {
				t.Errorf("Deserialize(%v) should return error", tt.data)
			}
		})
	}
}

func TestBytesSerializer_Copies(t *testing.T) {
	src := []byte("value")
	data, _ := bytesSerializer{}.Serialize(src)
	src[0] = 'X'
	if string(data) != "value" {
		t.Errorf("Serialize() aliases its input: %q", data)
	}
}

func TestBytesSerializer_EmptyIsNull(t *testing.T) {
	r := NewSerializerRegistry()

	data, err := r.Serialize([]byte{})
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("Serialize([]byte{}) = %v, want the zero-length null marker", data)
	}
	got, err := r.Deserialize(data, TypeBytes)
	if err != nil {
		t.Fatalf("Deserialize() error: %v", err)
	}
	if got != nil {
		t.Errorf("Deserialize() = %#v, want nil", got)
	}
	b, _ := got.([]byte)
	if !bytes.Equal(b, []byte{}) {
		t.Errorf("round trip not bytes.Equal: %#v", got)
	}
}

func TestChunkReader_Remaining(t *testing.T) {
	r := &chunkReader{data: []byte{2, 'a', 'b', 'c'}}
	if _, err := r.chunk(); err != nil {
		t.Fatalf("chunk() error: %v", err)
	}
	if r.remaining() != 1 {
		t.Errorf("remaining() = %d, want 1", r.remaining())
	}
	if err := r.done(); !errors.Is(err, errLength) {
		t.Errorf("done() error = %v, want errLength", err)
	}
}
