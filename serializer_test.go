package replica

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
)

// OrderLine is a struct parameter encoded with msgpack.
type OrderLine struct {
	SKU      string `msgpack:"sku"`
	Quantity int    `msgpack:"quantity"`
}

// Coupon encodes itself through the parameter marshaling overrides.
type Coupon struct {
	Code string
}

func (c Coupon) MarshalParameter() ([]byte, error) {
	return []byte(strings.ToUpper(c.Code)), nil
}

func (c *Coupon) UnmarshalParameter(data []byte) error {
	if len(data) == 0 {
		return errors.New("empty coupon")
	}
	c.Code = strings.ToLower(string(data))
	return nil
}

func TestNewSerializerRegistry_Builtins(t *testing.T) {
	r := NewSerializerRegistry()

	for _, name := range []string{
		TypeBytes, TypeBytesList, TypeString, TypeStrings, TypeLong, TypeInt,
		TypeShort, TypeByte, TypeBoolean, TypeDouble, TypeFloat, TypeDuration, TypeMap,
	} {
		if !r.Has(name) {
			t.Errorf("Has(%q) = false, want true", name)
		}
	}
	if len(r.Names()) != 13 {
		t.Errorf("Names() = %d entries, want 13", len(r.Names()))
	}
}

func TestSerializerRegistry_TypeName(t *testing.T) {
	r := NewSerializerRegistry()

	tests := []struct {
		typ  reflect.Type
		want string
	}{
		{reflect.TypeFor[[]byte](), TypeBytes},
		{reflect.TypeFor[[][]byte](), TypeBytesList},
		{reflect.TypeFor[string](), TypeString},
		{reflect.TypeFor[int64](), TypeLong},
		{reflect.TypeFor[int](), TypeLong},
		{reflect.TypeFor[int32](), TypeInt},
		{reflect.TypeFor[time.Duration](), TypeDuration},
		{reflect.TypeFor[map[string][]byte](), TypeMap},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			got, ok := r.TypeName(tt.typ)
			if !ok || got != tt.want {
				t.Errorf("TypeName(%s) = %q, %v; want %q", tt.typ, got, ok, tt.want)
			}
		})
	}
}

func TestSerializerRegistry_TypeOf(t *testing.T) {
	r := NewSerializerRegistry()

	if got, ok := r.TypeOf(TypeLong); !ok || got != reflect.TypeFor[int64]() {
		t.Errorf("TypeOf(long) = %v, %v", got, ok)
	}
	if _, ok := r.TypeOf("com.example.Unknown"); ok {
		t.Error("TypeOf(unknown) should report false")
	}
}

func TestSerializerRegistry_NameOf(t *testing.T) {
	r := NewSerializerRegistry()

	if got := r.NameOf(nil); got != TypeNull {
		t.Errorf("NameOf(nil) = %q, want %q", got, TypeNull)
	}
	if got := r.NameOf([]byte("k")); got != TypeBytes {
		t.Errorf("NameOf([]byte) = %q, want %q", got, TypeBytes)
	}
	if got := r.NameOf(OrderLine{}); got != "replica.OrderLine" {
		t.Errorf("NameOf(OrderLine) = %q, want Go type string", got)
	}
}

func TestSerializerRegistry_NilRoundTrip(t *testing.T) {
	r := NewSerializerRegistry()

	data, err := r.Serialize(nil)
	if err != nil {
		t.Fatalf("Serialize(nil) error: %v", err)
	}
	if data == nil || len(data) != 0 {
		t.Errorf("Serialize(nil) = %v, want empty non-nil slice", data)
	}

	v, err := r.Deserialize(data, TypeBytes)
	if err != nil || v != nil {
		t.Errorf("Deserialize(empty) = %v, %v; want nil", v, err)
	}

	var m map[string][]byte
	data, err = r.SerializeAs(m, TypeMap)
	if err != nil || len(data) != 0 {
		t.Errorf("SerializeAs(nil map) = %v, %v; want empty", data, err)
	}
}

func TestSerializerRegistry_Fallback(t *testing.T) {
	r := NewSerializerRegistry()

	s := r.Serializer("com.example.Unknown")
	if s == nil {
		t.Fatal("Serializer(unknown) returned nil")
	}
	if r.Has("com.example.Unknown") {
		t.Error("memoized fallback should not count as registered")
	}
	if r.Serializer("com.example.Unknown") != s {
		t.Error("fallback should be memoized")
	}

	data, err := r.SerializeAs(map[string]int{"a": 1}, "com.example.Unknown")
	if err != nil {
		t.Fatalf("SerializeAs() error: %v", err)
	}
	v, err := r.Deserialize(data, "com.example.Unknown")
	if err != nil {
		t.Fatalf("Deserialize() error: %v", err)
	}
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		t.Errorf("Deserialize() = %#v, want generic map", v)
	}
}

func TestSerializerRegistry_Register(t *testing.T) {
	r := NewSerializerRegistry()
	r.Register("com.example.Text", stringSerializer{})

	if !r.Has("com.example.Text") {
		t.Error("Has() = false after Register")
	}
	// The Go type keeps its first name.
	if name, _ := r.TypeName(reflect.TypeFor[string]()); name != TypeString {
		t.Errorf("TypeName(string) = %q, want %q", name, TypeString)
	}
}

func TestRegisterStruct(t *testing.T) {
	r := NewSerializerRegistry()
	name := RegisterStruct[OrderLine](r)

	if !strings.HasSuffix(name, "OrderLine") {
		t.Errorf("RegisterStruct() = %q, want suffix OrderLine", name)
	}
	if got := r.NameOf(OrderLine{}); got != name {
		t.Errorf("NameOf(OrderLine) = %q, want %q", got, name)
	}

	original := OrderLine{SKU: "sku-1", Quantity: 3}
	data, err := r.Serialize(original)
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	v, err := r.Deserialize(data, name)
	if err != nil {
		t.Fatalf("Deserialize() error: %v", err)
	}
	if v != original {
		t.Errorf("Deserialize() = %#v, want %#v", v, original)
	}

	if _, err := r.SerializeAs("not an order", name); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("SerializeAs(string) error = %v, want %v", err, ErrTypeMismatch)
	}
}

func TestRegisterStruct_ParameterOverrides(t *testing.T) {
	r := NewSerializerRegistry()
	name := RegisterStruct[Coupon](r)

	data, err := r.Serialize(Coupon{Code: "spring"})
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	if string(data) != "SPRING" {
		t.Errorf("Serialize() = %q, want SPRING", data)
	}

	v, err := r.Deserialize(data, name)
	if err != nil {
		t.Fatalf("Deserialize() error: %v", err)
	}
	if v.(Coupon).Code != "spring" {
		t.Errorf("Deserialize() = %#v", v)
	}
}

func TestSerializerRegistry_DeserializeError(t *testing.T) {
	r := NewSerializerRegistry()

	_, err := r.Deserialize([]byte{1, 2, 3}, TypeLong)
	if !errors.Is(err, ErrDeserialize) {
		t.Errorf("Deserialize(short long) error = %v, want %v", err, ErrDeserialize)
	}
}

func TestSerializerRegistry_Concurrent(t *testing.T) {
	r := NewSerializerRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			RegisterStruct[OrderLine](r)
			r.Serializer("com.example.Unknown")
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if _, err := r.Serialize([]byte("k")); err != nil {
					t.Errorf("Serialize() error: %v", err)
				}
			}
		}()
	}
	wg.Wait()
}
