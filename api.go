// Package replica intercepts mutating commands on a key-value store
// connection and re-emits them as portable, versioned events that other
// instances replay against their own copy of the store.
//
// Replication is asynchronous and best-effort. Events carry no ordering or
// delivery guarantee; that is the transport's job.
//
// # Pipeline
//
// A call on a wrapped connection flows through:
//
//   - CommandRegistry: is the method a registered command?
//   - Correlator: capture the call's arguments with their declared types
//   - Chain: run interceptor before hooks in priority order
//   - the real connection
//   - Chain: run after hooks in the same order; EventCapture builds a
//     CommandEvent and hands it to a Publisher
//
// On another instance a Receiver decodes the event, resolves the command
// (falling back to reflection when its registry lacks it), deserializes the
// parameters and replays the call.
//
// # Basic Usage
//
//	engine, _ := replica.New(replica.Default(),
//	    replica.WithPublisher(replica.PublisherFunc(func(ctx context.Context, e *replica.CommandEvent) error {
//	        data, err := codec.Encode(e)
//	        ...
//	    })),
//	)
//	_ = engine.Register()
//
//	conn := engine.Wrap(store.NewMemory())
//	_ = conn.Set(ctx, []byte("Key-1"), []byte("Value-1")) // emits set([B,[B)
//
//	// elsewhere
//	recv := engine.Receiver(localConn)
//	_ = recv.OnMessage(ctx, data)
//
// # Type Names
//
// Parameters are tagged with logical type names that follow JVM descriptors
// so peers in other runtimes can read them:
//
//   - [B: []byte
//   - [[B: [][]byte
//   - java.lang.String: string
//   - long, int, short, byte: int64, int32, int16, int8
//   - boolean, double, float: bool, float64, float32
//   - java.time.Duration: time.Duration
//   - java.util.Map: map[string][]byte
//
// Struct types registered with RegisterStruct are named "<package>.<Type>".
//
// # Wire Formats
//
// The first byte of an encoded event selects the format:
//
//   - 0x01: compact binary
//   - 0x02: compact binary, compressed with lz4 or zstd
//   - 0x03: sealed with AES-GCM or XChaCha20-Poly1305 around any other format
//   - anything else: the self-describing default Codec (CBOR unless configured)
//
// # Codec Providers
//
// Alternatives to the built-in CBOR default codec live in subpackages:
//
//   - json - JSON encoding (application/json)
//   - msgpack - MessagePack encoding (application/msgpack)
//   - bson - MongoDB Extended JSON (application/x-mongodb-extjson)
//
// # Signals
//
// Diagnostics are emitted as capitan signals; see signals.go for the list.
package replica

// Codec provides content-type aware marshaling for the default event format.
type Codec interface {
	// ContentType returns the MIME type for this codec (e.g., "application/cbor").
	ContentType() string

	// Marshal encodes v into bytes.
	Marshal(v any) ([]byte, error)

	// Unmarshal decodes data into v.
	Unmarshal(data []byte, v any) error
}

// EventRecord is the shape of a CommandEvent in the self-describing format.
// Codecs marshal it with the tags matching their encoding.
type EventRecord struct {
	Interface      string   `json:"interface" msgpack:"interface" cbor:"interface" bson:"interface"`
	Method         string   `json:"method" msgpack:"method" cbor:"method" bson:"method"`
	ParameterTypes []string `json:"parameterTypes" msgpack:"parameterTypes" cbor:"parameterTypes" bson:"parameterTypes"`
	Parameters     [][]byte `json:"parameters" msgpack:"parameters" cbor:"parameters" bson:"parameters"`
	Source         string   `json:"source,omitempty" msgpack:"source,omitempty" cbor:"source,omitempty" bson:"source,omitempty"`
	Application    string   `json:"application,omitempty" msgpack:"application,omitempty" cbor:"application,omitempty" bson:"application,omitempty"`
}
