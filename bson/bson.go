// Package bson provides a MongoDB Extended JSON codec for the self-describing
// event format. Events encoded with it can be inserted into a collection as
// is, with parameters stored as BSON binary.
//
// Raw BSON is not offered: a document starts with its little-endian length,
// whose first byte may collide with the tagged wire formats.
package bson

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/zoobzio/replica"
)

// bsonCodec implements replica.Codec for canonical Extended JSON.
type bsonCodec struct{}

// New returns a canonical Extended JSON codec.
func New() replica.Codec {
	return &bsonCodec{}
}

// ContentType returns the MIME type for Extended JSON.
func (c *bsonCodec) ContentType() string {
	return "application/x-mongodb-extjson"
}

// Marshal encodes v as canonical Extended JSON.
func (c *bsonCodec) Marshal(v any) ([]byte, error) {
	return bson.MarshalExtJSON(v, true, false)
}

// Unmarshal decodes canonical Extended JSON data into v.
func (c *bsonCodec) Unmarshal(data []byte, v any) error {
	return bson.UnmarshalExtJSON(data, true, v)
}
