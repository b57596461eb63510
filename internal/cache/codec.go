package cache

import (
	"encoding/json"

	"github.com/guttosm/entity-gateway/internal/errs"
	"go.mongodb.org/mongo-driver/bson"
)

// Codec converts values to and from their cached byte form.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(data []byte) (T, error)
}

// JSONCodec encodes values as JSON.
type JSONCodec[T any] struct{}

// Encode implements Codec.
func (JSONCodec[T]) Encode(v T) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errs.Serialization("json encode", err)
	}
	return data, nil
}

// Decode implements Codec.
func (JSONCodec[T]) Decode(data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		var zero T
		return zero, errs.Serialization("json decode", err)
	}
	return v, nil
}

// BSONCodec encodes values as BSON documents.
// Non-document values are wrapped in a single-field envelope.
// time.Time values are truncated to millisecond precision.
type BSONCodec[T any] struct{}

type bsonEnvelope[T any] struct {
	V T `bson:"v"`
}

// Encode implements Codec.
func (BSONCodec[T]) Encode(v T) ([]byte, error) {
	data, err := bson.Marshal(bsonEnvelope[T]{V: v})
	if err != nil {
		return nil, errs.Serialization("bson encode", err)
	}
	return data, nil
}

// Decode implements Codec.
func (BSONCodec[T]) Decode(data []byte) (T, error) {
	var env bsonEnvelope[T]
	if err := bson.Unmarshal(data, &env); err != nil {
		var zero T
		return zero, errs.Serialization("bson decode", err)
	}
	return env.V, nil
}

var (
	_ Codec[struct{}] = JSONCodec[struct{}]{}
	_ Codec[struct{}] = BSONCodec[struct{}]{}
)
