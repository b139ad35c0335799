package store

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"

	"github.com/blockberries/stateberry/types"
)

// Codec translates between a typed value and its stored byte form.
type Codec[T any] interface {
	// Marshal encodes a value for storage.
	Marshal(value T) ([]byte, error)

	// Unmarshal decodes a stored byte slice back into a value.
	Unmarshal(data []byte) (T, error)
}

// JSONCodec encodes values as JSON.
type JSONCodec[T any] struct{}

// Marshal implements Codec.
func (JSONCodec[T]) Marshal(value T) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encoding json: %w", err)
	}
	return data, nil
}

// Unmarshal implements Codec.
func (JSONCodec[T]) Unmarshal(data []byte) (T, error) {
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return value, fmt.Errorf("decoding json: %w", err)
	}
	return value, nil
}

// ProtoCodec encodes protobuf messages. The factory produces a fresh
// message for Unmarshal to decode into.
type ProtoCodec[T proto.Message] struct {
	factory func() T
}

// NewProtoCodec creates a protobuf codec. The factory typically wraps a
// message constructor, e.g. func() *pb.Account { return &pb.Account{} }.
func NewProtoCodec[T proto.Message](factory func() T) ProtoCodec[T] {
	return ProtoCodec[T]{factory: factory}
}

// Marshal implements Codec.
func (c ProtoCodec[T]) Marshal(value T) ([]byte, error) {
	data, err := proto.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encoding proto: %w", err)
	}
	return data, nil
}

// Unmarshal implements Codec.
func (c ProtoCodec[T]) Unmarshal(data []byte) (T, error) {
	value := c.factory()
	if err := proto.Unmarshal(data, value); err != nil {
		return value, fmt.Errorf("decoding proto: %w", err)
	}
	return value, nil
}

// BinCodec passes raw bytes through unchanged.
type BinCodec struct{}

// Marshal implements Codec.
func (BinCodec) Marshal(value []byte) ([]byte, error) { return value, nil }

// Unmarshal implements Codec.
func (BinCodec) Unmarshal(data []byte) ([]byte, error) { return data, nil }

// nullSentinel marks presence for NullCodec entries. Stores reject empty
// values, so presence needs one concrete byte.
var nullSentinel = []byte{0x00}

// NullCodec stores no payload at all: the typed view degenerates to a set
// of keys, and only presence is meaningful.
type NullCodec struct{}

// Marshal implements Codec.
func (NullCodec) Marshal(struct{}) ([]byte, error) { return nullSentinel, nil }

// Unmarshal implements Codec.
func (NullCodec) Unmarshal([]byte) (struct{}, error) { return struct{}{}, nil }

// TypedStore is a typed view over a raw Store. It owns no state of its
// own: every operation delegates to the underlying store after codec
// translation, so multiple typed views over one store stay coherent.
type TypedStore[T any] struct {
	store Store
	codec Codec[T]
}

// NewTypedStore creates a typed view over store using codec.
func NewTypedStore[T any](s Store, codec Codec[T]) *TypedStore[T] {
	return &TypedStore[T]{store: s, codec: codec}
}

// Set encodes value and stores it under path in the pending state.
func (t *TypedStore[T]) Set(path types.Path, value T) error {
	data, err := t.codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("setting %q: %w", path, err)
	}
	if _, err := t.store.Set(path, data); err != nil {
		return err
	}
	return nil
}

// Get retrieves and decodes the value for path at the given height. The
// boolean reports presence; an absent key returns the zero value.
func (t *TypedStore[T]) Get(height types.Height, path types.Path) (T, bool, error) {
	var zero T
	data, err := t.store.Get(height, path)
	if err != nil {
		return zero, false, err
	}
	if data == nil {
		return zero, false, nil
	}
	value, err := t.codec.Unmarshal(data)
	if err != nil {
		return zero, false, fmt.Errorf("getting %q: %w", path, err)
	}
	return value, true, nil
}

// Delete removes path from the pending state.
func (t *TypedStore[T]) Delete(path types.Path) error {
	return t.store.Delete(path)
}

// GetKeys returns the pending-state keys matching prefix.
func (t *TypedStore[T]) GetKeys(prefix types.Path) ([]types.Path, error) {
	return t.store.GetKeys(prefix)
}

// Store returns the underlying raw store.
func (t *TypedStore[T]) Store() Store {
	return t.store
}
