package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Codec converts a typed value to and from its cached payload.
type Codec[T any] interface {
	Encode(T) ([]byte, error)
	Decode([]byte) (T, error)
}

// JSON is a Codec backed by encoding/json.
type JSON[T any] struct{}

// Encode implements Codec.
func (JSON[T]) Encode(v T) ([]byte, error) {
	return json.Marshal(v)
}

// Decode implements Codec.
func (JSON[T]) Decode(data []byte) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}

// ErrCorrupt is returned when a payload exists but cannot be decoded. Readers
// should treat it the same as a miss.
var ErrCorrupt = fmt.Errorf("%w: corrupt payload", ErrMiss)

// GetValue loads and decodes the value under key.
func GetValue[T any](ctx context.Context, c Cache, codec Codec[T], key string) (T, error) {
	var zero T
	data, err := c.Get(ctx, key)
	if err != nil {
		return zero, err
	}
	v, err := codec.Decode(data)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return v, nil
}

// PutValue encodes v and stores it under key for ttl.
func PutValue[T any](ctx context.Context, c Cache, codec Codec[T], key string, v T, ttl time.Duration) error {
	data, err := codec.Encode(v)
	if err != nil {
		return err
	}
	return c.Put(ctx, key, data, ttl)
}
