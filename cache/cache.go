package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrMiss is returned by Get when the key does not exist or has expired.
	ErrMiss = errors.New("cache miss")
	// ErrUnavailable wraps every backend failure, including deadline expiry.
	ErrUnavailable = errors.New("cache unavailable")
)

// Cache is a volatile key/TTL store. Implementations must be safe for
// concurrent use and must honor ctx deadlines; a timed-out call is reported
// as ErrUnavailable like any other failure and is never retried internally.
type Cache interface {
	// Get returns the stored payload or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put stores value under key for ttl, replacing any previous value.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)
	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
	// UpdateTTL resets the TTL of an existing key and reports whether it existed.
	UpdateTTL(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Key joins a domain prefix, a sub-scope and an identifier as
// "{prefix}:{scope}:{id}".
func Key(prefix, scope, id string) string {
	var b strings.Builder
	b.Grow(len(prefix) + len(scope) + len(id) + 2)
	b.WriteString(prefix)
	b.WriteByte(':')
	b.WriteString(scope)
	b.WriteByte(':')
	b.WriteString(id)
	return b.String()
}
