package confirmation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goIdentity/cache"
)

// ErrIndexInconsistent is returned when only part of a two-key write or
// delete went through. The pair is then in an indeterminate state: nothing is
// rolled back, and readers resolve the half-written pair as "no token".
var ErrIndexInconsistent = errors.New("confirmation token index inconsistent")

// indexPair is the two cache entries of one token: the value index holding
// the encoded record and the user index holding the token value.
//
// The cache has no multi-key transaction. write and remove issue two
// independent calls and report one combined result; a false result means
// "state indeterminate, re-check on next read", never "rolled back".
type indexPair struct {
	cache    cache.Cache
	valueKey string
	userKey  string
}

func (m *Manager) pairFor(t Token) indexPair {
	return indexPair{
		cache:    m.cache,
		valueKey: m.valueKey(t.Type, t.Value),
		userKey:  m.userKey(t.Type, t.UserID),
	}
}

// write stores the value index first, then the user index. Both carry ttl.
func (p indexPair) write(ctx context.Context, t Token, ttl time.Duration) error {
	record, err := encodeToken(t)
	if err != nil {
		return err
	}

	if err := p.cache.Put(ctx, p.valueKey, record, ttl); err != nil {
		return fmt.Errorf("%w: value index: %v", ErrUnavailable, err)
	}
	if err := p.cache.Put(ctx, p.userKey, []byte(t.Value), ttl); err != nil {
		return errors.Join(ErrIndexInconsistent, fmt.Errorf("%w: user index: %v", ErrUnavailable, err))
	}
	return nil
}

// remove deletes both entries. It succeeds only when both deletions report
// that an entry was removed. Both deletions are attempted even if the first
// one fails.
func (p indexPair) remove(ctx context.Context) error {
	valueRemoved, valueErr := p.cache.Delete(ctx, p.valueKey)
	userRemoved, userErr := p.cache.Delete(ctx, p.userKey)

	switch {
	case valueErr != nil || userErr != nil:
		return errors.Join(ErrIndexInconsistent, fmt.Errorf("%w: %v", ErrUnavailable, errors.Join(valueErr, userErr)))
	case !valueRemoved || !userRemoved:
		return ErrIndexInconsistent
	default:
		return nil
	}
}
