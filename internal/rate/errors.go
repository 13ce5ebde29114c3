package rate

import "errors"

var (
	// ErrRateLimited is returned once a counter passes its budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps counter backend failures.
	ErrRedisUnavailable = errors.New("rate limiter redis unavailable")
)
