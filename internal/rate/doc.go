// Package rate holds the fixed-window counters guarding credential entry
// points: password login and refresh-token exchange.
//
// # Window semantics
//
// INCR plus EXPIRE on the first hit of a window. Key prefixes:
//   - il:  login per identifier
//   - ili: login per client IP
//   - ir:  refresh per user
//
// # What this package must NOT do
//
//   - Implement confirmation-flow policies (those live in internal/limiters).
//   - Be imported outside the goIdentity module.
package rate
