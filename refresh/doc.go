// Package refresh owns durable refresh tokens: creation, session-cap
// enforcement, in-place rotation and expiry.
//
// # Token format
//
// Values are opaque 88-character base64 strings (a 512-bit digest). Stores
// keep only the SHA-256 hex of a value; the plaintext exists in memory between
// creation or rotation and the response that carries it.
//
// # Architecture boundaries
//
// The durable side is the [Store] contract, implemented by store/postgres and
// store/memory. Count, evict and insert are three sequential calls with no
// lock, so concurrent logins for one user may exceed the cap by the degree
// of concurrency.
//
// # What this package must NOT do
//
//   - Issue bearer credentials.
//   - Touch the confirmation cache.
package refresh
