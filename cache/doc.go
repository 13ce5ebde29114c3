// Package cache provides the volatile key/TTL store used for confirmation
// tokens, pending account updates and uniqueness reservations.
//
// # Design
//
// [Cache] is deliberately narrow (get/put/delete/exists/ttl over opaque
// bytes). Typed access goes through [GetValue] and [PutValue] with a
// [Codec]. There is no multi-key transaction: callers that keep related
// entries in sync must tolerate a half-applied write and re-check on read.
//
// # What this package must NOT do
//
//   - Know about token types, users, or any goIdentity domain type.
//   - Retry failed calls. Retry policy belongs to the caller.
package cache
