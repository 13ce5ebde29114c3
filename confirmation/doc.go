// Package confirmation issues and resolves short-lived, cache-resident
// confirmation tokens that gate account mutations.
//
// # Storage
//
// Each token lives under two cache keys sharing one TTL:
//
//	{prefix}:{TokenType}:{Value}   value index, holds the binary token record
//	{prefix}:{TokenType}:{UserID}  user index, holds the token value
//
// The two entries are written and deleted with independent calls. Reads
// require the record type to match the requested type and the user index to
// point back at the same value; any gap resolves to [ErrTokenNotFound].
//
// # Throttling
//
// [Manager.NextAttemptAt] decides whether a resend is allowed from the
// token's AttemptCount and Modified. The decision is advisory and is not
// re-checked atomically by [Manager.UpdateToken].
//
// # What this package must NOT do
//
//   - Deliver messages or build links.
//   - Touch durable user records or pending updates.
package confirmation
