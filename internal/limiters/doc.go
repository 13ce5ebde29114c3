// Package limiters provides the Redis fixed-window limiters for the
// confirmation flows.
//
// # Limiters
//
//   - [ConfirmationLimiter] per-subject and per-IP budget for token requests,
//     per-IP budget for redemptions.
//
// Limiters are nil-safe: calling any method on a nil receiver returns nil.
//
// # What this package must NOT do
//
//   - Import goIdentity or any sibling internal package.
//   - Decide consequences beyond counting.
package limiters
