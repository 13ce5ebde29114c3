// Package goIdentity is an identity backend: credential storage, sessions,
// and the confirmation-token lifecycle that gates every account change.
//
// Registration, email, username and password changes are staged in the cache
// and applied only when the user follows a confirmation link. Tokens are
// single use, throttled per user, and indexed both by value and by user so a
// resend supersedes the previous link. Refresh sessions rotate on use and
// are capped per user.
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build].
//
// # Architecture boundaries
//
// goIdentity is the public surface: [Engine], [Builder], [Config] and the
// value types in types.go. Token bookkeeping lives in confirmation and
// refresh, persistence behind user.Store, and rate limiting and event
// dispatch under internal/.
//
// # What this package must NOT do
//
//   - Expose Redis clients or cache key layouts in its public API.
//   - Return wrapped backend errors; callers get sentinels and causes are logged.
//   - Import any sub-package that re-imports goIdentity.
package goIdentity
