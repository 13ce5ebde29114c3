// Package middleware adapts bearer verification to net/http.
//
// [Guard] reads the Authorization header, calls Engine.ParseBearer and stores
// the verified identity in the request context. [RequireRole] narrows a
// guarded route to a set of roles. [ClientIP] feeds the remote address to
// the engine's per-IP limiters.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly.
//   - Access Redis or the user store.
package middleware
