// Package internal contains helper utilities that are intentionally private to
// goIdentity: secure random generation and the opaque token encoding.
//
// # Token encoding
//
// Every opaque token (confirmation and refresh) is the standard base64
// encoding of a SHA-512 digest over a timestamp, the owning user id and a
// random string. A string is a structurally valid token only when it decodes
// to exactly 64 bytes.
//
// # Sub-packages
//
//   - events: async account-change event dispatch (Dispatcher + Sink implementations)
//   - limiters: fixed-window request limiters for confirmation endpoints
//
// # What this package must NOT do
//
//   - Export types that appear in the public goIdentity API.
//   - Perform I/O other than reading crypto/rand.
package internal
