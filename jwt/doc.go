// Package jwt signs and verifies bearer credentials carrying a user id and
// role. HS256 and Ed25519 are supported; verification can rotate across a
// kid-indexed key set.
package jwt
