// Package password implements Argon2id password hashing with an external salt
// and an entropy-based password policy.
//
// # Output format
//
// Hashes are encoded as a PHC string without the salt segment:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<hash>
//
// The salt is returned separately (base64) and stored in its own column, so a
// pending password change can be staged as a (hash, salt) pair and applied
// later without re-deriving anything.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other goIdentity package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
