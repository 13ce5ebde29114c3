package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minPassBytes = 10
	phcPrefix    = "$argon2id$"
)

var (
	// ErrPasswordTooShort is returned by Hash for passwords under 10 bytes.
	ErrPasswordTooShort = errors.New("password must be at least 10 bytes")
	// ErrInvalidSalt is returned when a stored salt cannot be decoded.
	ErrInvalidSalt = errors.New("invalid salt encoding")
	// ErrMalformedHash is returned for stored hashes that are not argon2id
	// PHC strings this package can verify.
	ErrMalformedHash = errors.New("malformed password hash")
)

// Config holds Argon2id cost parameters.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// floor is the weakest configuration NewArgon2 accepts. Stored hashes below
// it are refused as well.
var floor = Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16}

func (c Config) validate() error {
	switch {
	case c.Memory < floor.Memory:
		return fmt.Errorf("password memory must be >= %d KB", floor.Memory)
	case c.Time < floor.Time:
		return fmt.Errorf("password time must be >= %d", floor.Time)
	case c.Parallelism < floor.Parallelism:
		return fmt.Errorf("password parallelism must be >= %d", floor.Parallelism)
	case c.SaltLength < floor.SaltLength:
		return fmt.Errorf("password salt length must be >= %d", floor.SaltLength)
	case c.KeyLength < floor.KeyLength:
		return fmt.Errorf("password key length must be >= %d", floor.KeyLength)
	}
	return nil
}

// Argon2 derives password hashes with a salt that is stored next to the hash
// rather than inside it, so user records carry PasswordHash and Salt as two
// columns.
type Argon2 struct {
	config Config
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Argon2{config: cfg}, nil
}

// Hash derives a hash for password under a freshly generated salt. Both
// results are printable strings.
func (a *Argon2) Hash(password string) (hash string, salt string, err error) {
	// Raw bytes, no Unicode normalization.
	if len(password) < minPassBytes {
		return "", "", ErrPasswordTooShort
	}

	rawSalt := make([]byte, a.config.SaltLength)
	if _, err := rand.Read(rawSalt); err != nil {
		return "", "", err
	}
	return a.encode(password, rawSalt), base64.StdEncoding.EncodeToString(rawSalt), nil
}

// HashWithSalt derives a hash for password under an existing encoded salt.
func (a *Argon2) HashWithSalt(password, salt string) (string, error) {
	rawSalt, err := decodeSalt(salt)
	if err != nil {
		return "", err
	}
	return a.encode(password, rawSalt), nil
}

// Verify reports whether password matches the stored hash and salt. The cost
// parameters are read from the stored hash, not from the current config.
func (a *Argon2) Verify(password, encodedHash, salt string) (bool, error) {
	stored, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}
	rawSalt, err := decodeSalt(salt)
	if err != nil {
		return false, err
	}

	computed := stored.cost.derive(password, rawSalt)
	return subtle.ConstantTimeCompare(computed, stored.key) == 1, nil
}

// NeedsUpgrade reports whether encodedHash was produced with weaker
// parameters than the current config.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	stored, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}
	c := stored.cost
	return c.Memory < a.config.Memory ||
		c.Time < a.config.Time ||
		c.Parallelism < a.config.Parallelism ||
		c.KeyLength != a.config.KeyLength, nil
}

func (a *Argon2) encode(password string, salt []byte) string {
	key := a.config.derive(password, salt)
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s",
		phcPrefix, argon2.Version,
		a.config.Memory, a.config.Time, a.config.Parallelism,
		base64.StdEncoding.EncodeToString(key),
	)
}

func (c Config) derive(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, c.Time, c.Memory, c.Parallelism, c.KeyLength)
}

func decodeSalt(salt string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(salt)
	if err != nil || len(raw) < int(floor.SaltLength) {
		return nil, ErrInvalidSalt
	}
	return raw, nil
}

type phcHash struct {
	cost Config
	key  []byte
}

// decodePHC reads "$argon2id$v=19$m=..,t=..,p=..$<key>". Parameters must be
// in canonical order and at or above the floor.
func decodePHC(encoded string) (phcHash, error) {
	var out phcHash
	rest, ok := strings.CutPrefix(encoded, phcPrefix)
	if !ok {
		return out, fmt.Errorf("%w: unsupported algorithm", ErrMalformedHash)
	}
	fields := strings.Split(rest, "$")
	if len(fields) != 3 {
		return out, fmt.Errorf("%w: expected 5 sections", ErrMalformedHash)
	}
	if fields[0] != fmt.Sprintf("v=%d", argon2.Version) {
		return out, fmt.Errorf("%w: unsupported version %q", ErrMalformedHash, fields[0])
	}

	c := &out.cost
	if _, err := fmt.Sscanf(fields[1], "m=%d,t=%d,p=%d", &c.Memory, &c.Time, &c.Parallelism); err != nil {
		return out, fmt.Errorf("%w: parameters: %v", ErrMalformedHash, err)
	}
	if fields[1] != fmt.Sprintf("m=%d,t=%d,p=%d", c.Memory, c.Time, c.Parallelism) {
		return out, fmt.Errorf("%w: non-canonical parameters", ErrMalformedHash)
	}
	if c.Memory < floor.Memory || c.Time < floor.Time || c.Parallelism < floor.Parallelism {
		return out, fmt.Errorf("%w: parameters below floor", ErrMalformedHash)
	}

	key, err := base64.StdEncoding.DecodeString(fields[2])
	if err != nil || len(key) == 0 {
		return out, fmt.Errorf("%w: key encoding", ErrMalformedHash)
	}
	out.key = key
	c.KeyLength = uint32(len(key))
	return out, nil
}
