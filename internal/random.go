package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// TokenDigestSize is the decoded byte length of every opaque token.
const TokenDigestSize = sha512.Size

const (
	tokenEntropyChars = 32
	alphabet          = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

var errInvalidLength = errors.New("invalid random length")

// RandomBytes returns n bytes from crypto/rand.
func RandomBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, errInvalidLength
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// RandomString returns n characters drawn uniformly from [A-Za-z0-9].
func RandomString(n int) (string, error) {
	if n <= 0 {
		return "", errInvalidLength
	}

	var b strings.Builder
	b.Grow(n)

	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[idx.Int64()])
	}

	return b.String(), nil
}

// NewTokenValue digests now, the owning user id and a random string with
// SHA-512 and returns the standard base64 encoding of the 64-byte digest.
func NewTokenValue(userID string, now time.Time) (string, error) {
	random, err := RandomString(tokenEntropyChars)
	if err != nil {
		return "", err
	}

	sum := sha512.Sum512([]byte(strconv.FormatInt(now.UnixNano(), 10) + userID + random))
	return base64.StdEncoding.EncodeToString(sum[:]), nil
}

// IsValidToken reports whether token is the base64 encoding of a 64-byte digest.
func IsValidToken(token string) bool {
	if token == "" {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return false
	}
	return len(raw) == TokenDigestSize
}

// HashValue returns the hex SHA-256 of an opaque value. Durable stores keep
// this instead of the value itself.
func HashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
