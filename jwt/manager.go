package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the JWS algorithm.
type SigningMethod string

const (
	MethodEd25519 SigningMethod = "ed25519"
	MethodHS256   SigningMethod = "hs256"
)

var (
	ErrVerifyOnly = errors.New("manager has no signing key")
	ErrUnknownKID = errors.New("unknown kid")
	ErrMissingKID = errors.New("missing kid")
)

// Config holds signing keys and validation rules.
type Config struct {
	// AccessTTL is used when Issue is called with a non-positive expiry.
	AccessTTL     time.Duration
	SigningMethod SigningMethod
	// PrivateKey is the HMAC secret for HS256, or a raw or PEM Ed25519 key.
	PrivateKey []byte
	PublicKey  []byte
	Issuer     string
	Audience   string
	Leeway     time.Duration
	KeyID      string
	// VerifyKeys, when set, selects the verification key by the kid header.
	VerifyKeys map[string][]byte
	Now        func() time.Time
}

// keyring holds key material decoded once at construction.
type keyring struct {
	method jwt.SigningMethod
	sign   any
	verify any
	byKID  map[string]any
	kid    string
	pinKID bool
}

// Manager issues and parses bearer credentials. It is immutable after
// NewManager and safe for concurrent use.
type Manager struct {
	config Config
	keys   keyring
	parser *jwt.Parser
}

// AccessClaims is the bearer payload.
type AccessClaims struct {
	UID  string `json:"uid"`
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and decodes its key material.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("access ttl must be positive")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("leeway must be within [0, 2m]")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	keys, err := loadKeys(cfg)
	if err != nil {
		return nil, err
	}

	m := &Manager{config: cfg, keys: keys}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{keys.method.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	m.parser = jwt.NewParser(opts...)
	return m, nil
}

func loadKeys(cfg Config) (keyring, error) {
	k := keyring{kid: cfg.KeyID, pinKID: cfg.KeyID != ""}

	var decodePublic func([]byte) (any, error)
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < 32 {
			return k, errors.New("hs256 requires a key of at least 32 bytes")
		}
		k.method = jwt.SigningMethodHS256
		k.sign, k.verify = cfg.PrivateKey, cfg.PrivateKey
		decodePublic = func(b []byte) (any, error) { return b, nil }
	case MethodEd25519:
		k.method = jwt.SigningMethodEdDSA
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return k, err
			}
			k.sign = priv
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return k, err
			}
			k.verify = pub
		}
		if len(cfg.VerifyKeys) == 0 && k.verify == nil {
			return k, errors.New("ed25519 requires a public key or verify key set")
		}
		decodePublic = func(b []byte) (any, error) { return parseEdPublicKey(b) }
	default:
		return k, fmt.Errorf("unsupported signing method %q", cfg.SigningMethod)
	}

	if len(cfg.VerifyKeys) > 0 {
		k.byKID = make(map[string]any, len(cfg.VerifyKeys))
		for kid, raw := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return k, errors.New("verify key set contains an empty kid")
			}
			key, err := decodePublic(raw)
			if err != nil {
				return k, fmt.Errorf("verify key %q: %w", kid, err)
			}
			k.byKID[kid] = key
		}
		if k.pinKID {
			if _, ok := k.byKID[k.kid]; !ok {
				return k, errors.New("KeyID is not present in VerifyKeys")
			}
		}
	}
	return k, nil
}

func (j *Manager) now() time.Time {
	if j.config.Now != nil {
		return j.config.Now()
	}
	return time.Now()
}

// Issue signs a bearer credential for userID and role valid for expiry, or
// for AccessTTL when expiry is not positive.
func (j *Manager) Issue(userID, role string, expiry time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("bearer subject required")
	}
	if j.keys.sign == nil {
		return "", ErrVerifyOnly
	}
	if expiry <= 0 {
		expiry = j.config.AccessTTL
	}

	now := j.now()
	claims := AccessClaims{
		UID:  userID,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    j.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	if j.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{j.config.Audience}
	}

	token := jwt.NewWithClaims(j.keys.method, claims)
	if j.keys.kid != "" {
		token.Header["kid"] = j.keys.kid
	}
	return token.SignedString(j.keys.sign)
}

// ParseAccess verifies tokenStr and returns its claims.
func (j *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := j.parser.ParseWithClaims(tokenStr, claims, j.verifyKey)
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func (j *Manager) verifyKey(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	switch {
	case j.keys.byKID != nil:
		if kid == "" {
			return nil, ErrMissingKID
		}
		key, ok := j.keys.byKID[kid]
		if !ok {
			return nil, ErrUnknownKID
		}
		return key, nil
	case j.keys.pinKID && kid != j.keys.kid:
		return nil, ErrUnknownKID
	default:
		return j.keys.verify, nil
	}
}

func parseEdPrivateKey(raw []byte) (ed25519.PrivateKey, error) {
	if len(raw) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(raw), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(raw)
	if err != nil {
		return nil, fmt.Errorf("ed25519 private key: %w", err)
	}
	key, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("ed25519 private key: unexpected key type")
	}
	return key, nil
}

func parseEdPublicKey(raw []byte) (ed25519.PublicKey, error) {
	if len(raw) == ed25519.PublicKeySize {
		return ed25519.PublicKey(raw), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(raw)
	if err != nil {
		return nil, fmt.Errorf("ed25519 public key: %w", err)
	}
	key, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("ed25519 public key: unexpected key type")
	}
	return key, nil
}
