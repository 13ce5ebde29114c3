package password

import (
	"errors"
	"strings"
	"testing"
)

func secureConfig() Config {
	return Config{
		Memory:      65536,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func TestHashAndVerify(t *testing.T) {
	hasher, err := NewArgon2(secureConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	hash, salt, err := hasher.Hash("P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	if !strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=2$") {
		t.Fatalf("unexpected hash prefix: %s", hash)
	}
	if salt == "" || strings.Contains(hash, salt) {
		t.Fatalf("expected salt to be returned separately, got %q", salt)
	}

	ok, err := hasher.Verify("P@ssw0rd-Ascii", hash, salt)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatal("expected password verification to succeed")
	}
}

func TestVerifyWrongPassword(t *testing.T) {
	hasher, err := NewArgon2(secureConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	hash, salt, err := hasher.Hash("correct-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := hasher.Verify("wrong-password", hash, salt)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatal("expected wrong password verification to fail")
	}
}

func TestHashWithSaltIsDeterministic(t *testing.T) {
	hasher, err := NewArgon2(secureConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	first, salt, err := hasher.Hash("deterministic-pass")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	second, err := hasher.HashWithSalt("deterministic-pass", salt)
	if err != nil {
		t.Fatalf("HashWithSalt error: %v", err)
	}
	if first != second {
		t.Fatal("expected identical hash for identical password and salt")
	}
}

func TestVerifyRejectsWrongSalt(t *testing.T) {
	hasher, err := NewArgon2(secureConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	hash, _, err := hasher.Hash("salted-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	_, otherSalt, err := hasher.Hash("another-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := hasher.Verify("salted-password", hash, otherSalt)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatal("expected verification under a different salt to fail")
	}

	if _, err := hasher.Verify("salted-password", hash, "%%%"); !errors.Is(err, ErrInvalidSalt) {
		t.Fatalf("expected ErrInvalidSalt, got %v", err)
	}
}

func TestHashRejectsShortPassword(t *testing.T) {
	hasher, err := NewArgon2(secureConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	if _, _, err := hasher.Hash("short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
}

func TestNeedsUpgrade(t *testing.T) {
	weak := secureConfig()
	weak.Memory = 8192
	weakHasher, err := NewArgon2(weak)
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	hash, _, err := weakHasher.Hash("upgrade-me-please")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	strong, err := NewArgon2(secureConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	needs, err := strong.NeedsUpgrade(hash)
	if err != nil {
		t.Fatalf("NeedsUpgrade error: %v", err)
	}
	if !needs {
		t.Fatal("expected weaker hash to need upgrade")
	}
}

func TestInvalidConfigRejected(t *testing.T) {
	cases := []Config{
		{Memory: 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		{Memory: 65536, Time: 0, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		{Memory: 65536, Time: 1, Parallelism: 0, SaltLength: 16, KeyLength: 32},
		{Memory: 65536, Time: 1, Parallelism: 1, SaltLength: 8, KeyLength: 32},
		{Memory: 65536, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 8},
	}
	for i, cfg := range cases {
		if _, err := NewArgon2(cfg); err == nil {
			t.Fatalf("case %d: expected config error", i)
		}
	}
}

func TestCheckPolicy(t *testing.T) {
	if err := CheckPolicy("aaaaaaaaaa", 60); !errors.Is(err, ErrPolicy) {
		t.Fatalf("expected low-entropy password to be rejected, got %v", err)
	}
	if err := CheckPolicy("short", 60); !errors.Is(err, ErrPolicy) {
		t.Fatalf("expected short password to be rejected, got %v", err)
	}
	if err := CheckPolicy("Tr0ub4dor&3-horse-staple!", 60); err != nil {
		t.Fatalf("expected strong password to pass, got %v", err)
	}
}

func TestVerifyRejectsMalformedHashes(t *testing.T) {
	hasher, err := NewArgon2(secureConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	_, salt, err := hasher.Hash("malformed-check")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	for _, encoded := range []string{
		"",
		"$argon2i$v=19$m=65536,t=3,p=2$AAAA",
		"$argon2id$v=16$m=65536,t=3,p=2$AAAA",
		"$argon2id$v=19$t=3,m=65536,p=2$AAAA",
		"$argon2id$v=19$m=1024,t=3,p=2$AAAA",
		"$argon2id$v=19$m=65536,t=3,p=2$",
		"$argon2id$v=19$m=65536,t=3,p=2$!!!",
	} {
		if _, err := hasher.Verify("malformed-check", encoded, salt); !errors.Is(err, ErrMalformedHash) {
			t.Fatalf("%q: expected ErrMalformedHash, got %v", encoded, err)
		}
	}
}
