package utils

import (
	"strings"
	"testing"
)

func TestHashPassword(t *testing.T) {
	testCases := []string{
		"secret1",
		"correct horse battery staple",
		"",
	}

	for _, password := range testCases {
		t.Run(password, func(t *testing.T) {
			hash := HashPassword(password)

			if !strings.HasPrefix(hash, "$argon2id$") {
				t.Errorf("HashPassword(%q) = %q; want argon2id encoding", password, hash)
			}
			if strings.Contains(hash, password) && password != "" {
				t.Errorf("HashPassword(%q) contains the plaintext", password)
			}
			if !VerifyPassword(password, hash) {
				t.Errorf("VerifyPassword(%q, hash) = false; want true", password)
			}
			if VerifyPassword(password+"x", hash) {
				t.Errorf("VerifyPassword(%q, hash) = true; want false", password+"x")
			}
		})
	}
}

func TestHashPasswordSaltIsRandom(t *testing.T) {
	if HashPassword("secret1") == HashPassword("secret1") {
		t.Error("two hashes of the same password are identical; salt is not random")
	}
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	testCases := []string{
		"",
		"plaintext",
		"$argon2id$m=65536,t=1,p=4$short",
		"$bcrypt$m=65536,t=1,p=4$c2FsdA$aGFzaA",
	}

	for _, hash := range testCases {
		t.Run(hash, func(t *testing.T) {
			if VerifyPassword("secret1", hash) {
				t.Errorf("VerifyPassword(_, %q) = true; want false", hash)
			}
		})
	}
}

func TestGenerateRandomSecret(t *testing.T) {
	s := GenerateRandomSecret(32)
	if len(s) != 64 {
		t.Errorf("GenerateRandomSecret(32) returned %d hex chars; want 64", len(s))
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdef", r) {
			t.Fatalf("GenerateRandomSecret(32) = %q; contains non-hex character", s)
		}
	}
	if s == GenerateRandomSecret(32) {
		t.Error("two generated secrets are identical")
	}
}

func TestGenerateNumericSuffixWidth(t *testing.T) {
	for i := 0; i < 100; i++ {
		s := GenerateNumericSuffix()
		if len(s) != 3 {
			t.Fatalf("GenerateNumericSuffix() = %q; want three digits", s)
		}
		for _, r := range s {
			if r < '0' || r > '9' {
				t.Fatalf("GenerateNumericSuffix() = %q; contains non-digit", s)
			}
		}
	}
}

func TestGenerateRandomString(t *testing.T) {
	s := GenerateRandomString(40)
	if len(s) != 40 {
		t.Errorf("GenerateRandomString(40) returned %d chars", len(s))
	}
	if s == GenerateRandomString(40) {
		t.Error("two random strings are identical")
	}
}
