package application

import (
	"errors"
	"strings"
	"testing"
)

func TestThatWeakPasswordsAreRejected(t *testing.T) {
	weak := []string{
		"",
		"Abcdef1",  // 7 characters
		"abcdefg1", // no uppercase
		"ABCDEFGH", // no digit
		"12345678", // no uppercase
		"abcdefghijklmnop",
	}

	for _, password := range weak {
		if err := ValidatePassword(password); !errors.Is(err, ErrWeakPassword) {
			t.Errorf("expected %q to be rejected", password)
		}
	}
}

func TestThatStrongPasswordsAreAccepted(t *testing.T) {
	strong := []string{
		"Abcdefg1", // exactly 8 characters
		"abcdefG1", // uppercase does not have to come first
		"1bcdefgH",
		"Correct Horse Battery Staple 9",
	}

	for _, password := range strong {
		if err := ValidatePassword(password); err != nil {
			t.Errorf("expected %q to be accepted, got %s", password, err.Error())
		}
	}
}

func TestThatHashedPasswordsVerify(t *testing.T) {
	hash, err := HashPassword("Abcdefg1")
	if err != nil {
		t.Fatalf("HashPassword failed: %s", err.Error())
	}

	if hash == "Abcdefg1" || !strings.HasPrefix(hash, "$2") {
		t.Fatalf("expected a bcrypt hash, got %s", hash)
	}

	if match, legacy := VerifyPassword("Abcdefg1", hash); !match || legacy {
		t.Errorf("expected correct password to match a non legacy hash (match=%t, legacy=%t)", match, legacy)
	}

	if match, _ := VerifyPassword("Abcdefg2", hash); match {
		t.Error("expected wrong password not to match")
	}
}

func TestThatLegacyCleartextPasswordsAreReported(t *testing.T) {
	match, legacy := VerifyPassword("Abcdefg1", "Abcdefg1")
	if !match || !legacy {
		t.Errorf("expected legacy match, got match=%t legacy=%t", match, legacy)
	}

	match, _ = VerifyPassword("Abcdefg2", "Abcdefg1")
	if match {
		t.Error("expected wrong password not to match legacy value")
	}
}
