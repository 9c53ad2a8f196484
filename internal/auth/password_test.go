package auth

import (
	"errors"
	"testing"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := HashPassword("secret-password")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	parsed, err := ParseArgon2idHash(hash)
	if err != nil {
		t.Fatalf("ParseArgon2idHash: %v", err)
	}
	if !parsed.Verify("secret-password") {
		t.Fatal("expected password to verify")
	}
	if parsed.Verify("wrong-password") {
		t.Fatal("expected password to fail verification")
	}
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword(hash, "hunter22") {
		t.Fatal("expected match")
	}
	if CheckPassword(hash, "hunter23") {
		t.Fatal("expected mismatch")
	}
	if CheckPassword("", "") {
		t.Fatal("empty hash must not match")
	}
	if CheckPassword("$argon2id$garbage", "x") {
		t.Fatal("malformed hash must not match")
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("short"); err != ErrWeakPassword {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := ValidatePassword("long enough"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Length counts characters, not bytes.
	if err := ValidatePassword("ääääääö"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword for 7 characters, got %v", err)
	}
	if err := ValidatePassword("äääääääö"); err != nil {
		t.Fatalf("unexpected error for 8 characters: %v", err)
	}
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	if _, err := HashPassword(""); err == nil {
		t.Fatal("expected error for empty password")
	}
	a, _ := HashPassword("same-password")
	b, _ := HashPassword("same-password")
	if a == b {
		t.Fatal("expected a fresh salt per hash")
	}
}
