package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerify(t *testing.T) {
	p := NewPasswordServiceForTest(bcrypt.MinCost)

	hash, err := p.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if hash == "correct horse battery" {
		t.Fatal("Hash() returned the plaintext")
	}

	if err := p.Verify(hash, "correct horse battery"); err != nil {
		t.Errorf("Verify() with correct password: %v", err)
	}
	if err := p.Verify(hash, "wrong password"); err == nil {
		t.Error("Verify() accepted a wrong password")
	}
}

func TestHashRejectsEmptyPassword(t *testing.T) {
	p := NewPasswordServiceForTest(bcrypt.MinCost)
	if _, err := p.Hash(""); err == nil {
		t.Error("Hash() accepted an empty password")
	}
}

func TestHashRejectsOverlongPassword(t *testing.T) {
	// bcrypt silently truncates past 72 bytes; we refuse instead.
	p := NewPasswordServiceForTest(bcrypt.MinCost)
	if _, err := p.Hash(strings.Repeat("a", 73)); err == nil {
		t.Error("Hash() accepted a 73-byte password")
	}
}

func TestHashesAreSalted(t *testing.T) {
	p := NewPasswordServiceForTest(bcrypt.MinCost)

	h1, err := p.Hash("same password")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	h2, err := p.Hash("same password")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if h1 == h2 {
		t.Error("two hashes of the same password are identical; salting is broken")
	}
}
