package auth

import (
	"strings"
	"testing"
)

func TestHashPassword_NeverStoresPlaintext(t *testing.T) {
	hash, err := HashPassword("hunter2hunter2")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "" || hash == "hunter2hunter2" {
		t.Fatalf("hash = %q, want a non-empty bcrypt digest", hash)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("hash %q is not a bcrypt digest", hash)
	}
}

func TestHashPassword_SaltsEveryCall(t *testing.T) {
	first, err := HashPassword("hunter2hunter2")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	second, err := HashPassword("hunter2hunter2")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if first == second {
		t.Error("two hashes of the same password should differ")
	}
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("hunter2hunter2")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	if err := CheckPassword(hash, "hunter2hunter2"); err != nil {
		t.Errorf("correct password rejected: %v", err)
	}
	if err := CheckPassword(hash, "hunter2hunter3"); err == nil {
		t.Error("wrong password accepted")
	}
	if err := CheckPassword(hash, ""); err == nil {
		t.Error("empty password accepted")
	}
}

func TestCheckPassword_BadHash(t *testing.T) {
	if err := CheckPassword("not-a-bcrypt-hash", "whatever"); err == nil {
		t.Error("expected error for malformed hash")
	}
}
