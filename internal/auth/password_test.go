package auth

import "testing"

func TestBcryptHasher_HashCompareRoundtrip(t *testing.T) {
	h := NewBcryptHasher()

	hash, err := h.Hash("correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if hash == "" {
		t.Fatal("expected non-empty hash")
	}

	if err := h.Compare(hash, "correct-horse-battery-staple"); err != nil {
		t.Errorf("Compare with correct password failed: %v", err)
	}
}

func TestBcryptHasher_CompareRejectsWrongPassword(t *testing.T) {
	h := NewBcryptHasher()

	hash, err := h.Hash("correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	if err := h.Compare(hash, "wrong-password"); err == nil {
		t.Error("expected Compare to fail for wrong password, got nil")
	}
}

func TestBcryptHasher_HashIsSalted(t *testing.T) {
	h := NewBcryptHasher()

	hash1, err := h.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	hash2, err := h.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	if hash1 == hash2 {
		t.Error("expected distinct hashes for identical passwords (bcrypt salts per call)")
	}
}
