package auth

import "testing"

func TestGenerateSecureToken_LengthAndUniqueness(t *testing.T) {
	a, err := GenerateSecureToken(32)
	if err != nil {
		t.Fatalf("GenerateSecureToken failed: %v", err)
	}
	b, err := GenerateSecureToken(32)
	if err != nil {
		t.Fatalf("GenerateSecureToken failed: %v", err)
	}

	if a == "" || b == "" {
		t.Fatal("expected non-empty tokens")
	}
	if a == b {
		t.Error("expected distinct tokens across calls")
	}
	// 32 random bytes in padded URL-safe base64 encode to 44 characters.
	if len(a) != 44 || len(b) != 44 {
		t.Errorf("expected 44-character tokens, got %d and %d", len(a), len(b))
	}
}

func TestHashToken_Deterministic(t *testing.T) {
	raw := "some-raw-token-value"

	h1 := HashToken(raw)
	h2 := HashToken(raw)

	if h1 != h2 {
		t.Errorf("HashToken not deterministic: %q != %q", h1, h2)
	}
	if h1 == raw {
		t.Error("HashToken should not return the raw input")
	}
}

func TestHashToken_DifferentInputsDifferentHashes(t *testing.T) {
	if HashToken("token-a") == HashToken("token-b") {
		t.Error("expected different hashes for different inputs")
	}
}
