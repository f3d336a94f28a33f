package auth

import "testing"

func TestSecureCompareTokens(t *testing.T) {
	if !SecureCompareTokens("abc123", "abc123") {
		t.Error("expected equal tokens to compare true")
	}
	if SecureCompareTokens("abc123", "abc124") {
		t.Error("expected differing tokens to compare false")
	}
	if SecureCompareTokens("abc123", "abc1234") {
		t.Error("expected differing-length tokens to compare false")
	}
}

func TestSecureCompareBytes(t *testing.T) {
	if !SecureCompareBytes([]byte("payload"), []byte("payload")) {
		t.Error("expected equal byte slices to compare true")
	}
	if SecureCompareBytes([]byte("payload"), []byte("payloae")) {
		t.Error("expected differing byte slices to compare false")
	}
}
