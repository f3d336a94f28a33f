package messaging

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature_Valid(t *testing.T) {
	body := []byte(`{"entry":[{"id":"123"}]}`)
	secret := "webhook-secret"

	if !VerifySignature(secret, sign(secret, body), body) {
		t.Error("expected valid signature to verify")
	}
}

func TestVerifySignature_WrongSecret(t *testing.T) {
	body := []byte(`{"entry":[{"id":"123"}]}`)

	if VerifySignature("other-secret", sign("webhook-secret", body), body) {
		t.Error("expected signature computed with a different secret to fail")
	}
}

func TestVerifySignature_TamperedBody(t *testing.T) {
	secret := "webhook-secret"
	signature := sign(secret, []byte(`{"entry":[{"id":"123"}]}`))

	if VerifySignature(secret, signature, []byte(`{"entry":[{"id":"456"}]}`)) {
		t.Error("expected signature to fail against a tampered body")
	}
}

func TestVerifySignature_MissingPrefix(t *testing.T) {
	if VerifySignature("secret", "deadbeef", []byte("body")) {
		t.Error("expected a signature header without the sha256= prefix to fail")
	}
}
