package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/google/uuid"
)

func testPrivateKeyPEM(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	return string(pem.EncodeToMemory(block))
}

func TestJWTProvider_AccessTokenRoundtrip(t *testing.T) {
	p := NewJWTProvider(testPrivateKeyPEM(t), "tenantcore", "tenantcore-api")

	userID, tenantID := uuid.New(), uuid.New()
	token, err := p.GenerateAccessToken(userID, tenantID, []string{"Agent"}, []string{"messaging:send"})
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	claims, err := p.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.UserID != userID {
		t.Errorf("UserID mismatch: got %s want %s", claims.UserID, userID)
	}
	if claims.TenantID != tenantID {
		t.Errorf("TenantID mismatch: got %s want %s", claims.TenantID, tenantID)
	}
	if claims.Scope != "access" {
		t.Errorf("Scope = %q, want access", claims.Scope)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "Agent" {
		t.Errorf("Roles = %v, want [Agent]", claims.Roles)
	}
	if len(claims.Permissions) != 1 || claims.Permissions[0] != "messaging:send" {
		t.Errorf("Permissions = %v, want [messaging:send]", claims.Permissions)
	}
}

func TestJWTProvider_PreAuthTokenHasNoRoles(t *testing.T) {
	p := NewJWTProvider(testPrivateKeyPEM(t), "tenantcore", "tenantcore-api")
	userID := uuid.New()

	token, err := p.GeneratePreAuthToken(userID)
	if err != nil {
		t.Fatalf("GeneratePreAuthToken failed: %v", err)
	}

	claims, err := p.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.Scope != "pre_auth" {
		t.Errorf("Scope = %q, want pre_auth", claims.Scope)
	}
	if len(claims.Roles) != 0 {
		t.Errorf("expected no roles on pre-auth token, got %v", claims.Roles)
	}
}

func TestJWTProvider_ValidateToken_RejectsTampered(t *testing.T) {
	p := NewJWTProvider(testPrivateKeyPEM(t), "tenantcore", "tenantcore-api")
	token, _ := p.GenerateAccessToken(uuid.New(), uuid.New(), nil, nil)

	tampered := token[:len(token)-4] + "abcd"
	if _, err := p.ValidateToken(tampered); err == nil {
		t.Error("expected error validating tampered token, got nil")
	}
}

func TestJWTProvider_GetJWKS(t *testing.T) {
	p := NewJWTProvider(testPrivateKeyPEM(t), "tenantcore", "tenantcore-api")
	jwks, err := p.GetJWKS()
	if err != nil {
		t.Fatalf("GetJWKS failed: %v", err)
	}
	if len(jwks.Keys) != 1 {
		t.Fatalf("expected 1 key, got %d", len(jwks.Keys))
	}
	if jwks.Keys[0].Kty != "RSA" || jwks.Keys[0].Alg != "RS256" {
		t.Errorf("unexpected key shape: %+v", jwks.Keys[0])
	}
}
