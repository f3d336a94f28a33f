package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Common errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// TokenProvider defines the contract for generating and validating tokens.
type TokenProvider interface {
	GenerateAccessToken(userID, tenantID uuid.UUID, roles []string, permissions []string) (string, error)
	GeneratePreAuthToken(userID uuid.UUID) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
	GetJWKS() (*JWKS, error)
}

// Claims is the custom JWT claim set: sub, tid, roles, permissions, scope,
// iat, exp, per spec §4.5. Roles/Permissions replace the teacher's single
// Role string to support RBAC's multi-role-per-user model.
type Claims struct {
	UserID      uuid.UUID `json:"sub"`
	TenantID    uuid.UUID `json:"tid,omitempty"`
	Roles       []string  `json:"roles,omitempty"`
	Permissions []string  `json:"permissions,omitempty"`
	Scope       string    `json:"scope"` // "access" or "pre_auth"
	jwt.RegisteredClaims
}

// JWK represents a JSON Web Key.
type JWK struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
	Alg string `json:"alg"`
}

// JWKS represents a JSON Web Key Set.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWTProvider implements TokenProvider using RSA-SHA256 (RS256).
type JWTProvider struct {
	privateKey    *rsa.PrivateKey
	publicKey     *rsa.PublicKey
	tokenDuration time.Duration
	issuer        string
	audience      string
	kid           string
}

// NewJWTProvider creates a new token provider. privateKeyPEM must be the
// content of an RSA PRIVATE KEY (PKCS1 or PKCS8), not a filename.
func NewJWTProvider(privateKeyPEM, issuer, audience string) *JWTProvider {
	block, _ := pem.Decode([]byte(privateKeyPEM))
	if block == nil {
		panic("auth: failed to parse PEM block containing the private key")
	}

	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		key, err2 := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err2 != nil {
			panic(fmt.Sprintf("auth: failed to parse private key: %v | %v", err, err2))
		}
		var ok bool
		priv, ok = key.(*rsa.PrivateKey)
		if !ok {
			panic("auth: key is not of type *rsa.PrivateKey")
		}
	}

	return &JWTProvider{
		privateKey:    priv,
		publicKey:     &priv.PublicKey,
		tokenDuration: 15 * time.Minute,
		issuer:        issuer,
		audience:      audience,
		kid:           "sig-1",
	}
}

// GenerateAccessToken creates a signed JWT carrying the user's tenant,
// roles, and the deduplicated permission union across those roles.
func (p *JWTProvider) GenerateAccessToken(userID, tenantID uuid.UUID, roles []string, permissions []string) (string, error) {
	claims := Claims{
		UserID:      userID,
		TenantID:    tenantID,
		Roles:       roles,
		Permissions: permissions,
		Scope:       "access",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(p.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-1 * time.Minute)),
			NotBefore: jwt.NewNumericDate(time.Now().Add(-1 * time.Minute)),
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = p.kid
	signed, err := token.SignedString(p.privateKey)
	if err != nil {
		return "", fmt.Errorf("auth: sign access token: %w", err)
	}
	return signed, nil
}

// GeneratePreAuthToken creates a short-lived token for the MFA verification
// step, carrying no tenant/role claims (those are only granted post-MFA).
func (p *JWTProvider) GeneratePreAuthToken(userID uuid.UUID) (string, error) {
	claims := Claims{
		UserID: userID,
		Scope:  "pre_auth",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(2 * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    p.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = p.kid
	signed, err := token.SignedString(p.privateKey)
	if err != nil {
		return "", fmt.Errorf("auth: sign pre-auth token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies the JWT's signature and standard claims.
func (p *JWTProvider) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.publicKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// GetJWKS returns the JSON Web Key Set for the public key, so resource
// servers outside this module can verify tokens without a shared secret.
func (p *JWTProvider) GetJWKS() (*JWKS, error) {
	eBuf := big.NewInt(int64(p.publicKey.E)).Bytes()
	e := base64.RawURLEncoding.EncodeToString(eBuf)
	n := base64.RawURLEncoding.EncodeToString(p.publicKey.N.Bytes())

	return &JWKS{Keys: []JWK{{
		Kty: "RSA",
		Kid: p.kid,
		Use: "sig",
		N:   n,
		E:   e,
		Alg: "RS256",
	}}}, nil
}
