// Package crypto provides the AES-256-GCM encryption-at-rest port used for
// channel access/webhook tokens (spec §3 Channel entity).
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
)

// Encryptor performs authenticated AES-256-GCM encryption for secrets
// stored at rest. The key is bound at construction time rather than read
// from an environment variable per call, so key rotation is an explicit
// "build a new Encryptor" operation instead of a global mutation.
type Encryptor struct {
	gcm cipher.AEAD
}

// NewEncryptor builds an Encryptor from a 32-byte key given as 64 hex
// characters (e.g. the output of GenerateKey).
func NewEncryptor(keyHex string) (*Encryptor, error) {
	if len(keyHex) != 64 {
		return nil, fmt.Errorf("crypto: key must be exactly 32 bytes (64 hex characters)")
	}
	key := make([]byte, 32)
	n, err := hex.Decode(key, []byte(keyHex))
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid key format (must be hex): %w", err)
	}
	if n != 32 {
		return nil, fmt.Errorf("crypto: key decoded to %d bytes, expected 32", n)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: create GCM mode: %w", err)
	}
	return &Encryptor{gcm: gcm}, nil
}

// Encrypt returns base64-encoded ciphertext prefixed with "enc:", with a
// fresh random nonce prepended — reusing a nonce with the same key
// completely breaks GCM's security guarantee, so one is drawn every call.
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("crypto: generate nonce: %w", err)
	}
	ciphertext := e.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return "enc:" + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt, failing closed on tampering (GCM's
// authentication tag check) or a malformed prefix.
func (e *Encryptor) Decrypt(ciphertextB64 string) (string, error) {
	if len(ciphertextB64) < 4 || ciphertextB64[:4] != "enc:" {
		return "", fmt.Errorf("crypto: invalid encrypted format (missing 'enc:' prefix)")
	}
	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextB64[4:])
	if err != nil {
		return "", fmt.Errorf("crypto: invalid base64 encoding: %w", err)
	}

	nonceSize := e.gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", fmt.Errorf("crypto: ciphertext too short (possible corruption or tampering)")
	}
	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]

	plaintext, err := e.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("crypto: decryption failed (invalid key or tampered data): %w", err)
	}
	return string(plaintext), nil
}

// GenerateKey generates a new 32-byte AES key in hex, for initial setup or
// rotation (the operator provisions a new Encryptor with it and re-encrypts
// existing rows out of band; this package does not perform that migration).
func GenerateKey() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("crypto: generate random key: %w", err)
	}
	return hex.EncodeToString(key), nil
}
