package crypto

import "testing"

const testKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestEncryptDecrypt_Roundtrip(t *testing.T) {
	enc, err := NewEncryptor(testKey)
	if err != nil {
		t.Fatalf("NewEncryptor failed: %v", err)
	}

	plaintext := "MySuperSecretAccessToken123!"
	ciphertext, err := enc.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if len(ciphertext) < 5 || ciphertext[:4] != "enc:" {
		t.Errorf("ciphertext missing 'enc:' prefix: %s", ciphertext)
	}

	decrypted, err := enc.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if decrypted != plaintext {
		t.Errorf("decrypted text mismatch.\nGot:  %s\nWant: %s", decrypted, plaintext)
	}
}

func TestDecrypt_InvalidFormat(t *testing.T) {
	enc, _ := NewEncryptor(testKey)
	if _, err := enc.Decrypt("plaintext token"); err == nil {
		t.Error("expected error for missing 'enc:' prefix, got nil")
	}
}

func TestDecrypt_TamperedData(t *testing.T) {
	enc, _ := NewEncryptor(testKey)
	ciphertext, _ := enc.Encrypt("test")
	tampered := ciphertext[:len(ciphertext)-5] + "XXXXX"

	if _, err := enc.Decrypt(tampered); err == nil {
		t.Error("expected error for tampered ciphertext, got nil")
	}
}

func TestDecrypt_WrongKeyFails(t *testing.T) {
	encA, _ := NewEncryptor(testKey)
	encB, _ := NewEncryptor("fedcba9876543210fedcba9876543210fedcba9876543210fedcba9876543210")

	ciphertext, _ := encA.Encrypt("secret")
	if _, err := encB.Decrypt(ciphertext); err == nil {
		t.Error("expected decryption under a different key to fail, got nil")
	}
}

func TestNewEncryptor_RejectsBadKeyLength(t *testing.T) {
	if _, err := NewEncryptor("tooshort"); err == nil {
		t.Error("expected error for short key, got nil")
	}
}

func TestGenerateKey(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	if len(key) != 64 {
		t.Errorf("generated key has wrong length. got %d, want 64", len(key))
	}
	if _, err := NewEncryptor(key); err != nil {
		t.Errorf("generated key was not accepted by NewEncryptor: %v", err)
	}
}
