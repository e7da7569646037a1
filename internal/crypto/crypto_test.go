package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0xAB}, KeySize)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := NewEncryptor(testKey())
	if err != nil {
		t.Fatalf("NewEncryptor failed: %v", err)
	}

	plaintext := []byte("some sensitive payload")
	ciphertext, err := enc.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if bytes.Contains(ciphertext, plaintext) {
		t.Error("ciphertext contains plaintext")
	}

	out, err := enc.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if !bytes.Equal(out, plaintext) {
		t.Errorf("round trip mismatch: got %q, want %q", out, plaintext)
	}
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	enc, err := NewEncryptor(testKey())
	if err != nil {
		t.Fatalf("NewEncryptor failed: %v", err)
	}

	ciphertext, err := enc.Encrypt([]byte("payload"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	// Flip one byte past the nonce
	ciphertext[NonceSize] ^= 0xFF

	if _, err := enc.Decrypt(ciphertext); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("expected ErrAuthFailed, got %v", err)
	}
}

func TestDecryptWrongKey(t *testing.T) {
	enc1, _ := NewEncryptor(testKey())
	enc2, _ := NewEncryptor(bytes.Repeat([]byte{0xCD}, KeySize))

	ciphertext, err := enc1.Encrypt([]byte("payload"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if _, err := enc2.Decrypt(ciphertext); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("expected ErrAuthFailed, got %v", err)
	}
}

func TestDecryptTooShort(t *testing.T) {
	enc, _ := NewEncryptor(testKey())
	if _, err := enc.Decrypt([]byte("short")); !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("expected ErrInvalidCiphertext, got %v", err)
	}
}

func TestNewEncryptorBadKeySize(t *testing.T) {
	if _, err := NewEncryptor([]byte("too short")); !errors.Is(err, ErrInvalidKeySize) {
		t.Errorf("expected ErrInvalidKeySize, got %v", err)
	}
}

func TestKDFDeterministic(t *testing.T) {
	kdf, err := NewKDF()
	if err != nil {
		t.Fatalf("NewKDF failed: %v", err)
	}
	if len(kdf.Salt) != SaltSize {
		t.Fatalf("salt size = %d, want %d", len(kdf.Salt), SaltSize)
	}

	k1 := kdf.DeriveKey([]byte("passphrase"))
	k2 := kdf.DeriveKey([]byte("passphrase"))
	if !bytes.Equal(k1, k2) {
		t.Error("same passphrase and salt should derive the same key")
	}
	if len(k1) != KeySize {
		t.Errorf("derived key size = %d, want %d", len(k1), KeySize)
	}

	other := kdf.DeriveKey([]byte("different"))
	if bytes.Equal(k1, other) {
		t.Error("different passphrases should derive different keys")
	}
}

func TestClearBytes(t *testing.T) {
	b := []byte{1, 2, 3}
	ClearBytes(b)
	for i, v := range b {
		if v != 0 {
			t.Errorf("byte %d not cleared", i)
		}
	}
}
