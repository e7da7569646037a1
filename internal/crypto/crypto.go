package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	SaltSize     = 32     // Salt size in bytes
	KeySize      = 32     // AES-256 key size
	NonceSize    = 12     // GCM nonce size
	TagSize      = 16     // GCM authentication tag size
	DefaultIters = 210000 // Default PBKDF2 iterations (OWASP minimum)
)

var (
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrInvalidKeySize    = errors.New("key must be 32 bytes")
	ErrAuthFailed        = errors.New("authentication failed")
)

// KDF derives encryption keys from passphrases.
type KDF struct {
	Salt       []byte
	Iterations int
}

// NewKDF creates a KDF with a fresh random salt.
func NewKDF() (*KDF, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	return &KDF{
		Salt:       salt,
		Iterations: DefaultIters,
	}, nil
}

// DeriveKey derives a KeySize-byte encryption key from a passphrase.
func (k *KDF) DeriveKey(passphrase []byte) []byte {
	return pbkdf2.Key(passphrase, k.Salt, k.Iterations, KeySize, sha256.New)
}

// Encryptor is the keyed, reversible byte transform applied to payloads
// before they reach a backend. Decryption of tampered or mismatched-key
// input fails with ErrAuthFailed rather than returning garbage.
type Encryptor struct {
	key []byte
}

// NewEncryptor creates an encryptor with the given key.
func NewEncryptor(key []byte) (*Encryptor, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	return &Encryptor{key: key}, nil
}

// Encrypt seals plaintext with AES-256-GCM. The random nonce is prepended
// to the returned ciphertext.
func (e *Encryptor) Encrypt(plaintext []byte) ([]byte, error) {
	gcm, err := e.aead()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	result := make([]byte, NonceSize, NonceSize+len(plaintext)+TagSize)
	copy(result, nonce)
	return gcm.Seal(result, nonce, plaintext, nil), nil
}

// Decrypt opens ciphertext produced by Encrypt.
func (e *Encryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < NonceSize+TagSize {
		return nil, ErrInvalidCiphertext
	}

	gcm, err := e.aead()
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, ciphertext[:NonceSize], ciphertext[NonceSize:], nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

func (e *Encryptor) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Destroy clears the encryptor's key from memory.
func (e *Encryptor) Destroy() {
	ClearBytes(e.key)
}

// ClearBytes zeroes a byte slice holding sensitive data.
func ClearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
