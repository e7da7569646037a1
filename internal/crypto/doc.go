// Package crypto implements the storage manager's encryption transform.
//
// Payloads are sealed with AES-256-GCM:
//   - 32-byte key, supplied directly or derived from a passphrase
//   - 12-byte random nonce per operation, prepended to the ciphertext
//   - authentication tag makes tampering detectable on decrypt
//
// Key derivation uses PBKDF2-HMAC-SHA256 with a 32-byte random salt and
// 210,000 iterations. The salt is persisted unencrypted alongside the
// settings store so the same passphrase derives the same key across runs.
//
// Decryption of corrupted ciphertext or with the wrong key fails with
// ErrAuthFailed; callers rely on this being distinguishable from a missing
// key or a decompression failure.
package crypto
