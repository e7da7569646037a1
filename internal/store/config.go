package store

import (
	"fmt"
	"log/slog"

	"github.com/illarion/storekit/internal/crypto"
)

// DefaultMaxStorageSize caps the aggregate stored bytes when the
// configuration does not set a limit.
const DefaultMaxStorageSize = 100 << 20 // 100 MiB

// Config is the construction-time configuration of a Manager. It is
// immutable for the manager's lifetime; changing routing-relevant settings
// requires constructing a new manager.
type Config struct {
	// DatabasePath locates the bbolt file holding the settings store and
	// the metadata index.
	DatabasePath string

	// SecureNamespace is the OS credential store service name.
	SecureNamespace string

	// BlobRoot is the directory holding one file per large value.
	BlobRoot string

	// EncryptionEnabled turns the encryption transform on. Exactly one of
	// EncryptionKey (32 bytes) or Passphrase must then be set; a passphrase
	// is stretched with PBKDF2 using a salt persisted in the database.
	EncryptionEnabled bool
	EncryptionKey     []byte
	Passphrase        []byte

	// CompressionEnabled turns the gzip transform on.
	CompressionEnabled bool

	// MaxStorageSize is the aggregate byte quota across all backends.
	// Zero selects DefaultMaxStorageSize.
	MaxStorageSize int64

	// DisableAutoCleanup turns off the best-effort orphan repair that
	// runs after successful writes.
	DisableAutoCleanup bool

	// Logger receives diagnostics. Nil discards them.
	Logger *slog.Logger
}

// Validate checks the configuration. All violations are reported as
// ErrInvalidConfiguration.
func (c Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("%w: database path is required", ErrInvalidConfiguration)
	}
	if c.SecureNamespace == "" {
		return fmt.Errorf("%w: secure store namespace is required", ErrInvalidConfiguration)
	}
	if c.BlobRoot == "" {
		return fmt.Errorf("%w: blob store root is required", ErrInvalidConfiguration)
	}
	if c.MaxStorageSize < 0 {
		return fmt.Errorf("%w: max storage size must not be negative", ErrInvalidConfiguration)
	}
	if c.EncryptionEnabled {
		hasKey := len(c.EncryptionKey) > 0
		hasPassphrase := len(c.Passphrase) > 0
		switch {
		case !hasKey && !hasPassphrase:
			return fmt.Errorf("%w: encryption enabled without key material", ErrInvalidConfiguration)
		case hasKey && hasPassphrase:
			return fmt.Errorf("%w: set either an encryption key or a passphrase, not both", ErrInvalidConfiguration)
		case hasKey && len(c.EncryptionKey) != crypto.KeySize:
			return fmt.Errorf("%w: encryption key must be %d bytes", ErrInvalidConfiguration, crypto.KeySize)
		}
	}
	return nil
}

func (c Config) maxSize() int64 {
	if c.MaxStorageSize == 0 {
		return DefaultMaxStorageSize
	}
	return c.MaxStorageSize
}
