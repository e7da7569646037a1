package store

import (
	"errors"

	"github.com/illarion/storekit/internal/backend"
)

// Failure kinds surfaced by Manager operations. Callers match with
// errors.Is; the specific kind is the recovery signal (a DecryptionError
// may warrant re-deriving the key, a DecodingError never does).
var (
	ErrEncoding             = errors.New("encoding failed")
	ErrDecoding             = errors.New("decoding failed")
	ErrEncryption           = errors.New("encryption failed")
	ErrDecryption           = errors.New("decryption failed")
	ErrCompression          = errors.New("compression failed")
	ErrDecompression        = errors.New("decompression failed")
	ErrQuotaExceeded        = errors.New("storage quota exceeded")
	ErrBackup               = errors.New("backup failed")
	ErrRestore              = errors.New("restore failed")
	ErrInvalidKey           = errors.New("invalid storage key")
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrKeyNotFound is returned by operations that require presence.
	// Read does not use it: an absent key is a normal empty result there.
	ErrKeyNotFound = backend.ErrKeyNotFound

	// ErrBackendUnavailable covers the permission and disk-full class of
	// backend failures.
	ErrBackendUnavailable = backend.ErrUnavailable
)
