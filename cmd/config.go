package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/illarion/storekit/internal/store"
)

// ConfigFile is the per-directory store configuration.
const ConfigFile = ".storekit.yaml"

// FileConfig is the on-disk configuration for the CLI. Missing fields fall
// back to defaults, so an absent file yields a plain unencrypted store in
// the current directory.
type FileConfig struct {
	Database        string `yaml:"database"`
	BlobRoot        string `yaml:"blob_root"`
	SecureNamespace string `yaml:"secure_namespace"`
	Encryption      bool   `yaml:"encryption"`
	Compression     bool   `yaml:"compression"`
	MaxStorageSize  int64  `yaml:"max_storage_size"`
	AutoCleanup     *bool  `yaml:"auto_cleanup"`
	LogLevel        string `yaml:"log_level"`
}

// LoadConfig reads path, tolerating a missing file.
func LoadConfig(path string) (FileConfig, error) {
	fc := FileConfig{
		Database:        ".storekit.db",
		BlobRoot:        ".storekit-blobs",
		SecureNamespace: "storekit",
		LogLevel:        "warn",
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fc, nil
		}
		return fc, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return fc, nil
}

// StoreConfig translates the file configuration into the storage manager's
// construction-time configuration.
func (fc FileConfig) StoreConfig(passphrase []byte, logger *slog.Logger) store.Config {
	cfg := store.Config{
		DatabasePath:       fc.Database,
		SecureNamespace:    fc.SecureNamespace,
		BlobRoot:           fc.BlobRoot,
		CompressionEnabled: fc.Compression,
		MaxStorageSize:     fc.MaxStorageSize,
		Logger:             logger,
	}
	if fc.Encryption {
		cfg.EncryptionEnabled = true
		cfg.Passphrase = passphrase
	}
	if fc.AutoCleanup != nil && !*fc.AutoCleanup {
		cfg.DisableAutoCleanup = true
	}
	return cfg
}

// Logger builds the CLI's stderr logger at the configured level.
func (fc FileConfig) Logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(fc.LogLevel)); err != nil {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
