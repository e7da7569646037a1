package backend

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

const (
	blobExt      = ".blob"
	blobDirPerm  = 0700 // Directory: owner rwx only
	blobFilePerm = 0600 // File: owner rw only
)

// Blob stores one file per key under a root directory. All file access
// goes through os.Root so a hostile key can never escape the configured
// location. File names are base64url-encoded keys, which keeps arbitrary
// key strings filesystem-safe and reversible for enumeration.
type Blob struct {
	root *os.Root
	path string
}

// OpenBlob opens or creates the blob store rooted at dir.
func OpenBlob(dir string) (*Blob, error) {
	if err := os.MkdirAll(dir, blobDirPerm); err != nil {
		return nil, fmt.Errorf("%w: failed to create blob root: %w", ErrUnavailable, err)
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open blob root: %w", ErrUnavailable, err)
	}

	return &Blob{root: root, path: dir}, nil
}

// Close releases the root directory handle.
func (b *Blob) Close() error {
	return b.root.Close()
}

func (b *Blob) Name() string { return "blob" }

func blobFileName(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key)) + blobExt
}

func blobKeyFromFileName(name string) (string, bool) {
	encoded, ok := strings.CutSuffix(name, blobExt)
	if !ok {
		return "", false
	}
	key, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", false
	}
	return string(key), true
}

func (b *Blob) Put(key string, data []byte) error {
	f, err := b.root.OpenFile(blobFileName(key), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, blobFilePerm)
	if err != nil {
		return fmt.Errorf("%w: failed to create blob: %w", ErrUnavailable, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("%w: failed to write blob: %w", ErrUnavailable, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: failed to close blob: %w", ErrUnavailable, err)
	}
	return nil
}

func (b *Blob) Get(key string) ([]byte, error) {
	f, err := b.root.Open(blobFileName(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("%w: failed to open blob: %w", ErrUnavailable, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read blob: %w", ErrUnavailable, err)
	}
	return data, nil
}

func (b *Blob) Has(key string) (bool, error) {
	_, err := b.root.Stat(blobFileName(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: failed to stat blob: %w", ErrUnavailable, err)
	}
	return true, nil
}

func (b *Blob) Delete(key string) error {
	if err := b.root.Remove(blobFileName(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: failed to remove blob: %w", ErrUnavailable, err)
	}
	return nil
}

func (b *Blob) Keys() ([]string, error) {
	entries, err := os.ReadDir(b.path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list blobs: %w", ErrUnavailable, err)
	}

	var keys []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if key, ok := blobKeyFromFileName(entry.Name()); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (b *Blob) Clear() error {
	keys, err := b.Keys()
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := b.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
