package backend

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/zalando/go-keyring"
)

// indexEntry is the reserved keyring item holding the list of stored keys.
// The OS keyring has no enumeration API, so the backend maintains its own.
const indexEntry = "__storekit_index__"

// Secure stores payloads in the OS credential store under a configured
// service namespace. Values are base64-encoded because keyrings hold
// strings, not bytes. Size limits are imposed by the platform; oversized
// writes fail with the platform's error wrapped as ErrUnavailable.
type Secure struct {
	service string

	// Guards read-modify-write of the key index entry.
	mu sync.Mutex
}

// NewSecure creates a secure store backed by the OS keyring under the
// given service namespace.
func NewSecure(service string) *Secure {
	return &Secure{service: service}
}

func (s *Secure) Name() string { return "secure" }

func (s *Secure) Put(key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Capture the previous value so a failed index update can reinstate
	// it; an entry must never outlive its index listing or vice versa.
	prev, prevErr := keyring.Get(s.service, key)
	if prevErr != nil && !errors.Is(prevErr, keyring.ErrNotFound) {
		return fmt.Errorf("%w: keyring get: %w", ErrUnavailable, prevErr)
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	if err := keyring.Set(s.service, key, encoded); err != nil {
		return fmt.Errorf("%w: keyring set: %w", ErrUnavailable, err)
	}

	rollback := func() {
		if prevErr == nil {
			_ = keyring.Set(s.service, key, prev)
		} else {
			_ = keyring.Delete(s.service, key)
		}
	}

	keys, err := s.loadIndex()
	if err != nil {
		rollback()
		return err
	}
	if !slices.Contains(keys, key) {
		keys = append(keys, key)
		if err := s.saveIndex(keys); err != nil {
			rollback()
			return err
		}
	}
	return nil
}

func (s *Secure) Get(key string) ([]byte, error) {
	encoded, err := keyring.Get(s.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("%w: keyring get: %w", ErrUnavailable, err)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("corrupted secure entry %q: %w", key, err)
	}
	return data, nil
}

func (s *Secure) Has(key string) (bool, error) {
	_, err := keyring.Get(s.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: keyring get: %w", ErrUnavailable, err)
	}
	return true, nil
}

func (s *Secure) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := keyring.Delete(s.service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%w: keyring delete: %w", ErrUnavailable, err)
	}

	keys, err := s.loadIndex()
	if err != nil {
		return err
	}
	if i := slices.Index(keys, key); i >= 0 {
		keys = slices.Delete(keys, i, i+1)
		return s.saveIndex(keys)
	}
	return nil
}

func (s *Secure) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadIndex()
}

func (s *Secure) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.loadIndex()
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := keyring.Delete(s.service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("%w: keyring delete %q: %w", ErrUnavailable, key, err)
		}
	}
	if err := keyring.Delete(s.service, indexEntry); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%w: keyring delete index: %w", ErrUnavailable, err)
	}
	return nil
}

func (s *Secure) loadIndex() ([]string, error) {
	raw, err := keyring.Get(s.service, indexEntry)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: keyring index: %w", ErrUnavailable, err)
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, fmt.Errorf("corrupted secure index: %w", err)
	}
	return keys, nil
}

func (s *Secure) saveIndex(keys []string) error {
	raw, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("failed to marshal secure index: %w", err)
	}
	if err := keyring.Set(s.service, indexEntry, string(raw)); err != nil {
		return fmt.Errorf("%w: keyring index: %w", ErrUnavailable, err)
	}
	return nil
}
