package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/illarion/storekit/internal/backend"
	"github.com/illarion/storekit/internal/compress"
	"github.com/illarion/storekit/internal/crypto"
	"github.com/illarion/storekit/internal/index"
)

// envelopeVersion is bumped when the envelope layout changes. Restore
// rejects versions it does not understand.
const envelopeVersion = 1

// Envelope is the serialized snapshot of the entire store: every
// backend's raw payloads plus the metadata index and the key derivation
// parameters the payloads were encrypted under. It is an opaque,
// versioned blob; the layout is not pinned for interchange with other
// implementations.
type Envelope struct {
	Version  int               `json:"version"`
	ID       string            `json:"id"`
	StoreID  string            `json:"store_id"`
	Created  time.Time         `json:"created"`
	Settings map[string][]byte `json:"settings"`
	Secure   map[string][]byte `json:"secure"`
	Blobs    map[string][]byte `json:"blobs"`
	Index    []index.Entry     `json:"index"`
	KDFSalt  []byte            `json:"kdf_salt,omitempty"`
	KDFIters int               `json:"kdf_iterations,omitempty"`
}

// Backup snapshots all three backends and the metadata index into one
// gzip-compressed envelope. Failure at any sub-snapshot aborts the whole
// operation; no partial envelope is ever returned.
func (m *Manager) Backup() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	env := Envelope{
		Version: envelopeVersion,
		ID:      uuid.NewString(),
		StoreID: m.id,
		Created: time.Now().UTC(),
	}

	var err error
	if env.Settings, err = snapshotBackend(m.settings); err != nil {
		return nil, fmt.Errorf("%w: settings: %w", ErrBackup, err)
	}
	if env.Secure, err = snapshotBackend(m.secure); err != nil {
		return nil, fmt.Errorf("%w: secure: %w", ErrBackup, err)
	}
	if env.Blobs, err = snapshotBackend(m.blob); err != nil {
		return nil, fmt.Errorf("%w: blob: %w", ErrBackup, err)
	}
	if env.Index, err = m.idx.All(); err != nil {
		return nil, fmt.Errorf("%w: index: %w", ErrBackup, err)
	}

	// The envelope carries the KDF parameters so a restore into a store
	// with a different salt can still decrypt, given the same passphrase.
	if salt, err := m.settings.GetMeta(metaKDFSalt); err == nil && salt != nil {
		env.KDFSalt = salt
		env.KDFIters = crypto.DefaultIters
		if raw, err := m.settings.GetMeta(metaKDFIters); err == nil && raw != nil {
			if n, err := strconv.Atoi(string(raw)); err == nil && n > 0 {
				env.KDFIters = n
			}
		}
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackup, err)
	}
	data, err := compress.Compress(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackup, err)
	}

	m.log.Info("created backup",
		slog.String("envelope_id", env.ID),
		slog.Int("keys", len(env.Index)),
		slog.Int("bytes", len(data)))
	return data, nil
}

// Restore replaces the store's entire state with the envelope's. The
// envelope is validated first; a malformed, unsupported or over-quota
// envelope is rejected before anything is touched. The store is then
// cleared and replayed; if clearing or any replay step fails the store
// is left in the post-clear state, so callers must treat a failed
// restore as "store is empty", not "store is unchanged".
func (m *Manager) Restore(data []byte) error {
	raw, err := compress.Decompress(data, m.envelopeLimit())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRestore, err)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%w: %w", ErrRestore, err)
	}
	if env.Version != envelopeVersion {
		return fmt.Errorf("%w: unsupported envelope version %d", ErrRestore, env.Version)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var used int64
	for _, entry := range env.Index {
		used += entry.Size
	}
	if used > m.quota.max {
		return fmt.Errorf("%w: envelope holds %d bytes, quota is %d", ErrRestore, used, m.quota.max)
	}

	if err := m.clearLocked(); err != nil {
		return fmt.Errorf("%w: %w", ErrRestore, err)
	}

	for target, contents := range map[backend.Backend]map[string][]byte{
		m.settings: env.Settings,
		m.secure:   env.Secure,
		m.blob:     env.Blobs,
	} {
		for key, payload := range contents {
			if err := target.Put(key, payload); err != nil {
				return fmt.Errorf("%w: replay %s: %w", ErrRestore, target.Name(), err)
			}
		}
	}

	for _, entry := range env.Index {
		if err := m.idx.Put(entry); err != nil {
			return fmt.Errorf("%w: replay index: %w", ErrRestore, err)
		}
	}
	m.quota.used = used

	if err := m.adoptKDF(env); err != nil {
		return fmt.Errorf("%w: %w", ErrRestore, err)
	}

	m.log.Info("restored from backup",
		slog.String("envelope_id", env.ID),
		slog.Int("keys", len(env.Index)),
		slog.Int64("used_bytes", used))
	return nil
}

// adoptKDF persists the envelope's key derivation parameters and, when
// the store derives its key from a passphrase, re-derives under the
// envelope's salt. Without this a passphrase-encrypted backup restored
// into a store with a different salt would fail to decrypt every value.
func (m *Manager) adoptKDF(env Envelope) error {
	if env.KDFSalt == nil {
		return nil
	}
	iters := env.KDFIters
	if iters <= 0 {
		iters = crypto.DefaultIters
	}

	if err := m.settings.SetMeta(metaKDFSalt, env.KDFSalt); err != nil {
		return fmt.Errorf("persist kdf salt: %w", err)
	}
	if err := m.settings.SetMeta(metaKDFIters, []byte(strconv.Itoa(iters))); err != nil {
		return fmt.Errorf("persist kdf iterations: %w", err)
	}

	if m.enc == nil || m.passphrase == nil {
		return nil
	}
	kdf := &crypto.KDF{Salt: env.KDFSalt, Iterations: iters}
	enc, err := crypto.NewEncryptor(kdf.DeriveKey(m.passphrase))
	if err != nil {
		return fmt.Errorf("re-derive key: %w", err)
	}
	m.enc.Destroy()
	m.enc = enc
	return nil
}

// envelopeLimit bounds decompression of a backup envelope. Payload bytes
// in a restorable envelope cannot exceed the quota; JSON framing and
// base64 roughly double that, and generous headroom covers metadata.
func (m *Manager) envelopeLimit() int64 {
	const headroom = 16 << 20
	if m.quota.max > (math.MaxInt64-headroom)/2 {
		return math.MaxInt64
	}
	return m.quota.max*2 + headroom
}

func snapshotBackend(b backend.Backend) (map[string][]byte, error) {
	keys, err := b.Keys()
	if err != nil {
		return nil, err
	}
	contents := make(map[string][]byte, len(keys))
	for _, key := range keys {
		data, err := b.Get(key)
		if err != nil {
			return nil, err
		}
		contents[key] = data
	}
	return contents, nil
}
