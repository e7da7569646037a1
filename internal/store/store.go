package store

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/illarion/storekit/internal/backend"
	"github.com/illarion/storekit/internal/codec"
	"github.com/illarion/storekit/internal/compress"
	"github.com/illarion/storekit/internal/crypto"
	"github.com/illarion/storekit/internal/index"
)

// Store meta keys persisted in the settings database.
var (
	metaStoreID  = "store_id"
	metaKDFSalt  = "kdf_salt"
	metaKDFIters = "kdf_iterations"
)

// Manager is the storage manager: it routes values to backends, applies
// the transform pipeline, enforces the quota and keeps the metadata index
// consistent. It is the only component collaborators interact with.
//
// All operations are safe for concurrent use. A single mutex guards the
// metadata index and the quota total for the full duration of a mutation,
// so a write's quota decision can never interleave with another write.
type Manager struct {
	cfg   Config
	log   *slog.Logger
	id    string
	codec codec.Codec
	enc   *crypto.Encryptor // nil when encryption is disabled

	// passphrase is the manager's own copy of the configured passphrase,
	// kept so Restore can re-derive the key under an envelope's salt. It
	// is wiped on Close. Nil when encryption uses a raw key or is off.
	passphrase []byte

	settings *backend.Settings
	secure   *backend.Secure
	blob     *backend.Blob

	// probeOrder is the fixed read path: settings, then secure, then blob.
	// A key lives in exactly one backend, so order does not affect which
	// value is found, only that lookups stay deterministic when metadata
	// and backends have drifted (for example after a partial restore).
	probeOrder []backend.Backend

	mu    sync.Mutex
	idx   *index.Index
	quota quota
}

// New opens a storage manager for the given configuration. The quota total
// is reconciled from the persisted metadata index.
func New(cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	settings, err := backend.OpenSettings(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	blob, err := backend.OpenBlob(cfg.BlobRoot)
	if err != nil {
		settings.Close()
		return nil, err
	}

	idx, err := index.New(settings)
	if err != nil {
		settings.Close()
		blob.Close()
		return nil, err
	}

	m := &Manager{
		cfg:      cfg,
		log:      log,
		codec:    codec.JSON{},
		settings: settings,
		secure:   backend.NewSecure(cfg.SecureNamespace),
		blob:     blob,
		idx:      idx,
	}
	m.probeOrder = []backend.Backend{m.settings, m.secure, m.blob}

	if err := m.initIdentity(); err != nil {
		m.closeBackends()
		return nil, err
	}
	if cfg.EncryptionEnabled {
		if err := m.initEncryption(); err != nil {
			m.closeBackends()
			return nil, err
		}
	}

	used, err := idx.TotalSize()
	if err != nil {
		m.closeBackends()
		return nil, fmt.Errorf("failed to reconcile quota: %w", err)
	}
	m.quota = quota{max: cfg.maxSize(), used: used}

	log.Info("storage manager opened",
		slog.String("store_id", m.id),
		slog.Int64("used_bytes", used),
		slog.Int64("max_bytes", m.quota.max),
		slog.Bool("encryption", cfg.EncryptionEnabled),
		slog.Bool("compression", cfg.CompressionEnabled))
	return m, nil
}

// initIdentity loads or creates the persistent store id.
func (m *Manager) initIdentity() error {
	data, err := m.settings.GetMeta(metaStoreID)
	if err != nil {
		return err
	}
	if data != nil {
		m.id = string(data)
		return nil
	}
	m.id = uuid.NewString()
	return m.settings.SetMeta(metaStoreID, []byte(m.id))
}

// initEncryption builds the encryptor from configured key material. A
// passphrase is stretched with a KDF whose salt persists in the database,
// so the same passphrase opens the store across runs.
func (m *Manager) initEncryption() error {
	key := m.cfg.EncryptionKey
	if len(key) == 0 {
		kdf, err := m.loadOrCreateKDF()
		if err != nil {
			return err
		}
		m.passphrase = append([]byte(nil), m.cfg.Passphrase...)
		key = kdf.DeriveKey(m.passphrase)
	} else {
		key = append([]byte(nil), key...)
	}

	enc, err := crypto.NewEncryptor(key)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	m.enc = enc
	return nil
}

func (m *Manager) loadOrCreateKDF() (*crypto.KDF, error) {
	salt, err := m.settings.GetMeta(metaKDFSalt)
	if err != nil {
		return nil, err
	}
	if salt != nil {
		iters := crypto.DefaultIters
		if raw, err := m.settings.GetMeta(metaKDFIters); err == nil && raw != nil {
			if n, err := strconv.Atoi(string(raw)); err == nil && n > 0 {
				iters = n
			}
		}
		return &crypto.KDF{Salt: salt, Iterations: iters}, nil
	}

	kdf, err := crypto.NewKDF()
	if err != nil {
		return nil, err
	}
	if err := m.settings.SetMeta(metaKDFSalt, kdf.Salt); err != nil {
		return nil, err
	}
	if err := m.settings.SetMeta(metaKDFIters, []byte(fmt.Sprint(kdf.Iterations))); err != nil {
		return nil, err
	}
	return kdf, nil
}

// Close releases the database, the blob root handle and key material.
func (m *Manager) Close() error {
	if m.enc != nil {
		m.enc.Destroy()
	}
	crypto.ClearBytes(m.passphrase)
	return m.closeBackends()
}

func (m *Manager) closeBackends() error {
	err := m.settings.Close()
	if berr := m.blob.Close(); err == nil {
		err = berr
	}
	return err
}

// ID returns the persistent store identifier.
func (m *Manager) ID() string {
	return m.id
}

// Write encodes value, applies the configured transforms, checks the
// quota, routes the payload to a backend and records metadata. A failed
// write leaves the store unchanged.
func (m *Manager) Write(key string, value any) error {
	if key == "" {
		return ErrInvalidKey
	}

	encoded, err := m.codec.Encode(value)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncoding, err)
	}

	payload := encoded
	if m.cfg.CompressionEnabled {
		payload, err = compress.Compress(payload)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCompression, err)
		}
	}
	// Routing looks at the pre-encryption length: encryption adds a fixed
	// framing overhead that must not flip a value across the size
	// threshold depending on whether it is enabled.
	routingSize := len(payload)
	if m.enc != nil {
		payload, err = m.enc.Encrypt(payload)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrEncryption, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, err := m.idx.Get(key)
	if err != nil {
		return fmt.Errorf("failed to read metadata for %q: %w", key, err)
	}
	var replacing int64
	if existing != nil {
		replacing = existing.Size
	}

	incoming := int64(len(payload))
	if err := m.quota.check(incoming, replacing); err != nil {
		return err
	}

	target := m.backendFor(selectBackend(key, routingSize))

	// A key must never live in two backends. The selection is
	// deterministic per key, so a stale copy elsewhere only exists when
	// the configuration changed between runs; evict it before writing.
	// The evicted payload is retained until the write lands so the old
	// value can be reinstated if the target backend rejects the new one.
	type eviction struct {
		from backend.Backend
		data []byte
	}
	var evicted []eviction
	for _, b := range m.probeOrder {
		if b == target {
			continue
		}
		data, err := b.Get(key)
		if errors.Is(err, backend.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to probe %s backend: %w", b.Name(), err)
		}
		m.log.Debug("evicting stale copy",
			slog.String("key", key), slog.String("backend", b.Name()))
		if err := b.Delete(key); err != nil {
			return fmt.Errorf("failed to evict stale copy from %s backend: %w", b.Name(), err)
		}
		evicted = append(evicted, eviction{from: b, data: data})
	}
	restoreEvicted := func() {
		for _, ev := range evicted {
			if rerr := ev.from.Put(key, ev.data); rerr != nil {
				m.log.Error("failed to reinstate evicted copy",
					slog.String("key", key),
					slog.String("backend", ev.from.Name()),
					slog.Any("error", rerr))
			}
		}
	}

	if err := target.Put(key, payload); err != nil {
		restoreEvicted()
		return fmt.Errorf("failed to write %q to %s backend: %w", key, target.Name(), err)
	}

	entry := index.Entry{Key: key, Size: incoming, Timestamp: time.Now().UTC()}
	if err := m.idx.Put(entry); err != nil {
		// Keep backends and index consistent: without metadata the write
		// never happened.
		if derr := target.Delete(key); derr != nil {
			m.log.Error("failed to roll back write",
				slog.String("key", key), slog.Any("error", derr))
		}
		restoreEvicted()
		return fmt.Errorf("failed to record metadata for %q: %w", key, err)
	}
	m.quota.commit(incoming, replacing)

	m.log.Debug("wrote value",
		slog.String("key", key),
		slog.String("backend", target.Name()),
		slog.Int64("bytes", incoming),
		slog.Int64("used_bytes", m.quota.used))

	if !m.cfg.DisableAutoCleanup {
		m.cleanupLocked()
	}
	return nil
}

// Read probes the backends in the fixed order and decodes the first hit
// into out, which must be a non-nil pointer. An absent key is a normal
// empty result: found is false and err is nil. Pipeline failures after a
// successful backend read are returned without mutating anything.
func (m *Manager) Read(key string, out any) (found bool, err error) {
	if key == "" {
		return false, ErrInvalidKey
	}

	payload, found := m.probe(key)
	if !found {
		return false, nil
	}

	if m.enc != nil {
		payload, err = m.enc.Decrypt(payload)
		if err != nil {
			// Corrupted or wrong-key data. Do not attempt decompression
			// of garbage; report the specific kind so the caller can
			// decide between key recovery and giving the value up.
			return false, fmt.Errorf("%w: key %q: %w", ErrDecryption, key, err)
		}
	}
	if m.cfg.CompressionEnabled {
		payload, err = compress.Decompress(payload, m.inflateLimit())
		if err != nil {
			return false, fmt.Errorf("%w: key %q: %w", ErrDecompression, key, err)
		}
	}
	if err := m.codec.Decode(payload, out); err != nil {
		return false, fmt.Errorf("%w: key %q: %w", ErrDecoding, key, err)
	}
	return true, nil
}

// probe returns the raw payload from the first backend holding the key.
// An unavailable backend is treated as a miss so one broken backend does
// not shadow data in the others.
func (m *Manager) probe(key string) ([]byte, bool) {
	for _, b := range m.probeOrder {
		data, err := b.Get(key)
		if err == nil {
			return data, true
		}
		if !errors.Is(err, backend.ErrKeyNotFound) {
			m.log.Warn("backend probe failed",
				slog.String("key", key),
				slog.String("backend", b.Name()),
				slog.Any("error", err))
		}
	}
	return nil, false
}

// Delete removes the key from all three backends unconditionally and
// drops its metadata. Removing everywhere guards against drift: if the
// routing policy changed across versions the value may physically live
// somewhere current policy would not place it. Deleting an absent key
// succeeds.
func (m *Manager) Delete(key string) error {
	if key == "" {
		return ErrInvalidKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, b := range m.probeOrder {
		if err := b.Delete(key); err != nil {
			return fmt.Errorf("failed to delete %q from %s backend: %w", key, b.Name(), err)
		}
	}

	entry, err := m.idx.Get(key)
	if err != nil {
		return fmt.Errorf("failed to read metadata for %q: %w", key, err)
	}
	if entry == nil {
		return nil
	}
	if err := m.idx.Delete(key); err != nil {
		return fmt.Errorf("failed to drop metadata for %q: %w", key, err)
	}
	m.quota.release(entry.Size)

	m.log.Debug("deleted value",
		slog.String("key", key), slog.Int64("used_bytes", m.quota.used))
	return nil
}

// Exists reports whether any backend holds the key. Like Read it probes
// rather than trusting metadata, so it stays truthful under drift.
func (m *Manager) Exists(key string) bool {
	if key == "" {
		return false
	}
	for _, b := range m.probeOrder {
		present, err := b.Has(key)
		if err != nil {
			m.log.Warn("backend probe failed",
				slog.String("key", key),
				slog.String("backend", b.Name()),
				slog.Any("error", err))
			continue
		}
		if present {
			return true
		}
	}
	return false
}

// Keys enumerates all live keys from the metadata index, in key order.
func (m *Manager) Keys() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.idx.All()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate keys: %w", err)
	}
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys, nil
}

// TotalSize returns the aggregate stored bytes across all backends.
func (m *Manager) TotalSize() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quota.used
}

// Clear removes every value, the metadata index and resets the quota.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clearLocked()
}

func (m *Manager) clearLocked() error {
	for _, b := range m.probeOrder {
		if err := b.Clear(); err != nil {
			return fmt.Errorf("failed to clear %s backend: %w", b.Name(), err)
		}
	}
	if err := m.idx.Clear(); err != nil {
		return fmt.Errorf("failed to clear metadata index: %w", err)
	}
	m.quota.used = 0
	return nil
}

// Compact rewrites the settings database in place, reclaiming space freed
// by deleted values and metadata.
func (m *Manager) Compact() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.settings.Compact(); err != nil {
		return fmt.Errorf("failed to compact settings database: %w", err)
	}
	m.log.Info("compacted settings database")
	return nil
}

// inflateLimit bounds decompression of a stored payload. The quota caps
// the compressed size, and gzip cannot expand past compress.MaxExpansion,
// so anything admitted by the quota decompresses within this bound while
// corrupt input claiming more is cut off.
func (m *Manager) inflateLimit() int64 {
	if m.quota.max > math.MaxInt64/compress.MaxExpansion {
		return math.MaxInt64
	}
	return m.quota.max * compress.MaxExpansion
}

func (m *Manager) backendFor(d destination) backend.Backend {
	switch d {
	case destSecure:
		return m.secure
	case destBlob:
		return m.blob
	default:
		return m.settings
	}
}
