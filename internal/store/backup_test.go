package store

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/zalando/go-keyring"

	"github.com/illarion/storekit/internal/compress"
)

func decodeEnvelopeForTest(data []byte) (*Envelope, error) {
	raw, err := compress.Decompress(data, 1<<30)
	if err != nil {
		return nil, err
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

func encodeEnvelopeForTest(env *Envelope) ([]byte, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	return compress.Compress(raw)
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	m := newTestManager(t, func(c *Config) {
		c.MaxStorageSize = 16 << 20
	})

	// Populate all three backends.
	want := map[string]string{
		"color":     "blue",
		"api_token": "s3cret",
		"dataset":   stringOfSize(blobThreshold + 4096),
	}
	for k, v := range want {
		if err := m.Write(k, v); err != nil {
			t.Fatalf("Write(%q) failed: %v", k, err)
		}
	}
	size := m.TotalSize()

	envelope, err := m.Backup()
	if err != nil {
		t.Fatalf("Backup failed: %v", err)
	}

	// Diverge from the snapshot, then restore.
	if err := m.Delete("color"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := m.Write("extra", "should vanish"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if err := m.Restore(envelope); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	if got := m.TotalSize(); got != size {
		t.Errorf("TotalSize after restore = %d, want %d", got, size)
	}
	keys, err := m.Keys()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	slices.Sort(keys)
	if !slices.Equal(keys, []string{"api_token", "color", "dataset"}) {
		t.Errorf("Keys after restore = %v", keys)
	}
	if m.Exists("extra") {
		t.Error("post-backup write survived restore")
	}
	for k, v := range want {
		var out string
		found, err := m.Read(k, &out)
		if err != nil || !found {
			t.Fatalf("Read(%q) after restore = (%v, %v)", k, found, err)
		}
		if out != v {
			t.Errorf("value of %q changed across backup/restore", k)
		}
	}
}

func TestBackupRestoreWithTransforms(t *testing.T) {
	m := newTestManager(t, func(c *Config) {
		c.CompressionEnabled = true
		c.EncryptionEnabled = true
		c.Passphrase = []byte("envelope test")
	})

	if err := m.Write("user_password", "hunter2"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := m.Write("note", "remember the milk"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	envelope, err := m.Backup()
	if err != nil {
		t.Fatalf("Backup failed: %v", err)
	}
	if err := m.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if err := m.Restore(envelope); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	var out string
	found, err := m.Read("user_password", &out)
	if err != nil || !found || out != "hunter2" {
		t.Errorf("secure value after restore = (%q, %v, %v)", out, found, err)
	}
	found, err = m.Read("note", &out)
	if err != nil || !found || out != "remember the milk" {
		t.Errorf("settings value after restore = (%q, %v, %v)", out, found, err)
	}
}

func TestRestoreRejectsGarbage(t *testing.T) {
	m := newTestManager(t, nil)

	if err := m.Write("k", "v"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if err := m.Restore([]byte("not an envelope")); !errors.Is(err, ErrRestore) {
		t.Errorf("Restore of garbage: got %v, want ErrRestore", err)
	}
}

func TestRestoreRejectsUnknownVersion(t *testing.T) {
	m := newTestManager(t, nil)

	envelope, err := m.Backup()
	if err != nil {
		t.Fatalf("Backup failed: %v", err)
	}

	// Re-encode the envelope with a future version.
	raw, err := decodeEnvelopeForTest(envelope)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	raw.Version = envelopeVersion + 1
	reencoded, err := encodeEnvelopeForTest(raw)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	if err := m.Restore(reencoded); !errors.Is(err, ErrRestore) {
		t.Errorf("Restore of future version: got %v, want ErrRestore", err)
	}
}

func TestRestoreRejectsOverQuotaEnvelope(t *testing.T) {
	m1 := newTestManager(t, func(c *Config) {
		c.MaxStorageSize = 8192
	})
	if err := m1.Write("bulk", stringOfSize(3000)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	envelope, err := m1.Backup()
	if err != nil {
		t.Fatalf("Backup failed: %v", err)
	}

	// A store with a smaller quota must refuse the envelope outright
	// instead of ending up over its limit.
	m2 := newTestManager(t, func(c *Config) {
		c.MaxStorageSize = 1024
	})
	if err := m2.Write("color", "blue"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	before := m2.TotalSize()

	if err := m2.Restore(envelope); !errors.Is(err, ErrRestore) {
		t.Fatalf("Restore of over-quota envelope: got %v, want ErrRestore", err)
	}
	if got := m2.TotalSize(); got != before {
		t.Errorf("TotalSize after rejected restore = %d, want %d", got, before)
	}
	var out string
	found, err := m2.Read("color", &out)
	if err != nil || !found || out != "blue" {
		t.Errorf("rejected restore disturbed existing data: (%q, %v, %v)", out, found, err)
	}
}

func TestRestoreIntoFreshEncryptedStore(t *testing.T) {
	// A passphrase-encrypted backup must open in a store that derived its
	// key under a different salt: the envelope carries the derivation
	// parameters and the restore adopts them.
	keyring.MockInit()
	passphrase := "shared passphrase"

	dir1 := t.TempDir()
	m1, err := New(Config{
		DatabasePath:      filepath.Join(dir1, "store.db"),
		SecureNamespace:   "storekit-test-src",
		BlobRoot:          filepath.Join(dir1, "blobs"),
		EncryptionEnabled: true,
		Passphrase:        []byte(passphrase),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := m1.Write("document", "confidential"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := m1.Write("api_token", "s3cret"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	envelope, err := m1.Backup()
	if err != nil {
		t.Fatalf("Backup failed: %v", err)
	}
	m1.Close()

	dir2 := t.TempDir()
	cfg2 := Config{
		DatabasePath:      filepath.Join(dir2, "store.db"),
		SecureNamespace:   "storekit-test-dst",
		BlobRoot:          filepath.Join(dir2, "blobs"),
		EncryptionEnabled: true,
		Passphrase:        []byte(passphrase),
	}
	m2, err := New(cfg2)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := m2.Restore(envelope); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	var out string
	found, err := m2.Read("document", &out)
	if err != nil || !found || out != "confidential" {
		t.Fatalf("Read after restore = (%q, %v, %v), want confidential", out, found, err)
	}
	found, err = m2.Read("api_token", &out)
	if err != nil || !found || out != "s3cret" {
		t.Fatalf("secure value after restore = (%q, %v, %v)", out, found, err)
	}
	if err := m2.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// The adopted salt must persist: a reopen with the same passphrase
	// still decrypts the restored values.
	m3, err := New(cfg2)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer m3.Close()
	found, err = m3.Read("document", &out)
	if err != nil || !found || out != "confidential" {
		t.Errorf("Read after reopen = (%q, %v, %v), want confidential", out, found, err)
	}
}

func TestBackupIsSelfContained(t *testing.T) {
	// An envelope from one store restores into a fresh one with the same
	// configuration.
	m1 := newTestManager(t, nil)
	if err := m1.Write("color", "green"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	envelope, err := m1.Backup()
	if err != nil {
		t.Fatalf("Backup failed: %v", err)
	}

	m2 := newTestManager(t, nil)
	if err := m2.Restore(envelope); err != nil {
		t.Fatalf("Restore into fresh store failed: %v", err)
	}
	var out string
	found, err := m2.Read("color", &out)
	if err != nil || !found || out != "green" {
		t.Errorf("Read after cross-store restore = (%q, %v, %v)", out, found, err)
	}
}
