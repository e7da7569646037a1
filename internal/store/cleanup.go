package store

import "log/slog"

// cleanupLocked repairs drift between the metadata index and the backends:
// index entries whose key no longer exists anywhere are dropped, and blob
// files with no index entry are removed. Best effort only; failures are
// logged and never fail the write that triggered the pass. Must be called
// with the manager mutex held.
func (m *Manager) cleanupLocked() {
	entries, err := m.idx.All()
	if err != nil {
		m.log.Warn("cleanup: failed to read index", slog.Any("error", err))
		return
	}

	for _, entry := range entries {
		found := false
		for _, b := range m.probeOrder {
			present, err := b.Has(entry.Key)
			if err != nil {
				// Cannot tell; assume present rather than drop metadata.
				found = true
				break
			}
			if present {
				found = true
				break
			}
		}
		if found {
			continue
		}
		if err := m.idx.Delete(entry.Key); err != nil {
			m.log.Warn("cleanup: failed to drop orphaned index entry",
				slog.String("key", entry.Key), slog.Any("error", err))
			continue
		}
		m.quota.release(entry.Size)
		m.log.Info("cleanup: dropped orphaned index entry",
			slog.String("key", entry.Key), slog.Int64("bytes", entry.Size))
	}

	blobKeys, err := m.blob.Keys()
	if err != nil {
		m.log.Warn("cleanup: failed to list blobs", slog.Any("error", err))
		return
	}
	for _, key := range blobKeys {
		entry, err := m.idx.Get(key)
		if err != nil || entry != nil {
			continue
		}
		if err := m.blob.Delete(key); err != nil {
			m.log.Warn("cleanup: failed to remove orphaned blob",
				slog.String("key", key), slog.Any("error", err))
			continue
		}
		m.log.Info("cleanup: removed orphaned blob", slog.String("key", key))
	}
}
