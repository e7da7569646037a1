// Package index maintains the metadata index: one {size, timestamp} entry
// per live key, persisted in the settings database. The index is the
// enumeration surface and the source the quota total is reconciled from.
package index

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/illarion/storekit/internal/backend"
)

var metadataBucket = []byte("metadata")

// Entry records a live key's stored size and last write time.
type Entry struct {
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	Timestamp time.Time `json:"timestamp"`
}

// Index is the persistent key to metadata mapping. It shares the database
// file with the settings store.
type Index struct {
	settings *backend.Settings
}

// New creates the index bucket in the settings database if needed.
func New(settings *backend.Settings) (*Index, error) {
	err := settings.DB().Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(metadataBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata bucket: %w", err)
	}
	return &Index{settings: settings}, nil
}

// Put upserts the entry for its key.
func (ix *Index) Put(e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata entry: %w", err)
	}
	return ix.settings.DB().Update(func(tx *bolt.Tx) error {
		return tx.Bucket(metadataBucket).Put([]byte(e.Key), data)
	})
}

// Get returns the entry for key, or nil if absent.
func (ix *Index) Get(key string) (*Entry, error) {
	var entry *Entry
	err := ix.settings.DB().View(func(tx *bolt.Tx) error {
		data := tx.Bucket(metadataBucket).Get([]byte(key))
		if data == nil {
			return nil
		}
		entry = &Entry{}
		return json.Unmarshal(data, entry)
	})
	return entry, err
}

// Delete removes the entry for key. Removing an absent key is not an error.
func (ix *Index) Delete(key string) error {
	return ix.settings.DB().Update(func(tx *bolt.Tx) error {
		return tx.Bucket(metadataBucket).Delete([]byte(key))
	})
}

// All returns every entry in key order.
func (ix *Index) All() ([]Entry, error) {
	var entries []Entry
	err := ix.settings.DB().View(func(tx *bolt.Tx) error {
		return tx.Bucket(metadataBucket).ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("corrupted metadata entry %q: %w", k, err)
			}
			entries = append(entries, entry)
			return nil
		})
	})
	return entries, err
}

// TotalSize sums the recorded sizes of all entries.
func (ix *Index) TotalSize() (int64, error) {
	entries, err := ix.All()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range entries {
		total += e.Size
	}
	return total, nil
}

// Clear removes every entry.
func (ix *Index) Clear() error {
	return ix.settings.DB().Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(metadataBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(metadataBucket)
		return err
	})
}
