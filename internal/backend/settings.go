package backend

import (
	"fmt"
	"os"

	bolt "go.etcd.io/bbolt"
)

// Bucket names. The settings database also hosts the metadata index and
// store-level configuration; the buckets other than "settings" are managed
// by their owning packages through DB().
var (
	SettingsBucket = []byte("settings") // payloads routed to the settings store
	MetaBucket     = []byte("meta")     // store id, KDF salt and iterations
)

// Settings is the bbolt-backed small-value store. It owns the database
// file shared with the metadata index.
type Settings struct {
	db *bolt.DB
}

// OpenSettings opens or creates the settings database at path.
func OpenSettings(path string) (*Settings, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{SettingsBucket, MetaBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Settings{db: db}, nil
}

// DB exposes the underlying database for co-located stores (the metadata
// index persists in the same file).
func (s *Settings) DB() *bolt.DB {
	return s.db
}

// Close closes the database.
func (s *Settings) Close() error {
	return s.db.Close()
}

func (s *Settings) Name() string { return "settings" }

func (s *Settings) Put(key string, data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(SettingsBucket).Put([]byte(key), data)
	})
}

func (s *Settings) Get(key string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(SettingsBucket).Get([]byte(key))
		if v == nil {
			return ErrKeyNotFound
		}
		// Copy: the slice is only valid during the transaction
		data = append([]byte(nil), v...)
		return nil
	})
	return data, err
}

func (s *Settings) Has(key string) (bool, error) {
	var present bool
	err := s.db.View(func(tx *bolt.Tx) error {
		present = tx.Bucket(SettingsBucket).Get([]byte(key)) != nil
		return nil
	})
	return present, err
}

func (s *Settings) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(SettingsBucket).Delete([]byte(key))
	})
}

func (s *Settings) Keys() ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(SettingsBucket).ForEach(func(k, v []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

func (s *Settings) Clear() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(SettingsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(SettingsBucket)
		return err
	})
}

// GetMeta retrieves a store-level configuration value, or nil if absent.
func (s *Settings) GetMeta(key string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(MetaBucket).Get([]byte(key)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	return data, err
}

// SetMeta stores a store-level configuration value.
func (s *Settings) SetMeta(key string, data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(MetaBucket).Put([]byte(key), data)
	})
}

// Compact rewrites the database into a fresh file, reclaiming space freed
// by deletions, then atomically swaps it in and reopens.
func (s *Settings) Compact() error {
	srcPath := s.db.Path()
	tmpPath := srcPath + ".compact"

	dst, err := bolt.Open(tmpPath, 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to create compact database: %w", err)
	}

	err = s.db.View(func(srcTx *bolt.Tx) error {
		return dst.Update(func(dstTx *bolt.Tx) error {
			return srcTx.ForEach(func(name []byte, srcBucket *bolt.Bucket) error {
				dstBucket, err := dstTx.CreateBucketIfNotExists(name)
				if err != nil {
					return err
				}
				return srcBucket.ForEach(func(k, v []byte) error {
					return dstBucket.Put(k, v)
				})
			})
		})
	})
	if err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to copy data: %w", err)
	}

	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close compact database: %w", err)
	}
	if err := s.db.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close source database: %w", err)
	}

	backupPath := srcPath + ".backup"
	if err := os.Rename(srcPath, backupPath); err != nil {
		return fmt.Errorf("failed to backup original: %w", err)
	}
	if err := os.Rename(tmpPath, srcPath); err != nil {
		os.Rename(backupPath, srcPath) // rollback
		return fmt.Errorf("failed to replace database: %w", err)
	}
	os.Remove(backupPath)

	s.db, err = bolt.Open(srcPath, 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to reopen database: %w", err)
	}
	return nil
}
