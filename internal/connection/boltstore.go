package connection

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const stateBucket = "envlink_state"

// BoltKV is the durable KV scope backed by a bbolt database file.
// The database is opened per operation so concurrent envlink invocations
// fail fast on the file lock instead of corrupting state.
type BoltKV struct {
	path string
}

// NewBoltKV builds a bolt-backed store at the given database path.
func NewBoltKV(path string) *BoltKV {
	return &BoltKV{path: path}
}

func (s *BoltKV) open(timeout time.Duration) (*bolt.DB, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return nil, fmt.Errorf("bolt store: create dir failed: %w", err)
	}
	db, err := bolt.Open(s.path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("bolt store: open failed: %w", err)
	}
	return db, nil
}

// Get reads the value stored under key.
func (s *BoltKV) Get(key string) ([]byte, bool, error) {
	db, err := s.open(time.Second)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		_ = db.Close()
	}()
	var out []byte
	var found bool
	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(stateBucket))
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			out = append([]byte(nil), v...)
			found = true
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, found, nil
}

// Set writes the value under key, creating the bucket on first use.
func (s *BoltKV) Set(key string, value []byte) error {
	db, err := s.open(2 * time.Second)
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()
	return db.Update(func(tx *bolt.Tx) error {
		b, errCreateBucket := tx.CreateBucketIfNotExists([]byte(stateBucket))
		if errCreateBucket != nil {
			return errCreateBucket
		}
		return b.Put([]byte(key), value)
	})
}

// Unset removes key from the bucket. A missing bucket or key is a no-op.
func (s *BoltKV) Unset(key string) error {
	db, err := s.open(2 * time.Second)
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()
	return db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(stateBucket))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}
