package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// DBFile is the database file name inside the state directory.
const DBFile = "parley.db"

var (
	// Bucket names
	bucketChecks   = []byte("checks")
	bucketInstalls = []byte("installs")
)

// BoltStore implements Store using BoltDB
type BoltStore struct {
	db  *bolt.DB
	now func() time.Time
}

// NewBoltStore opens (creating if needed) the database in dataDir. It waits
// at most a second for another process holding the file lock.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DBFile)
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketChecks, bucketInstalls} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &BoltStore{db: db, now: time.Now}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// SaveCheckResults implements Store.
func (s *BoltStore) SaveCheckResults(records []CheckRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketChecks); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		b, err := tx.CreateBucket(bucketChecks)
		if err != nil {
			return err
		}
		for _, r := range records {
			data, err := json.Marshal(r)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(r.Component), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadCheckResults implements Store. Records come back sorted by component.
func (s *BoltStore) LoadCheckResults() ([]CheckRecord, error) {
	var records []CheckRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketChecks).ForEach(func(_, v []byte) error {
			var r CheckRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			records = append(records, r)
			return nil
		})
	})
	return records, err
}

// RecordInstall implements Store.
func (s *BoltStore) RecordInstall(record *InstallRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.At.IsZero() {
		record.At = s.now().UTC()
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketInstalls).Put(installKey(record), data)
	})
}

// ListInstalls implements Store.
func (s *BoltStore) ListInstalls(limit int) ([]*InstallRecord, error) {
	var records []*InstallRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketInstalls).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var r InstallRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			records = append(records, &r)
			if limit > 0 && len(records) == limit {
				break
			}
		}
		return nil
	})
	return records, err
}

// installKey orders history by time, with the ID breaking ties.
func installKey(r *InstallRecord) []byte {
	return []byte(fmt.Sprintf("%020d-%s", r.At.UnixNano(), r.ID))
}
