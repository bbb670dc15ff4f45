package database

import (
	"fmt"

	"go.etcd.io/bbolt"
)

// BoltKVStore provides simple kv store interface based on boltdb.
type BoltKVStore struct {
	db         *bbolt.DB
	bucketName []byte
}

// NewBoltKVStore creates new BoltKVStore instance.
func NewBoltKVStore(dbPath string, bucketName string) (*BoltKVStore, error) {
	db, err := bbolt.Open(dbPath, 0666, nil)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketName)); err != nil {
			return err
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating database bucket: %w", err)
	}

	return &BoltKVStore{
		db:         db,
		bucketName: []byte(bucketName),
	}, nil
}

// ReadKey returns data saved for given key. Returns null if there's no data stored.
func (s *BoltKVStore) ReadKey(key []byte) ([]byte, error) {
	var data []byte
	if err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucketName)
		if v := b.Get(key); v != nil {
			// Bolt values are valid only inside the transaction.
			data = append([]byte(nil), v...)
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("reading from db: %w", err)
	}

	return data, nil
}

// UpdateKey stores given data under given key.
func (s *BoltKVStore) UpdateKey(key []byte, data []byte) error {
	if err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucketName)
		return b.Put(key, data)
	}); err != nil {
		return fmt.Errorf("writing to db: %w", err)
	}

	return nil
}

// DeleteKey removes data stored under given key. Missing keys are ignored.
func (s *BoltKVStore) DeleteKey(key []byte) error {
	if err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucketName)
		return b.Delete(key)
	}); err != nil {
		return fmt.Errorf("deleting from db: %w", err)
	}

	return nil
}

// Keys returns all keys stored in the bucket, in byte-sorted order.
func (s *BoltKVStore) Keys() ([][]byte, error) {
	var keys [][]byte
	if err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucketName)
		return b.ForEach(func(k, _ []byte) error {
			keys = append(keys, append([]byte(nil), k...))
			return nil
		})
	}); err != nil {
		return nil, fmt.Errorf("listing db keys: %w", err)
	}

	return keys, nil
}

// Close closes database.
func (s *BoltKVStore) Close() error {
	return s.db.Close()
}
