package storage

import (
	"fmt"

	"github.com/boltdb/bolt"
)

// BoltStore is an implementation of Store whose backend is a Bolt database.
type BoltStore bolt.DB

var (
	bucketName = []byte("data")
)

func NewBoltStore(db *bolt.DB) (*BoltStore, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return fmt.Errorf("could not ensure bucket %q exists: %w", bucketName, err)
		}
		return nil
	})
	return (*BoltStore)(db), err
}

func (s *BoltStore) Put(key []byte, value []byte) error {
	return (*bolt.DB)(s).Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketName).Put(key, value); err != nil {
			return fmt.Errorf("could not put %.40q with %.40q: %w", key, value, err)
		}
		return nil
	})
}

func (s *BoltStore) Get(key []byte) (value []byte, err error) {
	err = (*bolt.DB)(s).View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get(key)
		if v == nil {
			return fmt.Errorf("%.40q: %w", key, ErrNotFound)
		}
		// Bolt values are only valid for the life of the transaction.
		value = make([]byte, len(v))
		copy(value, v)
		return nil
	})
	return value, err
}

func (s *BoltStore) Delete(key []byte) (removed bool, err error) {
	err = (*bolt.DB)(s).Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b.Get(key) == nil {
			return nil
		}
		if err := b.Delete(key); err != nil {
			return fmt.Errorf("could not delete %.40q: %w", key, err)
		}
		removed = true
		return nil
	})
	return removed, err
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return (*bolt.DB)(s).Close()
}
