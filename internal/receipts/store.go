// Package receipts persists storage receipts so records can be
// retrieved later without the caller holding on to the salt and hash
// themselves.
package receipts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/medsecure/vault/pkg/vault"
)

var bucketReceipts = []byte("receipts")

// ErrReceiptNotFound is returned when no receipt exists for a content
// identifier.
var ErrReceiptNotFound = errors.New("receipt not found")

// Store wraps a bbolt database holding one receipt per content
// identifier.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the receipt database at dbPath. The parent
// directory is created if it does not exist.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("receipts: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("receipts: open db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketReceipts)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("receipts: create bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Put stores a receipt keyed by its content identifier. An existing
// receipt for the same CID is overwritten.
func (s *Store) Put(receipt *vault.Receipt) error {
	if receipt == nil {
		return fmt.Errorf("receipts: receipt cannot be nil")
	}
	if err := receipt.Validate(); err != nil {
		return fmt.Errorf("receipts: %w", err)
	}

	data, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("receipts: encode receipt: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketReceipts).Put([]byte(receipt.CID), data); err != nil {
			return fmt.Errorf("receipts: put receipt: %w", err)
		}
		return nil
	})
}

// Get retrieves the receipt for a content identifier.
func (s *Store) Get(cid string) (*vault.Receipt, error) {
	if cid == "" {
		return nil, fmt.Errorf("receipts: cid cannot be empty")
	}

	var receipt vault.Receipt
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketReceipts).Get([]byte(cid))
		if data == nil {
			return ErrReceiptNotFound
		}
		if err := json.Unmarshal(data, &receipt); err != nil {
			return fmt.Errorf("receipts: decode receipt: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

// List returns all stored receipts in key order.
func (s *Store) List() ([]*vault.Receipt, error) {
	var out []*vault.Receipt
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketReceipts).ForEach(func(k, v []byte) error {
			var receipt vault.Receipt
			if err := json.Unmarshal(v, &receipt); err != nil {
				return fmt.Errorf("receipts: decode receipt in list: %w", err)
			}
			out = append(out, &receipt)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the receipt for a content identifier.
func (s *Store) Delete(cid string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketReceipts)
		if b.Get([]byte(cid)) == nil {
			return ErrReceiptNotFound
		}
		if err := b.Delete([]byte(cid)); err != nil {
			return fmt.Errorf("receipts: delete receipt: %w", err)
		}
		return nil
	})
}
