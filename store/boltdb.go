package store

import (
	"encoding/json"
	"path/filepath"

	"github.com/SIGTERM-015/dnsfik/types"
	"github.com/boltdb/bolt"
	"go.uber.org/zap"
)

const bucketName = "public-address"

// BoltDBStore implements the Store interface using a persistant BoltDB instance
// Cached addresses survive a restart and can serve as a fallback when every source fails
type BoltDBStore struct {
	db     *bolt.DB
	logger *zap.SugaredLogger
}

// NewBoltDBStore creates a BoltDBStore persisting its state in the given directory
func NewBoltDBStore(logger *zap.SugaredLogger, dataDir string) (*BoltDBStore, error) {
	db, err := bolt.Open(filepath.Join(dataDir, "dnsfik.db"), 0600, nil)
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltDBStore{db: db, logger: logger.Named("boltdb-store")}, nil
}

// CleanUp ensures any pending writes are flushed to disk
// It should be called before closing the program to ensure there is no dataloss
func (store *BoltDBStore) CleanUp() {
	store.logger.Info("Close boltdb connection")
	if err := store.db.Close(); err != nil {
		store.logger.Errorw("Failed to close boltdb", "err", err)
	}
}

// GetAddress returns the cached address for the family
func (store *BoltDBStore) GetAddress(family types.RecordType) (*types.CachedAddress, error) {
	var address *types.CachedAddress
	err := store.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(bucketName)).Get([]byte(family))
		if raw == nil {
			return nil
		}
		address = &types.CachedAddress{}
		return json.Unmarshal(raw, address)
	})
	if err != nil {
		return nil, err
	}
	return address, nil
}

// PutAddress inserts or replaces the cached address of a family
func (store *BoltDBStore) PutAddress(address *types.CachedAddress) error {
	payload, err := json.Marshal(address)
	if err != nil {
		return err
	}
	return store.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(address.Family), payload)
	})
}
