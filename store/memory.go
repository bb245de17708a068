package store

import (
	"github.com/SIGTERM-015/dnsfik/types"
	memdb "github.com/hashicorp/go-memdb"
	"go.uber.org/zap"
)

const tableName = "public-address"

// MemoryStore implements the Store interface using an ephemeral in memory database
type MemoryStore struct {
	db     *memdb.MemDB
	logger *zap.SugaredLogger
}

// NewMemoryStore returns a new instance of a MemoryStore
func NewMemoryStore(logger *zap.SugaredLogger) (*MemoryStore, error) {
	schema := &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableName: {
				Name: tableName,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Family"},
					},
				},
			},
		},
	}

	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{db: db, logger: logger.Named("memory-store")}, nil
}

// CleanUp is a no-op for the MemoryStore
func (*MemoryStore) CleanUp() {}

// GetAddress returns a copy of the cached address for the family
func (store *MemoryStore) GetAddress(family types.RecordType) (*types.CachedAddress, error) {
	txn := store.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tableName, "id", string(family))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	address := *raw.(*types.CachedAddress)
	return &address, nil
}

// PutAddress inserts or replaces the cached address of a family
func (store *MemoryStore) PutAddress(address *types.CachedAddress) error {
	txn := store.db.Txn(true)
	defer txn.Abort()

	stored := *address
	if err := txn.Insert(tableName, &stored); err != nil {
		return err
	}
	txn.Commit()
	store.logger.Debugw("Stored public address", "address", address)
	return nil
}
