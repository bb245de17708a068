package store

import (
	"github.com/SIGTERM-015/dnsfik/types"
)

// Store persists the last public address observed for each address family
type Store interface {
	// CleanUp ensures any pending operations on the store are executed before closing down
	CleanUp()
	// GetAddress returns the cached address for the family, or nil if none was ever stored
	GetAddress(family types.RecordType) (*types.CachedAddress, error)
	// PutAddress replaces the cached address for address.Family
	PutAddress(address *types.CachedAddress) error
}
