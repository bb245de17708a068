package dns

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/SIGTERM-015/dnsfik/types"
	"go.uber.org/zap"
)

// DryrunProvider keeps an in memory zone and logs the changes that would be made
type DryrunProvider struct {
	logger *zap.SugaredLogger

	mu     sync.Mutex
	nextID int
	zone   map[types.RecordKey]*types.ObservedRecord
}

// NewDryrunProvider returns a DryrunProvider with an empty zone
func NewDryrunProvider(logger *zap.SugaredLogger) (*DryrunProvider, error) {
	return &DryrunProvider{
		logger: logger.Named("dryrun-dns"),
		zone:   map[types.RecordKey]*types.ObservedRecord{},
	}, nil
}

func dryrunKey(name string, recordType types.RecordType) types.RecordKey {
	return types.RecordKey{Name: strings.ToLower(name), Type: recordType}
}

// Get returns a copy of the record stored for name and type
func (provider *DryrunProvider) Get(ctx context.Context, name string, recordType types.RecordType) (*types.ObservedRecord, error) {
	provider.mu.Lock()
	defer provider.mu.Unlock()

	record, ok := provider.zone[dryrunKey(name, recordType)]
	if !ok {
		return nil, nil
	}
	observed := *record
	return &observed, nil
}

// Create stores the record, failing if one with the same name and type exists
func (provider *DryrunProvider) Create(ctx context.Context, record types.Record) (string, error) {
	provider.mu.Lock()
	defer provider.mu.Unlock()

	key := dryrunKey(record.Name, record.Type)
	if _, ok := provider.zone[key]; ok {
		return "", fmt.Errorf("record %s already exists", key)
	}
	provider.nextID++
	id := fmt.Sprintf("dryrun-%d", provider.nextID)
	provider.zone[key] = &types.ObservedRecord{
		ID:      id,
		Type:    record.Type,
		Name:    record.Name,
		Content: record.Content,
		TTL:     record.TTL,
		Proxied: record.Proxied,
	}
	provider.logger.Infow("Dryrun - Created record", "id", id, "record", record)
	return id, nil
}

// Update overwrites the record with the given id
func (provider *DryrunProvider) Update(ctx context.Context, id string, record types.Record) error {
	provider.mu.Lock()
	defer provider.mu.Unlock()

	for key, existing := range provider.zone {
		if existing.ID != id {
			continue
		}
		delete(provider.zone, key)
		provider.zone[dryrunKey(record.Name, record.Type)] = &types.ObservedRecord{
			ID:      id,
			Type:    record.Type,
			Name:    record.Name,
			Content: record.Content,
			TTL:     record.TTL,
			Proxied: record.Proxied,
		}
		provider.logger.Infow("Dryrun - Updated record", "id", id, "record", record)
		return nil
	}
	return fmt.Errorf("no record with id %s", id)
}
