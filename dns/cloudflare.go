package dns

import (
	"context"
	"fmt"
	"sync"

	"github.com/SIGTERM-015/dnsfik/types"
	cloudflare "github.com/cloudflare/cloudflare-go"
	"go.uber.org/zap"
)

// mxPriority is sent with every MX record, the metadata has no way to set it
const mxPriority uint16 = 10

// CloudflareProvider implements the Provider interface for Cloudflare
type CloudflareProvider struct {
	API    *cloudflare.API
	logger *zap.SugaredLogger

	mu    sync.Mutex
	zones map[string]string
}

// NewCloudflareProvider generates a CloudflareProvider using the given credentials.
// Without an email the secret is used as an API token, otherwise as the global API key.
func NewCloudflareProvider(email string, secret string, logger *zap.SugaredLogger) (*CloudflareProvider, error) {
	var api *cloudflare.API
	var err error
	if email == "" {
		api, err = cloudflare.NewWithAPIToken(secret)
	} else {
		api, err = cloudflare.New(secret, email)
	}
	if err != nil {
		return nil, err
	}
	return newCloudflareProvider(api, logger), nil
}

func newCloudflareProvider(api *cloudflare.API, logger *zap.SugaredLogger) *CloudflareProvider {
	return &CloudflareProvider{
		API:    api,
		logger: logger.Named("cloudflare-dns"),
		zones:  map[string]string{},
	}
}

// Get returns the first record matching name and type
func (provider *CloudflareProvider) Get(ctx context.Context, name string, recordType types.RecordType) (*types.ObservedRecord, error) {
	zone, err := provider.zone(name)
	if err != nil {
		return nil, err
	}
	records, _, err := provider.API.ListDNSRecords(ctx, zone, cloudflare.ListDNSRecordsParams{Name: name, Type: string(recordType)})
	if err != nil {
		return nil, fmt.Errorf("list %s records for %s: %w", recordType, name, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	if len(records) > 1 {
		provider.logger.Warnw("Multiple records exist, managing the first", "name", name, "type", recordType, "count", len(records))
	}
	observed := toObserved(records[0])
	return &observed, nil
}

// Create adds a new record in the zone of the hostname
func (provider *CloudflareProvider) Create(ctx context.Context, record types.Record) (string, error) {
	provider.logger.Infow("Creating record", "record", record)
	zone, err := provider.zone(record.Name)
	if err != nil {
		return "", err
	}
	created, err := provider.API.CreateDNSRecord(ctx, zone, createParams(record))
	if err != nil {
		return "", fmt.Errorf("create %s record %s: %w", record.Type, record.Name, err)
	}
	return created.ID, nil
}

// Update overwrites an existing record
func (provider *CloudflareProvider) Update(ctx context.Context, id string, record types.Record) error {
	provider.logger.Infow("Updating record", "id", id, "record", record)
	zone, err := provider.zone(record.Name)
	if err != nil {
		return err
	}
	if _, err := provider.API.UpdateDNSRecord(ctx, zone, updateParams(id, record)); err != nil {
		return fmt.Errorf("update %s record %s: %w", record.Type, record.Name, err)
	}
	return nil
}

// zone looks up the zone identifier for a hostname, caching the answer
func (provider *CloudflareProvider) zone(hostname string) (*cloudflare.ResourceContainer, error) {
	zoneName := getZoneName(hostname)

	provider.mu.Lock()
	defer provider.mu.Unlock()

	zoneID, ok := provider.zones[zoneName]
	if !ok {
		var err error
		zoneID, err = provider.API.ZoneIDByName(zoneName)
		if err != nil {
			return nil, fmt.Errorf("lookup zone %s: %w", zoneName, err)
		}
		provider.zones[zoneName] = zoneID
	}
	return cloudflare.ZoneIdentifier(zoneID), nil
}

func toObserved(record cloudflare.DNSRecord) types.ObservedRecord {
	return types.ObservedRecord{
		ID:      record.ID,
		Type:    types.RecordType(record.Type),
		Name:    record.Name,
		Content: record.Content,
		TTL:     record.TTL,
		Proxied: record.Proxied,
	}
}

func priority(record types.Record) *uint16 {
	if record.Type != types.MX {
		return nil
	}
	value := mxPriority
	return &value
}

func createParams(record types.Record) cloudflare.CreateDNSRecordParams {
	return cloudflare.CreateDNSRecordParams{
		Type:     string(record.Type),
		Name:     record.Name,
		Content:  record.Content,
		TTL:      record.TTL,
		Proxied:  record.Proxied,
		Priority: priority(record),
	}
}

func updateParams(id string, record types.Record) cloudflare.UpdateDNSRecordParams {
	return cloudflare.UpdateDNSRecordParams{
		ID:       id,
		Type:     string(record.Type),
		Name:     record.Name,
		Content:  record.Content,
		TTL:      record.TTL,
		Proxied:  record.Proxied,
		Priority: priority(record),
	}
}
