package dns

import (
	"context"
	"strings"

	"github.com/SIGTERM-015/dnsfik/types"
	"golang.org/x/net/publicsuffix"
)

// Provider reads and writes single records, identified by (name, type), at a DNS provider
type Provider interface {
	// Get returns the record with the given name and type, or nil if there is none
	Get(ctx context.Context, name string, recordType types.RecordType) (*types.ObservedRecord, error)
	// Create adds a record and returns its provider id
	Create(ctx context.Context, record types.Record) (string, error)
	// Update overwrites the record with the given provider id
	Update(ctx context.Context, id string, record types.Record) error
}

// getZoneName returns the registrable domain a hostname belongs to,
// falling back to the last two labels for names outside the public suffix list
func getZoneName(hostname string) string {
	hostname = strings.TrimSuffix(strings.ToLower(hostname), ".")
	if zone, err := publicsuffix.EffectiveTLDPlusOne(hostname); err == nil {
		return zone
	}
	parts := strings.Split(hostname, ".")
	if len(parts) > 2 {
		parts = parts[len(parts)-2:]
	}
	return strings.Join(parts, ".")
}
