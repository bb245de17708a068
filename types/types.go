package types

import (
	"strings"
	"time"
)

// RecordType is a DNS record type this program knows how to manage
type RecordType string

const (
	A     RecordType = "A"
	AAAA  RecordType = "AAAA"
	CNAME RecordType = "CNAME"
	TXT   RecordType = "TXT"
	MX    RecordType = "MX"
)

// PublicIP is the content placeholder that resolves to the current public address at apply time
const PublicIP = "public_ip"

// ParseRecordType normalizes a record type and reports whether it is one of the supported types
func ParseRecordType(value string) (RecordType, bool) {
	recordType := RecordType(strings.ToUpper(strings.TrimSpace(value)))
	switch recordType {
	case A, AAAA, CNAME, TXT, MX:
		return recordType, true
	default:
		return recordType, false
	}
}

// IsAddress reports whether the record type holds an IP address
func (t RecordType) IsAddress() bool {
	return t == A || t == AAAA
}

// RecordKey identifies a record at the provider
type RecordKey struct {
	Name string
	Type RecordType
}

func (k RecordKey) String() string {
	return k.Name + "/" + string(k.Type)
}

// DesiredRecord is the record state an entity asks for through its metadata.
// A TTL of 0 and a nil Proxied mean the field was left to the provider.
type DesiredRecord struct {
	Hostname string     `json:"hostname"`
	Type     RecordType `json:"type"`
	Content  string     `json:"content"`
	TTL      int        `json:"ttl,omitempty"`
	Proxied  *bool      `json:"proxied,omitempty"`
}

// Key returns the identity of the record
func (r *DesiredRecord) Key() RecordKey {
	return RecordKey{Name: r.Hostname, Type: r.Type}
}

// UsesPublicIP reports whether the content still needs to be resolved to the public address
func (r *DesiredRecord) UsesPublicIP() bool {
	return r.Content == PublicIP
}

// ObservedRecord is a record as currently stored at the provider
type ObservedRecord struct {
	ID      string     `json:"id"`
	Type    RecordType `json:"type"`
	Name    string     `json:"name"`
	Content string     `json:"content"`
	TTL     int        `json:"ttl"`
	Proxied *bool      `json:"proxied,omitempty"`
}

// Record is the payload written to the provider on create or update
type Record struct {
	Name    string     `json:"name"`
	Type    RecordType `json:"type"`
	Content string     `json:"content"`
	TTL     int        `json:"ttl,omitempty"`
	Proxied *bool      `json:"proxied,omitempty"`
}

// Key returns the identity of the record
func (r *Record) Key() RecordKey {
	return RecordKey{Name: r.Name, Type: r.Type}
}

// Entity is a container together with the metadata attached to it
type Entity struct {
	ID       string
	Name     string
	Metadata map[string]string
}

// CachedAddress is the last public address seen for one address family
type CachedAddress struct {
	Family    RecordType `json:"family"`
	Value     string     `json:"value"`
	CheckedAt time.Time  `json:"checked_at"`
}

// Bool returns a pointer to b
func Bool(b bool) *bool {
	return &b
}
