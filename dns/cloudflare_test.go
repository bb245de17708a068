package dns

import (
	"testing"

	"github.com/SIGTERM-015/dnsfik/types"
	cloudflare "github.com/cloudflare/cloudflare-go"
	"github.com/stretchr/testify/assert"
)

func TestToObserved(t *testing.T) {
	input := cloudflare.DNSRecord{
		ID:      "372e67954025e0ba6aaa6d586b9e0b59",
		Type:    "AAAA",
		Name:    "app.example.com",
		Content: "2001:db8::1",
		TTL:     120,
		Proxied: types.Bool(false),
	}
	expected := types.ObservedRecord{
		ID:      "372e67954025e0ba6aaa6d586b9e0b59",
		Type:    types.AAAA,
		Name:    "app.example.com",
		Content: "2001:db8::1",
		TTL:     120,
		Proxied: types.Bool(false),
	}
	assert.Equal(t, expected, toObserved(input))
}

func TestCreateParams(t *testing.T) {
	cases := []struct {
		name     string
		input    types.Record
		expected cloudflare.CreateDNSRecordParams
	}{
		{
			name:  "Should copy every field of an A record",
			input: types.Record{Name: "app.example.com", Type: types.A, Content: "203.0.113.1", TTL: 1, Proxied: types.Bool(true)},
			expected: cloudflare.CreateDNSRecordParams{
				Type: "A", Name: "app.example.com", Content: "203.0.113.1", TTL: 1, Proxied: types.Bool(true),
			},
		},
		{
			name:  "Should leave out unset proxied and ttl",
			input: types.Record{Name: "example.com", Type: types.TXT, Content: "v=spf1 -all"},
			expected: cloudflare.CreateDNSRecordParams{
				Type: "TXT", Name: "example.com", Content: "v=spf1 -all",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, createParams(tc.input))
		})
	}
}

func TestMXPriority(t *testing.T) {
	record := types.Record{Name: "example.com", Type: types.MX, Content: "mail.example.com"}

	created := createParams(record)
	if assert.NotNil(t, created.Priority) {
		assert.Equal(t, uint16(10), *created.Priority)
	}

	updated := updateParams("abc", record)
	assert.Equal(t, "abc", updated.ID)
	if assert.NotNil(t, updated.Priority) {
		assert.Equal(t, uint16(10), *updated.Priority)
	}
}
