package dns

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/SIGTERM-015/dnsfik/types"
	cloudflare "github.com/cloudflare/cloudflare-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeCloudflare serves the subset of the Cloudflare API used by the provider for zone example.com
type fakeCloudflare struct {
	zoneLookups atomic.Int32
	records     []cloudflare.DNSRecord
	created     []cloudflare.CreateDNSRecordParams
	updated     map[string]cloudflare.UpdateDNSRecordParams
}

func writeResult(w http.ResponseWriter, result interface{}, count int) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success":  true,
		"errors":   []interface{}{},
		"messages": []interface{}{},
		"result":   result,
		"result_info": map[string]int{
			"page":        1,
			"per_page":    100,
			"total_pages": 1,
			"count":       count,
			"total_count": count,
		},
	})
}

func (f *fakeCloudflare) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /zones", func(w http.ResponseWriter, r *http.Request) {
		f.zoneLookups.Add(1)
		assert.Equal(t, "example.com", r.URL.Query().Get("name"))
		writeResult(w, []cloudflare.Zone{{ID: "zone-1", Name: "example.com"}}, 1)
	})
	mux.HandleFunc("GET /zones/zone-1/dns_records", func(w http.ResponseWriter, r *http.Request) {
		matches := []cloudflare.DNSRecord{}
		for _, record := range f.records {
			if record.Name == r.URL.Query().Get("name") && record.Type == r.URL.Query().Get("type") {
				matches = append(matches, record)
			}
		}
		writeResult(w, matches, len(matches))
	})
	mux.HandleFunc("POST /zones/zone-1/dns_records", func(w http.ResponseWriter, r *http.Request) {
		var params cloudflare.CreateDNSRecordParams
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		f.created = append(f.created, params)
		writeResult(w, cloudflare.DNSRecord{ID: "new-id", Type: params.Type, Name: params.Name, Content: params.Content}, 1)
	})
	mux.HandleFunc("PATCH /zones/zone-1/dns_records/{id}", func(w http.ResponseWriter, r *http.Request) {
		var params cloudflare.UpdateDNSRecordParams
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		f.updated[r.PathValue("id")] = params
		writeResult(w, cloudflare.DNSRecord{ID: r.PathValue("id"), Type: params.Type, Name: params.Name, Content: params.Content}, 1)
	})
	return mux
}

func newTestCloudflareProvider(t *testing.T, fake *fakeCloudflare) *CloudflareProvider {
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)

	api, err := cloudflare.NewWithAPIToken("token", cloudflare.BaseURL(server.URL))
	require.NoError(t, err)
	return newCloudflareProvider(api, zaptest.NewLogger(t).Sugar())
}

func TestCloudflareGet(t *testing.T) {
	fake := &fakeCloudflare{
		updated: map[string]cloudflare.UpdateDNSRecordParams{},
		records: []cloudflare.DNSRecord{
			{ID: "rec-1", Type: "A", Name: "app.example.com", Content: "203.0.113.1", TTL: 1, Proxied: types.Bool(true)},
			{ID: "rec-2", Type: "A", Name: "app.example.com", Content: "203.0.113.2", TTL: 1, Proxied: types.Bool(true)},
			{ID: "rec-3", Type: "AAAA", Name: "app.example.com", Content: "2001:db8::1", TTL: 300, Proxied: types.Bool(false)},
		},
	}
	provider := newTestCloudflareProvider(t, fake)

	observed, err := provider.Get(context.Background(), "app.example.com", types.A)
	require.NoError(t, err)
	assert.Equal(t, &types.ObservedRecord{
		ID:      "rec-1",
		Type:    types.A,
		Name:    "app.example.com",
		Content: "203.0.113.1",
		TTL:     1,
		Proxied: types.Bool(true),
	}, observed)

	observed, err = provider.Get(context.Background(), "app.example.com", types.AAAA)
	require.NoError(t, err)
	require.NotNil(t, observed)
	assert.Equal(t, "rec-3", observed.ID)

	observed, err = provider.Get(context.Background(), "other.example.com", types.A)
	require.NoError(t, err)
	assert.Nil(t, observed)

	// The zone id is looked up once
	assert.Equal(t, int32(1), fake.zoneLookups.Load())
}

func TestCloudflareCreateAndUpdate(t *testing.T) {
	fake := &fakeCloudflare{updated: map[string]cloudflare.UpdateDNSRecordParams{}}
	provider := newTestCloudflareProvider(t, fake)

	id, err := provider.Create(context.Background(), types.Record{Name: "example.com", Type: types.MX, Content: "mail.example.com", TTL: 300})
	require.NoError(t, err)
	assert.Equal(t, "new-id", id)
	require.Len(t, fake.created, 1)
	assert.Equal(t, "MX", fake.created[0].Type)
	assert.Equal(t, "mail.example.com", fake.created[0].Content)
	require.NotNil(t, fake.created[0].Priority)
	assert.Equal(t, uint16(10), *fake.created[0].Priority)

	err = provider.Update(context.Background(), "rec-1", types.Record{Name: "app.example.com", Type: types.A, Content: "203.0.113.9", TTL: 1, Proxied: types.Bool(true)})
	require.NoError(t, err)
	require.Contains(t, fake.updated, "rec-1")
	assert.Equal(t, "203.0.113.9", fake.updated["rec-1"].Content)
	assert.Equal(t, types.Bool(true), fake.updated["rec-1"].Proxied)

	assert.Equal(t, int32(1), fake.zoneLookups.Load())
}
