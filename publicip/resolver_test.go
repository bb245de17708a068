package publicip

import (
	"context"
	"errors"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SIGTERM-015/dnsfik/store"
	"github.com/SIGTERM-015/dnsfik/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeSource struct {
	name   string
	answer string
	err    error
	calls  atomic.Int32
}

func (s *fakeSource) String() string { return s.name }

func (s *fakeSource) Lookup(ctx context.Context) (netip.Addr, error) {
	s.calls.Add(1)
	if s.err != nil {
		return netip.Addr{}, s.err
	}
	return netip.ParseAddr(s.answer)
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func newTestResolver(t *testing.T, config Config) (*Resolver, *testClock) {
	logger := zaptest.NewLogger(t).Sugar()
	cache, err := store.NewMemoryStore(logger)
	require.NoError(t, err)

	clock := &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	resolver := NewResolver(config, cache, logger)
	resolver.now = clock.Now
	return resolver, clock
}

var errDown = errors.New("source down")

func TestResolvePrimary(t *testing.T) {
	primary := &fakeSource{name: "primary", answer: "203.0.113.1"}
	secondary := &fakeSource{name: "secondary", answer: "203.0.113.9"}
	resolver, _ := newTestResolver(t, Config{V4Primary: primary, V4Secondary: []Source{secondary}})

	address, err := resolver.Resolve(context.Background(), types.A)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.1", address)
	assert.Equal(t, int32(0), secondary.calls.Load())
}

func TestResolveUsesFreshCache(t *testing.T) {
	primary := &fakeSource{name: "primary", answer: "203.0.113.1"}
	resolver, clock := newTestResolver(t, Config{V4Primary: primary})

	_, err := resolver.Resolve(context.Background(), types.A)
	require.NoError(t, err)

	clock.now = clock.now.Add(4 * time.Minute)
	primary.answer = "203.0.113.2"
	address, err := resolver.Resolve(context.Background(), types.A)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.1", address)
	assert.Equal(t, int32(1), primary.calls.Load())

	// Should refresh once the freshness window has passed
	clock.now = clock.now.Add(2 * time.Minute)
	address, err = resolver.Resolve(context.Background(), types.A)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.2", address)
	assert.Equal(t, int32(2), primary.calls.Load())
}

func TestResolveSecondary(t *testing.T) {
	cases := []struct {
		name        string
		secondaries []Source
		expected    string
		expectedErr error
	}{
		{
			name: "Should accept agreeing secondary sources",
			secondaries: []Source{
				&fakeSource{name: "one", answer: "203.0.113.5"},
				&fakeSource{name: "two", answer: "203.0.113.5"},
			},
			expected: "203.0.113.5",
		},
		{
			name: "Should fail when the secondary sources disagree",
			secondaries: []Source{
				&fakeSource{name: "one", answer: "203.0.113.5"},
				&fakeSource{name: "two", answer: "203.0.113.6"},
			},
			expectedErr: ErrSourcesDisagree,
		},
		{
			name: "Should fail when a secondary source fails",
			secondaries: []Source{
				&fakeSource{name: "one", answer: "203.0.113.5"},
				&fakeSource{name: "two", err: errDown},
			},
			expectedErr: errDown,
		},
		{
			name: "Should reject IPv6 answers for IPv4",
			secondaries: []Source{
				&fakeSource{name: "one", answer: "2001:db8::1"},
				&fakeSource{name: "two", answer: "2001:db8::1"},
			},
			expectedErr: nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			primary := &fakeSource{name: "primary", err: errDown}
			resolver, _ := newTestResolver(t, Config{V4Primary: primary, V4Secondary: tc.secondaries})

			address, err := resolver.Resolve(context.Background(), types.A)
			if tc.expected != "" {
				require.NoError(t, err)
				assert.Equal(t, tc.expected, address)
				return
			}
			require.Error(t, err)
			assert.True(t, IsCritical(err))
			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
			}
		})
	}
}

func TestResolveStaleFallback(t *testing.T) {
	primary := &fakeSource{name: "primary", answer: "203.0.113.1"}
	resolver, clock := newTestResolver(t, Config{V4Primary: primary})

	_, err := resolver.Resolve(context.Background(), types.A)
	require.NoError(t, err)

	clock.now = clock.now.Add(time.Hour)
	primary.err = errDown
	address, err := resolver.Resolve(context.Background(), types.A)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.1", address)
}

func TestResolveDisagreementSkipsStaleFallback(t *testing.T) {
	primary := &fakeSource{name: "primary", answer: "203.0.113.1"}
	resolver, clock := newTestResolver(t, Config{
		V4Primary: primary,
		V4Secondary: []Source{
			&fakeSource{name: "one", answer: "203.0.113.5"},
			&fakeSource{name: "two", answer: "203.0.113.6"},
		},
	})

	_, err := resolver.Resolve(context.Background(), types.A)
	require.NoError(t, err)

	clock.now = clock.now.Add(time.Hour)
	primary.err = errDown
	_, err = resolver.Resolve(context.Background(), types.A)
	assert.ErrorIs(t, err, ErrSourcesDisagree)
}

func TestResolveIPv6(t *testing.T) {
	v4 := &fakeSource{name: "v4", answer: "203.0.113.1"}
	v6 := &fakeSource{name: "v6", err: errDown}
	resolver, _ := newTestResolver(t, Config{V4Primary: v4, V6Primary: v6})

	_, err := resolver.Resolve(context.Background(), types.AAAA)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoIPv6)
	assert.False(t, IsCritical(err))

	// A failing IPv6 lookup must not touch the IPv4 cache
	address, err := resolver.Resolve(context.Background(), types.A)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.1", address)

	v6.err = nil
	v6.answer = "2001:db8::1"
	address, err = resolver.Resolve(context.Background(), types.AAAA)
	require.NoError(t, err)
	assert.Equal(t, "2001:db8::1", address)
}

func TestResolveFamiliesAreIndependent(t *testing.T) {
	v4 := &fakeSource{name: "v4", answer: "203.0.113.1"}
	v6 := &fakeSource{name: "v6", answer: "2001:db8::1"}
	resolver, clock := newTestResolver(t, Config{V4Primary: v4, V6Primary: v6})

	_, err := resolver.Resolve(context.Background(), types.A)
	require.NoError(t, err)

	clock.now = clock.now.Add(3 * time.Minute)
	_, err = resolver.Resolve(context.Background(), types.AAAA)
	require.NoError(t, err)

	// Only the IPv4 entry is stale now
	clock.now = clock.now.Add(3 * time.Minute)
	_, err = resolver.Resolve(context.Background(), types.A)
	require.NoError(t, err)
	_, err = resolver.Resolve(context.Background(), types.AAAA)
	require.NoError(t, err)

	assert.Equal(t, int32(2), v4.calls.Load())
	assert.Equal(t, int32(1), v6.calls.Load())
}

func TestResolveUnsupportedFamily(t *testing.T) {
	resolver, _ := newTestResolver(t, Config{})
	_, err := resolver.Resolve(context.Background(), types.CNAME)
	assert.ErrorIs(t, err, ErrUnsupportedFamily)
}
