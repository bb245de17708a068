// Package publicip determines the public IPv4 and IPv6 address of this host.
// Answers are cached per family; a cached answer older than the freshness window
// triggers a refresh but still serves as a fallback when every source fails.
package publicip

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/SIGTERM-015/dnsfik/store"
	"github.com/SIGTERM-015/dnsfik/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultFreshness is how long a resolved address is used without asking the sources again
const DefaultFreshness = 5 * time.Minute

var (
	// ErrSourcesDisagree is returned when the secondary IPv4 sources give different answers
	ErrSourcesDisagree = errors.New("public address sources disagree")
	// ErrNoIPv6 marks an IPv6 lookup failure, which is expected on hosts without IPv6 connectivity
	ErrNoIPv6 = errors.New("no IPv6 connectivity")
	// ErrUnsupportedFamily is returned for record types that do not hold an address
	ErrUnsupportedFamily = errors.New("unsupported address family")
)

// ResolutionError is returned when no public address could be obtained for a family
type ResolutionError struct {
	Family types.RecordType
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolving public %s address: %v", e.Family, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// IsCritical reports whether a resolution failure has to be propagated.
// Only the A family is critical, a missing IPv6 address is tolerated.
func IsCritical(err error) bool {
	var resolutionErr *ResolutionError
	if errors.As(err, &resolutionErr) {
		return resolutionErr.Family != types.AAAA
	}
	return true
}

// Config lists the sources consulted per family
type Config struct {
	V4Primary Source
	// V4Secondary are queried concurrently when V4Primary fails, they must all agree
	V4Secondary []Source
	V6Primary   Source
	Freshness   time.Duration
}

// Resolver resolves and caches public addresses
type Resolver struct {
	config Config
	store  store.Store
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewResolver returns a Resolver caching its answers in the given store
func NewResolver(config Config, cache store.Store, logger *zap.SugaredLogger) *Resolver {
	if config.Freshness <= 0 {
		config.Freshness = DefaultFreshness
	}
	return &Resolver{
		config: config,
		store:  cache,
		logger: logger.Named("publicip"),
		now:    time.Now,
	}
}

// Resolve returns the public address for the family, A for IPv4 and AAAA for IPv6
func (r *Resolver) Resolve(ctx context.Context, family types.RecordType) (string, error) {
	if !family.IsAddress() {
		return "", &ResolutionError{Family: family, Err: ErrUnsupportedFamily}
	}

	cached := r.cached(family)
	if cached != nil && r.now().Sub(cached.CheckedAt) < r.config.Freshness {
		return cached.Value, nil
	}

	addr, err := r.lookup(ctx, family)
	if err != nil {
		if cached != nil && !errors.Is(err, ErrSourcesDisagree) {
			r.logger.Warnw("Using stale public address", "family", family, "address", cached.Value, "checkedAt", cached.CheckedAt, "err", err)
			return cached.Value, nil
		}
		return "", &ResolutionError{Family: family, Err: err}
	}

	value := addr.String()
	if cached == nil || cached.Value != value {
		r.logger.Infow("Resolved public address", "family", family, "address", value)
	}
	err = r.store.PutAddress(&types.CachedAddress{Family: family, Value: value, CheckedAt: r.now()})
	if err != nil {
		r.logger.Errorw("Failed to cache public address", "family", family, "err", err)
	}
	return value, nil
}

func (r *Resolver) cached(family types.RecordType) *types.CachedAddress {
	cached, err := r.store.GetAddress(family)
	if err != nil {
		r.logger.Errorw("Failed to read cached public address", "family", family, "err", err)
		return nil
	}
	if cached == nil || cached.Value == "" {
		return nil
	}
	return cached
}

func (r *Resolver) lookup(ctx context.Context, family types.RecordType) (netip.Addr, error) {
	if family == types.AAAA {
		addr, err := lookupFamily(ctx, r.config.V6Primary, family)
		if err != nil {
			return netip.Addr{}, fmt.Errorf("%w: %w", ErrNoIPv6, err)
		}
		return addr, nil
	}

	addr, err := lookupFamily(ctx, r.config.V4Primary, family)
	if err == nil {
		return addr, nil
	}
	r.logger.Warnw("Primary IPv4 source failed, asking secondary sources", "source", r.config.V4Primary, "err", err)
	return r.lookupSecondary(ctx)
}

// lookupSecondary queries every secondary source at once and only accepts a unanimous answer
func (r *Resolver) lookupSecondary(ctx context.Context) (netip.Addr, error) {
	sources := r.config.V4Secondary
	if len(sources) == 0 {
		return netip.Addr{}, errors.New("primary IPv4 source failed and no secondary sources are configured")
	}

	answers := make([]netip.Addr, len(sources))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, source := range sources {
		group.Go(func() error {
			addr, err := lookupFamily(groupCtx, source, types.A)
			if err != nil {
				return fmt.Errorf("secondary source %s: %w", source, err)
			}
			answers[i] = addr
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return netip.Addr{}, err
	}

	for i := 1; i < len(answers); i++ {
		if answers[i] != answers[0] {
			return netip.Addr{}, fmt.Errorf("%w: %s answered %s, %s answered %s",
				ErrSourcesDisagree, sources[0], answers[0], sources[i], answers[i])
		}
	}
	return answers[0], nil
}

// lookupFamily asks a single source and checks the answer belongs to the family
func lookupFamily(ctx context.Context, source Source, family types.RecordType) (netip.Addr, error) {
	if source == nil {
		return netip.Addr{}, errors.New("no source configured")
	}
	addr, err := source.Lookup(ctx)
	if err != nil {
		return netip.Addr{}, err
	}
	addr = addr.Unmap()
	if family == types.A && !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("%s returned %s, not an IPv4 address", source, addr)
	}
	if family == types.AAAA && !addr.Is6() {
		return netip.Addr{}, fmt.Errorf("%s returned %s, not an IPv6 address", source, addr)
	}
	return addr, nil
}
