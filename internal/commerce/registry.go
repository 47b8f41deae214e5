package commerce

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/IDLEcreative/Omniops-sub014/pkg/logging"
)

const defaultIdleTTL = 30 * time.Minute

type handle struct {
	provider Provider
	kind     Kind
	lastUsed time.Time
}

// Registry caches one provider handle per tenant. Construction is
// single-flighted so a burst of concurrent requests for a cold tenant builds
// the handle exactly once; handles idle past the TTL are evicted by the
// sweep.
type Registry struct {
	creds   CredentialSource
	logger  logging.Logger
	idleTTL time.Duration

	mu      sync.Mutex
	handles map[string]*handle
	sf      singleflight.Group

	now func() time.Time

	// newProvider is swappable in tests to avoid real HTTP clients.
	newProvider func(kind Kind, creds Credentials) Provider
}

func NewRegistry(creds CredentialSource, logger logging.Logger, idleTTL time.Duration) *Registry {
	if idleTTL <= 0 {
		idleTTL = defaultIdleTTL
	}
	r := &Registry{
		creds:   creds,
		logger:  logger,
		idleTTL: idleTTL,
		handles: make(map[string]*handle),
		now:     time.Now,
	}
	r.newProvider = func(kind Kind, c Credentials) Provider {
		switch kind {
		case KindShopify:
			return NewShopifyProvider(c, logger)
		case KindWooCommerce:
			return NewWooCommerceProvider(c, logger)
		}
		return nil
	}
	return r
}

// GetProvider returns the tenant's commerce provider. (nil, KindNone, nil)
// means the tenant has no commerce backend configured, which callers must
// treat as a normal state.
func (r *Registry) GetProvider(ctx context.Context, tenantID string) (Provider, Kind, error) {
	if tenantID == "" {
		return nil, KindNone, errors.New("tenant id is required")
	}

	r.mu.Lock()
	if h, ok := r.handles[tenantID]; ok {
		h.lastUsed = r.now()
		r.mu.Unlock()
		return h.provider, h.kind, nil
	}
	r.mu.Unlock()

	v, err, _ := r.sf.Do(tenantID, func() (interface{}, error) {
		return r.build(ctx, tenantID)
	})
	if err != nil {
		return nil, KindNone, err
	}
	h := v.(*handle)
	return h.provider, h.kind, nil
}

func (r *Registry) build(ctx context.Context, tenantID string) (*handle, error) {
	creds, err := r.creds.Load(ctx, tenantID)
	if err != nil && !errors.Is(err, ErrNoCredentials) {
		return nil, fmt.Errorf("resolve commerce provider: %w", err)
	}

	kind := KindNone
	if err == nil {
		kind = Detect(creds)
	}

	h := &handle{kind: kind, lastUsed: r.now()}
	if kind != KindNone {
		h.provider = r.newProvider(kind, creds)
	}
	recordResolution(kind)
	r.logger.WithFields(logging.Fields{
		"tenant_id": tenantID,
		"kind":      string(kind),
	}).Debug("Resolved commerce provider")

	r.mu.Lock()
	r.handles[tenantID] = h
	r.mu.Unlock()
	return h, nil
}

// Invalidate drops a tenant's cached handle, forcing re-detection on the
// next request. Called after credential updates.
func (r *Registry) Invalidate(tenantID string) {
	r.mu.Lock()
	delete(r.handles, tenantID)
	r.mu.Unlock()
}

// Sweep evicts handles idle past the TTL and returns the eviction count.
// Exposed separately from StartSweep so tests can drive it deterministically.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.idleTTL)
	evicted := 0
	r.mu.Lock()
	for tenantID, h := range r.handles {
		if h.lastUsed.Before(cutoff) {
			delete(r.handles, tenantID)
			evicted++
		}
	}
	r.mu.Unlock()
	return evicted
}

// StartSweep runs Sweep on a ticker until ctx is cancelled.
func (r *Registry) StartSweep(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.Sweep(); n > 0 {
					r.logger.WithFields(logging.Fields{"evicted": n}).Debug("Evicted idle commerce handles")
				}
			}
		}
	}()
}
