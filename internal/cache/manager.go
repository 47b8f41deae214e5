// Package cache provides the tenant-scoped tiered cache used by retrieval,
// tenant config and commerce lookups. The in-memory tier is sharded to keep
// lock contention bounded under concurrent chat traffic; an optional Redis
// tier survives process restarts.
package cache

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/IDLEcreative/Omniops-sub014/pkg/logging"
)

const shardCount = 16

type entry struct {
	value     []byte
	expiresAt time.Time
}

type shard struct {
	mu    sync.RWMutex
	items map[string]entry
}

// Manager is the tiered cache. All keys are namespaced by (tenant, kind, key);
// an empty tenant is rejected so one tenant can never read another's entries.
type Manager struct {
	shards [shardCount]*shard
	redis  *redis.Client
	logger logging.Logger

	// now is swappable so TTL behavior is testable without sleeping.
	now func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithRedis adds a Redis tier consulted on memory miss and back-filled on hit.
func WithRedis(client *redis.Client) Option {
	return func(m *Manager) { m.redis = client }
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(logger logging.Logger, opts ...Option) *Manager {
	m := &Manager{
		logger: logger,
		now:    time.Now,
	}
	for i := range m.shards {
		m.shards[i] = &shard{items: make(map[string]entry)}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func compositeKey(tenant, kind, key string) string {
	return tenant + "|" + kind + "|" + key
}

func (m *Manager) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return m.shards[h.Sum32()%shardCount]
}

// Get returns the cached value for (tenant, kind, key), unmarshalled into
// dest. A storage-tier error is reported as a miss, never surfaced to the
// caller.
func (m *Manager) Get(ctx context.Context, tenant, kind, key string, dest interface{}) bool {
	if tenant == "" {
		return false
	}
	ck := compositeKey(tenant, kind, key)
	sh := m.shardFor(ck)

	sh.mu.RLock()
	e, ok := sh.items[ck]
	sh.mu.RUnlock()
	if ok {
		if m.now().Before(e.expiresAt) {
			if err := json.Unmarshal(e.value, dest); err != nil {
				m.logger.WithError(err).WithFields(logging.Fields{
					"tenant_id": tenant,
					"kind":      kind,
				}).Warn("Cache entry unmarshal failed, treating as miss")
				return false
			}
			recordHit(kind, "memory")
			return true
		}
		// Expired entry found on the read path: evict eagerly.
		sh.mu.Lock()
		if cur, still := sh.items[ck]; still && !m.now().Before(cur.expiresAt) {
			delete(sh.items, ck)
		}
		sh.mu.Unlock()
	}

	if m.redis != nil {
		raw, err := m.redis.Get(ctx, ck).Bytes()
		if err == nil {
			if uerr := json.Unmarshal(raw, dest); uerr == nil {
				// Back-fill the memory tier with the remaining Redis TTL.
				if ttl, terr := m.redis.TTL(ctx, ck).Result(); terr == nil && ttl > 0 {
					sh.mu.Lock()
					sh.items[ck] = entry{value: raw, expiresAt: m.now().Add(ttl)}
					sh.mu.Unlock()
				}
				recordHit(kind, "redis")
				return true
			}
		} else if err != redis.Nil {
			m.logger.WithError(err).WithFields(logging.Fields{
				"tenant_id": tenant,
				"kind":      kind,
			}).Warn("Redis cache read failed, treating as miss")
		}
	}

	recordMiss(kind)
	return false
}

// Set stores value under (tenant, kind, key) for ttl. Non-positive TTLs and
// empty tenants are no-ops. Redis write failures are logged and ignored; the
// memory tier always wins.
func (m *Manager) Set(ctx context.Context, tenant, kind, key string, value interface{}, ttl time.Duration) {
	if tenant == "" || ttl <= 0 {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		m.logger.WithError(err).WithFields(logging.Fields{
			"tenant_id": tenant,
			"kind":      kind,
		}).Warn("Cache value marshal failed, not storing")
		return
	}
	ck := compositeKey(tenant, kind, key)
	sh := m.shardFor(ck)
	sh.mu.Lock()
	sh.items[ck] = entry{value: raw, expiresAt: m.now().Add(ttl)}
	sh.mu.Unlock()

	if m.redis != nil {
		if err := m.redis.Set(ctx, ck, raw, ttl).Err(); err != nil {
			m.logger.WithError(err).WithFields(logging.Fields{
				"tenant_id": tenant,
				"kind":      kind,
			}).Warn("Redis cache write failed")
		}
	}
	recordStore(kind)
}

// Invalidate removes a single entry from both tiers.
func (m *Manager) Invalidate(ctx context.Context, tenant, kind, key string) {
	if tenant == "" {
		return
	}
	ck := compositeKey(tenant, kind, key)
	sh := m.shardFor(ck)
	sh.mu.Lock()
	delete(sh.items, ck)
	sh.mu.Unlock()
	if m.redis != nil {
		if err := m.redis.Del(ctx, ck).Err(); err != nil {
			m.logger.WithError(err).Warn("Redis cache invalidate failed")
		}
	}
}

// Clear drops every in-memory entry across all tenants. The Redis tier is
// left alone; it expires on its own TTLs.
func (m *Manager) Clear() {
	for _, sh := range m.shards {
		sh.mu.Lock()
		sh.items = make(map[string]entry)
		sh.mu.Unlock()
	}
}

// Sweep removes every expired in-memory entry and returns how many it
// evicted. Exposed separately from StartSweep so tests can drive it
// deterministically.
func (m *Manager) Sweep() int {
	now := m.now()
	evicted := 0
	for _, sh := range m.shards {
		sh.mu.Lock()
		for k, e := range sh.items {
			if !now.Before(e.expiresAt) {
				delete(sh.items, k)
				evicted++
			}
		}
		sh.mu.Unlock()
	}
	if evicted > 0 {
		recordSweep(evicted)
	}
	return evicted
}

// StartSweep runs Sweep on a ticker until ctx is cancelled.
func (m *Manager) StartSweep(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.Sweep(); n > 0 {
					m.logger.WithFields(logging.Fields{"evicted": n}).Debug("Cache sweep evicted expired entries")
				}
			}
		}
	}()
}
