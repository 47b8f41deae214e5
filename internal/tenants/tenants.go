// Package tenants loads per-tenant behavior configuration: retrieval limits,
// similarity thresholds, orchestration budgets and billing thresholds.
package tenants

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/IDLEcreative/Omniops-sub014/internal/cache"
	"github.com/IDLEcreative/Omniops-sub014/pkg/logging"
)

// ErrNotFound is returned when a tenant has no configuration row.
var ErrNotFound = errors.New("tenant config not found")

const (
	cacheKind = "tenant_config"
	cacheTTL  = 5 * time.Minute
)

// Config is the per-tenant knob set. Zero values fall back to service-level
// defaults at the point of use.
type Config struct {
	TenantID            string        `json:"tenant_id"`
	SimilarityThreshold float64       `json:"similarity_threshold"`
	DefaultLimit        int           `json:"default_limit"`
	MaxLimit            int           `json:"max_limit"`
	MaxIterations       int           `json:"max_iterations"`
	TokenBudget         int           `json:"token_budget"`
	SearchCacheTTL      time.Duration `json:"search_cache_ttl"`
	BillableMinTurns    int           `json:"billable_min_turns"`
	BillableMinDuration time.Duration `json:"billable_min_duration"`
}

// Store is the read-through tenant config store: cache first, Postgres on
// miss.
type Store struct {
	db     *sql.DB
	cache  *cache.Manager
	logger logging.Logger
}

func NewStore(db *sql.DB, cacheManager *cache.Manager, logger logging.Logger) *Store {
	return &Store{db: db, cache: cacheManager, logger: logger}
}

// Get returns the tenant's configuration. Results (including defaults applied
// to NULL columns) are cached for a short TTL.
func (s *Store) Get(ctx context.Context, tenantID string) (Config, error) {
	if tenantID == "" {
		return Config{}, errors.New("tenant id is required")
	}

	var cfg Config
	if s.cache != nil && s.cache.Get(ctx, tenantID, cacheKind, "config", &cfg) {
		return cfg, nil
	}

	cfg, err := s.load(ctx, tenantID)
	if err != nil {
		return Config{}, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, tenantID, cacheKind, "config", cfg, cacheTTL)
	}
	return cfg, nil
}

// Invalidate drops the cached config so the next Get re-reads Postgres.
func (s *Store) Invalidate(ctx context.Context, tenantID string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, tenantID, cacheKind, "config")
	}
}

func (s *Store) load(ctx context.Context, tenantID string) (Config, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT tenant_id,
			similarity_threshold,
			default_limit,
			max_limit,
			max_iterations,
			token_budget,
			search_cache_ttl_seconds,
			billable_min_turns,
			billable_min_duration_seconds
		FROM omniops.tenant_configs
		WHERE tenant_id = $1
	`, tenantID)

	var (
		cfg            Config
		threshold      sql.NullFloat64
		defaultLimit   sql.NullInt64
		maxLimit       sql.NullInt64
		maxIterations  sql.NullInt64
		tokenBudget    sql.NullInt64
		searchTTLSecs  sql.NullInt64
		billTurns      sql.NullInt64
		billDurSecs  sql.NullInt64
	)
	err := row.Scan(&cfg.TenantID, &threshold, &defaultLimit, &maxLimit,
		&maxIterations, &tokenBudget, &searchTTLSecs, &billTurns, &billDurSecs)
	if errors.Is(err, sql.ErrNoRows) {
		return Config{}, ErrNotFound
	}
	if err != nil {
		return Config{}, fmt.Errorf("load tenant config: %w", err)
	}

	if threshold.Valid {
		cfg.SimilarityThreshold = threshold.Float64
	}
	if defaultLimit.Valid {
		cfg.DefaultLimit = int(defaultLimit.Int64)
	}
	if maxLimit.Valid {
		cfg.MaxLimit = int(maxLimit.Int64)
	}
	if maxIterations.Valid {
		cfg.MaxIterations = int(maxIterations.Int64)
	}
	if tokenBudget.Valid {
		cfg.TokenBudget = int(tokenBudget.Int64)
	}
	if searchTTLSecs.Valid {
		cfg.SearchCacheTTL = time.Duration(searchTTLSecs.Int64) * time.Second
	}
	if billTurns.Valid {
		cfg.BillableMinTurns = int(billTurns.Int64)
	}
	if billDurSecs.Valid {
		cfg.BillableMinDuration = time.Duration(billDurSecs.Int64) * time.Second
	}
	return cfg, nil
}
