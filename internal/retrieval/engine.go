// Package retrieval implements hybrid knowledge search: short queries go
// through Postgres full-text, longer ones through pgvector similarity, with
// the keyword path as the fallback whenever embeddings are unavailable.
package retrieval

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/IDLEcreative/Omniops-sub014/internal/cache"
	"github.com/IDLEcreative/Omniops-sub014/internal/tenants"
	"github.com/IDLEcreative/Omniops-sub014/pkg/llm"
	"github.com/IDLEcreative/Omniops-sub014/pkg/logging"
)

const (
	// hardLimitCeiling bounds result counts regardless of tenant config.
	hardLimitCeiling = 50

	defaultLimit          = 10
	defaultKeywordWords   = 3
	defaultThreshold      = 0.15
	defaultSearchCacheTTL = 2 * time.Minute

	cacheKind = "search"
)

// Searcher is the store contract the engine needs.
type Searcher interface {
	VectorSearch(ctx context.Context, tenantID string, embedding []float32, limit int) ([]Chunk, error)
	KeywordSearch(ctx context.Context, tenantID, query string, limit int) ([]Chunk, error)
}

// TenantSettings supplies per-tenant retrieval knobs.
type TenantSettings interface {
	Get(ctx context.Context, tenantID string) (tenants.Config, error)
}

// ResultSet is a search outcome. Degraded marks soft failure: a subsystem
// fell over and the results are a best effort, as opposed to a healthy search
// that genuinely matched nothing.
type ResultSet struct {
	Chunks   []Chunk `json:"chunks"`
	Degraded bool    `json:"degraded"`
}

// Options tunes an Engine beyond its defaults.
type Options struct {
	KeywordMaxWords int
	DefaultLimit    int
	Threshold       float64
	CacheTTL        time.Duration
}

// Engine routes queries between the keyword and vector paths.
type Engine struct {
	store    Searcher
	embedder llm.EmbeddingClient
	cache    *cache.Manager
	settings TenantSettings
	logger   logging.Logger
	opts     Options
}

func NewEngine(store Searcher, embedder llm.EmbeddingClient, cacheManager *cache.Manager, settings TenantSettings, logger logging.Logger, opts Options) *Engine {
	if opts.KeywordMaxWords <= 0 {
		opts.KeywordMaxWords = defaultKeywordWords
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = defaultLimit
	}
	if opts.Threshold <= 0 {
		opts.Threshold = defaultThreshold
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultSearchCacheTTL
	}
	return &Engine{
		store:    store,
		embedder: embedder,
		cache:    cacheManager,
		settings: settings,
		logger:   logger,
		opts:     opts,
	}
}

// Search runs a hybrid search for the tenant. It never returns an error for
// backend trouble; failures degrade to the keyword path and, past that, to an
// empty degraded result, so the orchestrator always has something to answer
// from.
func (e *Engine) Search(ctx context.Context, tenantID, query string, limit int) ResultSet {
	started := time.Now()
	normalized := normalizeQuery(query)
	if tenantID == "" || normalized == "" {
		return ResultSet{}
	}

	threshold := e.opts.Threshold
	maxLimit := hardLimitCeiling
	cacheTTL := e.opts.CacheTTL
	if e.settings != nil {
		if tcfg, err := e.settings.Get(ctx, tenantID); err == nil {
			if tcfg.SimilarityThreshold > 0 {
				threshold = tcfg.SimilarityThreshold
			}
			if tcfg.MaxLimit > 0 && tcfg.MaxLimit < maxLimit {
				maxLimit = tcfg.MaxLimit
			}
			if limit <= 0 && tcfg.DefaultLimit > 0 {
				limit = tcfg.DefaultLimit
			}
			if tcfg.SearchCacheTTL > 0 {
				cacheTTL = tcfg.SearchCacheTTL
			}
		}
	}
	if limit <= 0 {
		limit = e.opts.DefaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	cacheKey := normalized + "|" + strconv.Itoa(limit)
	if e.cache != nil {
		var cached ResultSet
		if e.cache.Get(ctx, tenantID, cacheKind, cacheKey, &cached) {
			return cached
		}
	}

	result, route := e.search(ctx, tenantID, normalized, limit, threshold)
	recordSearch(route, result.Degraded, time.Since(started))

	// Degraded results are not cached; the next request should retry the
	// healthy path.
	if e.cache != nil && !result.Degraded {
		e.cache.Set(ctx, tenantID, cacheKind, cacheKey, result, cacheTTL)
	}
	return result
}

func (e *Engine) search(ctx context.Context, tenantID, query string, limit int, threshold float64) (ResultSet, string) {
	if wordCount(query) <= e.opts.KeywordMaxWords || e.embedder == nil {
		return e.keyword(ctx, tenantID, query, limit, false), "keyword"
	}

	embedding, err := e.embedder.Embed(ctx, []string{query})
	if err != nil || len(embedding) == 0 {
		e.logger.WithError(err).WithFields(logging.Fields{
			"tenant_id": tenantID,
		}).Warn("Embedding failed, falling back to keyword search")
		return e.keyword(ctx, tenantID, query, limit, true), "keyword_fallback"
	}

	chunks, err := e.store.VectorSearch(ctx, tenantID, embedding[0], limit)
	if err != nil {
		e.logger.WithError(err).WithFields(logging.Fields{
			"tenant_id": tenantID,
		}).Warn("Vector search failed, falling back to keyword search")
		return e.keyword(ctx, tenantID, query, limit, true), "vector_fallback"
	}

	return ResultSet{Chunks: applyThreshold(chunks, threshold)}, "vector"
}

func (e *Engine) keyword(ctx context.Context, tenantID, query string, limit int, degraded bool) ResultSet {
	chunks, err := e.store.KeywordSearch(ctx, tenantID, query, limit)
	if err != nil {
		e.logger.WithError(err).WithFields(logging.Fields{
			"tenant_id": tenantID,
		}).Error("Keyword search failed")
		return ResultSet{Degraded: true}
	}
	return ResultSet{Chunks: chunks, Degraded: degraded}
}

// applyThreshold keeps chunks at or above the similarity threshold. When
// every result falls below it, the ranked set is returned as-is: weak
// evidence beats none.
func applyThreshold(chunks []Chunk, threshold float64) []Chunk {
	var kept []Chunk
	for _, chunk := range chunks {
		if chunk.Similarity >= threshold {
			kept = append(kept, chunk)
		}
	}
	if len(kept) == 0 {
		return chunks
	}
	return kept
}

func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

func wordCount(query string) int {
	return len(strings.Fields(query))
}
