package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/IDLEcreative/Omniops-sub014/internal/cache"
	"github.com/IDLEcreative/Omniops-sub014/internal/tenants"
)

type fakeStore struct {
	vectorChunks  []Chunk
	vectorErr     error
	vectorCalls   int
	keywordChunks []Chunk
	keywordErr    error
	keywordCalls  int
	lastLimit     int
}

func (f *fakeStore) VectorSearch(_ context.Context, _ string, _ []float32, limit int) ([]Chunk, error) {
	f.vectorCalls++
	f.lastLimit = limit
	return f.vectorChunks, f.vectorErr
}

func (f *fakeStore) KeywordSearch(_ context.Context, _ string, _ string, limit int) ([]Chunk, error) {
	f.keywordCalls++
	f.lastLimit = limit
	return f.keywordChunks, f.keywordErr
}

type fakeEmbedder struct {
	vectors [][]float32
	err     error
	calls   int
}

func (f *fakeEmbedder) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.vectors != nil {
		return f.vectors, nil
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

type fakeSettings struct {
	cfg tenants.Config
	err error
}

func (f *fakeSettings) Get(_ context.Context, _ string) (tenants.Config, error) {
	return f.cfg, f.err
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func newEngine(store *fakeStore, embedder *fakeEmbedder, settings TenantSettings) *Engine {
	return NewEngine(store, embedder, nil, settings, testLogger(), Options{})
}

func TestShortQueryRoutesToKeyword(t *testing.T) {
	store := &fakeStore{keywordChunks: []Chunk{{ID: "c1", Text: "SKU-123 spec sheet"}}}
	embedder := &fakeEmbedder{}
	engine := newEngine(store, embedder, nil)

	result := engine.Search(context.Background(), "t1", "SKU-123", 5)

	if embedder.calls != 0 {
		t.Fatal("short query must not be embedded")
	}
	if store.keywordCalls != 1 || store.vectorCalls != 0 {
		t.Fatalf("expected keyword route, got keyword=%d vector=%d", store.keywordCalls, store.vectorCalls)
	}
	if result.Degraded {
		t.Fatal("healthy keyword search must not be degraded")
	}
	if len(result.Chunks) != 1 || result.Chunks[0].ID != "c1" {
		t.Fatalf("unexpected chunks: %+v", result.Chunks)
	}
}

func TestLongQueryRoutesToVector(t *testing.T) {
	store := &fakeStore{vectorChunks: []Chunk{
		{ID: "c1", Similarity: 0.8},
		{ID: "c2", Similarity: 0.05},
	}}
	embedder := &fakeEmbedder{}
	engine := newEngine(store, embedder, nil)

	result := engine.Search(context.Background(), "t1", "how do I return a damaged item for refund", 5)

	if embedder.calls != 1 || store.vectorCalls != 1 {
		t.Fatalf("expected vector route, embed=%d vector=%d", embedder.calls, store.vectorCalls)
	}
	if store.keywordCalls != 0 {
		t.Fatal("vector route must not touch keyword search")
	}
	if len(result.Chunks) != 1 || result.Chunks[0].ID != "c1" {
		t.Fatalf("threshold should have filtered c2: %+v", result.Chunks)
	}
	if result.Degraded {
		t.Fatal("healthy vector search must not be degraded")
	}
}

func TestAllBelowThresholdKeepsTopN(t *testing.T) {
	store := &fakeStore{vectorChunks: []Chunk{
		{ID: "c1", Similarity: 0.05},
		{ID: "c2", Similarity: 0.04},
	}}
	engine := newEngine(store, &fakeEmbedder{}, nil)

	result := engine.Search(context.Background(), "t1", "very vague question about something or other", 5)

	if len(result.Chunks) != 2 {
		t.Fatalf("expected ranked set when nothing clears threshold, got %d chunks", len(result.Chunks))
	}
}

func TestEmbeddingFailureFallsBackToKeyword(t *testing.T) {
	store := &fakeStore{keywordChunks: []Chunk{{ID: "kw1"}}}
	embedder := &fakeEmbedder{err: errors.New("embedding backend down")}
	engine := newEngine(store, embedder, nil)

	result := engine.Search(context.Background(), "t1", "how do I return a damaged item for refund", 5)

	if store.keywordCalls != 1 {
		t.Fatal("expected keyword fallback after embedding failure")
	}
	if !result.Degraded {
		t.Fatal("fallback result must be marked degraded")
	}
	if len(result.Chunks) != 1 || result.Chunks[0].ID != "kw1" {
		t.Fatalf("unexpected fallback chunks: %+v", result.Chunks)
	}
}

func TestTotalStoreFailureIsEmptyDegraded(t *testing.T) {
	store := &fakeStore{
		vectorErr:  errors.New("vector store down"),
		keywordErr: errors.New("keyword store down"),
	}
	engine := newEngine(store, &fakeEmbedder{}, nil)

	result := engine.Search(context.Background(), "t1", "how do I return a damaged item for refund", 5)

	if len(result.Chunks) != 0 {
		t.Fatalf("expected no chunks, got %d", len(result.Chunks))
	}
	if !result.Degraded {
		t.Fatal("total store failure must be degraded, not a silent empty result")
	}
}

func TestRepeatQueryServedFromCache(t *testing.T) {
	store := &fakeStore{keywordChunks: []Chunk{{ID: "c1"}}}
	engine := NewEngine(store, &fakeEmbedder{}, cache.NewManager(testLogger()), nil, testLogger(), Options{})
	ctx := context.Background()

	first := engine.Search(ctx, "t1", "SKU-123", 5)
	second := engine.Search(ctx, "t1", "  sku-123 ", 5)

	if store.keywordCalls != 1 {
		t.Fatalf("second search should be a cache hit, store called %d times", store.keywordCalls)
	}
	if len(first.Chunks) != len(second.Chunks) || second.Chunks[0].ID != "c1" {
		t.Fatalf("cached result differs: %+v vs %+v", first.Chunks, second.Chunks)
	}
}

func TestDegradedResultNotCached(t *testing.T) {
	store := &fakeStore{keywordErr: errors.New("down")}
	engine := NewEngine(store, &fakeEmbedder{}, cache.NewManager(testLogger()), nil, testLogger(), Options{})
	ctx := context.Background()

	engine.Search(ctx, "t1", "SKU-123", 5)
	store.keywordErr = nil
	store.keywordChunks = []Chunk{{ID: "c1"}}

	result := engine.Search(ctx, "t1", "SKU-123", 5)
	if len(result.Chunks) != 1 {
		t.Fatal("recovered store should serve fresh results, not a cached degraded set")
	}
}

func TestLimitClampsToTenantMax(t *testing.T) {
	store := &fakeStore{keywordChunks: []Chunk{{ID: "c1"}}}
	settings := &fakeSettings{cfg: tenants.Config{MaxLimit: 7}}
	engine := newEngine(store, &fakeEmbedder{}, settings)

	engine.Search(context.Background(), "t1", "SKU-123", 30)

	if store.lastLimit != 7 {
		t.Fatalf("expected limit clamped to tenant max 7, got %d", store.lastLimit)
	}
}

func TestTenantThresholdApplied(t *testing.T) {
	store := &fakeStore{vectorChunks: []Chunk{
		{ID: "c1", Similarity: 0.5},
		{ID: "c2", Similarity: 0.3},
	}}
	settings := &fakeSettings{cfg: tenants.Config{SimilarityThreshold: 0.4}}
	engine := newEngine(store, &fakeEmbedder{}, settings)

	result := engine.Search(context.Background(), "t1", "tell me about your warranty coverage terms", 5)

	if len(result.Chunks) != 1 || result.Chunks[0].ID != "c1" {
		t.Fatalf("tenant threshold 0.4 should keep only c1: %+v", result.Chunks)
	}
}

func TestEmptyQueryAndTenant(t *testing.T) {
	store := &fakeStore{}
	engine := newEngine(store, &fakeEmbedder{}, nil)

	if got := engine.Search(context.Background(), "t1", "   ", 5); len(got.Chunks) != 0 || got.Degraded {
		t.Fatalf("blank query should return empty healthy set: %+v", got)
	}
	if got := engine.Search(context.Background(), "", "hello", 5); len(got.Chunks) != 0 {
		t.Fatalf("missing tenant should return empty set: %+v", got)
	}
	if store.keywordCalls != 0 || store.vectorCalls != 0 {
		t.Fatal("store must not be queried for invalid input")
	}
}
