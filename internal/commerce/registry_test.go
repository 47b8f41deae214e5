package commerce

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type fakeCreds struct {
	creds Credentials
	err   error
	calls int32
	delay time.Duration
}

func (f *fakeCreds) Load(_ context.Context, tenantID string) (Credentials, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return Credentials{}, f.err
	}
	creds := f.creds
	creds.TenantID = tenantID
	return creds, nil
}

type stubProvider struct{ kind Kind }

func (s *stubProvider) Kind() Kind { return s.kind }
func (s *stubProvider) SearchProducts(context.Context, string, int) OpResult {
	return OpResult{Success: true}
}
func (s *stubProvider) LookupOrder(context.Context, string, string) OpResult {
	return OpResult{Success: true}
}
func (s *stubProvider) CheckStock(context.Context, string) OpResult { return OpResult{Success: true} }
func (s *stubProvider) GetProductDetails(context.Context, string) OpResult {
	return OpResult{Success: true}
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func shopifyCreds() Credentials {
	return Credentials{ShopifyDomain: "shop.example.com", ShopifyAccessToken: "tok"}
}

func TestConcurrentRequestsBuildOnce(t *testing.T) {
	source := &fakeCreds{creds: shopifyCreds(), delay: 20 * time.Millisecond}
	registry := NewRegistry(source, testLogger(), 0)
	registry.newProvider = func(kind Kind, _ Credentials) Provider { return &stubProvider{kind: kind} }

	const n = 16
	var wg sync.WaitGroup
	providers := make([]Provider, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, kind, err := registry.GetProvider(context.Background(), "t1")
			if err != nil || kind != KindShopify {
				t.Errorf("GetProvider: kind=%v err=%v", kind, err)
				return
			}
			providers[i] = p
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&source.calls); got != 1 {
		t.Fatalf("expected exactly 1 credential load for %d concurrent callers, got %d", n, got)
	}
	for i := 1; i < n; i++ {
		if providers[i] != providers[0] {
			t.Fatal("concurrent callers received different handles")
		}
	}
}

func TestNoCredentialsIsKindNone(t *testing.T) {
	source := &fakeCreds{err: ErrNoCredentials}
	registry := NewRegistry(source, testLogger(), 0)

	provider, kind, err := registry.GetProvider(context.Background(), "t1")
	if err != nil {
		t.Fatalf("missing credentials must not be an error: %v", err)
	}
	if kind != KindNone || provider != nil {
		t.Fatalf("expected (nil, KindNone), got (%v, %v)", provider, kind)
	}

	// The outcome is cached like any other handle.
	if _, _, err := registry.GetProvider(context.Background(), "t1"); err != nil {
		t.Fatalf("cached KindNone lookup failed: %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("KindNone outcome should be cached, got %d loads", source.calls)
	}
}

func TestCredentialStoreFailureIsError(t *testing.T) {
	source := &fakeCreds{err: errors.New("database down")}
	registry := NewRegistry(source, testLogger(), 0)

	if _, _, err := registry.GetProvider(context.Background(), "t1"); err == nil {
		t.Fatal("expected error when credential store fails")
	}
}

func TestDetectorPriority(t *testing.T) {
	both := shopifyCreds()
	both.WooCommerceURL = "https://store.example"
	both.WooConsumerKey = "ck"
	both.WooConsumerSecret = "cs"

	if kind := Detect(both); kind != KindShopify {
		t.Fatalf("shopify must win priority, got %v", kind)
	}
	if kind := Detect(Credentials{WooCommerceURL: "https://store.example", WooConsumerKey: "ck", WooConsumerSecret: "cs"}); kind != KindWooCommerce {
		t.Fatalf("expected woocommerce, got %v", kind)
	}
	if kind := Detect(Credentials{ShopifyDomain: "shop.example.com"}); kind != KindNone {
		t.Fatalf("partial credentials must not match, got %v", kind)
	}
}

func TestSweepEvictsIdleHandles(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	now := base

	source := &fakeCreds{creds: shopifyCreds()}
	registry := NewRegistry(source, testLogger(), 10*time.Minute)
	registry.newProvider = func(kind Kind, _ Credentials) Provider { return &stubProvider{kind: kind} }
	registry.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	ctx := context.Background()

	if _, _, err := registry.GetProvider(ctx, "t1"); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	now = base.Add(5 * time.Minute)
	mu.Unlock()
	if evicted := registry.Sweep(); evicted != 0 {
		t.Fatalf("handle not yet idle, evicted %d", evicted)
	}

	mu.Lock()
	now = base.Add(20 * time.Minute)
	mu.Unlock()
	if evicted := registry.Sweep(); evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}

	// Next request rebuilds.
	if _, _, err := registry.GetProvider(ctx, "t1"); err != nil {
		t.Fatal(err)
	}
	if source.calls != 2 {
		t.Fatalf("expected rebuild after eviction, got %d loads", source.calls)
	}
}

func TestInvalidateForcesRedetection(t *testing.T) {
	source := &fakeCreds{creds: shopifyCreds()}
	registry := NewRegistry(source, testLogger(), 0)
	registry.newProvider = func(kind Kind, _ Credentials) Provider { return &stubProvider{kind: kind} }
	ctx := context.Background()

	if _, _, err := registry.GetProvider(ctx, "t1"); err != nil {
		t.Fatal(err)
	}
	registry.Invalidate("t1")
	if _, _, err := registry.GetProvider(ctx, "t1"); err != nil {
		t.Fatal(err)
	}
	if source.calls != 2 {
		t.Fatalf("expected 2 loads after invalidate, got %d", source.calls)
	}
}
