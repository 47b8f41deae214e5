package omniops

import (
	"context"
	"testing"
)

func TestIdentityRoundTrip(t *testing.T) {
	ctx := WithTenantID(context.Background(), "tenant-a")
	ctx = WithSessionID(ctx, "session-1")

	if got := GetTenantID(ctx); got != "tenant-a" {
		t.Fatalf("expected tenant-a, got %q", got)
	}
	if got := GetSessionID(ctx); got != "session-1" {
		t.Fatalf("expected session-1, got %q", got)
	}
}

func TestIdentityMissing(t *testing.T) {
	if got := GetTenantID(context.Background()); got != "" {
		t.Fatalf("expected empty tenant for bare context, got %q", got)
	}
	if got := GetSessionID(context.Background()); got != "" {
		t.Fatalf("expected empty session for bare context, got %q", got)
	}
}
