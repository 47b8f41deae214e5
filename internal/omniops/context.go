// Package omniops carries request-scoped identity through the call chain.
// The chat handler populates it; downstream log sites read it so every
// warning carries the tenant and session it belongs to.
package omniops

import "context"

type contextKey string

const (
	keyTenantID  contextKey = "omniops_tenant_id"
	keySessionID contextKey = "omniops_session_id"
)

func WithTenantID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyTenantID, id)
}

func GetTenantID(ctx context.Context) string {
	if v, ok := ctx.Value(keyTenantID).(string); ok {
		return v
	}
	return ""
}

func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keySessionID, id)
}

func GetSessionID(ctx context.Context) string {
	if v, ok := ctx.Value(keySessionID).(string); ok {
		return v
	}
	return ""
}
