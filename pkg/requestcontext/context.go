// Package requestcontext carries request-scoped values from middleware to
// services without importing net/http.
//
// Tests inject values directly:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithActor(ctx, principal)
package requestcontext

import (
	"context"
	"time"

	id "credreg/pkg/domain"
)

type key int

const (
	actorKey key = iota
	tokenIDKey
	clientIPKey
	userAgentKey
	requestIDKey
	requestTimeKey
)

func value[T any](ctx context.Context, k key) T {
	v, _ := ctx.Value(k).(T)
	return v
}

// Actor returns the authenticated principal, or "" for anonymous requests.
func Actor(ctx context.Context) id.Principal { return value[id.Principal](ctx, actorKey) }

func WithActor(ctx context.Context, p id.Principal) context.Context {
	return context.WithValue(ctx, actorKey, p)
}

// TokenID is the jti of the bearer token, empty for header-trusted actors.
func TokenID(ctx context.Context) string { return value[string](ctx, tokenIDKey) }

func WithTokenID(ctx context.Context, jti string) context.Context {
	return context.WithValue(ctx, tokenIDKey, jti)
}

func ClientIP(ctx context.Context) string  { return value[string](ctx, clientIPKey) }
func UserAgent(ctx context.Context) string { return value[string](ctx, userAgentKey) }

func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey, clientIP)
	return context.WithValue(ctx, userAgentKey, userAgent)
}

func RequestID(ctx context.Context) string { return value[string](ctx, requestIDKey) }

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// Now returns the pinned request time, or the wall clock outside a request
// (startup seeding, the audit worker).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime pins "now" for the rest of the call chain.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey, t)
}
