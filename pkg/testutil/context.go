package testutil

import (
	"context"
	"time"

	"credreg/pkg/requestcontext"
)

// Context returns a background context pinned to now, as the request time
// middleware would leave it.
func Context(now time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), now)
}
