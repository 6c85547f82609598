// Package models holds rate limit decisions and key construction.
package models

import (
	"strings"
	"time"
)

// Result is the outcome of one Allow call.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the whole seconds until the oldest hit leaves the window,
// rounded up and never below one.
func (r *Result) RetryAfter(now time.Time) int {
	d := r.ResetAt.Sub(now)
	if d <= 0 {
		return 1
	}
	return int((d + time.Second - 1) / time.Second)
}

// Class groups endpoints that share a limit.
type Class string

const ClassAuth Class = "auth"

// Key builds the bucket key for a class and a client identifier.
func Key(class Class, client string) string {
	return "rl:" + string(class) + ":" + strings.TrimSpace(client)
}
