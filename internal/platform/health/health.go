// Package health exposes readiness checks for the backing services.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/hellofresh/health-go/v5"
)

// Checker is satisfied by the database, redis and kafka clients.
type Checker interface {
	Health(ctx context.Context) error
}

// Registry collects named checks.
type Registry struct {
	h *health.Health
}

func New(version string) (*Registry, error) {
	h, err := health.New(health.WithComponent(health.Component{
		Name:    "credreg",
		Version: version,
	}))
	if err != nil {
		return nil, err
	}
	return &Registry{h: h}, nil
}

// Register adds a check. A nil checker is skipped so optional backends can
// be passed unconditionally.
func (r *Registry) Register(name string, c Checker) error {
	if c == nil {
		return nil
	}
	return r.h.Register(health.Config{
		Name:      name,
		Timeout:   2 * time.Second,
		SkipOnErr: false,
		Check:     c.Health,
	})
}

// Handler serves the aggregated status.
func (r *Registry) Handler() http.Handler {
	return r.h.Handler()
}
