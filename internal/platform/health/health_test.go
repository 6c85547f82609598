package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checkFunc func(ctx context.Context) error

func (f checkFunc) Health(ctx context.Context) error { return f(ctx) }

func TestHandler(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		reg, err := New("test")
		require.NoError(t, err)
		require.NoError(t, reg.Register("db", checkFunc(func(context.Context) error { return nil })))

		rec := httptest.NewRecorder()
		reg.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("failing check", func(t *testing.T) {
		reg, err := New("test")
		require.NoError(t, err)
		require.NoError(t, reg.Register("db", checkFunc(func(context.Context) error { return errors.New("down") })))

		rec := httptest.NewRecorder()
		reg.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("nil checker skipped", func(t *testing.T) {
		reg, err := New("test")
		require.NoError(t, err)
		var c Checker
		assert.NoError(t, reg.Register("redis", c))
	})
}
