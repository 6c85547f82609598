package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credreg/internal/platform/logger"
	"credreg/internal/ratelimit/metrics"
	"credreg/internal/ratelimit/models"
	"credreg/internal/ratelimit/store/bucket"
	"credreg/pkg/platform/middleware/metadata"
)

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration) (*models.Result, error) {
	return nil, errors.New("redis down")
}

func handler(mw *Middleware, limit Limit) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	return metadata.ClientMetadata(mw.RateLimit(models.ClassAuth, limit)(ok))
}

func call(h http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/challenge", nil)
	req.RemoteAddr = ip + ":4711"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	h := handler(New(bucket.NewInMemoryBucketStore(), logger.Discard(), WithMetrics(m)), Limit{Requests: 2, Window: time.Minute})

	first := call(h, "10.0.0.1")
	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusNoContent, call(h, "10.0.0.1").Code)

	blocked := call(h, "10.0.0.1")
	require.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.NotEmpty(t, blocked.Header().Get("Retry-After"))
	assert.Contains(t, blocked.Body.String(), `"error":"rate_limited"`)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rejected.WithLabelValues(string(models.ClassAuth))))

	assert.Equal(t, http.StatusNoContent, call(h, "10.0.0.2").Code, "other clients keep their own budget")
}

func TestRateLimitDisabled(t *testing.T) {
	h := handler(New(failingStore{}, logger.Discard()), Limit{})
	for range 5 {
		assert.Equal(t, http.StatusNoContent, call(h, "10.0.0.1").Code)
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	h := handler(New(failingStore{}, logger.Discard(), WithMetrics(m)), Limit{Requests: 1, Window: time.Minute})
	assert.Equal(t, http.StatusNoContent, call(h, "10.0.0.1").Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreErrors))
}
