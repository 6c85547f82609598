package httptransport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credreg/internal/platform/logger"
	"credreg/internal/platform/metrics"
	"credreg/pkg/platform/middleware/auth"
	"credreg/pkg/requestcontext"
)

type routeFunc func(r chi.Router)

func (f routeFunc) Register(r chi.Router) { f(r) }

const caller = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

func newTestRouter() http.Handler {
	return NewRouter(Deps{
		Logger:      logger.Discard(),
		Metrics:     metrics.New(prometheus.NewRegistry()),
		Health:      http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }),
		AuthOptions: auth.Options{TrustPrincipalHeader: true},
		CORSOrigins: []string{"http://localhost:3000"},
		Public: []Registrar{routeFunc(func(r chi.Router) {
			r.Post("/open", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
		})},
		Protected: []Registrar{routeFunc(func(r chi.Router) {
			r.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(requestcontext.Actor(r.Context()).String()))
			})
		})},
	})
}

func TestRouter(t *testing.T) {
	router := newTestRouter()

	t.Run("health is public", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})

	t.Run("public group needs no actor", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/open", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("protected group rejects anonymous callers", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/whoami", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("protected group sees the actor", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set(auth.PrincipalHeader, strings.ToLower(caller))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, caller, rec.Body.String())
	})

	t.Run("non-JSON bodies are rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/open", strings.NewReader("a=b"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("cors preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/whoami", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	})
}
