package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"credreg/internal/platform/logger"
	id "credreg/pkg/domain"
	"credreg/pkg/requestcontext"
)

const alice = id.Principal("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")

type stubValidator struct {
	claims *JWTClaims
	err    error
}

func (s stubValidator) ValidateToken(string) (*JWTClaims, error) { return s.claims, s.err }

func serve(mw func(http.Handler) http.Handler, req *http.Request) (*httptest.ResponseRecorder, id.Principal) {
	var seen id.Principal
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.Actor(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, seen
}

func TestRequireActor(t *testing.T) {
	log := logger.Discard()

	t.Run("valid bearer token", func(t *testing.T) {
		mw := RequireActor(stubValidator{claims: &JWTClaims{Principal: alice, JTI: "j1"}}, Options{}, log)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer abc")
		rec, seen := serve(mw, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, alice, seen)
	})

	t.Run("invalid bearer token", func(t *testing.T) {
		mw := RequireActor(stubValidator{err: errors.New("bad")}, Options{TrustPrincipalHeader: true}, log)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer abc")
		req.Header.Set(PrincipalHeader, alice.String())
		rec, _ := serve(mw, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("header ignored without trust", func(t *testing.T) {
		mw := RequireActor(stubValidator{}, Options{}, log)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(PrincipalHeader, alice.String())
		rec, _ := serve(mw, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("header trusted and canonicalized", func(t *testing.T) {
		mw := RequireActor(stubValidator{}, Options{TrustPrincipalHeader: true}, log)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(PrincipalHeader, "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
		rec, seen := serve(mw, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, alice, seen)
	})

	t.Run("malformed header", func(t *testing.T) {
		mw := RequireActor(stubValidator{}, Options{TrustPrincipalHeader: true}, log)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(PrincipalHeader, "alice")
		rec, _ := serve(mw, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
