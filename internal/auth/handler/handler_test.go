package handler

import (
	"context"
	"crypto/ecdsa"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"credreg/internal/auth/models"
	"credreg/internal/auth/service"
	"credreg/internal/auth/store/nonce"
	identity "credreg/internal/identity/service"
	identitystore "credreg/internal/identity/store"
	jwttoken "credreg/internal/jwt_token"
	"credreg/internal/policy"
	id "credreg/pkg/domain"
	"credreg/pkg/platform/middleware/auth"
	"credreg/pkg/platform/tx"
	"credreg/pkg/requestcontext"
	"credreg/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	key    *ecdsa.PrivateKey
	user   id.Principal
	router http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	key, err := crypto.GenerateKey()
	s.Require().NoError(err)
	s.key = key
	s.user = id.PrincipalFromAddress(crypto.PubkeyToAddress(key.PublicKey))

	users := identitystore.NewInMemoryUserStore()
	resolver := identity.NewActorResolver(users)
	registry := identity.New(users, policy.NewGate(resolver, nil), tx.NewMemoryRunner(0), identity.WithLogger(logger))
	s.Require().NoError(registry.Bootstrap(context.Background(), s.user, "Root"))

	jwt := jwttoken.NewJWTService("test-signing-key", "credreg", "credreg-api")
	svc := service.New(nonce.NewInMemoryStore(), jwt, resolver, service.Config{TokenTTL: time.Hour}, service.WithLogger(logger))

	r := chi.NewRouter()
	New(svc, logger).Register(r)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireActor(jwttoken.NewJWTServiceAdapter(jwt), auth.Options{}, logger))
		r.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(requestcontext.Actor(r.Context()).String()))
		})
	})
	s.router = r
}

func (s *HandlerSuite) serve(req *http.Request) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.router, req)
}

func (s *HandlerSuite) TestLoginThenCallAuthenticatedRoute() {
	rec := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/challenge", map[string]string{
		"principal": s.user.String(),
	}))
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	ch := testutil.UnmarshalResponse[models.ChallengeResponse](s.T(), rec)

	sig, err := crypto.Sign(accounts.TextHash([]byte(ch.Message)), s.key)
	s.Require().NoError(err)
	rec = s.serve(testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/token", map[string]string{
		"principal": s.user.String(),
		"signature": hexutil.Encode(sig),
	}))
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Equal("no-store", rec.Header().Get("Cache-Control"))
	tok := testutil.UnmarshalResponse[models.TokenResponse](s.T(), rec)
	s.Equal(3600, tok.ExpiresIn)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	rec = s.serve(req)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(s.user.String(), rec.Body.String())
}

func (s *HandlerSuite) TestErrors() {
	s.Run("bad principal", func() {
		rec := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/challenge", map[string]string{"principal": "alice"}))
		s.Equal(http.StatusUnprocessableEntity, rec.Code)
	})

	s.Run("missing signature", func() {
		rec := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/token", map[string]string{"principal": s.user.String()}))
		s.Equal(http.StatusUnprocessableEntity, rec.Code)
		s.Contains(rec.Body.String(), `"field":"signature"`)
	})

	s.Run("no challenge outstanding", func() {
		rec := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/token", map[string]string{
			"principal": s.user.String(), "signature": "0x01",
		}))
		testutil.AssertStatusAndError(s.T(), rec, http.StatusUnauthorized, "unauthenticated")
	})

	s.Run("bad token", func() {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		s.Equal(http.StatusUnauthorized, s.serve(req).Code)
	})
}
