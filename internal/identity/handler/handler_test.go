package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"credreg/internal/identity/service"
	"credreg/internal/identity/store"
	"credreg/internal/policy"
	id "credreg/pkg/domain"
	"credreg/pkg/platform/middleware/auth"
	"credreg/pkg/platform/tx"
)

const (
	admin = "0x00000000000000000000000000000000000000a1"
	alice = "0x00000000000000000000000000000000000000b1"
)

type HandlerSuite struct {
	suite.Suite
	router http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := store.NewInMemoryUserStore()
	gate := policy.NewGate(service.NewActorResolver(users), nil)
	svc := service.New(users, gate, tx.NewMemoryRunner(0), service.WithLogger(logger))

	adminP, err := id.ParsePrincipal(admin)
	s.Require().NoError(err)
	s.Require().NoError(svc.Bootstrap(context.Background(), adminP, "Root"))

	r := chi.NewRouter()
	r.Use(auth.RequireActor(nil, auth.Options{TrustPrincipalHeader: true}, logger))
	New(svc, logger).Register(r)
	s.router = r
}

func (s *HandlerSuite) do(method, path, actor string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set(auth.PrincipalHeader, actor)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) TestRegisterAndFetch() {
	rec := s.do(http.MethodPost, "/users", admin, map[string]string{
		"principal":    alice,
		"role":         "Subject",
		"display_name": "Alice",
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Principal string `json:"principal"`
		Role      string `json:"role"`
		Active    bool   `json:"active"`
	}
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&created))
	s.Equal("subject", created.Role)
	s.True(created.Active)

	rec = s.do(http.MethodGet, "/me", alice, nil)
	s.Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/users/"+alice, admin, nil)
	s.Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/users?role=subject", alice, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var list principalsResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&list))
	s.Len(list.Principals, 1)
}

func (s *HandlerSuite) TestErrorMapping() {
	s.Run("duplicate registration is a conflict", func() {
		body := map[string]string{"principal": alice, "role": "subject", "display_name": "Alice"}
		s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/users", admin, body).Code)
		rec := s.do(http.MethodPost, "/users", admin, body)
		s.Equal(http.StatusConflict, rec.Code)
		s.Contains(rec.Body.String(), "already_registered")
	})

	s.Run("non-admin registration is forbidden", func() {
		rec := s.do(http.MethodPost, "/users", alice, map[string]string{
			"principal": "0x00000000000000000000000000000000000000b2", "role": "subject", "display_name": "Bob",
		})
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("bad principal is a validation error", func() {
		rec := s.do(http.MethodPost, "/users", admin, map[string]string{
			"principal": "bob", "role": "subject", "display_name": "Bob",
		})
		s.Equal(http.StatusUnprocessableEntity, rec.Code)
		s.Contains(rec.Body.String(), `"field":"principal"`)
	})

	s.Run("unknown fields are rejected", func() {
		rec := s.do(http.MethodPost, "/users", admin, map[string]string{"principal": alice, "nickname": "x"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("missing credentials", func() {
		rec := s.do(http.MethodGet, "/me", "", nil)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("unknown user", func() {
		rec := s.do(http.MethodGet, "/users/0x00000000000000000000000000000000000000ff", admin, nil)
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *HandlerSuite) TestDeactivation() {
	s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/users", admin, map[string]string{
		"principal": alice, "role": "subject", "display_name": "Alice",
	}).Code)

	rec := s.do(http.MethodPost, "/users/"+alice+"/deactivate", admin, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"active":false`)

	rec = s.do(http.MethodPatch, "/me", alice, map[string]string{"display_name": "A"})
	s.Equal(http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, "/users/"+admin+"/deactivate", admin, nil)
	s.Equal(http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/users/"+alice+"/reactivate", admin, nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"active":true`)
}

func (s *HandlerSuite) TestViewerGrants() {
	const bob = "0x00000000000000000000000000000000000000b2"
	for _, p := range []string{alice, bob} {
		s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/users", admin, map[string]string{
			"principal": p, "role": "subject", "display_name": "User " + p[len(p)-2:],
		}).Code)
	}

	s.Equal(http.StatusForbidden, s.do(http.MethodGet, "/users/"+alice, bob, nil).Code)

	rec := s.do(http.MethodPost, "/me/viewers", alice, map[string]string{"viewer": bob})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var list principalsResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&list))
	s.Len(list.Principals, 1)

	s.Equal(http.StatusOK, s.do(http.MethodGet, "/users/"+alice, bob, nil).Code)

	rec = s.do(http.MethodGet, "/users/"+alice+"/viewers/"+bob, bob, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"authorized":true`)

	s.Equal(http.StatusForbidden, s.do(http.MethodGet, "/users/"+alice+"/viewers", bob, nil).Code)
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/me/viewers", alice, nil).Code)

	rec = s.do(http.MethodDelete, "/me/viewers/"+bob, alice, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"principals":[]`)

	s.Equal(http.StatusForbidden, s.do(http.MethodGet, "/users/"+alice, bob, nil).Code)

	rec = s.do(http.MethodPost, "/me/viewers", alice, map[string]string{"viewer": "bob"})
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	s.Contains(rec.Body.String(), `"field":"viewer"`)
}
