package service

import (
	"context"
	"crypto/ecdsa"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/suite"

	"credreg/internal/auth/store/nonce"
	identity "credreg/internal/identity/service"
	identitystore "credreg/internal/identity/store"
	jwttoken "credreg/internal/jwt_token"
	"credreg/internal/policy"
	id "credreg/pkg/domain"
	dErrors "credreg/pkg/domain-errors"
	audit "credreg/pkg/platform/audit"
	"credreg/pkg/platform/audit/publisher"
	auditmemory "credreg/pkg/platform/audit/store/memory"
	"credreg/pkg/platform/tx"
)

func sign(key *ecdsa.PrivateKey, message string) string {
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		panic(err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}

type LoginSuite struct {
	suite.Suite
	ctx     context.Context
	key     *ecdsa.PrivateKey
	user    id.Principal
	jwt     *jwttoken.JWTService
	trail   *auditmemory.InMemoryStore
	service *Service
}

func TestLoginSuite(t *testing.T) {
	suite.Run(t, new(LoginSuite))
}

func (s *LoginSuite) SetupTest() {
	s.ctx = context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	key, err := crypto.GenerateKey()
	s.Require().NoError(err)
	s.key = key
	s.user = id.PrincipalFromAddress(crypto.PubkeyToAddress(key.PublicKey))

	users := identitystore.NewInMemoryUserStore()
	resolver := identity.NewActorResolver(users)
	registry := identity.New(users, policy.NewGate(resolver, nil), tx.NewMemoryRunner(0), identity.WithLogger(logger))
	s.Require().NoError(registry.Bootstrap(s.ctx, s.user, "Root"))

	s.trail = auditmemory.NewInMemoryStore()
	s.jwt = jwttoken.NewJWTService("test-signing-key", "credreg", "credreg-api")
	s.service = New(nonce.NewInMemoryStore(), s.jwt, resolver,
		Config{TokenTTL: 15 * time.Minute, ChallengeTTL: time.Minute},
		WithLogger(logger),
		WithAuditPublisher(publisher.NewPublisher(s.trail)),
	)
}

func (s *LoginSuite) actions() []string {
	events, err := s.trail.ListAll(s.ctx)
	s.Require().NoError(err)
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Action)
	}
	return out
}

func (s *LoginSuite) TestLogin() {
	ch, err := s.service.Challenge(s.ctx, s.user)
	s.Require().NoError(err)
	s.Contains(ch.Message, ch.Nonce)
	s.Contains(ch.Message, s.user.String())

	resp, err := s.service.Token(s.ctx, s.user, sign(s.key, ch.Message))
	s.Require().NoError(err)
	s.Equal("Bearer", resp.TokenType)
	s.Equal(900, resp.ExpiresIn)

	claims, err := s.jwt.ValidateToken(resp.AccessToken)
	s.Require().NoError(err)
	p, err := claims.Principal()
	s.Require().NoError(err)
	s.Equal(s.user, p)

	s.Contains(s.actions(), string(audit.EventLoginSucceeded))
}

func (s *LoginSuite) TestChallengeIsSingleUse() {
	ch, err := s.service.Challenge(s.ctx, s.user)
	s.Require().NoError(err)
	sig := sign(s.key, ch.Message)

	_, err = s.service.Token(s.ctx, s.user, sig)
	s.Require().NoError(err)

	_, err = s.service.Token(s.ctx, s.user, sig)
	s.True(dErrors.Is(err, dErrors.CodeUnauthenticated))
}

func (s *LoginSuite) TestNewChallengeReplacesOld() {
	first, err := s.service.Challenge(s.ctx, s.user)
	s.Require().NoError(err)
	_, err = s.service.Challenge(s.ctx, s.user)
	s.Require().NoError(err)

	_, err = s.service.Token(s.ctx, s.user, sign(s.key, first.Message))
	s.True(dErrors.Is(err, dErrors.CodeUnauthenticated))
}

func (s *LoginSuite) TestRejections() {
	other, err := crypto.GenerateKey()
	s.Require().NoError(err)
	stranger := id.PrincipalFromAddress(crypto.PubkeyToAddress(other.PublicKey))

	s.Run("no challenge", func() {
		_, err := s.service.Token(s.ctx, s.user, "0x00")
		s.True(dErrors.Is(err, dErrors.CodeUnauthenticated))
	})

	s.Run("signed by another key", func() {
		ch, err := s.service.Challenge(s.ctx, s.user)
		s.Require().NoError(err)
		_, err = s.service.Token(s.ctx, s.user, sign(other, ch.Message))
		s.True(dErrors.Is(err, dErrors.CodeUnauthenticated))
	})

	s.Run("malformed signature", func() {
		_, err := s.service.Challenge(s.ctx, s.user)
		s.Require().NoError(err)
		_, err = s.service.Token(s.ctx, s.user, "0xdeadbeef")
		s.True(dErrors.Is(err, dErrors.CodeUnauthenticated))
	})

	s.Run("unregistered principal", func() {
		ch, err := s.service.Challenge(s.ctx, stranger)
		s.Require().NoError(err)
		_, err = s.service.Token(s.ctx, stranger, sign(other, ch.Message))
		s.True(dErrors.Is(err, dErrors.CodeUnauthenticated))
	})

	s.NotContains(s.actions(), string(audit.EventLoginSucceeded))
	s.Contains(s.actions(), string(audit.EventLoginFailed))
}

func TestRecoverSignerAcceptsBothRecoveryForms(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	want := id.PrincipalFromAddress(crypto.PubkeyToAddress(key.PublicKey))

	raw, err := crypto.Sign(accounts.TextHash([]byte("hello")), key)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range []byte{0, 27} {
		sig := append([]byte(nil), raw...)
		sig[crypto.RecoveryIDOffset] += v
		got, err := RecoverSigner("hello", hexutil.Encode(sig))
		if err != nil {
			t.Fatalf("v offset %d: %v", v, err)
		}
		if got != want {
			t.Fatalf("v offset %d: got %s, want %s", v, got, want)
		}
	}
}
