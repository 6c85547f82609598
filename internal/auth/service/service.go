// Package service implements wallet login: a principal asks for a challenge,
// signs it with its key and trades the signature for an access token.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"credreg/internal/auth/models"
	"credreg/internal/policy"
	id "credreg/pkg/domain"
	dErrors "credreg/pkg/domain-errors"
	audit "credreg/pkg/platform/audit"
	"credreg/pkg/platform/sentinel"
	"credreg/pkg/requestcontext"
)

const tokenTypeBearer = "Bearer"

type NonceStore interface {
	Save(ctx context.Context, ch *models.Challenge, ttl time.Duration) error
	Consume(ctx context.Context, p id.Principal) (*models.Challenge, error)
}

type TokenGenerator interface {
	GenerateAccessToken(principal id.Principal, expiresIn time.Duration) (token string, jti string, err error)
}

// ProfileResolver confirms the principal is registered before a token is minted.
type ProfileResolver interface {
	ResolveActor(ctx context.Context, p id.Principal) (policy.Actor, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Config struct {
	// Realm names the service in the signed message.
	Realm        string
	TokenTTL     time.Duration
	ChallengeTTL time.Duration
}

type Service struct {
	nonces         NonceStore
	tokens         TokenGenerator
	profiles       ProfileResolver
	cfg            Config
	logger         *slog.Logger
	auditPublisher AuditPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func New(nonces NonceStore, tokens TokenGenerator, profiles ProfileResolver, cfg Config, opts ...Option) *Service {
	if cfg.Realm == "" {
		cfg.Realm = "credreg"
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.ChallengeTTL <= 0 {
		cfg.ChallengeTTL = 5 * time.Minute
	}
	s := &Service{
		nonces:   nonces,
		tokens:   tokens,
		profiles: profiles,
		cfg:      cfg,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Challenge issues a fresh nonce for p, replacing any outstanding one.
func (s *Service) Challenge(ctx context.Context, p id.Principal) (*models.Challenge, error) {
	if p.IsZero() {
		return nil, dErrors.Invalid("principal", "principal is required")
	}
	ch := models.NewChallenge(s.cfg.Realm, p, requestcontext.Now(ctx), s.cfg.ChallengeTTL)
	if err := s.nonces.Save(ctx, ch, s.cfg.ChallengeTTL); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store challenge")
	}
	return ch, nil
}

// Token verifies the signature over p's outstanding challenge and returns an
// access token. The challenge is consumed whether or not verification succeeds.
func (s *Service) Token(ctx context.Context, p id.Principal, signature string) (*models.TokenResponse, error) {
	ch, err := s.nonces.Consume(ctx, p)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return nil, s.reject(ctx, p, "no outstanding challenge")
	case errors.Is(err, sentinel.ErrExpired):
		return nil, s.reject(ctx, p, "challenge expired")
	case err != nil:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load challenge")
	}

	signer, err := RecoverSigner(ch.Message, signature)
	if err != nil || signer != p {
		return nil, s.reject(ctx, p, "signature does not match principal")
	}

	if _, err := s.profiles.ResolveActor(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || dErrors.HasCode(err, dErrors.CodeNotRegistered) {
			return nil, s.reject(ctx, p, "principal is not registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load principal")
	}

	token, jti, err := s.tokens.GenerateAccessToken(p, s.cfg.TokenTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}

	s.emit(ctx, audit.Event{Action: string(audit.EventLoginSucceeded), Actor: p, Subject: p})
	s.logger.InfoContext(ctx, "login succeeded",
		"principal", p,
		"jti", jti,
		"request_id", requestcontext.RequestID(ctx),
	)
	return &models.TokenResponse{
		AccessToken: token,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   int(s.cfg.TokenTTL.Seconds()),
	}, nil
}

// reject records the failed attempt and returns the caller-facing error. The
// reason is logged, never returned.
func (s *Service) reject(ctx context.Context, p id.Principal, reason string) error {
	s.emit(ctx, audit.Event{Action: string(audit.EventLoginFailed), Actor: p, Subject: p, Reason: reason})
	s.logger.WarnContext(ctx, "login failed",
		"principal", p,
		"reason", reason,
		"request_id", requestcontext.RequestID(ctx),
	)
	return dErrors.New(dErrors.CodeUnauthenticated, "login failed")
}

// emit is best effort; failures are logged.
func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to record login event", "error", err, "action", event.Action)
	}
}
