package models

import (
	"strings"
	"time"

	id "credreg/pkg/domain"
	dErrors "credreg/pkg/domain-errors"
)

type ChallengeRequest struct {
	Principal string `json:"principal"`

	parsed id.Principal
}

func (r *ChallengeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	p, err := id.ParsePrincipal(r.Principal)
	if err != nil {
		return dErrors.Invalid("principal", err.Error())
	}
	r.parsed = p
	return nil
}

func (r *ChallengeRequest) ParsedPrincipal() id.Principal { return r.parsed }

type TokenRequest struct {
	Principal string `json:"principal"`
	// Signature is the 65-byte 0x-prefixed personal_sign output.
	Signature string `json:"signature"`

	parsed id.Principal
}

func (r *TokenRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	p, err := id.ParsePrincipal(r.Principal)
	if err != nil {
		return dErrors.Invalid("principal", err.Error())
	}
	r.Signature = strings.TrimSpace(r.Signature)
	if r.Signature == "" {
		return dErrors.Invalid("signature", "signature is required")
	}
	r.parsed = p
	return nil
}

func (r *TokenRequest) ParsedPrincipal() id.Principal { return r.parsed }

type ChallengeResponse struct {
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}
