package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	id "credreg/pkg/domain"
)

// Challenge is a single-use login nonce issued to a principal. The wallet
// signs Message with EIP-191 personal_sign.
type Challenge struct {
	Principal id.Principal `json:"principal"`
	Nonce     string       `json:"nonce"`
	Message   string       `json:"message"`
	IssuedAt  time.Time    `json:"issued_at"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// NewChallenge issues a fresh nonce for p valid for ttl.
func NewChallenge(realm string, p id.Principal, now time.Time, ttl time.Duration) *Challenge {
	nonce := uuid.NewString()
	return &Challenge{
		Principal: p,
		Nonce:     nonce,
		Message:   challengeMessage(realm, p, nonce, now, now.Add(ttl)),
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

func (c *Challenge) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

func challengeMessage(realm string, p id.Principal, nonce string, issued, expires time.Time) string {
	return fmt.Sprintf("%s wants you to sign in with your Ethereum account:\n%s\n\nNonce: %s\nIssued At: %s\nExpiration Time: %s",
		realm, p, nonce, issued.UTC().Format(time.RFC3339), expires.UTC().Format(time.RFC3339))
}
